/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package blog

import (
	"bytes"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Post is a blog article. Content is the raw Markdown/MDX body without front matter.
type Post struct {
	Slug        string   `yaml:"-" json:"slug"`
	Title       string   `yaml:"title" json:"title"`
	Summary     string   `yaml:"summary" json:"summary,omitempty"`
	Date        string   `yaml:"date" json:"date"`
	Author      string   `yaml:"author" json:"author"`
	AuthorImage string   `yaml:"authorImage" json:"authorImage"`
	Thumbnail   string   `yaml:"thumbnail" json:"thumbnail"`
	Category    string   `yaml:"category" json:"category,omitempty"`
	Tags        []string `yaml:"tags" json:"tags,omitempty"`
	Content     string   `yaml:"-" json:"content,omitempty"`
}

var dateLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}

// PublishedAt parses Date. The second result is false for missing or unknown formats.
func (p *Post) PublishedAt() (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, p.Date); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

var frontMatterDelim = []byte("---")

// parsePost splits "---" delimited YAML front matter from the body.
// A file without front matter is all content.
func parsePost(slug string, data []byte) (*Post, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	post := &Post{Slug: slug}

	meta, body, found := splitFrontMatter(data)
	if !found {
		post.Content = string(data)
		return post, nil
	}
	if err := yaml.Unmarshal(meta, post); err != nil {
		return nil, fmt.Errorf("parse front matter of %q: %w", slug, err)
	}
	post.Slug = slug
	post.Content = string(body)
	return post, nil
}

func splitFrontMatter(data []byte) (meta, body []byte, found bool) {
	firstLine, rest, ok := cutLine(data)
	if !ok || !bytes.Equal(bytes.TrimSpace(firstLine), frontMatterDelim) {
		return nil, data, false
	}
	metaStart := len(data) - len(rest)
	for offset := metaStart; offset < len(data); {
		line, next, hasNext := cutLine(data[offset:])
		if bytes.Equal(bytes.TrimSpace(line), frontMatterDelim) {
			meta = data[metaStart:offset]
			if hasNext {
				body = next
			}
			return meta, bytes.TrimLeft(body, "\r\n"), true
		}
		if !hasNext {
			break
		}
		offset = len(data) - len(next)
	}
	return nil, data, false
}

func cutLine(data []byte) (line, rest []byte, hasRest bool) {
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		return bytes.TrimSuffix(data[:i], []byte("\r")), data[i+1:], true
	}
	return data, nil, false
}

/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

// Package blog reads blog posts from Markdown/MDX files with YAML front matter.
package blog

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ssiautomations/website/log"
	"github.com/ssiautomations/website/lrucache"
)

// ErrPostNotFound is returned when there is no post with the slug.
var ErrPostNotFound = errors.New("blog post not found")

// Supported post file extensions in lookup order.
var postExtensions = []string{".mdx", ".md"}

// StoreOpts represents options for Store.
type StoreOpts struct {
	// CacheMetrics collects metrics of the parsed posts cache.
	CacheMetrics lrucache.MetricsCollector
}

// Store reads posts from a directory. Parsed posts are cached when CacheTTL is positive.
type Store struct {
	dir    string
	cache  *lrucache.LRUCache[string, *Post]
	logger log.FieldLogger
}

// NewStore creates a new Store.
func NewStore(cfg *Config, logger log.FieldLogger, opts StoreOpts) (*Store, error) {
	s := &Store{dir: cfg.Dir, logger: logger}
	if cfg.CacheTTL > 0 {
		cache, err := lrucache.NewWithOpts[string, *Post](cfg.CacheMaxEntries, opts.CacheMetrics,
			lrucache.Options{DefaultTTL: cfg.CacheTTL})
		if err != nil {
			return nil, fmt.Errorf("new posts cache: %w", err)
		}
		s.cache = cache
	}
	return s, nil
}

// Slugs returns slugs of all post files. A missing directory yields no slugs.
func (s *Store) Slugs(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("blog directory does not exist", log.String("dir", s.dir))
			return nil, nil
		}
		return nil, fmt.Errorf("read blog directory: %w", err)
	}
	seen := make(map[string]bool, len(entries))
	slugs := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		for _, ext := range postExtensions {
			if slug, ok := strings.CutSuffix(name, ext); ok && slug != "" && !seen[slug] {
				seen[slug] = true
				slugs = append(slugs, slug)
				break
			}
		}
	}
	sort.Strings(slugs)
	return slugs, nil
}

// Get returns the post by slug. The .mdx file wins over .md.
func (s *Store) Get(_ context.Context, slug string) (*Post, error) {
	if !isValidSlug(slug) {
		return nil, ErrPostNotFound
	}
	if s.cache == nil {
		return s.load(slug)
	}
	return s.cache.GetOrLoad(slug, s.load)
}

func (s *Store) load(slug string) (*Post, error) {
	for _, ext := range postExtensions {
		data, err := os.ReadFile(filepath.Join(s.dir, slug+ext))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read blog post %q: %w", slug, err)
		}
		return parsePost(slug, data)
	}
	return nil, ErrPostNotFound
}

// List returns all readable posts, newest first. Posts without a parsable date go last.
func (s *Store) List(ctx context.Context) ([]*Post, error) {
	slugs, err := s.Slugs(ctx)
	if err != nil {
		return nil, err
	}
	posts := make([]*Post, 0, len(slugs))
	for _, slug := range slugs {
		if err = ctx.Err(); err != nil {
			return nil, err
		}
		post, getErr := s.Get(ctx, slug)
		if getErr != nil {
			s.logger.Error("error reading blog post", log.String("slug", slug), log.Error(getErr))
			continue
		}
		posts = append(posts, post)
	}
	sortNewestFirst(posts)
	return posts, nil
}

// Featured returns the n newest posts.
func (s *Store) Featured(ctx context.Context, n int) ([]*Post, error) {
	posts, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	if n >= 0 && n < len(posts) {
		posts = posts[:n]
	}
	return posts, nil
}

// Invalidate drops cached posts, so edits on disk are picked up immediately.
func (s *Store) Invalidate() {
	if s.cache != nil {
		s.cache.Purge()
	}
}

func sortNewestFirst(posts []*Post) {
	sort.SliceStable(posts, func(i, j int) bool {
		ti, okI := posts[i].PublishedAt()
		tj, okJ := posts[j].PublishedAt()
		if okI != okJ {
			return okI
		}
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return posts[i].Slug < posts[j].Slug
	})
}

func isValidSlug(slug string) bool {
	return slug != "" && slug != "." && slug != ".." &&
		!strings.ContainsAny(slug, "/\\\x00") && !strings.Contains(slug, "..")
}

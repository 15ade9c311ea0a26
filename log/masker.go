/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package log

import (
	"regexp"
	"strings"
)

// FieldMaskFormat defines how a secret field may appear inside a logged string.
type FieldMaskFormat string

// Field mask formats.
const (
	FieldMaskFormatHTTPHeader FieldMaskFormat = "http_header"
	FieldMaskFormatJSON       FieldMaskFormat = "json"
	FieldMaskFormatURLEncoded FieldMaskFormat = "urlencoded"
)

// MaskingRule describes a secret field and the formats in which it should be hidden.
type MaskingRule struct {
	Field   string
	Formats []FieldMaskFormat
}

// DefaultMaskingRules hide credentials that pass through the auth provider and mail API clients.
var DefaultMaskingRules = []MaskingRule{
	{Field: "Authorization", Formats: []FieldMaskFormat{FieldMaskFormatHTTPHeader}},
	{Field: "apikey", Formats: []FieldMaskFormat{FieldMaskFormatHTTPHeader, FieldMaskFormatURLEncoded}},
	{Field: "password", Formats: []FieldMaskFormat{FieldMaskFormatJSON, FieldMaskFormatURLEncoded}},
	{Field: "access_token", Formats: []FieldMaskFormat{FieldMaskFormatJSON, FieldMaskFormatURLEncoded}},
	{Field: "refresh_token", Formats: []FieldMaskFormat{FieldMaskFormatJSON, FieldMaskFormatURLEncoded}},
	{Field: "token", Formats: []FieldMaskFormat{FieldMaskFormatJSON}},
	{Field: "signature", Formats: []FieldMaskFormat{FieldMaskFormatJSON}},
}

type replacement struct {
	re   *regexp.Regexp
	repl string
}

type fieldMasker struct {
	field        string // lowercase
	replacements []replacement
}

func newFieldMasker(rule MaskingRule) fieldMasker {
	fm := fieldMasker{field: strings.ToLower(rule.Field)}
	quoted := regexp.QuoteMeta(rule.Field)
	for _, format := range rule.Formats {
		switch format {
		case FieldMaskFormatHTTPHeader:
			fm.replacements = append(fm.replacements, replacement{
				regexp.MustCompile(`(?i)` + quoted + `: .+?\r\n`), rule.Field + ": ***\r\n"})
		case FieldMaskFormatJSON:
			fm.replacements = append(fm.replacements, replacement{
				regexp.MustCompile(`(?i)"` + quoted + `"\s*:\s*".*?[^\\]"`), `"` + rule.Field + `": "***"`})
		case FieldMaskFormatURLEncoded:
			fm.replacements = append(fm.replacements, replacement{
				regexp.MustCompile(`(?i)\b` + quoted + `\s*=\s*[^&\s]+`), rule.Field + "=***"})
		}
	}
	return fm
}

var emailRegExp = regexp.MustCompile(`([A-Za-z0-9._%+-])[A-Za-z0-9._%+-]*@([A-Za-z0-9.-]+\.[A-Za-z]{2,})`)

// Masker hides secrets and, optionally, e-mail addresses in strings.
type Masker struct {
	fields     []fieldMasker
	maskEmails bool
}

// NewMasker creates a Masker for the given rules.
func NewMasker(rules []MaskingRule, maskEmails bool) *Masker {
	m := &Masker{fields: make([]fieldMasker, 0, len(rules)), maskEmails: maskEmails}
	for _, rule := range rules {
		m.fields = append(m.fields, newFieldMasker(rule))
	}
	return m
}

// Mask returns s with all known secrets replaced by "***".
// E-mail addresses keep their first character and domain: "jane@example.com" becomes "j***@example.com".
func (m *Masker) Mask(s string) string {
	lower := strings.ToLower(s)
	for _, fm := range m.fields {
		if !strings.Contains(lower, fm.field) {
			continue
		}
		for _, r := range fm.replacements {
			s = r.re.ReplaceAllString(s, r.repl)
		}
	}
	if m.maskEmails && strings.Contains(s, "@") {
		s = emailRegExp.ReplaceAllString(s, "${1}***@${2}")
	}
	return s
}

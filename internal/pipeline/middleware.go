package pipeline

import (
	"html"
	"regexp"
	"strings"

	"github.com/IshaanNene/driverscout/internal/parser"
	"github.com/IshaanNene/driverscout/internal/types"
)

// AliasMiddleware rewrites a raw record into canonical field names. For
// each canonical field the first alias carrying a non-blank value wins.
// Keys not named by the schema are discarded.
type AliasMiddleware struct {
	schema Schema
}

func NewAliasMiddleware(schema Schema) *AliasMiddleware {
	return &AliasMiddleware{schema: schema}
}

func (m *AliasMiddleware) Name() string { return "alias:" + m.schema.Name }

func (m *AliasMiddleware) Process(rec *types.RawRecord) (*types.RawRecord, error) {
	out := types.NewRawRecord(rec.Source)
	for _, field := range types.DriverFields {
		for _, alias := range m.schema.Aliases[field] {
			if rec.Has(alias) {
				out.Set(field, rec.GetString(alias))
				break
			}
		}
	}
	return out, nil
}

// HTMLSanitizeMiddleware strips HTML tags from the configured fields.
type HTMLSanitizeMiddleware struct {
	fields  []string
	stripRe *regexp.Regexp
}

func NewHTMLSanitizeMiddleware(fields ...string) *HTMLSanitizeMiddleware {
	return &HTMLSanitizeMiddleware{
		fields:  fields,
		stripRe: regexp.MustCompile(`<[^>]*>`),
	}
}

func (m *HTMLSanitizeMiddleware) Name() string { return "html_sanitize" }

func (m *HTMLSanitizeMiddleware) Process(rec *types.RawRecord) (*types.RawRecord, error) {
	for _, key := range m.fields {
		s := rec.GetString(key)
		if s == "" {
			continue
		}
		cleaned := m.stripRe.ReplaceAllString(s, " ")
		cleaned = html.UnescapeString(cleaned)
		cleaned = strings.Join(strings.Fields(cleaned), " ")
		if cleaned == "" {
			rec.Delete(key)
			continue
		}
		rec.Set(key, cleaned)
	}
	return rec, nil
}

// AbsoluteURLMiddleware resolves relative links against the site origin.
type AbsoluteURLMiddleware struct {
	Origin string
	Fields []string
}

func (m *AbsoluteURLMiddleware) Name() string { return "absolute_url" }

func (m *AbsoluteURLMiddleware) Process(rec *types.RawRecord) (*types.RawRecord, error) {
	for _, key := range m.Fields {
		if v := rec.GetString(key); v != "" {
			rec.Set(key, parser.AbsoluteURL(m.Origin, v))
		}
	}
	return rec, nil
}

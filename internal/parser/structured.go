package parser

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/IshaanNene/driverscout/internal/types"
)

// StructuredDataType identifies the type of structured data.
type StructuredDataType string

const (
	JSONLD    StructuredDataType = "json-ld"
	OpenGraph StructuredDataType = "opengraph"
	MetaTags  StructuredDataType = "meta"
)

// StructuredData represents structured metadata embedded in a page.
type StructuredData struct {
	Type StructuredDataType `json:"type"`
	Data map[string]any     `json:"data"`
}

// ExtractStructured finds JSON-LD blocks, OpenGraph tags and the page title.
func ExtractStructured(doc *goquery.Document) []StructuredData {
	results := extractJSONLD(doc)

	if og := extractOpenGraph(doc); len(og.Data) > 0 {
		results = append(results, og)
	}
	if meta := extractMetaTags(doc); len(meta.Data) > 0 {
		results = append(results, meta)
	}

	return results
}

// extractJSONLD parses <script type="application/ld+json"> elements,
// expanding top-level arrays and @graph containers.
func extractJSONLD(doc *goquery.Document) []StructuredData {
	var results []StructuredData

	add := func(data map[string]any) {
		if graph, ok := data["@graph"].([]any); ok {
			for _, g := range graph {
				if m, ok := g.(map[string]any); ok {
					results = append(results, StructuredData{Type: JSONLD, Data: m})
				}
			}
			return
		}
		results = append(results, StructuredData{Type: JSONLD, Data: data})
	}

	doc.Find(`script[type="application/ld+json"]`).Each(func(i int, sel *goquery.Selection) {
		raw := strings.TrimSpace(sel.Text())
		if raw == "" {
			return
		}

		var data map[string]any
		if err := json.Unmarshal([]byte(raw), &data); err == nil {
			add(data)
			return
		}

		var dataArr []map[string]any
		if err := json.Unmarshal([]byte(raw), &dataArr); err == nil {
			for _, d := range dataArr {
				add(d)
			}
		}
	})

	return results
}

// extractOpenGraph parses og: meta tags.
func extractOpenGraph(doc *goquery.Document) StructuredData {
	data := make(map[string]any)

	doc.Find(`meta[property^="og:"]`).Each(func(i int, sel *goquery.Selection) {
		property, _ := sel.Attr("property")
		content, _ := sel.Attr("content")
		if property != "" && content != "" {
			data[strings.TrimPrefix(property, "og:")] = content
		}
	})

	return StructuredData{Type: OpenGraph, Data: data}
}

// extractMetaTags reads the document title and description.
func extractMetaTags(doc *goquery.Document) StructuredData {
	data := make(map[string]any)

	if title := collapseSpace(doc.Find("title").First().Text()); title != "" {
		data["title"] = title
	}
	if content, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok && content != "" {
		data["description"] = content
	}

	return StructuredData{Type: MetaTags, Data: data}
}

// ProductHints derives product metadata from structured data. JSON-LD
// Product entries win over OpenGraph, which wins over the page title.
func ProductHints(results []StructuredData) types.ProductInfo {
	var info types.ProductInfo
	var ogTitle, pageTitle string

	for _, sd := range results {
		switch sd.Type {
		case JSONLD:
			if !isLDType(sd.Data, "Product") {
				continue
			}
			if info.ProductName == "" {
				info.ProductName = stringField(sd.Data, "name")
			}
			if info.ProductLine == "" {
				info.ProductLine = firstNonEmpty(stringField(sd.Data, "model"), stringField(sd.Data, "category"))
			}
		case OpenGraph:
			ogTitle = stringField(sd.Data, "title")
		case MetaTags:
			pageTitle = stringField(sd.Data, "title")
		}
	}

	if info.ProductName == "" {
		info.ProductName = firstNonEmpty(ogTitle, pageTitle)
	}
	return info
}

// SoftwareEntries returns flattened JSON-LD SoftwareApplication objects,
// which some support pages embed for individual driver downloads.
func SoftwareEntries(results []StructuredData) []map[string]string {
	var entries []map[string]string
	for _, sd := range results {
		if sd.Type != JSONLD {
			continue
		}
		if isLDType(sd.Data, "SoftwareApplication") || isLDType(sd.Data, "SoftwareSourceCode") {
			entries = append(entries, Flatten(sd.Data))
		}
	}
	return entries
}

func isLDType(data map[string]any, want string) bool {
	switch t := data["@type"].(type) {
	case string:
		return strings.EqualFold(t, want)
	case []any:
		for _, v := range t {
			if s, ok := v.(string); ok && strings.EqualFold(s, want) {
				return true
			}
		}
	}
	return false
}

func stringField(data map[string]any, key string) string {
	s, _ := data[key].(string)
	return collapseSpace(s)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

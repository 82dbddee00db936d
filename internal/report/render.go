package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/IshaanNene/driverscout/internal/types"
)

const notAvailable = "N/A"

// DateLayout is the layout of the "Date Scraped" line.
const DateLayout = "2006-01-02 15:04:05 MST"

// RenderJSON encodes doc as indented JSON. The encoding is deterministic
// and DecodeJSON restores an equal document.
func RenderJSON(doc *types.ResultDocument) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encode result document: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeJSON is the inverse of RenderJSON.
func DecodeJSON(data []byte) (*types.ResultDocument, error) {
	var doc types.ResultDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode result document: %w", err)
	}
	return &doc, nil
}

// RenderMarkdown renders doc as a human-readable report.
func RenderMarkdown(doc *types.ResultDocument) string {
	var b strings.Builder

	productName := doc.ProductInfo.ProductName
	if productName == "" {
		productName = types.DefaultProductName
	}

	fmt.Fprintf(&b, "# Dell Driver Information for %s\n\n", doc.ServiceTag)
	fmt.Fprintf(&b, "## Product: %s\n\n", productName)
	if doc.ProductInfo.ProductLine != "" {
		fmt.Fprintf(&b, "**Product Line:** %s\n\n", doc.ProductInfo.ProductLine)
	}
	if doc.ProductInfo.SystemConfig != "" {
		fmt.Fprintf(&b, "**System Configuration:** %s\n\n", doc.ProductInfo.SystemConfig)
	}
	fmt.Fprintf(&b, "**Date Scraped:** %s\n\n", doc.Timestamp.UTC().Format(DateLayout))
	b.WriteString("## Available Drivers\n\n")

	for i, d := range doc.Drivers {
		name := d.Name
		if name == "" {
			name = "Unknown Driver"
		}
		fmt.Fprintf(&b, "### %d. %s\n\n", i+1, name)
		fmt.Fprintf(&b, "**Category:** %s\n\n", orNA(d.Category))
		fmt.Fprintf(&b, "**Version:** %s\n\n", orNA(d.Version))
		fmt.Fprintf(&b, "**Release Date:** %s\n\n", orNA(d.ReleaseDate))
		fmt.Fprintf(&b, "**Importance:** %s\n\n", orNA(d.Importance))
		if d.Description != "" {
			fmt.Fprintf(&b, "**Description:** %s\n\n", d.Description)
		}
		if d.DownloadURL != "" {
			fmt.Fprintf(&b, "**Download URL:** [%s](%s)\n\n", d.DownloadURL, d.DownloadURL)
		}
		b.WriteString("---\n\n")
	}

	return b.String()
}

func orNA(s string) string {
	if s == "" {
		return notAvailable
	}
	return s
}

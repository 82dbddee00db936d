// Package report builds the canonical result document and renders it as
// JSON and Markdown.
package report

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/IshaanNene/driverscout/internal/types"
)

// Placeholder record values used when no driver could be recovered.
const (
	PlaceholderName       = "Dell Support Website"
	PlaceholderCategory   = "Support"
	PlaceholderImportance = "Recommended"
)

// Options controls where the placeholder record points.
type Options struct {
	// Origin is the support site origin.
	Origin string
	// DriversPath is the per-tag drivers page; "{tag}" is replaced with
	// the path-escaped service tag.
	DriversPath string
}

// DefaultOptions points placeholders at the public Dell support site.
func DefaultOptions() Options {
	return Options{
		Origin:      "https://www.dell.com",
		DriversPath: "/support/home/en-us/product-support/servicetag/{tag}/drivers",
	}
}

// Assemble builds the result document for one retrieval. When records is
// empty a single placeholder record is substituted, so Drivers is never
// empty. The timestamp is now in UTC.
func Assemble(serviceTag string, product types.ProductInfo, records []types.DriverRecord, now time.Time, opts Options) *types.ResultDocument {
	if strings.TrimSpace(product.ProductName) == "" {
		product.ProductName = types.DefaultProductName
	}

	drivers := make([]types.DriverRecord, 0, max(len(records), 1))
	drivers = append(drivers, records...)
	if len(drivers) == 0 {
		drivers = append(drivers, Placeholder(serviceTag, product.ProductName, opts))
	}

	return &types.ResultDocument{
		ServiceTag:  serviceTag,
		ProductInfo: product,
		Timestamp:   now.UTC(),
		Drivers:     drivers,
	}
}

// Placeholder returns the record that directs the reader to the support site.
func Placeholder(serviceTag, productName string, opts Options) types.DriverRecord {
	if productName == "" {
		productName = types.DefaultProductName
	}
	return types.DriverRecord{
		Name:        PlaceholderName,
		Category:    PlaceholderCategory,
		Importance:  PlaceholderImportance,
		Description: fmt.Sprintf("Visit the Dell support website to find drivers for %s.", productName),
		DownloadURL: SupportURL(serviceTag, opts),
	}
}

// SupportURL returns the per-tag drivers page.
func SupportURL(serviceTag string, opts Options) string {
	if opts.Origin == "" || opts.DriversPath == "" {
		opts = DefaultOptions()
	}
	path := strings.ReplaceAll(opts.DriversPath, "{tag}", url.PathEscape(strings.TrimSpace(serviceTag)))
	return strings.TrimRight(opts.Origin, "/") + "/" + strings.TrimLeft(path, "/")
}

// IsPlaceholder reports whether doc carries only the synthesized record.
func IsPlaceholder(doc *types.ResultDocument) bool {
	if doc == nil || len(doc.Drivers) != 1 {
		return false
	}
	d := doc.Drivers[0]
	return d.Name == PlaceholderName && d.Category == PlaceholderCategory && d.Version == ""
}

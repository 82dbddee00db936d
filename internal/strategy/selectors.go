package strategy

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/IshaanNene/driverscout/internal/parser"
	"github.com/IshaanNene/driverscout/internal/types"
)

// TitleSelectors locate the product title on a drivers page, in order.
var TitleSelectors = []string{
	"h1.dds__mb-0",
	"h1.page-title",
	".product-info h1",
}

// TableSelectors locate the driver table, in order.
var TableSelectors = []string{
	".drivers-table",
	".driver-filter-table",
	".dds__table",
	"table.drivers-list",
}

// LooseRowSelector matches anything that might be a driver entry when no
// known table is present.
const LooseRowSelector = "tr, .driver-item, .driver-card"

// DriverRules extract one driver from a table row or driver card.
var DriverRules = parser.RuleSet{
	{Field: types.FieldName, Rules: []parser.Rule{
		parser.Text(".driver-name-title"),
		parser.Text(".driver-name"),
		parser.Position(1),
		parser.Text("[data-testid='driver-name']"),
	}},
	{Field: types.FieldCategory, Rules: []parser.Rule{
		parser.Text(".driver-category"),
		parser.Text("[data-testid='driver-category']"),
		parser.Position(2),
	}},
	{Field: types.FieldVersion, Rules: []parser.Rule{
		parser.Text(".driver-version"),
		parser.Text("[data-testid='driver-version']"),
		parser.Position(3),
	}},
	{Field: types.FieldReleaseDate, Rules: []parser.Rule{
		parser.Text(".driver-date"),
		parser.Text("[data-testid='driver-date']"),
		parser.Position(4),
	}},
	{Field: types.FieldImportance, Rules: []parser.Rule{
		parser.Text(".driver-importance"),
		parser.Text("[data-testid='driver-importance']"),
		parser.Position(5),
	}},
	{Field: types.FieldDownloadURL, Rules: []parser.Rule{
		parser.Attr("a.driver-download-btn", "href"),
		parser.Attr("[data-testid='download-button']", "href"),
		parser.XPath(".//a[contains(normalize-space(.), 'Download')]", "href"),
	}},
	{Field: types.FieldDescription, Rules: []parser.Rule{
		parser.Text(".driver-description"),
		parser.Text("[data-testid='driver-description']"),
		parser.Position(6),
	}},
}

// productFromDocument reads the product title, falling back to structured
// data embedded in the page.
func productFromDocument(doc *goquery.Document) types.ProductInfo {
	var info types.ProductInfo
	for _, sel := range TitleSelectors {
		if title := strings.TrimSpace(doc.Find(sel).First().Text()); title != "" {
			info.ProductName = strings.Join(strings.Fields(title), " ")
			break
		}
	}
	return info.Merge(parser.ProductHints(parser.ExtractStructured(doc)))
}

// findDriverRows returns the rows of the first known driver table and the
// table selector that matched.
func findDriverRows(doc *goquery.Document) (*goquery.Selection, string, bool) {
	for _, sel := range TableSelectors {
		table := doc.Find(sel).First()
		if table.Length() == 0 {
			continue
		}
		var rows *goquery.Selection
		if sel == ".drivers-table" {
			rows = table.Find("tbody tr")
		} else {
			rows = table.Find("tr, .driver-item")
		}
		return rows, sel, true
	}
	return nil, "", false
}

// extractRows applies DriverRules to each row. Rows without any field are
// skipped; nameless rows are left for the normalizer to drop.
func extractRows(ex *parser.Extractor, rows *goquery.Selection, strategy string) []*types.RawRecord {
	var records []*types.RawRecord
	rows.Each(func(i int, row *goquery.Selection) {
		rec := ex.ExtractRecord(parser.FromFragment(row), DriverRules, strategy)
		if rec.Len() > 0 {
			records = append(records, rec)
		}
	})
	return records
}

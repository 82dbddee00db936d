package parser

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// selectValue applies a CSS selector beneath sel and returns the first
// non-empty value according to attribute.
func selectValue(sel *goquery.Selection, selector, attribute string) string {
	var value string
	sel.Find(selector).EachWithBreak(func(i int, match *goquery.Selection) bool {
		value = nodeValue(match, attribute)
		return value == ""
	})
	return value
}

// nodeValue reads text, markup, or an attribute from a single selection.
func nodeValue(sel *goquery.Selection, attribute string) string {
	var val string

	switch attribute {
	case "", "text":
		val = sel.Text()
	case "html", "innerHTML":
		val, _ = sel.Html()
	case "outerHTML":
		val, _ = goquery.OuterHtml(sel)
	default:
		val, _ = sel.Attr(attribute)
	}

	return collapseSpace(val)
}

// cellValue returns the nth (1-based) td cell of a row. When selector is
// set, the attribute of the first match inside that cell is read instead.
func cellValue(row *goquery.Selection, n int, selector, attribute string) string {
	if n < 1 {
		return ""
	}
	cells := row.ChildrenFiltered("td")
	if cells.Length() == 0 {
		cells = row.Find("td")
	}
	cell := cells.Eq(n - 1)
	if cell.Length() == 0 {
		return ""
	}
	if selector != "" {
		return selectValue(cell, selector, attribute)
	}
	return nodeValue(cell, attribute)
}

// collapseSpace trims and folds internal whitespace runs to single spaces.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

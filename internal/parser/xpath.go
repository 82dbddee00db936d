package parser

import (
	"fmt"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
)

// xpathValue evaluates expr against each node of sel and returns the first
// non-empty result.
func xpathValue(sel *goquery.Selection, expr, attribute string) (string, error) {
	for _, root := range sel.Nodes {
		nodes, err := htmlquery.QueryAll(root, expr)
		if err != nil {
			return "", fmt.Errorf("invalid xpath %q: %w", expr, err)
		}

		for _, node := range nodes {
			var val string

			switch attribute {
			case "", "text":
				val = htmlquery.InnerText(node)
			case "html", "innerHTML":
				val = htmlquery.OutputHTML(node, false)
			case "outerHTML":
				val = htmlquery.OutputHTML(node, true)
			default:
				val = htmlquery.SelectAttr(node, attribute)
			}

			if val = collapseSpace(val); val != "" {
				return val, nil
			}
		}
	}
	return "", nil
}

package strategy

import (
	"context"
	"log/slog"

	"github.com/PuerkitoBio/goquery"

	"github.com/IshaanNene/driverscout/internal/pipeline"
	"github.com/IshaanNene/driverscout/internal/types"
)

// MarkupStrategy fetches the drivers page over HTTP and scrapes the
// driver table.
type MarkupStrategy struct {
	deps   Deps
	logger *slog.Logger
}

// NewMarkupStrategy creates the markup strategy.
func NewMarkupStrategy(deps Deps) *MarkupStrategy {
	return &MarkupStrategy{
		deps:   deps,
		logger: deps.Logger.With("component", "markup_strategy"),
	}
}

func (s *MarkupStrategy) Name() string { return NameMarkup }

func (s *MarkupStrategy) Retrieve(ctx context.Context, serviceTag string) Outcome {
	resp, err := fetchPage(ctx, s.deps, NameMarkup, serviceTag)
	if err != nil {
		return Failure(NameMarkup, err, types.ProductInfo{})
	}

	doc, err := resp.Document()
	if err != nil {
		return Failure(NameMarkup, &types.ParseError{URL: resp.FinalURL, Err: err}, types.ProductInfo{})
	}

	return scrapeTable(NameMarkup, s.deps, doc, resp.Body, s.logger)
}

// fetchPage fetches the per-tag drivers page with the shared fetcher.
func fetchPage(ctx context.Context, deps Deps, name, serviceTag string) (*types.Response, error) {
	if deps.Fetcher == nil {
		return nil, types.ErrNoFetcher
	}
	pageURL := expandTag(deps.Config.Upstream.Origin, deps.Config.Upstream.DriversPath, serviceTag)
	req, err := types.NewRequest(pageURL)
	if err != nil {
		return nil, err
	}
	req.Strategy = name
	req.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	deps.Trace.Event("fetching drivers page", "strategy", name, "url", pageURL)
	return deps.Fetcher.Fetch(ctx, req)
}

// scrapeTable extracts driver rows from the first known driver table in
// doc. When no table is present the page is saved as a debug artifact.
func scrapeTable(name string, deps Deps, doc *goquery.Document, body []byte, logger *slog.Logger) Outcome {
	product := productFromDocument(doc)
	if product.ProductName != "" {
		deps.Trace.Event("found product name", "strategy", name, "product_name", product.ProductName)
	}

	rows, tableSel, ok := findDriverRows(doc)
	if !ok {
		if _, err := deps.Trace.SaveArtifact(pageArtifact(name), body); err != nil {
			logger.Warn("failed to save page content", "error", err)
		}
		logger.Debug("no driver table on page", "selectors", TableSelectors)
		return Failure(name, types.ErrNoDriverTable, product)
	}

	deps.Trace.Event("found drivers table", "strategy", name, "selector", tableSel, "rows", rows.Length())

	records := extractRows(deps.Extractor, rows, name)
	if len(records) == 0 {
		return Failure(name, types.ErrNoRecords, product)
	}
	return Success(records, pipeline.MarkupSchema, product)
}

func pageArtifact(strategy string) string {
	if strategy == NameMarkup {
		return "page.html"
	}
	return strategy + "_page.html"
}

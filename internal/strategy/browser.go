package strategy

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/IshaanNene/driverscout/internal/automation"
	"github.com/IshaanNene/driverscout/internal/config"
	"github.com/IshaanNene/driverscout/internal/fetcher"
	"github.com/IshaanNene/driverscout/internal/types"
)

// tableWait bounds the wait for each driver table selector.
const tableWait = 10 * time.Second

// DellLookup drives the support home page to the drivers listing.
func DellLookup(cfg *config.Config) automation.LookupFlow {
	return automation.LookupFlow{
		HomeURL:        strings.TrimRight(cfg.Upstream.Origin, "/") + "/" + strings.TrimLeft(cfg.Upstream.SupportHomePath, "/"),
		InputSelector:  "#inpEntrySelection",
		SubmitSelector: "button.btn-primary",
		DriversMarker:  "drivers",
		DriversLinks: []automation.Link{
			{Selector: "a", Text: "Drivers & Downloads"},
			{Selector: "a", Text: "Drivers"},
			{Selector: "[data-testid='drivers-downloads-link']"},
			{Selector: "a.dds__link", Text: "Drivers"},
		},
	}
}

// BrowserStrategy renders the drivers page in headless Chromium and
// applies the same table rules as the markup strategy.
type BrowserStrategy struct {
	deps   Deps
	logger *slog.Logger
}

// NewBrowserStrategy creates the browser strategy. The browser is only
// launched when Retrieve runs.
func NewBrowserStrategy(deps Deps) *BrowserStrategy {
	return &BrowserStrategy{
		deps:   deps,
		logger: deps.Logger.With("component", "browser_strategy"),
	}
}

func (s *BrowserStrategy) Name() string { return NameBrowser }

func (s *BrowserStrategy) Retrieve(ctx context.Context, serviceTag string) Outcome {
	cfg := s.deps.Config
	if !cfg.Browser.Enabled {
		return Failure(NameBrowser, types.ErrBrowserDisabled, types.ProductInfo{})
	}

	bf, err := s.launch()
	if err != nil {
		return Failure(NameBrowser, err, types.ProductInfo{})
	}
	defer func() {
		if err := bf.Close(); err != nil {
			s.logger.Warn("browser close failed", "error", err)
		}
	}()

	page, err := bf.NewPage(ctx)
	if err != nil {
		return Failure(NameBrowser, err, types.ProductInfo{})
	}
	defer page.Close()

	ba := automation.NewBrowserAutomation(page, cfg.Fetcher.Timeout, s.logger)

	s.deps.Trace.Event("navigating to support home", "strategy", NameBrowser)
	if err := ba.LookupServiceTag(DellLookup(cfg), serviceTag); err != nil {
		direct := expandTag(cfg.Upstream.Origin, cfg.Upstream.DriversPath, serviceTag)
		s.deps.Trace.Event("service tag lookup failed, opening drivers page directly", "error", err, "url", direct)
		if err := ba.Navigate(direct); err != nil {
			return Failure(NameBrowser, &types.FetchError{URL: direct, Err: err, Retryable: true}, types.ProductInfo{})
		}
	}
	s.deps.Trace.Event("drivers page loaded", "strategy", NameBrowser, "url", ba.URL())

	if sel, ok := ba.FirstPresent(TableSelectors, tableWait); ok {
		s.deps.Trace.Event("found drivers table", "strategy", NameBrowser, "selector", sel)
		if err := fetcher.Sleep(ctx, cfg.Browser.WaitTime); err != nil {
			return Failure(NameBrowser, err, types.ProductInfo{})
		}
	} else if shot, err := ba.Screenshot(); err == nil {
		if _, err := s.deps.Trace.SaveArtifact("browser_screenshot.png", shot); err != nil {
			s.logger.Warn("failed to save screenshot", "error", err)
		}
	}

	html, err := ba.HTML()
	if err != nil {
		return Failure(NameBrowser, fmt.Errorf("read page html: %w", err), types.ProductInfo{})
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Failure(NameBrowser, &types.ParseError{URL: ba.URL(), Err: err}, types.ProductInfo{})
	}

	return scrapeTable(NameBrowser, s.deps, doc, []byte(html), s.logger)
}

func (s *BrowserStrategy) launch() (*fetcher.BrowserFetcher, error) {
	if s.deps.NewBrowser != nil {
		return s.deps.NewBrowser(s.deps.Config, s.logger)
	}
	var opts []fetcher.BrowserOption
	if s.deps.Config.Browser.Stealth {
		opts = append(opts, fetcher.WithStealth(fetcher.DefaultStealthConfig()))
	}
	return fetcher.NewBrowserFetcher(s.deps.Config, s.logger, opts...)
}

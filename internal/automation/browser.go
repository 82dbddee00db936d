package automation

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// BrowserAutomation wraps a Rod page with the interaction helpers the
// browser retrieval flow needs.
type BrowserAutomation struct {
	page        *rod.Page
	waitTimeout time.Duration
	logger      *slog.Logger
}

// NewBrowserAutomation wraps a Rod page with automation helpers.
// waitTimeout bounds each element lookup.
func NewBrowserAutomation(page *rod.Page, waitTimeout time.Duration, logger *slog.Logger) *BrowserAutomation {
	if waitTimeout <= 0 {
		waitTimeout = 10 * time.Second
	}
	return &BrowserAutomation{
		page:        page,
		waitTimeout: waitTimeout,
		logger:      logger.With("component", "browser_automation"),
	}
}

// Page returns the underlying page.
func (ba *BrowserAutomation) Page() *rod.Page { return ba.page }

// --- Navigation ---

// Navigate loads url and waits for the page to settle.
func (ba *BrowserAutomation) Navigate(url string) error {
	if err := ba.page.Navigate(url); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return ba.WaitForNavigation()
}

// WaitForNavigation waits for a page navigation to complete.
func (ba *BrowserAutomation) WaitForNavigation() error {
	if err := ba.page.WaitLoad(); err != nil {
		return err
	}
	if err := ba.page.Timeout(ba.waitTimeout).WaitStable(500 * time.Millisecond); err != nil {
		ba.logger.Debug("page not stable before timeout, continuing", "error", err)
	}
	return nil
}

// URL returns the current page URL.
func (ba *BrowserAutomation) URL() string {
	info, err := ba.page.Info()
	if err != nil || info == nil {
		return ""
	}
	return info.URL
}

// --- Click & Form Interaction ---

// WaitFor waits until selector matches an element.
func (ba *BrowserAutomation) WaitFor(selector string, timeout time.Duration) (*rod.Element, error) {
	el, err := ba.page.Timeout(timeout).Element(selector)
	if err != nil {
		return nil, fmt.Errorf("element not found: %s: %w", selector, err)
	}
	return el, nil
}

// Click clicks an element matched by the CSS selector.
func (ba *BrowserAutomation) Click(selector string) error {
	el, err := ba.WaitFor(selector, ba.waitTimeout)
	if err != nil {
		return err
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

// TypeText replaces the content of an input field with text.
func (ba *BrowserAutomation) TypeText(selector, text string) error {
	el, err := ba.WaitFor(selector, ba.waitTimeout)
	if err != nil {
		return err
	}
	if err := el.SelectAllText(); err != nil {
		return fmt.Errorf("select text in %s: %w", selector, err)
	}
	return el.Input(text)
}

// Link identifies a link by CSS selector and, optionally, by a
// regular expression its text must match.
type Link struct {
	Selector string
	Text     string
}

func (l Link) String() string {
	if l.Text == "" {
		return l.Selector
	}
	return fmt.Sprintf("%s /%s/", l.Selector, l.Text)
}

// ClickFirstLink clicks the first link in candidates present on the page
// and returns it. Absent links are skipped without waiting.
func (ba *BrowserAutomation) ClickFirstLink(candidates []Link) (Link, error) {
	for _, link := range candidates {
		el, err := ba.findNow(link)
		if err != nil {
			ba.logger.Debug("link candidate not present", "link", link.String())
			continue
		}
		if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
			ba.logger.Debug("link candidate click failed", "link", link.String(), "error", err)
			continue
		}
		return link, nil
	}
	return Link{}, fmt.Errorf("none of %d link candidates found", len(candidates))
}

func (ba *BrowserAutomation) findNow(link Link) (*rod.Element, error) {
	if link.Text == "" {
		has, el, err := ba.page.Has(link.Selector)
		if err != nil {
			return nil, err
		}
		if !has {
			return nil, fmt.Errorf("no match for %s", link.Selector)
		}
		return el, nil
	}
	return ba.page.Timeout(time.Second).ElementR(link.Selector, link.Text)
}

// FirstPresent waits up to perSelector for each selector in turn and
// returns the first one that appears.
func (ba *BrowserAutomation) FirstPresent(selectors []string, perSelector time.Duration) (string, bool) {
	for _, sel := range selectors {
		if _, err := ba.WaitFor(sel, perSelector); err == nil {
			return sel, true
		}
	}
	return "", false
}

// --- Capture ---

// HTML returns the rendered page markup.
func (ba *BrowserAutomation) HTML() (string, error) {
	return ba.page.HTML()
}

// Screenshot captures a full-page PNG screenshot.
func (ba *BrowserAutomation) Screenshot() ([]byte, error) {
	return ba.page.Screenshot(true, nil)
}

// --- Service tag lookup ---

// LookupFlow describes how a support site resolves a service tag to its
// drivers page.
type LookupFlow struct {
	HomeURL        string
	InputSelector  string
	SubmitSelector string
	// DriversMarker is a substring of the drivers page URL. When the
	// lookup lands elsewhere, DriversLinks are tried in order.
	DriversMarker string
	DriversLinks  []Link
}

// LookupServiceTag runs flow for tag and leaves the page on the drivers
// listing, or as close to it as the site allowed.
func (ba *BrowserAutomation) LookupServiceTag(flow LookupFlow, tag string) error {
	if err := ba.Navigate(flow.HomeURL); err != nil {
		return err
	}
	if err := ba.TypeText(flow.InputSelector, tag); err != nil {
		return fmt.Errorf("enter service tag: %w", err)
	}
	if err := ba.Click(flow.SubmitSelector); err != nil {
		return fmt.Errorf("submit service tag: %w", err)
	}
	if err := ba.WaitForNavigation(); err != nil {
		return err
	}

	if flow.DriversMarker == "" || strings.Contains(strings.ToLower(ba.URL()), flow.DriversMarker) {
		return nil
	}

	link, err := ba.ClickFirstLink(flow.DriversLinks)
	if err != nil {
		ba.logger.Warn("drivers link not found, scraping current page", "url", ba.URL())
		return nil
	}
	ba.logger.Debug("followed drivers link", "link", link.String())
	return ba.WaitForNavigation()
}

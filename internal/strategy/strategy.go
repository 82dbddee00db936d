package strategy

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/IshaanNene/driverscout/internal/config"
	"github.com/IshaanNene/driverscout/internal/fetcher"
	"github.com/IshaanNene/driverscout/internal/observability"
	"github.com/IshaanNene/driverscout/internal/parser"
	"github.com/IshaanNene/driverscout/internal/pipeline"
	"github.com/IshaanNene/driverscout/internal/types"
)

// Strategy names.
const (
	NameAPI     = "api"
	NameMarkup  = "markup"
	NameBrowser = "browser"
	NameGeneric = "generic"
)

// Strategy is one way of retrieving driver records for a service tag.
type Strategy interface {
	Name() string
	Retrieve(ctx context.Context, serviceTag string) Outcome
}

// OutcomeKind tags an Outcome.
type OutcomeKind int

const (
	OutcomeFailure OutcomeKind = iota
	OutcomeSuccess
)

func (k OutcomeKind) String() string {
	if k == OutcomeSuccess {
		return "success"
	}
	return "failure"
}

// Outcome is the result of one strategy attempt. A success carries raw
// records and the schema that maps them to canonical fields. A failure
// carries the reason. Both may carry product info discovered on the way.
type Outcome struct {
	Kind    OutcomeKind
	Records []*types.RawRecord
	Schema  pipeline.Schema
	Product types.ProductInfo
	Err     error
}

// Success builds a success outcome.
func Success(records []*types.RawRecord, schema pipeline.Schema, product types.ProductInfo) Outcome {
	return Outcome{Kind: OutcomeSuccess, Records: records, Schema: schema, Product: product}
}

// Failure builds a failure outcome for strategy name.
func Failure(name string, err error, product types.ProductInfo) Outcome {
	return Outcome{Kind: OutcomeFailure, Err: &types.StrategyError{Strategy: name, Err: err}, Product: product}
}

// Deps carries the per-invocation collaborators strategies share.
type Deps struct {
	Config    *config.Config
	Fetcher   fetcher.Fetcher
	Extractor *parser.Extractor
	Trace     *observability.Trace
	Logger    *slog.Logger

	// NewBrowser launches a browser for the browser strategy. When nil,
	// fetcher.NewBrowserFetcher is used.
	NewBrowser func(cfg *config.Config, logger *slog.Logger) (*fetcher.BrowserFetcher, error)
}

// Factory builds a strategy from deps.
type Factory func(deps Deps) Strategy

// --- Registry ---

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{
		NameAPI:     func(d Deps) Strategy { return NewAPIStrategy(d) },
		NameMarkup:  func(d Deps) Strategy { return NewMarkupStrategy(d) },
		NameBrowser: func(d Deps) Strategy { return NewBrowserStrategy(d) },
		NameGeneric: func(d Deps) Strategy { return NewGenericStrategy(d) },
	}
)

// Register adds a named strategy factory.
func Register(name string, f Factory) error {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[name]; exists {
		return fmt.Errorf("strategy %q already registered", name)
	}
	registry[name] = f
	return nil
}

// Registered returns the registered strategy names, sorted.
func Registered() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Build instantiates the named strategies in order. The browser strategy
// is skipped unless browser.enabled is set.
func Build(names []string, deps Deps) ([]Strategy, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	out := make([]Strategy, 0, len(names))
	for _, name := range names {
		f, ok := registry[name]
		if !ok {
			return nil, fmt.Errorf("unknown strategy %q", name)
		}
		if name == NameBrowser && !deps.Config.Browser.Enabled {
			deps.Logger.Debug("strategy skipped", "strategy", name, "reason", types.ErrBrowserDisabled)
			continue
		}
		out = append(out, f(deps))
	}
	return out, nil
}

// expandTag substitutes the URL-escaped service tag into a path template
// and resolves it against origin.
func expandTag(origin, template, tag string) string {
	path := strings.ReplaceAll(template, "{tag}", url.PathEscape(tag))
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return strings.TrimRight(origin, "/") + "/" + strings.TrimLeft(path, "/")
}

// Package retrieval runs one service-tag retrieval end to end: probe the
// strategies, assemble the result document and persist it.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/IshaanNene/driverscout/internal/config"
	"github.com/IshaanNene/driverscout/internal/engine"
	"github.com/IshaanNene/driverscout/internal/fetcher"
	"github.com/IshaanNene/driverscout/internal/observability"
	"github.com/IshaanNene/driverscout/internal/parser"
	"github.com/IshaanNene/driverscout/internal/pipeline"
	"github.com/IshaanNene/driverscout/internal/report"
	"github.com/IshaanNene/driverscout/internal/storage"
	"github.com/IshaanNene/driverscout/internal/strategy"
	"github.com/IshaanNene/driverscout/internal/types"
)

// Result describes one finished retrieval.
type Result struct {
	Document     *types.ResultDocument
	JSONPath     string
	MarkdownPath string
	ArchiveID    string
	TracePath    string

	// Degraded is set when no strategy produced a driver and the document
	// carries only the placeholder record.
	Degraded bool
	Strategy string
	Attempts []types.Attempt
}

// FetcherFactory builds the fetcher for one invocation.
type FetcherFactory func(cfg *config.Config, logger *slog.Logger) (fetcher.Fetcher, error)

// Service performs retrievals. It holds no per-invocation state; every
// Retrieve call builds its own fetcher, browser and trace log.
type Service struct {
	cfg        *config.Config
	metrics    *observability.Metrics
	archive    storage.Storage
	newFetcher FetcherFactory
	now        func() time.Time
	logger     *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithMetrics records retrieval counters.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithArchive stores every document in a secondary backend after the
// file pair is written. Archive failures only produce a warning.
func WithArchive(st storage.Storage) Option {
	return func(s *Service) { s.archive = st }
}

// WithFetcherFactory replaces the HTTP fetcher constructor.
func WithFetcherFactory(f FetcherFactory) Option {
	return func(s *Service) { s.newFetcher = f }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a retrieval service.
func NewService(cfg *config.Config, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		cfg: cfg,
		newFetcher: func(cfg *config.Config, logger *slog.Logger) (fetcher.Fetcher, error) {
			return fetcher.NewHTTPFetcher(cfg, logger)
		},
		now:    time.Now,
		logger: logger.With("component", "retrieval"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Retrieve runs the full pipeline for serviceTag. The tag is kept
// verbatim in the document; a blank tag is rejected. A cancelled ctx
// returns an error and writes nothing.
func (s *Service) Retrieve(ctx context.Context, serviceTag string) (*Result, error) {
	if strings.TrimSpace(serviceTag) == "" {
		return nil, types.ErrEmptyServiceTag
	}
	if s.metrics != nil {
		s.metrics.RetrievalsTotal.Add(1)
	}

	res, err := s.retrieve(ctx, serviceTag)
	if err != nil {
		if s.metrics != nil {
			s.metrics.RetrievalsFailed.Add(1)
		}
		s.logger.Error("retrieval failed", "service_tag", serviceTag, "error", err)
		return nil, err
	}
	return res, nil
}

func (s *Service) retrieve(ctx context.Context, serviceTag string) (*Result, error) {
	now := s.now()
	logger := s.logger.With("service_tag", serviceTag)

	trace, err := observability.OpenTrace(s.cfg.Storage.LogPath, serviceTag, now)
	if err != nil {
		logger.Warn("diagnostic log unavailable", "error", err)
		trace = observability.NopTrace()
	}
	defer trace.Close()
	trace.Event("starting retrieval", "service_tag", serviceTag)

	f, err := s.newFetcher(s.cfg, s.logger)
	if err != nil {
		return nil, fmt.Errorf("create fetcher: %w", err)
	}
	defer f.Close()

	deps := strategy.Deps{
		Config:    s.cfg,
		Fetcher:   observability.InstrumentFetcher(f, s.metrics),
		Extractor: parser.NewExtractor(s.cfg.Upstream.Origin),
		Trace:     trace,
		Logger:    s.logger,
	}
	strategies, err := strategy.Build(s.cfg.Probe.Strategies, deps)
	if err != nil {
		return nil, err
	}

	probe := engine.NewProbe(strategies,
		pipeline.NewNormalizer(s.cfg.Upstream.Origin, s.logger),
		s.cfg.Probe,
		s.logger,
		engine.WithTrace(trace),
		engine.WithMetrics(s.metrics),
	)

	sr, err := probe.Retrieve(ctx, serviceTag)
	if err != nil {
		return nil, fmt.Errorf("probe: %w", err)
	}

	doc := report.Assemble(serviceTag, sr.Product, sr.Records, now, report.Options{
		Origin:      s.cfg.Upstream.Origin,
		DriversPath: s.cfg.Upstream.DriversPath,
	})
	degraded := !sr.Succeeded
	if degraded {
		trace.Event("no driver information found, writing placeholder", "product_name", doc.ProductInfo.ProductName)
		logger.Warn("no driver information found; the website structure may have changed")
		if s.metrics != nil {
			s.metrics.RetrievalsDegraded.Add(1)
		}
	}

	loc, err := s.store(ctx, doc)
	if err != nil {
		trace.Event("failed to save results", "error", err)
		return nil, err
	}
	trace.Event("results saved", "json", loc.JSONPath, "markdown", loc.MarkdownPath)

	logger.Info("retrieval complete",
		"strategy", sr.Strategy,
		"drivers", len(doc.Drivers),
		"degraded", degraded,
		"json", loc.JSONPath,
	)

	return &Result{
		Document:     doc,
		JSONPath:     loc.JSONPath,
		MarkdownPath: loc.MarkdownPath,
		ArchiveID:    loc.ArchiveID,
		TracePath:    trace.Path(),
		Degraded:     degraded,
		Strategy:     sr.Strategy,
		Attempts:     sr.Attempts,
	}, nil
}

func (s *Service) store(ctx context.Context, doc *types.ResultDocument) (storage.Location, error) {
	files, err := storage.NewFileStorage(s.cfg.Storage.OutputPath, s.logger)
	if err != nil {
		return storage.Location{}, err
	}

	var st storage.Storage = files
	if s.archive != nil {
		st = storage.NewMultiStorage(files, []storage.Storage{s.archive}, s.logger)
	}

	loc, err := st.Store(ctx, doc)
	if err != nil {
		return storage.Location{}, err
	}
	if s.metrics != nil {
		s.metrics.DocumentsStored.Add(1)
		s.metrics.ArchiveErrors.Add(int64(len(loc.ArchiveErrors)))
	}
	return loc, nil
}

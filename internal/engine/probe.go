package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/IshaanNene/driverscout/internal/config"
	"github.com/IshaanNene/driverscout/internal/fetcher"
	"github.com/IshaanNene/driverscout/internal/observability"
	"github.com/IshaanNene/driverscout/internal/pipeline"
	"github.com/IshaanNene/driverscout/internal/strategy"
	"github.com/IshaanNene/driverscout/internal/types"
)

// State represents the probe's lifecycle state.
type State int32

const (
	StateIdle      State = 0
	StateProbing   State = 1
	StateSucceeded State = 2
	StateExhausted State = 3
	StateCancelled State = 4
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateProbing:
		return "probing"
	case StateSucceeded:
		return "succeeded"
	case StateExhausted:
		return "exhausted"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Probe runs retrieval strategies in priority order and stops at the first
// one whose records survive normalization. A Probe serves one invocation.
type Probe struct {
	strategies []strategy.Strategy
	normalizer *pipeline.Normalizer
	cfg        config.ProbeConfig
	trace      *observability.Trace
	metrics    *observability.Metrics
	logger     *slog.Logger
	state      atomic.Int32

	// sleep waits between attempts; replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// ProbeOption configures a Probe.
type ProbeOption func(*Probe)

// WithTrace sends strategy events to the diagnostic trace.
func WithTrace(t *observability.Trace) ProbeOption {
	return func(p *Probe) { p.trace = t }
}

// WithMetrics records strategy counters.
func WithMetrics(m *observability.Metrics) ProbeOption {
	return func(p *Probe) { p.metrics = m }
}

// NewProbe creates a probe over strategies, in order.
func NewProbe(strategies []strategy.Strategy, normalizer *pipeline.Normalizer, cfg config.ProbeConfig, logger *slog.Logger, opts ...ProbeOption) *Probe {
	p := &Probe{
		strategies: strategies,
		normalizer: normalizer,
		cfg:        cfg,
		trace:      observability.NopTrace(),
		logger:     logger.With("component", "probe"),
		sleep:      fetcher.Sleep,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// State returns the current probe state.
func (p *Probe) State() State {
	return State(p.state.Load())
}

// Retrieve probes the strategies for serviceTag. Exhausting every strategy
// is not an error: the result comes back with Succeeded false. A cancelled
// ctx is returned as an error at the next strategy boundary.
func (p *Probe) Retrieve(ctx context.Context, serviceTag string) (*types.StrategyResult, error) {
	p.state.Store(int32(StateProbing))
	result := &types.StrategyResult{}

	for i, s := range p.strategies {
		if err := ctx.Err(); err != nil {
			return nil, p.cancelled(err)
		}

		if i > 0 {
			delay := fetcher.RandomDelayBetween(p.cfg.MinDelay, p.cfg.MaxDelay)
			p.logger.Debug("waiting before next strategy", "strategy", s.Name(), "delay", delay)
			if err := p.sleep(ctx, delay); err != nil {
				return nil, p.cancelled(err)
			}
		}

		p.trace.Event("trying strategy", "strategy", s.Name(), "position", i+1)
		attempt, records := p.attempt(ctx, s, serviceTag, result)

		if err := ctx.Err(); err != nil {
			return nil, p.cancelled(err)
		}

		result.Attempts = append(result.Attempts, attempt)
		if p.metrics != nil {
			p.metrics.StrategyAttempts.Add(1)
			p.metrics.RecordsDropped.Add(int64(attempt.Dropped))
		}

		if attempt.Succeeded() {
			result.Records = records
			result.Succeeded = true
			result.Strategy = s.Name()
			p.state.Store(int32(StateSucceeded))
			if p.metrics != nil {
				p.metrics.StrategySuccesses.Add(1)
				p.metrics.RecordsNormalized.Add(int64(len(records)))
			}
			p.trace.Event("strategy succeeded", "strategy", s.Name(), "records", len(records), "dropped", attempt.Dropped)
			p.logger.Info("strategy succeeded",
				"strategy", s.Name(),
				"records", len(records),
				"dropped", attempt.Dropped,
				"duration", attempt.Duration,
			)
			return result, nil
		}

		if p.metrics != nil {
			p.metrics.StrategyFailures.Add(1)
		}
		p.trace.Event("strategy failed", "strategy", s.Name(), "error", attempt.Err)
		p.logger.Warn("strategy failed, falling through",
			"strategy", s.Name(),
			"error", attempt.Err,
			"duration", attempt.Duration,
		)
	}

	p.state.Store(int32(StateExhausted))
	p.trace.Event("all strategies exhausted", "attempts", len(result.Attempts))
	p.logger.Warn("all strategies exhausted", "service_tag", serviceTag, "attempts", len(result.Attempts))
	return result, nil
}

// attempt runs one strategy under the per-strategy timeout and normalizes
// a success outcome. Product info is merged into result either way.
func (p *Probe) attempt(ctx context.Context, s strategy.Strategy, serviceTag string, result *types.StrategyResult) (types.Attempt, []types.DriverRecord) {
	sctx := ctx
	if p.cfg.StrategyTimeout > 0 {
		var cancel context.CancelFunc
		sctx, cancel = context.WithTimeout(ctx, p.cfg.StrategyTimeout)
		defer cancel()
	}

	start := time.Now()
	out := s.Retrieve(sctx, serviceTag)
	attempt := types.Attempt{Strategy: s.Name(), Duration: time.Since(start)}

	result.Product = result.Product.Merge(out.Product)

	if out.Kind != strategy.OutcomeSuccess {
		attempt.Err = out.Err
		if attempt.Err == nil {
			attempt.Err = &types.StrategyError{Strategy: s.Name(), Err: errors.New("failed without a reason")}
		}
		return attempt, nil
	}

	records, dropped := p.normalizer.NormalizeAll(out.Records, out.Schema)
	attempt.Records = len(records)
	attempt.Dropped = dropped
	if len(records) == 0 {
		attempt.Err = &types.StrategyError{Strategy: s.Name(), Err: types.ErrNoRecords}
		return attempt, nil
	}
	return attempt, records
}

func (p *Probe) cancelled(err error) error {
	p.state.Store(int32(StateCancelled))
	p.trace.Event("retrieval cancelled", "error", err)
	p.logger.Warn("retrieval cancelled", "error", err)
	return err
}

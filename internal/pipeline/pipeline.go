package pipeline

import (
	"log/slog"
	"strings"

	"github.com/IshaanNene/driverscout/internal/types"
)

// Middleware processes a record and returns the (possibly modified) record.
// Return nil to drop the record from the pipeline.
type Middleware interface {
	// Name returns the middleware's identifier.
	Name() string

	// Process transforms a record. Return nil to drop the record.
	Process(rec *types.RawRecord) (*types.RawRecord, error)
}

// Pipeline chains middleware processors together.
type Pipeline struct {
	middlewares []Middleware
	logger      *slog.Logger
}

// New creates a new Pipeline.
func New(logger *slog.Logger) *Pipeline {
	return &Pipeline{
		logger: logger.With("component", "pipeline"),
	}
}

// Use adds a middleware to the pipeline chain.
func (p *Pipeline) Use(mw Middleware) {
	p.middlewares = append(p.middlewares, mw)
}

// Process runs the record through all middleware in order.
func (p *Pipeline) Process(rec *types.RawRecord) (*types.RawRecord, error) {
	current := rec

	for _, mw := range p.middlewares {
		result, err := mw.Process(current)
		if err != nil {
			return nil, &types.PipelineError{
				Stage:  mw.Name(),
				Record: current,
				Err:    err,
			}
		}
		if result == nil {
			return nil, nil
		}
		current = result
	}

	return current, nil
}

// Len returns the number of middleware in the chain.
func (p *Pipeline) Len() int {
	return len(p.middlewares)
}

// Stages returns middleware names in execution order.
func (p *Pipeline) Stages() []string {
	names := make([]string, len(p.middlewares))
	for i, mw := range p.middlewares {
		names[i] = mw.Name()
	}
	return names
}

// --- Built-in Middleware ---

// RequiredFieldsMiddleware drops records missing required fields.
type RequiredFieldsMiddleware struct {
	Fields []string
}

func (m *RequiredFieldsMiddleware) Name() string { return "required_fields" }

func (m *RequiredFieldsMiddleware) Process(rec *types.RawRecord) (*types.RawRecord, error) {
	for _, field := range m.Fields {
		if !rec.Has(field) {
			return nil, nil
		}
	}
	return rec, nil
}

// TrimMiddleware trims whitespace from all fields and removes blank ones.
// Invalid UTF-8 sequences are replaced with U+FFFD.
type TrimMiddleware struct{}

func (m *TrimMiddleware) Name() string { return "trim" }

func (m *TrimMiddleware) Process(rec *types.RawRecord) (*types.RawRecord, error) {
	for _, key := range rec.Keys() {
		s := strings.TrimSpace(strings.ToValidUTF8(rec.GetString(key), "\uFFFD"))
		if s == "" {
			rec.Delete(key)
			continue
		}
		rec.Set(key, s)
	}
	return rec, nil
}

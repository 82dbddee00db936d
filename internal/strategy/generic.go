package strategy

import (
	"context"
	"log/slog"

	"github.com/IshaanNene/driverscout/internal/parser"
	"github.com/IshaanNene/driverscout/internal/pipeline"
	"github.com/IshaanNene/driverscout/internal/types"
)

// GenericStrategy is the last resort: it scrapes anything on the drivers
// page that looks like a driver entry, then falls back to JSON-LD
// software entries embedded in the page.
type GenericStrategy struct {
	deps   Deps
	logger *slog.Logger
}

// NewGenericStrategy creates the loose markup fallback.
func NewGenericStrategy(deps Deps) *GenericStrategy {
	return &GenericStrategy{
		deps:   deps,
		logger: deps.Logger.With("component", "generic_strategy"),
	}
}

func (s *GenericStrategy) Name() string { return NameGeneric }

func (s *GenericStrategy) Retrieve(ctx context.Context, serviceTag string) Outcome {
	resp, err := fetchPage(ctx, s.deps, NameGeneric, serviceTag)
	if err != nil {
		return Failure(NameGeneric, err, types.ProductInfo{})
	}

	doc, err := resp.Document()
	if err != nil {
		return Failure(NameGeneric, &types.ParseError{URL: resp.FinalURL, Err: err}, types.ProductInfo{})
	}
	product := productFromDocument(doc)

	rows := doc.Find(LooseRowSelector)
	s.deps.Trace.Event("scanning loose driver items", "strategy", NameGeneric, "candidates", rows.Length())

	var named []*types.RawRecord
	for _, rec := range extractRows(s.deps.Extractor, rows, NameGeneric) {
		if rec.Has(types.FieldName) {
			named = append(named, rec)
		}
	}
	if len(named) > 0 {
		return Success(named, pipeline.MarkupSchema, product)
	}

	entries := parser.SoftwareEntries(parser.ExtractStructured(doc))
	if len(entries) == 0 {
		return Failure(NameGeneric, types.ErrNoRecords, product)
	}

	s.deps.Trace.Event("using embedded software entries", "strategy", NameGeneric, "entries", len(entries))
	records := make([]*types.RawRecord, 0, len(entries))
	for _, entry := range entries {
		rec := types.NewRawRecord(NameGeneric)
		for k, v := range entry {
			rec.Set(k, v)
		}
		records = append(records, rec)
	}
	return Success(records, pipeline.SoftwareSchema, product)
}

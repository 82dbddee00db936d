package pipeline

import (
	"log/slog"
	"sync"

	"github.com/IshaanNene/driverscout/internal/types"
)

// Normalizer turns raw strategy records into canonical DriverRecords.
//
// Each schema gets its own pipeline:
//
//	alias -> trim -> html_sanitize -> absolute_url -> required_fields
//
// A record is dropped when its resolved name is empty.
type Normalizer struct {
	origin string
	logger *slog.Logger

	mu        sync.Mutex
	pipelines map[string]*Pipeline
}

// NewNormalizer creates a Normalizer that resolves links against origin.
func NewNormalizer(origin string, logger *slog.Logger) *Normalizer {
	return &Normalizer{
		origin:    origin,
		logger:    logger.With("component", "normalizer"),
		pipelines: make(map[string]*Pipeline),
	}
}

// Normalize canonicalizes one record. ok is false when the record is dropped.
func (n *Normalizer) Normalize(raw *types.RawRecord, schema Schema) (*types.DriverRecord, bool) {
	if raw == nil {
		return nil, false
	}
	out, err := n.pipelineFor(schema).Process(raw.Clone())
	if err != nil || out == nil {
		return nil, false
	}
	rec := toDriverRecord(out)
	return &rec, true
}

// NormalizeAll canonicalizes records in order and reports how many were dropped.
func (n *Normalizer) NormalizeAll(raws []*types.RawRecord, schema Schema) ([]types.DriverRecord, int) {
	records := make([]types.DriverRecord, 0, len(raws))
	dropped := 0
	for _, raw := range raws {
		rec, ok := n.Normalize(raw, schema)
		if !ok {
			dropped++
			continue
		}
		records = append(records, *rec)
	}
	return records, dropped
}

func (n *Normalizer) pipelineFor(schema Schema) *Pipeline {
	n.mu.Lock()
	defer n.mu.Unlock()

	if p, ok := n.pipelines[schema.Name]; ok {
		return p
	}

	p := New(n.logger)
	p.Use(NewAliasMiddleware(schema))
	p.Use(&TrimMiddleware{})
	p.Use(NewHTMLSanitizeMiddleware(types.FieldName, types.FieldDescription))
	p.Use(&AbsoluteURLMiddleware{Origin: n.origin, Fields: []string{types.FieldDownloadURL}})
	p.Use(&RequiredFieldsMiddleware{Fields: []string{types.FieldName}})
	n.pipelines[schema.Name] = p

	n.logger.Debug("pipeline built", "schema", schema.Name, "stages", p.Stages())
	return p
}

func toDriverRecord(rec *types.RawRecord) types.DriverRecord {
	return types.DriverRecord{
		Name:        rec.GetString(types.FieldName),
		Category:    rec.GetString(types.FieldCategory),
		Version:     rec.GetString(types.FieldVersion),
		ReleaseDate: rec.GetString(types.FieldReleaseDate),
		Importance:  rec.GetString(types.FieldImportance),
		Description: rec.GetString(types.FieldDescription),
		DownloadURL: rec.GetString(types.FieldDownloadURL),
	}
}

package strategy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/IshaanNene/driverscout/internal/parser"
	"github.com/IshaanNene/driverscout/internal/pipeline"
	"github.com/IshaanNene/driverscout/internal/types"
)

// listKeys are the object keys under which driver-list payloads nest
// their entries.
var listKeys = []string{"DriverListData", "driverListData", "Drivers", "drivers", "data", "items", "results"}

// productRules read product info from a flattened driver-list payload.
var productRules = parser.RuleSet{
	{Field: "product_name", Rules: []parser.Rule{
		parser.Key("ProductName"), parser.Key("productName"), parser.Key("ProductDescription"), parser.Key("product.name"),
	}},
	{Field: "product_line", Rules: []parser.Rule{
		parser.Key("ProductLine"), parser.Key("productLine"), parser.Key("ProductFamily"), parser.Key("product.line"),
	}},
	{Field: "system_config", Rules: []parser.Rule{
		parser.Key("SystemConfiguration"), parser.Key("systemConfig"), parser.Key("OperatingSystem"), parser.Key("product.systemConfig"),
	}},
}

// APIStrategy queries the structured JSON endpoints of the support site.
// Endpoints are tried in order; the first that yields a named entry wins.
type APIStrategy struct {
	deps   Deps
	logger *slog.Logger
}

// NewAPIStrategy creates the structured-endpoint strategy.
func NewAPIStrategy(deps Deps) *APIStrategy {
	return &APIStrategy{
		deps:   deps,
		logger: deps.Logger.With("component", "api_strategy"),
	}
}

func (s *APIStrategy) Name() string { return NameAPI }

func (s *APIStrategy) Retrieve(ctx context.Context, serviceTag string) Outcome {
	if s.deps.Fetcher == nil {
		return Failure(NameAPI, types.ErrNoFetcher, types.ProductInfo{})
	}

	var (
		product types.ProductInfo
		errs    []error
	)
	for _, tmpl := range s.deps.Config.Upstream.APIEndpoints {
		if err := ctx.Err(); err != nil {
			return Failure(NameAPI, err, product)
		}

		endpoint := expandTag(s.deps.Config.Upstream.Origin, tmpl, serviceTag)
		records, p, err := s.query(ctx, endpoint)
		product = product.Merge(p)
		if err != nil {
			s.deps.Trace.Event("api endpoint failed", "url", endpoint, "error", err)
			s.logger.Debug("api endpoint failed", "url", endpoint, "error", err)
			errs = append(errs, err)
			continue
		}

		s.deps.Trace.Event("api endpoint returned entries", "url", endpoint, "entries", len(records))
		return Success(records, pipeline.APISchema, product)
	}

	if len(errs) == 0 {
		return Failure(NameAPI, errors.New("no api endpoints configured"), product)
	}
	return Failure(NameAPI, errors.Join(errs...), product)
}

func (s *APIStrategy) query(ctx context.Context, endpoint string) ([]*types.RawRecord, types.ProductInfo, error) {
	req, err := types.NewRequest(endpoint)
	if err != nil {
		return nil, types.ProductInfo{}, err
	}
	req.Strategy = NameAPI
	req.Headers.Set("Accept", "application/json, text/plain, */*")
	req.Headers.Set("X-Requested-With", "XMLHttpRequest")

	resp, err := s.deps.Fetcher.Fetch(ctx, req)
	if err != nil {
		return nil, types.ProductInfo{}, err
	}

	var payload any
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return nil, types.ProductInfo{}, &types.ParseError{URL: endpoint, Err: fmt.Errorf("decode json: %w", err)}
	}

	entries, product := s.entries(payload)
	if len(entries) == 0 {
		return nil, product, &types.ParseError{URL: endpoint, Err: types.ErrNoRecords}
	}

	records := make([]*types.RawRecord, 0, len(entries))
	named := 0
	for _, entry := range entries {
		rec := types.NewRawRecord(NameAPI)
		for k, v := range parser.Flatten(entry) {
			rec.Set(k, v)
		}
		if pipeline.APISchema.HasName(rec) {
			named++
		}
		records = append(records, rec)
	}
	if named == 0 {
		return nil, product, &types.ParseError{URL: endpoint, Err: fmt.Errorf("%d entries without a name: %w", len(entries), types.ErrNoRecords)}
	}
	return records, product, nil
}

// entries locates the list of driver objects in a payload. The payload is
// either the list itself or an object holding it under one of listKeys.
func (s *APIStrategy) entries(payload any) ([]map[string]any, types.ProductInfo) {
	switch v := payload.(type) {
	case []any:
		return objects(v), types.ProductInfo{}
	case map[string]any:
		product := s.product(v)
		for _, key := range listKeys {
			if list, ok := v[key].([]any); ok {
				return objects(list), product
			}
		}
		return nil, product
	default:
		return nil, types.ProductInfo{}
	}
}

func (s *APIStrategy) product(v map[string]any) types.ProductInfo {
	top := make(map[string]any, len(v))
	for k, val := range v {
		if _, isList := val.([]any); !isList {
			top[k] = val
		}
	}
	rec := s.deps.Extractor.ExtractRecord(parser.FromFields(parser.Flatten(top)), productRules, NameAPI)
	return types.ProductInfo{
		ProductName:  rec.GetString("product_name"),
		ProductLine:  rec.GetString("product_line"),
		SystemConfig: rec.GetString("system_config"),
	}
}

func objects(list []any) []map[string]any {
	out := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if obj, ok := item.(map[string]any); ok {
			out = append(out, obj)
		}
	}
	return out
}

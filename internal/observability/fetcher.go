package observability

import (
	"context"

	"github.com/IshaanNene/driverscout/internal/fetcher"
	"github.com/IshaanNene/driverscout/internal/types"
)

// instrumentedFetcher counts requests and bytes for a wrapped Fetcher.
type instrumentedFetcher struct {
	fetcher.Fetcher
	metrics *Metrics
}

// InstrumentFetcher wraps f so every Fetch updates m.
func InstrumentFetcher(f fetcher.Fetcher, m *Metrics) fetcher.Fetcher {
	if m == nil {
		return f
	}
	return &instrumentedFetcher{Fetcher: f, metrics: m}
}

func (f *instrumentedFetcher) Fetch(ctx context.Context, req *types.Request) (*types.Response, error) {
	f.metrics.RequestsTotal.Add(1)
	resp, err := f.Fetcher.Fetch(ctx, req)
	if err != nil {
		f.metrics.RequestsFailed.Add(1)
		return nil, err
	}
	f.metrics.BytesDownloaded.Add(int64(len(resp.Body)))
	return resp, nil
}

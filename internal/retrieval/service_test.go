package retrieval

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IshaanNene/driverscout/internal/config"
	"github.com/IshaanNene/driverscout/internal/observability"
	"github.com/IshaanNene/driverscout/internal/report"
	"github.com/IshaanNene/driverscout/internal/storage"
	"github.com/IshaanNene/driverscout/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

var fixedNow = time.Date(2024, 5, 1, 13, 4, 5, 0, time.UTC)

func testConfig(t *testing.T, origin string) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Upstream.Origin = origin
	cfg.Upstream.DriversPath = "/drivers/{tag}"
	cfg.Upstream.APIEndpoints = []string{"/api/drivers/{tag}"}
	cfg.Probe.MinDelay = 0
	cfg.Probe.MaxDelay = 0
	cfg.Probe.StrategyTimeout = 5 * time.Second
	cfg.Storage.OutputPath = filepath.Join(t.TempDir(), "data")
	cfg.Storage.LogPath = filepath.Join(t.TempDir(), "logs")
	return cfg
}

func newUpstream(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func newService(cfg *config.Config, opts ...Option) *Service {
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return NewService(cfg, testLogger, opts...)
}

func TestRetrieveAllStrategiesFail(t *testing.T) {
	srv := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
	})
	cfg := testConfig(t, srv.URL)
	m := observability.NewMetrics(testLogger)

	res, err := newService(cfg, WithMetrics(m)).Retrieve(context.Background(), "ABC123")
	require.NoError(t, err)

	assert.True(t, res.Degraded)
	require.Len(t, res.Document.Drivers, 1)
	placeholder := res.Document.Drivers[0]
	assert.Equal(t, report.PlaceholderName, placeholder.Name)
	assert.Contains(t, placeholder.DownloadURL, "ABC123")
	assert.Equal(t, types.DefaultProductName, res.Document.ProductInfo.ProductName)
	assert.Len(t, res.Attempts, 3, "api, markup and generic; browser is disabled")

	data, err := os.ReadFile(res.JSONPath)
	require.NoError(t, err)
	doc, err := report.DecodeJSON(data)
	require.NoError(t, err)
	assert.Equal(t, res.Document, doc)

	md, err := os.ReadFile(res.MarkdownPath)
	require.NoError(t, err)
	assert.Contains(t, string(md), "### 1. Dell Support Website")

	trace, err := os.ReadFile(res.TracePath)
	require.NoError(t, err)
	assert.Contains(t, string(trace), "all strategies exhausted")
	assert.Equal(t, filepath.Join(cfg.Storage.LogPath, "ABC123_20240501_130405.log"), res.TracePath)

	assert.EqualValues(t, 1, m.RetrievalsTotal.Load())
	assert.EqualValues(t, 1, m.RetrievalsDegraded.Load())
	assert.EqualValues(t, 1, m.DocumentsStored.Load())
	assert.EqualValues(t, 3, m.StrategyFailures.Load())
	assert.Positive(t, m.RequestsFailed.Load())
}

func TestRetrieveDropsNamelessAPIRecords(t *testing.T) {
	srv := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/drivers/ABC123" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"ProductName": "Latitude 7420", "DriverListData": [
			{"DriverName": "Intel Chipset Driver", "Category": "Chipset", "DellVer": "10.1.18",
			 "FileFrmtInfo": {"HttpFileLocation": "/drivers/chipset.exe"}},
			{"Category": "Audio", "DellVer": "6.0.9"}
		]}`)
	})
	cfg := testConfig(t, srv.URL)

	res, err := newService(cfg).Retrieve(context.Background(), "ABC123")
	require.NoError(t, err)

	assert.False(t, res.Degraded)
	assert.Equal(t, "api", res.Strategy)
	require.Len(t, res.Document.Drivers, 1)
	assert.Equal(t, types.DriverRecord{
		Name:        "Intel Chipset Driver",
		Category:    "Chipset",
		Version:     "10.1.18",
		DownloadURL: srv.URL + "/drivers/chipset.exe",
	}, res.Document.Drivers[0])
	assert.Equal(t, "Latitude 7420", res.Document.ProductInfo.ProductName)
	require.Len(t, res.Attempts, 1)
	assert.Equal(t, 1, res.Attempts[0].Dropped)
}

func TestRetrieveMarkdownWithoutDescription(t *testing.T) {
	page := `<html><body><h1 class="dds__mb-0">OptiPlex 7010</h1>
<table class="drivers-table"><tbody>
<tr><td>Realtek Audio Driver</td><td>Audio</td></tr>
</tbody></table></body></html>`
	srv := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/drivers/ABC123" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = io.WriteString(w, page)
	})
	cfg := testConfig(t, srv.URL)

	res, err := newService(cfg).Retrieve(context.Background(), "ABC123")
	require.NoError(t, err)
	assert.Equal(t, "markup", res.Strategy)

	md, err := os.ReadFile(res.MarkdownPath)
	require.NoError(t, err)
	text := string(md)
	assert.Contains(t, text, "## Product: OptiPlex 7010")
	assert.Contains(t, text, "### 1. Realtek Audio Driver")
	assert.Contains(t, text, "**Category:** Audio")
	assert.Contains(t, text, "**Version:** N/A")
	assert.NotContains(t, text, "**Description:**")
	assert.NotContains(t, text, "**Download URL:**")
}

func TestRetrieveRejectsBlankTag(t *testing.T) {
	cfg := testConfig(t, "https://example.invalid")
	for _, tag := range []string{"", "   ", "\t\n"} {
		_, err := newService(cfg).Retrieve(context.Background(), tag)
		assert.ErrorIs(t, err, types.ErrEmptyServiceTag, "tag %q", tag)
	}
}

func TestRetrieveCancelledWritesNothing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	srv := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		cancel()
		http.Error(w, "nope", http.StatusBadGateway)
	})
	cfg := testConfig(t, srv.URL)

	_, err := newService(cfg).Retrieve(ctx, "ABC123")
	require.ErrorIs(t, err, context.Canceled)

	for _, dir := range []string{"json", "markdown"} {
		entries, _ := os.ReadDir(filepath.Join(cfg.Storage.OutputPath, dir))
		assert.Empty(t, entries, dir)
	}
}

type failingArchive struct{ calls int }

func (f *failingArchive) Store(context.Context, *types.ResultDocument) (storage.Location, error) {
	f.calls++
	return storage.Location{}, &types.StorageError{Backend: "mongodb", Err: errors.New("no reachable servers")}
}
func (f *failingArchive) Close() error { return nil }
func (f *failingArchive) Name() string { return "mongodb" }

func TestRetrieveArchiveFailureIsWarning(t *testing.T) {
	srv := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	cfg := testConfig(t, srv.URL)
	m := observability.NewMetrics(testLogger)
	archive := &failingArchive{}

	res, err := newService(cfg, WithArchive(archive), WithMetrics(m)).Retrieve(context.Background(), "ABC123")
	require.NoError(t, err)
	assert.Equal(t, 1, archive.calls)
	assert.FileExists(t, res.JSONPath)
	assert.FileExists(t, res.MarkdownPath)
	assert.Empty(t, res.ArchiveID)
	assert.EqualValues(t, 1, m.ArchiveErrors.Load())
}

func TestRetrieveTwiceDoesNotOverwrite(t *testing.T) {
	srv := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	cfg := testConfig(t, srv.URL)
	svc := newService(cfg)

	first, err := svc.Retrieve(context.Background(), "ABC 123")
	require.NoError(t, err)
	second, err := svc.Retrieve(context.Background(), "ABC 123")
	require.NoError(t, err)

	assert.NotEqual(t, first.JSONPath, second.JSONPath)
	assert.True(t, strings.HasPrefix(filepath.Base(first.JSONPath), "ABC_123_"))
	assert.Equal(t, "ABC 123", second.Document.ServiceTag, "tag is kept verbatim")
}

package observability

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IshaanNene/driverscout/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

var traceLine = regexp.MustCompile(`^\[\d{4}-\d{2}-\d{2}T[^\]]+\] `)

func TestTraceLineFormat(t *testing.T) {
	var buf bytes.Buffer
	tr := NewTrace(&buf)

	tr.Event("strategy failed", "strategy", "api", "error", errors.New("HTTP 404"))
	tr.Event("probe exhausted")

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	for _, line := range lines {
		assert.Regexp(t, traceLine, line)
	}
	assert.Contains(t, lines[0], "strategy failed")
	assert.Contains(t, lines[0], "strategy=api")
	assert.Contains(t, lines[0], "HTTP 404")
	assert.NotContains(t, lines[0], "INF")
	assert.True(t, strings.HasSuffix(lines[1], "probe exhausted"))
}

func TestOpenTraceSavesArtifacts(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2024, 3, 9, 13, 5, 7, 0, time.UTC)

	tr, err := OpenTrace(dir, "ABC 123", now)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "ABC_123_20240309_130507.log"), tr.Path())

	tr.Event("retrieval started", "service_tag", "ABC 123")
	artifact, err := tr.SaveArtifact("page.html", []byte("<html></html>"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "ABC_123_20240309_130507_page.html"), artifact)
	require.NoError(t, tr.Close())

	data, err := os.ReadFile(tr.Path())
	require.NoError(t, err)
	assert.Contains(t, string(data), "retrieval started")
	assert.Contains(t, string(data), "debug artifact saved")
}

func TestOpenTraceSameSecondGetsOwnFile(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2024, 3, 9, 13, 5, 7, 0, time.UTC)

	first, err := OpenTrace(dir, "ABC123", now)
	require.NoError(t, err)
	defer first.Close()
	second, err := OpenTrace(dir, "ABC123", now.Add(300*time.Millisecond))
	require.NoError(t, err)
	defer second.Close()

	assert.Equal(t, filepath.Join(dir, "ABC123_20240309_130507.log"), first.Path())
	assert.Equal(t, filepath.Join(dir, "ABC123_20240309_130507_2.log"), second.Path())

	first.Event("first invocation")
	second.Event("second invocation")

	firstPage, err := first.SaveArtifact("page.html", []byte("first page"))
	require.NoError(t, err)
	secondPage, err := second.SaveArtifact("page.html", []byte("second page"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "ABC123_20240309_130507_2_page.html"), secondPage)

	data, err := os.ReadFile(firstPage)
	require.NoError(t, err)
	assert.Equal(t, "first page", string(data))

	log, err := os.ReadFile(first.Path())
	require.NoError(t, err)
	assert.Contains(t, string(log), "first invocation")
	assert.NotContains(t, string(log), "second invocation")
}

func TestSaveArtifactNeverOverwrites(t *testing.T) {
	dir := t.TempDir()
	tr, err := OpenTrace(dir, "ABC123", time.Date(2024, 3, 9, 13, 5, 7, 0, time.UTC))
	require.NoError(t, err)
	defer tr.Close()

	a, err := tr.SaveArtifact("browser_screenshot.png", []byte("one"))
	require.NoError(t, err)
	b, err := tr.SaveArtifact("browser_screenshot.png", []byte("two"))
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "ABC123_20240309_130507_browser_screenshot_2.png"), b)
	data, err := os.ReadFile(a)
	require.NoError(t, err)
	assert.Equal(t, "one", string(data))
}

func TestNopTraceIsSafe(t *testing.T) {
	var tr *Trace
	tr.Event("ignored")
	assert.NoError(t, tr.Close())

	nop := NopTrace()
	nop.Event("ignored", "k", "v")
	path, err := nop.SaveArtifact("x.png", []byte{1})
	assert.NoError(t, err)
	assert.Empty(t, path)
}

func TestMetricsExposition(t *testing.T) {
	m := NewMetrics(testLogger)
	m.RetrievalsTotal.Add(2)
	m.RetrievalsDegraded.Add(1)

	rec := httptest.NewRecorder()
	m.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	assert.Contains(t, body, "driverscout_retrievals_total 2\n")
	assert.Contains(t, body, "# TYPE driverscout_retrievals_degraded_total counter")
	assert.Equal(t, int64(1), m.Snapshot()["retrievals_degraded"])
}

type stubFetcher struct {
	body []byte
	err  error
}

func (s stubFetcher) Fetch(ctx context.Context, req *types.Request) (*types.Response, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &types.Response{StatusCode: 200, Body: s.body, Request: req}, nil
}
func (s stubFetcher) Close() error { return nil }
func (s stubFetcher) Type() string { return "stub" }

func TestInstrumentFetcher(t *testing.T) {
	m := NewMetrics(testLogger)
	req, err := types.NewRequest("https://example.com/x")
	require.NoError(t, err)

	ok := InstrumentFetcher(stubFetcher{body: []byte("12345")}, m)
	_, err = ok.Fetch(context.Background(), req)
	require.NoError(t, err)

	bad := InstrumentFetcher(stubFetcher{err: errors.New("down")}, m)
	_, err = bad.Fetch(context.Background(), req)
	require.Error(t, err)

	assert.Equal(t, int64(2), m.RequestsTotal.Load())
	assert.Equal(t, int64(1), m.RequestsFailed.Load())
	assert.Equal(t, int64(5), m.BytesDownloaded.Load())
	assert.Equal(t, "stub", ok.Type())
}

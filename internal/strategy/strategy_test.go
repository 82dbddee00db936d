package strategy

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
	"github.com/IshaanNene/driverscout/internal/fetcher"
	"github.com/IshaanNene/driverscout/internal/observability"
	"github.com/IshaanNene/driverscout/internal/parser"
	"github.com/IshaanNene/driverscout/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

const driversPage = `<html><head><title>Support | Dell</title></head><body>
<h1 class="dds__mb-0">Latitude 7420</h1>
<table class="drivers-table">
  <thead><tr><th>Name</th><th>Category</th></tr></thead>
  <tbody>
    <tr>
      <td><span class="driver-name-title">Intel Chipset Driver</span></td>
      <td class="driver-category">Chipset</td>
      <td>10.1.18</td>
      <td>01 May 2024</td>
      <td>Recommended</td>
      <td><a class="driver-download-btn" href="/drivers/chipset.exe">Download</a></td>
    </tr>
    <tr>
      <td>Realtek Audio Driver</td>
      <td>Audio</td>
      <td>6.0.9</td>
      <td>02 May 2024</td>
      <td>Urgent</td>
      <td>Fixes crackling.</td>
    </tr>
  </tbody>
</table>
</body></html>`

type upstream struct {
	srv  *httptest.Server
	hits map[string]int
}

func newUpstream(t *testing.T, routes map[string]func(w http.ResponseWriter, r *http.Request)) *upstream {
	t.Helper()
	u := &upstream{hits: make(map[string]int)}
	u.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.hits[r.URL.Path]++
		if h, ok := routes[r.URL.Path]; ok {
			h(w, r)
			return
		}
		http.NotFound(w, r)
	}))
	t.Cleanup(u.srv.Close)
	return u
}

func html(body string) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(w, body)
	}
}

func jsonBody(body string) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}
}

func testDeps(t *testing.T, origin string, trace *observability.Trace) Deps {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Upstream.Origin = origin
	cfg.Upstream.DriversPath = "/drivers/{tag}"
	cfg.Upstream.APIEndpoints = []string{"/api/one?tag={tag}", "/api/two/{tag}"}

	f, err := fetcher.NewHTTPFetcher(cfg, testLogger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })

	if trace == nil {
		trace = observability.NopTrace()
	}
	return Deps{
		Config:    cfg,
		Fetcher:   f,
		Extractor: parser.NewExtractor(origin),
		Trace:     trace,
		Logger:    testLogger,
	}
}

func TestAPIStrategy(t *testing.T) {
	up := newUpstream(t, map[string]func(http.ResponseWriter, *http.Request){
		"/api/two/ABC123": jsonBody(`{
			"ProductName": "Latitude 7420",
			"ProductLine": "Latitude",
			"DriverListData": [
				{"DriverName": "Intel Chipset Driver", "DellVer": "10.1.18", "FileFrmtInfo": {"HttpFileLocation": "/drivers/chipset.exe"}},
				{"Category": "Audio"}
			]
		}`),
	})
	deps := testDeps(t, up.srv.URL, nil)

	out := NewAPIStrategy(deps).Retrieve(context.Background(), "ABC123")
	require.Equal(t, OutcomeSuccess, out.Kind, "err: %v", out.Err)
	assert.Equal(t, "api", out.Schema.Name)
	require.Len(t, out.Records, 2)
	assert.Equal(t, "Intel Chipset Driver", out.Records[0].GetString("DriverName"))
	assert.Equal(t, "/drivers/chipset.exe", out.Records[0].GetString("FileFrmtInfo.HttpFileLocation"))
	assert.Equal(t, "Latitude 7420", out.Product.ProductName)
	assert.Equal(t, "Latitude", out.Product.ProductLine)

	assert.Equal(t, 1, up.hits["/api/one"], "first endpoint is tried first")
	assert.Equal(t, 1, up.hits["/api/two/ABC123"])
}

func TestAPIStrategyTopLevelArray(t *testing.T) {
	up := newUpstream(t, map[string]func(http.ResponseWriter, *http.Request){
		"/api/one": jsonBody(`[{"name": "BIOS", "version": "1.2"}]`),
	})
	out := NewAPIStrategy(testDeps(t, up.srv.URL, nil)).Retrieve(context.Background(), "ABC123")
	require.Equal(t, OutcomeSuccess, out.Kind)
	require.Len(t, out.Records, 1)
	assert.Equal(t, "BIOS", out.Records[0].GetString("name"))
	assert.Zero(t, up.hits["/api/two/ABC123"])
}

func TestAPIStrategySkipsEndpointWithoutNames(t *testing.T) {
	up := newUpstream(t, map[string]func(http.ResponseWriter, *http.Request){
		"/api/one":        jsonBody(`{"ProductName": "OptiPlex 7090", "drivers": [{"Category": "Audio"}, {"version": "2.0"}]}`),
		"/api/two/ABC123": jsonBody(`[{"DriverName": "BIOS", "DellVer": "1.2"}]`),
	})
	out := NewAPIStrategy(testDeps(t, up.srv.URL, nil)).Retrieve(context.Background(), "ABC123")
	require.Equal(t, OutcomeSuccess, out.Kind, "err: %v", out.Err)
	require.Len(t, out.Records, 1)
	assert.Equal(t, "BIOS", out.Records[0].GetString("DriverName"))
	assert.Equal(t, "OptiPlex 7090", out.Product.ProductName, "product from the skipped endpoint is kept")
	assert.Equal(t, 1, up.hits["/api/two/ABC123"])
}

func TestAPIStrategyOnlyNamelessEntries(t *testing.T) {
	up := newUpstream(t, map[string]func(http.ResponseWriter, *http.Request){
		"/api/one":        jsonBody(`[{"Category": "Audio"}]`),
		"/api/two/ABC123": jsonBody(`[{"Category": "Video"}]`),
	})
	out := NewAPIStrategy(testDeps(t, up.srv.URL, nil)).Retrieve(context.Background(), "ABC123")
	require.Equal(t, OutcomeFailure, out.Kind)
	assert.ErrorIs(t, out.Err, types.ErrNoRecords)
}

func TestAPIStrategyAllEndpointsFail(t *testing.T) {
	up := newUpstream(t, map[string]func(http.ResponseWriter, *http.Request){
		"/api/one": jsonBody(`not json`),
	})
	out := NewAPIStrategy(testDeps(t, up.srv.URL, nil)).Retrieve(context.Background(), "ABC123")
	require.Equal(t, OutcomeFailure, out.Kind)

	var serr *types.StrategyError
	require.True(t, errors.As(out.Err, &serr))
	assert.Equal(t, NameAPI, serr.Strategy)

	var perr *types.ParseError
	assert.True(t, errors.As(out.Err, &perr), "decode failure is reported")
	var ferr *types.FetchError
	assert.True(t, errors.As(out.Err, &ferr), "404 is reported")
}

func TestMarkupStrategy(t *testing.T) {
	up := newUpstream(t, map[string]func(http.ResponseWriter, *http.Request){
		"/drivers/ABC123": html(driversPage),
	})
	out := NewMarkupStrategy(testDeps(t, up.srv.URL, nil)).Retrieve(context.Background(), "ABC123")
	require.Equal(t, OutcomeSuccess, out.Kind, "err: %v", out.Err)
	assert.Equal(t, "markup", out.Schema.Name)
	assert.Equal(t, "Latitude 7420", out.Product.ProductName)

	require.Len(t, out.Records, 2)
	first := out.Records[0]
	assert.Equal(t, "Intel Chipset Driver", first.GetString(types.FieldName))
	assert.Equal(t, "Chipset", first.GetString(types.FieldCategory))
	assert.Equal(t, "10.1.18", first.GetString(types.FieldVersion))
	assert.Equal(t, up.srv.URL+"/drivers/chipset.exe", first.GetString(types.FieldDownloadURL))

	second := out.Records[1]
	assert.Equal(t, "Realtek Audio Driver", second.GetString(types.FieldName))
	assert.Equal(t, "Urgent", second.GetString(types.FieldImportance))
	assert.Equal(t, "Fixes crackling.", second.GetString(types.FieldDescription))
	assert.False(t, second.Has(types.FieldDownloadURL))
}

func TestMarkupStrategyLatin1Page(t *testing.T) {
	page := strings.ReplaceAll(driversPage, "Realtek Audio Driver", "Realtek Audio \xe9 Driver")
	up := newUpstream(t, map[string]func(http.ResponseWriter, *http.Request){
		"/drivers/ABC123": func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html; charset=ISO-8859-1")
			_, _ = io.WriteString(w, page)
		},
	})
	out := NewMarkupStrategy(testDeps(t, up.srv.URL, nil)).Retrieve(context.Background(), "ABC123")
	require.Equal(t, OutcomeSuccess, out.Kind, "err: %v", out.Err)
	require.Len(t, out.Records, 2)
	assert.Equal(t, "Realtek Audio é Driver", out.Records[1].GetString(types.FieldName))
}

func TestMarkupStrategyNoTableSavesPage(t *testing.T) {
	page := `<html><body><h1 class="page-title">Precision 5570</h1><p>Please sign in.</p></body></html>`
	up := newUpstream(t, map[string]func(http.ResponseWriter, *http.Request){
		"/drivers/ABC123": html(page),
	})

	dir := t.TempDir()
	now := time.Date(2024, 5, 1, 13, 4, 5, 0, time.UTC)
	trace, err := observability.OpenTrace(dir, "ABC123", now)
	require.NoError(t, err)
	defer trace.Close()

	out := NewMarkupStrategy(testDeps(t, up.srv.URL, trace)).Retrieve(context.Background(), "ABC123")
	require.Equal(t, OutcomeFailure, out.Kind)
	assert.ErrorIs(t, out.Err, types.ErrNoDriverTable)
	assert.Equal(t, "Precision 5570", out.Product.ProductName, "product survives a missing table")

	saved, err := os.ReadFile(filepath.Join(dir, "ABC123_20240501_130405_page.html"))
	require.NoError(t, err)
	assert.Contains(t, string(saved), "Please sign in.")
}

func TestGenericStrategyLooseItems(t *testing.T) {
	page := `<html><body>
<div class="driver-card"><span class="driver-name">Dell Command Update</span><span class="driver-version">5.2</span></div>
<div class="driver-card"><span class="driver-version">no name</span></div>
</body></html>`
	up := newUpstream(t, map[string]func(http.ResponseWriter, *http.Request){
		"/drivers/ABC123": html(page),
	})
	out := NewGenericStrategy(testDeps(t, up.srv.URL, nil)).Retrieve(context.Background(), "ABC123")
	require.Equal(t, OutcomeSuccess, out.Kind, "err: %v", out.Err)
	require.Len(t, out.Records, 1)
	assert.Equal(t, "Dell Command Update", out.Records[0].GetString(types.FieldName))
	assert.Equal(t, "5.2", out.Records[0].GetString(types.FieldVersion))
}

func TestGenericStrategyJSONLD(t *testing.T) {
	page := `<html><head><script type="application/ld+json">
{"@context": "https://schema.org", "@graph": [
  {"@type": "Product", "name": "OptiPlex 7010"},
  {"@type": "SoftwareApplication", "name": "Dell SupportAssist", "softwareVersion": "3.14", "downloadUrl": "/sa.exe"}
]}
</script></head><body><p>nothing here</p></body></html>`
	up := newUpstream(t, map[string]func(http.ResponseWriter, *http.Request){
		"/drivers/ABC123": html(page),
	})
	out := NewGenericStrategy(testDeps(t, up.srv.URL, nil)).Retrieve(context.Background(), "ABC123")
	require.Equal(t, OutcomeSuccess, out.Kind, "err: %v", out.Err)
	assert.Equal(t, "jsonld", out.Schema.Name)
	assert.Equal(t, "OptiPlex 7010", out.Product.ProductName)
	require.Len(t, out.Records, 1)
	assert.Equal(t, "Dell SupportAssist", out.Records[0].GetString("name"))
}

func TestGenericStrategyNothingFound(t *testing.T) {
	up := newUpstream(t, map[string]func(http.ResponseWriter, *http.Request){
		"/drivers/ABC123": html(`<html><body><p>empty</p></body></html>`),
	})
	out := NewGenericStrategy(testDeps(t, up.srv.URL, nil)).Retrieve(context.Background(), "ABC123")
	require.Equal(t, OutcomeFailure, out.Kind)
	assert.ErrorIs(t, out.Err, types.ErrNoRecords)
}

func TestBrowserStrategyDisabled(t *testing.T) {
	deps := testDeps(t, "https://example.com", nil)
	out := NewBrowserStrategy(deps).Retrieve(context.Background(), "ABC123")
	require.Equal(t, OutcomeFailure, out.Kind)
	assert.ErrorIs(t, out.Err, types.ErrBrowserDisabled)
}

func TestBuild(t *testing.T) {
	deps := testDeps(t, "https://example.com", nil)

	strategies, err := Build([]string{NameAPI, NameMarkup, NameBrowser, NameGeneric}, deps)
	require.NoError(t, err)
	names := make([]string, len(strategies))
	for i, s := range strategies {
		names[i] = s.Name()
	}
	assert.Equal(t, []string{NameAPI, NameMarkup, NameGeneric}, names, "browser skipped while disabled")

	deps.Config.Browser.Enabled = true
	strategies, err = Build([]string{NameBrowser, NameAPI}, deps)
	require.NoError(t, err)
	require.Len(t, strategies, 2)
	assert.Equal(t, NameBrowser, strategies[0].Name())

	_, err = Build([]string{"ftp"}, deps)
	assert.Error(t, err)
}

func TestRegister(t *testing.T) {
	assert.Error(t, Register(NameAPI, func(Deps) Strategy { return nil }))
	assert.Subset(t, Registered(), []string{NameAPI, NameBrowser, NameGeneric, NameMarkup})
}

func TestExpandTag(t *testing.T) {
	tests := []struct {
		origin, tmpl, tag, want string
	}{
		{"https://www.dell.com", "/support/{tag}/drivers", "ABC123", "https://www.dell.com/support/ABC123/drivers"},
		{"https://www.dell.com/", "support/{tag}", "AB C", "https://www.dell.com/support/AB%20C"},
		{"https://www.dell.com", "https://mirror.example/{tag}", "X1", "https://mirror.example/X1"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, expandTag(tt.origin, tt.tmpl, tt.tag))
	}
}

func TestDellLookup(t *testing.T) {
	flow := DellLookup(config.DefaultConfig())
	assert.Equal(t, "https://www.dell.com/support/home/en-us", flow.HomeURL)
	assert.Equal(t, "#inpEntrySelection", flow.InputSelector)
	require.NotEmpty(t, flow.DriversLinks)
	assert.True(t, strings.Contains(flow.DriversLinks[0].Text, "Drivers & Downloads"))
}

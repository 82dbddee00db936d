package pipeline

import (
	"errors"
	"log/slog"
	"os"
	"testing"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"

	"github.com/IshaanNene/driverscout/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func rawRecord(source string, fields map[string]string) *types.RawRecord {
	rec := types.NewRawRecord(source)
	for k, v := range fields {
		rec.Set(k, v)
	}
	return rec
}

func TestPipelineBasic(t *testing.T) {
	p := New(testLogger)
	p.Use(&TrimMiddleware{})

	rec := rawRecord("markup", map[string]string{"name": "  Audio Driver  ", "blank": "   "})

	result, err := p.Process(rec)
	if err != nil {
		t.Fatalf("pipeline error: %v", err)
	}
	if result.GetString("name") != "Audio Driver" {
		t.Errorf("expected trimmed name, got %q", result.GetString("name"))
	}
	if _, ok := result.Get("blank"); ok {
		t.Error("blank field should be removed")
	}
}

func TestTrimMiddlewareRepairsInvalidUTF8(t *testing.T) {
	p := New(testLogger)
	p.Use(&TrimMiddleware{})

	rec := rawRecord("markup", map[string]string{"name": "Realtek Audio \xe9 Driver "})

	result, err := p.Process(rec)
	if err != nil {
		t.Fatalf("pipeline error: %v", err)
	}
	got := result.GetString("name")
	if !utf8.ValidString(got) {
		t.Fatalf("name is not valid UTF-8: %q", got)
	}
	if got != "Realtek Audio \uFFFD Driver" {
		t.Errorf("unexpected name %q", got)
	}
}

type failingMiddleware struct{}

func (failingMiddleware) Name() string { return "explode" }
func (failingMiddleware) Process(*types.RawRecord) (*types.RawRecord, error) {
	return nil, errors.New("boom")
}

func TestPipelineErrorNamesStage(t *testing.T) {
	p := New(testLogger)
	p.Use(&TrimMiddleware{})
	p.Use(failingMiddleware{})

	_, err := p.Process(rawRecord("api", map[string]string{"name": "x"}))
	var pe *types.PipelineError
	if !errors.As(err, &pe) {
		t.Fatalf("expected PipelineError, got %v", err)
	}
	if pe.Stage != "explode" {
		t.Errorf("stage = %q", pe.Stage)
	}
	if got := p.Stages(); len(got) != 2 || got[0] != "trim" {
		t.Errorf("stages = %v", got)
	}
}

func TestRequiredFieldsMiddleware(t *testing.T) {
	m := &RequiredFieldsMiddleware{Fields: []string{"name"}}

	result, err := m.Process(rawRecord("markup", map[string]string{"name": "BIOS"}))
	if err != nil || result == nil {
		t.Error("record with required field should pass")
	}

	result, _ = m.Process(rawRecord("markup", map[string]string{"name": "  ", "version": "1.0"}))
	if result != nil {
		t.Error("record with blank name should be dropped (nil)")
	}
}

func TestHTMLSanitizeMiddleware(t *testing.T) {
	m := NewHTMLSanitizeMiddleware("description")
	rec := rawRecord("api", map[string]string{
		"description":  `<p>Hello <b>World</b></p> &amp; <a href="x">link</a>`,
		"download_url": "https://x/a?b=1&amp;c=2",
	})

	result, err := m.Process(rec)
	if err != nil {
		t.Fatalf("error: %v", err)
	}
	if got := result.GetString("description"); got != "Hello World & link" {
		t.Errorf("expected 'Hello World & link', got %q", got)
	}
	if got := result.GetString("download_url"); got != "https://x/a?b=1&amp;c=2" {
		t.Errorf("unlisted field modified: %q", got)
	}
}

func TestAliasMiddlewareDeclarationOrderWins(t *testing.T) {
	m := NewAliasMiddleware(APISchema)
	rec := rawRecord("api", map[string]string{
		"title":      "Later Alias",
		"DriverName": "Earlier Alias",
		"Version":    "2.0",
		"DellVer":    " ",
		"Unrelated":  "dropped",
	})

	out, _ := m.Process(rec)
	if got := out.GetString(types.FieldName); got != "Earlier Alias" {
		t.Errorf("name = %q, want Earlier Alias", got)
	}
	if got := out.GetString(types.FieldVersion); got != "2.0" {
		t.Errorf("blank DellVer should fall through to Version, got %q", got)
	}
	if _, ok := out.Get("Unrelated"); ok {
		t.Error("unknown keys should not survive aliasing")
	}
}

func TestNormalizeAPIRecord(t *testing.T) {
	n := NewNormalizer("https://www.dell.com", testLogger)
	raw := rawRecord("api", map[string]string{
		"DriverName":                    "Intel Wireless",
		"CatName":                       "Network",
		"DellVer":                       "22.250.1",
		"LUPDDate":                      "2024-03-01",
		"Imp":                           "Recommended",
		"BriefDescription":              "<p>Improves stability.</p>",
		"FileFrmtInfo.HttpFileLocation": "/FOLDER01/wifi.exe",
	})

	got, ok := n.Normalize(raw, APISchema)
	if !ok {
		t.Fatal("record unexpectedly dropped")
	}

	want := types.DriverRecord{
		Name:        "Intel Wireless",
		Category:    "Network",
		Version:     "22.250.1",
		ReleaseDate: "2024-03-01",
		Importance:  "Recommended",
		Description: "Improves stability.",
		DownloadURL: "https://www.dell.com/FOLDER01/wifi.exe",
	}
	if diff := cmp.Diff(want, *got); diff != "" {
		t.Errorf("normalized record mismatch (-want +got):\n%s", diff)
	}
	if raw.GetString("DriverName") != "Intel Wireless" || raw.Has(types.FieldName) {
		t.Error("Normalize must not mutate its input")
	}
}

func TestNormalizeAllDropsNameless(t *testing.T) {
	n := NewNormalizer("https://www.dell.com", testLogger)
	raws := []*types.RawRecord{
		rawRecord("api", map[string]string{"DriverName": "Chipset", "DellVer": "1.0"}),
		rawRecord("api", map[string]string{"DellVer": "2.0", "Category": "Audio"}),
		rawRecord("api", map[string]string{"name": "<b></b>"}),
	}

	records, dropped := n.NormalizeAll(raws, APISchema)
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if dropped != 2 {
		t.Errorf("dropped = %d, want 2", dropped)
	}
	if records[0].Name != "Chipset" {
		t.Errorf("name = %q", records[0].Name)
	}
}

func TestMarkupSchemaIsIdentity(t *testing.T) {
	n := NewNormalizer("https://example.com", testLogger)
	raw := rawRecord("markup", map[string]string{
		types.FieldName:        "Touchpad",
		types.FieldImportance:  "Optional",
		types.FieldDownloadURL: "/drivers/x.exe",
	})

	got, ok := n.Normalize(raw, MarkupSchema)
	if !ok {
		t.Fatal("record dropped")
	}
	if got.DownloadURL != "https://example.com/drivers/x.exe" {
		t.Errorf("download_url = %q", got.DownloadURL)
	}
	if got.Importance != "Optional" {
		t.Errorf("importance = %q", got.Importance)
	}
}

func BenchmarkNormalize(b *testing.B) {
	n := NewNormalizer("https://www.dell.com", testLogger)
	raw := rawRecord("api", map[string]string{
		"DriverName":       "Intel Wireless",
		"BriefDescription": "<p>Improves <b>stability</b>.</p>",
		"DownloadUrl":      "/wifi.exe",
	})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		n.Normalize(raw, APISchema)
	}
}

package report

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IshaanNene/driverscout/internal/types"
)

var fixedNow = time.Date(2024, 3, 9, 13, 5, 7, 123456789, time.FixedZone("CET", 3600))

func sampleRecords() []types.DriverRecord {
	return []types.DriverRecord{
		{
			Name:        "Realtek Audio Driver",
			Category:    "Audio",
			Version:     "6.0.9239.1",
			ReleaseDate: "12 Oct 2023",
			Importance:  "Recommended",
			Description: "Fixes microphone issues & pops.",
			DownloadURL: "https://www.dell.com/drivers/audio.exe?a=1&b=2",
		},
		{Name: "Dell BIOS", Version: "1.33.0"},
	}
}

func TestAssembleEmptyRecordsYieldsPlaceholder(t *testing.T) {
	for _, tag := range []string{"ABC123", "x", "tag with space", "ä/ö?"} {
		doc := Assemble(tag, types.ProductInfo{}, nil, fixedNow, DefaultOptions())
		require.Len(t, doc.Drivers, 1, "tag %q", tag)
		assert.True(t, IsPlaceholder(doc))
		assert.Equal(t, tag, doc.ServiceTag)
		assert.Equal(t, types.DefaultProductName, doc.ProductInfo.ProductName)
	}
}

func TestAssemblePlaceholderRecord(t *testing.T) {
	doc := Assemble("ABC123", types.ProductInfo{}, []types.DriverRecord{}, fixedNow, DefaultOptions())

	want := types.DriverRecord{
		Name:        "Dell Support Website",
		Category:    "Support",
		Importance:  "Recommended",
		Description: "Visit the Dell support website to find drivers for Unknown Product.",
		DownloadURL: "https://www.dell.com/support/home/en-us/product-support/servicetag/ABC123/drivers",
	}
	if diff := cmp.Diff(want, doc.Drivers[0]); diff != "" {
		t.Errorf("placeholder mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, time.UTC, doc.Timestamp.Location())
	assert.True(t, doc.Timestamp.Equal(fixedNow))
}

func TestPlaceholderEscapesTag(t *testing.T) {
	got := SupportURL("AB C/1", Options{Origin: "https://example.com/", DriversPath: "/st/{tag}/drivers"})
	assert.Equal(t, "https://example.com/st/AB%20C%2F1/drivers", got)
}

func TestPlaceholderUsesProductName(t *testing.T) {
	doc := Assemble("ABC123", types.ProductInfo{ProductName: "Latitude 5420"}, nil, fixedNow, DefaultOptions())
	assert.Contains(t, doc.Drivers[0].Description, "Latitude 5420")
}

func TestAssembleKeepsRecordOrder(t *testing.T) {
	records := sampleRecords()
	doc := Assemble("ABC123", types.ProductInfo{ProductName: "Latitude"}, records, fixedNow, DefaultOptions())
	assert.False(t, IsPlaceholder(doc))
	if diff := cmp.Diff(records, doc.Drivers); diff != "" {
		t.Errorf("drivers mismatch (-want +got):\n%s", diff)
	}

	records[0].Name = "mutated"
	assert.Equal(t, "Realtek Audio Driver", doc.Drivers[0].Name, "document must not alias caller slice")
}

func TestJSONRoundTrip(t *testing.T) {
	docs := []*types.ResultDocument{
		Assemble("ABC123", types.ProductInfo{}, nil, fixedNow, DefaultOptions()),
		Assemble("7XYZ9K2", types.ProductInfo{
			ProductName:  "Latitude 5420",
			ProductLine:  "Latitude",
			SystemConfig: "i7-1185G7 / 16GB",
		}, sampleRecords(), fixedNow, DefaultOptions()),
	}

	for _, doc := range docs {
		data, err := RenderJSON(doc)
		require.NoError(t, err)

		again, err := RenderJSON(doc)
		require.NoError(t, err)
		assert.Equal(t, data, again, "encoding must be deterministic")

		decoded, err := DecodeJSON(data)
		require.NoError(t, err)
		if diff := cmp.Diff(doc, decoded); diff != "" {
			t.Errorf("round trip mismatch (-want +got):\n%s", diff)
		}
	}
}

func TestJSONFieldNames(t *testing.T) {
	doc := Assemble("ABC123", types.ProductInfo{ProductName: "X"}, []types.DriverRecord{{Name: "Only Name"}}, fixedNow, DefaultOptions())
	data, err := RenderJSON(doc)
	require.NoError(t, err)

	s := string(data)
	for _, key := range []string{`"service_tag"`, `"product_info"`, `"product_name"`, `"timestamp"`, `"drivers"`, `"name"`} {
		assert.Contains(t, s, key)
	}
	for _, key := range []string{`"category"`, `"download_url"`, `"product_line"`, `"system_config"`} {
		assert.NotContains(t, s, key, "empty optional fields are omitted")
	}
	assert.Contains(t, s, `"2024-03-09T12:05:07.123456789Z"`)
}

func TestDecodeJSONRejectsGarbage(t *testing.T) {
	_, err := DecodeJSON([]byte("{not json"))
	assert.Error(t, err)
}

func TestRenderMarkdownLayout(t *testing.T) {
	doc := Assemble("7XYZ9K2", types.ProductInfo{ProductName: "Latitude 5420", ProductLine: "Latitude"},
		sampleRecords(), fixedNow, DefaultOptions())
	md := RenderMarkdown(doc)

	wantInOrder := []string{
		"# Dell Driver Information for 7XYZ9K2\n\n",
		"## Product: Latitude 5420\n\n",
		"**Product Line:** Latitude\n\n",
		"**Date Scraped:** 2024-03-09 12:05:07 UTC\n\n",
		"## Available Drivers\n\n",
		"### 1. Realtek Audio Driver\n\n",
		"**Category:** Audio\n\n",
		"**Description:** Fixes microphone issues & pops.\n\n",
		"**Download URL:** [https://www.dell.com/drivers/audio.exe?a=1&b=2](https://www.dell.com/drivers/audio.exe?a=1&b=2)\n\n",
		"---\n\n",
		"### 2. Dell BIOS\n\n",
	}
	pos := 0
	for _, want := range wantInOrder {
		idx := strings.Index(md[pos:], want)
		require.GreaterOrEqual(t, idx, 0, "missing or out of order: %q", want)
		pos += idx + len(want)
	}
	assert.NotContains(t, md, "System Configuration")
}

func TestRenderMarkdownMissingDescription(t *testing.T) {
	doc := Assemble("ABC123", types.ProductInfo{}, []types.DriverRecord{{Name: "Dell BIOS"}}, fixedNow, DefaultOptions())
	md := RenderMarkdown(doc)

	assert.NotContains(t, md, "**Description:**")
	assert.NotContains(t, md, "**Download URL:**")
	for _, label := range []string{"Category", "Version", "Release Date", "Importance"} {
		assert.Contains(t, md, "**"+label+":** N/A\n")
	}
	assert.Contains(t, md, "## Product: Unknown Product")
}

func TestRenderMarkdownPlaceholder(t *testing.T) {
	doc := Assemble("ABC123", types.ProductInfo{}, nil, fixedNow, DefaultOptions())
	md := RenderMarkdown(doc)

	assert.Contains(t, md, "### 1. Dell Support Website")
	assert.Contains(t, md, "servicetag/ABC123/drivers")
	assert.Equal(t, 1, strings.Count(md, "---\n"))
}

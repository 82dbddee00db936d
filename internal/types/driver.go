package types

import "time"

// Canonical driver field names.
const (
	FieldName        = "name"
	FieldCategory    = "category"
	FieldVersion     = "version"
	FieldReleaseDate = "release_date"
	FieldImportance  = "importance"
	FieldDescription = "description"
	FieldDownloadURL = "download_url"
)

// DriverFields lists the canonical driver fields in output order.
var DriverFields = []string{
	FieldName,
	FieldCategory,
	FieldVersion,
	FieldReleaseDate,
	FieldImportance,
	FieldDescription,
	FieldDownloadURL,
}

// DefaultProductName is used when the product cannot be discovered.
const DefaultProductName = "Unknown Product"

// DriverRecord is one discoverable driver or package entry.
type DriverRecord struct {
	Name        string `json:"name,omitempty"         bson:"name"`
	Category    string `json:"category,omitempty"     bson:"category,omitempty"`
	Version     string `json:"version,omitempty"      bson:"version,omitempty"`
	ReleaseDate string `json:"release_date,omitempty" bson:"release_date,omitempty"`
	Importance  string `json:"importance,omitempty"   bson:"importance,omitempty"`
	Description string `json:"description,omitempty"  bson:"description,omitempty"`
	DownloadURL string `json:"download_url,omitempty"  bson:"download_url,omitempty"`
}

// ProductInfo describes the device owning the service tag.
type ProductInfo struct {
	ProductName  string `json:"product_name"            bson:"product_name"`
	ProductLine  string `json:"product_line,omitempty"  bson:"product_line,omitempty"`
	SystemConfig string `json:"system_config,omitempty" bson:"system_config,omitempty"`
}

// Merge fills empty fields of p from other. Fields already set on p win.
func (p ProductInfo) Merge(other ProductInfo) ProductInfo {
	if p.ProductName == "" {
		p.ProductName = other.ProductName
	}
	if p.ProductLine == "" {
		p.ProductLine = other.ProductLine
	}
	if p.SystemConfig == "" {
		p.SystemConfig = other.SystemConfig
	}
	return p
}

// ResultDocument is the canonical unit of output for one retrieval.
// It is never mutated after construction.
type ResultDocument struct {
	ServiceTag  string         `json:"service_tag"  bson:"service_tag"`
	ProductInfo ProductInfo    `json:"product_info" bson:"product_info"`
	Timestamp   time.Time      `json:"timestamp"    bson:"timestamp"`
	Drivers     []DriverRecord `json:"drivers"      bson:"drivers"`
}

// Attempt records one strategy attempt made by the probe.
type Attempt struct {
	Strategy string
	Records  int
	Dropped  int
	Err      error
	Duration time.Duration
}

// Succeeded reports whether the attempt produced usable records.
func (a Attempt) Succeeded() bool {
	return a.Err == nil && a.Records > 0
}

// StrategyResult is the transient output of the strategy probe.
type StrategyResult struct {
	Records   []DriverRecord
	Product   ProductInfo
	Succeeded bool
	Strategy  string
	Attempts  []Attempt
}

package types

import (
	"sort"
	"strings"
)

// RawRecord is a partially-populated field map produced by a retrieval
// strategy, before it is normalized into a DriverRecord.
type RawRecord struct {
	// Fields stores the extracted key-value data. Nested structured
	// payloads are flattened into dotted keys ("FileFrmtInfo.HttpFileLocation").
	Fields map[string]string

	// Source identifies which strategy produced this record.
	Source string
}

// NewRawRecord creates a new empty RawRecord for a strategy.
func NewRawRecord(source string) *RawRecord {
	return &RawRecord{
		Fields: make(map[string]string),
		Source: source,
	}
}

// Set sets a field value.
func (r *RawRecord) Set(key, value string) {
	r.Fields[key] = value
}

// Get retrieves a field value.
func (r *RawRecord) Get(key string) (string, bool) {
	v, ok := r.Fields[key]
	return v, ok
}

// GetString retrieves a field value, or "" when absent.
func (r *RawRecord) GetString(key string) string {
	return r.Fields[key]
}

// Has returns true if the field exists with a non-blank value.
func (r *RawRecord) Has(key string) bool {
	return strings.TrimSpace(r.Fields[key]) != ""
}

// Delete removes a field.
func (r *RawRecord) Delete(key string) {
	delete(r.Fields, key)
}

// Keys returns all field names in sorted order.
func (r *RawRecord) Keys() []string {
	keys := make([]string, 0, len(r.Fields))
	for k := range r.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of fields.
func (r *RawRecord) Len() int {
	return len(r.Fields)
}

// Clone creates a deep copy of the record.
func (r *RawRecord) Clone() *RawRecord {
	clone := &RawRecord{
		Fields: make(map[string]string, len(r.Fields)),
		Source: r.Source,
	}
	for k, v := range r.Fields {
		clone.Fields[k] = v
	}
	return clone
}

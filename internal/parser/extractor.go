package parser

import (
	"fmt"
	"strings"

	"github.com/IshaanNene/driverscout/internal/types"
)

// Extractor evaluates ordered rule lists against a Source. It is pure:
// it performs no I/O and never logs.
type Extractor struct {
	origin   string
	patterns *patternCache
}

// NewExtractor creates an Extractor. origin is the site origin that
// relative download links are resolved against.
func NewExtractor(origin string) *Extractor {
	return &Extractor{
		origin:   origin,
		patterns: newPatternCache(),
	}
}

// Origin returns the site origin used for download_url rewriting.
func (e *Extractor) Origin() string { return e.origin }

// Extract tries rules in order and returns the first non-empty trimmed
// value. A rule that errors or panics counts as a failed rule.
func (e *Extractor) Extract(src Source, field string, rules []Rule) (string, bool) {
	for _, rule := range rules {
		val, err := e.apply(src, rule)
		if err != nil || val == "" {
			continue
		}
		if field == types.FieldDownloadURL {
			val = AbsoluteURL(e.origin, val)
		}
		return val, true
	}
	return "", false
}

// ExtractRecord applies every field of rs to src.
func (e *Extractor) ExtractRecord(src Source, rs RuleSet, strategy string) *types.RawRecord {
	rec := types.NewRawRecord(strategy)
	for _, fr := range rs {
		if val, ok := e.Extract(src, fr.Field, fr.Rules); ok {
			rec.Set(fr.Field, val)
		}
	}
	return rec
}

// apply evaluates a single rule. Panics from malformed input are recovered.
func (e *Extractor) apply(src Source, rule Rule) (val string, err error) {
	defer func() {
		if r := recover(); r != nil {
			val, err = "", fmt.Errorf("rule %s panicked: %v", rule, r)
		}
	}()

	if rule.Kind == RuleKey {
		if src.Fields == nil {
			return "", types.ErrSourceMismatch
		}
		return strings.TrimSpace(src.Fields[rule.Key]), nil
	}

	if !src.IsMarkup() {
		return "", types.ErrSourceMismatch
	}
	frag := src.Fragment

	switch rule.Kind {
	case RuleText:
		return selectValue(frag, rule.Selector, "text"), nil
	case RuleAttr:
		return selectValue(frag, rule.Selector, rule.Attribute), nil
	case RulePosition:
		return cellValue(frag, rule.Position, rule.Selector, rule.Attribute), nil
	case RuleXPath:
		return xpathValue(frag, rule.Selector, rule.Attribute)
	case RulePattern:
		re, err := e.patterns.getOrCompile(rule.Pattern)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(firstMatch(re, frag.Text())), nil
	default:
		return "", fmt.Errorf("unknown rule kind %q", rule.Kind)
	}
}

// AbsoluteURL resolves a download link against origin. Values that already
// carry an http or https scheme are returned unchanged.
func AbsoluteURL(origin, value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	lower := strings.ToLower(value)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return value
	}
	if strings.HasPrefix(value, "//") {
		return "https:" + value
	}
	return strings.TrimRight(origin, "/") + "/" + strings.TrimLeft(value, "/")
}

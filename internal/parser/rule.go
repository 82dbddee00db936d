package parser

import (
	"fmt"

	"github.com/PuerkitoBio/goquery"
)

// RuleKind tags the variant of an extraction Rule.
type RuleKind string

const (
	// RuleText reads the trimmed text content of the first CSS match.
	RuleText RuleKind = "text"
	// RuleAttr reads an attribute of the first CSS match.
	RuleAttr RuleKind = "attr"
	// RulePosition reads the nth (1-based) cell of a table row.
	RulePosition RuleKind = "position"
	// RuleXPath evaluates an XPath expression against the fragment.
	RuleXPath RuleKind = "xpath"
	// RulePattern matches a regular expression against the fragment text.
	RulePattern RuleKind = "pattern"
	// RuleKey looks up a key in a structured record.
	RuleKey RuleKind = "key"
)

// Rule is one way of locating a field value in a Source.
type Rule struct {
	Kind      RuleKind `mapstructure:"kind"      yaml:"kind"`
	Selector  string   `mapstructure:"selector"  yaml:"selector"`
	Attribute string   `mapstructure:"attribute" yaml:"attribute"`
	Position  int      `mapstructure:"position"  yaml:"position"`
	Pattern   string   `mapstructure:"pattern"   yaml:"pattern"`
	Key       string   `mapstructure:"key"       yaml:"key"`
}

// Text returns a text-content rule.
func Text(selector string) Rule { return Rule{Kind: RuleText, Selector: selector} }

// Attr returns an attribute-lookup rule.
func Attr(selector, attribute string) Rule {
	return Rule{Kind: RuleAttr, Selector: selector, Attribute: attribute}
}

// Position returns a positional table-cell rule. n is 1-based.
func Position(n int) Rule { return Rule{Kind: RulePosition, Position: n} }

// PositionAttr returns a positional rule reading an attribute of the first
// element inside the cell matching selector.
func PositionAttr(n int, selector, attribute string) Rule {
	return Rule{Kind: RulePosition, Position: n, Selector: selector, Attribute: attribute}
}

// XPath returns an XPath rule. An empty attribute reads inner text.
func XPath(expr, attribute string) Rule {
	return Rule{Kind: RuleXPath, Selector: expr, Attribute: attribute}
}

// Pattern returns a regular-expression rule; the first capture group wins.
func Pattern(expr string) Rule { return Rule{Kind: RulePattern, Pattern: expr} }

// Key returns a structured-record lookup rule.
func Key(key string) Rule { return Rule{Kind: RuleKey, Key: key} }

func (r Rule) String() string {
	switch r.Kind {
	case RuleText:
		return fmt.Sprintf("text(%s)", r.Selector)
	case RuleAttr:
		return fmt.Sprintf("attr(%s@%s)", r.Selector, r.Attribute)
	case RulePosition:
		return fmt.Sprintf("position(%d)", r.Position)
	case RuleXPath:
		return fmt.Sprintf("xpath(%s)", r.Selector)
	case RulePattern:
		return fmt.Sprintf("pattern(%s)", r.Pattern)
	case RuleKey:
		return fmt.Sprintf("key(%s)", r.Key)
	default:
		return fmt.Sprintf("unknown(%s)", r.Kind)
	}
}

// FieldRules pairs a canonical field with its ordered rules.
type FieldRules struct {
	Field string
	Rules []Rule
}

// RuleSet is an ordered list of per-field rule lists.
type RuleSet []FieldRules

// Rules returns the rules registered for field, or nil.
func (rs RuleSet) Rules(field string) []Rule {
	for _, fr := range rs {
		if fr.Field == field {
			return fr.Rules
		}
	}
	return nil
}

// Source is the input a rule is evaluated against: either a markup
// fragment or a flattened structured record. Exactly one is set.
type Source struct {
	Fragment *goquery.Selection
	Fields   map[string]string
}

// FromFragment wraps a markup fragment.
func FromFragment(sel *goquery.Selection) Source { return Source{Fragment: sel} }

// FromFields wraps a structured record.
func FromFields(fields map[string]string) Source { return Source{Fields: fields} }

// IsMarkup reports whether the source is a markup fragment.
func (s Source) IsMarkup() bool { return s.Fragment != nil }

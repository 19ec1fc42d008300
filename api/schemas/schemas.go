// File: api/schemas/schemas.go
package schemas

import (
	"fmt"
	"strings"
)

// TargetDescriptor describes what to find: a primary tree-query locator plus
// the fallbacks and hints the strategy chain may use when it misses.
type TargetDescriptor struct {
	PrimaryLocator string `json:"xpath,omitempty" yaml:"xpath,omitempty"`
	CSSFallback    string `json:"cssSelector,omitempty" yaml:"cssSelector,omitempty"`
	SemanticName   string `json:"name,omitempty" yaml:"name,omitempty"`
	ExpectedTag    string `json:"elementTag,omitempty" yaml:"elementTag,omitempty"`
	ExpectedText   string `json:"elementText,omitempty" yaml:"elementText,omitempty"`
}

// Valid reports whether at least one resolution strategy can run for the
// descriptor. The tag and text hints only count as a pair.
func (t TargetDescriptor) Valid() bool {
	if t.PrimaryLocator != "" || t.CSSFallback != "" || t.SemanticName != "" {
		return true
	}
	return strings.TrimSpace(t.ExpectedTag) != "" && strings.TrimSpace(t.ExpectedText) != ""
}

// Requested returns the selector the caller originally asked for, for audit messages.
// Recorded steps treat the CSS selector as the canonical request.
func (t TargetDescriptor) Requested() string {
	switch {
	case t.CSSFallback != "":
		return t.CSSFallback
	case t.PrimaryLocator != "":
		return t.PrimaryLocator
	case t.SemanticName != "":
		return t.SemanticName
	default:
		return strings.ToLower(strings.TrimSpace(t.ExpectedTag))
	}
}

// ValueKind selects how a field's value is read from its resolved element.
type ValueKind string

const (
	ValueText      ValueKind = "text"
	ValueHref      ValueKind = "href"
	ValueSrc       ValueKind = "src"
	ValueAttribute ValueKind = "attribute"
)

// ExtractionField is one named value to pull out of each container.
type ExtractionField struct {
	Name      string    `json:"name" yaml:"name"`
	Selector  string    `json:"selector,omitempty" yaml:"selector,omitempty"`
	XPath     string    `json:"xpath,omitempty" yaml:"xpath,omitempty"`
	Type      ValueKind `json:"type,omitempty" yaml:"type,omitempty"`
	Attribute string    `json:"attribute,omitempty" yaml:"attribute,omitempty"`
}

// Kind returns the field's value kind, defaulting to text.
func (f ExtractionField) Kind() ValueKind {
	if f.Type == "" {
		return ValueText
	}
	return f.Type
}

// Target converts the field into a descriptor for the strategy chain. The
// field name seeds the generic fallback.
func (f ExtractionField) Target() TargetDescriptor {
	return TargetDescriptor{
		PrimaryLocator: f.XPath,
		CSSFallback:    f.Selector,
		SemanticName:   f.Name,
	}
}

// Validate checks the field definition in isolation.
func (f ExtractionField) Validate() error {
	if strings.TrimSpace(f.Name) == "" {
		return fmt.Errorf("field name is required")
	}
	switch f.Kind() {
	case ValueText, ValueHref, ValueSrc:
	case ValueAttribute:
		if f.Attribute == "" {
			return fmt.Errorf("field '%s': attribute name is required for type 'attribute'", f.Name)
		}
	default:
		return fmt.Errorf("field '%s': unknown type '%s'", f.Name, f.Type)
	}
	return nil
}

// LocatorKind distinguishes the two locator syntaxes.
type LocatorKind int

const (
	LocatorCSS LocatorKind = iota
	LocatorTreeQuery
)

func (k LocatorKind) String() string {
	if k == LocatorTreeQuery {
		return "xpath"
	}
	return "css"
}

// ExclusionRule drops a field when its resolved element matches Value.
type ExclusionRule struct {
	Kind  LocatorKind
	Value string
}

// ExtractionSpec describes a repeated-record extraction over containers.
type ExtractionSpec struct {
	ContainerSelector string            `json:"containerSelector,omitempty" yaml:"containerSelector,omitempty"`
	ContainerXPath    string            `json:"containerXpath,omitempty" yaml:"containerXpath,omitempty"`
	Fields            []ExtractionField `json:"fields" yaml:"fields"`
	Multiple          bool              `json:"multiple,omitempty" yaml:"multiple,omitempty"`
	ExcludeSelectors  []string          `json:"excludeSelectors,omitempty" yaml:"excludeSelectors,omitempty"`
	ExcludeXPaths     []string          `json:"excludeXpaths,omitempty" yaml:"excludeXpaths,omitempty"`

	// Informational only.
	ExtractionRule string `json:"extractionRule,omitempty" yaml:"extractionRule,omitempty"`
	HTMLSample     string `json:"htmlSample,omitempty" yaml:"htmlSample,omitempty"`
}

// ContainerLocator names the locator reported when no container resolves.
func (s ExtractionSpec) ContainerLocator() string {
	switch {
	case s.ContainerXPath != "":
		return s.ContainerXPath
	case s.ContainerSelector != "":
		return s.ContainerSelector
	default:
		return "unknown"
	}
}

// ExclusionRules merges both exclusion lists into one mixed-kind rule set,
// selectors first. Entries in ExcludeSelectors that carry a tree-query prefix
// are classified as tree queries.
func (s ExtractionSpec) ExclusionRules() []ExclusionRule {
	rules := make([]ExclusionRule, 0, len(s.ExcludeSelectors)+len(s.ExcludeXPaths))
	for _, sel := range s.ExcludeSelectors {
		sel = strings.TrimSpace(sel)
		if sel == "" {
			continue
		}
		kind := LocatorCSS
		if strings.HasPrefix(sel, "//") || strings.HasPrefix(sel, ".//") {
			kind = LocatorTreeQuery
		}
		rules = append(rules, ExclusionRule{Kind: kind, Value: sel})
	}
	for _, xp := range s.ExcludeXPaths {
		xp = strings.TrimSpace(xp)
		if xp == "" {
			continue
		}
		rules = append(rules, ExclusionRule{Kind: LocatorTreeQuery, Value: xp})
	}
	return rules
}

// Validate checks field definitions and name uniqueness. A spec without any
// container locator is valid here; the engine reports it when run. A spec
// without fields is valid too and yields one empty record per container.
func (s ExtractionSpec) Validate() error {
	seen := make(map[string]struct{}, len(s.Fields))
	for _, f := range s.Fields {
		if err := f.Validate(); err != nil {
			return err
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("duplicate field name '%s'", f.Name)
		}
		seen[f.Name] = struct{}{}
	}
	return nil
}

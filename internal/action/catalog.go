// internal/action/catalog.go
package action

import (
	"reflect"
	"strings"
	"sync"

	"github.com/xkilldash9x/domharvest/api/schemas"
)

// Descriptor documents one supported step kind.
type Descriptor struct {
	Kind        schemas.StepKind `json:"type" yaml:"type"`
	Description string           `json:"description" yaml:"description"`
	Params      []string         `json:"params" yaml:"params"`
}

func targetParams(extra ...string) []string {
	return append([]string{"XPath", "CSSSelector", "ElementTag", "ElementText"}, extra...)
}

// catalogEntries lists step kinds with the Step fields each one reads.
var catalogEntries = []struct {
	kind        schemas.StepKind
	description string
	fields      []string
}{
	{schemas.StepNavigation, "Navigate to an absolute URL", []string{"URL"}},
	{schemas.StepClick, "Click element by all available selectors", targetParams()},
	{schemas.StepInput, "Input text into an element by all available selectors", targetParams("Value")},
	{schemas.StepSelect, "Select dropdown option by visible text", targetParams("SelectedText")},
	{schemas.StepKeyPress, "Press a key on an element", targetParams("Key")},
	{schemas.StepScroll, "Scroll the page by a pixel offset", []string{"ScrollX", "ScrollY"}},
	{schemas.StepExtractDOM, "Extract structured records from repeated containers", []string{
		"ContainerSelector", "ContainerXPath", "Fields", "Multiple", "ExcludeSelectors", "ExcludeXPaths",
	}},
}

var (
	catalogMu sync.Mutex
	catalog   []Descriptor
)

// Catalog returns the supported actions with their wire parameter names.
// It is built on first use and cached for the process.
func Catalog() []Descriptor {
	catalogMu.Lock()
	defer catalogMu.Unlock()
	if catalog == nil {
		catalog = buildCatalog()
	}
	out := make([]Descriptor, len(catalog))
	copy(out, catalog)
	return out
}

// InvalidateCatalog drops the cached catalog; the next Catalog call rebuilds it.
func InvalidateCatalog() {
	catalogMu.Lock()
	catalog = nil
	catalogMu.Unlock()
}

func buildCatalog() []Descriptor {
	out := make([]Descriptor, 0, len(catalogEntries))
	for _, e := range catalogEntries {
		params := make([]string, 0, len(e.fields))
		for _, f := range e.fields {
			params = append(params, wireName(f))
		}
		out = append(out, Descriptor{Kind: e.kind, Description: e.description, Params: params})
	}
	return out
}

// wireName maps a Step field, including fields promoted from the embedded
// extraction spec, to its JSON name.
func wireName(field string) string {
	sf, ok := reflect.TypeOf(schemas.Step{}).FieldByName(field)
	if !ok {
		return field
	}
	name, _, _ := strings.Cut(sf.Tag.Get("json"), ",")
	if name == "" || name == "-" {
		return field
	}
	return name
}

// File: api/schemas/browser.go
package schemas

// -- Recorded Step Schemas --

// StepKind identifies the action a recorded step performs.
type StepKind string

const (
	StepNavigation StepKind = "navigation"
	StepClick      StepKind = "click"
	StepInput      StepKind = "input"
	StepSelect     StepKind = "select_change"
	StepKeyPress   StepKind = "key_press"
	StepScroll     StepKind = "scroll"
	StepExtractDOM StepKind = "extract_dom_content"
)

// Step is one recorded interaction. Unknown fields in recorder payloads are
// ignored on decode. Only the fields relevant to Type are read.
type Step struct {
	Type        StepKind `json:"type" yaml:"type"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Timestamp   int64    `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
	TabID       int      `json:"tabId,omitempty" yaml:"tabId,omitempty"`

	// Navigation.
	URL string `json:"url,omitempty" yaml:"url,omitempty"`

	// Element targeting.
	XPath       string `json:"xpath,omitempty" yaml:"xpath,omitempty"`
	CSSSelector string `json:"cssSelector,omitempty" yaml:"cssSelector,omitempty"`
	ElementTag  string `json:"elementTag,omitempty" yaml:"elementTag,omitempty"`
	ElementText string `json:"elementText,omitempty" yaml:"elementText,omitempty"`
	FrameURL    string `json:"frameUrl,omitempty" yaml:"frameUrl,omitempty"`

	// Input and selection.
	Value         string `json:"value,omitempty" yaml:"value,omitempty"`
	SelectedValue string `json:"selectedValue,omitempty" yaml:"selectedValue,omitempty"`
	SelectedText  string `json:"selectedText,omitempty" yaml:"selectedText,omitempty"`

	// Key press.
	Key string `json:"key,omitempty" yaml:"key,omitempty"`

	// Scroll.
	ScrollX int `json:"scrollX,omitempty" yaml:"scrollX,omitempty"`
	ScrollY int `json:"scrollY,omitempty" yaml:"scrollY,omitempty"`

	// DOM extraction parameters are flattened into the step.
	ExtractionSpec `yaml:",inline"`
}

// Target builds the element descriptor for steps that act on an element.
func (s Step) Target() TargetDescriptor {
	return TargetDescriptor{
		PrimaryLocator: s.XPath,
		CSSFallback:    s.CSSSelector,
		ExpectedTag:    s.ElementTag,
		ExpectedText:   s.ElementText,
	}
}

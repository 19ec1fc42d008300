// internal/browser/driver.go
package browser

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrNoNode is returned when an operation receives a nil or foreign node handle.
	ErrNoNode = errors.New("browser: invalid node handle")
	// ErrUnsupported is returned by engines that cannot perform an operation.
	ErrUnsupported = errors.New("browser: operation not supported by engine")
	// ErrOptionNotFound is returned when a select control has no option with the requested label.
	ErrOptionNotFound = errors.New("browser: no option with matching label")
)

// Node is an opaque handle to a live element owned by the Driver that produced it.
// Handles are only valid for the duration of the call that obtained them.
type Node interface {
	// String returns a short description used in logs.
	String() string
}

// Driver is the page-control surface the resolver, extractor and dispatcher
// depend on. A nil scope means the whole document. Query methods never wait
// for elements to appear; an empty slice is a miss, not an error. Malformed
// selectors are reported as errors.
type Driver interface {
	// Navigate loads an absolute URL and waits for the load event.
	Navigate(ctx context.Context, url string) error

	// QueryCSS returns all elements under scope matching a CSS selector, in document order.
	QueryCSS(ctx context.Context, scope Node, selector string) ([]Node, error)
	// QueryXPath returns all element nodes matched by a tree query evaluated against scope.
	QueryXPath(ctx context.Context, scope Node, expr string) ([]Node, error)
	// EvaluateXPathString evaluates a value query against scope. Attribute
	// queries yield the string value; other queries yield the trimmed text of
	// the first matched node. ok is false when the result is empty.
	EvaluateXPathString(ctx context.Context, scope Node, expr string) (value string, ok bool, err error)

	// Attribute reads an attribute. ok is false when it is absent.
	Attribute(ctx context.Context, n Node, name string) (value string, ok bool, err error)
	// InnerText returns the element's rendered text, trimmed.
	InnerText(ctx context.Context, n Node) (string, error)
	// TagName returns the element's tag name as the DOM reports it.
	TagName(ctx context.Context, n Node) (string, error)

	// Click clicks the element. force bypasses visibility and actionability checks.
	Click(ctx context.Context, n Node, force bool) error
	// SetValue replaces the value of an input-like element.
	SetValue(ctx context.Context, n Node, value string) error
	// SelectOption selects the option whose visible label equals label.
	SelectOption(ctx context.Context, n Node, label string) error
	// Press dispatches a named key (e.g. "Enter", "Tab", "a") to the element.
	Press(ctx context.Context, n Node, key string) error
	// ScrollBy scrolls the viewport by a relative pixel offset.
	ScrollBy(ctx context.Context, dx, dy int) error

	// Close releases the page and any engine resources.
	Close(ctx context.Context) error
}

// RelativeTo anchors an absolute tree query at scope, so "//a" under a scope
// element means its descendants. Without a scope expr is returned unchanged.
func RelativeTo(scope Node, expr string) string {
	if scope != nil && strings.HasPrefix(expr, "/") {
		return "." + expr
	}
	return expr
}

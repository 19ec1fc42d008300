// internal/action/errors.go
package action

import (
	"errors"
	"fmt"

	"github.com/xkilldash9x/domharvest/api/schemas"
)

var (
	// ErrUnknownStep is the cause when a step kind has no action.
	ErrUnknownStep = errors.New("unknown step type")
	// ErrNotElement is the cause when a target resolved to a text value
	// that cannot be interacted with.
	ErrNotElement = errors.New("target resolved to a text value, not an element")
	// ErrRelativeURL is the cause when navigation receives a non-absolute URL.
	ErrRelativeURL = errors.New("url must be absolute")
)

// ActionError reports a failed action. Selector is the originally requested
// selector, not the one a fallback strategy may have tried.
type ActionError struct {
	Kind     schemas.StepKind
	Selector string
	Cause    error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("%s action failed for selector '%s': %v", e.Kind, e.Selector, e.Cause)
}

func (e *ActionError) Unwrap() error { return e.Cause }

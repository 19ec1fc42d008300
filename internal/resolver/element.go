// internal/resolver/element.go
package resolver

import (
	"context"
	"strings"

	"github.com/xkilldash9x/domharvest/internal/browser"
)

// Kind discriminates the Element variants.
type Kind int

const (
	// KindNone is the zero Element: nothing resolved.
	KindNone Kind = iota
	// KindLive wraps a driver node.
	KindLive
	// KindText wraps a string produced by a value query.
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindLive:
		return "live"
	case KindText:
		return "text"
	default:
		return "none"
	}
}

// Element is a resolved target: a live node, a text wrapper, or nothing.
// Elements are not cached; they are only valid for the call that produced them.
type Element struct {
	kind Kind
	node browser.Node
	text string
}

// Live wraps a driver node. A nil node yields the zero Element.
func Live(n browser.Node) Element {
	if n == nil {
		return Element{}
	}
	return Element{kind: KindLive, node: n}
}

// TextWrapper wraps the string result of a value query. The text is trimmed.
func TextWrapper(s string) Element {
	return Element{kind: KindText, text: strings.TrimSpace(s)}
}

func (e Element) Kind() Kind { return e.kind }

// Found reports whether the element holds anything.
func (e Element) Found() bool { return e.kind != KindNone }

// Node returns the live handle, or nil for other kinds.
func (e Element) Node() browser.Node {
	if e.kind != KindLive {
		return nil
	}
	return e.node
}

// Text returns the element's trimmed text.
func (e Element) Text(ctx context.Context, d browser.Driver) (string, error) {
	switch e.kind {
	case KindText:
		return e.text, nil
	case KindLive:
		return d.InnerText(ctx, e.node)
	default:
		return "", browser.ErrNoNode
	}
}

// Attribute reads an attribute. A text wrapper only exposes textContent and
// innerText, both answering with its text; every other name is absent.
func (e Element) Attribute(ctx context.Context, d browser.Driver, name string) (string, bool, error) {
	switch e.kind {
	case KindText:
		if name == "textContent" || name == "innerText" {
			return e.text, true, nil
		}
		return "", false, nil
	case KindLive:
		return d.Attribute(ctx, e.node, name)
	default:
		return "", false, browser.ErrNoNode
	}
}

func (e Element) String() string {
	switch e.kind {
	case KindLive:
		return e.node.String()
	case KindText:
		return "text(" + e.text + ")"
	default:
		return "<none>"
	}
}

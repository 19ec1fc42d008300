// internal/browser/static/driver.go
//
// Package static implements browser.Driver over a parsed HTML document with no
// script execution. CSS selectors are matched with goquery/cascadia and tree
// queries with htmlquery. Interactions mutate the parsed tree where a real
// page would change (input values, selected options) and are recorded so
// callers can assert on them.
package static

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/antchfx/htmlquery"
	"github.com/antchfx/xpath"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/domharvest/internal/browser"
	"github.com/xkilldash9x/domharvest/internal/locator"
)

// Event is one recorded interaction.
type Event struct {
	Kind   string
	Target string
	Value  string
}

// Fetcher loads the document behind an absolute URL.
type Fetcher func(ctx context.Context, rawURL string) (io.ReadCloser, error)

// Option configures a Driver.
type Option func(*Driver)

// WithFetcher overrides how Navigate loads documents.
func WithFetcher(f Fetcher) Option {
	return func(d *Driver) { d.fetch = f }
}

// Driver is a browser.Driver backed by an in-memory HTML tree.
type Driver struct {
	mu      sync.RWMutex
	doc     *html.Node
	url     string
	fetch   Fetcher
	logger  *zap.Logger
	events  []Event
	scrollX int
	scrollY int
}

var _ browser.Driver = (*Driver)(nil)

type node struct {
	n *html.Node
}

func (n *node) String() string { return UniquePath(n.n) }

// New creates a driver with an empty document.
func New(logger *zap.Logger, opts ...Option) *Driver {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Driver{
		logger: logger.Named("static_driver"),
		fetch:  defaultFetch,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.doc, _ = htmlquery.Parse(strings.NewReader(""))
	return d
}

// NewFromHTML creates a driver with the given document already loaded.
func NewFromHTML(logger *zap.Logger, markup string, opts ...Option) (*Driver, error) {
	d := New(logger, opts...)
	if err := d.Load(strings.NewReader(markup), "about:blank"); err != nil {
		return nil, err
	}
	return d, nil
}

// Load replaces the current document.
func (d *Driver) Load(r io.Reader, pageURL string) error {
	doc, err := htmlquery.Parse(r)
	if err != nil {
		return fmt.Errorf("failed to parse document: %w", err)
	}
	d.mu.Lock()
	d.doc = doc
	d.url = pageURL
	d.scrollX, d.scrollY = 0, 0
	d.mu.Unlock()
	return nil
}

// URL returns the address of the loaded document.
func (d *Driver) URL() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.url
}

// Events returns a copy of the recorded interactions.
func (d *Driver) Events() []Event {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Event, len(d.events))
	copy(out, d.events)
	return out
}

// ScrollOffset returns the accumulated viewport scroll.
func (d *Driver) ScrollOffset() (x, y int) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.scrollX, d.scrollY
}

// HTML renders the current document, including any mutations.
func (d *Driver) HTML() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return htmlquery.OutputHTML(d.doc, true)
}

func (d *Driver) Navigate(ctx context.Context, rawURL string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := d.fetch(ctx, rawURL)
	if err != nil {
		return fmt.Errorf("navigation to %s failed: %w", rawURL, err)
	}
	defer body.Close()

	if err := d.Load(body, rawURL); err != nil {
		return fmt.Errorf("navigation to %s failed: %w", rawURL, err)
	}
	d.record("navigate", "", rawURL)
	d.logger.Debug("Loaded document.", zap.String("url", rawURL))
	return nil
}

func (d *Driver) QueryCSS(ctx context.Context, scope browser.Node, selector string) ([]browser.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("invalid css selector '%s': %w", selector, err)
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	root, err := d.scopeNode(scope)
	if err != nil {
		return nil, err
	}
	return wrap(goquery.NewDocumentFromNode(root).FindMatcher(sel).Nodes), nil
}

func (d *Driver) QueryXPath(ctx context.Context, scope browser.Node, expr string) ([]browser.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	compiled, err := xpath.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid tree query '%s': %w", expr, err)
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	root, err := d.scopeNode(scope)
	if err != nil {
		return nil, err
	}

	var elements []*html.Node
	for _, n := range htmlquery.QuerySelectorAll(root, compiled) {
		// Attribute matches come back as detached synthetic nodes.
		if n.Type == html.ElementNode && n.Parent != nil {
			elements = append(elements, n)
		}
	}
	return wrap(elements), nil
}

func (d *Driver) EvaluateXPathString(ctx context.Context, scope browser.Node, expr string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	compiled, err := xpath.Compile(expr)
	if err != nil {
		return "", false, fmt.Errorf("invalid tree query '%s': %w", expr, err)
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	root, err := d.scopeNode(scope)
	if err != nil {
		return "", false, err
	}

	var value string
	switch v := compiled.Evaluate(htmlquery.CreateXPathNavigator(root)).(type) {
	case string:
		value = v
	case float64:
		value = strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		value = strconv.FormatBool(v)
	case *xpath.NodeIterator:
		if v.MoveNext() {
			value = v.Current().Value()
		}
	}
	if !locator.IsAttributeQuery(expr) {
		value = strings.TrimSpace(value)
	}
	return value, value != "", nil
}

func (d *Driver) Attribute(ctx context.Context, n browser.Node, name string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	el, err := unwrap(n)
	if err != nil {
		return "", false, err
	}
	for _, a := range el.Attr {
		if strings.EqualFold(a.Key, name) {
			return a.Val, true, nil
		}
	}
	return "", false, nil
}

func (d *Driver) InnerText(ctx context.Context, n browser.Node) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	el, err := unwrap(n)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(htmlquery.InnerText(el)), nil
}

func (d *Driver) TagName(ctx context.Context, n browser.Node) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	el, err := unwrap(n)
	if err != nil {
		return "", err
	}
	return strings.ToUpper(el.Data), nil
}

func (d *Driver) Click(ctx context.Context, n browser.Node, force bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	el, err := unwrap(n)
	if err != nil {
		return err
	}
	if !force && hasAttr(el, "disabled") {
		return fmt.Errorf("element %s is disabled", UniquePath(el))
	}
	d.record("click", UniquePath(el), strconv.FormatBool(force))
	return nil
}

func (d *Driver) SetValue(ctx context.Context, n browser.Node, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	el, err := unwrap(n)
	if err != nil {
		return err
	}

	d.mu.Lock()
	switch {
	case strings.EqualFold(el.Data, "input"):
		setAttr(el, "value", value)
	case strings.EqualFold(el.Data, "textarea"), hasAttr(el, "contenteditable"):
		replaceText(el, value)
	default:
		d.mu.Unlock()
		return fmt.Errorf("element %s does not accept a value", UniquePath(el))
	}
	d.mu.Unlock()

	d.record("set_value", UniquePath(el), value)
	return nil
}

func (d *Driver) SelectOption(ctx context.Context, n browser.Node, label string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	el, err := unwrap(n)
	if err != nil {
		return err
	}
	if !strings.EqualFold(el.Data, "select") {
		return fmt.Errorf("element %s is not a select control", UniquePath(el))
	}

	d.mu.Lock()
	options := htmlquery.Find(el, ".//option")
	var match *html.Node
	for _, opt := range options {
		if match == nil && strings.TrimSpace(htmlquery.InnerText(opt)) == label {
			match = opt
		}
	}
	if match != nil {
		for _, opt := range options {
			removeAttr(opt, "selected")
		}
		setAttr(match, "selected", "selected")
	}
	d.mu.Unlock()

	if match == nil {
		return fmt.Errorf("%w: '%s'", browser.ErrOptionNotFound, label)
	}
	d.record("select", UniquePath(el), label)
	return nil
}

func (d *Driver) Press(ctx context.Context, n browser.Node, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	el, err := unwrap(n)
	if err != nil {
		return err
	}
	d.record("press", UniquePath(el), key)
	return nil
}

func (d *Driver) ScrollBy(ctx context.Context, dx, dy int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	d.scrollX += dx
	d.scrollY += dy
	d.mu.Unlock()
	d.record("scroll", "", fmt.Sprintf("%d,%d", dx, dy))
	return nil
}

func (d *Driver) Close(ctx context.Context) error { return nil }

func (d *Driver) record(kind, target, value string) {
	d.mu.Lock()
	d.events = append(d.events, Event{Kind: kind, Target: target, Value: value})
	d.mu.Unlock()
}

func (d *Driver) scopeNode(scope browser.Node) (*html.Node, error) {
	if scope == nil {
		return d.doc, nil
	}
	return unwrap(scope)
}

func unwrap(n browser.Node) (*html.Node, error) {
	sn, ok := n.(*node)
	if !ok || sn == nil || sn.n == nil {
		return nil, browser.ErrNoNode
	}
	return sn.n, nil
}

func wrap(nodes []*html.Node) []browser.Node {
	out := make([]browser.Node, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, &node{n: n})
	}
	return out
}

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return true
		}
	}
	return false
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func removeAttr(n *html.Node, key string) {
	kept := n.Attr[:0]
	for _, a := range n.Attr {
		if !strings.EqualFold(a.Key, key) {
			kept = append(kept, a)
		}
	}
	n.Attr = kept
}

func replaceText(n *html.Node, text string) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
	n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
}

func defaultFetch(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "file":
		return os.Open(u.Path)
	case "http", "https":
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, err
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= http.StatusBadRequest {
			resp.Body.Close()
			return nil, fmt.Errorf("unexpected status %s", resp.Status)
		}
		return resp.Body, nil
	default:
		return nil, fmt.Errorf("%w: scheme '%s'", browser.ErrUnsupported, u.Scheme)
	}
}

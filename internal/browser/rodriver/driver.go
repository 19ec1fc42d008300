// Package rodriver implements browser.Driver on go-rod.
package rodriver

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"github.com/xkilldash9x/domharvest/internal/browser"
	"github.com/xkilldash9x/domharvest/internal/config"
)

// Driver controls one rod page in a locally launched Chrome.
type Driver struct {
	cfg     config.BrowserConfig
	logger  *zap.Logger
	lnch    *launcher.Launcher
	browser *rod.Browser
	page    *rod.Page
}

var _ browser.Driver = (*Driver)(nil)

type node struct {
	el   *rod.Element
	desc string
}

func (n *node) String() string { return n.desc }

// New launches Chrome through the rod launcher and opens a blank page.
func New(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (*Driver, error) {
	log := logger.Named("rod_driver")

	l := launcher.New().Context(browser.Detach(ctx)).Headless(cfg.Headless).
		Set("disable-gpu").
		Set("no-sandbox").
		Set("disable-dev-shm-usage")
	if cfg.ExecPath != "" {
		l = l.Bin(cfg.ExecPath)
	}
	if cfg.ViewportWidth > 0 && cfg.ViewportHeight > 0 {
		l = l.Set("window-size", fmt.Sprintf("%d,%d", cfg.ViewportWidth, cfg.ViewportHeight))
	}
	for _, arg := range cfg.Args {
		key, value, hasValue := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		if hasValue {
			l = l.Set(flags.Flag(key), value)
		} else {
			l = l.Set(flags.Flag(key))
		}
	}

	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch chrome: %w", err)
	}

	b := rod.New().ControlURL(u)
	if err := b.Connect(); err != nil {
		l.Cleanup()
		return nil, fmt.Errorf("failed to connect to chrome: %w", err)
	}

	page, err := b.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		_ = b.Close()
		l.Cleanup()
		return nil, fmt.Errorf("failed to open page: %w", err)
	}

	log.Info("Rod browser launched.", zap.String("control_url", u))
	return &Driver{cfg: cfg, logger: log, lnch: l, browser: b, page: page}, nil
}

func toElement(n browser.Node) (*rod.Element, error) {
	rn, ok := n.(*node)
	if !ok || rn == nil || rn.el == nil {
		return nil, browser.ErrNoNode
	}
	return rn.el, nil
}

func wrap(els rod.Elements, desc string) []browser.Node {
	out := make([]browser.Node, 0, len(els))
	for i, el := range els {
		out = append(out, &node{el: el, desc: fmt.Sprintf("%s[%d]", desc, i)})
	}
	return out
}

// eval runs js with `this` bound to the scope element, or on the page when
// scope is nil.
func (d *Driver) eval(ctx context.Context, scope browser.Node, js string, args ...interface{}) (*proto.RuntimeRemoteObject, error) {
	if scope == nil {
		return d.page.Context(ctx).Eval(js, args...)
	}
	el, err := toElement(scope)
	if err != nil {
		return nil, err
	}
	return el.Context(ctx).Eval(js, args...)
}

func (d *Driver) Navigate(ctx context.Context, url string) error {
	timeout := d.cfg.NavigationTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	p := d.page.Context(ctx).Timeout(timeout)
	if err := p.Navigate(url); err != nil {
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	if err := p.WaitLoad(); err != nil {
		return fmt.Errorf("waiting for %s to load failed: %w", url, err)
	}
	return nil
}

func (d *Driver) QueryCSS(ctx context.Context, scope browser.Node, selector string) ([]browser.Node, error) {
	var (
		els rod.Elements
		err error
	)
	if scope == nil {
		els, err = d.page.Context(ctx).Elements(selector)
	} else {
		var el *rod.Element
		if el, err = toElement(scope); err != nil {
			return nil, err
		}
		els, err = el.Context(ctx).Elements(selector)
	}
	if err != nil {
		return nil, fmt.Errorf("css query '%s' failed: %w", selector, err)
	}
	return wrap(els, "css="+selector), nil
}

// QueryXPath makes absolute expressions relative when a scope element is
// given, so the scope acts as the root.
func (d *Driver) QueryXPath(ctx context.Context, scope browser.Node, expr string) ([]browser.Node, error) {
	var (
		els rod.Elements
		err error
	)
	if scope == nil {
		els, err = d.page.Context(ctx).ElementsX(expr)
	} else {
		var el *rod.Element
		if el, err = toElement(scope); err != nil {
			return nil, err
		}
		els, err = el.Context(ctx).ElementsX(browser.RelativeTo(scope, expr))
	}
	if err != nil {
		return nil, fmt.Errorf("tree query '%s' failed: %w", expr, err)
	}
	kept := els[:0]
	for _, el := range els {
		if el.Object != nil && el.Object.Subtype == proto.RuntimeRemoteObjectSubtypeNode {
			kept = append(kept, el)
		}
	}
	return wrap(kept, "xpath="+expr), nil
}

func (d *Driver) EvaluateXPathString(ctx context.Context, scope browser.Node, expr string) (string, bool, error) {
	res, err := d.eval(ctx, scope, `function(xp) {
		const root = (this && this.nodeType) ? this : document;
		if (xp.includes('/@')) {
			return document.evaluate(xp, root, null, XPathResult.STRING_TYPE, null).stringValue || null;
		}
		const hit = document.evaluate(xp, root, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue;
		return hit ? ((hit.textContent || '').trim() || null) : null;
	}`, browser.RelativeTo(scope, expr))
	if err != nil {
		return "", false, fmt.Errorf("value query '%s' failed: %w", expr, err)
	}
	if res.Value.Nil() {
		return "", false, nil
	}
	s := res.Value.Str()
	return s, s != "", nil
}

func (d *Driver) Attribute(ctx context.Context, n browser.Node, name string) (string, bool, error) {
	el, err := toElement(n)
	if err != nil {
		return "", false, err
	}
	v, err := el.Context(ctx).Attribute(name)
	if err != nil {
		return "", false, fmt.Errorf("failed to read attribute '%s': %w", name, err)
	}
	if v == nil {
		return "", false, nil
	}
	return *v, true, nil
}

func (d *Driver) InnerText(ctx context.Context, n browser.Node) (string, error) {
	el, err := toElement(n)
	if err != nil {
		return "", err
	}
	text, err := el.Context(ctx).Text()
	if err != nil {
		return "", fmt.Errorf("failed to read text: %w", err)
	}
	return strings.TrimSpace(text), nil
}

func (d *Driver) TagName(ctx context.Context, n browser.Node) (string, error) {
	if _, err := toElement(n); err != nil {
		return "", err
	}
	res, err := d.eval(ctx, n, `() => this.tagName`)
	if err != nil {
		return "", fmt.Errorf("failed to read tag name: %w", err)
	}
	return res.Value.Str(), nil
}

func (d *Driver) Click(ctx context.Context, n browser.Node, force bool) error {
	el, err := toElement(n)
	if err != nil {
		return err
	}
	if force {
		_, err = el.Context(ctx).Eval(`() => { this.scrollIntoView({block: 'center'}); this.click(); }`)
		return err
	}
	return el.Context(ctx).Click(proto.InputMouseButtonLeft, 1)
}

func (d *Driver) SetValue(ctx context.Context, n browser.Node, value string) error {
	el, err := toElement(n)
	if err != nil {
		return err
	}
	el = el.Context(ctx)
	// Clearing can fail on elements without a text selection; Input still replaces focus content.
	if err := el.SelectAllText(); err == nil {
		_ = el.Input("")
	}
	if err := el.Input(value); err != nil {
		return fmt.Errorf("failed to set value: %w", err)
	}
	return nil
}

func (d *Driver) SelectOption(ctx context.Context, n browser.Node, label string) error {
	if _, err := toElement(n); err != nil {
		return err
	}
	res, err := d.eval(ctx, n, `function(label) {
		if (this.tagName !== 'SELECT') return 'not-select';
		const opt = Array.from(this.options).find(o => (o.label || o.text || '').trim() === label);
		if (!opt) return 'missing';
		this.value = opt.value;
		opt.selected = true;
		this.dispatchEvent(new Event('input', {bubbles: true}));
		this.dispatchEvent(new Event('change', {bubbles: true}));
		return 'ok';
	}`, label)
	if err != nil {
		return fmt.Errorf("failed to select option: %w", err)
	}
	switch res.Value.Str() {
	case "ok":
		return nil
	case "missing":
		return fmt.Errorf("%w: '%s'", browser.ErrOptionNotFound, label)
	default:
		return fmt.Errorf("element %s is not a select control", n)
	}
}

var namedKeys = map[string]input.Key{
	"Enter":      input.Enter,
	"Tab":        input.Tab,
	"Escape":     input.Escape,
	"Backspace":  input.Backspace,
	"Delete":     input.Delete,
	"ArrowUp":    input.ArrowUp,
	"ArrowDown":  input.ArrowDown,
	"ArrowLeft":  input.ArrowLeft,
	"ArrowRight": input.ArrowRight,
	"Home":       input.Home,
	"End":        input.End,
	"PageUp":     input.PageUp,
	"PageDown":   input.PageDown,
	"Space":      input.Space,
}

func (d *Driver) Press(ctx context.Context, n browser.Node, key string) error {
	el, err := toElement(n)
	if err != nil {
		return err
	}
	el = el.Context(ctx)
	if err := el.Focus(); err != nil {
		return fmt.Errorf("failed to focus element: %w", err)
	}
	if k, ok := namedKeys[key]; ok {
		return d.page.Keyboard.Press(k)
	}
	if r, size := utf8.DecodeRuneInString(key); size == len(key) && r >= ' ' && r < utf8.RuneSelf {
		return d.page.Keyboard.Press(input.Key(r))
	}
	// Anything else is typed as text.
	return el.Input(key)
}

func (d *Driver) ScrollBy(ctx context.Context, dx, dy int) error {
	_, err := d.page.Context(ctx).Eval(`(x, y) => window.scrollBy(x, y)`, dx, dy)
	return err
}

// Close shuts the browser down and removes the launcher's profile directory.
func (d *Driver) Close(ctx context.Context) error {
	done := make(chan error, 1)
	go func() {
		err := d.browser.Close()
		d.lnch.Cleanup()
		done <- err
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		d.lnch.Kill()
		return ctx.Err()
	}
}

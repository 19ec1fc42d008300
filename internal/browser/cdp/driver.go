// internal/browser/cdp/driver.go
//
// Package cdp implements browser.Driver on chromedp. Element handles are
// runtime remote objects; all DOM work runs as functions called on those
// objects so that scoped queries and reads observe the live page.
package cdp

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/domharvest/internal/browser"
	"github.com/xkilldash9x/domharvest/internal/config"
)

// Driver drives one Chrome tab over the DevTools protocol.
type Driver struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	tabCtx      context.Context
	tabCancel   context.CancelFunc
	cfg         config.BrowserConfig
	logger      *zap.Logger
}

var _ browser.Driver = (*Driver)(nil)

type node struct {
	id   runtime.RemoteObjectID
	desc string
}

func (n *node) String() string { return n.desc }

// New launches Chrome and opens a tab. The allocator outlives ctx and is
// released by Close.
func New(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (*Driver, error) {
	log := logger.Named("cdp_driver")

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if cfg.ViewportWidth > 0 && cfg.ViewportHeight > 0 {
		opts = append(opts, chromedp.WindowSize(cfg.ViewportWidth, cfg.ViewportHeight))
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	for _, arg := range cfg.Args {
		key, value, hasValue := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		if hasValue {
			opts = append(opts, chromedp.Flag(key, value))
		} else {
			opts = append(opts, chromedp.Flag(key, true))
		}
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(browser.Detach(ctx), opts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(log.Sugar().Debugf))

	// The first Run starts the browser.
	startCtx, startCancel := browser.CombineContext(tabCtx, ctx)
	defer startCancel()
	if err := chromedp.Run(startCtx); err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to start chrome: %w", err)
	}

	log.Info("Chrome tab ready.", zap.Bool("headless", cfg.Headless))
	return &Driver{
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		tabCtx:      tabCtx,
		tabCancel:   tabCancel,
		cfg:         cfg,
		logger:      log,
	}, nil
}

func (d *Driver) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := browser.CombineContext(d.tabCtx, ctx)
	defer cancel()
	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// call invokes fn with `this` bound to the scope object, or to document when
// scope is nil, and decodes the by-value result into res.
func (d *Driver) call(ctx context.Context, scope browser.Node, fn string, res interface{}) error {
	var objectID runtime.RemoteObjectID
	if scope != nil {
		n, ok := scope.(*node)
		if !ok || n == nil {
			return browser.ErrNoNode
		}
		objectID = n.id
	}
	return d.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		id := objectID
		if id == "" {
			var doc *runtime.RemoteObject
			if err := chromedp.Evaluate("document", &doc).Do(ctx); err != nil {
				return fmt.Errorf("failed to resolve document: %w", err)
			}
			id = doc.ObjectID
		}
		return chromedp.CallFunctionOn(fn, res,
			func(p *runtime.CallFunctionOnParams) *runtime.CallFunctionOnParams {
				return p.WithObjectID(id).WithAwaitPromise(true)
			}).Do(ctx)
	}))
}

// collect runs fn, which must return an array of elements, and splits the
// array into individual handles in index order.
func (d *Driver) collect(ctx context.Context, scope browser.Node, fn, desc string) ([]browser.Node, error) {
	var arr *runtime.RemoteObject
	if err := d.call(ctx, scope, fn, &arr); err != nil {
		return nil, err
	}
	if arr == nil || arr.ObjectID == "" {
		return nil, nil
	}

	type indexed struct {
		i  int
		id runtime.RemoteObjectID
	}
	var items []indexed
	err := d.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		props, _, _, exc, err := runtime.GetProperties(arr.ObjectID).WithOwnProperties(true).Do(ctx)
		if err != nil {
			return err
		}
		if exc != nil {
			return exc
		}
		for _, p := range props {
			i, convErr := strconv.Atoi(p.Name)
			if convErr != nil || p.Value == nil || p.Value.ObjectID == "" {
				continue
			}
			items = append(items, indexed{i: i, id: p.Value.ObjectID})
		}
		return nil
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to read query results: %w", err)
	}

	sort.Slice(items, func(a, b int) bool { return items[a].i < items[b].i })
	out := make([]browser.Node, 0, len(items))
	for _, it := range items {
		out = append(out, &node{id: it.id, desc: fmt.Sprintf("%s[%d]", desc, it.i)})
	}
	return out, nil
}

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// jsonEncode quotes v as a JS literal.
func jsonEncode(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return `""`
	}
	return string(b)
}

const rootExpr = `this`

func (d *Driver) Navigate(ctx context.Context, url string) error {
	timeout := d.cfg.NavigationTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	navCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := d.run(navCtx, chromedp.Navigate(url), chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		if navCtx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("navigation to %s timed out after %v: %w", url, timeout, navCtx.Err())
		}
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	return nil
}

func (d *Driver) QueryCSS(ctx context.Context, scope browser.Node, selector string) ([]browser.Node, error) {
	fn := fmt.Sprintf(`function() { return Array.from(%s.querySelectorAll(%s)); }`, rootExpr, jsonEncode(selector))
	nodes, err := d.collect(ctx, scope, fn, "css="+selector)
	if err != nil {
		return nil, fmt.Errorf("css query '%s' failed: %w", selector, err)
	}
	return nodes, nil
}

func (d *Driver) QueryXPath(ctx context.Context, scope browser.Node, expr string) ([]browser.Node, error) {
	fn := fmt.Sprintf(`function() {
		const snap = document.evaluate(%s, %s, null, XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null);
		const out = [];
		for (let i = 0; i < snap.snapshotLength; i++) {
			const n = snap.snapshotItem(i);
			if (n.nodeType === Node.ELEMENT_NODE) out.push(n);
		}
		return out;
	}`, jsonEncode(browser.RelativeTo(scope, expr)), rootExpr)
	nodes, err := d.collect(ctx, scope, fn, "xpath="+expr)
	if err != nil {
		return nil, fmt.Errorf("tree query '%s' failed: %w", expr, err)
	}
	return nodes, nil
}

func (d *Driver) EvaluateXPathString(ctx context.Context, scope browser.Node, expr string) (string, bool, error) {
	fn := fmt.Sprintf(`function() {
		const xp = %s;
		const root = %s;
		if (xp.includes('/@')) {
			return document.evaluate(xp, root, null, XPathResult.STRING_TYPE, null).stringValue || null;
		}
		const hit = document.evaluate(xp, root, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue;
		return hit ? (hit.textContent || '').trim() || null : null;
	}`, jsonEncode(browser.RelativeTo(scope, expr)), rootExpr)

	var res *string
	if err := d.call(ctx, scope, fn, &res); err != nil {
		return "", false, fmt.Errorf("value query '%s' failed: %w", expr, err)
	}
	if res == nil || *res == "" {
		return "", false, nil
	}
	return *res, true, nil
}

func (d *Driver) Attribute(ctx context.Context, n browser.Node, name string) (string, bool, error) {
	if n == nil {
		return "", false, browser.ErrNoNode
	}
	var res *string
	fn := fmt.Sprintf(`function() { return this.getAttribute(%s); }`, jsonEncode(name))
	if err := d.call(ctx, n, fn, &res); err != nil {
		return "", false, fmt.Errorf("failed to read attribute '%s': %w", name, err)
	}
	if res == nil {
		return "", false, nil
	}
	return *res, true, nil
}

func (d *Driver) InnerText(ctx context.Context, n browser.Node) (string, error) {
	if n == nil {
		return "", browser.ErrNoNode
	}
	var text string
	if err := d.call(ctx, n, `function() { return (this.innerText || this.textContent || '').trim(); }`, &text); err != nil {
		return "", fmt.Errorf("failed to read text: %w", err)
	}
	return text, nil
}

func (d *Driver) TagName(ctx context.Context, n browser.Node) (string, error) {
	if n == nil {
		return "", browser.ErrNoNode
	}
	var tag string
	if err := d.call(ctx, n, `function() { return this.tagName; }`, &tag); err != nil {
		return "", fmt.Errorf("failed to read tag name: %w", err)
	}
	return tag, nil
}

func (d *Driver) Click(ctx context.Context, n browser.Node, force bool) error {
	if n == nil {
		return browser.ErrNoNode
	}
	if force {
		// A DOM click fires regardless of overlays or visibility.
		return d.call(ctx, n, `function() { this.scrollIntoView({block: 'center'}); this.click(); return true; }`, nil)
	}

	var box struct {
		X, Y    float64
		Visible bool
	}
	err := d.call(ctx, n, `function() {
		this.scrollIntoView({block: 'center'});
		const r = this.getBoundingClientRect();
		return {X: r.left + r.width / 2, Y: r.top + r.height / 2, Visible: r.width > 0 && r.height > 0};
	}`, &box)
	if err != nil {
		return fmt.Errorf("failed to locate element for click: %w", err)
	}
	if !box.Visible {
		return fmt.Errorf("element %s is not visible", n)
	}
	return d.run(ctx, chromedp.MouseClickXY(box.X, box.Y))
}

func (d *Driver) SetValue(ctx context.Context, n browser.Node, value string) error {
	if n == nil {
		return browser.ErrNoNode
	}
	fn := fmt.Sprintf(`function() {
		const v = %s;
		this.focus();
		if (this.isContentEditable) {
			this.textContent = v;
		} else {
			const proto = Object.getPrototypeOf(this);
			const desc = Object.getOwnPropertyDescriptor(proto, 'value');
			if (desc && desc.set) { desc.set.call(this, v); } else { this.value = v; }
		}
		this.dispatchEvent(new Event('input', {bubbles: true}));
		this.dispatchEvent(new Event('change', {bubbles: true}));
		return true;
	}`, jsonEncode(value))
	if err := d.call(ctx, n, fn, nil); err != nil {
		return fmt.Errorf("failed to set value: %w", err)
	}
	return nil
}

func (d *Driver) SelectOption(ctx context.Context, n browser.Node, label string) error {
	if n == nil {
		return browser.ErrNoNode
	}
	fn := fmt.Sprintf(`function() {
		const label = %s;
		if (this.tagName !== 'SELECT') return 'not-select';
		const opt = Array.from(this.options).find(o => (o.label || o.text || '').trim() === label);
		if (!opt) return 'missing';
		this.value = opt.value;
		opt.selected = true;
		this.dispatchEvent(new Event('input', {bubbles: true}));
		this.dispatchEvent(new Event('change', {bubbles: true}));
		return 'ok';
	}`, jsonEncode(label))

	var status string
	if err := d.call(ctx, n, fn, &status); err != nil {
		return fmt.Errorf("failed to select option: %w", err)
	}
	switch status {
	case "ok":
		return nil
	case "missing":
		return fmt.Errorf("%w: '%s'", browser.ErrOptionNotFound, label)
	default:
		return fmt.Errorf("element %s is not a select control", n)
	}
}

// namedKeys maps DOM key names to chromedp key sequences.
var namedKeys = map[string]string{
	"Enter":      kb.Enter,
	"Tab":        kb.Tab,
	"Escape":     kb.Escape,
	"Backspace":  kb.Backspace,
	"Delete":     kb.Delete,
	"ArrowUp":    kb.ArrowUp,
	"ArrowDown":  kb.ArrowDown,
	"ArrowLeft":  kb.ArrowLeft,
	"ArrowRight": kb.ArrowRight,
	"Home":       kb.Home,
	"End":        kb.End,
	"PageUp":     kb.PageUp,
	"PageDown":   kb.PageDown,
	"Space":      " ",
}

func (d *Driver) Press(ctx context.Context, n browser.Node, key string) error {
	if n == nil {
		return browser.ErrNoNode
	}
	if err := d.call(ctx, n, `function() { this.focus(); return true; }`, nil); err != nil {
		return fmt.Errorf("failed to focus element: %w", err)
	}
	seq, ok := namedKeys[key]
	if !ok {
		seq = key
	}
	return d.run(ctx, chromedp.KeyEvent(seq))
}

func (d *Driver) ScrollBy(ctx context.Context, dx, dy int) error {
	return d.run(ctx, chromedp.Evaluate(fmt.Sprintf("window.scrollBy(%d, %d);", dx, dy), nil))
}

// Close shuts down the tab and the browser process.
func (d *Driver) Close(ctx context.Context) error {
	closeCtx, cancel := context.WithTimeout(browser.Detach(d.tabCtx), 10*time.Second)
	defer cancel()
	err := chromedp.Cancel(closeCtx)
	d.tabCancel()
	d.allocCancel()
	if err != nil && err != context.Canceled {
		d.logger.Debug("Tab close returned an error.", zap.Error(err))
	}
	return nil
}

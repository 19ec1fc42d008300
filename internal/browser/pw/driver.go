// internal/browser/pw/driver.go
//
// Package pw implements browser.Driver on playwright-go. The driver process
// and the browser are started lazily on the first call that needs a page.
package pw

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/domharvest/internal/browser"
	"github.com/xkilldash9x/domharvest/internal/config"
)

const (
	installTimeout  = 5 * time.Minute
	launchTimeoutMs = 60000
	defaultOp       = time.Second
)

// Driver owns one Playwright page.
type Driver struct {
	cfg    config.BrowserConfig
	logger *zap.Logger

	pw      *playwright.Playwright
	browser playwright.Browser
	page    playwright.Page

	initOnce sync.Once
	initErr  error
}

var _ browser.Driver = (*Driver)(nil)

type node struct {
	loc  playwright.Locator
	desc string
}

func (n *node) String() string { return n.desc }

// New returns a driver whose browser is launched on first use.
func New(cfg config.BrowserConfig, logger *zap.Logger) *Driver {
	d := &Driver{cfg: cfg, logger: logger.Named("pw_driver")}
	d.logger.Debug("Playwright driver created (launch deferred).")
	return d
}

func (d *Driver) initialize(ctx context.Context) error {
	d.initOnce.Do(func() {
		if d.cfg.InstallDrivers {
			if err := ensureInstallation(ctx); err != nil {
				d.initErr = err
				return
			}
		}

		pw, err := playwright.Run()
		if err != nil {
			d.initErr = fmt.Errorf("failed to start playwright driver: %w", err)
			return
		}

		opts := playwright.BrowserTypeLaunchOptions{
			Headless: playwright.Bool(d.cfg.Headless),
			Args:     append([]string{"--disable-gpu", "--no-sandbox", "--disable-dev-shm-usage"}, d.cfg.Args...),
			Timeout:  playwright.Float(launchTimeoutMs),
		}
		if d.cfg.ExecPath != "" {
			opts.ExecutablePath = playwright.String(d.cfg.ExecPath)
		}
		b, err := pw.Chromium.Launch(opts)
		if err != nil {
			_ = pw.Stop()
			d.initErr = fmt.Errorf("failed to launch browser instance: %w", err)
			return
		}

		pageOpts := playwright.BrowserNewPageOptions{}
		if d.cfg.ViewportWidth > 0 && d.cfg.ViewportHeight > 0 {
			pageOpts.Viewport = &playwright.Size{Width: d.cfg.ViewportWidth, Height: d.cfg.ViewportHeight}
		}
		page, err := b.NewPage(pageOpts)
		if err != nil {
			_ = b.Close()
			_ = pw.Stop()
			d.initErr = fmt.Errorf("failed to open page: %w", err)
			return
		}

		d.pw, d.browser, d.page = pw, b, page
		d.logger.Info("Playwright browser launched.", zap.String("browser_version", b.Version()))
	})
	return d.initErr
}

func ensureInstallation(ctx context.Context) error {
	installCtx, cancel := context.WithTimeout(ctx, installTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		if err := playwright.Install(&playwright.RunOptions{Browsers: []string{"chromium"}}); err != nil {
			done <- fmt.Errorf("failed to install playwright browsers: %w", err)
			return
		}
		done <- nil
	}()

	select {
	case err := <-done:
		return err
	case <-installCtx.Done():
		return fmt.Errorf("timeout waiting for Playwright installation: %w", installCtx.Err())
	}
}

// ready guards every page operation: ctx must be live and the browser up.
func (d *Driver) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.initialize(ctx)
}

func (d *Driver) scopeLocator(scope browser.Node) (playwright.Locator, error) {
	if scope == nil {
		return nil, nil
	}
	n, ok := scope.(*node)
	if !ok || n == nil {
		return nil, browser.ErrNoNode
	}
	return n.loc, nil
}

func (d *Driver) locate(scope browser.Node, selector string) (playwright.Locator, error) {
	parent, err := d.scopeLocator(scope)
	if err != nil {
		return nil, err
	}
	if parent == nil {
		return d.page.Locator(selector), nil
	}
	return parent.Locator(selector), nil
}

// evaluate runs a two-argument function (root, arg). root is the scoped
// element or null for the document.
func (d *Driver) evaluate(ctx context.Context, scope browser.Node, fn string, arg interface{}) (interface{}, error) {
	if err := d.ready(ctx); err != nil {
		return nil, err
	}
	parent, err := d.scopeLocator(scope)
	if err != nil {
		return nil, err
	}
	if parent == nil {
		return d.page.Evaluate(fmt.Sprintf(`(arg) => (%s)(null, arg)`, fn), arg)
	}
	return parent.Evaluate(fmt.Sprintf(`(el, arg) => (%s)(el, arg)`, fn), arg,
		playwright.LocatorEvaluateOptions{Timeout: playwright.Float(browser.RemainingMillis(ctx, defaultOp))})
}

func (d *Driver) Navigate(ctx context.Context, url string) error {
	if err := d.ready(ctx); err != nil {
		return err
	}
	timeout := d.cfg.NavigationTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	_, err := d.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateLoad,
		Timeout:   playwright.Float(browser.RemainingMillis(ctx, timeout)),
	})
	if err != nil {
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	return nil
}

func (d *Driver) query(ctx context.Context, scope browser.Node, engine, selector string) ([]browser.Node, error) {
	if err := d.ready(ctx); err != nil {
		return nil, err
	}
	loc, err := d.locate(scope, engine+"="+selector)
	if err != nil {
		return nil, err
	}
	all, err := loc.All()
	if err != nil {
		return nil, err
	}
	out := make([]browser.Node, 0, len(all))
	for i, l := range all {
		out = append(out, &node{loc: l, desc: fmt.Sprintf("%s=%s[%d]", engine, selector, i)})
	}
	return out, nil
}

func (d *Driver) QueryCSS(ctx context.Context, scope browser.Node, selector string) ([]browser.Node, error) {
	nodes, err := d.query(ctx, scope, "css", selector)
	if err != nil {
		return nil, fmt.Errorf("css query '%s' failed: %w", selector, err)
	}
	return nodes, nil
}

// QueryXPath resolves expr with the scope element as the context node; an
// expression starting with "/" is made relative to it.
func (d *Driver) QueryXPath(ctx context.Context, scope browser.Node, expr string) ([]browser.Node, error) {
	nodes, err := d.query(ctx, scope, "xpath", expr)
	if err != nil {
		return nil, fmt.Errorf("tree query '%s' failed: %w", expr, err)
	}
	return nodes, nil
}

const valueQueryFn = `(root, xp) => {
	const ctx = root || document;
	if (xp.includes('/@')) {
		return document.evaluate(xp, ctx, null, XPathResult.STRING_TYPE, null).stringValue || null;
	}
	const hit = document.evaluate(xp, ctx, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue;
	return hit ? ((hit.textContent || '').trim() || null) : null;
}`

func (d *Driver) EvaluateXPathString(ctx context.Context, scope browser.Node, expr string) (string, bool, error) {
	res, err := d.evaluate(ctx, scope, valueQueryFn, browser.RelativeTo(scope, expr))
	if err != nil {
		return "", false, fmt.Errorf("value query '%s' failed: %w", expr, err)
	}
	s, ok := res.(string)
	if !ok || s == "" {
		return "", false, nil
	}
	return s, true, nil
}

func (d *Driver) Attribute(ctx context.Context, n browser.Node, name string) (string, bool, error) {
	if n == nil {
		return "", false, browser.ErrNoNode
	}
	res, err := d.evaluate(ctx, n, `(el, name) => el.getAttribute(name)`, name)
	if err != nil {
		return "", false, fmt.Errorf("failed to read attribute '%s': %w", name, err)
	}
	s, ok := res.(string)
	return s, ok, nil
}

func (d *Driver) InnerText(ctx context.Context, n browser.Node) (string, error) {
	if n == nil {
		return "", browser.ErrNoNode
	}
	res, err := d.evaluate(ctx, n, `(el) => (el.innerText || el.textContent || '').trim()`, nil)
	if err != nil {
		return "", fmt.Errorf("failed to read text: %w", err)
	}
	s, _ := res.(string)
	return s, nil
}

func (d *Driver) TagName(ctx context.Context, n browser.Node) (string, error) {
	if n == nil {
		return "", browser.ErrNoNode
	}
	res, err := d.evaluate(ctx, n, `(el) => el.tagName`, nil)
	if err != nil {
		return "", fmt.Errorf("failed to read tag name: %w", err)
	}
	s, _ := res.(string)
	return s, nil
}

func (d *Driver) element(ctx context.Context, n browser.Node) (playwright.Locator, error) {
	if err := d.ready(ctx); err != nil {
		return nil, err
	}
	loc, err := d.scopeLocator(n)
	if err != nil {
		return nil, err
	}
	if loc == nil {
		return nil, browser.ErrNoNode
	}
	return loc, nil
}

func (d *Driver) Click(ctx context.Context, n browser.Node, force bool) error {
	loc, err := d.element(ctx, n)
	if err != nil {
		return err
	}
	return loc.Click(playwright.LocatorClickOptions{
		Force:   playwright.Bool(force),
		Timeout: playwright.Float(browser.RemainingMillis(ctx, defaultOp)),
	})
}

func (d *Driver) SetValue(ctx context.Context, n browser.Node, value string) error {
	loc, err := d.element(ctx, n)
	if err != nil {
		return err
	}
	return loc.Fill(value, playwright.LocatorFillOptions{
		Timeout: playwright.Float(browser.RemainingMillis(ctx, defaultOp)),
	})
}

func (d *Driver) SelectOption(ctx context.Context, n browser.Node, label string) error {
	loc, err := d.element(ctx, n)
	if err != nil {
		return err
	}
	selected, err := loc.SelectOption(playwright.SelectOptionValues{Labels: &[]string{label}},
		playwright.LocatorSelectOptionOptions{Timeout: playwright.Float(browser.RemainingMillis(ctx, defaultOp))})
	if err != nil {
		return err
	}
	if len(selected) == 0 {
		return fmt.Errorf("%w: '%s'", browser.ErrOptionNotFound, label)
	}
	return nil
}

func (d *Driver) Press(ctx context.Context, n browser.Node, key string) error {
	loc, err := d.element(ctx, n)
	if err != nil {
		return err
	}
	return loc.Press(key, playwright.LocatorPressOptions{
		Timeout: playwright.Float(browser.RemainingMillis(ctx, defaultOp)),
	})
}

func (d *Driver) ScrollBy(ctx context.Context, dx, dy int) error {
	if err := d.ready(ctx); err != nil {
		return err
	}
	_, err := d.page.Evaluate(`([x, y]) => window.scrollBy(x, y)`, []int{dx, dy})
	return err
}

// Close shuts down the browser and the driver process if they were started.
func (d *Driver) Close(ctx context.Context) error {
	if d.browser == nil {
		return nil
	}
	done := make(chan error, 1)
	go func() {
		err := d.browser.Close()
		if stopErr := d.pw.Stop(); err == nil {
			err = stopErr
		}
		done <- err
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		d.logger.Warn("Timed out waiting for browser shutdown.", zap.Error(ctx.Err()))
		return ctx.Err()
	}
}

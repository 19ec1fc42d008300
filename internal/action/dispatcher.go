// internal/action/dispatcher.go
//
// Package action resolves one target per call and performs one interaction
// on it. Every action returns a human-readable confirmation or an
// *ActionError; nothing is retried or silently recovered.
package action

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/domharvest/api/schemas"
	"github.com/xkilldash9x/domharvest/internal/browser"
	"github.com/xkilldash9x/domharvest/internal/config"
	"github.com/xkilldash9x/domharvest/internal/extract"
	"github.com/xkilldash9x/domharvest/internal/locator"
	"github.com/xkilldash9x/domharvest/internal/resolver"
)

// IgnoredSelectInput is the confirmation for typing into a select control.
const IgnoredSelectInput = "Ignored input into select element"

// Dispatcher performs actions against one driver.
type Dispatcher struct {
	driver    browser.Driver
	resolver  *resolver.Resolver
	extractor *extract.Extractor
	cfg       config.Config
	logger    *zap.Logger

	// pause waits between the fill and the focusing click of a type action.
	pause func(ctx context.Context, d time.Duration) error
}

// New wires a resolver and an extractor onto d.
func New(d browser.Driver, cfg *config.Config, logger *zap.Logger) *Dispatcher {
	r := resolver.New(d, logger)
	return &Dispatcher{
		driver:    d,
		resolver:  r,
		extractor: extract.New(r, cfg.Resolver, cfg.Extract, logger),
		cfg:       *cfg,
		logger:    logger.Named("dispatcher"),
		pause:     sleep,
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) truncate(s string) string {
	return locator.Truncate(s, d.cfg.Action.TruncateLength)
}

// target resolves desc to a live element under timeout.
func (d *Dispatcher) target(ctx context.Context, kind schemas.StepKind, desc schemas.TargetDescriptor, timeout time.Duration) (resolver.Outcome, error) {
	out, err := d.resolver.Require(ctx, nil, desc, resolver.OptionsFrom(d.cfg.Resolver, timeout))
	if err != nil {
		return out, &ActionError{Kind: kind, Selector: desc.Requested(), Cause: err}
	}
	if out.Element.Node() == nil {
		return out, &ActionError{Kind: kind, Selector: desc.Requested(), Cause: ErrNotElement}
	}
	return out, nil
}

func (d *Dispatcher) fail(log *zap.Logger, err error) error {
	log.Error("Action failed.", zap.Error(err))
	return err
}

// matched describes where an action landed, for confirmations.
func (d *Dispatcher) matched(out resolver.Outcome, desc schemas.TargetDescriptor) string {
	return fmt.Sprintf("%s selector: %s (original: %s)",
		strings.ToUpper(string(out.Strategy)), d.truncate(out.Selector), d.truncate(desc.Requested()))
}

func (d *Dispatcher) callLogger(kind schemas.StepKind) *zap.Logger {
	return d.logger.With(zap.String("call_id", uuid.NewString()), zap.String("action", string(kind)))
}

// Navigate loads an absolute URL and waits for it to finish loading.
func (d *Dispatcher) Navigate(ctx context.Context, rawURL string) (string, error) {
	log := d.callLogger(schemas.StepNavigation)

	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || !u.IsAbs() || (u.Host == "" && u.Scheme != "file") {
		cause := ErrRelativeURL
		if err != nil {
			cause = err
		}
		return "", d.fail(log, &ActionError{Kind: schemas.StepNavigation, Selector: rawURL, Cause: cause})
	}
	if err := d.driver.Navigate(ctx, u.String()); err != nil {
		return "", d.fail(log, &ActionError{Kind: schemas.StepNavigation, Selector: rawURL, Cause: err})
	}

	msg := fmt.Sprintf("Navigated to URL: %s", u.String())
	log.Info(msg)
	return msg, nil
}

// Click force-clicks the resolved element.
func (d *Dispatcher) Click(ctx context.Context, desc schemas.TargetDescriptor) (string, error) {
	log := d.callLogger(schemas.StepClick)

	out, err := d.target(ctx, schemas.StepClick, desc, d.cfg.Resolver.ActionTimeout)
	if err != nil {
		return "", d.fail(log, err)
	}
	if err := d.driver.Click(ctx, out.Element.Node(), true); err != nil {
		return "", d.fail(log, &ActionError{Kind: schemas.StepClick, Selector: desc.Requested(), Cause: err})
	}

	msg := "Clicked element with " + d.matched(out, desc)
	log.Info(msg)
	return msg, nil
}

// Type fills value into the resolved element, then focuses it with a forced
// click. Select controls are left untouched.
func (d *Dispatcher) Type(ctx context.Context, desc schemas.TargetDescriptor, value string) (string, error) {
	log := d.callLogger(schemas.StepInput)
	actionErr := func(cause error) error {
		return d.fail(log, &ActionError{Kind: schemas.StepInput, Selector: desc.Requested(), Cause: cause})
	}

	out, err := d.target(ctx, schemas.StepInput, desc, d.cfg.Resolver.ActionTimeout)
	if err != nil {
		return "", d.fail(log, err)
	}
	n := out.Element.Node()

	tag, err := d.driver.TagName(ctx, n)
	if err != nil {
		return "", actionErr(err)
	}
	if strings.EqualFold(tag, "select") {
		log.Info(IgnoredSelectInput)
		return IgnoredSelectInput, nil
	}

	if err := d.driver.SetValue(ctx, n, value); err != nil {
		return "", actionErr(err)
	}
	if err := d.pause(ctx, d.cfg.Action.SettlePause); err != nil {
		return "", actionErr(err)
	}
	if err := d.driver.Click(ctx, n, true); err != nil {
		return "", actionErr(err)
	}
	if err := d.pause(ctx, d.cfg.Action.SettlePause); err != nil {
		return "", actionErr(err)
	}

	msg := fmt.Sprintf("Input %q into element with %s", value, d.matched(out, desc))
	log.Info(msg)
	return msg, nil
}

// Select picks the option whose visible label is label.
func (d *Dispatcher) Select(ctx context.Context, desc schemas.TargetDescriptor, label string) (string, error) {
	log := d.callLogger(schemas.StepSelect)

	out, err := d.target(ctx, schemas.StepSelect, desc, d.cfg.Resolver.ActionTimeout)
	if err != nil {
		return "", d.fail(log, err)
	}
	if err := d.driver.SelectOption(ctx, out.Element.Node(), label); err != nil {
		return "", d.fail(log, &ActionError{Kind: schemas.StepSelect, Selector: desc.Requested(), Cause: err})
	}

	msg := fmt.Sprintf("Selected option %q in dropdown %s", label, d.matched(out, desc))
	log.Info(msg)
	return msg, nil
}

// KeyPress sends key to the resolved element. Resolution uses the longer
// key-press timeout.
func (d *Dispatcher) KeyPress(ctx context.Context, desc schemas.TargetDescriptor, key string) (string, error) {
	log := d.callLogger(schemas.StepKeyPress)

	out, err := d.target(ctx, schemas.StepKeyPress, desc, d.cfg.Resolver.KeyPressTimeout)
	if err != nil {
		return "", d.fail(log, err)
	}
	if err := d.driver.Press(ctx, out.Element.Node(), key); err != nil {
		return "", d.fail(log, &ActionError{Kind: schemas.StepKeyPress, Selector: desc.Requested(), Cause: err})
	}

	msg := fmt.Sprintf("Pressed key '%s' on element with %s", key, d.matched(out, desc))
	log.Info(msg)
	return msg, nil
}

// Scroll moves the viewport by a relative offset.
func (d *Dispatcher) Scroll(ctx context.Context, x, y int) (string, error) {
	log := d.callLogger(schemas.StepScroll)
	if err := d.driver.ScrollBy(ctx, x, y); err != nil {
		return "", d.fail(log, &ActionError{Kind: schemas.StepScroll, Selector: "window", Cause: err})
	}
	msg := fmt.Sprintf("Scrolled page by (x=%d, y=%d)", x, y)
	log.Info(msg)
	return msg, nil
}

// Extract runs a container extraction over the whole document and returns
// the result as JSON.
func (d *Dispatcher) Extract(ctx context.Context, spec schemas.ExtractionSpec) (string, error) {
	log := d.callLogger(schemas.StepExtractDOM)

	res, err := d.extractor.Run(ctx, nil, spec)
	if err != nil {
		return "", d.fail(log, &ActionError{Kind: schemas.StepExtractDOM, Selector: spec.ContainerLocator(), Cause: err})
	}
	out, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(res)
	if err != nil {
		return "", d.fail(log, &ActionError{Kind: schemas.StepExtractDOM, Selector: spec.ContainerLocator(), Cause: err})
	}

	log.Info("Extracted DOM content.", zap.Int("records", len(res.Records())))
	return string(out), nil
}

// Dispatch routes a recorded step to its action.
func (d *Dispatcher) Dispatch(ctx context.Context, step schemas.Step) (string, error) {
	switch step.Type {
	case schemas.StepNavigation:
		return d.Navigate(ctx, step.URL)
	case schemas.StepClick:
		return d.Click(ctx, step.Target())
	case schemas.StepInput:
		return d.Type(ctx, step.Target(), step.Value)
	case schemas.StepSelect:
		return d.Select(ctx, step.Target(), step.SelectedText)
	case schemas.StepKeyPress:
		return d.KeyPress(ctx, step.Target(), step.Key)
	case schemas.StepScroll:
		return d.Scroll(ctx, step.ScrollX, step.ScrollY)
	case schemas.StepExtractDOM:
		return d.Extract(ctx, step.ExtractionSpec)
	default:
		err := &ActionError{Kind: step.Type, Selector: step.Target().Requested(), Cause: ErrUnknownStep}
		return "", d.fail(d.logger, err)
	}
}

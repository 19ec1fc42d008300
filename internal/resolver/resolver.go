// internal/resolver/resolver.go
//
// Package resolver finds elements for target descriptors by running an
// ordered chain of strategies. The first strategy that yields an element
// wins; a strategy that errors, panics or runs out of time is a miss.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/domharvest/api/schemas"
	"github.com/xkilldash9x/domharvest/internal/browser"
	"github.com/xkilldash9x/domharvest/internal/config"
	"github.com/xkilldash9x/domharvest/internal/locator"
)

// ErrNotFound is returned by Require when every strategy missed.
var ErrNotFound = errors.New("resolver: no strategy matched")

// StrategyTag names the strategy that produced an Outcome.
type StrategyTag string

const (
	StrategyNone    StrategyTag = "none"
	StrategyXPath   StrategyTag = "xpath"
	StrategyCSS     StrategyTag = "css"
	StrategyHint    StrategyTag = "hint"
	StrategyGeneric StrategyTag = "generic"
)

// Outcome is the result of one resolution.
type Outcome struct {
	Element  Element
	Strategy StrategyTag
	// Selector is the concrete locator that matched.
	Selector string
}

func (o Outcome) Found() bool { return o.Element.Found() }

// StrategyFunc attempts one resolution. It returns the zero Element on a miss
// and the locator it used on a hit.
type StrategyFunc func(ctx context.Context, scope browser.Node, desc schemas.TargetDescriptor) (Element, string, error)

// Strategy is one entry of the chain.
type Strategy struct {
	Tag  StrategyTag
	Find StrategyFunc
}

// Options bound each strategy attempt.
type Options struct {
	// Timeout caps every attempt separately. Zero means no cap beyond ctx.
	Timeout time.Duration
	// PollInterval > 0 retries a missing strategy inside its own window.
	PollInterval time.Duration
}

// OptionsFrom builds Options with the given per-attempt timeout and the
// configured poll interval.
func OptionsFrom(cfg config.ResolverConfig, timeout time.Duration) Options {
	return Options{Timeout: timeout, PollInterval: cfg.PollInterval}
}

// Resolver runs the strategy chain against one driver.
type Resolver struct {
	driver     browser.Driver
	logger     *zap.Logger
	strategies []Strategy
}

// New builds a resolver with the standard chain: xpath, css, hint, generic.
func New(driver browser.Driver, logger *zap.Logger) *Resolver {
	r := &Resolver{driver: driver, logger: logger.Named("resolver")}
	r.strategies = []Strategy{
		{Tag: StrategyXPath, Find: r.byTreeQuery},
		{Tag: StrategyCSS, Find: r.byCSS},
		{Tag: StrategyHint, Find: r.byHint},
		{Tag: StrategyGeneric, Find: r.byGeneric},
	}
	return r
}

// Strategies returns the chain in evaluation order.
func (r *Resolver) Strategies() []Strategy {
	out := make([]Strategy, len(r.strategies))
	copy(out, r.strategies)
	return out
}

// Driver returns the driver the resolver queries.
func (r *Resolver) Driver() browser.Driver { return r.driver }

// ResolveOne runs the chain within scope (nil = document) and returns the
// first hit, or an Outcome tagged StrategyNone.
func (r *Resolver) ResolveOne(ctx context.Context, scope browser.Node, desc schemas.TargetDescriptor, opts Options) Outcome {
	for _, s := range r.strategies {
		if ctx.Err() != nil {
			break
		}
		el, sel, err := r.attempt(ctx, scope, desc, s, opts)
		if err != nil {
			r.logger.Debug("Strategy failed.",
				zap.String("strategy", string(s.Tag)),
				zap.String("requested", desc.Requested()),
				zap.Error(err))
			continue
		}
		if el.Found() {
			r.logger.Debug("Strategy matched.",
				zap.String("strategy", string(s.Tag)),
				zap.String("selector", sel),
				zap.Stringer("kind", el.Kind()))
			return Outcome{Element: el, Strategy: s.Tag, Selector: sel}
		}
	}
	return Outcome{Strategy: StrategyNone}
}

// Require is ResolveOne for callers that need a target. It returns
// ErrNotFound on a miss, or the context error when ctx ended first.
func (r *Resolver) Require(ctx context.Context, scope browser.Node, desc schemas.TargetDescriptor, opts Options) (Outcome, error) {
	if !desc.Valid() {
		return Outcome{Strategy: StrategyNone}, fmt.Errorf("%w: descriptor has no locator or name", ErrNotFound)
	}
	out := r.ResolveOne(ctx, scope, desc, opts)
	if out.Found() {
		return out, nil
	}
	if err := ctx.Err(); err != nil {
		return out, err
	}
	return out, ErrNotFound
}

// attempt runs one strategy under its own timeout, polling when configured.
// The deadline of the attempt window is reported as a miss.
func (r *Resolver) attempt(ctx context.Context, scope browser.Node, desc schemas.TargetDescriptor, s Strategy, opts Options) (el Element, sel string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			el, sel, err = Element{}, "", fmt.Errorf("strategy %s panicked: %v", s.Tag, rec)
		}
	}()

	attemptCtx := ctx
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	var limiter *rate.Limiter
	if opts.PollInterval > 0 {
		limiter = rate.NewLimiter(rate.Every(opts.PollInterval), 1)
		limiter.Allow() // the first try is not paced
	}

	for {
		el, sel, err = s.Find(attemptCtx, scope, desc)
		if err != nil {
			if attemptCtx.Err() != nil && ctx.Err() == nil {
				return Element{}, "", nil
			}
			return Element{}, "", err
		}
		if el.Found() || limiter == nil {
			return el, sel, nil
		}
		if waitErr := limiter.Wait(attemptCtx); waitErr != nil {
			return Element{}, "", nil
		}
	}
}

func first(nodes []browser.Node) Element {
	if len(nodes) == 0 {
		return Element{}
	}
	return Live(nodes[0])
}

func (r *Resolver) byTreeQuery(ctx context.Context, scope browser.Node, desc schemas.TargetDescriptor) (Element, string, error) {
	if strings.TrimSpace(desc.PrimaryLocator) == "" {
		return Element{}, "", nil
	}
	expr := locator.Normalize(desc.PrimaryLocator)
	if locator.IsValueQuery(expr) {
		value, ok, err := r.driver.EvaluateXPathString(ctx, scope, expr)
		if err != nil || !ok {
			return Element{}, "", err
		}
		return TextWrapper(value), expr, nil
	}
	nodes, err := r.driver.QueryXPath(ctx, scope, expr)
	if err != nil {
		return Element{}, "", err
	}
	return first(nodes), expr, nil
}

func (r *Resolver) byCSS(ctx context.Context, scope browser.Node, desc schemas.TargetDescriptor) (Element, string, error) {
	sel := strings.TrimSpace(desc.CSSFallback)
	if sel == "" {
		return Element{}, "", nil
	}
	nodes, err := r.driver.QueryCSS(ctx, scope, sel)
	if err != nil {
		return Element{}, "", err
	}
	return first(nodes), sel, nil
}

var tagName = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9-]*$`)

// HintQuery builds the tree query matching an element by tag and normalized
// text. ok is false when either hint is missing or the tag is not a plain name.
func HintQuery(tag, text string) (string, bool) {
	tag = strings.TrimSpace(tag)
	text = strings.Join(strings.Fields(text), " ")
	if tag == "" || text == "" || !tagName.MatchString(tag) {
		return "", false
	}
	return fmt.Sprintf(".//%s[normalize-space(.)=%s]", strings.ToLower(tag), locator.Literal(text)), true
}

func (r *Resolver) byHint(ctx context.Context, scope browser.Node, desc schemas.TargetDescriptor) (Element, string, error) {
	expr, ok := HintQuery(desc.ExpectedTag, desc.ExpectedText)
	if !ok {
		return Element{}, "", nil
	}
	nodes, err := r.driver.QueryXPath(ctx, scope, expr)
	if err != nil {
		return Element{}, "", err
	}
	return first(nodes), expr, nil
}

func (r *Resolver) byGeneric(ctx context.Context, scope browser.Node, desc schemas.TargetDescriptor) (Element, string, error) {
	for _, sel := range GenericSelectors(desc.SemanticName) {
		nodes, err := r.driver.QueryCSS(ctx, scope, sel)
		if err != nil {
			if ctx.Err() != nil {
				return Element{}, "", err
			}
			continue
		}
		if len(nodes) > 0 {
			return Live(nodes[0]), sel, nil
		}
	}
	return Element{}, "", nil
}

// ResolveAll returns every element value matches within scope. It never
// fails: errors are logged and yield an empty slice.
func (r *Resolver) ResolveAll(ctx context.Context, scope browser.Node, kind schemas.LocatorKind, value string) (out []Element) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Warn("Locator query panicked.", zap.String("locator", value), zap.Any("panic", rec))
			out = nil
		}
	}()

	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}

	var (
		nodes []browser.Node
		err   error
	)
	switch kind {
	case schemas.LocatorTreeQuery:
		expr := locator.Normalize(value)
		if locator.IsValueQuery(expr) {
			text, ok, evalErr := r.driver.EvaluateXPathString(ctx, scope, expr)
			if evalErr != nil {
				r.logger.Warn("Value query failed.", zap.String("xpath", expr), zap.Error(evalErr))
				return nil
			}
			if !ok {
				return nil
			}
			return []Element{TextWrapper(text)}
		}
		nodes, err = r.driver.QueryXPath(ctx, scope, expr)
	default:
		nodes, err = r.driver.QueryCSS(ctx, scope, value)
	}
	if err != nil {
		r.logger.Warn("Locator query failed.",
			zap.Stringer("kind", kind),
			zap.String("locator", value),
			zap.Error(err))
		return nil
	}

	out = make([]Element, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, Live(n))
	}
	return out
}

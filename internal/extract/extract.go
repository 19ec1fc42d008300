// internal/extract/extract.go
//
// Package extract pulls typed records out of repeated containers. Field
// failures are soft: a field that cannot be resolved, is excluded, or errors
// becomes null without affecting its siblings. Only a spec whose containers
// cannot be found fails the run.
package extract

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/domharvest/api/schemas"
	"github.com/xkilldash9x/domharvest/internal/browser"
	"github.com/xkilldash9x/domharvest/internal/config"
	"github.com/xkilldash9x/domharvest/internal/resolver"
)

// ConfigurationError reports that neither container locator matched anything.
type ConfigurationError struct {
	Locator string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("no container elements found with selector: %s", e.Locator)
}

// Extractor runs field and container extraction on one driver.
type Extractor struct {
	resolver *resolver.Resolver
	driver   browser.Driver
	opts     resolver.Options
	cfg      config.ExtractConfig
	logger   *zap.Logger
}

// New creates an extractor. Field resolution uses the field timeout from rcfg.
func New(r *resolver.Resolver, rcfg config.ResolverConfig, ecfg config.ExtractConfig, logger *zap.Logger) *Extractor {
	return &Extractor{
		resolver: r,
		driver:   r.Driver(),
		opts:     resolver.OptionsFrom(rcfg, rcfg.FieldTimeout),
		cfg:      ecfg,
		logger:   logger.Named("extractor"),
	}
}

// Field resolves one field inside container and reads its value. It returns
// nil for an unresolved, excluded or failing field.
func (e *Extractor) Field(ctx context.Context, container browser.Node, field schemas.ExtractionField, rules []schemas.ExclusionRule) (value *string) {
	log := e.logger.With(zap.String("field", field.Name))
	defer func() {
		if rec := recover(); rec != nil {
			log.Warn("Field extraction panicked.", zap.Any("panic", rec))
			value = nil
		}
	}()

	out := e.resolver.ResolveOne(ctx, container, field.Target(), e.opts)
	if !out.Found() {
		log.Warn("Field did not resolve.",
			zap.String("xpath", field.XPath),
			zap.String("selector", field.Selector))
		return nil
	}

	if rule, hit := e.excludedBy(ctx, out.Element, rules); hit {
		log.Debug("Field excluded.",
			zap.Stringer("rule_kind", rule.Kind),
			zap.String("rule", rule.Value))
		return nil
	}

	v, err := e.read(ctx, out.Element, field)
	if err != nil {
		log.Warn("Failed to read field value.", zap.String("strategy", string(out.Strategy)), zap.Error(err))
		return nil
	}
	return v
}

// excludedBy returns the first rule matching within el. Rules are evaluated
// relative to the resolved element; a text wrapper has no descendants and is
// never excluded. Rules whose query fails count as not matching.
func (e *Extractor) excludedBy(ctx context.Context, el resolver.Element, rules []schemas.ExclusionRule) (schemas.ExclusionRule, bool) {
	if el.Kind() != resolver.KindLive {
		return schemas.ExclusionRule{}, false
	}
	for _, rule := range rules {
		if len(e.resolver.ResolveAll(ctx, el.Node(), rule.Kind, rule.Value)) > 0 {
			return rule, true
		}
	}
	return schemas.ExclusionRule{}, false
}

func (e *Extractor) read(ctx context.Context, el resolver.Element, field schemas.ExtractionField) (*string, error) {
	switch kind := field.Kind(); kind {
	case schemas.ValueText:
		text, err := el.Text(ctx, e.driver)
		if err != nil {
			return nil, err
		}
		return &text, nil

	case schemas.ValueHref, schemas.ValueSrc:
		return e.attribute(ctx, el, string(kind))

	case schemas.ValueAttribute:
		if el.Kind() == resolver.KindText {
			// A value query already selected the string.
			text, err := el.Text(ctx, e.driver)
			if err != nil {
				return nil, err
			}
			return &text, nil
		}
		return e.attribute(ctx, el, field.Attribute)

	default:
		return nil, fmt.Errorf("unknown value type '%s'", kind)
	}
}

func (e *Extractor) attribute(ctx context.Context, el resolver.Element, name string) (*string, error) {
	v, ok, err := el.Attribute(ctx, e.driver, name)
	if err != nil || !ok {
		return nil, err
	}
	return &v, nil
}

// Run extracts one record per container. Exactly one processed container
// yields a single-record Result; otherwise the Result holds the ordered slice.
func (e *Extractor) Run(ctx context.Context, scope browser.Node, spec schemas.ExtractionSpec) (schemas.Result, error) {
	log := e.logger.With(zap.String("call_id", uuid.NewString()))

	if err := spec.Validate(); err != nil {
		return schemas.Result{}, fmt.Errorf("invalid extraction spec: %w", err)
	}

	containers := e.containers(ctx, scope, spec)
	if len(containers) == 0 {
		if err := ctx.Err(); err != nil {
			return schemas.Result{}, err
		}
		err := &ConfigurationError{Locator: spec.ContainerLocator()}
		log.Error("Extraction aborted.", zap.Error(err))
		return schemas.Result{}, err
	}
	if !spec.Multiple {
		containers = containers[:1]
	}

	log.Debug("Extracting records.",
		zap.Int("containers", len(containers)),
		zap.Int("fields", len(spec.Fields)),
		zap.Bool("parallel", e.cfg.ParallelFields))

	rules := spec.ExclusionRules()
	records := make([]schemas.Record, 0, len(containers))
	for _, c := range containers {
		if err := ctx.Err(); err != nil {
			return schemas.Result{}, err
		}
		records = append(records, e.record(ctx, c, spec.Fields, rules))
	}

	log.Info("Extraction complete.", zap.Int("records", len(records)))
	return schemas.NewResult(records), nil
}

// containers prefers the tree-query locator when it yields elements, then
// falls back to CSS. Only live elements can act as containers.
func (e *Extractor) containers(ctx context.Context, scope browser.Node, spec schemas.ExtractionSpec) []browser.Node {
	collect := func(kind schemas.LocatorKind, value string) []browser.Node {
		var out []browser.Node
		for _, el := range e.resolver.ResolveAll(ctx, scope, kind, value) {
			if n := el.Node(); n != nil {
				out = append(out, n)
			}
		}
		return out
	}

	if spec.ContainerXPath != "" {
		if nodes := collect(schemas.LocatorTreeQuery, spec.ContainerXPath); len(nodes) > 0 {
			return nodes
		}
	}
	if spec.ContainerSelector != "" {
		return collect(schemas.LocatorCSS, spec.ContainerSelector)
	}
	return nil
}

func (e *Extractor) record(ctx context.Context, container browser.Node, fields []schemas.ExtractionField, rules []schemas.ExclusionRule) schemas.Record {
	names := make([]string, len(fields))
	values := make([]*string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}

	if !e.cfg.ParallelFields || len(fields) < 2 {
		for i, f := range fields {
			values[i] = e.Field(ctx, container, f, rules)
		}
		return schemas.NewRecord(names, values)
	}

	limit := e.cfg.MaxParallel
	if limit <= 0 {
		limit = len(fields)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, f := range fields {
		i, f := i, f
		g.Go(func() error {
			values[i] = e.Field(gctx, container, f, rules)
			return nil
		})
	}
	_ = g.Wait()
	return schemas.NewRecord(names, values)
}

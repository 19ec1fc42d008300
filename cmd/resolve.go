// File: cmd/resolve.go
package cmd

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/xkilldash9x/domharvest/api/schemas"
	"github.com/xkilldash9x/domharvest/internal/observability"
	"github.com/xkilldash9x/domharvest/internal/resolver"
)

// resolution is the JSON report printed by `resolve`.
type resolution struct {
	Strategy resolver.StrategyTag `json:"strategy"`
	Selector string               `json:"selector"`
	Kind     string               `json:"kind"`
	Text     string               `json:"text"`
}

// newResolveCmd creates the `resolve` command, which reports which strategy
// finds a target on a page.
func newResolveCmd() *cobra.Command {
	var (
		page pageFlags
		desc schemas.TargetDescriptor
	)

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Show which strategy resolves a target and what it matched",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := configFrom(cmd)
			if err != nil {
				return err
			}
			if !desc.Valid() {
				return fmt.Errorf("one of --xpath, --css, --name or --tag with --text is required")
			}
			pageURL, err := page.target()
			if err != nil {
				return err
			}
			if pageURL == "" {
				return fmt.Errorf("one of --url or --file is required")
			}

			d, cleanup, err := openPage(ctx, cfg, pageURL, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			r := resolver.New(d, logger)
			out, err := r.Require(ctx, nil, desc, resolver.OptionsFrom(cfg.Resolver, cfg.Resolver.ActionTimeout))
			if err != nil {
				return fmt.Errorf("could not resolve '%s': %w", desc.Requested(), err)
			}
			text, err := out.Element.Text(ctx, d)
			if err != nil {
				return fmt.Errorf("failed to read matched element: %w", err)
			}

			raw, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(resolution{
				Strategy: out.Strategy,
				Selector: out.Selector,
				Kind:     out.Element.Kind().String(),
				Text:     text,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(raw))
			return nil
		},
	}

	page.register(cmd)
	cmd.Flags().StringVar(&desc.PrimaryLocator, "xpath", "", "primary tree-query locator")
	cmd.Flags().StringVar(&desc.CSSFallback, "css", "", "CSS selector fallback")
	cmd.Flags().StringVar(&desc.SemanticName, "name", "", "semantic name for generic selectors")
	cmd.Flags().StringVar(&desc.ExpectedTag, "tag", "", "expected tag name hint")
	cmd.Flags().StringVar(&desc.ExpectedText, "text", "", "expected visible text hint")
	return cmd
}

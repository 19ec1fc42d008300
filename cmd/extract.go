// File: cmd/extract.go
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/domharvest/api/schemas"
	"github.com/xkilldash9x/domharvest/internal/action"
	"github.com/xkilldash9x/domharvest/internal/observability"
)

// newExtractCmd creates the `extract` command.
func newExtractCmd() *cobra.Command {
	var (
		page     pageFlags
		specPath string
		output   string
	)

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract records from repeated containers on a page",
		Long: `Loads a page and runs an extraction spec (YAML or JSON) against it.
A single container yields a JSON object; multiple containers yield an array.
Fields that cannot be read are null.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := configFrom(cmd)
			if err != nil {
				return err
			}
			spec, err := schemas.LoadSpec(specPath)
			if err != nil {
				return err
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

			out, err := action.New(d, cfg, logger).Extract(ctx, spec)
			if err != nil {
				return err
			}

			if output == "" {
				fmt.Fprintln(cmd.OutOrStdout(), out)
				return nil
			}
			if err := os.WriteFile(output, []byte(out+"\n"), 0o644); err != nil {
				return fmt.Errorf("failed to write output file: %w", err)
			}
			logger.Info("Extraction written.", zap.String("path", output))
			return nil
		},
	}

	page.register(cmd)
	cmd.Flags().StringVarP(&specPath, "spec", "s", "", "extraction spec file (YAML or JSON)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the result to this file instead of stdout")
	_ = cmd.MarkFlagRequired("spec")
	return cmd
}

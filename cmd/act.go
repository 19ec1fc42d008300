// File: cmd/act.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/domharvest/api/schemas"
	"github.com/xkilldash9x/domharvest/internal/action"
	"github.com/xkilldash9x/domharvest/internal/observability"
)

// newActCmd creates the `act` command, which replays recorded steps.
func newActCmd() *cobra.Command {
	var (
		page  pageFlags
		steps []string
	)

	cmd := &cobra.Command{
		Use:   "act",
		Short: "Replay recorded steps against a page",
		Long: `Replays one or more recorded step files in order and prints the
confirmation of each. Replay stops at the first failing step.
Without --url or --file the first step is expected to navigate.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := configFrom(cmd)
			if err != nil {
				return err
			}

			loaded := make([]schemas.Step, 0, len(steps))
			for _, path := range steps {
				step, err := schemas.LoadStep(path)
				if err != nil {
					return err
				}
				loaded = append(loaded, step)
			}

			pageURL, err := page.target()
			if err != nil {
				return err
			}
			d, cleanup, err := openPage(ctx, cfg, pageURL, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			dispatcher := action.New(d, cfg, logger)
			for i, step := range loaded {
				msg, err := dispatcher.Dispatch(ctx, step)
				if err != nil {
					return fmt.Errorf("step %d (%s): %w", i+1, steps[i], err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), msg)
			}
			logger.Info("Replay complete.", zap.Int("steps", len(loaded)))
			return nil
		},
	}

	page.register(cmd)
	cmd.Flags().StringArrayVar(&steps, "step", nil, "recorded step file (YAML or JSON); repeat to replay several in order")
	_ = cmd.MarkFlagRequired("step")
	return cmd
}

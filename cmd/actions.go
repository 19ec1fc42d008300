// File: cmd/actions.go
package cmd

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/xkilldash9x/domharvest/internal/action"
)

// newActionsCmd creates the `actions` command, which lists the supported
// step kinds with their parameters.
func newActionsCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "actions",
		Short: "List supported step types and their parameters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog := action.Catalog()

			var (
				out []byte
				err error
			)
			switch format {
			case "json":
				out, err = jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(catalog, "", "  ")
				out = append(out, '\n')
			case "yaml":
				out, err = yaml.Marshal(catalog)
			default:
				return fmt.Errorf("unsupported format '%s' (expected json or yaml)", format)
			}
			if err != nil {
				return fmt.Errorf("failed to encode catalog: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "json", "output format: json or yaml")
	return cmd
}

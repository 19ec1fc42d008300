// -- cmd/root.go --
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/domharvest/internal/config"
	"github.com/xkilldash9x/domharvest/internal/observability"
)

type contextKey string

const configKey contextKey = "config"

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	cfgFile  string
	engine   string
	headless bool
	logLevel string
}

// newRootCmd builds the command tree. Each call returns an independent tree
// so tests never share flag state.
func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "domharvest",
		Short:         "Resolve page elements resiliently, extract structured records and replay recorded steps.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			v := viper.New()
			config.SetDefaults(v)

			if err := initializeConfig(cmd, v, opts); err != nil {
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "domharvest"})
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}

			cfg, err := config.NewConfigFromViper(v)
			if err != nil {
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "domharvest"})
				return fmt.Errorf("failed to load or validate config: %w", err)
			}

			observability.InitializeLogger(cfg.Logger)
			observability.GetLogger().Debug("Starting domharvest.",
				zap.String("version", Version),
				zap.String("engine", cfg.Browser.Engine))

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			cmd.SetContext(context.WithValue(ctx, configKey, cfg))
			return nil
		},
	}
	cmd.SetVersionTemplate(`{{printf "domharvest version %s\n" .Version}}`)

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.cfgFile, "config", "c", "", "config file (default is ./domharvest.yaml or ~/.domharvest/domharvest.yaml)")
	flags.StringVar(&opts.engine, "engine", "", "browser engine: static, chromedp, playwright or rod")
	flags.BoolVar(&opts.headless, "headless", true, "run the browser without a window")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	cmd.AddCommand(newExtractCmd())
	cmd.AddCommand(newActCmd())
	cmd.AddCommand(newResolveCmd())
	cmd.AddCommand(newActionsCmd())
	cmd.AddCommand(newVersionCmd())
	return cmd
}

// Execute runs the command tree with a signal-aware context.
func Execute(ctx context.Context) error {
	defer observability.Sync()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			observability.GetLogger().Warn("Command aborted.")
			return err
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

// initializeConfig reads the config file and environment into v and applies
// explicitly set flags on top.
func initializeConfig(cmd *cobra.Command, v *viper.Viper, opts *rootOptions) error {
	if opts.cfgFile != "" {
		path, err := homedir.Expand(opts.cfgFile)
		if err != nil {
			return fmt.Errorf("failed to expand config path: %w", err)
		}
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		if home, err := homedir.Dir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".domharvest"))
		}
		v.SetConfigName("domharvest")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("DOMHARVEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	flags := cmd.Flags()
	if flags.Changed("engine") {
		v.Set("browser.engine", opts.engine)
	}
	if flags.Changed("headless") {
		v.Set("browser.headless", opts.headless)
	}
	if flags.Changed("log-level") {
		v.Set("logger.level", opts.logLevel)
	}
	return nil
}

// configFrom returns the configuration stored by the root pre-run.
func configFrom(cmd *cobra.Command) (*config.Config, error) {
	cfg, ok := cmd.Context().Value(configKey).(*config.Config)
	if !ok || cfg == nil {
		return nil, fmt.Errorf("configuration not initialized")
	}
	return cfg, nil
}

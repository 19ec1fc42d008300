// File: cmd/session.go
package cmd

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/domharvest/internal/browser"
	"github.com/xkilldash9x/domharvest/internal/browser/open"
	"github.com/xkilldash9x/domharvest/internal/config"
)

const closeTimeout = 10 * time.Second

// pageFlags are the flags that choose the page a command works on.
type pageFlags struct {
	url  string
	file string
}

func (p *pageFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&p.url, "url", "", "absolute URL of the page to load")
	cmd.Flags().StringVar(&p.file, "file", "", "local HTML file to load")
	cmd.MarkFlagsMutuallyExclusive("url", "file")
}

// target returns the URL to load, or "" when neither flag was given.
func (p *pageFlags) target() (string, error) {
	if p.file == "" {
		return p.url, nil
	}
	path, err := homedir.Expand(p.file)
	if err != nil {
		return "", fmt.Errorf("failed to expand path '%s': %w", p.file, err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path '%s': %w", path, err)
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String(), nil
}

// openPage starts the configured engine and loads pageURL when it is not
// empty. The returned cleanup closes the engine.
func openPage(ctx context.Context, cfg *config.Config, pageURL string, logger *zap.Logger) (browser.Driver, func(), error) {
	d, err := open.Driver(ctx, cfg.Browser, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open browser engine: %w", err)
	}
	cleanup := func() {
		closeCtx, cancel := context.WithTimeout(browser.Detach(ctx), closeTimeout)
		defer cancel()
		if err := d.Close(closeCtx); err != nil {
			logger.Warn("Failed to close browser engine.", zap.Error(err))
		}
	}

	if pageURL == "" {
		return d, cleanup, nil
	}

	navCtx, cancel := context.WithTimeout(ctx, cfg.Browser.NavigationTimeout)
	defer cancel()
	if err := d.Navigate(navCtx, pageURL); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to load page: %w", err)
	}
	logger.Info("Page loaded.", zap.String("url", pageURL))
	return d, cleanup, nil
}

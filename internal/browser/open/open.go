// Package open selects and starts the configured browser engine.
package open

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/domharvest/internal/browser"
	"github.com/xkilldash9x/domharvest/internal/browser/cdp"
	"github.com/xkilldash9x/domharvest/internal/browser/pw"
	"github.com/xkilldash9x/domharvest/internal/browser/rodriver"
	"github.com/xkilldash9x/domharvest/internal/browser/static"
	"github.com/xkilldash9x/domharvest/internal/config"
)

// Driver starts the engine named by cfg.Engine. The caller owns the result
// and must Close it.
func Driver(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (browser.Driver, error) {
	logger.Debug("Opening browser engine.", zap.String("engine", cfg.Engine))
	switch cfg.Engine {
	case config.EngineStatic:
		return static.New(logger), nil
	case config.EngineChromedp:
		return cdp.New(ctx, cfg, logger)
	case config.EnginePlaywright:
		return pw.New(cfg, logger), nil
	case config.EngineRod:
		return rodriver.New(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("%w: engine '%s'", browser.ErrUnsupported, cfg.Engine)
	}
}

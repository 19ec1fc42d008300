// File: internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Supported browser engines.
const (
	EngineStatic     = "static"
	EngineChromedp   = "chromedp"
	EnginePlaywright = "playwright"
	EngineRod        = "rod"
)

// Config holds the entire application configuration.
type Config struct {
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	Browser  BrowserConfig  `mapstructure:"browser" yaml:"browser"`
	Resolver ResolverConfig `mapstructure:"resolver" yaml:"resolver"`
	Extract  ExtractConfig  `mapstructure:"extract" yaml:"extract"`
	Action   ActionConfig   `mapstructure:"action" yaml:"action"`
}

// LoggerConfig defines all the settings for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color names for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig selects and configures the page-control engine.
type BrowserConfig struct {
	Engine            string        `mapstructure:"engine" yaml:"engine"`
	Headless          bool          `mapstructure:"headless" yaml:"headless"`
	ExecPath          string        `mapstructure:"exec_path" yaml:"exec_path"`
	Args              []string      `mapstructure:"args" yaml:"args"`
	ViewportWidth     int           `mapstructure:"viewport_width" yaml:"viewport_width"`
	ViewportHeight    int           `mapstructure:"viewport_height" yaml:"viewport_height"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	// InstallDrivers lets the playwright engine download its browser on first use.
	InstallDrivers bool `mapstructure:"install_drivers" yaml:"install_drivers"`
}

// ResolverConfig bounds each strategy attempt.
type ResolverConfig struct {
	ActionTimeout   time.Duration `mapstructure:"action_timeout" yaml:"action_timeout"`
	KeyPressTimeout time.Duration `mapstructure:"keypress_timeout" yaml:"keypress_timeout"`
	FieldTimeout    time.Duration `mapstructure:"field_timeout" yaml:"field_timeout"`
	// PollInterval > 0 retries a missing strategy within its own window.
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
}

// ExtractConfig tunes the container extraction engine.
type ExtractConfig struct {
	ParallelFields bool `mapstructure:"parallel_fields" yaml:"parallel_fields"`
	MaxParallel    int  `mapstructure:"max_parallel" yaml:"max_parallel"`
}

// ActionConfig tunes the action dispatcher.
type ActionConfig struct {
	SettlePause    time.Duration `mapstructure:"settle_pause" yaml:"settle_pause"`
	TruncateLength int           `mapstructure:"truncate_length" yaml:"truncate_length"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for every configuration key.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "domharvest")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Browser --
	v.SetDefault("browser.engine", EngineChromedp)
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.viewport_width", 1280)
	v.SetDefault("browser.viewport_height", 800)
	v.SetDefault("browser.navigation_timeout", "60s")
	v.SetDefault("browser.install_drivers", false)

	// -- Resolver --
	v.SetDefault("resolver.action_timeout", "1s")
	v.SetDefault("resolver.keypress_timeout", "5s")
	v.SetDefault("resolver.field_timeout", "1s")
	v.SetDefault("resolver.poll_interval", "0s")

	// -- Extract --
	v.SetDefault("extract.parallel_fields", false)
	v.SetDefault("extract.max_parallel", 4)

	// -- Action --
	v.SetDefault("action.settle_pause", "500ms")
	v.SetDefault("action.truncate_length", 50)
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	cfg.Browser.Engine = strings.ToLower(strings.TrimSpace(cfg.Browser.Engine))

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for sane values.
func (c *Config) Validate() error {
	if err := c.Browser.Validate(); err != nil {
		return fmt.Errorf("browser configuration invalid: %w", err)
	}
	if err := c.Resolver.Validate(); err != nil {
		return fmt.Errorf("resolver configuration invalid: %w", err)
	}
	if c.Extract.ParallelFields && c.Extract.MaxParallel <= 0 {
		return fmt.Errorf("extract.max_parallel must be a positive integer when parallel_fields is enabled")
	}
	if c.Action.SettlePause < 0 {
		return fmt.Errorf("action.settle_pause must not be negative")
	}
	return nil
}

// Validate checks the browser engine selection.
func (b *BrowserConfig) Validate() error {
	switch b.Engine {
	case EngineStatic, EngineChromedp, EnginePlaywright, EngineRod:
	default:
		return fmt.Errorf("unknown engine '%s' (expected one of %s, %s, %s, %s)",
			b.Engine, EngineStatic, EngineChromedp, EnginePlaywright, EngineRod)
	}
	if b.NavigationTimeout <= 0 {
		return fmt.Errorf("navigation_timeout must be a positive duration")
	}
	return nil
}

// Validate checks the resolver timeouts.
func (r *ResolverConfig) Validate() error {
	if r.ActionTimeout <= 0 || r.KeyPressTimeout <= 0 || r.FieldTimeout <= 0 {
		return fmt.Errorf("action_timeout, keypress_timeout and field_timeout must be positive durations")
	}
	if r.PollInterval < 0 {
		return fmt.Errorf("poll_interval must not be negative")
	}
	return nil
}

package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/tinytelemetry/cardeck/internal/deck"
	"github.com/tinytelemetry/cardeck/internal/disneyapi"
	"github.com/tinytelemetry/cardeck/internal/model"
)

const (
	defaultAPIAddr          = "127.0.0.1:3000"
	defaultQueryTimeout     = 10 * time.Second
	defaultVerdictRetention = 90 // days, 0 = keep forever
	defaultPointerScaleX    = 5.0
	defaultPointerScaleY    = 10.0
)

// appConfig is internal runtime configuration.
// It is package-private to keep defaults and shape local to the CLI entrypoint.
type appConfig struct {
	BaseURL         string        `mapstructure:"base-url"`
	PageSize        int           `mapstructure:"page-size"`
	HTTPTimeout     time.Duration `mapstructure:"http-timeout"`
	FetchTimeout    time.Duration `mapstructure:"fetch-timeout"`
	CatalogCacheTTL time.Duration `mapstructure:"catalog-cache-ttl"`

	DrawSize       int           `mapstructure:"draw-size"`
	TopUpSize      int           `mapstructure:"top-up-size"`
	TopUpFloor     int           `mapstructure:"top-up-floor"`
	TopUpPlacement string        `mapstructure:"top-up-placement"`
	SettleDelay    time.Duration `mapstructure:"settle-delay"`
	SwipeThreshold float64       `mapstructure:"swipe-threshold"`
	PointerScaleX  float64       `mapstructure:"pointer-scale-x"`
	PointerScaleY  float64       `mapstructure:"pointer-scale-y"`
	Skin           string        `mapstructure:"skin"`

	VerdictsEnabled      bool          `mapstructure:"verdicts-enabled"`
	DBPath               string        `mapstructure:"db-path"`
	QueryTimeout         time.Duration `mapstructure:"query-timeout"`
	VerdictRetentionDays int           `mapstructure:"verdict-retention-days"`

	APIAddr    string        `mapstructure:"api-addr"`
	SessionTTL time.Duration `mapstructure:"session-ttl"`
	LogLevel   string        `mapstructure:"log-level"`

	ConfigPath string     `mapstructure:"-"` // not from config file
	placement  deck.Placement
	level      slog.Level
}

func loadConfig(configPath string) (appConfig, error) {
	var cfg appConfig

	home, err := os.UserHomeDir()
	if err != nil {
		return cfg, fmt.Errorf("finding home directory: %w", err)
	}

	defaultDBPath := filepath.Join(home, ".local", "share", "cardeck", "cardeck.duckdb")

	v := viper.New()
	v.SetEnvPrefix("CARDECK")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	v.SetDefault("base-url", model.DefaultBaseURL)
	v.SetDefault("page-size", 0)
	v.SetDefault("http-timeout", model.DefaultHTTPTimeout)
	v.SetDefault("fetch-timeout", time.Duration(0))
	v.SetDefault("catalog-cache-ttl", time.Duration(0))
	v.SetDefault("draw-size", model.DefaultDrawSize)
	v.SetDefault("top-up-size", model.DefaultTopUpSize)
	v.SetDefault("top-up-floor", model.DefaultTopUpFloor)
	v.SetDefault("top-up-placement", "top")
	v.SetDefault("settle-delay", model.DefaultSettleDelay)
	v.SetDefault("swipe-threshold", model.DefaultSwipeThreshold)
	v.SetDefault("pointer-scale-x", defaultPointerScaleX)
	v.SetDefault("pointer-scale-y", defaultPointerScaleY)
	v.SetDefault("skin", model.DefaultSkin)
	v.SetDefault("verdicts-enabled", true)
	v.SetDefault("db-path", defaultDBPath)
	v.SetDefault("query-timeout", defaultQueryTimeout)
	v.SetDefault("verdict-retention-days", defaultVerdictRetention)
	v.SetDefault("api-addr", defaultAPIAddr)
	v.SetDefault("session-ttl", model.DefaultSessionTTL)
	v.SetDefault("log-level", "info")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigFile(filepath.Join(home, ".config", "cardeck", "config.yml"))
	}

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFound) && !os.IsNotExist(err) {
			return cfg, err
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}
	if _, err := os.Stat(v.ConfigFileUsed()); err == nil {
		cfg.ConfigPath = v.ConfigFileUsed()
	}

	if err := cfg.validate(); err != nil {
		return cfg, err
	}

	// Expand ~ in db-path
	if strings.HasPrefix(cfg.DBPath, "~/") {
		cfg.DBPath = filepath.Join(home, cfg.DBPath[2:])
	}

	return cfg, nil
}

func (c *appConfig) validate() error {
	if c.DrawSize < 1 || c.DrawSize > model.MaxDrawSize {
		return fmt.Errorf("invalid draw-size: %d (want 1..%d)", c.DrawSize, model.MaxDrawSize)
	}
	if c.PageSize < 0 {
		return fmt.Errorf("invalid page-size: %d", c.PageSize)
	}
	if c.TopUpSize < 1 {
		return fmt.Errorf("invalid top-up-size: %d", c.TopUpSize)
	}
	if c.TopUpFloor < 1 {
		return fmt.Errorf("invalid top-up-floor: %d", c.TopUpFloor)
	}
	if c.SwipeThreshold <= 0 {
		return fmt.Errorf("invalid swipe-threshold: %g", c.SwipeThreshold)
	}
	if c.PointerScaleX <= 0 || c.PointerScaleY <= 0 {
		return fmt.Errorf("invalid pointer scale: %gx%g", c.PointerScaleX, c.PointerScaleY)
	}
	if c.FetchTimeout < 0 || c.CatalogCacheTTL < 0 || c.SessionTTL < 0 {
		return errors.New("durations must not be negative")
	}
	if c.VerdictRetentionDays < 0 {
		return fmt.Errorf("invalid verdict-retention-days: %d", c.VerdictRetentionDays)
	}

	p, err := deck.ParsePlacement(c.TopUpPlacement)
	if err != nil {
		return err
	}
	c.placement = p

	if err := c.level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return fmt.Errorf("invalid log-level: %w", err)
	}
	return nil
}

func (c appConfig) deckConfig() deck.Config {
	d := deck.DefaultConfig()
	d.TopUpSize = c.TopUpSize
	d.TopUpFloor = c.TopUpFloor
	d.SettleDelay = c.SettleDelay
	d.FetchTimeout = c.FetchTimeout
	d.Placement = c.placement
	return d
}

func (c appConfig) gestureConfig() deck.GestureConfig {
	g := deck.DefaultGestureConfig()
	g.Threshold = c.SwipeThreshold
	return g
}

// newCharacterClient builds the catalog client shared by every deck in the
// process.
func newCharacterClient(c appConfig, logger *slog.Logger) *disneyapi.Client {
	return disneyapi.NewClient(&http.Client{Timeout: c.HTTPTimeout}, disneyapi.Options{
		BaseURL:  c.BaseURL,
		PageSize: c.PageSize,
		CacheTTL: c.CatalogCacheTTL,
		Logger:   logger,
	})
}

package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
)

// Config holds all runtime configuration for papertrade.
type Config struct {
	Port     int    `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// EvaluationSchedule is a cron spec for the background evaluation pass.
	EvaluationSchedule string        `env:"EVALUATION_SCHEDULE" envDefault:"@every 1s"`
	EvaluationTimeout  time.Duration `env:"EVALUATION_TIMEOUT" envDefault:"5s"`

	PriceFeed PriceFeedConfig `envPrefix:"PRICE_FEED_"`

	WebhookTimeout  time.Duration `env:"WEBHOOK_TIMEOUT" envDefault:"5s"`
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	IdleTimeout     time.Duration `env:"IDLE_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	// SeedStocks overrides the default catalog with SYMBOL:PRICE entries.
	SeedStocks []string `env:"SEED_STOCKS" envSeparator:","`

	seeds []StockSeed
}

// PriceFeedConfig configures the websocket price stream. An empty URL
// disables it.
type PriceFeedConfig struct {
	URL        string        `env:"URL"`
	MaxRetries int           `env:"MAX_RETRIES" envDefault:"5"`
	Heartbeat  time.Duration `env:"HEARTBEAT" envDefault:"30s"`
}

// StockSeed is a stock listed at startup.
type StockSeed struct {
	Symbol        string
	Name          string
	Price         decimal.Decimal
	PreviousClose decimal.Decimal
}

// DefaultSeeds is the catalog listed when SEED_STOCKS is unset.
var DefaultSeeds = []StockSeed{
	{Symbol: "AAPL", Name: "Apple Inc.", Price: decimal.RequireFromString("178.50"), PreviousClose: decimal.RequireFromString("176.00")},
	{Symbol: "GOOGL", Name: "Alphabet Inc.", Price: decimal.RequireFromString("141.80"), PreviousClose: decimal.RequireFromString("140.20")},
	{Symbol: "MSFT", Name: "Microsoft Corp.", Price: decimal.RequireFromString("378.90"), PreviousClose: decimal.RequireFromString("375.00")},
	{Symbol: "TSLA", Name: "Tesla Inc.", Price: decimal.RequireFromString("248.50"), PreviousClose: decimal.RequireFromString("252.00")},
	{Symbol: "AMZN", Name: "Amazon.com Inc.", Price: decimal.RequireFromString("185.60"), PreviousClose: decimal.RequireFromString("183.00")},
}

// Load reads configuration from an optional .env file and environment
// variables, applies defaults, and validates values. It returns an error
// for any invalid value.
func Load() (*Config, error) {
	// A missing .env file is fine.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	seeds, err := parseSeeds(cfg.SeedStocks)
	if err != nil {
		return nil, fmt.Errorf("invalid SEED_STOCKS: %w", err)
	}
	cfg.seeds = seeds
	return cfg, nil
}

// Seeds returns the stock catalog to list at startup.
func (c *Config) Seeds() []StockSeed {
	if c.seeds == nil {
		return DefaultSeeds
	}
	return c.seeds
}

func (c *Config) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT: %d, must be between 1 and 65535", c.Port)
	}
	if !isValidLogLevel(c.LogLevel) {
		return fmt.Errorf("invalid LOG_LEVEL: %q, must be one of: debug, info, warn, error", c.LogLevel)
	}
	if _, err := cron.ParseStandard(c.EvaluationSchedule); err != nil {
		return fmt.Errorf("invalid EVALUATION_SCHEDULE: %w", err)
	}

	for name, d := range map[string]time.Duration{
		"EVALUATION_TIMEOUT":   c.EvaluationTimeout,
		"WEBHOOK_TIMEOUT":      c.WebhookTimeout,
		"READ_TIMEOUT":         c.ReadTimeout,
		"WRITE_TIMEOUT":        c.WriteTimeout,
		"IDLE_TIMEOUT":         c.IdleTimeout,
		"SHUTDOWN_TIMEOUT":     c.ShutdownTimeout,
		"PRICE_FEED_HEARTBEAT": c.PriceFeed.Heartbeat,
	} {
		if d <= 0 {
			return fmt.Errorf("invalid %s: %v, must be positive", name, d)
		}
	}

	if c.PriceFeed.MaxRetries < 0 {
		return fmt.Errorf("invalid PRICE_FEED_MAX_RETRIES: %d, must be >= 0", c.PriceFeed.MaxRetries)
	}
	if c.PriceFeed.URL != "" {
		u, err := url.Parse(c.PriceFeed.URL)
		if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
			return fmt.Errorf("invalid PRICE_FEED_URL: %q, must be a ws:// or wss:// URL", c.PriceFeed.URL)
		}
	}
	return nil
}

// parseSeeds parses SYMBOL:PRICE entries. An empty list yields DefaultSeeds.
func parseSeeds(entries []string) ([]StockSeed, error) {
	if len(entries) == 0 {
		return DefaultSeeds, nil
	}

	seen := make(map[string]bool, len(entries))
	seeds := make([]StockSeed, 0, len(entries))
	for _, entry := range entries {
		symbol, price, ok := strings.Cut(strings.TrimSpace(entry), ":")
		if !ok || symbol == "" {
			return nil, fmt.Errorf("entry %q must be SYMBOL:PRICE", entry)
		}
		p, err := decimal.NewFromString(price)
		if err != nil {
			return nil, fmt.Errorf("entry %q: %w", entry, err)
		}
		if !p.IsPositive() {
			return nil, fmt.Errorf("entry %q: price must be greater than 0", entry)
		}
		if seen[symbol] {
			return nil, fmt.Errorf("duplicate symbol %s", symbol)
		}
		seen[symbol] = true
		seeds = append(seeds, StockSeed{Symbol: symbol, Name: symbol, Price: p, PreviousClose: p})
	}
	return seeds, nil
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}

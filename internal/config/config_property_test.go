package config

import (
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"pgregory.net/rapid"
)

// Feature: papertrade, Property 10: Configuration parsing

var validLogLevels = []string{"debug", "info", "warn", "error"}

// durationDefaults maps every duration key to its default.
var durationDefaults = map[string]time.Duration{
	"PRICE_FEED_HEARTBEAT": 30 * time.Second,
	"EVALUATION_TIMEOUT":   5 * time.Second,
	"WEBHOOK_TIMEOUT":      5 * time.Second,
	"READ_TIMEOUT":         5 * time.Second,
	"WRITE_TIMEOUT":        10 * time.Second,
	"IDLE_TIMEOUT":         60 * time.Second,
	"SHUTDOWN_TIMEOUT":     10 * time.Second,
}

var durationEnvKeys = []string{
	"PRICE_FEED_HEARTBEAT",
	"EVALUATION_TIMEOUT",
	"WEBHOOK_TIMEOUT",
	"READ_TIMEOUT",
	"WRITE_TIMEOUT",
	"IDLE_TIMEOUT",
	"SHUTDOWN_TIMEOUT",
}

var allEnvKeys = append([]string{
	"PORT", "LOG_LEVEL", "EVALUATION_SCHEDULE",
	"PRICE_FEED_URL", "PRICE_FEED_MAX_RETRIES", "SEED_STOCKS",
}, durationEnvKeys...)

func unsetAllConfigEnv() {
	for _, key := range allEnvKeys {
		os.Unsetenv(key)
	}
}

func durationsOf(cfg *Config) map[string]time.Duration {
	return map[string]time.Duration{
		"PRICE_FEED_HEARTBEAT": cfg.PriceFeed.Heartbeat,
		"EVALUATION_TIMEOUT":   cfg.EvaluationTimeout,
		"WEBHOOK_TIMEOUT":      cfg.WebhookTimeout,
		"READ_TIMEOUT":         cfg.ReadTimeout,
		"WRITE_TIMEOUT":        cfg.WriteTimeout,
		"IDLE_TIMEOUT":         cfg.IdleTimeout,
		"SHUTDOWN_TIMEOUT":     cfg.ShutdownTimeout,
	}
}

// genDuration generates a positive duration in a unit Go accepts.
func genDuration() *rapid.Generator[time.Duration] {
	return rapid.Custom(func(t *rapid.T) time.Duration {
		unit := rapid.SampledFrom([]time.Duration{time.Millisecond, time.Second, time.Minute}).Draw(t, "unit")
		return time.Duration(rapid.IntRange(1, 600).Draw(t, "val")) * unit
	})
}

func TestProperty_ValidConfigParsing(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		unsetAllConfigEnv()
		defer unsetAllConfigEnv()

		wantPort := 8080
		if rapid.Bool().Draw(t, "setPort") {
			wantPort = rapid.IntRange(1, 65535).Draw(t, "port")
			os.Setenv("PORT", fmt.Sprint(wantPort))
		}
		wantLevel := "info"
		if rapid.Bool().Draw(t, "setLevel") {
			wantLevel = rapid.SampledFrom(validLogLevels).Draw(t, "level")
			os.Setenv("LOG_LEVEL", wantLevel)
		}
		wantRetries := 5
		if rapid.Bool().Draw(t, "setRetries") {
			wantRetries = rapid.IntRange(0, 50).Draw(t, "retries")
			os.Setenv("PRICE_FEED_MAX_RETRIES", fmt.Sprint(wantRetries))
		}

		want := make(map[string]time.Duration, len(durationDefaults))
		for _, key := range durationEnvKeys {
			want[key] = durationDefaults[key]
			if rapid.Bool().Draw(t, "set"+key) {
				want[key] = genDuration().Draw(t, key)
				os.Setenv(key, want[key].String())
			}
		}

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() returned error for valid inputs: %v", err)
		}
		if cfg.Port != wantPort {
			t.Fatalf("Port = %d, want %d", cfg.Port, wantPort)
		}
		if cfg.LogLevel != wantLevel {
			t.Fatalf("LogLevel = %q, want %q", cfg.LogLevel, wantLevel)
		}
		if cfg.PriceFeed.MaxRetries != wantRetries {
			t.Fatalf("PriceFeed.MaxRetries = %d, want %d", cfg.PriceFeed.MaxRetries, wantRetries)
		}
		for key, got := range durationsOf(cfg) {
			if got != want[key] {
				t.Fatalf("%s = %v, want %v", key, got, want[key])
			}
		}
	})
}

func TestProperty_SeedStocksPreserveOrderAndPrice(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		unsetAllConfigEnv()
		defer unsetAllConfigEnv()

		symbols := rapid.SliceOfNDistinct(rapid.StringMatching(`[A-Z]{1,5}`), 1, 8, rapid.ID[string]).Draw(t, "symbols")
		prices := make([]decimal.Decimal, len(symbols))
		entries := make([]string, len(symbols))
		for i, sym := range symbols {
			cents := rapid.Int64Range(1, 10_000_000).Draw(t, "cents")
			prices[i] = decimal.New(cents, -2)
			entries[i] = sym + ":" + prices[i].String()
		}
		os.Setenv("SEED_STOCKS", strings.Join(entries, ","))

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() rejected %q: %v", strings.Join(entries, ","), err)
		}
		seeds := cfg.Seeds()
		if len(seeds) != len(symbols) {
			t.Fatalf("got %d seeds, want %d", len(seeds), len(symbols))
		}
		for i, s := range seeds {
			if s.Symbol != symbols[i] || !s.Price.Equal(prices[i]) || !s.PreviousClose.Equal(prices[i]) {
				t.Fatalf("seed %d = %+v, want %s at %s", i, s, symbols[i], prices[i])
			}
		}
	})
}

func TestProperty_MalformedValuesRejected(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		unsetAllConfigEnv()
		defer unsetAllConfigEnv()

		key := rapid.SampledFrom(allEnvKeys).Draw(t, "key")
		var value string
		switch key {
		case "PORT", "PRICE_FEED_MAX_RETRIES":
			value = rapid.StringMatching(`[a-zA-Z]{1,10}`).Draw(t, "value")
		case "LOG_LEVEL":
			value = rapid.StringMatching(`[a-z]{1,20}`).Filter(func(s string) bool {
				for _, v := range validLogLevels {
					if s == v {
						return false
					}
				}
				return true
			}).Draw(t, "value")
		case "EVALUATION_SCHEDULE":
			value = "@every " + rapid.StringMatching(`[a-z]{2,8}`).Draw(t, "value")
		case "PRICE_FEED_URL":
			value = rapid.SampledFrom([]string{"http", "https", "tcp"}).Draw(t, "scheme") + "://feed.example.com"
		case "SEED_STOCKS":
			value = rapid.StringMatching(`[A-Z]{1,5}`).Draw(t, "value")
		default:
			if rapid.Bool().Draw(t, "nonPositive") {
				value = "-" + genDuration().Draw(t, "value").String()
			} else {
				value = rapid.StringMatching(`[a-zA-Z]{2,10}`).Draw(t, "value")
			}
		}
		os.Setenv(key, value)

		if _, err := Load(); err == nil {
			t.Fatalf("Load() accepted %s=%q", key, value)
		}
	})
}

func TestProperty_EverySchedulesAccepted(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		unsetAllConfigEnv()
		defer unsetAllConfigEnv()

		schedule := "@every " + genDuration().Draw(t, "every").String()
		os.Setenv("EVALUATION_SCHEDULE", schedule)

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() rejected schedule %q: %v", schedule, err)
		}
		if cfg.EvaluationSchedule != schedule {
			t.Fatalf("EvaluationSchedule = %q, want %q", cfg.EvaluationSchedule, schedule)
		}
	})
}

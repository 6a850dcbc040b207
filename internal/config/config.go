// Package config loads the flat, env-var-driven configuration surface of
// §6.6, in the same idiom as examples/hackathon-starter/main.go:
// godotenv.Load() followed by os.Getenv with explicit defaults. A YAML or
// viper-backed layer was considered and rejected — see DESIGN.md — because
// this repo's configuration surface is the same size and shape as the
// teacher's own flat env-var config.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// StoreBackend selects which Purchase/Report Store implementation to wire.
type StoreBackend string

const (
	BackendSQLite   StoreBackend = "sqlite"
	BackendBigQuery StoreBackend = "bigquery"
)

// Config is the process-wide configuration, populated once at start-up.
type Config struct {
	StoreBackend StoreBackend

	SQLitePath string

	BigQueryProject string
	BigQueryDataset string

	AnthropicAPIKey string
	SearchModel     string
	SearchMaxFindings int

	DealsAllowedCategories []string

	WeeklyTopN          int
	WeeklyMinSavingsUSD float64

	ConcurrencyUsers int

	CORSAllowOrigins []string

	Port string

	LogLevel string
}

// Load reads the configuration from the environment (after attempting to
// load a local .env file, ignoring its absence) and applies the defaults
// named in §6.6.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		StoreBackend:           StoreBackend(getenv("STORE_BACKEND", string(BackendSQLite))),
		SQLitePath:             getenv("SQLITE_PATH", "./finance-analytics.db"),
		BigQueryProject:        os.Getenv("BIGQUERY_PROJECT"),
		BigQueryDataset:        os.Getenv("BIGQUERY_DATASET"),
		AnthropicAPIKey:        os.Getenv("ANTHROPIC_API_KEY"),
		SearchModel:            getenv("SEARCH_MODEL", "claude-sonnet-4-5"),
		SearchMaxFindings:      getenvInt("SEARCH_MAX_FINDINGS", 20),
		DealsAllowedCategories: getenvList("DEALS_ALLOWED_CATEGORIES", []string{"Groceries"}),
		WeeklyTopN:             getenvInt("WEEKLY_TOP_N", 5),
		WeeklyMinSavingsUSD:    getenvFloat("WEEKLY_MIN_SAVINGS_USD", 10.00),
		ConcurrencyUsers:       getenvInt("CONCURRENCY_USERS", 10),
		CORSAllowOrigins:       getenvList("CORS_ALLOW_ORIGINS", []string{"*"}),
		Port:                   getenv("PORT", "8080"),
		LogLevel:               getenv("LOG_LEVEL", "info"),
	}

	if cfg.StoreBackend != BackendSQLite && cfg.StoreBackend != BackendBigQuery {
		return Config{}, fmt.Errorf("invalid STORE_BACKEND %q: must be %q or %q", cfg.StoreBackend, BackendSQLite, BackendBigQuery)
	}
	if cfg.StoreBackend == BackendBigQuery && (cfg.BigQueryProject == "" || cfg.BigQueryDataset == "") {
		return Config{}, fmt.Errorf("BIGQUERY_PROJECT and BIGQUERY_DATASET are required when STORE_BACKEND=bigquery")
	}

	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getenvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func getenvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	keys := []string{
		"STORE_BACKEND", "SQLITE_PATH", "BIGQUERY_PROJECT", "BIGQUERY_DATASET",
		"ANTHROPIC_API_KEY", "SEARCH_MODEL", "SEARCH_MAX_FINDINGS",
		"DEALS_ALLOWED_CATEGORIES", "WEEKLY_TOP_N", "WEEKLY_MIN_SAVINGS_USD",
		"CONCURRENCY_USERS", "CORS_ALLOW_ORIGINS", "PORT", "LOG_LEVEL",
	}
	for _, k := range keys {
		os.Unsetenv(k)
	}
}

func TestLoad_DefaultsToSQLiteWithSaneDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, BackendSQLite, cfg.StoreBackend)
	assert.Equal(t, 5, cfg.WeeklyTopN)
	assert.InDelta(t, 10.0, cfg.WeeklyMinSavingsUSD, 0.0001)
	assert.Equal(t, []string{"Groceries"}, cfg.DealsAllowedCategories)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowOrigins)
}

func TestLoad_RejectsUnknownBackend(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORE_BACKEND", "mongodb")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_BigQueryRequiresProjectAndDataset(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORE_BACKEND", "bigquery")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("BIGQUERY_PROJECT", "proj")
	t.Setenv("BIGQUERY_DATASET", "ds")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, BackendBigQuery, cfg.StoreBackend)
}

func TestLoad_ParsesCommaSeparatedLists(t *testing.T) {
	clearEnv(t)
	t.Setenv("DEALS_ALLOWED_CATEGORIES", "Groceries, Shopping ,Entertainment")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"Groceries", "Shopping", "Entertainment"}, cfg.DealsAllowedCategories)
}

func TestLoad_InvalidIntFallsBackToDefault(t *testing.T) {
	clearEnv(t)
	t.Setenv("WEEKLY_TOP_N", "not-a-number")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.WeeklyTopN)
}

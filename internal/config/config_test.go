package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("LEDGER_STORE", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StorePostgres, cfg.Ledger.Store)
	assert.True(t, cfg.Ledger.EnforceMonotonic)
	assert.False(t, cfg.Ledger.RejectNegativeStock)
	assert.False(t, cfg.Ledger.StrictTransitions)
	assert.Equal(t, 10, cfg.Dashboard.ProducerEvents)
	assert.Equal(t, 20, cfg.Dashboard.OperatorEvents)
	assert.Equal(t, "ledger.events", cfg.Redis.Channel)
	assert.Contains(t, cfg.Database.URL, "postgres://")
}

func TestLoad_LedgerOverrides(t *testing.T) {
	t.Setenv("LEDGER_STORE", "Memory")
	t.Setenv("LEDGER_ENFORCE_MONOTONIC", "false")
	t.Setenv("LEDGER_REJECT_NEGATIVE_STOCK", "true")
	t.Setenv("LEDGER_STRICT_TRANSITIONS", "1")
	t.Setenv("DASHBOARD_CACHE_TTL", "45")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StoreMemory, cfg.Ledger.Store)
	policy := cfg.Ledger.Policy()
	assert.False(t, policy.EnforceMonotonic)
	assert.True(t, policy.RejectNegativeStock)
	assert.True(t, policy.StrictTransitions)
	assert.Equal(t, 45*time.Second, cfg.Dashboard.CacheTTL)
}

func TestLoad_RejectsUnknownStore(t *testing.T) {
	t.Setenv("LEDGER_STORE", "cassandra")

	_, err := Load()
	assert.Error(t, err)
}

func TestGetDuration_Fallbacks(t *testing.T) {
	t.Setenv("X_DURATION", "1m")
	assert.Equal(t, time.Minute, getDuration("X_DURATION", time.Second))

	t.Setenv("X_DURATION", "garbage")
	assert.Equal(t, time.Second, getDuration("X_DURATION", time.Second))
}

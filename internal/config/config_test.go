package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")
	t.Setenv("MANAGER_PIN", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Empty(t, cfg.AuthSecret)
	assert.Empty(t, cfg.ManagerPIN)
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TAX_RATE", "")
	t.Setenv("BUSINESS_TIMEZONE", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "0.08", cfg.TaxRate.String())
	assert.Equal(t, time.UTC, cfg.Location)
	assert.Equal(t, 200, cfg.ReportPageSize)
	assert.Equal(t, ":8080", cfg.Address())
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("TAX_RATE", "0.16")
	t.Setenv("BUSINESS_TIMEZONE", "Africa/Nairobi")
	t.Setenv("KPI_CACHE_TTL_SECONDS", "30")
	t.Setenv("PORT", "9090")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "0.16", cfg.TaxRate.String())
	assert.Equal(t, "Africa/Nairobi", cfg.Location.String())
	assert.Equal(t, 30*time.Second, cfg.KPICacheTTL)
	assert.Equal(t, ":9090", cfg.Address())
}

func TestLoadRejectsInvalidTaxRate(t *testing.T) {
	for _, raw := range []string{"abc", "-0.1", "1.5"} {
		t.Setenv("TAX_RATE", raw)
		_, err := Load()
		assert.Error(t, err, "tax rate %q", raw)
	}
}

func TestLoadRejectsUnknownTimezone(t *testing.T) {
	t.Setenv("BUSINESS_TIMEZONE", "Mars/Olympus")
	_, err := Load()
	assert.Error(t, err)
}

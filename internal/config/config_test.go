package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/fulfillment/internal/config"
	"github.com/tournevent/fulfillment/pkg/shipper"
)

func setValidEnv(t *testing.T) {
	t.Helper()
	t.Setenv("SHIPSTATION_API_KEY", "key")
	t.Setenv("SHIPSTATION_API_SECRET", "secret")
	t.Setenv("SHIP_FROM_NAME", "Tournevent Warehouse")
	t.Setenv("SHIP_FROM_STREET1", "1 Dock St")
	t.Setenv("SHIP_FROM_CITY", "New York")
	t.Setenv("SHIP_FROM_STATE", "ny")
	t.Setenv("SHIP_FROM_POSTAL_CODE", "10001")
}

func TestLoad_Defaults(t *testing.T) {
	setValidEnv(t)

	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.env"))

	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 1.25, cfg.PackagingFee)
	assert.Equal(t, "12345", cfg.FallbackPostalCode)
	assert.Equal(t, "NY", cfg.FallbackState)
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.RetryBackoff)
	assert.Equal(t, 30*time.Second, cfg.ShipStationTimeout)
	assert.Equal(t, 0, cfg.BulkConcurrency)
	assert.Equal(t, "stamps_com", cfg.USPSCarrierCode)
	assert.Equal(t, "ups_walleted", cfg.UPSCarrierCode)
	assert.Equal(t, "fulfillment:outcomes", cfg.EventsChannel)
	assert.NoError(t, cfg.Validate())

	from := cfg.ShipFrom()
	assert.Equal(t, "NY", from.State)
	assert.Equal(t, "US", from.Country)
	assert.True(t, from.Complete())
}

func TestLoad_DotEnvFile(t *testing.T) {
	setValidEnv(t)
	t.Setenv("BULK_CONCURRENCY", "4")
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("PACKAGING_FEE=2.5\nBULK_CONCURRENCY=8\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("PACKAGING_FEE") })

	cfg, err := config.Load(path)

	require.NoError(t, err)
	assert.Equal(t, 2.5, cfg.PackagingFee)
	assert.Equal(t, 4, cfg.BulkConcurrency, "the environment wins over .env")
}

func TestValidate_MissingSettings(t *testing.T) {
	cfg := &config.Config{MaxAttempts: 3, ShipFromName: "Warehouse", ShipFromCity: "New York"}

	err := cfg.Validate()

	var ce *shipper.ConfigurationError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, []string{
		"SHIPSTATION_API_KEY",
		"SHIPSTATION_API_SECRET",
		"SHIP_FROM_STREET1",
		"SHIP_FROM_STATE",
		"SHIP_FROM_POSTAL_CODE",
	}, ce.Missing)
}

func TestValidate_Ranges(t *testing.T) {
	setValidEnv(t)
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	cfg.MaxAttempts = 0
	assert.Error(t, cfg.Validate())

	cfg.MaxAttempts = 1
	cfg.BulkConcurrency = -1
	assert.Error(t, cfg.Validate())
}

func TestAttributes(t *testing.T) {
	cfg := &config.Config{ServiceName: "fulfillment", Version: "1.2.3", RedisURL: "redis://localhost:6379/0"}

	attrs := map[string]string{}
	for _, kv := range cfg.Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "fulfillment", attrs["service.name"])
	assert.Equal(t, "1.2.3", attrs["service.version"])
	assert.Equal(t, "true", attrs["events.redis"])
	assert.Equal(t, "false", attrs["store.postgres"])
}

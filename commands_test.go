package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/fulfillment/internal/fulfillment"
)

func TestWriteOutput(t *testing.T) {
	res := fulfillment.BulkResult{
		Succeeded: 1,
		Results:   []fulfillment.BulkOutcome{{OrderID: "1001", Success: true, TrackingNumber: "1Z999"}},
	}

	t.Cleanup(func() { outputFormat = "json" })

	outputFormat = "yaml"
	var buf bytes.Buffer
	require.NoError(t, writeOutput(&buf, res))
	assert.Contains(t, buf.String(), "succeeded: 1")
	assert.Contains(t, buf.String(), "trackingNumber: 1Z999")

	outputFormat = "json"
	buf.Reset()
	require.NoError(t, writeOutput(&buf, res))
	assert.Contains(t, buf.String(), `"orderId": "1001"`)

	outputFormat = "xml"
	assert.Error(t, writeOutput(&buf, res))
}

func TestServiceConfig(t *testing.T) {
	t.Setenv("SHIPSTATION_API_KEY", "key")
	t.Setenv("SHIPSTATION_API_SECRET", "secret")
	t.Setenv("SHIP_FROM_NAME", "Warehouse")
	t.Setenv("SHIP_FROM_STREET1", "1 Dock St")
	t.Setenv("SHIP_FROM_CITY", "New York")
	t.Setenv("SHIP_FROM_STATE", "NY")
	t.Setenv("SHIP_FROM_POSTAL_CODE", "10001")
	t.Setenv("BULK_CONCURRENCY", "4")

	cfg, err := loadConfig()
	require.NoError(t, err)

	sc := serviceConfig(cfg)
	assert.Equal(t, "10001", sc.Rates.OriginPostalCode)
	assert.Equal(t, 1.25, sc.Rates.PackagingFee)
	assert.Equal(t, 3, sc.Retry.MaxAttempts)
	assert.Equal(t, 4, sc.BulkConcurrency)
	assert.True(t, sc.Orchestrator.ShipFrom.Complete())
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "rates", "fulfill", "bulk", "status", "void", "track"} {
		assert.True(t, names[want], want)
	}
}

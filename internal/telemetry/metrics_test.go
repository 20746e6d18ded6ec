package telemetry_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/tournevent/fulfillment/internal/telemetry"
	"go.uber.org/zap"
)

func TestMetrics_RecordFulfillment(t *testing.T) {
	m := telemetry.NewMetrics(prometheus.NewRegistry())

	m.RecordFulfillment("bulk", true)
	m.RecordFulfillment("bulk", true)
	m.RecordFulfillment("bulk", false)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.FulfillmentsTotal.WithLabelValues("bulk", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FulfillmentsTotal.WithLabelValues("bulk", "failure")))
}

func TestMetrics_SeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		telemetry.NewMetrics(prometheus.NewRegistry())
		telemetry.NewMetrics(prometheus.NewRegistry())
	})
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *telemetry.Metrics
	assert.NotPanics(t, func() {
		m.RecordRequest("createLabel", "ups", "ok", 0.1)
		m.RecordError("ups", "HTTP_500")
		m.RecordFulfillment("single", false)
		m.RecordBulk(3)
	})
}

func TestNewLogger(t *testing.T) {
	for _, level := range []string{"debug", "info", "WARN", " error ", "", "verbose"} {
		logger, err := telemetry.NewLogger(level, "fulfillment")
		assert.NoError(t, err, level)
		assert.NotNil(t, logger)
	}

	logger, err := telemetry.NewLogger("warn", "")
	assert.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zap.InfoLevel))
	assert.True(t, logger.Core().Enabled(zap.ErrorLevel))
}

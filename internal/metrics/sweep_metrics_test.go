package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweepMetrics_Record(t *testing.T) {
	t.Parallel()

	m := NewSweepMetrics(prometheus.NewRegistry())

	m.RecordOrder(OutcomeStored)
	m.RecordOrder(OutcomeStored)
	m.RecordOrder(OutcomeCancelled)
	m.RecordLineItems(3, 1)
	m.RecordExtractionError("NotFound")
	m.RecordFetchDuration(120 * time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.orders.WithLabelValues(OutcomeStored)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.orders.WithLabelValues(OutcomeCancelled)))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.lineItemsStored))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.lineItemsSkipped))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.extractionErrors.WithLabelValues("NotFound")))
}

func TestSweepMetrics_ReRegisterReturnsExisting(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	first := NewSweepMetrics(reg)
	second := NewSweepMetrics(reg)

	first.RecordOrder(OutcomeDigital)
	assert.Equal(t, 1.0, testutil.ToFloat64(second.orders.WithLabelValues(OutcomeDigital)))
}

func TestWriteTextfile(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := NewSweepMetrics(reg)
	m.RecordOrder(OutcomeFailed)

	path := filepath.Join(t.TempDir(), "orderexport.prom")
	require.NoError(t, WriteTextfile(path, reg))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `orderexport_orders_total{outcome="failed"} 1`)
}

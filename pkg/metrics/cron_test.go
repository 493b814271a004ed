package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCronJobMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)
	m.now = func() time.Time { return time.Unix(1_700_000_000, 0) }

	m.Record("checkout-reconcile", 250*time.Millisecond, nil)
	m.Record("checkout-reconcile", time.Second, errors.New("lock lost"))
	m.Record("checkout-reconcile", 100*time.Millisecond, nil)

	ok, err := counterValue(reg, "storefront_cron_job_runs_total", "job", "checkout-reconcile", "result", "success")
	require.NoError(t, err)
	assert.Equal(t, 2.0, ok)

	failed, err := counterValue(reg, "storefront_cron_job_runs_total", "job", "checkout-reconcile", "result", "failure")
	require.NoError(t, err)
	assert.Equal(t, 1.0, failed)

	hist, err := sample(reg, "storefront_cron_job_duration_seconds", "job", "checkout-reconcile")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), hist.GetHistogram().GetSampleCount())

	last, err := sample(reg, "storefront_cron_job_last_success_timestamp_seconds", "job", "checkout-reconcile")
	require.NoError(t, err)
	assert.Equal(t, 1_700_000_000.0, last.GetGauge().GetValue())
}

func TestCronJobMetricsWithoutRegistry(t *testing.T) {
	m := NewCronJobMetrics(nil)
	assert.Nil(t, m)
	assert.NotPanics(t, func() { m.Record("job", time.Second, nil) })
}

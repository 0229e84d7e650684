package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCronJobMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)
	m.ObserveDuration("abandoned-cart-reminders", 250*time.Millisecond)
	m.IncSuccess("abandoned-cart-reminders")
	m.IncFailure("abandoned-cart-reminders")
	m.IncSkipped()

	mfs, err := reg.Gather()
	require.NoError(t, err)

	assert.Equal(t, 1.0, counterValue(t, mfs, "lastcall_cron_job_success_total", map[string]string{"job": "abandoned-cart-reminders"}))
	assert.Equal(t, 1.0, counterValue(t, mfs, "lastcall_cron_job_failure_total", map[string]string{"job": "abandoned-cart-reminders"}))
	assert.Equal(t, 1.0, counterValue(t, mfs, "lastcall_cron_cycle_skipped_total", nil))

	hist := find(t, mfs, "lastcall_cron_job_duration_seconds", map[string]string{"job": "abandoned-cart-reminders"}).GetHistogram()
	assert.InDelta(t, 0.25, hist.GetSampleSum(), 0.001)
}

func TestDomainMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	cart := NewCartMetrics(reg)
	sobriety := NewSobrietyMetrics(reg)

	cart.IncSyncWrite("upsert", nil)
	cart.IncSyncWrite("upsert", errors.New("db down"))
	cart.IncReminder("first", nil)
	sobriety.IncAlert("warning")
	sobriety.IncBlocked()

	mfs, err := reg.Gather()
	require.NoError(t, err)
	assert.Equal(t, 1.0, counterValue(t, mfs, "lastcall_abandoned_cart_sync_writes_total", map[string]string{"op": "upsert", "result": "error"}))
	assert.Equal(t, 1.0, counterValue(t, mfs, "lastcall_abandoned_cart_reminders_total", map[string]string{"stage": "first", "result": "ok"}))
	assert.Equal(t, 1.0, counterValue(t, mfs, "lastcall_sobriety_alerts_total", map[string]string{"severity": "warning"}))
	assert.Equal(t, 1.0, counterValue(t, mfs, "lastcall_sobriety_checkouts_blocked_total", nil))
}

func TestOutboxMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOutboxMetrics(reg)
	m.IncEvent("order_created", "published")
	m.IncEvent("order_created", "published")
	m.IncEvent("", "dead_lettered")
	m.ObserveBatch(40 * time.Millisecond)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	assert.Equal(t, 2.0, counterValue(t, mfs, "lastcall_outbox_events_total", map[string]string{"event_type": "order_created", "outcome": "published"}))
	assert.Equal(t, 1.0, counterValue(t, mfs, "lastcall_outbox_events_total", map[string]string{"event_type": "unknown", "outcome": "dead_lettered"}))
}

func TestNilRecordersAreSafe(t *testing.T) {
	var cron *CronJobMetrics
	cron.IncSuccess("x")
	NewCronJobMetrics(nil).ObserveDuration("x", time.Second)
	NewCartMetrics(nil).IncReminder("first", nil)
	NewSobrietyMetrics(nil).IncBlocked()
	NewOutboxMetrics(nil).IncEvent("order_created", "retry")
}

func counterValue(t *testing.T, mfs []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	return find(t, mfs, name, labels).GetCounter().GetValue()
}

func find(t *testing.T, mfs []*dto.MetricFamily, name string, labels map[string]string) *dto.Metric {
	t.Helper()
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			if matches(metric, labels) {
				return metric
			}
		}
	}
	t.Fatalf("metric %s %v not found", name, labels)
	return nil
}

func matches(metric *dto.Metric, labels map[string]string) bool {
	found := 0
	for _, pair := range metric.GetLabel() {
		if want, ok := labels[pair.GetName()]; ok && want == pair.GetValue() {
			found++
		}
	}
	return found == len(labels)
}

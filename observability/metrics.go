// Package observability provides metric and tracing instruments for Cadence.
package observability

import (
	gu "github.com/xraph/go-utils/metrics"
)

// Metrics holds metric instruments for Cadence, backed by any go-utils
// MetricFactory (e.g. the forge-managed metrics system via fapp.Metrics()).
type Metrics struct {
	PublishTotal    gu.Counter
	DispatchTotal   gu.Counter
	DedupHitsTotal  gu.Counter
	InvokeTotal     gu.Counter
	InvokeLatency   gu.Histogram
	OpenCircuits    gu.Gauge
	RemindersFired  gu.Counter
	RecurrencesSpun gu.Counter
	RateLimitDenied gu.Counter
	TriggerTicks    gu.Counter
}

// NewMetrics creates Cadence metric instruments using the supplied factory.
// Pass fapp.Metrics() from a forge extension, or metrics.NewMetricsCollector()
// for standalone usage.
func NewMetrics(factory gu.MetricFactory) *Metrics {
	return &Metrics{
		PublishTotal:    factory.Counter("cadence_events_published_total"),
		DispatchTotal:   factory.Counter("cadence_dispatch_total"),
		DedupHitsTotal:  factory.Counter("cadence_dedup_hits_total"),
		InvokeTotal:     factory.Counter("cadence_invoke_total"),
		InvokeLatency:   factory.Histogram("cadence_invoke_latency_seconds"),
		OpenCircuits:    factory.Gauge("cadence_open_circuits"),
		RemindersFired:  factory.Counter("cadence_reminders_fired_total"),
		RecurrencesSpun: factory.Counter("cadence_recurrences_created_total"),
		RateLimitDenied: factory.Counter("cadence_ratelimit_denied_total"),
		TriggerTicks:    factory.Counter("cadence_trigger_ticks_total"),
	}
}

// RecordDispatch records a dispatch with its outcome label.
func (m *Metrics) RecordDispatch(topic, outcome string) {
	m.DispatchTotal.WithLabels(map[string]string{"topic": topic, "outcome": outcome}).Inc()
}

// RecordInvoke records a resilient call attempt result for a target service.
func (m *Metrics) RecordInvoke(target, status string, latencySeconds float64) {
	m.InvokeTotal.WithLabels(map[string]string{"target": target, "status": status}).Inc()
	m.InvokeLatency.Observe(latencySeconds)
}

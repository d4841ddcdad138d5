// Package metrics owns the pipeline's Prometheus registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "storefront"

// Metrics is safe for concurrent use. It satisfies eventbus.Recorder.
type Metrics struct {
	registry *prometheus.Registry

	eventsDelivered *prometheus.CounterVec
	eventsFailed    *prometheus.CounterVec
	deadLetters     *prometheus.CounterVec
	duplicates      *prometheus.CounterVec
	batches         *prometheus.CounterVec
	batchSize       *prometheus.HistogramVec
	notifications   *prometheus.CounterVec
	ordersIngested  *prometheus.CounterVec
	sweepDeleted    *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		eventsDelivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "events_delivered_total",
			Help: "Events handled successfully, by subscription.",
		}, []string{"subscription"}),
		eventsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "event_attempts_failed_total",
			Help: "Failed handler invocations, including ones later retried.",
		}, []string{"subscription"}),
		deadLetters: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "events_dead_lettered_total",
			Help: "Events dropped after a permanent failure or exhausted retries.",
		}, []string{"subscription"}),
		duplicates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "events_duplicate_total",
			Help: "Redelivered events skipped because they were already processed.",
		}, []string{"subscription"}),
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "batches_flushed_total",
			Help: "Batches handed to batch handlers, by flush trigger.",
		}, []string{"subscription", "trigger"}),
		batchSize: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "batch_size",
			Help:    "Number of events per flushed batch.",
			Buckets: []float64{1, 2, 3, 5, 10, 25, 50, 100},
		}, []string{"subscription"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "notifications_total",
			Help: "Per-recipient notification outcomes.",
		}, []string{"kind", "outcome"}),
		ordersIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "orders_ingested_total",
			Help: "Orders written by batched ingestion.",
		}, []string{"result"}),
		sweepDeleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "retention_deleted_total",
			Help: "Rows removed by the retention sweep, by pass.",
		}, []string{"pass"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.eventsDelivered, m.eventsFailed, m.deadLetters, m.duplicates,
		m.batches, m.batchSize, m.notifications, m.ordersIngested, m.sweepDeleted,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) Delivered(sub string, events int) {
	m.eventsDelivered.WithLabelValues(sub).Add(float64(events))
}

func (m *Metrics) Failed(sub string) { m.eventsFailed.WithLabelValues(sub).Inc() }

func (m *Metrics) DeadLettered(sub string, events int) {
	m.deadLetters.WithLabelValues(sub).Add(float64(events))
}

func (m *Metrics) Duplicate(sub string) { m.duplicates.WithLabelValues(sub).Inc() }

func (m *Metrics) BatchFlushed(sub string, size int, trigger string) {
	m.batches.WithLabelValues(sub, trigger).Inc()
	m.batchSize.WithLabelValues(sub).Observe(float64(size))
}

// Notification counts one recipient outcome (sent, skipped, failed) for kind.
func (m *Metrics) Notification(kind, outcome string) {
	m.notifications.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) OrdersIngested(inserted, duplicates int) {
	m.ordersIngested.WithLabelValues("inserted").Add(float64(inserted))
	m.ordersIngested.WithLabelValues("duplicate").Add(float64(duplicates))
}

func (m *Metrics) SweepDeleted(pass string, n int) {
	m.sweepDeleted.WithLabelValues(pass).Add(float64(n))
}

// Package metrics registers the Prometheus instruments the channel workers
// report against.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the Prometheus instruments. Only the worker binaries
// construct it; NotificationsSubmitted and RateLimitRejections are
// registered but nothing in this module increments them. A custom registry
// (rather than prometheus.DefaultRegisterer) keeps tests isolated from
// global state.
type Metrics struct {
	NotificationsSubmitted *prometheus.CounterVec
	NotificationsDelivered *prometheus.CounterVec
	NotificationsFailed    *prometheus.CounterVec
	NotificationsRetried   *prometheus.CounterVec
	ProcessingLatency      *prometheus.HistogramVec
	CircuitBreakerState    *prometheus.GaugeVec
	RateLimitRejections    *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		NotificationsSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifyhub_notifications_submitted_total",
			Help: "Total notifications admitted by ingress.",
		}, []string{"channel"}),

		NotificationsDelivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifyhub_notifications_delivered_total",
			Help: "Total notifications successfully delivered by a provider.",
		}, []string{"channel"}),

		NotificationsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifyhub_notifications_failed_total",
			Help: "Total notifications that terminated on the dead-letter queue.",
		}, []string{"channel"}),

		NotificationsRetried: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifyhub_notifications_retried_total",
			Help: "Total retry republishes issued by channel workers.",
		}, []string{"channel"}),

		ProcessingLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "notifyhub_processing_seconds",
			Help:    "End-to-end pipeline latency from dequeue to terminal outcome.",
			Buckets: prometheus.DefBuckets,
		}, []string{"channel"}),

		CircuitBreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "notifyhub_circuit_breaker_state",
			Help: "Circuit breaker state per provider: 0=closed, 1=half-open, 2=open.",
		}, []string{"provider"}),

		RateLimitRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifyhub_rate_limit_rejections_total",
			Help: "Total ingress requests rejected for exceeding the rolling-window quota.",
		}, []string{"key_kind"}),
	}

	reg.MustRegister(
		m.NotificationsSubmitted,
		m.NotificationsDelivered,
		m.NotificationsFailed,
		m.NotificationsRetried,
		m.ProcessingLatency,
		m.CircuitBreakerState,
		m.RateLimitRejections,
	)

	return m
}

// ObserveDelivered records a successful delivery's end-to-end latency.
func (m *Metrics) ObserveDelivered(channel string, latency time.Duration) {
	m.NotificationsDelivered.WithLabelValues(channel).Inc()
	m.ProcessingLatency.WithLabelValues(channel).Observe(latency.Seconds())
}

// ObserveFailed records a DLQ-routed terminal failure.
func (m *Metrics) ObserveFailed(channel string) {
	m.NotificationsFailed.WithLabelValues(channel).Inc()
}

// ObserveRetried records a retry republish.
func (m *Metrics) ObserveRetried(channel string) {
	m.NotificationsRetried.WithLabelValues(channel).Inc()
}

// SetBreakerState reports the current circuit breaker state for a provider.
func (m *Metrics) SetBreakerState(provider string, state int) {
	m.CircuitBreakerState.WithLabelValues(provider).Set(float64(state))
}

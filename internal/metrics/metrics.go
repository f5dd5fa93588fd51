package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the canary's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	deliveries      *prometheus.CounterVec
	duration        *prometheus.HistogramVec
	ipLookupFailure prometheus.Counter
	lastSuccess     *prometheus.GaugeVec
	channelsActive  prometheus.Gauge
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "canary_deliveries_total",
			Help: "Delivery attempts by channel and outcome.",
		}, []string{"channel", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "canary_delivery_duration_seconds",
			Help:    "Time spent building and delivering one report.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"channel"}),
		ipLookupFailure: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "canary_ip_lookup_failures_total",
			Help: "Reports sent with the IP placeholder because the lookup failed.",
		}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "canary_last_success_timestamp_seconds",
			Help: "Unix time of the last successful delivery per channel.",
		}, []string{"channel"}),
		channelsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "canary_channels_active",
			Help: "Channels with a running scheduler.",
		}),
	}
	reg.MustRegister(m.deliveries, m.duration, m.ipLookupFailure, m.lastSuccess, m.channelsActive)
	return m
}

// ObserveDelivery records one delivery attempt.
func (m *Metrics) ObserveDelivery(channel, outcome string, took time.Duration, at time.Time) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(channel, outcome).Inc()
	m.duration.WithLabelValues(channel).Observe(took.Seconds())
	if outcome == "success" {
		m.lastSuccess.WithLabelValues(channel).Set(float64(at.Unix()))
	}
}

func (m *Metrics) IPLookupFailed() {
	if m == nil {
		return
	}
	m.ipLookupFailure.Inc()
}

func (m *Metrics) ChannelStarted() {
	if m == nil {
		return
	}
	m.channelsActive.Inc()
}

func (m *Metrics) ChannelStopped() {
	if m == nil {
		return
	}
	m.channelsActive.Dec()
}

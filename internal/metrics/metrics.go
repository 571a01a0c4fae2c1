// Package metrics defines the prometheus collectors of the API server.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "cameratogether"

// Metrics groups the server collectors. A nil *Metrics records nothing, so
// components can be built without a registry in tests.
type Metrics struct {
	requests    *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	transitions *prometheus.CounterVec
	uploads     prometheus.Counter
	uploadBytes prometheus.Counter
	collages    *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests by route and status code",
			},
			[]string{"route", "code"},
		),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency by route",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "group_transitions_total",
				Help:      "Group status transitions by target status",
			},
			[]string{"status"},
		),
		uploads: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "photo_uploads_total",
				Help:      "Accepted photo uploads",
			},
		),
		uploadBytes: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "photo_upload_bytes_total",
				Help:      "Bytes of accepted photo uploads",
			},
		),
		collages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "collages_total",
				Help:      "Collage generation attempts by result",
			},
			[]string{"result"},
		),
	}
	reg.MustRegister(m.requests, m.latency, m.transitions, m.uploads, m.uploadBytes, m.collages)
	return m
}

// ObserveRequest records one served request.
func (m *Metrics) ObserveRequest(route string, code int, d time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	m.latency.WithLabelValues(route).Observe(d.Seconds())
}

// Transition records a group entering status.
func (m *Metrics) Transition(status string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(status).Inc()
}

// Upload records an accepted photo of size bytes.
func (m *Metrics) Upload(size int64) {
	if m == nil {
		return
	}
	m.uploads.Inc()
	m.uploadBytes.Add(float64(size))
}

// Collage records a generation attempt.
func (m *Metrics) Collage(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.collages.WithLabelValues(result).Inc()
}

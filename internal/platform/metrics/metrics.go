// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package metrics collects and exposes the console's Prometheus metrics.
//
// # Consumers
//
//   - session.Manager records state transitions and classified failures.
//   - middleware.StructuredLogger records per-route HTTP outcomes.
//   - greenhouse.Poller and greenhouse.Service record sensor gauges and fan speed.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ventigrow"

// Collector is the Prometheus-backed implementation of every recorder
// interface declared by the domain packages.
type Collector struct {
	sessionTransitions *prometheus.CounterVec
	sessionFailures    *prometheus.CounterVec
	httpRequests       *prometheus.CounterVec
	httpLatency        *prometheus.HistogramVec
	sensorValue        *prometheus.GaugeVec
	readingsPersisted  prometheus.Counter
	pollFailures       prometheus.Counter
	fanSpeed           prometheus.Gauge
}

// NewCollector builds a Collector and registers it with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	collector := &Collector{
		sessionTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_transitions_total",
			Help:      "Session state transitions by target state.",
		}, []string{"state"}),
		sessionFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_failures_total",
			Help:      "Classified session operation failures by kind.",
		}, []string{"kind"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP responses by method, route pattern, and status code.",
		}, []string{"method", "route", "status"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		sensorValue: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sensor_value",
			Help:      "Latest greenhouse sensor reading by metric.",
		}, []string{"metric"}),
		readingsPersisted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sensor_readings_persisted_total",
			Help:      "Sensor readings written to storage.",
		}),
		pollFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sensor_poll_failures_total",
			Help:      "Sensor polls that failed to read or persist.",
		}),
		fanSpeed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "fan_speed_percent",
			Help:      "Current ventilation fan speed setting (0-100).",
		}),
	}

	reg.MustRegister(
		collector.sessionTransitions,
		collector.sessionFailures,
		collector.httpRequests,
		collector.httpLatency,
		collector.sensorValue,
		collector.readingsPersisted,
		collector.pollFailures,
		collector.fanSpeed,
	)

	return collector
}

// # Session

// RecordSessionTransition counts a move into state.
func (c *Collector) RecordSessionTransition(state string) {
	c.sessionTransitions.WithLabelValues(state).Inc()
}

// RecordSessionFailure counts a classified failure.
func (c *Collector) RecordSessionFailure(kind string) {
	c.sessionFailures.WithLabelValues(kind).Inc()
}

// # HTTP

// ObserveHTTP satisfies middleware.StatusObserver.
func (c *Collector) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpLatency.WithLabelValues(route).Observe(elapsed.Seconds())
}

// # Greenhouse

// RecordReading sets one gauge per metric and counts the persisted reading.
func (c *Collector) RecordReading(values map[string]float64) {
	for metric, value := range values {
		c.sensorValue.WithLabelValues(metric).Set(value)
	}
	c.readingsPersisted.Inc()
}

// RecordPollFailure counts a failed sensor poll.
func (c *Collector) RecordPollFailure() {
	c.pollFailures.Inc()
}

// RecordFanSpeed sets the fan gauge.
func (c *Collector) RecordFanSpeed(speed int) {
	c.fanSpeed.Set(float64(speed))
}

// Handler returns the scrape endpoint for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

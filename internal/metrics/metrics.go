// Package metrics holds the Prometheus collectors of the estimator.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "car_estimator"

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.005, .01, .05, .1, .5, 1, 5, 10, 30, 60, 120},
		},
		[]string{"method", "path"},
	)

	// EstimatesTotal counts finished estimates by outcome (ok, cancelled or an error kind).
	EstimatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "estimate",
			Name:      "total",
			Help:      "Total number of damage estimates by outcome",
		},
		[]string{"outcome"},
	)

	EstimateDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "estimate",
			Name:      "duration_seconds",
			Help:      "Time from request to the end of the report stream",
			Buckets:   []float64{.5, 1, 2.5, 5, 10, 20, 40, 80},
		},
	)

	FragmentsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "estimate",
			Name:      "fragments_total",
			Help:      "Text fragments received from the model",
		},
	)

	ReferenceRows = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "reference",
			Name:      "rows",
			Help:      "Reference cost rows fetched per request",
			Buckets:   []float64{0, 1, 10, 25, 50, 75, 100},
		},
		[]string{"source"},
	)
)

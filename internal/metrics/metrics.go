package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels forecasts produced by the primary strategy.
	OutcomeSuccess = "success"
	// OutcomeDegraded labels forecasts produced by a fallback branch.
	OutcomeDegraded = "degraded"
	// OutcomeError labels requests that failed before a forecast was produced.
	OutcomeError = "error"
)

var (
	forecastsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "covers_forecast",
			Name:      "forecasts_total",
			Help:      "Total number of forecasts handled, partitioned by method and outcome.",
		},
		[]string{"method", "outcome"},
	)

	forecastDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "covers_forecast",
			Name:      "forecast_seconds",
			Help:      "Single-date forecast latency in seconds.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
	)

	batchItemsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "covers_forecast",
			Name:      "batch_items_total",
			Help:      "Batch items processed, partitioned by final status.",
		},
		[]string{"status"},
	)

	explanationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "covers_forecast",
			Name:      "explanations_total",
			Help:      "Explanations produced, partitioned by source (generated or template).",
		},
		[]string{"source"},
	)

	modelTrained = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "covers_forecast",
			Name:      "model_trained",
			Help:      "1 when a trained regression model is loaded, 0 otherwise.",
		},
	)
)

// Register attaches covers-forecast collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		forecastsTotal,
		forecastDurationSeconds,
		batchItemsTotal,
		explanationsTotal,
		modelTrained,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveForecast records a forecast duration with its method and outcome labels.
func ObserveForecast(duration time.Duration, method, outcome string) {
	switch outcome {
	case OutcomeSuccess, OutcomeDegraded, OutcomeError:
	default:
		outcome = OutcomeError
	}
	if method == "" {
		method = "none"
	}
	forecastsTotal.WithLabelValues(method, outcome).Inc()
	if duration < 0 {
		duration = 0
	}
	forecastDurationSeconds.Observe(duration.Seconds())
}

// ObserveBatchItem counts a batch item in its final status.
func ObserveBatchItem(status string) {
	batchItemsTotal.WithLabelValues(status).Inc()
}

// ObserveExplanation counts an explanation by source.
func ObserveExplanation(source string) {
	explanationsTotal.WithLabelValues(source).Inc()
}

// SetModelTrained reports whether a trained model is loaded.
func SetModelTrained(trained bool) {
	if trained {
		modelTrained.Set(1)
		return
	}
	modelTrained.Set(0)
}

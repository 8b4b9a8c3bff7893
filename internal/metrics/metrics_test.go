package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegisterIsIdempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := Register(reg); err != nil {
		t.Fatalf("second register: %v", err)
	}
}

func TestObserveForecastNormalisesOutcome(t *testing.T) {
	before := testutil.ToFloat64(forecastsTotal.WithLabelValues("regression", OutcomeError))
	ObserveForecast(-time.Second, "regression", "weird")
	after := testutil.ToFloat64(forecastsTotal.WithLabelValues("regression", OutcomeError))
	if after-before != 1 {
		t.Fatalf("expected unknown outcome to count as error, delta=%v", after-before)
	}
}

func TestSetModelTrained(t *testing.T) {
	SetModelTrained(true)
	if v := testutil.ToFloat64(modelTrained); v != 1 {
		t.Fatalf("expected 1, got %v", v)
	}
	SetModelTrained(false)
	if v := testutil.ToFloat64(modelTrained); v != 0 {
		t.Fatalf("expected 0, got %v", v)
	}
}

func TestObserveExplanationAndBatch(t *testing.T) {
	before := testutil.ToFloat64(explanationsTotal.WithLabelValues("template"))
	ObserveExplanation("template")
	if got := testutil.ToFloat64(explanationsTotal.WithLabelValues("template")); got != before+1 {
		t.Fatalf("explanation counter not incremented")
	}

	before = testutil.ToFloat64(batchItemsTotal.WithLabelValues("failed"))
	ObserveBatchItem("failed")
	if got := testutil.ToFloat64(batchItemsTotal.WithLabelValues("failed")); got != before+1 {
		t.Fatalf("batch counter not incremented")
	}
}

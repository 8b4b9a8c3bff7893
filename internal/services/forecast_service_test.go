package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/miradorstack/covers-forecast/internal/cache"
	"github.com/miradorstack/covers-forecast/internal/models"
	"github.com/miradorstack/covers-forecast/internal/utils"
)

type stubPipeline struct {
	calls atomic.Int32
	mu    sync.Mutex
	seen  []string
	fail  map[string]bool
}

func (s *stubPipeline) Forecast(_ context.Context, req models.ForecastRequest) (models.Prediction, error) {
	s.calls.Add(1)
	day := utils.FormatDate(req.ServiceDate)
	s.mu.Lock()
	s.seen = append(s.seen, day)
	s.mu.Unlock()
	if s.fail[day] {
		return models.Prediction{}, errors.New("boom")
	}
	return models.Prediction{
		ID:      "pred-" + day,
		Request: req,
		Outcome: models.Success(models.ForecastResult{PredictedCovers: 130, IntervalLow: 120, IntervalHigh: 140, Method: models.MethodRegression}),
	}, nil
}

type trainedModel bool

func (m trainedModel) IsTrained() bool { return bool(m) }

type singleLocation struct{ cfg models.StaffingConfig }

func (s singleLocation) ForLocation(string) models.StaffingConfig { return s.cfg }

func TestForecastOneValidatesInput(t *testing.T) {
	svc := NewForecastService(nil, &stubPipeline{}, Options{})

	cases := []struct {
		name, loc, date, period string
	}{
		{"missing location", "", "2024-06-15", "dinner"},
		{"bad date", "loc_1", "15/06/2024", "dinner"},
		{"unknown period", "loc_1", "2024-06-15", "supper"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.ForecastOne(context.Background(), tc.loc, tc.date, tc.period)
			if !errors.Is(err, models.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestForecastOneUsesCache(t *testing.T) {
	pipeline := &stubPipeline{}
	provider, err := cache.NewMemoryProvider(16)
	if err != nil {
		t.Fatalf("memory provider: %v", err)
	}
	svc := NewForecastService(nil, pipeline, Options{Cache: provider, ForecastTTL: time.Minute})

	first, err := svc.ForecastOne(context.Background(), "loc_1", "2024-06-15", "dinner")
	if err != nil {
		t.Fatalf("first forecast: %v", err)
	}
	second, err := svc.ForecastOne(context.Background(), "loc_1", "2024-06-15", "Dinner")
	if err != nil {
		t.Fatalf("second forecast: %v", err)
	}
	if pipeline.calls.Load() != 1 {
		t.Fatalf("expected one pipeline call, got %d", pipeline.calls.Load())
	}
	if first.ID != second.ID || second.Outcome.Result.PredictedCovers != 130 {
		t.Fatalf("cached prediction mismatch: %+v vs %+v", first, second)
	}
}

func TestForecastOneWithoutTTLSkipsCache(t *testing.T) {
	pipeline := &stubPipeline{}
	provider, _ := cache.NewMemoryProvider(16)
	svc := NewForecastService(nil, pipeline, Options{Cache: provider})

	for i := 0; i < 2; i++ {
		if _, err := svc.ForecastOne(context.Background(), "loc_1", "2024-06-15", "dinner"); err != nil {
			t.Fatalf("forecast: %v", err)
		}
	}
	if pipeline.calls.Load() != 2 {
		t.Fatalf("expected two pipeline calls, got %d", pipeline.calls.Load())
	}
	if provider.Len() != 0 {
		t.Fatalf("expected empty cache, got %d entries", provider.Len())
	}
}

func TestForecastOnePipelineError(t *testing.T) {
	pipeline := &stubPipeline{fail: map[string]bool{"2024-06-15": true}}
	svc := NewForecastService(nil, pipeline, Options{})

	_, err := svc.ForecastOne(context.Background(), "loc_1", "2024-06-15", "dinner")
	if err == nil {
		t.Fatal("expected error")
	}
	var appErr *utils.AppError
	if !errors.As(err, &appErr) || appErr.Op != "Forecast" {
		t.Fatalf("expected AppError for Forecast, got %v", err)
	}
}

func TestForecastBatchSkipsUnparseableDates(t *testing.T) {
	pipeline := &stubPipeline{}
	svc := NewForecastService(nil, pipeline, Options{BatchConcurrency: 2})

	outcomes, err := svc.ForecastBatch(context.Background(), "loc_1", []string{"2024-06-15", "not-a-date", "2024-06-16"}, "dinner")
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if len(outcomes) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(outcomes))
	}
	if got := utils.FormatDate(outcomes[0].Date); got != "2024-06-15" {
		t.Fatalf("unexpected first date %s", got)
	}
	if got := utils.FormatDate(outcomes[1].Date); got != "2024-06-16" {
		t.Fatalf("unexpected second date %s", got)
	}
	for _, out := range outcomes {
		if out.Status != models.BatchCompleted {
			t.Fatalf("expected completed, got %s", out.Status)
		}
	}
}

func TestForecastBatchCapsDates(t *testing.T) {
	pipeline := &stubPipeline{}
	svc := NewForecastService(nil, pipeline, Options{})

	start := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	dates := make([]string, 0, 40)
	for i := 0; i < 40; i++ {
		dates = append(dates, utils.FormatDate(utils.AddDays(start, i)))
	}

	outcomes, err := svc.ForecastBatch(context.Background(), "loc_1", dates, "lunch")
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if len(outcomes) != 31 {
		t.Fatalf("expected 31 outcomes, got %d", len(outcomes))
	}
	if got := utils.FormatDate(outcomes[30].Date); got != "2024-07-31" {
		t.Fatalf("unexpected last date %s", got)
	}
	if pipeline.calls.Load() != 31 {
		t.Fatalf("expected 31 pipeline calls, got %d", pipeline.calls.Load())
	}
}

func TestForecastBatchIsolatesFailures(t *testing.T) {
	pipeline := &stubPipeline{fail: map[string]bool{"2024-06-16": true}}
	svc := NewForecastService(nil, pipeline, Options{})

	outcomes, err := svc.ForecastBatch(context.Background(), "loc_1", []string{"2024-06-15", "2024-06-16", "2024-06-17"}, "dinner")
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if outcomes[1].Status != models.BatchFailed || outcomes[1].Error == "" {
		t.Fatalf("expected failed middle outcome, got %+v", outcomes[1])
	}
	if outcomes[1].Prediction.Outcome.Result.Method != models.MethodFallback {
		t.Fatalf("expected placeholder prediction, got %+v", outcomes[1].Prediction)
	}
	if outcomes[0].Status != models.BatchCompleted || outcomes[2].Status != models.BatchCompleted {
		t.Fatalf("neighbouring items should complete: %+v", outcomes)
	}
}

func TestForecastBatchRejectsBadSharedParams(t *testing.T) {
	svc := NewForecastService(nil, &stubPipeline{}, Options{})

	if _, err := svc.ForecastBatch(context.Background(), "loc_1", []string{"2024-06-15"}, "teatime"); !errors.Is(err, models.ErrValidation) {
		t.Fatalf("expected validation error for period, got %v", err)
	}
	if _, err := svc.ForecastBatch(context.Background(), " ", []string{"2024-06-15"}, "dinner"); !errors.Is(err, models.ErrValidation) {
		t.Fatalf("expected validation error for location, got %v", err)
	}
}

func TestStaffingUsesLocationConfig(t *testing.T) {
	cfg := models.DefaultStaffingConfig()
	cfg.CoversPerServer = 10
	svc := NewForecastService(nil, &stubPipeline{}, Options{Staffing: singleLocation{cfg: cfg}})

	plan, err := svc.Staffing("loc_1", 95)
	if err != nil {
		t.Fatalf("staffing: %v", err)
	}
	if plan.Servers.Recommended != 10 {
		t.Fatalf("expected 10 servers, got %d", plan.Servers.Recommended)
	}

	if _, err := svc.Staffing("loc_1", -1); !errors.Is(err, models.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestContextAndModelState(t *testing.T) {
	svc := NewForecastService(nil, &stubPipeline{}, Options{Model: trainedModel(true)})
	if !svc.ModelTrained() {
		t.Fatal("expected trained model")
	}

	snapshot, err := svc.Context("2024-12-25")
	if err != nil {
		t.Fatalf("context: %v", err)
	}
	if !snapshot.IsHoliday || snapshot.DayOfWeek != "Wednesday" {
		t.Fatalf("unexpected snapshot %+v", snapshot)
	}
	if _, err := svc.Context("2024-13-01"); !errors.Is(err, models.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	if NewForecastService(nil, &stubPipeline{}, Options{}).ModelTrained() {
		t.Fatal("nil model must report untrained")
	}
}

func TestLatencyLogContinuesAfterRingFills(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewForecastService(logger, &stubPipeline{}, Options{})

	var logged, last int
	for i := 1; i <= 3000; i++ {
		if svc.observeLatency(time.Millisecond) {
			logged++
			last = i
		}
	}
	if logged != 3000/latencyLogEvery {
		t.Fatalf("expected %d latency logs, got %d", 3000/latencyLogEvery, logged)
	}
	if last != 3000 {
		t.Fatalf("expected a log at observation 3000, last was %d", last)
	}
	if got := svc.Latency().Count; got != 1024 {
		t.Fatalf("expected ring of 1024 samples, got %d", got)
	}
}

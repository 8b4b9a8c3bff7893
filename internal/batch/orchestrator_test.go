package batch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miradorstack/covers-forecast/internal/models"
)

type fakeRunner struct {
	delay    func(date time.Time) time.Duration
	fail     map[string]error
	panicOn  map[string]bool
	inFlight atomic.Int32
	peak     atomic.Int32

	mu    sync.Mutex
	order []string
}

func (f *fakeRunner) Forecast(ctx context.Context, req models.ForecastRequest) (models.Prediction, error) {
	key := req.ServiceDate.Format("2006-01-02")
	f.mu.Lock()
	f.order = append(f.order, key)
	f.mu.Unlock()

	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}

	if f.delay != nil {
		time.Sleep(f.delay(req.ServiceDate))
	}
	if f.panicOn[key] {
		panic("boom")
	}
	if err := f.fail[key]; err != nil {
		return models.Prediction{}, err
	}
	return models.Prediction{
		ID:      "pred-" + key,
		Request: req,
		Outcome: models.Success(models.ForecastResult{PredictedCovers: req.ServiceDate.Day(), Method: models.MethodRegression}),
	}, nil
}

func dates(n int) []time.Time {
	start := time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC)
	out := make([]time.Time, n)
	for i := range out {
		out[i] = start.AddDate(0, 0, i)
	}
	return out
}

var params = Params{LocationID: "paris-11", ServicePeriod: models.PeriodDinner}

func TestRunPreservesOrder(t *testing.T) {
	runner := &fakeRunner{delay: func(d time.Time) time.Duration {
		return time.Duration(10-d.Day()%10) * time.Millisecond
	}}
	input := dates(12)

	outcomes, err := NewOrchestrator(runner, nil).Run(context.Background(), input, params, 4)
	require.NoError(t, err)
	require.Len(t, outcomes, len(input))
	for i, out := range outcomes {
		assert.True(t, out.Date.Equal(input[i]))
		assert.Equal(t, models.BatchCompleted, out.Status)
		assert.Equal(t, input[i].Day(), out.Prediction.Outcome.Result.PredictedCovers)
	}
}

func TestRunBoundsConcurrency(t *testing.T) {
	runner := &fakeRunner{delay: func(time.Time) time.Duration { return 5 * time.Millisecond }}

	_, err := NewOrchestrator(runner, nil).Run(context.Background(), dates(20), params, 3)
	require.NoError(t, err)
	assert.LessOrEqual(t, runner.peak.Load(), int32(3))
	assert.Greater(t, runner.peak.Load(), int32(0))
}

func TestRunDefaultConcurrency(t *testing.T) {
	runner := &fakeRunner{delay: func(time.Time) time.Duration { return 5 * time.Millisecond }}

	_, err := NewOrchestrator(runner, nil).Run(context.Background(), dates(15), params, 0)
	require.NoError(t, err)
	assert.LessOrEqual(t, runner.peak.Load(), int32(DefaultConcurrency))
}

func TestRunIsolatesFailures(t *testing.T) {
	runner := &fakeRunner{
		fail:    map[string]error{"2025-07-02": errors.New("explanation exploded")},
		panicOn: map[string]bool{"2025-07-04": true},
	}

	outcomes, err := NewOrchestrator(runner, nil).Run(context.Background(), dates(5), params, 2)
	require.NoError(t, err)
	require.Len(t, outcomes, 5)

	for i, out := range outcomes {
		switch i {
		case 1, 3:
			assert.Equal(t, models.BatchFailed, out.Status)
			assert.NotEmpty(t, out.Error)
			res := out.Prediction.Outcome.Result
			assert.Equal(t, 0, res.PredictedCovers)
			assert.Equal(t, 0.0, res.Confidence)
			assert.Equal(t, 0, res.IntervalLow)
			assert.Equal(t, 0, res.IntervalHigh)
			assert.True(t, out.Prediction.Outcome.IsDegraded())
		default:
			assert.Equal(t, models.BatchCompleted, out.Status)
			assert.Empty(t, out.Error)
		}
	}
}

func TestRunCapsBatchSize(t *testing.T) {
	runner := &fakeRunner{}
	outcomes, err := NewOrchestrator(runner, nil).Run(context.Background(), dates(40), params, 5)
	require.NoError(t, err)
	assert.Len(t, outcomes, MaxSize)
	assert.True(t, outcomes[MaxSize-1].Date.Equal(dates(40)[MaxSize-1]))
}

func TestRunAdmitsInInputOrder(t *testing.T) {
	runner := &fakeRunner{}
	input := dates(10)

	_, err := NewOrchestrator(runner, nil).Run(context.Background(), input, params, 1)
	require.NoError(t, err)
	require.Len(t, runner.order, len(input))
	for i, d := range input {
		assert.Equal(t, d.Format("2006-01-02"), runner.order[i])
	}
}

func TestRunRejectsMalformedParams(t *testing.T) {
	o := NewOrchestrator(&fakeRunner{}, nil)

	_, err := o.Run(context.Background(), dates(2), Params{ServicePeriod: models.PeriodDinner}, 2)
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = o.Run(context.Background(), dates(2), Params{LocationID: "x", ServicePeriod: "supper"}, 2)
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestRunEmpty(t *testing.T) {
	outcomes, err := NewOrchestrator(&fakeRunner{}, nil).Run(context.Background(), nil, params, 2)
	require.NoError(t, err)
	assert.Empty(t, outcomes)
}

func TestRunCancelledContextFailsItems(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcomes, err := NewOrchestrator(&fakeRunner{}, nil).Run(ctx, dates(3), params, 2)
	require.NoError(t, err)
	for _, out := range outcomes {
		assert.Equal(t, models.BatchFailed, out.Status)
	}
}

package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/miradorstack/covers-forecast/internal/models"
	"github.com/miradorstack/covers-forecast/internal/utils"
)

const (
	artifactFormat          = "covers-additive/v1"
	minTrainingObservations = 14
	maxPredictedCovers      = 1_000_000
)

// ModelOptions tunes fitting and prediction.
type ModelOptions struct {
	// IntervalWidth is the target coverage of the prediction interval.
	IntervalWidth float64
	YearlyOrder   int
	WeeklyOrder   int
	// Ridge penalises every coefficient except the intercept.
	Ridge  float64
	Logger *slog.Logger
}

// DefaultModelOptions mirrors the usual additive-model defaults.
func DefaultModelOptions() ModelOptions {
	return ModelOptions{
		IntervalWidth: 0.80,
		YearlyOrder:   10,
		WeeklyOrder:   3,
		Ridge:         1.0,
	}
}

// TrainingSummary describes a completed fit.
type TrainingSummary struct {
	Observations   int       `json:"observations"`
	Regressors     []string  `json:"regressors"`
	Holidays       []string  `json:"holidays"`
	TrainedFrom    time.Time `json:"trained_from"`
	TrainedThrough time.Time `json:"trained_through"`
	RMSE           float64   `json:"rmse"`
	MAE            float64   `json:"mae"`
}

type modelState struct {
	spec          featureSpec
	coefficients  []float64
	sigma         float64
	intervalWidth float64
	summary       TrainingSummary
}

// Model is an additive time-series regression: trend, yearly and weekly
// seasonality, French public holidays and optional exogenous regressors. Once
// trained or loaded it is safe for concurrent prediction.
type Model struct {
	opts   ModelOptions
	logger *slog.Logger

	mu    sync.RWMutex
	state *modelState
}

// NewModel returns an untrained model.
func NewModel(opts ModelOptions) *Model {
	defaults := DefaultModelOptions()
	if opts.IntervalWidth <= 0 || opts.IntervalWidth >= 1 {
		opts.IntervalWidth = defaults.IntervalWidth
	}
	if opts.YearlyOrder < 0 {
		opts.YearlyOrder = defaults.YearlyOrder
	}
	if opts.WeeklyOrder < 0 {
		opts.WeeklyOrder = defaults.WeeklyOrder
	}
	if opts.Ridge < 0 {
		opts.Ridge = defaults.Ridge
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Model{opts: opts, logger: logger}
}

// IsTrained reports whether a usable trained state is loaded.
func (m *Model) IsTrained() bool {
	if m == nil {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state != nil
}

// Summary returns the summary of the loaded fit.
func (m *Model) Summary() (TrainingSummary, error) {
	state, err := m.current()
	if err != nil {
		return TrainingSummary{}, err
	}
	return state.summary, nil
}

// Train fits the model on history. Observations with a non-finite covers or
// regressor value are skipped. A regressor is used only when every remaining
// observation carries it.
func (m *Model) Train(history []models.Observation) (TrainingSummary, error) {
	obs := finiteObservations(history)
	if skipped := len(history) - len(obs); skipped > 0 {
		m.logger.Warn("skipping non-finite training observations", slog.Int("skipped", skipped))
	}
	if len(obs) < minTrainingObservations {
		return TrainingSummary{}, fmt.Errorf("train: need at least %d observations, got %d", minTrainingObservations, len(obs))
	}

	for i := range obs {
		obs[i].Date = utils.DateOnly(obs[i].Date)
	}
	sort.SliceStable(obs, func(i, j int) bool { return obs[i].Date.Before(obs[j].Date) })

	first, last := obs[0].Date, obs[len(obs)-1].Date
	spec := featureSpec{
		origin:      first,
		spanDays:    math.Max(1, last.Sub(first).Hours()/24),
		yearlyOrder: m.opts.YearlyOrder,
		weeklyOrder: m.opts.WeeklyOrder,
		holidays:    observedHolidays(obs),
		regressors:  commonRegressors(obs),
	}

	n, p := len(obs), spec.width()
	x := mat.NewDense(n, p, nil)
	y := mat.NewVecDense(n, nil)
	for i, o := range obs {
		spec.row(o.Date, o.Regressors, x.RawRowView(i))
		y.SetVec(i, o.Covers)
	}

	var gram mat.Dense
	gram.Mul(x.T(), x)
	for j := 1; j < p; j++ {
		gram.Set(j, j, gram.At(j, j)+m.opts.Ridge)
	}
	var moment mat.VecDense
	moment.MulVec(x.T(), y)

	var beta mat.VecDense
	if err := beta.SolveVec(&gram, &moment); err != nil {
		return TrainingSummary{}, fmt.Errorf("train: solve normal equations: %w", err)
	}

	var fitted mat.VecDense
	fitted.MulVec(x, &beta)
	residuals := make([]float64, n)
	absResiduals := make([]float64, n)
	var sse float64
	for i := 0; i < n; i++ {
		r := y.AtVec(i) - fitted.AtVec(i)
		residuals[i] = r
		absResiduals[i] = math.Abs(r)
		sse += r * r
	}
	dof := n - p
	if dof < 1 {
		dof = n
	}

	coefficients := slices.Clone(beta.RawVector().Data)
	sigma := math.Sqrt(sse / float64(dof))
	if !isFinite(sigma) || slices.ContainsFunc(coefficients, func(c float64) bool { return !isFinite(c) }) {
		return TrainingSummary{}, errors.New("train: fit produced non-finite parameters")
	}

	state := &modelState{
		spec:          spec,
		coefficients:  coefficients,
		sigma:         sigma,
		intervalWidth: m.opts.IntervalWidth,
		summary: TrainingSummary{
			Observations:   n,
			Regressors:     slices.Clone(spec.regressors),
			Holidays:       slices.Clone(spec.holidays),
			TrainedFrom:    first,
			TrainedThrough: last,
			RMSE:           math.Sqrt(sse / float64(n)),
			MAE:            stat.Mean(absResiduals, nil),
		},
	}

	m.mu.Lock()
	m.state = state
	m.mu.Unlock()

	m.logger.Info("regression model trained",
		slog.Int("observations", n),
		slog.Any("regressors", spec.regressors),
		slog.Float64("rmse", state.summary.RMSE))
	return state.summary, nil
}

// Predict forecasts a single date.
func (m *Model) Predict(date time.Time, regressors map[string]float64) (models.ForecastResult, error) {
	key := utils.FormatDate(date)
	results, err := m.PredictMany([]time.Time{date}, map[string]map[string]float64{key: regressors})
	if err != nil {
		return models.ForecastResult{}, err
	}
	return results[0], nil
}

// PredictMany forecasts several dates with one matrix evaluation. Regressors
// are keyed by ISO date. Missing regressors default to 0 with a warning.
func (m *Model) PredictMany(dates []time.Time, regressors map[string]map[string]float64) ([]models.ForecastResult, error) {
	state, err := m.current()
	if err != nil {
		return nil, err
	}
	if len(dates) == 0 {
		return []models.ForecastResult{}, nil
	}

	spec := state.spec
	x := mat.NewDense(len(dates), spec.width(), nil)
	used := make([]map[string]float64, len(dates))
	for i, date := range dates {
		key := utils.FormatDate(date)
		supplied := regressors[key]
		missing := spec.row(date, supplied, x.RawRowView(i))
		for _, name := range missing {
			m.logger.Warn("regressor not provided, using 0.0",
				slog.String("regressor", name), slog.String("date", key))
		}
		if len(spec.regressors) > 0 {
			used[i] = make(map[string]float64, len(spec.regressors))
			for _, name := range spec.regressors {
				used[i][name] = supplied[name]
			}
		}
	}

	var yhat mat.VecDense
	yhat.MulVec(x, mat.NewVecDense(len(state.coefficients), state.coefficients))

	half := distuv.UnitNormal.Quantile(0.5+state.intervalWidth/2) * state.sigma
	out := make([]models.ForecastResult, len(dates))
	for i := range dates {
		point := yhat.AtVec(i)
		predicted := nonNegativeRound(point)
		low := nonNegativeRound(point - half)
		high := nonNegativeRound(point + half)
		out[i] = models.ForecastResult{
			PredictedCovers: predicted,
			IntervalLow:     low,
			IntervalHigh:    high,
			Confidence:      IntervalConfidence(low, high, predicted),
			Method:          models.MethodRegression,
			Regressors:      used[i],
		}
	}
	return out, nil
}

type artifact struct {
	Format         string    `json:"format"`
	Origin         string    `json:"origin"`
	SpanDays       float64   `json:"span_days"`
	YearlyOrder    int       `json:"yearly_order"`
	WeeklyOrder    int       `json:"weekly_order"`
	Holidays       []string  `json:"holidays"`
	Regressors     []string  `json:"regressors"`
	Coefficients   []float64 `json:"coefficients"`
	Sigma          float64   `json:"sigma"`
	IntervalWidth  float64   `json:"interval_width"`
	Observations   int       `json:"observations"`
	TrainedThrough string    `json:"trained_through"`
	RMSE           float64   `json:"rmse"`
	MAE            float64   `json:"mae"`
}

// Save writes the trained state to path, creating parent directories.
func (m *Model) Save(path string) error {
	state, err := m.current()
	if err != nil {
		return err
	}

	payload, err := json.MarshalIndent(artifact{
		Format:         artifactFormat,
		Origin:         utils.FormatDate(state.spec.origin),
		SpanDays:       state.spec.spanDays,
		YearlyOrder:    state.spec.yearlyOrder,
		WeeklyOrder:    state.spec.weeklyOrder,
		Holidays:       state.spec.holidays,
		Regressors:     state.spec.regressors,
		Coefficients:   state.coefficients,
		Sigma:          state.sigma,
		IntervalWidth:  state.intervalWidth,
		Observations:   state.summary.Observations,
		TrainedThrough: utils.FormatDate(state.summary.TrainedThrough),
		RMSE:           state.summary.RMSE,
		MAE:            state.summary.MAE,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode model: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create model dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return fmt.Errorf("write model: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace model: %w", err)
	}
	return nil
}

// Load replaces the model state with the artifact at path.
func (m *Model) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", models.ErrModelNotFound, path)
		}
		return fmt.Errorf("read model: %w", err)
	}

	var a artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return fmt.Errorf("decode model: %w", err)
	}
	if a.Format != artifactFormat {
		return fmt.Errorf("decode model: unsupported format %q", a.Format)
	}
	origin, err := utils.ParseISODate(a.Origin)
	if err != nil {
		return fmt.Errorf("decode model origin: %w", err)
	}
	through, err := utils.ParseISODate(a.TrainedThrough)
	if err != nil {
		return fmt.Errorf("decode model trained_through: %w", err)
	}

	spec := featureSpec{
		origin:      origin,
		spanDays:    math.Max(1, a.SpanDays),
		yearlyOrder: a.YearlyOrder,
		weeklyOrder: a.WeeklyOrder,
		holidays:    a.Holidays,
		regressors:  a.Regressors,
	}
	if len(a.Coefficients) != spec.width() {
		return fmt.Errorf("decode model: %d coefficients for %d features", len(a.Coefficients), spec.width())
	}
	if !isFinite(a.Sigma) || slices.ContainsFunc(a.Coefficients, func(c float64) bool { return !isFinite(c) }) {
		return errors.New("decode model: non-finite parameters")
	}

	width := a.IntervalWidth
	if width <= 0 || width >= 1 {
		width = m.opts.IntervalWidth
	}

	state := &modelState{
		spec:          spec,
		coefficients:  a.Coefficients,
		sigma:         a.Sigma,
		intervalWidth: width,
		summary: TrainingSummary{
			Observations:   a.Observations,
			Regressors:     slices.Clone(a.Regressors),
			Holidays:       slices.Clone(a.Holidays),
			TrainedFrom:    origin,
			TrainedThrough: through,
			RMSE:           a.RMSE,
			MAE:            a.MAE,
		},
	}

	m.mu.Lock()
	m.state = state
	m.mu.Unlock()
	return nil
}

func (m *Model) current() (*modelState, error) {
	if m == nil {
		return nil, models.ErrNotTrained
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state == nil {
		return nil, models.ErrNotTrained
	}
	return m.state, nil
}

func commonRegressors(obs []models.Observation) []string {
	var out []string
	for _, name := range KnownRegressors {
		present := true
		for _, o := range obs {
			if _, ok := o.Regressors[name]; !ok {
				present = false
				break
			}
		}
		if present {
			out = append(out, name)
		}
	}
	return out
}

func observedHolidays(obs []models.Observation) []string {
	seen := make(map[string]struct{})
	for _, o := range obs {
		if name, ok := frenchHolidayName(o.Date); ok {
			seen[name] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func nonNegativeRound(v float64) int {
	switch {
	case math.IsNaN(v) || v <= 0:
		return 0
	case v >= maxPredictedCovers:
		return maxPredictedCovers
	}
	return int(math.Round(v))
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// finiteObservations returns the observations whose covers and regressor
// values are all finite, in their original order.
func finiteObservations(history []models.Observation) []models.Observation {
	out := make([]models.Observation, 0, len(history))
	for _, o := range history {
		if !isFinite(o.Covers) {
			continue
		}
		ok := true
		for _, v := range o.Regressors {
			if !isFinite(v) {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, o)
		}
	}
	return out
}

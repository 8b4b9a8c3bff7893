package models

import "time"

// Method records which strategy produced a forecast.
type Method string

const (
	MethodWeightedAverage Method = "weighted_average"
	MethodRegression      Method = "regression"
	MethodFallback        Method = "fallback"
)

// AnalogDay is a historical date judged comparable to the target date.
type AnalogDay struct {
	ID             string            `json:"id"`
	Date           time.Time         `json:"date"`
	Label          string            `json:"label"`
	ObservedCovers int               `json:"observed_covers"`
	Similarity     float64           `json:"similarity"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// ForecastResult is a numeric forecast with its uncertainty band and evidence.
type ForecastResult struct {
	PredictedCovers int                `json:"predicted_covers"`
	IntervalLow     int                `json:"interval_low"`
	IntervalHigh    int                `json:"interval_high"`
	Confidence      float64            `json:"confidence"`
	Method          Method             `json:"method"`
	AnalogsUsed     []AnalogDay        `json:"analogs_used,omitempty"`
	Regressors      map[string]float64 `json:"regressors,omitempty"`
}

// OutcomeKind distinguishes primary from degraded forecasts.
type OutcomeKind string

const (
	OutcomeSuccess  OutcomeKind = "success"
	OutcomeDegraded OutcomeKind = "degraded"
)

// ForecastOutcome wraps a result with the branch that produced it.
type ForecastOutcome struct {
	Kind   OutcomeKind    `json:"kind"`
	Result ForecastResult `json:"result"`
	Reason string         `json:"reason,omitempty"`
}

// Success marks a result produced by the primary strategy.
func Success(result ForecastResult) ForecastOutcome {
	return ForecastOutcome{Kind: OutcomeSuccess, Result: result}
}

// Degraded marks a result produced by a fallback branch.
func Degraded(result ForecastResult, reason string) ForecastOutcome {
	return ForecastOutcome{Kind: OutcomeDegraded, Result: result, Reason: reason}
}

// IsDegraded reports whether a fallback branch produced the result.
func (o ForecastOutcome) IsDegraded() bool {
	return o.Kind == OutcomeDegraded
}

// ExplanationSource records whether prose came from the text service or the local template.
type ExplanationSource string

const (
	ExplanationGenerated ExplanationSource = "generated"
	ExplanationTemplate  ExplanationSource = "template"
)

// Explanation is the human-readable justification of a forecast.
type Explanation struct {
	Summary           string            `json:"summary"`
	ConfidenceFactors []string          `json:"confidence_factors"`
	Source            ExplanationSource `json:"source"`
}

// Prediction is the assembled per-date pipeline output.
type Prediction struct {
	ID          string          `json:"id"`
	Request     ForecastRequest `json:"request"`
	Context     ContextSnapshot `json:"context"`
	Outcome     ForecastOutcome `json:"outcome"`
	Explanation Explanation     `json:"explanation"`
	Staffing    StaffPlan       `json:"staffing"`
	GeneratedAt time.Time       `json:"generated_at"`
}

// Observation is one training row for the regression model.
type Observation struct {
	Date       time.Time
	Covers     float64
	Regressors map[string]float64
}

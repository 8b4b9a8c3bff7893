package models

import "time"

// BatchStatus tracks a batch item through Pending -> Running -> Completed | Failed.
type BatchStatus string

const (
	BatchPending   BatchStatus = "pending"
	BatchRunning   BatchStatus = "running"
	BatchCompleted BatchStatus = "completed"
	BatchFailed    BatchStatus = "failed"
)

// BatchOutcome pairs a date with its prediction or a failure placeholder.
type BatchOutcome struct {
	Date       time.Time   `json:"date"`
	Status     BatchStatus `json:"status"`
	Prediction Prediction  `json:"prediction"`
	Error      string      `json:"error,omitempty"`
}

// PlaceholderPrediction is the zero-valued result recorded for a failed item.
func PlaceholderPrediction(req ForecastRequest) Prediction {
	return Prediction{
		Request: req,
		Outcome: Degraded(ForecastResult{Method: MethodFallback}, "pipeline failed"),
	}
}

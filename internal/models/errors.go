package models

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrValidation marks malformed top-level input.
	ErrValidation = errors.New("validation failed")
	// ErrNotTrained is returned when the regression model has no trained state.
	ErrNotTrained = errors.New("regression model not trained")
	// ErrModelNotFound is returned when a model artifact is missing at load time.
	ErrModelNotFound = errors.New("regression model artifact not found")
	// ErrExternalService wraps failures from the text-generation or pattern services.
	ErrExternalService = errors.New("external service failed")
	// ErrInvalidInput marks invalid numeric input to pure calculators.
	ErrInvalidInput = errors.New("invalid input")
	// ErrBatchItem marks an isolated per-date failure.
	ErrBatchItem = errors.New("batch item failed")
)

// ValidationError describes which input field was rejected.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

// Is lets errors.Is match ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// BatchItemError records the failure of one date in a batch.
type BatchItemError struct {
	Date time.Time
	Err  error
}

func (e *BatchItemError) Error() string {
	return fmt.Sprintf("batch item %s: %v", e.Date.Format("2006-01-02"), e.Err)
}

func (e *BatchItemError) Unwrap() error { return e.Err }

// Is lets errors.Is match ErrBatchItem.
func (e *BatchItemError) Is(target error) bool {
	return target == ErrBatchItem
}

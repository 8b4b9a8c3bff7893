package models

import (
	"strings"
	"time"
)

// ServicePeriod names a meal/service window.
type ServicePeriod string

const (
	PeriodBreakfast ServicePeriod = "breakfast"
	PeriodBrunch    ServicePeriod = "brunch"
	PeriodLunch     ServicePeriod = "lunch"
	PeriodDinner    ServicePeriod = "dinner"
)

var knownPeriods = map[ServicePeriod]struct{}{
	PeriodBreakfast: {},
	PeriodBrunch:    {},
	PeriodLunch:     {},
	PeriodDinner:    {},
}

// ParseServicePeriod normalises and validates a period name.
func ParseServicePeriod(value string) (ServicePeriod, error) {
	period := ServicePeriod(strings.ToLower(strings.TrimSpace(value)))
	if period == "" {
		return "", &ValidationError{Field: "service_period", Reason: "is required"}
	}
	if _, ok := knownPeriods[period]; !ok {
		return "", &ValidationError{Field: "service_period", Reason: "unknown period " + value}
	}
	return period, nil
}

// ForecastRequest identifies one forecast: a location, a calendar date and a service period.
type ForecastRequest struct {
	LocationID    string        `json:"location_id"`
	ServiceDate   time.Time     `json:"service_date"`
	ServicePeriod ServicePeriod `json:"service_period"`
}

// Validate checks the request shape.
func (r ForecastRequest) Validate() error {
	if strings.TrimSpace(r.LocationID) == "" {
		return &ValidationError{Field: "location_id", Reason: "is required"}
	}
	if r.ServiceDate.IsZero() {
		return &ValidationError{Field: "service_date", Reason: "is required"}
	}
	if _, ok := knownPeriods[r.ServicePeriod]; !ok {
		return &ValidationError{Field: "service_period", Reason: "unknown period " + string(r.ServicePeriod)}
	}
	return nil
}

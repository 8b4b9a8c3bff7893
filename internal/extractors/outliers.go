package extractors

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/miradorstack/covers-forecast/internal/models"
)

// DefaultOutlierThreshold is the absolute z-score above which a day is flagged.
const DefaultOutlierThreshold = 3.5

// minGroupSize is the fewest same-weekday observations needed to score a group.
const minGroupSize = 4

// Outlier captures a training day whose covers sit far from its weekday norm.
type Outlier struct {
	Date      time.Time
	Covers    float64
	Mean      float64
	Score     float64
	Threshold float64
}

// OutlierDetector flags anomalous days in covers history with a per-weekday
// z-score, so regular Saturday peaks are not mistaken for anomalies.
type OutlierDetector struct{}

// NewOutlierDetector creates a history outlier detector.
func NewOutlierDetector() *OutlierDetector {
	return &OutlierDetector{}
}

// Detect returns days whose |z| reaches threshold, ordered by date.
func (e *OutlierDetector) Detect(history []models.Observation, threshold float64) []Outlier {
	if len(history) == 0 {
		return nil
	}
	if threshold <= 0 {
		threshold = DefaultOutlierThreshold
	}

	groups := make(map[time.Weekday][]models.Observation, 7)
	for _, obs := range history {
		day := obs.Date.Weekday()
		groups[day] = append(groups[day], obs)
	}

	outliers := make([]Outlier, 0)
	for _, group := range groups {
		if len(group) < minGroupSize {
			continue
		}
		values := make([]float64, len(group))
		for i, obs := range group {
			values[i] = obs.Covers
		}
		mean, stdDev := stat.PopMeanStdDev(values, nil)
		if stdDev == 0 {
			continue
		}
		for _, obs := range group {
			score := (obs.Covers - mean) / stdDev
			if math.Abs(score) >= threshold {
				outliers = append(outliers, Outlier{
					Date:      obs.Date,
					Covers:    obs.Covers,
					Mean:      mean,
					Score:     score,
					Threshold: threshold,
				})
			}
		}
	}

	sort.Slice(outliers, func(i, j int) bool { return outliers[i].Date.Before(outliers[j].Date) })
	return outliers
}

// Without returns history minus the flagged days.
func Without(history []models.Observation, outliers []Outlier) []models.Observation {
	if len(outliers) == 0 {
		return history
	}
	drop := make(map[time.Time]struct{}, len(outliers))
	for _, o := range outliers {
		drop[o.Date] = struct{}{}
	}
	kept := make([]models.Observation, 0, len(history)-len(outliers))
	for _, obs := range history {
		if _, ok := drop[obs.Date]; ok {
			continue
		}
		kept = append(kept, obs)
	}
	return kept
}

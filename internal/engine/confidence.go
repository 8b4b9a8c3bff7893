package engine

import (
	"math"

	"github.com/miradorstack/covers-forecast/internal/models"
)

// ZeroCoversConfidence is used when an interval is scored against a zero forecast.
const ZeroCoversConfidence = 0.5

var intervalSteps = []struct {
	below      float64
	confidence float64
}{
	{0.20, 0.90},
	{0.30, 0.80},
	{0.40, 0.70},
	{0.50, 0.60},
}

// SimilarityConfidence is the mean analog similarity rounded to two decimals.
func SimilarityConfidence(analogs []models.AnalogDay) float64 {
	if len(analogs) == 0 {
		return 0
	}
	var sum float64
	for _, a := range analogs {
		sum += a.Similarity
	}
	return clamp01(math.Round(sum/float64(len(analogs))*100) / 100)
}

// IntervalConfidence maps the relative interval width (high-low)/predicted onto a step scale.
func IntervalConfidence(low, high, predicted int) float64 {
	if predicted == 0 {
		return ZeroCoversConfidence
	}
	relative := float64(high-low) / float64(predicted)
	for _, step := range intervalSteps {
		if relative < step.below {
			return step.confidence
		}
	}
	return 0.50
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

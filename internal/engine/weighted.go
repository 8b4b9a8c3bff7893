package engine

import (
	"math"
	"slices"

	"github.com/miradorstack/covers-forecast/internal/models"
)

const (
	// FallbackCovers is returned when no analogs are available.
	FallbackCovers = 120
	// FallbackConfidence accompanies FallbackCovers.
	FallbackConfidence = 0.60
	// AnalogIntervalHalfWidth is the band synthesized around analog-based forecasts.
	AnalogIntervalHalfWidth = 10
)

// WeightedAverage combines analog covers using similarity as the weight. It
// produces no interval; see WithAnalogInterval.
func WeightedAverage(analogs []models.AnalogDay) models.ForecastResult {
	if len(analogs) == 0 {
		return models.ForecastResult{
			PredictedCovers: FallbackCovers,
			Confidence:      FallbackConfidence,
			Method:          models.MethodFallback,
		}
	}

	var weightSum, weighted, plainSum float64
	for _, a := range analogs {
		weightSum += a.Similarity
		weighted += float64(a.ObservedCovers) * a.Similarity
		plainSum += float64(a.ObservedCovers)
	}

	var predicted float64
	if weightSum > 0 {
		predicted = math.Floor(weighted / weightSum)
	} else {
		predicted = math.Floor(plainSum / float64(len(analogs)))
	}
	if predicted < 0 {
		predicted = 0
	}

	return models.ForecastResult{
		PredictedCovers: int(predicted),
		Confidence:      SimilarityConfidence(analogs),
		Method:          models.MethodWeightedAverage,
		AnalogsUsed:     slices.Clone(analogs),
	}
}

// WithAnalogInterval fills a ±AnalogIntervalHalfWidth band, floored at zero.
func WithAnalogInterval(result models.ForecastResult) models.ForecastResult {
	result.IntervalLow = max(0, result.PredictedCovers-AnalogIntervalHalfWidth)
	result.IntervalHigh = result.PredictedCovers + AnalogIntervalHalfWidth
	return result
}

package services

import (
	"maps"
	"slices"

	"gonum.org/v1/gonum/stat"

	"github.com/bobby-s-dev/weather-consensus/internal/models"
	"github.com/bobby-s-dev/weather-consensus/internal/weights"
)

// Combine returns the weighted mean of the predictions. Providers missing
// from table weigh weights.DefaultWeight. ok is false when there is nothing
// to combine or any applicable weight is not a positive finite number.
// The result always lies within the range of the predictions.
func Combine(predictions models.PredictionSet, table weights.Table) (combined float64, ok bool) {
	if len(predictions) == 0 {
		return 0, false
	}

	// fixed order keeps float summation deterministic
	ids := slices.Sorted(maps.Keys(predictions))

	values := make([]float64, 0, len(ids))
	ws := make([]float64, 0, len(ids))
	for _, id := range ids {
		w := table.Weight(id)
		if !weights.IsValid(w) {
			return 0, false
		}
		values = append(values, predictions[id])
		ws = append(ws, w)
	}

	if len(values) == 1 {
		return values[0], true
	}

	// rounding in the weighted sum can land just outside the inputs
	mean := stat.Mean(values, ws)
	return min(max(mean, slices.Min(values)), slices.Max(values)), true
}

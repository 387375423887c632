// Package metrics provides verification measures for downscaled predictions
// against station observations. Station records are gappy, so every measure
// uses pairwise deletion: a pair is skipped when either side is missing (NaN).
package metrics

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/geoclimate/downscale/grid"
	"github.com/geoclimate/downscale/pkg/errors"
)

// pairs returns the observation/prediction values at positions where both
// sides are present.
func pairs(obs, pred []float64) ([]float64, []float64, error) {
	if len(obs) == 0 {
		return nil, nil, errors.NewValueError("metrics", "empty series")
	}
	if len(pred) != len(obs) {
		return nil, nil, errors.NewDimensionError("metrics", len(obs), len(pred), 0)
	}

	o := make([]float64, 0, len(obs))
	p := make([]float64, 0, len(obs))
	for i := range obs {
		if grid.IsMissing(obs[i]) || grid.IsMissing(pred[i]) {
			continue
		}
		o = append(o, obs[i])
		p = append(p, pred[i])
	}
	if len(o) == 0 {
		return nil, nil, errors.NewValueError("metrics", "no overlapping non-missing pairs")
	}
	return o, p, nil
}

// MSE computes the mean squared error.
func MSE(obs, pred []float64) (float64, error) {
	o, p, err := pairs(obs, pred)
	if err != nil {
		return 0, err
	}
	var sum float64
	for i := range o {
		d := o[i] - p[i]
		sum += d * d
	}
	return sum / float64(len(o)), nil
}

// RMSE computes the root mean squared error.
func RMSE(obs, pred []float64) (float64, error) {
	mse, err := MSE(obs, pred)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse), nil
}

// MAE computes the mean absolute error.
func MAE(obs, pred []float64) (float64, error) {
	o, p, err := pairs(obs, pred)
	if err != nil {
		return 0, err
	}
	var sum float64
	for i := range o {
		sum += math.Abs(o[i] - p[i])
	}
	return sum / float64(len(o)), nil
}

// Bias computes the mean error (prediction minus observation). Positive bias
// means the downscaled series overestimates.
func Bias(obs, pred []float64) (float64, error) {
	o, p, err := pairs(obs, pred)
	if err != nil {
		return 0, err
	}
	var sum float64
	for i := range o {
		sum += p[i] - o[i]
	}
	return sum / float64(len(o)), nil
}

// R2Score computes the coefficient of determination.
func R2Score(obs, pred []float64) (float64, error) {
	o, p, err := pairs(obs, pred)
	if err != nil {
		return 0, err
	}

	mean := stat.Mean(o, nil)
	var tss, rss float64
	for i := range o {
		tss += (o[i] - mean) * (o[i] - mean)
		rss += (o[i] - p[i]) * (o[i] - p[i])
	}
	if tss == 0 {
		return 0, errors.NewValueError("R2Score", "total sum of squares is zero")
	}
	return 1 - rss/tss, nil
}

// Correlation computes the Pearson correlation between observations and
// predictions.
func Correlation(obs, pred []float64) (float64, error) {
	o, p, err := pairs(obs, pred)
	if err != nil {
		return 0, err
	}
	r := stat.Correlation(o, p, nil)
	if math.IsNaN(r) {
		return 0, errors.NewValueError("Correlation", "undefined for constant series")
	}
	return r, nil
}

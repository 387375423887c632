// Package preprocessing provides feature scaling used by the estimator
// providers. Gridded predictors mix variables on very different scales
// (pressure in Pa next to temperature in K), so gradient-based fits
// standardize first.
package preprocessing

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/geoclimate/downscale/core/model"
	"github.com/geoclimate/downscale/pkg/errors"
)

// StandardScaler standardizes features by removing the mean and scaling to
// unit variance, column by column.
type StandardScaler struct {
	model.BaseEstimator

	Means []float64
	Stds  []float64
}

// NewStandardScaler creates an unfitted StandardScaler.
func NewStandardScaler() *StandardScaler {
	return &StandardScaler{}
}

// Fit computes the per-column mean and standard deviation of x.
func (s *StandardScaler) Fit(x mat.Matrix) error {
	r, c := x.Dims()
	if r == 0 || c == 0 {
		return errors.Wrap(errors.ErrEmptyData, "StandardScaler.Fit")
	}

	s.Means = make([]float64, c)
	s.Stds = make([]float64, c)

	for j := 0; j < c; j++ {
		var sum float64
		for i := 0; i < r; i++ {
			sum += x.At(i, j)
		}
		mean := sum / float64(r)

		var sq float64
		for i := 0; i < r; i++ {
			d := x.At(i, j) - mean
			sq += d * d
		}
		std := math.Sqrt(sq / float64(r))
		if std == 0 {
			// Constant columns pass through unscaled instead of dividing by zero.
			std = 1
		}

		s.Means[j] = mean
		s.Stds[j] = std
	}

	s.SetFitted()
	return nil
}

// Transform returns (x - mean) / std per column.
func (s *StandardScaler) Transform(x mat.Matrix) (*mat.Dense, error) {
	if !s.IsFitted() {
		return nil, errors.NewNotFittedError("StandardScaler", "Transform")
	}

	r, c := x.Dims()
	if c != len(s.Means) {
		return nil, errors.NewDimensionError("StandardScaler.Transform", len(s.Means), c, 1)
	}

	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out.Set(i, j, (x.At(i, j)-s.Means[j])/s.Stds[j])
		}
	}
	return out, nil
}

// FitTransform fits the scaler and transforms x in one step.
func (s *StandardScaler) FitTransform(x mat.Matrix) (*mat.Dense, error) {
	if err := s.Fit(x); err != nil {
		return nil, err
	}
	return s.Transform(x)
}

// InverseTransform maps standardized values back to the original scale.
func (s *StandardScaler) InverseTransform(x mat.Matrix) (*mat.Dense, error) {
	if !s.IsFitted() {
		return nil, errors.NewNotFittedError("StandardScaler", "InverseTransform")
	}

	r, c := x.Dims()
	if c != len(s.Means) {
		return nil, errors.NewDimensionError("StandardScaler.InverseTransform", len(s.Means), c, 1)
	}

	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out.Set(i, j, x.At(i, j)*s.Stds[j]+s.Means[j])
		}
	}
	return out, nil
}

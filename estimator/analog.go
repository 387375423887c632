package estimator

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/geoclimate/downscale/core/model"
	"github.com/geoclimate/downscale/pkg/errors"
)

// AnalogSelection chooses how the values of the k closest training days are
// combined into one prediction.
type AnalogSelection int

const (
	// SelectMean averages the predictand values of the k analogs.
	SelectMean AnalogSelection = iota
	// SelectClosest takes the value of the single best-matching analog,
	// ignoring the rest of the k set.
	SelectClosest
)

// AnalogOptions configures the analog family.
type AnalogOptions struct {
	// NAnalogs is the number of closest training days considered per
	// prediction day.
	NAnalogs int
	// Selection combines the analog values into a prediction.
	Selection AnalogSelection
}

// DefaultAnalogOptions returns the conventional single-analog setup.
func DefaultAnalogOptions() *AnalogOptions {
	return &AnalogOptions{NAnalogs: 1, Selection: SelectMean}
}

// Method implements Options.
func (o *AnalogOptions) Method() Method { return MethodAnalogs }

// Validate implements Options.
func (o *AnalogOptions) Validate() error {
	if o.NAnalogs < 1 {
		return errors.NewValidationError("NAnalogs", "must be at least 1", o.NAnalogs)
	}
	switch o.Selection {
	case SelectMean, SelectClosest:
	default:
		return errors.NewValidationError("Selection", "unknown analog selection", o.Selection)
	}
	return nil
}

// AnalogModel is the fitted state of the analog family. It keeps the full
// training predictor/predictand rows: prediction is a nearest-row lookup.
//
// TrainDates are the reference dates of the rows the model was fitted on,
// after observation filtering. TestDates are attached once after fitting and
// hold the complete unfiltered series of the predictand; the two deliberately
// differ when a filter was active (training window vs. retrieval provenance).
type AnalogModel struct {
	model.BaseEstimator

	XTrain []float64 // row-major, Rows × XCols
	YTrain []float64 // row-major, Rows × YCols
	Rows   int
	XCols  int
	YCols  int

	TrainDates []time.Time
	TestDates  []time.Time

	K         int
	Selection AnalogSelection
}

// Method implements FittedModel.
func (m *AnalogModel) Method() Method { return MethodAnalogs }

// SetTestDates implements DateCarrier.
func (m *AnalogModel) SetTestDates(dates []time.Time) {
	m.TestDates = dates
}

func fitAnalogs(x, y mat.Matrix, o *AnalogOptions, dates []time.Time) (*AnalogModel, error) {
	xr, xc := x.Dims()
	_, yc := y.Dims()

	if dates == nil {
		return nil, errors.NewValidationError("dates", "analog training requires reference dates", nil)
	}
	if len(dates) != xr {
		return nil, errors.NewDimensionError("analogs.Train", xr, len(dates), 0)
	}

	k := o.NAnalogs
	if k > xr {
		k = xr
	}

	am := &AnalogModel{
		XTrain:     make([]float64, xr*xc),
		YTrain:     make([]float64, xr*yc),
		Rows:       xr,
		XCols:      xc,
		YCols:      yc,
		TrainDates: append([]time.Time(nil), dates...),
		K:          k,
		Selection:  o.Selection,
	}
	for i := 0; i < xr; i++ {
		for j := 0; j < xc; j++ {
			am.XTrain[i*xc+j] = x.At(i, j)
		}
		for j := 0; j < yc; j++ {
			am.YTrain[i*yc+j] = y.At(i, j)
		}
	}
	am.SetFitted()
	return am, nil
}

// Predict implements FittedModel. Each row of x is matched against the
// training rows by Euclidean distance in predictor space.
func (m *AnalogModel) Predict(x mat.Matrix) (*mat.Dense, error) {
	if !m.IsFitted() {
		return nil, errors.NewNotFittedError("AnalogModel", "Predict")
	}

	xr, xc := x.Dims()
	if xc != m.XCols {
		return nil, errors.NewDimensionError("AnalogModel.Predict", m.XCols, xc, 1)
	}

	out := mat.NewDense(xr, m.YCols, nil)
	dists := make([]float64, m.Rows)
	order := make([]int, m.Rows)

	for i := 0; i < xr; i++ {
		for t := 0; t < m.Rows; t++ {
			var d float64
			for j := 0; j < xc; j++ {
				diff := x.At(i, j) - m.XTrain[t*m.XCols+j]
				d += diff * diff
			}
			dists[t] = d
			order[t] = t
		}
		// Stable ordering keeps ties resolved by date, which keeps analog
		// selection reproducible across runs.
		sort.SliceStable(order, func(a, b int) bool { return dists[order[a]] < dists[order[b]] })

		switch m.Selection {
		case SelectClosest:
			best := order[0]
			for j := 0; j < m.YCols; j++ {
				out.Set(i, j, m.YTrain[best*m.YCols+j])
			}
		default: // SelectMean
			for j := 0; j < m.YCols; j++ {
				var sum float64
				n := 0
				for _, t := range order[:m.K] {
					v := m.YTrain[t*m.YCols+j]
					if math.IsNaN(v) {
						continue
					}
					sum += v
					n++
				}
				if n == 0 {
					out.Set(i, j, math.NaN())
				} else {
					out.Set(i, j, sum/float64(n))
				}
			}
		}
	}
	return out, nil
}

// Package estimator provides the uniform train/predict contract over the
// three transfer-function families used in statistical downscaling: analog
// matching, generalized linear models, and feed-forward neural networks.
//
// Dispatch is closed over the option payload types: each family has exactly
// one options struct, and Train type-switches on it. The orchestration layer
// above never looks past the Options and FittedModel interfaces.
package estimator

import (
	"encoding/gob"
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/geoclimate/downscale/pkg/errors"
)

// Method identifies a transfer-function family.
type Method int

const (
	// MethodAnalogs is non-parametric analog (closest historical day) matching.
	MethodAnalogs Method = iota
	// MethodGLM is generalized linear modelling.
	MethodGLM
	// MethodNN is a feed-forward neural network.
	MethodNN
)

// String returns the canonical lowercase method name.
func (m Method) String() string {
	switch m {
	case MethodAnalogs:
		return "analogs"
	case MethodGLM:
		return "glm"
	case MethodNN:
		return "nn"
	default:
		return fmt.Sprintf("Method(%d)", int(m))
	}
}

// Options is implemented by the per-method option structs. The set of
// implementations is closed: AnalogOptions, GLMOptions and NNOptions.
type Options interface {
	// Method returns the family this options payload configures.
	Method() Method
	// Validate checks the option values at construction time, before any
	// data reaches a numerical routine.
	Validate() error
}

// FittedModel is the opaque state returned by Train. Concrete types are
// method-specific; callers that need family internals type-assert.
type FittedModel interface {
	// Method returns the family that produced this model.
	Method() Method
	// Predict produces one modeled value per row of x for every target the
	// model was trained on.
	Predict(x mat.Matrix) (*mat.Dense, error)
}

// DateCarrier is implemented by fitted models that record reference dates for
// later analog retrieval. TestDates is attached once, after fitting.
type DateCarrier interface {
	SetTestDates(dates []time.Time)
}

// Train fits the family selected by opts on the predictor matrix x and the
// predictand matrix y (one column per target). The dates slice is consumed by
// the analog family only, where it must align with the rows of x and y; other
// families ignore it.
//
// Provider panics from the underlying numerical code are converted into
// errors rather than propagated.
func Train(x, y mat.Matrix, opts Options, dates []time.Time) (FittedModel, error) {
	if opts == nil {
		return nil, errors.NewUnsupportedMethodError("<nil>")
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	xr, xc := x.Dims()
	yr, yc := y.Dims()
	if xr == 0 || xc == 0 || yc == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "estimator.Train")
	}
	if yr != xr {
		return nil, errors.NewDimensionError("estimator.Train", xr, yr, 0)
	}

	var m FittedModel
	err := errors.SafeExecute("estimator.Train", func() error {
		var fitErr error
		switch o := opts.(type) {
		case *AnalogOptions:
			m, fitErr = fitAnalogs(x, y, o, dates)
		case *GLMOptions:
			m, fitErr = fitGLM(x, y, o)
		case *NNOptions:
			m, fitErr = fitNN(x, y, o)
		default:
			fitErr = errors.NewUnsupportedMethodError(fmt.Sprintf("%T", opts))
		}
		return fitErr
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Predict produces modeled values for every row of x using a fitted model.
func Predict(x mat.Matrix, m FittedModel) (*mat.Dense, error) {
	if m == nil {
		return nil, errors.NewUnsupportedMethodError("<nil model>")
	}

	var yhat *mat.Dense
	err := errors.SafeExecute("estimator.Predict", func() error {
		var predErr error
		yhat, predErr = m.Predict(x)
		return predErr
	})
	if err != nil {
		return nil, err
	}
	return yhat, nil
}

func init() {
	// Concrete models travel inside interface-typed fields of persisted
	// training results.
	gob.Register(&AnalogModel{})
	gob.Register(&GLMModel{})
	gob.Register(&NNModel{})
}

// denseCopy materializes an arbitrary mat.Matrix as a Dense copy.
func denseCopy(x mat.Matrix) *mat.Dense {
	r, c := x.Dims()
	d := mat.NewDense(r, c, nil)
	d.Copy(x)
	return d
}

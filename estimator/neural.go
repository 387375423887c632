package estimator

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/geoclimate/downscale/core/model"
	"github.com/geoclimate/downscale/pkg/errors"
	"github.com/geoclimate/downscale/preprocessing"
)

// NNOptions configures the feed-forward neural network family: a single
// hidden layer with sigmoid units and a linear output, trained by stochastic
// gradient descent on mean squared error.
type NNOptions struct {
	// HiddenSize is the number of hidden units.
	HiddenSize int
	// LearningRate is the SGD step size.
	LearningRate float64
	// Epochs is the number of full passes over the training rows.
	Epochs int
	// Seed makes weight initialization and sample shuffling deterministic.
	Seed int64
	// Standardize controls whether predictors are scaled to zero mean and
	// unit variance before training. Leave on unless the predictors are
	// already standardized upstream.
	Standardize bool
}

// DefaultNNOptions returns a small deterministic network.
func DefaultNNOptions() *NNOptions {
	return &NNOptions{
		HiddenSize:   8,
		LearningRate: 0.01,
		Epochs:       200,
		Seed:         1,
		Standardize:  true,
	}
}

// Method implements Options.
func (o *NNOptions) Method() Method { return MethodNN }

// Validate implements Options.
func (o *NNOptions) Validate() error {
	if o.HiddenSize < 1 {
		return errors.NewValidationError("HiddenSize", "must be at least 1", o.HiddenSize)
	}
	if o.LearningRate <= 0 {
		return errors.NewValidationError("LearningRate", "must be positive", o.LearningRate)
	}
	if o.Epochs < 1 {
		return errors.NewValidationError("Epochs", "must be at least 1", o.Epochs)
	}
	return nil
}

// NNModel is the fitted state of the neural network family.
type NNModel struct {
	model.BaseEstimator

	NIn     int
	NHidden int
	NOut    int

	// W1 is row-major NIn × NHidden, W2 is row-major NHidden × NOut.
	W1 []float64
	B1 []float64
	W2 []float64
	B2 []float64

	Scaler *preprocessing.StandardScaler
}

// Method implements FittedModel.
func (m *NNModel) Method() Method { return MethodNN }

func sigmoid(v float64) float64 { return 1.0 / (1.0 + math.Exp(-v)) }

func fitNN(x, y mat.Matrix, o *NNOptions) (*NNModel, error) {
	xr, xc := x.Dims()
	_, yc := y.Dims()

	nm := &NNModel{
		NIn:     xc,
		NHidden: o.HiddenSize,
		NOut:    yc,
		W1:      make([]float64, xc*o.HiddenSize),
		B1:      make([]float64, o.HiddenSize),
		W2:      make([]float64, o.HiddenSize*yc),
		B2:      make([]float64, yc),
	}

	input := denseCopy(x)
	if o.Standardize {
		nm.Scaler = preprocessing.NewStandardScaler()
		scaled, err := nm.Scaler.FitTransform(input)
		if err != nil {
			return nil, err
		}
		input = scaled
	}

	rng := rand.New(rand.NewSource(o.Seed))
	scale := 1.0 / math.Sqrt(float64(xc))
	for i := range nm.W1 {
		nm.W1[i] = rng.NormFloat64() * scale
	}
	scale = 1.0 / math.Sqrt(float64(o.HiddenSize))
	for i := range nm.W2 {
		nm.W2[i] = rng.NormFloat64() * scale
	}

	hidden := make([]float64, o.HiddenSize)
	outErr := make([]float64, yc)
	perm := make([]int, xr)
	for i := range perm {
		perm[i] = i
	}

	for epoch := 0; epoch < o.Epochs; epoch++ {
		rng.Shuffle(xr, func(a, b int) { perm[a], perm[b] = perm[b], perm[a] })

		for _, i := range perm {
			// Forward pass.
			for h := 0; h < o.HiddenSize; h++ {
				z := nm.B1[h]
				for j := 0; j < xc; j++ {
					z += input.At(i, j) * nm.W1[j*o.HiddenSize+h]
				}
				hidden[h] = sigmoid(z)
			}
			for t := 0; t < yc; t++ {
				out := nm.B2[t]
				for h := 0; h < o.HiddenSize; h++ {
					out += hidden[h] * nm.W2[h*yc+t]
				}
				outErr[t] = out - y.At(i, t)
			}

			// Backward pass: linear output, MSE gradient.
			for h := 0; h < o.HiddenSize; h++ {
				var grad float64
				for t := 0; t < yc; t++ {
					grad += outErr[t] * nm.W2[h*yc+t]
					nm.W2[h*yc+t] -= o.LearningRate * outErr[t] * hidden[h]
				}
				delta := grad * hidden[h] * (1 - hidden[h])
				for j := 0; j < xc; j++ {
					nm.W1[j*o.HiddenSize+h] -= o.LearningRate * delta * input.At(i, j)
				}
				nm.B1[h] -= o.LearningRate * delta
			}
			for t := 0; t < yc; t++ {
				nm.B2[t] -= o.LearningRate * outErr[t]
			}
		}
	}

	nm.SetFitted()
	return nm, nil
}

// Predict implements FittedModel.
func (m *NNModel) Predict(x mat.Matrix) (*mat.Dense, error) {
	if !m.IsFitted() {
		return nil, errors.NewNotFittedError("NNModel", "Predict")
	}

	xr, xc := x.Dims()
	if xc != m.NIn {
		return nil, errors.NewDimensionError("NNModel.Predict", m.NIn, xc, 1)
	}

	input := denseCopy(x)
	if m.Scaler != nil {
		scaled, err := m.Scaler.Transform(input)
		if err != nil {
			return nil, err
		}
		input = scaled
	}

	out := mat.NewDense(xr, m.NOut, nil)
	hidden := make([]float64, m.NHidden)
	for i := 0; i < xr; i++ {
		for h := 0; h < m.NHidden; h++ {
			z := m.B1[h]
			for j := 0; j < xc; j++ {
				z += input.At(i, j) * m.W1[j*m.NHidden+h]
			}
			hidden[h] = sigmoid(z)
		}
		for t := 0; t < m.NOut; t++ {
			v := m.B2[t]
			for h := 0; h < m.NHidden; h++ {
				v += hidden[h] * m.W2[h*m.NOut+t]
			}
			out.Set(i, t, v)
		}
	}
	return out, nil
}

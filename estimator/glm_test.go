package estimator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/geoclimate/downscale/pkg/errors"
)

func TestGLM_GaussianRecoversLine(t *testing.T) {
	// y = 2x + 1
	x := mat.NewDense(4, 1, []float64{1, 2, 3, 4})
	y := mat.NewDense(4, 1, []float64{3, 5, 7, 9})

	m, err := Train(x, y, DefaultGLMOptions(), nil)
	require.NoError(t, err)

	gm, ok := m.(*GLMModel)
	require.True(t, ok)
	assert.InDelta(t, 1.0, gm.Coef[0], 1e-8, "intercept")
	assert.InDelta(t, 2.0, gm.Coef[1], 1e-8, "slope")

	xTest := mat.NewDense(2, 1, []float64{5, 6})
	pred, err := Predict(xTest, m)
	require.NoError(t, err)
	assert.InDelta(t, 11.0, pred.At(0, 0), 1e-8)
	assert.InDelta(t, 13.0, pred.At(1, 0), 1e-8)
}

func TestGLM_GaussianNoIntercept(t *testing.T) {
	x := mat.NewDense(4, 1, []float64{1, 2, 3, 4})
	y := mat.NewDense(4, 1, []float64{2, 4, 6, 8})

	opts := DefaultGLMOptions()
	opts.FitIntercept = false
	m, err := Train(x, y, opts, nil)
	require.NoError(t, err)

	gm := m.(*GLMModel)
	assert.InDelta(t, 2.0, gm.Coef[0], 1e-8)
}

func TestGLM_SingularDesign(t *testing.T) {
	// Two identical predictor columns make X^T X singular.
	x := mat.NewDense(4, 2, []float64{
		1, 1,
		2, 2,
		3, 3,
		4, 4,
	})
	y := mat.NewDense(4, 1, []float64{1, 2, 3, 4})

	_, err := Train(x, y, DefaultGLMOptions(), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrSingularMatrix))
}

func TestGLM_BinomialProbabilities(t *testing.T) {
	// Occurrence model: wet (1) above x=0, dry (0) below.
	x := mat.NewDense(8, 1, []float64{-4, -3, -2, -1, 1, 2, 3, 4})
	y := mat.NewDense(8, 1, []float64{0, 0, 0, 0, 1, 1, 1, 1})

	opts := DefaultGLMOptions()
	opts.Family = Binomial
	m, err := Train(x, y, opts, nil)
	require.NoError(t, err)

	pred, err := Predict(x, m)
	require.NoError(t, err)
	for i := 0; i < 8; i++ {
		p := pred.At(i, 0)
		assert.GreaterOrEqual(t, p, 0.0)
		assert.LessOrEqual(t, p, 1.0)
	}
	assert.Less(t, pred.At(0, 0), 0.5, "strongly dry day")
	assert.Greater(t, pred.At(7, 0), 0.5, "strongly wet day")
}

func TestGLM_PoissonPositive(t *testing.T) {
	x := mat.NewDense(6, 1, []float64{0, 0.2, 0.4, 0.6, 0.8, 1.0})
	y := mat.NewDense(6, 1, []float64{1, 1, 2, 3, 4, 6})

	opts := DefaultGLMOptions()
	opts.Family = Poisson
	m, err := Train(x, y, opts, nil)
	require.NoError(t, err)

	pred, err := Predict(x, m)
	require.NoError(t, err)
	for i := 0; i < 6; i++ {
		assert.Greater(t, pred.At(i, 0), 0.0, "poisson mean must be positive")
	}
}

func TestGLM_MultiTargetRequiresGrouped(t *testing.T) {
	x := mat.NewDense(4, 1, []float64{1, 2, 3, 4})
	y := mat.NewDense(4, 2, []float64{
		3, 1,
		5, 2,
		7, 3,
		9, 4,
	})

	_, err := Train(x, y, DefaultGLMOptions(), nil)
	require.Error(t, err)

	opts := DefaultGLMOptions()
	opts.Strategy = StrategyGrouped
	m, err := Train(x, y, opts, nil)
	require.NoError(t, err)

	pred, err := Predict(x, m)
	require.NoError(t, err)
	_, c := pred.Dims()
	assert.Equal(t, 2, c)
	assert.InDelta(t, 3.0, pred.At(0, 0), 1e-8)
	assert.InDelta(t, 1.0, pred.At(0, 1), 1e-8)
}

func TestGLM_ConvergenceWarning(t *testing.T) {
	var warned error
	errors.SetWarningHandler(func(w error) { warned = w })
	defer errors.SetWarningHandler(func(error) {})

	x := mat.NewDense(8, 1, []float64{-4, -3, -2, -1, 1, 2, 3, 4})
	y := mat.NewDense(8, 1, []float64{0, 0, 0, 0, 1, 1, 1, 1})

	opts := DefaultGLMOptions()
	opts.Family = Binomial
	opts.MaxIter = 1
	_, err := Train(x, y, opts, nil)
	require.NoError(t, err)

	var cw *errors.ConvergenceWarning
	assert.True(t, errors.As(warned, &cw), "expected a convergence warning at MaxIter=1")
}

func TestGLM_ValidateOptions(t *testing.T) {
	bad := &GLMOptions{Family: GLMFamily(42), MaxIter: 10, Tol: 1e-6}
	assert.Error(t, bad.Validate())

	bad = DefaultGLMOptions()
	bad.MaxIter = 0
	assert.Error(t, bad.Validate())

	bad = DefaultGLMOptions()
	bad.Tol = 0
	assert.Error(t, bad.Validate())
}

package estimator

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/geoclimate/downscale/core/model"
	"github.com/geoclimate/downscale/pkg/errors"
)

// GLMFamily selects the error distribution and canonical link of a GLM fit.
type GLMFamily int

const (
	// Gaussian uses the identity link (ordinary least squares).
	Gaussian GLMFamily = iota
	// Binomial uses the logit link, for occurrence (e.g. wet/dry day) targets.
	Binomial
	// Poisson uses the log link, for count-like targets.
	Poisson
)

// String returns the family name.
func (f GLMFamily) String() string {
	switch f {
	case Gaussian:
		return "gaussian"
	case Binomial:
		return "binomial"
	case Poisson:
		return "poisson"
	default:
		return fmt.Sprintf("GLMFamily(%d)", int(f))
	}
}

// GLMStrategy selects how multiple targets are handled by one train call.
type GLMStrategy int

const (
	// StrategyIndependent fits a single target; multi-column predictands are
	// rejected. This is the setting for the per-site training loop.
	StrategyIndependent GLMStrategy = iota
	// StrategyGrouped fits all target columns jointly over a shared design
	// matrix, the only GLM setting that supports multi-site joint training.
	StrategyGrouped
)

// GLMOptions configures the generalized linear model family.
type GLMOptions struct {
	Family       GLMFamily
	Strategy     GLMStrategy
	FitIntercept bool
	// MaxIter bounds the IRLS iterations for non-gaussian families.
	MaxIter int
	// Tol is the convergence threshold on the coefficient update norm.
	Tol float64
}

// DefaultGLMOptions returns a gaussian fit with an intercept.
func DefaultGLMOptions() *GLMOptions {
	return &GLMOptions{
		Family:       Gaussian,
		Strategy:     StrategyIndependent,
		FitIntercept: true,
		MaxIter:      25,
		Tol:          1e-8,
	}
}

// Method implements Options.
func (o *GLMOptions) Method() Method { return MethodGLM }

// Validate implements Options.
func (o *GLMOptions) Validate() error {
	switch o.Family {
	case Gaussian, Binomial, Poisson:
	default:
		return errors.NewValidationError("Family", "unknown GLM family", o.Family)
	}
	switch o.Strategy {
	case StrategyIndependent, StrategyGrouped:
	default:
		return errors.NewValidationError("Strategy", "unknown GLM strategy", o.Strategy)
	}
	if o.MaxIter < 1 {
		return errors.NewValidationError("MaxIter", "must be at least 1", o.MaxIter)
	}
	if o.Tol <= 0 {
		return errors.NewValidationError("Tol", "must be positive", o.Tol)
	}
	return nil
}

// GLMModel is the fitted state of the GLM family: one coefficient vector per
// target over a shared design matrix.
type GLMModel struct {
	model.BaseEstimator

	Family       GLMFamily
	FitIntercept bool
	NFeatures    int
	NTargets     int
	// Coef is row-major (NFeatures+intercept) × NTargets; the intercept,
	// when fitted, occupies the first row.
	Coef []float64
}

// Method implements FittedModel.
func (m *GLMModel) Method() Method { return MethodGLM }

func fitGLM(x, y mat.Matrix, o *GLMOptions) (*GLMModel, error) {
	xr, xc := x.Dims()
	_, yc := y.Dims()

	if yc > 1 && o.Strategy != StrategyGrouped {
		return nil, errors.NewValueError("glm.Train",
			"multi-site joint fitting requires StrategyGrouped")
	}

	design := designMatrix(x, o.FitIntercept)
	_, p := design.Dims()

	gm := &GLMModel{
		Family:       o.Family,
		FitIntercept: o.FitIntercept,
		NFeatures:    xc,
		NTargets:     yc,
		Coef:         make([]float64, p*yc),
	}

	switch o.Family {
	case Gaussian:
		// Normal equations: beta = (X^T X)^{-1} X^T Y, solved once for all
		// target columns.
		var xt, xtx, xtxInv mat.Dense
		xt.CloneFrom(design.T())
		xtx.Mul(&xt, design)
		if err := xtxInv.Inverse(&xtx); err != nil {
			return nil, errors.Wrap(errors.ErrSingularMatrix, "glm.Train (gaussian)")
		}
		var xty, beta mat.Dense
		xty.Mul(&xt, y)
		beta.Mul(&xtxInv, &xty)
		for i := 0; i < p; i++ {
			for t := 0; t < yc; t++ {
				gm.Coef[i*yc+t] = beta.At(i, t)
			}
		}

	case Binomial, Poisson:
		yCol := make([]float64, xr)
		for t := 0; t < yc; t++ {
			mat.Col(yCol, t, y)
			beta, err := irls(design, yCol, o)
			if err != nil {
				return nil, err
			}
			for i := 0; i < p; i++ {
				gm.Coef[i*yc+t] = beta[i]
			}
		}
	}

	gm.SetFitted()
	return gm, nil
}

// irls runs iteratively reweighted least squares for the canonical link of
// the configured family on a single target column.
func irls(design *mat.Dense, y []float64, o *GLMOptions) ([]float64, error) {
	n, p := design.Dims()
	beta := make([]float64, p)
	eta := make([]float64, n)
	w := make([]float64, n)
	z := make([]float64, n)

	converged := false
	for iter := 0; iter < o.MaxIter; iter++ {
		for i := 0; i < n; i++ {
			var e float64
			for j := 0; j < p; j++ {
				e += design.At(i, j) * beta[j]
			}
			eta[i] = e

			mu := invLink(o.Family, e)
			wi := irlsWeight(o.Family, mu)
			if wi < 1e-10 {
				wi = 1e-10
			}
			w[i] = wi
			// Working response for the canonical link: d(eta)/d(mu) = 1/w.
			z[i] = e + (y[i]-mu)/wi
		}

		next, err := solveWeightedLS(design, w, z)
		if err != nil {
			return nil, err
		}

		var maxDelta float64
		for j := 0; j < p; j++ {
			if d := math.Abs(next[j] - beta[j]); d > maxDelta {
				maxDelta = d
			}
		}
		copy(beta, next)
		if maxDelta < o.Tol {
			converged = true
			break
		}
	}

	if !converged {
		errors.Warn(errors.NewConvergenceWarning("GLM/IRLS", o.MaxIter, o.Family.String()))
	}
	return beta, nil
}

// solveWeightedLS solves (X^T W X) beta = X^T W z for one IRLS step.
func solveWeightedLS(design *mat.Dense, w, z []float64) ([]float64, error) {
	n, p := design.Dims()

	xtwx := mat.NewDense(p, p, nil)
	xtwz := make([]float64, p)
	for j := 0; j < p; j++ {
		for k := j; k < p; k++ {
			var s float64
			for i := 0; i < n; i++ {
				s += design.At(i, j) * w[i] * design.At(i, k)
			}
			xtwx.Set(j, k, s)
			xtwx.Set(k, j, s)
		}
		var s float64
		for i := 0; i < n; i++ {
			s += design.At(i, j) * w[i] * z[i]
		}
		xtwz[j] = s
	}

	var inv mat.Dense
	if err := inv.Inverse(xtwx); err != nil {
		return nil, errors.Wrap(errors.ErrSingularMatrix, "glm.Train (irls)")
	}

	beta := make([]float64, p)
	for j := 0; j < p; j++ {
		var s float64
		for k := 0; k < p; k++ {
			s += inv.At(j, k) * xtwz[k]
		}
		beta[j] = s
	}
	return beta, nil
}

func invLink(f GLMFamily, eta float64) float64 {
	switch f {
	case Binomial:
		mu := 1.0 / (1.0 + math.Exp(-eta))
		if mu < 1e-10 {
			mu = 1e-10
		}
		if mu > 1-1e-10 {
			mu = 1 - 1e-10
		}
		return mu
	case Poisson:
		return math.Exp(eta)
	default:
		return eta
	}
}

func irlsWeight(f GLMFamily, mu float64) float64 {
	switch f {
	case Binomial:
		return mu * (1 - mu)
	case Poisson:
		return mu
	default:
		return 1
	}
}

// Predict implements FittedModel: the linear predictor per target, passed
// through the inverse link of the fitted family.
func (m *GLMModel) Predict(x mat.Matrix) (*mat.Dense, error) {
	if !m.IsFitted() {
		return nil, errors.NewNotFittedError("GLMModel", "Predict")
	}

	xr, xc := x.Dims()
	if xc != m.NFeatures {
		return nil, errors.NewDimensionError("GLMModel.Predict", m.NFeatures, xc, 1)
	}

	offset := 0
	if m.FitIntercept {
		offset = 1
	}

	out := mat.NewDense(xr, m.NTargets, nil)
	for i := 0; i < xr; i++ {
		for t := 0; t < m.NTargets; t++ {
			var eta float64
			if m.FitIntercept {
				eta = m.Coef[t]
			}
			for j := 0; j < xc; j++ {
				eta += x.At(i, j) * m.Coef[(j+offset)*m.NTargets+t]
			}
			out.Set(i, t, invLink(m.Family, eta))
		}
	}
	return out, nil
}

// designMatrix prepends an all-ones intercept column when requested.
func designMatrix(x mat.Matrix, intercept bool) *mat.Dense {
	r, c := x.Dims()
	if !intercept {
		return denseCopy(x)
	}
	d := mat.NewDense(r, c+1, nil)
	for i := 0; i < r; i++ {
		d.Set(i, 0, 1.0)
		for j := 0; j < c; j++ {
			d.Set(i, j+1, x.At(i, j))
		}
	}
	return d
}

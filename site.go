package downscale

import (
	"log/slog"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/geoclimate/downscale/estimator"
	"github.com/geoclimate/downscale/grid"
	"github.com/geoclimate/downscale/pkg/errors"
	"github.com/geoclimate/downscale/pkg/log"
)

// fitSite trains one site: it selects the site's predictor matrix (local
// neighborhood when present, global grid otherwise), filters the observation
// rows, fits the estimator on the filtered subset, and predicts over the
// full unfiltered rows so that every original observation gets a modeled
// value.
//
// For the analog family the training dates are the filtered subset of the
// reference dates, but the dates recorded on the model for later retrieval
// are the complete unfiltered series. The asymmetry is intentional: the
// filter narrows the training window, not the provenance of predictions.
func fitSite(site int, p *grid.Predictors, y []float64, opts estimator.Options,
	filt *Filter, dates []time.Time, logger *slog.Logger) (estimator.FittedModel, []float64, error) {

	x, local, err := p.ForSite(site)
	if err != nil {
		return nil, nil, err
	}

	xr, xc := x.Dims()
	if xr != len(y) {
		return nil, nil, errors.NewDimensionError("fitSite", len(y), xr, 0)
	}

	idx := ValidIndices(y, filt)
	if len(idx) == 0 {
		return nil, nil, errors.NewAllMissingError(site, len(y))
	}

	logger.Debug("fitting site",
		log.OperationKey, "fit_site",
		log.SiteIndexKey, site,
		log.LocalPredictorsKey, local,
		log.SamplesKey, len(y),
		log.ValidSamplesKey, len(idx),
		log.FeaturesKey, xc,
	)

	xFit := selectRows(x, idx)
	yFit := mat.NewDense(len(idx), 1, nil)
	for k, i := range idx {
		yFit.Set(k, 0, y[i])
	}

	var trainDates []time.Time
	if opts.Method() == estimator.MethodAnalogs && dates != nil {
		trainDates = make([]time.Time, len(idx))
		for k, i := range idx {
			trainDates[k] = dates[i]
		}
	}

	m, err := estimator.Train(xFit, yFit, opts, trainDates)
	if err != nil {
		return nil, nil, err
	}
	if dc, ok := m.(estimator.DateCarrier); ok {
		dc.SetTestDates(append([]time.Time(nil), dates...))
	}

	pred, err := estimator.Predict(x, m)
	if err != nil {
		return nil, nil, err
	}

	col := make([]float64, xr)
	mat.Col(col, 0, pred)
	return m, col, nil
}

// selectRows copies the given rows of x into a new matrix, in order.
func selectRows(x mat.Matrix, idx []int) *mat.Dense {
	_, c := x.Dims()
	out := mat.NewDense(len(idx), c, nil)
	for k, i := range idx {
		for j := 0; j < c; j++ {
			out.Set(k, j, x.At(i, j))
		}
	}
	return out
}

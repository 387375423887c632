package downscale

import (
	"time"

	"github.com/geoclimate/downscale/core/parallel"
	"github.com/geoclimate/downscale/estimator"
	"github.com/geoclimate/downscale/grid"
	"github.com/geoclimate/downscale/pkg/errors"
	"github.com/geoclimate/downscale/pkg/log"
)

// Train fits a statistical downscaling model mapping the large-scale
// predictors p onto the local observations y, using the transfer-function
// family selected by opts.
//
// By default one independent model is fitted per predictand site
// (single-site mode); WithMultiSite switches to one joint model over all
// sites. The returned predictions cover every original observation of y,
// including rows excluded from fitting by a WithFilter predicate, and carry
// y's dimension names and dates unchanged.
//
// A failure on any single site aborts the whole call; there is no
// partial-result contract.
func Train(p *grid.Predictors, y *grid.Predictand, opts estimator.Options, setting ...Option) (*Result, error) {
	cfg := defaultConfig()
	for _, opt := range setting {
		opt(cfg)
	}

	if p == nil {
		return nil, errors.NewValueError("Train", "predictors must not be nil")
	}
	if y == nil || y.Values == nil {
		return nil, errors.NewValueError("Train", "predictand must not be nil")
	}
	if opts == nil {
		return nil, errors.NewUnsupportedMethodError("<nil>")
	}

	n := y.Observations()
	s := y.Sites()
	mode := "singlesite"
	if !cfg.singleSite {
		mode = "multisite"
	}

	start := time.Now()
	cfg.logger.Info("downscaling training started",
		log.OperationKey, "train",
		log.MethodKey, opts.Method().String(),
		log.ModeKey, mode,
		log.SitesKey, s,
		log.SamplesKey, n,
	)

	var (
		values *grid.Predictand
		models []estimator.FittedModel
		err    error
	)
	if cfg.singleSite {
		values, models, err = trainSingleSite(cfg, p, y, opts)
	} else {
		values, models, err = trainMultiSite(cfg, p, y, opts)
	}
	if err != nil {
		cfg.logger.Error("downscaling training failed",
			log.OperationKey, "train",
			log.MethodKey, opts.Method().String(),
			log.ErrAttr(err),
		)
		return nil, err
	}

	cfg.logger.Info("downscaling training finished",
		log.OperationKey, "train",
		log.MethodKey, opts.Method().String(),
		log.ModeKey, mode,
		log.SitesKey, s,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)

	return &Result{
		Predictions: values,
		Config: ModelConfig{
			Method:     opts.Method(),
			SingleSite: cfg.singleSite,
			Models:     models,
		},
	}, nil
}

// trainMultiSite fits one joint model for all sites on the global predictor
// grid. No observation filter applies in this mode: the joint call sees the
// predictand exactly as prepared.
func trainMultiSite(cfg *config, p *grid.Predictors, y *grid.Predictand,
	opts estimator.Options) (*grid.Predictand, []estimator.FittedModel, error) {

	if cfg.filter != nil {
		errors.Warn(errors.NewIgnoredSettingWarning("filter", "multisite",
			"the joint fit applies no per-site observation filter"))
	}
	if p.Global == nil {
		return nil, nil, errors.NewValueError("Train", "multi-site mode requires global predictors")
	}
	if xr, _ := p.Global.Dims(); xr != y.Observations() {
		return nil, nil, errors.NewDimensionError("Train", y.Observations(), xr, 0)
	}

	m, err := estimator.Train(p.Global, y.Values, opts, y.Dates)
	if err != nil {
		return nil, nil, err
	}
	if dc, ok := m.(estimator.DateCarrier); ok {
		dc.SetTestDates(append([]time.Time(nil), y.Dates...))
	}

	pred, err := estimator.Predict(p.Global, m)
	if err != nil {
		return nil, nil, err
	}

	out := &grid.Predictand{
		Values:   pred,
		DimNames: append([]string(nil), y.DimNames...),
		Dates:    y.Dates,
	}
	return out, []estimator.FittedModel{m}, nil
}

// trainSingleSite fits one model per site. Sites are independent, so the
// loop fans out over a worker per index; every worker writes only its own
// column of the prediction matrix and its own slot of the model slice, and
// the first error in site order aborts the call.
func trainSingleSite(cfg *config, p *grid.Predictors, y *grid.Predictand,
	opts estimator.Options) (*grid.Predictand, []estimator.FittedModel, error) {

	n := y.Observations()
	s := y.Sites()

	predictions := grid.NewMissingDense(n, s)
	models := make([]estimator.FittedModel, s)

	worker := func(i int) error {
		m, col, err := fitSite(i, p, y.Column(i), opts, cfg.filter, y.Dates, cfg.logger)
		if err != nil {
			return errors.Wrapf(err, "site %d", i)
		}
		models[i] = m
		for t := 0; t < n; t++ {
			predictions.Set(t, i, col[t])
		}
		return nil
	}

	var err error
	if cfg.sequential {
		for i := 0; i < s; i++ {
			if err = worker(i); err != nil {
				break
			}
		}
	} else {
		err = parallel.ParallelizeIndexed(s, worker)
	}
	if err != nil {
		return nil, nil, err
	}

	out := &grid.Predictand{
		Values:   predictions,
		DimNames: append([]string(nil), y.DimNames...),
		Dates:    y.Dates,
	}
	return out, models, nil
}

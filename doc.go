// Package downscale trains statistical downscaling models that map
// large-scale climate-model grid data (predictors) onto local or
// station-level observations (predictands), using one of three
// interchangeable transfer-function families: analog matching, generalized
// linear models, or feed-forward neural networks.
//
// # Quick start
//
//	package main
//
//	import (
//	    "log"
//	    "time"
//
//	    "gonum.org/v1/gonum/mat"
//
//	    "github.com/geoclimate/downscale"
//	    "github.com/geoclimate/downscale/estimator"
//	    "github.com/geoclimate/downscale/grid"
//	)
//
//	func main() {
//	    p := &grid.Predictors{Global: mat.NewDense(4, 1, []float64{0.1, 0.2, 0.3, 0.4})}
//	    y := grid.NewPredictandVector([]float64{1.1, 2.2, 2.9, 4.1}, dates(4))
//
//	    res, err := downscale.Train(p, y, estimator.DefaultGLMOptions(),
//	        downscale.WithFilter(downscale.GreaterThan(0)))
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    _ = res.Predictions // same shape and dates as y, modeled values
//	}
//
//	func dates(n int) []time.Time {
//	    d := make([]time.Time, n)
//	    t := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
//	    for i := range d {
//	        d[i] = t.AddDate(0, 0, i)
//	    }
//	    return d
//	}
//
// # Modes
//
// Single-site mode (the default) fits one independent model per predictand
// site, selecting that site's local neighborhood predictors when the
// preparation step provided them. Multi-site mode (WithMultiSite) fits one
// joint model for all sites on the global predictor grid; analog and
// neural-network estimators support it directly, GLM only under
// estimator.StrategyGrouped.
//
// Missing observations are NaN. Rows excluded from a fit by missingness or by
// a WithFilter predicate still receive predictions: models are always applied
// to the full predictor series.
package downscale

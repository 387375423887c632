package downscale

import (
	"github.com/geoclimate/downscale/estimator"
	"github.com/geoclimate/downscale/grid"
)

// ModelConfig records how a training result was produced: the method, the
// mode, and the fitted models in site order (a single entry in multi-site
// mode).
type ModelConfig struct {
	Method     estimator.Method
	SingleSite bool
	Models     []estimator.FittedModel
}

// Result is the output of Train. Predictions has the same dimension names,
// dates and time/site cardinality as the input predictand but holds modeled
// values. Results are gob-encodable and can be persisted through
// core/model.SaveModel or the compressed container variants.
type Result struct {
	Predictions *grid.Predictand
	Config      ModelConfig
}

// Standard attribute keys for downscaling operations. Using these keys keeps
// training logs filterable across packages (e.g. every per-site record carries
// site.index, every fit carries data.samples/data.features).

package log

// Model and operation context.
const (
	// MethodKey identifies the transfer-function family being trained.
	// Values: "analogs", "glm", "nn"
	MethodKey = "downscale.method"

	// OperationKey specifies the operation being performed.
	// Standard values: "train", "fit_site", "predict"
	OperationKey = "downscale.operation"

	// ModeKey indicates single-site or multi-site joint training.
	// Values: "singlesite", "multisite"
	ModeKey = "downscale.mode"
)

// Data shape and site context.
const (
	// SitesKey is the number of predictand sites in the call.
	SitesKey = "data.sites"

	// SiteIndexKey is the zero-based index of the site being fitted.
	SiteIndexKey = "site.index"

	// SamplesKey is the number of observations (time steps) in the dataset.
	SamplesKey = "data.samples"

	// FeaturesKey is the number of predictor features (columns).
	FeaturesKey = "data.features"

	// ValidSamplesKey is the number of observations that survived the
	// missing-value and filter screening for a site.
	ValidSamplesKey = "data.valid_samples"

	// LocalPredictorsKey reports whether a site used its local neighborhood
	// predictors instead of the global grid.
	LocalPredictorsKey = "site.local_predictors"
)

// Performance.
const (
	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"
)

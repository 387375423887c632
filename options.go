package downscale

import "log/slog"

// config collects the orchestration settings; estimator-specific settings
// live in the per-method option structs of package estimator.
type config struct {
	singleSite bool
	filter     *Filter
	logger     *slog.Logger
	sequential bool
}

func defaultConfig() *config {
	return &config{
		singleSite: true,
		logger:     slog.Default(),
	}
}

// Option is a function that configures a training call.
type Option func(*config)

// WithMultiSite fits one joint model across all sites on the global predictor
// grid instead of one independent model per site. Analog and neural-network
// estimators support joint fitting; GLM requires StrategyGrouped.
func WithMultiSite() Option {
	return func(c *config) {
		c.singleSite = false
	}
}

// WithFilter excludes observations failing the predicate from each site's
// fit. Predictions are still produced for every original observation. The
// joint multi-site fit applies no filter; configuring one there raises a
// warning.
func WithFilter(f *Filter) Option {
	return func(c *config) {
		c.filter = f
	}
}

// WithLogger routes training logs to the given logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// WithSequential disables the parallel fan-out over sites. Results are
// identical either way; this exists for debugging and for callers that
// already saturate their cores.
func WithSequential() Option {
	return func(c *config) {
		c.sequential = true
	}
}

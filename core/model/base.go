// Package model holds the shared estimator state machinery and persistence
// for fitted downscaling models.
package model

// EstimatorState represents the training state of an estimator.
type EstimatorState int

const (
	// NotFitted means the estimator has not been trained.
	NotFitted EstimatorState = iota
	// Fitted means the estimator has been trained.
	Fitted
)

// BaseEstimator is embedded by every estimator implementation to track
// whether Fit has completed.
type BaseEstimator struct {
	State EstimatorState
}

// IsFitted reports whether the estimator has been trained.
func (e *BaseEstimator) IsFitted() bool {
	return e.State == Fitted
}

// SetFitted marks the estimator as trained.
func (e *BaseEstimator) SetFitted() {
	e.State = Fitted
}

// Reset returns the estimator to the untrained state.
func (e *BaseEstimator) Reset() {
	e.State = NotFitted
}

// Package errors provides the error and warning types used across the
// downscaling library. Errors carry stack traces via cockroachdb/errors and
// implement zerolog object marshalling for structured logging.
package errors

import (
	"fmt"
	"log"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// ===========================================================================
//
//	Global warning handling
//
// ===========================================================================

var (
	warningMutex   sync.Mutex
	warningHandler = func(w error) {
		log.Printf("downscale-warning: %v\n", w)
	}
)

// SetWarningHandler replaces the library-wide warning handler. Warnings are
// non-fatal conditions (non-convergence, ignored settings) that callers may
// want to route into their own logging.
//
// Example:
//
//	errors.SetWarningHandler(func(w error) {
//	    // drop warnings
//	})
func SetWarningHandler(handler func(w error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	warningHandler = handler
}

// Warn emits a warning through the configured handler.
func Warn(w error) {
	warningMutex.Lock()
	defer warningMutex.Unlock()

	if warningHandler != nil {
		warningHandler(w)
	}
}

// ===========================================================================
//
//	Warning types
//
// ===========================================================================

// ConvergenceWarning is emitted when an iterative fit stops at its iteration
// limit without meeting the tolerance.
type ConvergenceWarning struct {
	Algorithm  string
	Iterations int
	Message    string
}

func (w *ConvergenceWarning) Error() string {
	if w.Message != "" {
		return fmt.Sprintf("%s failed to converge after %d iterations: %s", w.Algorithm, w.Iterations, w.Message)
	}
	return fmt.Sprintf("%s failed to converge after %d iterations. Consider increasing MaxIter or loosening Tol.", w.Algorithm, w.Iterations)
}

// MarshalZerologObject adds the structured warning fields to a zerolog event.
func (w *ConvergenceWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("algorithm", w.Algorithm).
		Int("iterations", w.Iterations).
		Str("message", w.Message).
		Str("type", "ConvergenceWarning")
}

// NewConvergenceWarning creates a new ConvergenceWarning.
func NewConvergenceWarning(algorithm string, iterations int, message string) *ConvergenceWarning {
	return &ConvergenceWarning{Algorithm: algorithm, Iterations: iterations, Message: message}
}

// IgnoredSettingWarning is emitted when a configured setting has no effect in
// the selected mode, e.g. an observation filter under a joint multi-site fit.
type IgnoredSettingWarning struct {
	Setting string
	Mode    string
	Reason  string
}

func (w *IgnoredSettingWarning) Error() string {
	return fmt.Sprintf("setting '%s' has no effect in %s mode: %s", w.Setting, w.Mode, w.Reason)
}

// MarshalZerologObject adds the structured warning fields to a zerolog event.
func (w *IgnoredSettingWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("setting", w.Setting).
		Str("mode", w.Mode).
		Str("reason", w.Reason).
		Str("type", "IgnoredSettingWarning")
}

// NewIgnoredSettingWarning creates a new IgnoredSettingWarning.
func NewIgnoredSettingWarning(setting, mode, reason string) *IgnoredSettingWarning {
	return &IgnoredSettingWarning{Setting: setting, Mode: mode, Reason: reason}
}

// ===========================================================================
//
//	Structured error types
//
// ===========================================================================

// UnsupportedMethodError reports a transfer-function method the estimator
// dispatch does not recognize.
type UnsupportedMethodError struct {
	Method string
}

func (e *UnsupportedMethodError) Error() string {
	return fmt.Sprintf("downscale: unsupported method %q: must be one of analogs, glm, nn", e.Method)
}

// MarshalZerologObject adds the structured error fields to a zerolog event.
func (e *UnsupportedMethodError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("method", e.Method).
		Str("type", "UnsupportedMethodError")
}

// NewUnsupportedMethodError creates an UnsupportedMethodError with a stack trace.
func NewUnsupportedMethodError(method string) error {
	err := &UnsupportedMethodError{Method: method}
	return errors.WithStack(err)
}

// DimensionError reports a shape mismatch between predictors and predictands,
// or a local predictor entry missing for a site that requires one.
type DimensionError struct {
	Op       string
	Expected int
	Got      int
	Axis     int // 0 for rows/observations, 1 for columns/features
}

func (e *DimensionError) Error() string {
	axisName := "features"
	if e.Axis == 0 {
		axisName = "rows"
	}
	return fmt.Sprintf("downscale: %s: dimension mismatch on axis %d (%s). Expected %d, got %d", e.Op, e.Axis, axisName, e.Expected, e.Got)
}

// MarshalZerologObject adds the structured error fields to a zerolog event.
func (e *DimensionError) MarshalZerologObject(event *zerolog.Event) {
	axisName := "features"
	if e.Axis == 0 {
		axisName = "rows"
	}
	event.Str("operation", e.Op).
		Int("expected", e.Expected).
		Int("got", e.Got).
		Int("axis", e.Axis).
		Str("axis_name", axisName).
		Str("type", "DimensionError")
}

// NewDimensionError creates a DimensionError with a stack trace.
func NewDimensionError(op string, expected, got, axis int) error {
	err := &DimensionError{Op: op, Expected: expected, Got: got, Axis: axis}
	return errors.WithStack(err)
}

// AllMissingError reports a site whose filtered observation set is empty:
// every value was missing or excluded by the filter, leaving nothing to fit.
type AllMissingError struct {
	Site         int
	Observations int
}

func (e *AllMissingError) Error() string {
	return fmt.Sprintf("downscale: site %d: no valid observations to fit (all %d values missing or filtered out)", e.Site, e.Observations)
}

// MarshalZerologObject adds the structured error fields to a zerolog event.
func (e *AllMissingError) MarshalZerologObject(event *zerolog.Event) {
	event.Int("site", e.Site).
		Int("observations", e.Observations).
		Str("type", "AllMissingError")
}

// NewAllMissingError creates an AllMissingError with a stack trace.
func NewAllMissingError(site, observations int) error {
	err := &AllMissingError{Site: site, Observations: observations}
	return errors.WithStack(err)
}

// NotFittedError is returned when Predict is called on an estimator whose Fit
// has not completed.
type NotFittedError struct {
	ModelName string
	Method    string
}

func (e *NotFittedError) Error() string {
	return fmt.Sprintf("downscale: %s: this model is not fitted yet. Call Fit() before using %s()", e.ModelName, e.Method)
}

// MarshalZerologObject adds the structured error fields to a zerolog event.
func (e *NotFittedError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("model_name", e.ModelName).
		Str("method", e.Method).
		Str("type", "NotFittedError")
}

// NewNotFittedError creates a NotFittedError with a stack trace.
func NewNotFittedError(modelName, method string) error {
	err := &NotFittedError{ModelName: modelName, Method: method}
	return errors.WithStack(err)
}

// ValidationError reports an option or parameter that failed validation at
// construction time.
type ValidationError struct {
	ParamName string
	Reason    string
	Value     interface{}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("downscale: validation failed for parameter '%s': %s (got: %v)", e.ParamName, e.Reason, e.Value)
}

// MarshalZerologObject adds the structured error fields to a zerolog event.
func (e *ValidationError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("param_name", e.ParamName).
		Str("reason", e.Reason).
		Interface("value", e.Value).
		Str("type", "ValidationError")
}

// NewValidationError creates a ValidationError with a stack trace.
func NewValidationError(param, reason string, value interface{}) error {
	err := &ValidationError{ParamName: param, Reason: reason, Value: value}
	return errors.WithStack(err)
}

// ValueError reports an argument whose value is out of range or otherwise
// unusable for the operation.
type ValueError struct {
	Op      string
	Message string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("downscale: %s: %s", e.Op, e.Message)
}

// NewValueError creates a ValueError with a stack trace.
func NewValueError(op, message string) error {
	err := &ValueError{Op: op, Message: message}
	return errors.WithStack(err)
}

// ===========================================================================
//
//	cockroachdb/errors wrappers
//
// ===========================================================================

// Is reports whether err matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain matching target's type.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap wraps an existing error with a message.
func Wrap(err error, message string) error {
	return errors.Wrap(err, message)
}

// Wrapf wraps an existing error with a formatted message.
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// New creates a new error with a stack trace.
func New(message string) error {
	return errors.New(message)
}

// Newf creates a new formatted error with a stack trace.
func Newf(format string, args ...interface{}) error {
	return errors.Newf(format, args...)
}

// WithStack annotates err with a stack trace.
func WithStack(err error) error {
	return errors.WithStack(err)
}

// ===========================================================================
//
//	Common sentinel errors
//
// ===========================================================================

var (
	// ErrEmptyData is returned when a fit receives no rows or no columns.
	ErrEmptyData = New("empty data")

	// ErrSingularMatrix is returned when a design matrix cannot be inverted,
	// typically under predictor collinearity.
	ErrSingularMatrix = New("singular matrix")
)

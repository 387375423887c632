package downscale

import (
	"fmt"

	"github.com/geoclimate/downscale/grid"
)

type filterOp int

const (
	opGreaterThan filterOp = iota
	opGreaterOrEqual
	opLessThan
	opLessOrEqual
	opNotEqual
)

// Filter is a typed observation predicate compared against predictand values,
// e.g. GreaterThan(0) to restrict a precipitation fit to wet days. The zero
// value is not usable; construct filters with the provided functions. A nil
// *Filter means no filtering beyond the missing-value screen.
type Filter struct {
	op        filterOp
	threshold float64
}

// GreaterThan keeps observations strictly above t.
func GreaterThan(t float64) *Filter { return &Filter{op: opGreaterThan, threshold: t} }

// GreaterOrEqual keeps observations at or above t.
func GreaterOrEqual(t float64) *Filter { return &Filter{op: opGreaterOrEqual, threshold: t} }

// LessThan keeps observations strictly below t.
func LessThan(t float64) *Filter { return &Filter{op: opLessThan, threshold: t} }

// LessOrEqual keeps observations at or below t.
func LessOrEqual(t float64) *Filter { return &Filter{op: opLessOrEqual, threshold: t} }

// NotEqual keeps observations different from t.
func NotEqual(t float64) *Filter { return &Filter{op: opNotEqual, threshold: t} }

// Keep reports whether a non-missing value satisfies the predicate.
func (f *Filter) Keep(v float64) bool {
	switch f.op {
	case opGreaterThan:
		return v > f.threshold
	case opGreaterOrEqual:
		return v >= f.threshold
	case opLessThan:
		return v < f.threshold
	case opLessOrEqual:
		return v <= f.threshold
	case opNotEqual:
		return v != f.threshold
	default:
		return false
	}
}

// String renders the predicate for logs and warnings.
func (f *Filter) String() string {
	ops := map[filterOp]string{
		opGreaterThan:    ">",
		opGreaterOrEqual: ">=",
		opLessThan:       "<",
		opLessOrEqual:    "<=",
		opNotEqual:       "!=",
	}
	return fmt.Sprintf("y %s %v", ops[f.op], f.threshold)
}

// ValidIndices returns the ascending row indices of y that are non-missing
// and, when f is not nil, satisfy the predicate. The missing-value check runs
// before the predicate, so a NaN never reaches the comparison. Ascending
// order is load-bearing: the analog family depends on the temporal ordering
// of its training rows.
func ValidIndices(y []float64, f *Filter) []int {
	idx := make([]int, 0, len(y))
	for i, v := range y {
		if grid.IsMissing(v) {
			continue
		}
		if f != nil && !f.Keep(v) {
			continue
		}
		idx = append(idx, i)
	}
	return idx
}

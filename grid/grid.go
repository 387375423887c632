// Package grid defines the predictor and predictand containers produced by
// the data-preparation step and consumed by training. Both are treated as
// read-only inputs: training never mutates them.
//
// Missing observations are encoded as NaN, following the gonum convention.
package grid

import (
	"bytes"
	"encoding/gob"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/geoclimate/downscale/pkg/errors"
)

// Predictors holds the large-scale predictor values across time.
//
// Global is the time × feature matrix usable by every site. Local, when not
// nil, holds one neighborhood-derived matrix per site; a site with a local
// entry is always fitted on it instead of the global grid, never on a mix.
type Predictors struct {
	Global *mat.Dense
	Local  []*mat.Dense
}

// ForSite returns the predictor matrix to use for the given site: the site's
// local neighborhood matrix when one exists, otherwise the global grid. The
// second return reports whether a local matrix was selected.
func (p *Predictors) ForSite(site int) (*mat.Dense, bool, error) {
	if p.Local == nil {
		if p.Global == nil {
			return nil, false, errors.NewValueError("Predictors.ForSite", "no predictor data")
		}
		return p.Global, false, nil
	}
	if site < 0 || site >= len(p.Local) {
		return nil, false, errors.NewDimensionError("Predictors.ForSite", len(p.Local), site, 1)
	}
	x := p.Local[site]
	if x == nil {
		return nil, false, errors.NewValidationError("Predictors.Local",
			"local predictors are present but the entry for this site is nil", site)
	}
	return x, true, nil
}

// Rows returns the number of time steps in the predictor set.
func (p *Predictors) Rows() int {
	if p.Global != nil {
		r, _ := p.Global.Dims()
		return r
	}
	for _, l := range p.Local {
		if l != nil {
			r, _ := l.Dims()
			return r
		}
	}
	return 0
}

// Predictand holds the observed target values for one or more sites.
//
// Values is always stored as a time × site matrix; a one-dimensional record
// is a single-column matrix whose original rank is recoverable from DimNames.
// DimNames are the ordered semantic axis labels of the source data and are
// carried verbatim into the training output. Dates are the reference dates of
// the time axis; they are only required for the analog method, which records
// them as provenance for analog lookups.
type Predictand struct {
	Values   *mat.Dense
	DimNames []string
	Dates    []time.Time
}

// NewPredictand builds a multi-site predictand from a time × site matrix.
func NewPredictand(values *mat.Dense, dimNames []string, dates []time.Time) *Predictand {
	return &Predictand{Values: values, DimNames: dimNames, Dates: dates}
}

// NewPredictandVector builds a single-site predictand from a plain series.
func NewPredictandVector(values []float64, dates []time.Time) *Predictand {
	return &Predictand{
		Values:   mat.NewDense(len(values), 1, append([]float64(nil), values...)),
		DimNames: []string{"time"},
		Dates:    dates,
	}
}

// Sites returns the number of predictand sites (columns).
func (y *Predictand) Sites() int {
	if y.Values == nil {
		return 0
	}
	_, c := y.Values.Dims()
	return c
}

// Observations returns the number of time steps (rows).
func (y *Predictand) Observations() int {
	if y.Values == nil {
		return 0
	}
	r, _ := y.Values.Dims()
	return r
}

// Column returns a copy of the observation series for one site.
func (y *Predictand) Column(site int) []float64 {
	r, _ := y.Values.Dims()
	col := make([]float64, r)
	mat.Col(col, site, y.Values)
	return col
}

// predictandWire mirrors Predictand for gob encoding; mat.Dense itself has
// no exported fields and travels as its binary marshalling.
type predictandWire struct {
	Values   []byte
	DimNames []string
	Dates    []time.Time
}

// GobEncode implements gob.GobEncoder so predictands survive result
// persistence.
func (y *Predictand) GobEncode() ([]byte, error) {
	var w predictandWire
	if y.Values != nil {
		b, err := y.Values.MarshalBinary()
		if err != nil {
			return nil, err
		}
		w.Values = b
	}
	w.DimNames = y.DimNames
	w.Dates = y.Dates

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&w); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// GobDecode implements gob.GobDecoder.
func (y *Predictand) GobDecode(b []byte) error {
	var w predictandWire
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&w); err != nil {
		return err
	}
	if len(w.Values) > 0 {
		y.Values = &mat.Dense{}
		if err := y.Values.UnmarshalBinary(w.Values); err != nil {
			return err
		}
	}
	y.DimNames = w.DimNames
	y.Dates = w.Dates
	return nil
}

// NewMissingDense returns an r × c matrix pre-filled with the missing marker.
func NewMissingDense(r, c int) *mat.Dense {
	data := make([]float64, r*c)
	for i := range data {
		data[i] = math.NaN()
	}
	return mat.NewDense(r, c, data)
}

// IsMissing reports whether v encodes a missing observation.
func IsMissing(v float64) bool {
	return math.IsNaN(v)
}

// Missing returns the missing-value marker.
func Missing() float64 {
	return math.NaN()
}

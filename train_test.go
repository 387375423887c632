package downscale

import (
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/geoclimate/downscale/estimator"
	"github.com/geoclimate/downscale/grid"
	"github.com/geoclimate/downscale/pkg/errors"
)

func testDates(n int) []time.Time {
	d := make([]time.Time, n)
	t0 := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range d {
		d[i] = t0.AddDate(0, 0, i)
	}
	return d
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// linearPredictand builds S sites where site s observes 2*x + s.
func linearPredictand(x *mat.Dense, sites int) *grid.Predictand {
	r, _ := x.Dims()
	vals := mat.NewDense(r, sites, nil)
	for i := 0; i < r; i++ {
		for s := 0; s < sites; s++ {
			vals.Set(i, s, 2*x.At(i, 0)+float64(s))
		}
	}
	return grid.NewPredictand(vals, []string{"time", "station"}, testDates(r))
}

func TestTrain_ShapeInvariance(t *testing.T) {
	x := mat.NewDense(10, 2, nil)
	for i := 0; i < 10; i++ {
		x.Set(i, 0, float64(i))
		x.Set(i, 1, math.Sqrt(float64(i)))
	}
	p := &grid.Predictors{Global: x}
	y := linearPredictand(x, 3)

	res, err := Train(p, y, estimator.DefaultGLMOptions(), WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("Failed to train: %v", err)
	}

	if res.Predictions.Observations() != y.Observations() {
		t.Errorf("Expected %d observations, got %d", y.Observations(), res.Predictions.Observations())
	}
	if res.Predictions.Sites() != y.Sites() {
		t.Errorf("Expected %d sites, got %d", y.Sites(), res.Predictions.Sites())
	}
	if len(res.Predictions.DimNames) != 2 || res.Predictions.DimNames[0] != "time" || res.Predictions.DimNames[1] != "station" {
		t.Errorf("Dimension names not preserved: %v", res.Predictions.DimNames)
	}
	if len(res.Config.Models) != 3 {
		t.Errorf("Expected one model per site, got %d", len(res.Config.Models))
	}
	if !res.Config.SingleSite {
		t.Error("Expected the single-site flag to be recorded")
	}
}

func TestTrain_FilteredFitFullPrediction(t *testing.T) {
	// y = [1, NaN, 3, 4] with filter y > 2: the fit must use rows {2, 3}
	// only, yet the prediction covers all 4 rows. With closest-analog
	// selection every predicted value is a training value, so the output
	// proves which rows were fitted.
	x := mat.NewDense(4, 1, []float64{0.1, 0.2, 0.3, 0.4})
	p := &grid.Predictors{Global: x}
	y := grid.NewPredictandVector([]float64{1, math.NaN(), 3, 4}, testDates(4))

	opts := &estimator.AnalogOptions{NAnalogs: 1, Selection: estimator.SelectClosest}
	res, err := Train(p, y, opts, WithFilter(GreaterThan(2)), WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("Failed to train: %v", err)
	}

	if res.Predictions.Observations() != 4 {
		t.Fatalf("Expected predictions for all 4 rows, got %d", res.Predictions.Observations())
	}
	for i := 0; i < 4; i++ {
		v := res.Predictions.Values.At(i, 0)
		if v != 3 && v != 4 {
			t.Errorf("Row %d predicted %v; expected a value from the filtered training rows {3, 4}", i, v)
		}
	}
}

func TestTrain_AnalogDateAttachment(t *testing.T) {
	// Training dates are the filtered subset; the recorded test dates are
	// the full unfiltered series.
	x := mat.NewDense(4, 1, []float64{0.1, 0.2, 0.3, 0.4})
	p := &grid.Predictors{Global: x}
	dates := testDates(4)
	y := grid.NewPredictandVector([]float64{1, math.NaN(), 3, 4}, dates)

	res, err := Train(p, y, estimator.DefaultAnalogOptions(),
		WithFilter(GreaterThan(2)), WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("Failed to train: %v", err)
	}

	am, ok := res.Config.Models[0].(*estimator.AnalogModel)
	if !ok {
		t.Fatalf("Expected *estimator.AnalogModel, got %T", res.Config.Models[0])
	}

	if len(am.TrainDates) != 2 || !am.TrainDates[0].Equal(dates[2]) || !am.TrainDates[1].Equal(dates[3]) {
		t.Errorf("Expected train dates {d2, d3}, got %v", am.TrainDates)
	}
	if len(am.TestDates) != 4 {
		t.Fatalf("Expected the full date series as test dates, got %d entries", len(am.TestDates))
	}
	for i := range dates {
		if !am.TestDates[i].Equal(dates[i]) {
			t.Errorf("Test date %d: expected %v, got %v", i, dates[i], am.TestDates[i])
		}
	}
}

func TestTrain_ModeShapeMatch(t *testing.T) {
	// Single-site mode with S=1 and multi-site mode on the same one-column
	// input must agree on the output shape.
	x := mat.NewDense(8, 1, []float64{1, 2, 3, 4, 5, 6, 7, 8})
	p := &grid.Predictors{Global: x}
	y := linearPredictand(x, 1)

	single, err := Train(p, y, estimator.DefaultAnalogOptions(), WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("Failed to train single-site: %v", err)
	}
	multi, err := Train(p, y, estimator.DefaultAnalogOptions(), WithMultiSite(), WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("Failed to train multi-site: %v", err)
	}

	sr, sc := single.Predictions.Values.Dims()
	mr, mc := multi.Predictions.Values.Dims()
	if sr != mr || sc != mc {
		t.Errorf("Shapes differ between modes: %dx%d vs %dx%d", sr, sc, mr, mc)
	}
	if single.Config.SingleSite == multi.Config.SingleSite {
		t.Error("Config must record the mode that produced it")
	}
}

func TestTrain_PerSiteIsolation(t *testing.T) {
	x0 := mat.NewDense(6, 1, []float64{1, 2, 3, 4, 5, 6})
	x1 := mat.NewDense(6, 1, []float64{2, 4, 6, 8, 10, 12})

	train := func(corrupt bool) *Result {
		local1 := mat.DenseCopyOf(x1)
		if corrupt {
			// Distinct garbage keeps site 1 fittable; only its values change.
			for i := 0; i < 6; i++ {
				local1.Set(i, 0, 999+float64(i*i))
			}
		}
		p := &grid.Predictors{Local: []*mat.Dense{mat.DenseCopyOf(x0), local1}}
		y := linearPredictand(x0, 2)

		res, err := Train(p, y, estimator.DefaultGLMOptions(), WithLogger(quietLogger()))
		if err != nil {
			t.Fatalf("Failed to train: %v", err)
		}
		return res
	}

	clean := train(false)
	dirty := train(true)

	for i := 0; i < 6; i++ {
		a := clean.Predictions.Values.At(i, 0)
		b := dirty.Predictions.Values.At(i, 0)
		if math.Abs(a-b) > 1e-12 {
			t.Errorf("Corrupting site 1 changed site 0's prediction at row %d: %v vs %v", i, a, b)
		}
	}
}

type bogusOptions struct{}

func (bogusOptions) Method() estimator.Method { return estimator.Method(99) }
func (bogusOptions) Validate() error          { return nil }

func TestTrain_UnsupportedMethod(t *testing.T) {
	x := mat.NewDense(4, 1, []float64{1, 2, 3, 4})
	p := &grid.Predictors{Global: x}
	y := linearPredictand(x, 1)

	res, err := Train(p, y, nil, WithLogger(quietLogger()))
	if err == nil {
		t.Fatal("Expected an error for nil options")
	}
	if res != nil {
		t.Error("Expected no partial result")
	}
	var ume *errors.UnsupportedMethodError
	if !errors.As(err, &ume) {
		t.Errorf("Expected UnsupportedMethodError, got %v", err)
	}

	res, err = Train(p, y, bogusOptions{}, WithLogger(quietLogger()))
	if err == nil || res != nil {
		t.Fatal("Expected an error and no result for an unknown options type")
	}
	if !errors.As(err, &ume) {
		t.Errorf("Expected UnsupportedMethodError, got %v", err)
	}
}

func TestTrain_AllMissingSiteAborts(t *testing.T) {
	x := mat.NewDense(4, 1, []float64{1, 2, 3, 4})
	p := &grid.Predictors{Global: x}

	vals := mat.NewDense(4, 2, nil)
	for i := 0; i < 4; i++ {
		vals.Set(i, 0, float64(i))
		vals.Set(i, 1, math.NaN())
	}
	y := grid.NewPredictand(vals, []string{"time", "station"}, testDates(4))

	res, err := Train(p, y, estimator.DefaultGLMOptions(), WithLogger(quietLogger()))
	if err == nil {
		t.Fatal("Expected the all-missing site to abort the call")
	}
	if res != nil {
		t.Error("Expected no partial result")
	}
	var ame *errors.AllMissingError
	if !errors.As(err, &ame) {
		t.Fatalf("Expected AllMissingError, got %v", err)
	}
	if ame.Site != 1 {
		t.Errorf("Expected the failure to name site 1, got %d", ame.Site)
	}
}

func TestTrain_MultiSiteGLMRequiresGrouped(t *testing.T) {
	x := mat.NewDense(6, 1, []float64{1, 2, 3, 4, 5, 6})
	p := &grid.Predictors{Global: x}
	y := linearPredictand(x, 2)

	_, err := Train(p, y, estimator.DefaultGLMOptions(), WithMultiSite(), WithLogger(quietLogger()))
	if err == nil {
		t.Fatal("Expected multi-site GLM without StrategyGrouped to fail")
	}

	opts := estimator.DefaultGLMOptions()
	opts.Strategy = estimator.StrategyGrouped
	res, err := Train(p, y, opts, WithMultiSite(), WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("Failed to train grouped multi-site GLM: %v", err)
	}
	if res.Predictions.Sites() != 2 {
		t.Errorf("Expected predictions for 2 sites, got %d", res.Predictions.Sites())
	}
	if len(res.Config.Models) != 1 {
		t.Errorf("Expected a single joint model, got %d", len(res.Config.Models))
	}
}

func TestTrain_SequentialMatchesParallel(t *testing.T) {
	x := mat.NewDense(12, 2, nil)
	for i := 0; i < 12; i++ {
		x.Set(i, 0, float64(i))
		x.Set(i, 1, math.Sin(float64(i)))
	}
	p := &grid.Predictors{Global: x}
	y := linearPredictand(x, 5)

	par, err := Train(p, y, estimator.DefaultGLMOptions(), WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("Failed to train in parallel: %v", err)
	}
	seq, err := Train(p, y, estimator.DefaultGLMOptions(), WithSequential(), WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("Failed to train sequentially: %v", err)
	}

	if !mat.EqualApprox(par.Predictions.Values, seq.Predictions.Values, 1e-12) {
		t.Error("Parallel and sequential site loops disagree")
	}
}

func TestTrain_LocalPredictorsPreferred(t *testing.T) {
	// The global grid is pure noise while the local matrix is the real
	// predictor; a near-perfect gaussian fit proves the local entry was used.
	n := 10
	local := mat.NewDense(n, 1, nil)
	global := mat.NewDense(n, 1, nil)
	vals := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		local.Set(i, 0, float64(i))
		global.Set(i, 0, math.Mod(float64(i)*7919.77, 1.3))
		vals.Set(i, 0, 3*float64(i)+1)
	}
	p := &grid.Predictors{Global: global, Local: []*mat.Dense{local}}
	y := grid.NewPredictand(vals, []string{"time"}, testDates(n))

	res, err := Train(p, y, estimator.DefaultGLMOptions(), WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("Failed to train: %v", err)
	}
	for i := 0; i < n; i++ {
		want := 3*float64(i) + 1
		if got := res.Predictions.Values.At(i, 0); math.Abs(got-want) > 1e-6 {
			t.Fatalf("Row %d: expected %v from the local fit, got %v", i, want, got)
		}
	}
}

func TestTrain_MultiSiteFilterWarns(t *testing.T) {
	var warned error
	errors.SetWarningHandler(func(w error) { warned = w })
	defer errors.SetWarningHandler(nil)

	x := mat.NewDense(6, 1, []float64{1, 2, 3, 4, 5, 6})
	p := &grid.Predictors{Global: x}
	y := linearPredictand(x, 2)

	_, err := Train(p, y, estimator.DefaultAnalogOptions(),
		WithMultiSite(), WithFilter(GreaterThan(0)), WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("Failed to train: %v", err)
	}

	var isw *errors.IgnoredSettingWarning
	if warned == nil || !errors.As(warned, &isw) {
		t.Errorf("Expected an IgnoredSettingWarning for the unused filter, got %v", warned)
	}
}

func TestTrain_RowCountMismatch(t *testing.T) {
	x := mat.NewDense(3, 1, []float64{1, 2, 3})
	p := &grid.Predictors{Global: x}
	y := grid.NewPredictandVector([]float64{1, 2, 3, 4}, testDates(4))

	_, err := Train(p, y, estimator.DefaultGLMOptions(), WithLogger(quietLogger()))
	if err == nil {
		t.Fatal("Expected a dimension error for mismatched row counts")
	}
	var de *errors.DimensionError
	if !errors.As(err, &de) {
		t.Errorf("Expected DimensionError, got %v", err)
	}
}

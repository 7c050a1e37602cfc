package deltavar

import (
	"errors"
	"math"
	"testing"

	"turbustat/internal/models"
	"turbustat/pkg/grid"
)

// testImage builds a smooth, strictly non-constant pattern so the
// delta-variance is positive at every scale.
func testImage(size int) *grid.Grid {
	g := grid.New(size, size)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			v := math.Sin(float64(x)*0.31) * math.Cos(float64(y)*0.17)
			v += 0.25 * math.Sin(float64(x+y)*0.09)
			g.Set(y, x, v)
		}
	}
	return g
}

func testDataset(img *grid.Grid) *models.Dataset {
	return &models.Dataset{Image: img}
}

// TestNewPreconditions verifies fail-fast validation of the estimator
// inputs
func TestNewPreconditions(t *testing.T) {
	d := testDataset(testImage(32))

	if _, err := New(d, 1.0, nil); !errors.Is(err, ErrDiamRatio) {
		t.Errorf("Expected ErrDiamRatio, got %v", err)
	}
	if _, err := New(d, 1.5, []float64{4, 100}); !errors.Is(err, ErrLagTooLarge) {
		t.Errorf("Expected ErrLagTooLarge, got %v", err)
	}
	if _, err := New(d, 1.5, []float64{-4}); !errors.Is(err, ErrNonPositiveLag) {
		t.Errorf("Expected ErrNonPositiveLag, got %v", err)
	}

	weights := grid.Constant(1.0, 32, 32)
	weights.Set(3, 3, -0.5)
	bad := &models.Dataset{Image: testImage(32), Weights: weights}
	if _, err := New(bad, 1.5, []float64{4}); !errors.Is(err, ErrNegativeWeight) {
		t.Errorf("Expected ErrNegativeWeight, got %v", err)
	}

	mismatched := &models.Dataset{Image: testImage(32), Weights: grid.Constant(1.0, 16, 16)}
	if _, err := New(mismatched, 1.5, []float64{4}); !errors.Is(err, ErrDimsMismatch) {
		t.Errorf("Expected ErrDimsMismatch, got %v", err)
	}
}

// TestAutoLags verifies the auto-generated lag set: 25 log-spaced values
// from 3 pixels to half the smaller image dimension
func TestAutoLags(t *testing.T) {
	dv, err := New(testDataset(testImage(64)), 1.5, nil)
	if err != nil {
		t.Fatal(err)
	}

	lags := dv.Lags()
	if len(lags) != 25 {
		t.Fatalf("Expected 25 auto lags, got %d", len(lags))
	}
	if math.Abs(lags[0]-3.0) > 1e-12 {
		t.Errorf("Expected first lag 3.0, got %g", lags[0])
	}
	if math.Abs(lags[len(lags)-1]-32.0) > 1e-12 {
		t.Errorf("Expected last lag 32.0, got %g", lags[len(lags)-1])
	}
	for i := 1; i < len(lags); i++ {
		if lags[i] <= lags[i-1] {
			t.Errorf("Lags not increasing at index %d: %g <= %g", i, lags[i], lags[i-1])
		}
	}
}

// TestStateMachine ensures the convolve-reduce-readout stages are
// strictly sequential
func TestStateMachine(t *testing.T) {
	dv, err := New(testDataset(testImage(32)), 1.5, []float64{4})
	if err != nil {
		t.Fatal(err)
	}

	if err := dv.ComputeDeltaVariance(BootstrapConfig{}); !errors.Is(err, ErrNotConvolved) {
		t.Errorf("Expected ErrNotConvolved, got %v", err)
	}
	if _, err := dv.Curve(); !errors.Is(err, ErrNotComputed) {
		t.Errorf("Expected ErrNotComputed, got %v", err)
	}
	if _, _, err := dv.Field(0); !errors.Is(err, ErrNotConvolved) {
		t.Errorf("Expected ErrNotConvolved from Field, got %v", err)
	}

	if err := dv.DoConvolutions(); err != nil {
		t.Fatal(err)
	}
	if err := dv.ComputeDeltaVariance(BootstrapConfig{}); err != nil {
		t.Fatal(err)
	}
	if _, err := dv.Curve(); err != nil {
		t.Fatal(err)
	}
}

// TestDelvarConstantField verifies that a constant field has zero
// delta-variance for any positive weights
func TestDelvarConstantField(t *testing.T) {
	field := grid.Constant(3.5, 16, 16)
	weights := grid.New(16, 16)
	for i := range weights.Data {
		weights.Data[i] = float64(i%5) + 1.0
	}

	if v := delvar(field, weights); v != 0 {
		t.Errorf("Expected delta-variance 0 for constant field, got %g", v)
	}
}

// TestRunConstantImage is the end-to-end constant-input scenario: every
// delta-variance value of an all-ones image must be exactly zero, and
// the zero curve must be rejected by the log-log comparator rather than
// silently compared
func TestRunConstantImage(t *testing.T) {
	d := &models.Dataset{
		Image:   grid.Constant(1.0, 64, 64),
		Weights: grid.Constant(1.0, 64, 64),
	}
	dv, err := New(d, 1.5, []float64{4, 8, 16})
	if err != nil {
		t.Fatal(err)
	}
	curve, err := dv.Run(BootstrapConfig{})
	if err != nil {
		t.Fatal(err)
	}

	for i, p := range curve.Points {
		if p.Value != 0 {
			t.Errorf("Lag %g (index %d): expected exactly 0, got %g", p.Lag, i, p.Value)
		}
		if p.Low != 0 || p.High != 0 {
			t.Errorf("Lag %g: expected zero bounds without bootstrap, got [%g,%g]", p.Lag, p.Low, p.High)
		}
	}

	if _, err := CurveDistance(curve, curve); !errors.Is(err, ErrNonPositiveValue) {
		t.Errorf("Expected ErrNonPositiveValue comparing zero curves, got %v", err)
	}
}

// TestOffsetInvariance is the additive-offset scenario: the core minus
// annulus construction cancels a global shift, so two images differing by
// a constant produce nearly identical curves
func TestOffsetInvariance(t *testing.T) {
	img1 := testImage(32)
	img2 := img1.Clone()
	for i := range img2.Data {
		img2.Data[i] += 5.0
	}

	lags := []float64{4, 8}
	run := func(img *grid.Grid) *Curve {
		dv, err := New(testDataset(img), 1.5, lags)
		if err != nil {
			t.Fatal(err)
		}
		curve, err := dv.Run(BootstrapConfig{})
		if err != nil {
			t.Fatal(err)
		}
		return curve
	}

	res, err := CurveDistance(run(img1), run(img2))
	if err != nil {
		t.Fatal(err)
	}
	if res.Distance > 1e-6 {
		t.Errorf("Expected near-zero distance under constant offset, got %g", res.Distance)
	}
}

// TestNaNImage verifies that a single NaN cell neither crashes the
// pipeline nor poisons the whole curve
func TestNaNImage(t *testing.T) {
	img := testImage(32)
	img.Set(7, 9, math.NaN())

	dv, err := New(testDataset(img), 1.5, []float64{4, 8})
	if err != nil {
		t.Fatal(err)
	}
	curve, err := dv.Run(BootstrapConfig{})
	if err != nil {
		t.Fatal(err)
	}

	for _, p := range curve.Points {
		if math.IsNaN(p.Value) || math.IsInf(p.Value, 0) {
			t.Errorf("Lag %g: expected finite value, got %g", p.Lag, p.Value)
		}
		if p.Value <= 0 {
			t.Errorf("Lag %g: expected positive value for structured image, got %g", p.Lag, p.Value)
		}
	}
}

// TestFieldDiagnostics verifies the retained per-lag fields are exposed
// after convolution
func TestFieldDiagnostics(t *testing.T) {
	dv, err := New(testDataset(testImage(32)), 1.5, []float64{4})
	if err != nil {
		t.Fatal(err)
	}
	if err := dv.DoConvolutions(); err != nil {
		t.Fatal(err)
	}

	diff, weight, err := dv.Field(0)
	if err != nil {
		t.Fatal(err)
	}
	// Padded by the lag on every edge
	want := 32 + 2*4
	if diff.Width != want || diff.Height != want || !weight.SameDims(diff) {
		t.Errorf("Expected %dx%d fields, got %dx%d", want, want, diff.Width, diff.Height)
	}
	if _, _, err := dv.Field(5); err == nil {
		t.Errorf("Expected out-of-range error")
	}
}

package deltavar

import (
	"math"
	"testing"

	"golang.org/x/exp/rand"

	"turbustat/pkg/grid"
)

// noisyField builds a deterministic pseudo-random field for bootstrap
// tests.
func noisyField(size int, seed uint64) *grid.Grid {
	rng := rand.New(rand.NewSource(seed))
	g := grid.New(size, size)
	for i := range g.Data {
		g.Data[i] = rng.NormFloat64()
	}
	return g
}

// TestBootstrapDisabled verifies that a disabled bootstrap reports zero
// bounds
func TestBootstrapDisabled(t *testing.T) {
	field := noisyField(8, 1)
	weights := grid.Constant(1.0, 8, 8)

	low, high := bootstrapCI(field, weights, BootstrapConfig{}, 0)
	if low != 0 || high != 0 {
		t.Errorf("Expected (0,0) when disabled, got (%g,%g)", low, high)
	}
}

// TestBootstrapReproducible verifies that the same seed yields identical
// intervals
func TestBootstrapReproducible(t *testing.T) {
	field := noisyField(12, 7)
	weights := grid.Constant(1.0, 12, 12)
	cfg := DefaultBootstrap()

	low1, high1 := bootstrapCI(field, weights, cfg, 42)
	low2, high2 := bootstrapCI(field, weights, cfg, 42)
	if low1 != low2 || high1 != high2 {
		t.Errorf("Same seed gave different intervals: (%g,%g) vs (%g,%g)", low1, high1, low2, high2)
	}

	low3, high3 := bootstrapCI(field, weights, cfg, 43)
	if low1 == low3 && high1 == high3 {
		t.Errorf("Different seeds gave identical intervals (%g,%g)", low3, high3)
	}
}

// TestBootstrapInterval verifies the interval is ordered and contains
// the point estimate in the large majority of trials
func TestBootstrapInterval(t *testing.T) {
	field := noisyField(16, 3)
	weights := grid.Constant(1.0, 16, 16)
	point := delvar(field, weights)
	cfg := DefaultBootstrap()

	trials := 20
	contained := 0
	for seed := uint64(0); seed < uint64(trials); seed++ {
		low, high := bootstrapCI(field, weights, cfg, seed)
		if math.IsNaN(low) || math.IsNaN(high) {
			t.Fatalf("seed=%d: NaN interval", seed)
		}
		if low > high {
			t.Errorf("seed=%d: interval inverted: low %g > high %g", seed, low, high)
		}
		if low <= point && point <= high {
			contained++
		}
	}

	// A 95% percentile interval of 100 resamples should cover the point
	// estimate nearly always; a low pass count means the order
	// statistics are wrong.
	if contained < trials*3/4 {
		t.Errorf("Point estimate %g inside interval in only %d/%d trials", point, contained, trials)
	}
}

// TestBootstrapOrderStatistics verifies the rank selection against a
// hand-computed configuration
func TestBootstrapOrderStatistics(t *testing.T) {
	cfg := BootstrapConfig{Enabled: true, NSamples: 100, Alpha: 0.05}
	lo := int((cfg.Alpha / 2.0) * float64(cfg.NSamples))
	hi := int((1.0 - cfg.Alpha/2.0) * float64(cfg.NSamples))
	if lo != 2 || hi != 97 {
		t.Errorf("Expected ranks (2,97) for n=100 alpha=0.05, got (%d,%d)", lo, hi)
	}
}

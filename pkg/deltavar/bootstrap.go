package deltavar

import (
	"sort"

	"golang.org/x/exp/rand"

	"turbustat/pkg/grid"
)

// BootstrapConfig controls the percentile-bootstrap error estimate
// attached to each point of the curve.
type BootstrapConfig struct {
	// Enabled turns bootstrapping on. When off, both confidence bounds
	// are reported as 0.
	Enabled bool

	// NSamples is the number of bootstrap resamples per lag.
	NSamples int

	// Alpha sets the interval coverage: the bounds are the alpha/2 and
	// 1-alpha/2 order statistics of the resampled values.
	Alpha float64

	// Seed is the base RNG seed. Lag i draws from a fresh stream seeded
	// with Seed+i, so concurrent or reordered evaluation cannot perturb
	// the result.
	Seed uint64
}

// DefaultBootstrap returns the reference configuration: 100 resamples and
// a 95% interval.
func DefaultBootstrap() BootstrapConfig {
	return BootstrapConfig{Enabled: true, NSamples: 100, Alpha: 0.05}
}

// bootstrapCI estimates a confidence interval for the delta-variance of
// field by resampling its flattened cells with replacement and reducing
// each resample against the original weight field.
//
// The resample treats the field as an unordered i.i.d. population,
// discarding its 2D spatial correlation. That is the literal reference
// behavior; see the package design notes before changing it.
func bootstrapCI(field, weight *grid.Grid, cfg BootstrapConfig, seed uint64) (low, high float64) {
	if !cfg.Enabled || cfg.NSamples <= 0 {
		return 0, 0
	}

	rng := rand.New(rand.NewSource(seed))
	n := len(field.Data)
	resample := grid.New(field.Width, field.Height)
	values := make([]float64, cfg.NSamples)
	for s := 0; s < cfg.NSamples; s++ {
		for i := range resample.Data {
			resample.Data[i] = field.Data[rng.Intn(n)]
		}
		values[s] = delvar(resample, weight)
	}

	sort.Float64s(values)
	lo := int((cfg.Alpha / 2.0) * float64(cfg.NSamples))
	hi := int((1.0 - cfg.Alpha/2.0) * float64(cfg.NSamples))
	if hi >= cfg.NSamples {
		hi = cfg.NSamples - 1
	}
	return values[lo], values[hi]
}

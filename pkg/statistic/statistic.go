// Package statistic declares the closed set of turbulence statistics the
// batch driver can run. Each statistic exposes the same compute-and-
// compare capability, so the driver iterates a declared list instead of
// dispatching on names.
package statistic

import (
	"turbustat/internal/models"
	"turbustat/pkg/deltavar"
)

// Statistic compares two datasets and yields a non-negative distance.
// Implementations are stateless; all per-run state lives inside the call.
type Statistic interface {
	// Name identifies the statistic in reports and result tables.
	Name() string

	// Between computes the statistic's distance between two datasets.
	Between(d1, d2 *models.Dataset) (float64, error)
}

// DeltaVariance adapts the delta-variance comparator to the Statistic
// interface.
type DeltaVariance struct {
	Opts deltavar.Options
}

// Name implements Statistic.
func (s DeltaVariance) Name() string { return "DeltaVariance" }

// Between implements Statistic.
func (s DeltaVariance) Between(d1, d2 *models.Dataset) (float64, error) {
	dd, err := deltavar.NewDeltaVarianceDistance(d1, d2, s.Opts, nil)
	if err != nil {
		return 0, err
	}
	if err := dd.DistanceMetric(); err != nil {
		return 0, err
	}
	return dd.Distance, nil
}

// Registry returns the declared statistic list. Delta-variance is the
// implemented member; the sibling statistics (genus, SCF, PCA, wavelet,
// bispectrum, dendrograms, Cramer, Tsallis) slot in here as they are
// ported.
func Registry(opts deltavar.Options) []Statistic {
	return []Statistic{
		DeltaVariance{Opts: opts},
	}
}

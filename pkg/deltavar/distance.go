package deltavar

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"turbustat/internal/models"
)

var (
	// ErrLagMismatch is returned when two curves were not computed over
	// the same lag set; comparing them is undefined.
	ErrLagMismatch = errors.New("curves were computed over different lag sets")

	// ErrNonPositiveValue is returned when a curve point cannot enter
	// the log-log comparison.
	ErrNonPositiveValue = errors.New("delta-variance value is not positive")
)

// DistanceResult is the outcome of comparing two delta-variance curves:
// the scalar distance plus the curves that produced it.
type DistanceResult struct {
	Distance float64
	Curve1   *Curve
	Curve2   *Curve
}

// CurveDistance compares two curves computed over the same lag set via
// the Euclidean norm of the difference of their log10 values. Every value
// must be strictly positive; NaN or non-positive values are precondition
// violations identified by lag, not absorbed.
func CurveDistance(a, b *Curve) (*DistanceResult, error) {
	if !a.SameLags(b) {
		return nil, ErrLagMismatch
	}
	logA, err := logValues(a, "curve 1")
	if err != nil {
		return nil, err
	}
	logB, err := logValues(b, "curve 2")
	if err != nil {
		return nil, err
	}
	return &DistanceResult{
		Distance: floats.Distance(logA, logB, 2),
		Curve1:   a,
		Curve2:   b,
	}, nil
}

func logValues(c *Curve, label string) ([]float64, error) {
	out := make([]float64, len(c.Points))
	for i, p := range c.Points {
		if !(p.Value > 0) {
			return nil, fmt.Errorf("%w: %s has %g at lag %g", ErrNonPositiveValue,
				label, p.Value, p.Lag)
		}
		out[i] = math.Log10(p.Value)
	}
	return out, nil
}

// Options collects the estimator parameters shared by both sides of a
// comparison.
type Options struct {
	DiamRatio float64
	Lags      []float64
	Bootstrap BootstrapConfig
}

// DefaultOptions matches the reference defaults: diameter ratio 1.5,
// auto-generated lags, bootstrap disabled.
func DefaultOptions() Options {
	return Options{DiamRatio: DefaultDiamRatio}
}

// DeltaVarianceDistance compares two datasets through their
// delta-variance curves. It follows the comparator convention shared by
// the sibling statistics: construct from two raw datasets, optionally
// reusing a precomputed fiducial estimator for the first, then call
// DistanceMetric and read Distance.
type DeltaVarianceDistance struct {
	DelVar1 *DeltaVariance
	DelVar2 *DeltaVariance

	Curve1 *Curve
	Curve2 *Curve

	Distance float64
}

// NewDeltaVarianceDistance runs the estimator on both datasets. A non-nil
// fiducial replaces the computation for dataset1, letting callers compare
// many datasets against one baseline without recomputing it; the caller
// is responsible for having built the fiducial with matching options.
func NewDeltaVarianceDistance(d1, d2 *models.Dataset, opts Options, fiducial *DeltaVariance) (*DeltaVarianceDistance, error) {
	dd := &DeltaVarianceDistance{}

	if fiducial != nil {
		dd.DelVar1 = fiducial
		curve, err := fiducial.Curve()
		if err != nil {
			return nil, fmt.Errorf("fiducial model: %w", err)
		}
		dd.Curve1 = curve
	} else {
		dv1, err := New(d1, opts.DiamRatio, opts.Lags)
		if err != nil {
			return nil, fmt.Errorf("dataset 1: %w", err)
		}
		curve, err := dv1.Run(opts.Bootstrap)
		if err != nil {
			return nil, fmt.Errorf("dataset 1: %w", err)
		}
		dd.DelVar1 = dv1
		dd.Curve1 = curve
	}

	// The second dataset reuses the first curve's lag set so the two
	// sides stay comparable even under auto-generated lags.
	lags := opts.Lags
	if lags == nil {
		lags = dd.Curve1.Lags()
	}
	dv2, err := New(d2, opts.DiamRatio, lags)
	if err != nil {
		return nil, fmt.Errorf("dataset 2: %w", err)
	}
	curve, err := dv2.Run(opts.Bootstrap)
	if err != nil {
		return nil, fmt.Errorf("dataset 2: %w", err)
	}
	dd.DelVar2 = dv2
	dd.Curve2 = curve

	return dd, nil
}

// DistanceMetric applies the log-log Euclidean distance to the two
// curves and stores the result in Distance.
func (dd *DeltaVarianceDistance) DistanceMetric() error {
	res, err := CurveDistance(dd.Curve1, dd.Curve2)
	if err != nil {
		return err
	}
	dd.Distance = res.Distance
	return nil
}

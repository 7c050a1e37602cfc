// Package deltavar implements the delta-variance technique of Stutzki et
// al. (1998), as refined by Ossenkopf et al. (2008), for quantifying
// multi-scale structure in 2D intensity maps. For each lag in a set of
// spatial scales the image is convolved with a core and an annulus kernel,
// the weighted variance of the smoothed-difference field gives one point
// of the delta-variance curve, and a percentile bootstrap supplies
// confidence bounds. Two curves computed on the same lag set can be
// compared with CurveDistance.
package deltavar

import (
	"errors"
	"fmt"
	"log"
	"math"

	"gonum.org/v1/gonum/floats"

	"turbustat/internal/models"
	"turbustat/pkg/grid"
)

// DefaultDiamRatio is the ratio between the annulus and core kernel
// diameters used when the caller does not specify one.
const DefaultDiamRatio = 1.5

const (
	// autoNumLags is the number of log-spaced lags generated when no
	// lag set is supplied.
	autoNumLags = 25

	// minAutoLag keeps auto-generated lags above the noise of
	// single-pixel structure.
	minAutoLag = 3.0

	// minAngularLagDeg is the smallest angular lag considered when the
	// header carries a pixel scale (0.1 arcmin, in degrees).
	minAngularLagDeg = 0.1 / 60.0
)

var (
	// ErrDimsMismatch is returned when the weight map does not match the
	// image dimensions.
	ErrDimsMismatch = errors.New("image and weight map dimensions differ")

	// ErrNegativeWeight is returned when the weight map contains a
	// negative entry.
	ErrNegativeWeight = errors.New("weights must be non-negative")

	// ErrLagTooLarge is returned when a lag exceeds half the smaller
	// image dimension.
	ErrLagTooLarge = errors.New("lag exceeds half the smaller image dimension")

	// ErrNotConvolved is returned when ComputeDeltaVariance runs before
	// DoConvolutions has completed.
	ErrNotConvolved = errors.New("convolutions have not been computed")

	// ErrNotComputed is returned when the curve is requested before
	// ComputeDeltaVariance has completed.
	ErrNotComputed = errors.New("delta-variance values have not been computed")
)

// stage tracks the estimator's strictly sequential state machine:
// convolve, then reduce, then read out the curve.
type stage int

const (
	stageNew stage = iota
	stageConvolved
	stageComputed
)

// lagResult holds everything computed for a single lag. Results live in a
// fixed-size slice indexed by lag position; nothing is appended or shared
// across lags.
type lagResult struct {
	lag     float64
	diff    *grid.Grid // normalized core minus annulus field
	weight  *grid.Grid // combined core and annulus weight field
	value   float64
	errLow  float64
	errHigh float64
}

// DeltaVariance computes the delta-variance curve of a single dataset.
// The zero value is not usable; construct with New. Inputs are treated as
// immutable and a full recompute is required if any of them change.
type DeltaVariance struct {
	img       *grid.Grid
	weights   *grid.Grid
	header    models.Header
	diamRatio float64
	lags      []float64
	nanFlag   bool

	results []lagResult
	stage   stage
}

// New builds an estimator for the dataset. diamRatio must exceed 1. A nil
// lag set selects 25 log-spaced lags between a minimum scale and half the
// smaller image dimension, following the reference auto-lag policy; an
// explicit lag set must be positive and fit within half the smaller image
// dimension.
func New(d *models.Dataset, diamRatio float64, lags []float64) (*DeltaVariance, error) {
	if diamRatio <= 1 {
		return nil, fmt.Errorf("%w: got %g", ErrDiamRatio, diamRatio)
	}
	img := d.Image
	weights := d.UniformWeights()
	if !img.SameDims(weights) {
		return nil, fmt.Errorf("%w: image %dx%d, weights %dx%d", ErrDimsMismatch,
			img.Width, img.Height, weights.Width, weights.Height)
	}
	for i, w := range weights.Data {
		if w < 0 {
			return nil, fmt.Errorf("%w: weight %g at cell %d", ErrNegativeWeight, w, i)
		}
	}

	maxLag := float64(min(img.Width, img.Height)) / 2.0
	if lags == nil {
		lags = autoLags(d.Header, maxLag)
	} else {
		lags = append([]float64(nil), lags...)
		for i, l := range lags {
			if l <= 0 {
				return nil, fmt.Errorf("%w: lag %g at index %d", ErrNonPositiveLag, l, i)
			}
			if l > maxLag {
				return nil, fmt.Errorf("%w: lag %g at index %d, limit %g",
					ErrLagTooLarge, l, i, maxLag)
			}
		}
	}

	return &DeltaVariance{
		img:       img,
		weights:   weights,
		header:    d.Header,
		diamRatio: diamRatio,
		lags:      lags,
		nanFlag:   img.HasNaN(),
		results:   make([]lagResult, len(lags)),
	}, nil
}

// autoLags generates the default log-spaced lag set. When the header
// carries an angular pixel scale the minimum lag corresponds to 0.1
// arcmin, clamped back to the pixel floor when the image cannot support
// it; without a scale the estimator warns and proceeds in pixel units.
func autoLags(h models.Header, maxLag float64) []float64 {
	minSize := minAutoLag
	if scale, ok := h.AngularScale(); ok {
		minSize = minAngularLagDeg / scale
		if minSize < minAutoLag || minSize > maxLag {
			minSize = minAutoLag
		}
	} else {
		log.Printf("deltavar: no angular scale in header, using pixel units")
	}
	return floats.LogSpan(make([]float64, autoNumLags), minSize, maxLag)
}

// Lags returns a copy of the lag set in pixels.
func (dv *DeltaVariance) Lags() []float64 {
	return append([]float64(nil), dv.lags...)
}

// DoConvolutions runs the multi-scale convolution stage: for every lag
// the weight map and the weighted image are zero-padded by the lag,
// convolved with the core and annulus kernels, normalized by the
// convolved weights, and differenced. Must complete before
// ComputeDeltaVariance.
func (dv *DeltaVariance) DoConvolutions() error {
	for i, lag := range dv.lags {
		core, err := CoreKernel(lag, dv.img.Height, dv.img.Width)
		if err != nil {
			return fmt.Errorf("lag %g: %w", lag, err)
		}
		annulus, err := AnnulusKernel(lag, dv.diamRatio, dv.img.Height, dv.img.Width)
		if err != nil {
			return fmt.Errorf("lag %g: %w", lag, err)
		}

		// Extend beyond the image so the non-periodic edges cannot
		// contaminate the convolution.
		pad := int(lag)
		padWeights := grid.PadZeros(dv.weights, pad)
		padImg := grid.PadZeros(dv.img, pad)
		for j := range padImg.Data {
			padImg.Data[j] *= padWeights.Data[j]
		}

		imgCore := convolveFFT(padImg, core, dv.nanFlag)
		imgAnnulus := convolveFFT(padImg, annulus, dv.nanFlag)
		weightsCore := convolveFFT(padWeights, core, dv.nanFlag)
		weightsAnnulus := convolveFFT(padWeights, annulus, dv.nanFlag)

		diff := grid.New(padImg.Width, padImg.Height)
		weight := grid.New(padImg.Width, padImg.Height)
		for j := range diff.Data {
			wc := weightsCore.Data[j]
			wa := weightsAnnulus.Data[j]
			// Zero coverage marks a missing cell, not a zero divisor.
			if wc == 0 {
				wc = math.NaN()
			}
			if wa == 0 {
				wa = math.NaN()
			}
			diff.Data[j] = imgCore.Data[j]/wc - imgAnnulus.Data[j]/wa
			weight.Data[j] = wc * wa
		}

		dv.results[i] = lagResult{lag: lag, diff: diff, weight: weight}
	}
	dv.stage = stageConvolved
	return nil
}

// ComputeDeltaVariance reduces every convolved field to its
// delta-variance value and, when bootstrapping is enabled, attaches a
// percentile confidence interval. Each lag draws from its own seeded RNG
// stream so results are reproducible regardless of evaluation order.
func (dv *DeltaVariance) ComputeDeltaVariance(boot BootstrapConfig) error {
	if dv.stage < stageConvolved {
		return ErrNotConvolved
	}
	for i := range dv.results {
		r := &dv.results[i]
		r.value = delvar(r.diff, r.weight)
		if boot.Enabled {
			r.errLow, r.errHigh = bootstrapCI(r.diff, r.weight, boot, boot.Seed+uint64(i))
		}
	}
	dv.stage = stageComputed
	return nil
}

// Curve returns the computed delta-variance curve.
func (dv *DeltaVariance) Curve() (*Curve, error) {
	if dv.stage < stageComputed {
		return nil, ErrNotComputed
	}
	c := &Curve{Points: make([]Point, len(dv.results))}
	if scale, ok := dv.header.AngularScale(); ok {
		c.AngularScaleDeg = scale
	}
	for i, r := range dv.results {
		c.Points[i] = Point{Lag: r.lag, Value: r.value, Low: r.errLow, High: r.errHigh}
	}
	return c, nil
}

// Field returns the convolved difference and weight fields for lag index
// i, for diagnostic inspection after DoConvolutions.
func (dv *DeltaVariance) Field(i int) (diff, weight *grid.Grid, err error) {
	if dv.stage < stageConvolved {
		return nil, nil, ErrNotConvolved
	}
	if i < 0 || i >= len(dv.results) {
		return nil, nil, fmt.Errorf("lag index %d out of range [0,%d)", i, len(dv.results))
	}
	return dv.results[i].diff, dv.results[i].weight, nil
}

// Run drives the full pipeline and returns the curve.
func (dv *DeltaVariance) Run(boot BootstrapConfig) (*Curve, error) {
	if err := dv.DoConvolutions(); err != nil {
		return nil, err
	}
	if err := dv.ComputeDeltaVariance(boot); err != nil {
		return nil, err
	}
	return dv.Curve()
}

// delvar reduces a difference field to the weighted variance about the
// unweighted mean. The mean deliberately ignores the weights while the
// variance sums use them; the asymmetry matches the reference behavior.
// NaN cells drop out of every sum.
func delvar(field, weight *grid.Grid) float64 {
	mean := grid.NaNMean(field.Data)
	var num, den float64
	for i, v := range field.Data {
		w := weight.Data[i]
		d := v - mean
		if t := d * d * w; !math.IsNaN(t) {
			num += t
		}
		if !math.IsNaN(w) {
			den += w
		}
	}
	return num / den
}

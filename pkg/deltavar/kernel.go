package deltavar

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"turbustat/pkg/grid"
)

var (
	// ErrNonPositiveLag is returned when a kernel or estimator is asked
	// for a lag that is not strictly positive.
	ErrNonPositiveLag = errors.New("lag must be positive")

	// ErrDiamRatio is returned when the annulus diameter ratio does not
	// exceed 1, i.e. the outer Gaussian would not enclose the inner one.
	ErrDiamRatio = errors.New("diam ratio must be greater than 1")

	// ErrKernelGrid is returned for kernel grid sizes below 3 cells.
	ErrKernelGrid = errors.New("kernel grid dimensions must be at least 3")
)

// CoreKernel builds the normalized core smoothing kernel for the given
// lag: a radially symmetric Gaussian of characteristic width lag/2
// evaluated on a (height+1)x(width+1) grid centered on the image
// midpoint. The kernel sums to exactly 1 so that convolution with it acts
// as a weighted average.
func CoreKernel(lag float64, height, width int) (*grid.Grid, error) {
	if lag <= 0 {
		return nil, fmt.Errorf("%w: got %g", ErrNonPositiveLag, lag)
	}
	if height < 3 || width < 3 {
		return nil, fmt.Errorf("%w: got %dx%d", ErrKernelGrid, height, width)
	}

	k := grid.New(width+1, height+1)
	pref := (4.0 / math.Pi) * lag
	halfWidth := lag / 2.0
	cy := (height + 1) / 2
	cx := (width + 1) / 2
	for i := 0; i <= height; i++ {
		y := float64(i - cy)
		for j := 0; j <= width; j++ {
			x := float64(j - cx)
			r2 := x*x + y*y
			k.Set(i, j, pref*math.Exp(-r2/(halfWidth*halfWidth)))
		}
	}
	normalizeKernel(k)
	return k, nil
}

// AnnulusKernel builds the normalized annulus kernel for the given lag:
// the difference between an outer Gaussian of width diamRatio*lag/2 and
// an inner one of width lag/2, renormalized to unit sum. Together with
// the core kernel it forms the band-pass filter that isolates structure
// at the lag scale.
func AnnulusKernel(lag, diamRatio float64, height, width int) (*grid.Grid, error) {
	if lag <= 0 {
		return nil, fmt.Errorf("%w: got %g", ErrNonPositiveLag, lag)
	}
	if diamRatio <= 1 {
		return nil, fmt.Errorf("%w: got %g", ErrDiamRatio, diamRatio)
	}
	if height < 3 || width < 3 {
		return nil, fmt.Errorf("%w: got %dx%d", ErrKernelGrid, height, width)
	}

	k := grid.New(width+1, height+1)
	pref := 4.0 / (math.Pi * lag * (diamRatio*diamRatio - 1.0))
	innerWidth := lag / 2.0
	outerWidth := diamRatio * lag / 2.0
	cy := (height + 1) / 2
	cx := (width + 1) / 2
	for i := 0; i <= height; i++ {
		y := float64(i - cy)
		for j := 0; j <= width; j++ {
			x := float64(j - cx)
			r2 := x*x + y*y
			inner := math.Exp(-r2 / (innerWidth * innerWidth))
			outer := math.Exp(-r2 / (outerWidth * outerWidth))
			k.Set(i, j, pref*(outer-inner))
		}
	}
	normalizeKernel(k)
	return k, nil
}

// normalizeKernel rescales k in place to unit sum. A degenerate zero-sum
// kernel becomes all-NaN so that the missing-data convention carries it
// through the rest of the pipeline instead of an Inf-producing division.
func normalizeKernel(k *grid.Grid) {
	sum := floats.Sum(k.Data)
	if sum == 0 {
		for i := range k.Data {
			k.Data[i] = math.NaN()
		}
		return
	}
	floats.Scale(1.0/sum, k.Data)
}

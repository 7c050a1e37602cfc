// Package grid provides the 2D float64 grid type shared by all statistics,
// along with zero padding and NaN-aware reductions. NaN marks missing or
// invalid cells and is excluded from reductions rather than propagated.
package grid

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrDataSize is returned when a data slice does not match the
	// requested dimensions.
	ErrDataSize = errors.New("data length does not match grid dimensions")

	// ErrBadDims is returned for non-positive grid dimensions.
	ErrBadDims = errors.New("grid dimensions must be positive")
)

// Grid is a 2D array of intensity samples stored in row-major order,
// following the flat-layout convention used throughout the codebase.
type Grid struct {
	// Data holds the samples in row-major order, Data[y*Width+x].
	Data []float64

	// Width is the number of columns.
	Width int

	// Height is the number of rows.
	Height int
}

// New returns a zero-filled grid of the given dimensions.
func New(width, height int) *Grid {
	return &Grid{
		Data:   make([]float64, width*height),
		Width:  width,
		Height: height,
	}
}

// FromData wraps an existing row-major slice as a grid. The slice is not
// copied.
func FromData(data []float64, width, height int) (*Grid, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrBadDims, width, height)
	}
	if len(data) != width*height {
		return nil, fmt.Errorf("%w: have %d, want %d", ErrDataSize, len(data), width*height)
	}
	return &Grid{Data: data, Width: width, Height: height}, nil
}

// Constant returns a grid with every cell set to v.
func Constant(v float64, width, height int) *Grid {
	g := New(width, height)
	for i := range g.Data {
		g.Data[i] = v
	}
	return g
}

// At returns the sample at row y, column x.
func (g *Grid) At(y, x int) float64 {
	return g.Data[y*g.Width+x]
}

// Set stores v at row y, column x.
func (g *Grid) Set(y, x int, v float64) {
	g.Data[y*g.Width+x] = v
}

// Clone returns a deep copy of the grid.
func (g *Grid) Clone() *Grid {
	out := &Grid{
		Data:   make([]float64, len(g.Data)),
		Width:  g.Width,
		Height: g.Height,
	}
	copy(out.Data, g.Data)
	return out
}

// SameDims reports whether two grids have identical dimensions.
func (g *Grid) SameDims(other *Grid) bool {
	return g.Width == other.Width && g.Height == other.Height
}

// HasNaN reports whether any cell is NaN.
func (g *Grid) HasNaN() bool {
	for _, v := range g.Data {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}

// PadZeros returns a copy of g enlarged by pad cells of zeros on every
// edge. Padding with zeros (rather than wrapping or reflecting) keeps a
// non-periodic image from contaminating itself during FFT convolution.
func PadZeros(g *Grid, pad int) *Grid {
	if pad <= 0 {
		return g.Clone()
	}
	out := New(g.Width+2*pad, g.Height+2*pad)
	for y := 0; y < g.Height; y++ {
		src := g.Data[y*g.Width : (y+1)*g.Width]
		dst := out.Data[(y+pad)*out.Width+pad:]
		copy(dst[:g.Width], src)
	}
	return out
}

// Crop removes pad cells from every edge, inverting PadZeros.
func Crop(g *Grid, pad int) (*Grid, error) {
	if pad <= 0 {
		return g.Clone(), nil
	}
	w := g.Width - 2*pad
	h := g.Height - 2*pad
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: cannot crop %d cells from %dx%d grid",
			ErrBadDims, pad, g.Width, g.Height)
	}
	out := New(w, h)
	for y := 0; y < h; y++ {
		src := g.Data[(y+pad)*g.Width+pad:]
		copy(out.Data[y*w:(y+1)*w], src[:w])
	}
	return out, nil
}

// NaNSum returns the sum of the finite-or-infinite (non-NaN) entries of x.
// An all-NaN input sums to 0.
func NaNSum(x []float64) float64 {
	var sum float64
	for _, v := range x {
		if !math.IsNaN(v) {
			sum += v
		}
	}
	return sum
}

// NaNMean returns the arithmetic mean of the non-NaN entries of x. An
// all-NaN input yields NaN.
func NaNMean(x []float64) float64 {
	var sum float64
	var n int
	for _, v := range x {
		if !math.IsNaN(v) {
			sum += v
			n++
		}
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}

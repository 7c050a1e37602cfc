package deltavar

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"

	"turbustat/pkg/grid"
)

// convolveFFT convolves img with kernel in the Fourier domain and returns
// the same-size result with the kernel centered on each output cell.
//
// With interpolateNaN set, NaN cells are filled by interpolation: the
// image is convolved with NaN replaced by zero, a validity mask is
// convolved with the same kernel, and the two are divided so that each
// output cell is a weighted average over the valid cells only. Cells
// whose mask support is exactly zero come out NaN. Without the flag the
// convolution is a plain FFT product, which is both faster and avoids
// artificially smoothing data that has no gaps.
func convolveFFT(img, kernel *grid.Grid, interpolateNaN bool) *grid.Grid {
	if !interpolateNaN {
		return linearConvolve(img, kernel)
	}

	filled := img.Clone()
	mask := grid.Constant(1.0, img.Width, img.Height)
	for i, v := range img.Data {
		if math.IsNaN(v) {
			filled.Data[i] = 0
			mask.Data[i] = 0
		}
	}

	out := linearConvolve(filled, kernel)
	support := linearConvolve(mask, kernel)
	for i := range out.Data {
		if support.Data[i] == 0 {
			out.Data[i] = math.NaN()
			continue
		}
		out.Data[i] /= support.Data[i]
	}
	return out
}

// linearConvolve computes the full linear 2D convolution of img with
// kernel on a power-of-two padded complex buffer and extracts the
// centered, image-sized region. Zero padding to the full linear extent
// keeps the circular FFT product from wrapping the kernel around the
// image edges.
func linearConvolve(img, kernel *grid.Grid) *grid.Grid {
	fw := nextPow2(img.Width + kernel.Width - 1)
	fh := nextPow2(img.Height + kernel.Height - 1)

	a := toComplex(img, fw, fh)
	b := toComplex(kernel, fw, fh)

	rowFFT := fourier.NewCmplxFFT(fw)
	colFFT := fourier.NewCmplxFFT(fh)

	fft2(a, fw, fh, rowFFT, colFFT, false)
	fft2(b, fw, fh, rowFFT, colFFT, false)
	for i := range a {
		a[i] *= b[i]
	}
	fft2(a, fw, fh, rowFFT, colFFT, true)

	// Both the forward and inverse gonum transforms are unnormalized.
	scale := 1.0 / float64(fw*fh)
	offY := kernel.Height / 2
	offX := kernel.Width / 2
	out := grid.New(img.Width, img.Height)
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			out.Set(y, x, real(a[(y+offY)*fw+(x+offX)])*scale)
		}
	}
	return out
}

// fft2 applies a forward or inverse 2D FFT in place on a w*h row-major
// buffer by transforming rows, then columns.
func fft2(buf []complex128, w, h int, rowFFT, colFFT *fourier.CmplxFFT, inverse bool) {
	row := make([]complex128, w)
	for y := 0; y < h; y++ {
		copy(row, buf[y*w:(y+1)*w])
		if inverse {
			rowFFT.Sequence(buf[y*w:(y+1)*w], row)
		} else {
			rowFFT.Coefficients(buf[y*w:(y+1)*w], row)
		}
	}

	col := make([]complex128, h)
	res := make([]complex128, h)
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			col[y] = buf[y*w+x]
		}
		if inverse {
			colFFT.Sequence(res, col)
		} else {
			colFFT.Coefficients(res, col)
		}
		for y := 0; y < h; y++ {
			buf[y*w+x] = res[y]
		}
	}
}

// toComplex copies g into the top-left corner of a zero-filled fw*fh
// complex buffer.
func toComplex(g *grid.Grid, fw, fh int) []complex128 {
	buf := make([]complex128, fw*fh)
	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			buf[y*fw+x] = complex(g.At(y, x), 0)
		}
	}
	return buf
}

// nextPow2 returns the smallest power of two >= x.
func nextPow2(x int) int {
	p := 1
	for p < x {
		p <<= 1
	}
	return p
}

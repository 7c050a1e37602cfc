package models

import (
	"turbustat/pkg/grid"
)

// Header carries the metadata that accompanies a decoded image. It is a
// stripped-down, already-parsed view of a FITS-like header: the statistics
// never read files themselves.
type Header struct {
	// Object is a free-form label for the observed or simulated target.
	Object string

	// PixelScaleDeg is the angular size of one pixel in degrees
	// (FITS CDELT2). Zero means the scale is unknown.
	PixelScaleDeg float64
}

// AngularScale returns the angular pixel scale in degrees and whether it
// was present in the metadata. Callers fall back to pixel units when it is
// absent; a missing scale is never an error.
func (h Header) AngularScale() (float64, bool) {
	if h.PixelScaleDeg <= 0 {
		return 1.0, false
	}
	return h.PixelScaleDeg, true
}

// Dataset bundles a decoded 2D intensity image with its per-cell weights
// and metadata. The image may contain NaN cells for missing data; the
// weight map marks excluded cells with zero weight.
type Dataset struct {
	// Image is the intensity map. Treated as immutable by the statistics.
	Image *grid.Grid

	// Weights gives a non-negative weight per image cell. A nil weight
	// map means uniform weighting.
	Weights *grid.Grid

	// Header holds the image metadata.
	Header Header
}

// UniformWeights fills in an all-ones weight map when none was provided
// and returns the effective weights for the dataset.
func (d *Dataset) UniformWeights() *grid.Grid {
	if d.Weights != nil {
		return d.Weights
	}
	return grid.Constant(1.0, d.Image.Width, d.Image.Height)
}

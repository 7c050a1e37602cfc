package deltavar

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// ErrCurveFormat is returned when persisted curve data cannot be parsed.
var ErrCurveFormat = errors.New("malformed delta-variance curve data")

// Point is one sample of a delta-variance curve: the lag in pixels, the
// delta-variance value and the bootstrap confidence bounds (both 0 when
// bootstrapping was disabled).
type Point struct {
	Lag   float64
	Value float64
	Low   float64
	High  float64
}

// Curve is the ordered delta-variance curve over a lag set. It is
// immutable once produced by an estimator run.
type Curve struct {
	Points []Point

	// AngularScaleDeg is the angular pixel scale label in degrees per
	// pixel, or 0 when the source header had none. Lags are always
	// stored in pixels; the label only scales display units.
	AngularScaleDeg float64
}

// Lags returns the lag column in pixels.
func (c *Curve) Lags() []float64 {
	out := make([]float64, len(c.Points))
	for i, p := range c.Points {
		out[i] = p.Lag
	}
	return out
}

// Values returns the delta-variance column.
func (c *Curve) Values() []float64 {
	out := make([]float64, len(c.Points))
	for i, p := range c.Points {
		out[i] = p.Value
	}
	return out
}

// SameLags reports whether two curves were computed over an identical
// lag set.
func (c *Curve) SameLags(other *Curve) bool {
	if len(c.Points) != len(other.Points) {
		return false
	}
	for i := range c.Points {
		if c.Points[i].Lag != other.Points[i].Lag {
			return false
		}
	}
	return true
}

// csvHeader is the persisted column layout: one row per lag.
var csvHeader = []string{"lag", "delta_variance", "ci_low", "ci_high"}

// WriteCSV persists the curve as CSV rows of lag, value, low, high so a
// computed curve can be reloaded later instead of recomputed.
func (c *Curve) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	row := make([]string, 4)
	for _, p := range c.Points {
		row[0] = strconv.FormatFloat(p.Lag, 'g', -1, 64)
		row[1] = strconv.FormatFloat(p.Value, 'g', -1, 64)
		row[2] = strconv.FormatFloat(p.Low, 'g', -1, 64)
		row[3] = strconv.FormatFloat(p.High, 'g', -1, 64)
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCurveCSV loads a curve previously written with WriteCSV.
func ReadCurveCSV(r io.Reader) (*Curve, error) {
	cr := csv.NewReader(r)
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCurveFormat, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrCurveFormat)
	}
	if len(records[0]) != 4 || records[0][0] != csvHeader[0] {
		return nil, fmt.Errorf("%w: unexpected header %v", ErrCurveFormat, records[0])
	}

	c := &Curve{Points: make([]Point, 0, len(records)-1)}
	for i, rec := range records[1:] {
		if len(rec) != 4 {
			return nil, fmt.Errorf("%w: row %d has %d columns", ErrCurveFormat, i+1, len(rec))
		}
		var vals [4]float64
		for j, field := range rec {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: row %d column %q: %v", ErrCurveFormat, i+1, csvHeader[j], err)
			}
			vals[j] = v
		}
		c.Points = append(c.Points, Point{Lag: vals[0], Value: vals[1], Low: vals[2], High: vals[3]})
	}
	return c, nil
}

package curve

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/interp"
)

// DegenerateCurveError reports a branch line too collapsed to orient
type DegenerateCurveError struct {
	// Points is the number of points in the offending line
	Points int

	// Reason describes what made the line unusable
	Reason string
}

func (e *DegenerateCurveError) Error() string {
	return fmt.Sprintf("degenerate curve with %d points: %s", e.Points, e.Reason)
}

// Curve is a fitted branch centerline
type Curve struct {
	// Points are the resampled positions along the centerline
	Points []r3.Vector

	// Tangents are unit direction vectors, one per point, oriented with
	// increasing parameter
	Tangents []r3.Vector
}

// ArcLength returns the length of the sampled polyline.
func (c *Curve) ArcLength() float64 {
	total := 0.0
	for i := 1; i < len(c.Points); i++ {
		total += c.Points[i].Sub(c.Points[i-1]).Norm()
	}
	return total
}

// Fitter smooths and resamples branch polylines
type Fitter struct {
	// SmoothSigma is the Gaussian smoothing width in voxel units;
	// zero disables smoothing
	SmoothSigma float64

	// DensifyPasses is how many midpoint insertion rounds run before
	// smoothing
	DensifyPasses int

	// ResampleFactor scales the output sample count relative to the
	// input point count
	ResampleFactor float64
}

// NewFitter returns a fitter with the default parameters.
func NewFitter() *Fitter {
	return &Fitter{
		SmoothSigma:    2.0,
		DensifyPasses:  1,
		ResampleFactor: 1.0,
	}
}

// Fit turns a branch polyline into a smooth resampled curve with unit
// tangents. Lines of one or two points skip fitting and use the chord
// direction directly. The fallback direction stands in wherever the line
// itself yields no usable tangent, typically the parent's direction at the
// junction; when that fails too, Fit returns a DegenerateCurveError.
func (f *Fitter) Fit(points []r3.Vector, fallback r3.Vector) (*Curve, error) {
	switch len(points) {
	case 0:
		return nil, &DegenerateCurveError{Points: 0, Reason: "empty line"}
	case 1, 2:
		return chordCurve(points, fallback)
	}

	work := append([]r3.Vector(nil), points...)
	for i := 0; i < f.DensifyPasses; i++ {
		work = densify(work)
	}
	if f.SmoothSigma > 0 {
		work = gaussianSmooth(work, f.SmoothSigma)
	}
	work = dedup(work)
	if len(work) < 3 {
		// The line collapsed onto itself; treat what is left as a chord
		return chordCurve(work, fallback)
	}

	// Chordal parameterization keeps the per-axis splines well conditioned
	params := make([]float64, len(work))
	for i := 1; i < len(work); i++ {
		params[i] = params[i-1] + work[i].Sub(work[i-1]).Norm()
	}
	xs := make([]float64, len(work))
	ys := make([]float64, len(work))
	zs := make([]float64, len(work))
	for i, p := range work {
		xs[i], ys[i], zs[i] = p.X, p.Y, p.Z
	}

	var sx, sy, sz interp.AkimaSpline
	if err := sx.Fit(params, xs); err != nil {
		return nil, fmt.Errorf("failed to fit curve: %v", err)
	}
	if err := sy.Fit(params, ys); err != nil {
		return nil, fmt.Errorf("failed to fit curve: %v", err)
	}
	if err := sz.Fit(params, zs); err != nil {
		return nil, fmt.Errorf("failed to fit curve: %v", err)
	}

	n := f.sampleCount(len(points))
	total := params[len(params)-1]
	out := make([]r3.Vector, n)
	for i := 0; i < n; i++ {
		t := total * float64(i) / float64(n-1)
		out[i] = r3.Vector{X: sx.Predict(t), Y: sy.Predict(t), Z: sz.Predict(t)}
	}

	tangents, err := tangentsOf(out, fallback)
	if err != nil {
		return nil, err
	}
	return &Curve{Points: out, Tangents: tangents}, nil
}

func (f *Fitter) sampleCount(input int) int {
	factor := f.ResampleFactor
	if factor <= 0 {
		factor = 1
	}
	n := int(math.Round(factor * float64(input)))
	if n < 2 {
		n = 2
	}
	return n
}

// chordCurve handles lines too short to spline.
func chordCurve(points []r3.Vector, fallback r3.Vector) (*Curve, error) {
	out := append([]r3.Vector(nil), points...)
	if len(out) == 1 {
		dir, ok := unit(fallback)
		if !ok {
			return nil, &DegenerateCurveError{Points: 1, Reason: "single point with no usable direction"}
		}
		return &Curve{Points: out, Tangents: []r3.Vector{dir}}, nil
	}

	dir, ok := unit(out[len(out)-1].Sub(out[0]))
	if !ok {
		if dir, ok = unit(fallback); !ok {
			return nil, &DegenerateCurveError{Points: len(out), Reason: "coincident points with no usable direction"}
		}
	}
	tangents := make([]r3.Vector, len(out))
	for i := range tangents {
		tangents[i] = dir
	}
	return &Curve{Points: out, Tangents: tangents}, nil
}

// densify inserts the midpoint of every consecutive pair.
func densify(points []r3.Vector) []r3.Vector {
	if len(points) < 2 {
		return points
	}
	out := make([]r3.Vector, 0, 2*len(points)-1)
	for i := 0; i < len(points)-1; i++ {
		out = append(out, points[i])
		out = append(out, points[i].Add(points[i+1]).Mul(0.5))
	}
	return append(out, points[len(points)-1])
}

// gaussianSmooth convolves each coordinate with a discrete Gaussian kernel,
// reflecting the line at its ends.
func gaussianSmooth(points []r3.Vector, sigma float64) []r3.Vector {
	radius := int(3*sigma + 0.5)
	n := len(points)
	if radius < 1 || n < 3 {
		return points
	}

	kernel := make([]float64, 2*radius+1)
	sum := 0.0
	for i := range kernel {
		d := float64(i - radius)
		kernel[i] = math.Exp(-d * d / (2 * sigma * sigma))
		sum += kernel[i]
	}
	for i := range kernel {
		kernel[i] /= sum
	}

	out := make([]r3.Vector, n)
	for i := range points {
		var acc r3.Vector
		for k, w := range kernel {
			j := i + k - radius
			for j < 0 || j >= n {
				if j < 0 {
					j = -j - 1
				}
				if j >= n {
					j = 2*n - j - 1
				}
			}
			acc = acc.Add(points[j].Mul(w))
		}
		out[i] = acc
	}
	return out
}

// dedup drops consecutive near-coincident points so the chordal parameters
// stay strictly increasing.
func dedup(points []r3.Vector) []r3.Vector {
	out := make([]r3.Vector, 0, len(points))
	out = append(out, points[0])
	for _, p := range points[1:] {
		if p.Sub(out[len(out)-1]).Norm() < 1e-9 {
			continue
		}
		out = append(out, p)
	}
	return out
}

// tangentsOf differentiates the sampled points with central differences,
// one sided at the ends. A zero-length difference inherits the previous
// tangent, then the fallback.
func tangentsOf(points []r3.Vector, fallback r3.Vector) ([]r3.Vector, error) {
	n := len(points)
	tangents := make([]r3.Vector, n)
	prev, hasPrev := unit(fallback)
	for i := 0; i < n; i++ {
		var d r3.Vector
		switch {
		case i == 0:
			d = points[1].Sub(points[0])
		case i == n-1:
			d = points[n-1].Sub(points[n-2])
		default:
			d = points[i+1].Sub(points[i-1])
		}
		if dir, ok := unit(d); ok {
			tangents[i] = dir
			prev, hasPrev = dir, true
			continue
		}
		if !hasPrev {
			return nil, &DegenerateCurveError{Points: n, Reason: "no usable direction at the line start"}
		}
		tangents[i] = prev
	}
	return tangents, nil
}

// unit normalizes v, reporting whether the result is usable.
func unit(v r3.Vector) (r3.Vector, bool) {
	n := v.Norm()
	if n < 1e-12 || math.IsNaN(n) || math.IsInf(n, 0) {
		return r3.Vector{}, false
	}
	return v.Mul(1 / n), true
}

// Package geo provides the envelope (bounding-box) algebra the R-tree core
// is built on, plus the GeometryEncoder capability the core uses to derive
// envelopes from, and refine predicates against, the geometries a host
// graph stores.
package geo

import "fmt"

// Envelope is a 2-D axis-aligned bounding box stored, by convention, as
// [xmin, xmax, ymin, ymax]. This ordering is deliberate and must be used
// consistently everywhere a bbox crosses a package boundary: the original
// source this core was distilled from mixes this ordering with
// [minx, miny, maxx, maxy] in places, which is exactly the kind of bug
// this core does not reproduce.
type Envelope [4]float64

// NewEnvelope builds an Envelope from its four components in the
// documented [xmin, xmax, ymin, ymax] order.
func NewEnvelope(xmin, xmax, ymin, ymax float64) Envelope {
	return Envelope{xmin, xmax, ymin, ymax}
}

// NullEnvelope returns an envelope that IsNull.
func NullEnvelope() Envelope {
	return Envelope{1, 0, 0, 0}
}

func (e Envelope) Xmin() float64 { return e[0] }
func (e Envelope) Xmax() float64 { return e[1] }
func (e Envelope) Ymin() float64 { return e[2] }
func (e Envelope) Ymax() float64 { return e[3] }

// IsNull reports whether e carries no area at all, per the convention
// xmax < xmin. A zero-valued Envelope is NOT null under this convention;
// callers that need a null envelope must use NullEnvelope.
func (e Envelope) IsNull() bool {
	return e[1] < e[0]
}

// Area returns |xmax-xmin| * |ymax-ymin|. A null envelope has zero area.
func (e Envelope) Area() float64 {
	if e.IsNull() {
		return 0
	}
	return absf(e[1]-e[0]) * absf(e[3]-e[2])
}

// CoversPoint reports whether (x, y) lies within e, inclusive of the
// boundary. A null envelope covers nothing.
func (e Envelope) CoversPoint(x, y float64) bool {
	if e.IsNull() {
		return false
	}
	return e[0] <= x && x <= e[1] && e[2] <= y && y <= e[3]
}

// Intersects reports whether e and o share any point.
func (e Envelope) Intersects(o Envelope) bool {
	if e.IsNull() || o.IsNull() {
		return false
	}
	if e[1] < o[0] || o[1] < e[0] {
		return false
	}
	if e[3] < o[2] || o[3] < e[2] {
		return false
	}
	return true
}

// Covers reports whether e fully contains o.
func (e Envelope) Covers(o Envelope) bool {
	if o.IsNull() {
		return true
	}
	if e.IsNull() {
		return false
	}
	return e[0] <= o[0] && o[1] <= e[1] && e[2] <= o[2] && o[3] <= e[3]
}

// Expand returns the smallest envelope containing both e and o. If o is
// null, e is returned unchanged; if e is null, o is returned unchanged.
func (e Envelope) Expand(o Envelope) Envelope {
	if o.IsNull() {
		return e
	}
	if e.IsNull() {
		return o
	}
	return Envelope{
		min(e[0], o[0]),
		max(e[1], o[1]),
		min(e[2], o[2]),
		max(e[3], o[3]),
	}
}

// Enlargement returns the increase in area incurred by expanding e to
// also cover o — the cost chooseSubtree and quadratic split both
// minimise.
func (e Envelope) Enlargement(o Envelope) float64 {
	return e.Expand(o).Area() - e.Area()
}

// DeadSpace returns the area wasted by grouping e and o together: the
// area of their union minus the sum of their own areas. Quadratic split's
// seed-picking step maximises this.
func (e Envelope) DeadSpace(o Envelope) float64 {
	return e.Expand(o).Area() - e.Area() - o.Area()
}

// Centroid returns the center point of e, used as the stable point
// representative for chooseSubtree when no x/y properties are available
// on the geometry vertex (see §9 open issue on point representatives).
func (e Envelope) Centroid() (x, y float64) {
	return (e[0] + e[1]) / 2, (e[2] + e[3]) / 2
}

func (e Envelope) String() string {
	return fmt.Sprintf("[%g, %g, %g, %g]", e[0], e[1], e[2], e[3])
}

// Slice returns e's four components in the persisted property order.
func (e Envelope) Slice() []float64 {
	return []float64{e[0], e[1], e[2], e[3]}
}

// FromSlice reconstructs an Envelope from a 4-element slice in
// [xmin, xmax, ymin, ymax] order, as read back from a vertex's bbox
// property. It returns an error wrapping ErrBadWidth if the slice isn't
// exactly 4 elements wide — the EncoderMismatch case of §7.
func FromSlice(v []float64) (Envelope, error) {
	if len(v) != 4 {
		return Envelope{}, fmt.Errorf("%w: got %d components, want 4", ErrBadWidth, len(v))
	}
	return Envelope{v[0], v[1], v[2], v[3]}, nil
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

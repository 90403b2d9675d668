package geo

import "github.com/paulmach/orb"

// Intersects refines the coarse bbox-intersects test of §4.6 into an
// actual geometric test between a query window and a decoded geometry.
// orb deliberately ships no general geometry-geometry intersection
// predicate (its planar package only offers area/distance/centroid), so
// this implements the standard segment/containment test by hand: the two
// shapes intersect iff either contains a vertex of the other, or any pair
// of their edges cross.
func Intersects(window Envelope, g Geometry) bool {
	if window.IsNull() {
		return false
	}
	wr := windowRing(window)

	switch shape := g.Coords.(type) {
	case orb.Point:
		return window.CoversPoint(shape[0], shape[1])
	case orb.MultiPoint:
		for _, p := range shape {
			if window.CoversPoint(p[0], p[1]) {
				return true
			}
		}
		return false
	case orb.LineString:
		return ringIntersectsLine(wr, shape, true)
	case orb.MultiLineString:
		for _, ls := range shape {
			if ringIntersectsLine(wr, ls, true) {
				return true
			}
		}
		return false
	case orb.Polygon:
		return ringIntersectsPolygon(wr, shape)
	case orb.MultiPolygon:
		for _, poly := range shape {
			if ringIntersectsPolygon(wr, poly) {
				return true
			}
		}
		return false
	default:
		// Unknown geometry kind: fall back to the bbox test already done
		// by the caller before refinement was invoked.
		return EnvelopeOf(g.Bound()).Intersects(window)
	}
}

func windowRing(e Envelope) orb.Ring {
	return orb.Ring{
		{e.Xmin(), e.Ymin()},
		{e.Xmax(), e.Ymin()},
		{e.Xmax(), e.Ymax()},
		{e.Xmin(), e.Ymax()},
		{e.Xmin(), e.Ymin()},
	}
}

func ringIntersectsPolygon(window orb.Ring, poly orb.Polygon) bool {
	if len(poly) == 0 {
		return false
	}
	outer := poly[0]
	// Any polygon vertex inside the window, or any window vertex inside
	// the polygon's outer ring, or any pair of edges crossing.
	for _, p := range outer {
		if pointInRing(p, window) {
			return true
		}
	}
	for _, p := range window {
		if pointInRing(p, outer) {
			return true
		}
	}
	return ringIntersectsLine(window, orb.LineString(outer), false)
}

func ringIntersectsLine(window orb.Ring, line orb.LineString, checkVertices bool) bool {
	if checkVertices {
		for _, p := range line {
			if pointInRing(p, window) {
				return true
			}
		}
	}
	for i := 0; i+1 < len(line); i++ {
		a, b := line[i], line[i+1]
		for j := 0; j+1 < len(window); j++ {
			c, d := window[j], window[j+1]
			if segmentsIntersect(a, b, c, d) {
				return true
			}
		}
	}
	return false
}

// pointInRing is a standard even-odd ray-casting point-in-polygon test.
func pointInRing(p orb.Point, ring orb.Ring) bool {
	inside := false
	n := len(ring)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		pi, pj := ring[i], ring[j]
		if (pi[1] > p[1]) != (pj[1] > p[1]) &&
			p[0] < (pj[0]-pi[0])*(p[1]-pi[1])/(pj[1]-pi[1])+pi[0] {
			inside = !inside
		}
	}
	return inside
}

func segmentsIntersect(a, b, c, d orb.Point) bool {
	d1 := cross(c, d, a)
	d2 := cross(c, d, b)
	d3 := cross(a, b, c)
	d4 := cross(a, b, d)

	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}
	if d1 == 0 && onSegment(c, d, a) {
		return true
	}
	if d2 == 0 && onSegment(c, d, b) {
		return true
	}
	if d3 == 0 && onSegment(a, b, c) {
		return true
	}
	if d4 == 0 && onSegment(a, b, d) {
		return true
	}
	return false
}

func cross(a, b, p orb.Point) float64 {
	return (b[0]-a[0])*(p[1]-a[1]) - (b[1]-a[1])*(p[0]-a[0])
}

func onSegment(a, b, p orb.Point) bool {
	return min(a[0], b[0]) <= p[0] && p[0] <= max(a[0], b[0]) &&
		min(a[1], b[1]) <= p[1] && p[1] <= max(a[1], b[1])
}

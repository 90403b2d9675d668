package geo

import (
	"context"

	"github.com/paulmach/orb"
)

// GeometryRef is an opaque handle to a geometry vertex in the host graph.
// The core never interprets it beyond passing it back to the Encoder and
// to the graph adapter (internal/graph.VertexID underlies it in practice).
type GeometryRef interface{}

// Encoder is the pluggable capability the core uses to map a
// geometry-bearing vertex to an envelope and back, and to decode a
// geometry fully for the refinement step of SearchIntersectWindow and the
// CQL predicate dialect. It is the external collaborator §1 calls out as
// out of scope for the core's algorithms — this package supplies one
// concrete, stateless implementation (OrbEncoder) so the core is usable
// standalone, but a host is free to supply its own.
type Encoder interface {
	// DecodeEnvelope returns the envelope of the geometry referenced by ref.
	DecodeEnvelope(ctx context.Context, ref GeometryRef) (Envelope, error)

	// DecodeGeometry fully decodes the geometry referenced by ref, for use
	// by refinement predicates that need more than a bounding box.
	DecodeGeometry(ctx context.Context, ref GeometryRef) (Geometry, error)

	// EncodeGeometry writes g's properties onto target, the inverse of
	// DecodeGeometry.
	EncodeGeometry(ctx context.Context, g Geometry, target GeometryRef) error
}

// Geometry is the decoded form of an indexed geometry. It wraps an orb
// geometry (point, line string, polygon, or a multi- variant) together
// with whatever feature properties the host attached, mirroring
// orb/geojson.Feature without forcing a GeoJSON round-trip when one
// isn't needed.
type Geometry struct {
	Shape      ShapeType
	Coords     orb.Geometry
	Properties map[string]any
}

// Bound returns the envelope of g's coordinates in orb's own
// [Min, Max] convention. Callers that need the core's [xmin, xmax, ymin,
// ymax] convention should go through EnvelopeOf instead.
func (g Geometry) Bound() orb.Bound {
	if g.Coords == nil {
		return orb.Bound{}
	}
	return g.Coords.Bound()
}

// EnvelopeOf converts an orb.Bound into the core's Envelope convention.
func EnvelopeOf(b orb.Bound) Envelope {
	return NewEnvelope(b.Min[0], b.Max[0], b.Min[1], b.Max[1])
}

// ShapeType enumerates the geometry kinds the encoder recognises, mapping
// onto the layer's gtype property.
type ShapeType int

const (
	ShapeUnknown ShapeType = iota
	ShapePoint
	ShapeLineString
	ShapePolygon
	ShapeMultiPoint
	ShapeMultiLineString
	ShapeMultiPolygon
)

func (s ShapeType) String() string {
	switch s {
	case ShapePoint:
		return "point"
	case ShapeLineString:
		return "linestring"
	case ShapePolygon:
		return "polygon"
	case ShapeMultiPoint:
		return "multipoint"
	case ShapeMultiLineString:
		return "multilinestring"
	case ShapeMultiPolygon:
		return "multipolygon"
	default:
		return "unknown"
	}
}

package geo

import (
	"context"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// geojsonProperty is the fixed property key under which OrbEncoder stores
// a geometry vertex's full GeoJSON feature. Coordinates and feature
// properties both live here; the layer's own gtype property (§3) only
// needs to record the coarse shape kind for validation.
const geojsonProperty = "geojson"

// PropertyStore is the narrow slice of the graph adapter's capability set
// (§6) that OrbEncoder needs: read/write a single string property on a
// geometry vertex. internal/graph's Txn implementations satisfy a wider
// interface that is trivially narrowed to this one at the call site,
// keeping this package free of a dependency on internal/graph.
type PropertyStore interface {
	GetProp(ctx context.Context, ref GeometryRef, key string) (any, bool, error)
	SetProp(ctx context.Context, ref GeometryRef, key string, val any) error
}

// OrbEncoder is the default GeometryEncoder, backed by paulmach/orb and
// its GeoJSON codec. It is stateless beyond the PropertyStore handle, so
// a single instance may be shared across layers and goroutines per §5.
type OrbEncoder struct {
	props PropertyStore
}

// NewOrbEncoder builds an OrbEncoder over the given property store.
func NewOrbEncoder(props PropertyStore) *OrbEncoder {
	return &OrbEncoder{props: props}
}

func (e *OrbEncoder) readFeature(ctx context.Context, ref GeometryRef) (*geojson.Feature, error) {
	raw, ok, err := e.props.GetProp(ctx, ref, geojsonProperty)
	if err != nil {
		return nil, fmt.Errorf("geo: read geojson property: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("geo: geometry vertex has no %q property", geojsonProperty)
	}
	s, ok := raw.(string)
	if !ok {
		return nil, fmt.Errorf("%w: geojson property is not a string", ErrBadWidth)
	}
	f, err := geojson.UnmarshalFeature([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("geo: unmarshal geojson feature: %w", err)
	}
	return f, nil
}

// DecodeEnvelope implements Encoder.
func (e *OrbEncoder) DecodeEnvelope(ctx context.Context, ref GeometryRef) (Envelope, error) {
	f, err := e.readFeature(ctx, ref)
	if err != nil {
		return Envelope{}, err
	}
	return EnvelopeOf(f.Geometry.Bound()), nil
}

// DecodeGeometry implements Encoder.
func (e *OrbEncoder) DecodeGeometry(ctx context.Context, ref GeometryRef) (Geometry, error) {
	f, err := e.readFeature(ctx, ref)
	if err != nil {
		return Geometry{}, err
	}
	return Geometry{
		Shape:      shapeOf(f.Geometry),
		Coords:     f.Geometry,
		Properties: map[string]any(f.Properties),
	}, nil
}

// EncodeGeometry implements Encoder.
func (e *OrbEncoder) EncodeGeometry(ctx context.Context, g Geometry, target GeometryRef) error {
	f := geojson.NewFeature(g.Coords)
	for k, v := range g.Properties {
		f.Properties[k] = v
	}
	raw, err := f.MarshalJSON()
	if err != nil {
		return fmt.Errorf("geo: marshal geojson feature: %w", err)
	}
	if err := e.props.SetProp(ctx, target, geojsonProperty, string(raw)); err != nil {
		return fmt.Errorf("geo: write geojson property: %w", err)
	}
	return nil
}

func shapeOf(g orb.Geometry) ShapeType {
	switch g.(type) {
	case orb.Point:
		return ShapePoint
	case orb.LineString:
		return ShapeLineString
	case orb.Polygon:
		return ShapePolygon
	case orb.MultiPoint:
		return ShapeMultiPoint
	case orb.MultiLineString:
		return ShapeMultiLineString
	case orb.MultiPolygon:
		return ShapeMultiPolygon
	default:
		return ShapeUnknown
	}
}

package search

import (
	"context"

	"github.com/skanjila/neo4j-spatial/geo"
	"github.com/skanjila/neo4j-spatial/internal/graph"
)

// collectVisitor backs All: no pruning, every reference is kept.
type collectVisitor struct {
	refs []graph.VertexID
}

func (v *collectVisitor) NeedsToVisit(geo.Envelope) bool { return true }

func (v *collectVisitor) OnIndexReference(_ context.Context, ref graph.VertexID) error {
	v.refs = append(v.refs, ref)
	return nil
}

// intersectWindowVisitor backs IntersectWindow (§4.6): prune by bbox
// intersection, then on a reference accept outright if window covers its
// bbox, otherwise decode and apply the exact geometry test.
type intersectWindowVisitor struct {
	ctx    context.Context
	txn    graph.Txn
	enc    geo.Encoder
	window geo.Envelope
	refs   []graph.VertexID
}

func (v *intersectWindowVisitor) NeedsToVisit(bbox geo.Envelope) bool {
	return v.window.Intersects(bbox)
}

func (v *intersectWindowVisitor) OnIndexReference(ctx context.Context, ref graph.VertexID) error {
	bbox, err := v.enc.DecodeEnvelope(ctx, ref)
	if err != nil {
		return err
	}
	if !v.window.Intersects(bbox) {
		return nil
	}
	if v.window.Covers(bbox) {
		v.refs = append(v.refs, ref)
		return nil
	}
	g, err := v.enc.DecodeGeometry(ctx, ref)
	if err != nil {
		return err
	}
	if geo.Intersects(v.window, g) {
		v.refs = append(v.refs, ref)
	}
	return nil
}

// abstractIntersectionVisitor backs AbstractIntersection: prune by bbox
// intersection against queryBBox, then dispatch every surviving
// reference to the caller-supplied Refiner.
type abstractIntersectionVisitor struct {
	ctx       context.Context
	txn       graph.Txn
	enc       geo.Encoder
	queryBBox geo.Envelope
	refine    Refiner
	refs      []graph.VertexID
}

func (v *abstractIntersectionVisitor) NeedsToVisit(bbox geo.Envelope) bool {
	return v.queryBBox.Intersects(bbox)
}

func (v *abstractIntersectionVisitor) OnIndexReference(ctx context.Context, ref graph.VertexID) error {
	bbox, err := v.enc.DecodeEnvelope(ctx, ref)
	if err != nil {
		return err
	}
	if !v.queryBBox.Intersects(bbox) {
		return nil
	}
	g, err := v.enc.DecodeGeometry(ctx, ref)
	if err != nil {
		return err
	}
	ok, err := v.refine.OnEnvelopeIntersection(ctx, g, bbox)
	if err != nil {
		return err
	}
	if ok {
		v.refs = append(v.refs, ref)
	}
	return nil
}

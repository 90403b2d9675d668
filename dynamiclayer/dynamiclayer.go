package dynamiclayer

import (
	"context"

	"github.com/skanjila/neo4j-spatial/geo"
	"github.com/skanjila/neo4j-spatial/internal/graph"
	"github.com/skanjila/neo4j-spatial/internal/rtree"
	pkgerrors "github.com/skanjila/neo4j-spatial/pkg/errors"
)

// Layer is a read-only, predicate-filtered view over a base index's
// existing root (§4.7): it shares the base's tree entirely and narrows
// what traversal reports at the leaves, never duplicating or mutating
// data. Writes through a Layer are rejected with ReadOnlyView.
type Layer struct {
	Name      string
	Config    graph.VertexID
	base      *rtree.Index
	predicate Predicate
}

// CreateLayerConfig persists a new LAYER_CONFIG vertex under baseLayer
// holding name and predicateText, wired in with an outgoing
// LAYER_CONFIG edge from the base layer vertex.
func CreateLayerConfig(ctx context.Context, txn graph.Txn, baseLayer graph.VertexID, name, predicateText string) (graph.VertexID, error) {
	cfg, err := txn.CreateVertex(ctx)
	if err != nil {
		return 0, err
	}
	if err := txn.SetProp(ctx, cfg, "name", name); err != nil {
		return 0, err
	}
	if err := txn.SetProp(ctx, cfg, graph.PropQuery, predicateText); err != nil {
		return 0, err
	}
	if _, err := txn.Connect(ctx, baseLayer, cfg, graph.EdgeLayerConfig); err != nil {
		return 0, err
	}
	return cfg, nil
}

// Open builds a Layer from a persisted LAYER_CONFIG vertex, sharing
// base's already-loaded Index rather than building one of its own.
func Open(ctx context.Context, txn graph.Txn, base *rtree.Index, config graph.VertexID) (*Layer, error) {
	nameVal, _, err := txn.GetProp(ctx, config, "name")
	if err != nil {
		return nil, err
	}
	queryVal, ok, err := txn.GetProp(ctx, config, graph.PropQuery)
	if err != nil {
		return nil, err
	}
	predicateText := ""
	if ok {
		predicateText, _ = queryVal.(string)
	}
	pred, err := Parse(predicateText)
	if err != nil {
		return nil, err
	}
	name, _ := nameVal.(string)
	return &Layer{Name: name, Config: config, base: base, predicate: pred}, nil
}

// New builds a Layer directly from an already-parsed predicate, for
// callers that don't need the config vertex persisted (e.g. a one-off
// filtered search).
func New(name string, base *rtree.Index, predicate Predicate) *Layer {
	return &Layer{Name: name, base: base, predicate: predicate}
}

// Add always fails: a dynamic layer is a read-only view over its base.
func (l *Layer) Add(context.Context, graph.Txn, geo.Encoder, graph.VertexID) error {
	return pkgerrors.ErrReadOnlyView
}

// Remove always fails: a dynamic layer is a read-only view over its base.
func (l *Layer) Remove(context.Context, graph.Txn, geo.Encoder, graph.VertexID, bool) error {
	return pkgerrors.ErrReadOnlyView
}

// Visit drives the base index's traversal, narrowing what reaches v to
// only the geometries this layer's predicate accepts.
func (l *Layer) Visit(ctx context.Context, txn graph.Txn, enc geo.Encoder, v rtree.Visitor) error {
	fv := &filterVisitor{txn: txn, enc: enc, predicate: l.predicate, inner: v}
	return l.base.Visit(ctx, txn, l.base.Root(), fv)
}

// Count recomputes the number of geometries the predicate accepts by
// walking the base tree. A dynamic layer holds no metadata vertex of
// its own, so unlike the base index this is never cached.
func (l *Layer) Count(ctx context.Context, txn graph.Txn, enc geo.Encoder) (int, error) {
	counter := &countingVisitor{}
	if err := l.Visit(ctx, txn, enc, counter); err != nil {
		return 0, err
	}
	return counter.n, nil
}

// filterVisitor wraps an inner visitor, evaluating predicate against
// each leaf reference before delegating (§4.7's onIndexReference
// post-filter). NeedsToVisit is passed straight through to the inner
// visitor: a dynamic layer never prunes by bbox on its own, since its
// predicate only speaks to vertex/feature properties.
type filterVisitor struct {
	txn       graph.Txn
	enc       geo.Encoder
	predicate Predicate
	inner     rtree.Visitor
}

func (f *filterVisitor) NeedsToVisit(bbox geo.Envelope) bool {
	return f.inner.NeedsToVisit(bbox)
}

func (f *filterVisitor) OnIndexReference(ctx context.Context, ref graph.VertexID) error {
	ok, err := f.predicate.Match(ctx, f.txn, f.enc, ref)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	return f.inner.OnIndexReference(ctx, ref)
}

type countingVisitor struct{ n int }

func (c *countingVisitor) NeedsToVisit(geo.Envelope) bool { return true }

func (c *countingVisitor) OnIndexReference(context.Context, graph.VertexID) error {
	c.n++
	return nil
}

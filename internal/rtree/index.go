// Package rtree implements the height-balanced R-tree held inside the
// host property-graph store: the tree store, the quadratic-split insert
// path, the underflow-aware delete path, and the traversal/visitor
// protocol that search and the dynamic layer are built on. It talks to
// the graph only through the internal/graph capability interfaces, and
// to geometries only through a geo.Encoder — it never assumes anything
// about the concrete host behind either.
package rtree

import (
	"context"

	"github.com/skanjila/neo4j-spatial/geo"
	"github.com/skanjila/neo4j-spatial/internal/graph"
	"github.com/skanjila/neo4j-spatial/pkg/utils"
)

// Index is one logical layer's R-tree: its root and metadata vertex
// handles, its fanout bounds, and a process-local cache of
// totalGeometryCount. It holds no transaction state of its own —
// callers pass a graph.Txn into every operation except the handful
// (RemoveAll, the batching traversal) that must open several short
// transactions themselves, for which Index keeps a graph.Store handle.
type Index struct {
	store graph.Store
	log   utils.Logger

	Layer    graph.VertexID
	metadata graph.VertexID
	root     graph.VertexID

	maxChildren int
	minChildren int

	totalGeometryCount int
	dirty              bool
}

// NewIndex builds an Index bound to the given layer vertex. Init or Load
// must be called before any other method.
func NewIndex(store graph.Store, layer graph.VertexID, log utils.Logger) *Index {
	if log == nil {
		log = &utils.NullLogger{}
	}
	return &Index{store: store, log: log, Layer: layer}
}

// Root returns the current root vertex. Valid only after Init or Load.
func (ix *Index) Root() graph.VertexID { return ix.root }

// MaxChildren returns the configured fanout upper bound.
func (ix *Index) MaxChildren() int { return ix.maxChildren }

// MinChildren returns the configured fanout lower bound.
func (ix *Index) MinChildren() int { return ix.minChildren }

// Init lazily creates the metadata and root vertices for a brand-new
// layer (initRoot/initMetadata). It must only be called once per layer.
func (ix *Index) Init(ctx context.Context, txn graph.Txn, maxChildren, minChildren int) error {
	meta, err := txn.CreateVertex(ctx)
	if err != nil {
		return wrapHost(err)
	}
	if err := txn.SetProp(ctx, meta, graph.PropMaxRefs, maxChildren); err != nil {
		return wrapHost(err)
	}
	if err := txn.SetProp(ctx, meta, graph.PropMinRefs, minChildren); err != nil {
		return wrapHost(err)
	}
	if err := txn.SetProp(ctx, meta, graph.PropTotalCount, 0); err != nil {
		return wrapHost(err)
	}
	if _, err := txn.Connect(ctx, ix.Layer, meta, graph.EdgeMetadata); err != nil {
		return wrapHost(err)
	}

	root, err := txn.CreateVertex(ctx)
	if err != nil {
		return wrapHost(err)
	}
	if _, err := txn.Connect(ctx, ix.Layer, root, graph.EdgeRoot); err != nil {
		return wrapHost(err)
	}

	ix.metadata = meta
	ix.root = root
	ix.maxChildren = maxChildren
	ix.minChildren = minChildren
	ix.totalGeometryCount = 0
	ix.dirty = false
	return nil
}

// Load resolves an existing layer's metadata and root vertices and reads
// back its fanout parameters and cached count.
func (ix *Index) Load(ctx context.Context, txn graph.Txn) error {
	metaEdge, err := txn.SingleOut(ctx, ix.Layer, graph.EdgeMetadata)
	if err != nil {
		return invariantf("layer %d has no metadata vertex: %v", ix.Layer, err)
	}
	ix.metadata = metaEdge.Dst

	rootEdge, err := txn.SingleOut(ctx, ix.Layer, graph.EdgeRoot)
	if err != nil {
		return invariantf("layer %d has no root vertex: %v", ix.Layer, err)
	}
	ix.root = rootEdge.Dst

	maxV, _, err := txn.GetProp(ctx, ix.metadata, graph.PropMaxRefs)
	if err != nil {
		return wrapHost(err)
	}
	minV, _, err := txn.GetProp(ctx, ix.metadata, graph.PropMinRefs)
	if err != nil {
		return wrapHost(err)
	}
	cntV, _, err := txn.GetProp(ctx, ix.metadata, graph.PropTotalCount)
	if err != nil {
		return wrapHost(err)
	}
	ix.maxChildren = toInt(maxV)
	ix.minChildren = toInt(minV)
	ix.totalGeometryCount = toInt(cntV)
	ix.dirty = false
	return nil
}

// Count returns the cached totalGeometryCount, saving it to the
// metadata vertex first if dirty. If the cached value is zero and
// dirty, it performs a full recount within the caller's transaction
// before trusting it — guarding against a lost write to the metadata
// vertex. This walks the tree with the transaction already in hand
// rather than opening new ones, since a caller holding txn open is
// exactly the situation Count is normally invoked from and a
// single-writer host would deadlock on a nested Begin.
func (ix *Index) Count(ctx context.Context, txn graph.Txn) (int, error) {
	if !ix.dirty {
		return ix.totalGeometryCount, nil
	}
	if ix.totalGeometryCount == 0 {
		n, err := ix.recountViaTxn(ctx, txn, ix.root)
		if err != nil {
			return 0, err
		}
		ix.totalGeometryCount = n
	}
	if err := txn.SetProp(ctx, ix.metadata, graph.PropTotalCount, ix.totalGeometryCount); err != nil {
		return 0, wrapHost(err)
	}
	ix.dirty = false
	return ix.totalGeometryCount, nil
}

// recountViaTxn walks the subtree rooted at node inside the caller's
// already-open transaction.
func (ix *Index) recountViaTxn(ctx context.Context, txn graph.Txn, node graph.VertexID) (int, error) {
	children, err := txn.IterateOut(ctx, node, graph.EdgeChild)
	if err != nil {
		return 0, wrapHost(err)
	}
	if len(children) > 0 {
		total := 0
		for _, c := range children {
			n, err := ix.recountViaTxn(ctx, txn, c.Dst)
			if err != nil {
				return 0, err
			}
			total += n
		}
		return total, nil
	}
	refs, err := txn.IterateOut(ctx, node, graph.EdgeReference)
	if err != nil {
		return 0, wrapHost(err)
	}
	return len(refs), nil
}

// MarkDirty invalidates the counter cache, e.g. after a transaction that
// mutated the tree was rolled back by the caller.
func (ix *Index) MarkDirty() { ix.dirty = true }

func (ix *Index) readBBox(ctx context.Context, txn graph.Txn, v graph.VertexID) (geo.Envelope, error) {
	raw, ok, err := txn.GetProp(ctx, v, graph.PropBBox)
	if err != nil {
		return geo.Envelope{}, wrapHost(err)
	}
	if !ok {
		return geo.NullEnvelope(), nil
	}
	switch t := raw.(type) {
	case []float64:
		e, err := geo.FromSlice(t)
		if err != nil {
			return geo.Envelope{}, encoderMismatch(err)
		}
		return e, nil
	case geo.Envelope:
		return t, nil
	case []any:
		vals := make([]float64, len(t))
		for i, x := range t {
			f, ok := toFloat(x)
			if !ok {
				return geo.Envelope{}, encoderMismatch(invariantf("bbox component %d is not numeric", i))
			}
			vals[i] = f
		}
		e, err := geo.FromSlice(vals)
		if err != nil {
			return geo.Envelope{}, encoderMismatch(err)
		}
		return e, nil
	default:
		return geo.Envelope{}, encoderMismatch(invariantf("bbox property has unrecognised type %T", raw))
	}
}

func (ix *Index) writeBBox(ctx context.Context, txn graph.Txn, v graph.VertexID, e geo.Envelope) error {
	return wrapHost(txn.SetProp(ctx, v, graph.PropBBox, e.Slice()))
}

func toInt(v any) int {
	switch t := v.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case float64:
		return int(t)
	default:
		return 0
	}
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	default:
		return 0, false
	}
}

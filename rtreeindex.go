// Package rtreeindex is the public facade over the whole R-tree core: it
// ties the graph adapter, tree store, search façade, and dynamic layer
// together, owning the one concern none of them own individually — the
// transaction lifecycle around a single call. Every exported method
// except RemoveAll and Clear opens exactly one host transaction, runs to
// completion or rolls back, and never leaves one open across a method
// boundary. RemoveAll and Clear open none themselves: the tree store
// they delegate to commits once per leaf and then in short final
// transactions.
package rtreeindex

import (
	"context"
	"io"

	"github.com/paulmach/orb/geojson"

	"github.com/skanjila/neo4j-spatial/dynamiclayer"
	"github.com/skanjila/neo4j-spatial/geo"
	"github.com/skanjila/neo4j-spatial/internal/graph"
	"github.com/skanjila/neo4j-spatial/internal/rtree"
	"github.com/skanjila/neo4j-spatial/pkg/utils"
	"github.com/skanjila/neo4j-spatial/pkg/writer"
	"github.com/skanjila/neo4j-spatial/search"
)

// Index is the entry point into a host graph's set of R-tree layers. It
// holds the graph.Store handle every operation needs and builds a fresh
// geo.Encoder, bound to whichever transaction is open, for every call —
// OrbEncoder is stateless but must be narrowed to the transaction at
// hand, since that's where its property reads and writes actually land.
type Index struct {
	store graph.Store
	log   utils.Logger
}

// Open binds an Index to an existing host graph store.
func Open(store graph.Store, log utils.Logger) *Index {
	if log == nil {
		log = &utils.NullLogger{}
	}
	return &Index{store: store, log: log}
}

// CreateLayer creates a new, empty layer vertex and initialises its
// R-tree (metadata and root vertices) in a single transaction.
func (ix *Index) CreateLayer(ctx context.Context, name string, gtype geo.ShapeType, maxChildren, minChildren int) (*Layer, error) {
	var tree *rtree.Index
	var layerVertex graph.VertexID

	err := ix.withTxn(ctx, func(txn graph.Txn, _ geo.Encoder) error {
		v, err := txn.CreateVertex(ctx)
		if err != nil {
			return err
		}
		if err := txn.SetProp(ctx, v, "name", name); err != nil {
			return err
		}
		if err := txn.SetProp(ctx, v, graph.PropGType, int(gtype)); err != nil {
			return err
		}
		t := rtree.NewIndex(ix.store, v, ix.log)
		if err := t.Init(ctx, txn, maxChildren, minChildren); err != nil {
			return err
		}
		tree, layerVertex = t, v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &Layer{idx: ix, tree: tree, Vertex: layerVertex}, nil
}

// OpenLayer resolves an existing layer vertex's R-tree state.
func (ix *Index) OpenLayer(ctx context.Context, layerVertex graph.VertexID) (*Layer, error) {
	tree := rtree.NewIndex(ix.store, layerVertex, ix.log)
	err := ix.withTxn(ctx, func(txn graph.Txn, _ geo.Encoder) error {
		return tree.Load(ctx, txn)
	})
	if err != nil {
		return nil, err
	}
	return &Layer{idx: ix, tree: tree, Vertex: layerVertex}, nil
}

func (ix *Index) newEncoder(txn graph.Txn) geo.Encoder {
	return geo.NewOrbEncoder(&txnPropertyStore{txn: txn})
}

func (ix *Index) withTxn(ctx context.Context, fn func(txn graph.Txn, enc geo.Encoder) error) error {
	txn, err := ix.store.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(txn, ix.newEncoder(txn)); err != nil {
		_ = txn.Finish(ctx)
		return err
	}
	txn.Success()
	return txn.Finish(ctx)
}

// txnPropertyStore narrows a graph.Txn to geo.PropertyStore, converting
// a geo.GeometryRef back to a graph.VertexID at the boundary OrbEncoder
// crosses to reach the host graph.
type txnPropertyStore struct {
	txn graph.Txn
}

func (p *txnPropertyStore) GetProp(ctx context.Context, ref geo.GeometryRef, key string) (any, bool, error) {
	return p.txn.GetProp(ctx, ref.(graph.VertexID), key)
}

func (p *txnPropertyStore) SetProp(ctx context.Context, ref geo.GeometryRef, key string, val any) error {
	return p.txn.SetProp(ctx, ref.(graph.VertexID), key, val)
}

// Layer is one logical R-tree layer: its tree store plus the enclosing
// Index used to open transactions and build encoders for each call.
type Layer struct {
	idx    *Index
	tree   *rtree.Index
	Vertex graph.VertexID
}

// Add indexes geomRef. The geometry it references must already carry
// whatever properties the encoder needs to decode it (typically written
// by a prior EncodeGeometry call against the same vertex).
func (l *Layer) Add(ctx context.Context, geomRef graph.VertexID) error {
	return l.idx.withTxn(ctx, func(txn graph.Txn, enc geo.Encoder) error {
		return l.tree.Add(ctx, txn, enc, geomRef)
	})
}

// AddGeometry creates a new vertex for g, encodes it, indexes it, and
// returns the vertex so the caller can attach further host properties.
func (l *Layer) AddGeometry(ctx context.Context, g geo.Geometry) (graph.VertexID, error) {
	var v graph.VertexID
	err := l.idx.withTxn(ctx, func(txn graph.Txn, enc geo.Encoder) error {
		ref, err := txn.CreateVertex(ctx)
		if err != nil {
			return err
		}
		if err := enc.EncodeGeometry(ctx, g, ref); err != nil {
			return err
		}
		if err := l.tree.Add(ctx, txn, enc, ref); err != nil {
			return err
		}
		v = ref
		return nil
	})
	return v, err
}

// Remove unindexes geomRef, optionally deleting the geometry vertex too.
func (l *Layer) Remove(ctx context.Context, geomRef graph.VertexID, deleteGeomNode bool) error {
	return l.idx.withTxn(ctx, func(txn graph.Txn, enc geo.Encoder) error {
		return l.tree.Remove(ctx, txn, enc, geomRef, deleteGeomNode)
	})
}

// Get reports whether geomRef is currently reachable from this layer's
// root, surfacing NotIndexed when it is not.
func (l *Layer) Get(ctx context.Context, geomRef graph.VertexID) error {
	return l.idx.withTxn(ctx, func(txn graph.Txn, _ geo.Encoder) error {
		return l.tree.Get(ctx, txn, geomRef)
	})
}

// Count returns the number of geometries currently indexed.
func (l *Layer) Count(ctx context.Context) (int, error) {
	var n int
	err := l.idx.withTxn(ctx, func(txn graph.Txn, _ geo.Encoder) error {
		var err error
		n, err = l.tree.Count(ctx, txn)
		return err
	})
	return n, err
}

// RemoveAll empties the layer, deleting the geometry vertices too when
// deleteGeomNodes is set, reporting progress to listener.
func (l *Layer) RemoveAll(ctx context.Context, deleteGeomNodes bool, listener utils.Listener) error {
	return l.tree.RemoveAll(ctx, deleteGeomNodes, listener)
}

// Clear empties the layer but keeps its geometry vertices alive.
func (l *Layer) Clear(ctx context.Context, listener utils.Listener) error {
	return l.tree.Clear(ctx, listener)
}

// SearchAll returns every geometry currently indexed.
func (l *Layer) SearchAll(ctx context.Context) ([]graph.VertexID, error) {
	var refs []graph.VertexID
	err := l.idx.withTxn(ctx, func(txn graph.Txn, _ geo.Encoder) error {
		var err error
		refs, err = search.All(ctx, txn, l.tree)
		return err
	})
	return refs, err
}

// SearchIntersectWindow returns every geometry whose shape intersects
// window, per the two-phase bbox-then-geometry test.
func (l *Layer) SearchIntersectWindow(ctx context.Context, window geo.Envelope) ([]graph.VertexID, error) {
	var refs []graph.VertexID
	err := l.idx.withTxn(ctx, func(txn graph.Txn, enc geo.Encoder) error {
		var err error
		refs, err = search.IntersectWindow(ctx, txn, l.tree, enc, window)
		return err
	})
	return refs, err
}

// Dynamic persists a new predicate-filtered sub-layer config under this
// layer and returns it ready to query.
func (l *Layer) Dynamic(ctx context.Context, name, predicateText string) (*dynamiclayer.Layer, error) {
	var dyn *dynamiclayer.Layer
	err := l.idx.withTxn(ctx, func(txn graph.Txn, _ geo.Encoder) error {
		cfg, err := dynamiclayer.CreateLayerConfig(ctx, txn, l.Vertex, name, predicateText)
		if err != nil {
			return err
		}
		dyn, err = dynamiclayer.Open(ctx, txn, l.tree, cfg)
		return err
	})
	return dyn, err
}

// OpenDynamic resolves a previously persisted dynamic sub-layer by its
// LAYER_CONFIG vertex.
func (l *Layer) OpenDynamic(ctx context.Context, config graph.VertexID) (*dynamiclayer.Layer, error) {
	var dyn *dynamiclayer.Layer
	err := l.idx.withTxn(ctx, func(txn graph.Txn, _ geo.Encoder) error {
		var err error
		dyn, err = dynamiclayer.Open(ctx, txn, l.tree, config)
		return err
	})
	return dyn, err
}

// ExportWindow runs SearchIntersectWindow and writes the matching
// geometries to w as a single GeoJSON FeatureCollection.
func (l *Layer) ExportWindow(ctx context.Context, window geo.Envelope, w io.Writer) error {
	fc := geojson.NewFeatureCollection()
	err := l.idx.withTxn(ctx, func(txn graph.Txn, enc geo.Encoder) error {
		refs, err := search.IntersectWindow(ctx, txn, l.tree, enc, window)
		if err != nil {
			return err
		}
		for _, ref := range refs {
			g, err := enc.DecodeGeometry(ctx, ref)
			if err != nil {
				return err
			}
			f := geojson.NewFeature(g.Coords)
			for k, v := range g.Properties {
				f.Properties[k] = v
			}
			fc.Append(f)
		}
		return nil
	})
	if err != nil {
		return err
	}
	return writer.NewPrettyJSONWriter[*geojson.FeatureCollection]().Write(fc, w)
}

// CountDynamic counts how many geometries dyn's predicate currently
// accepts.
func (l *Layer) CountDynamic(ctx context.Context, dyn *dynamiclayer.Layer) (int, error) {
	var n int
	err := l.idx.withTxn(ctx, func(txn graph.Txn, enc geo.Encoder) error {
		var err error
		n, err = dyn.Count(ctx, txn, enc)
		return err
	})
	return n, err
}

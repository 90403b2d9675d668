// Package search implements the named search predicates of the tree's
// visitor contract: an unfiltered scan, a bbox-then-geometry window
// query, and the abstract-intersection base that lets a caller supply
// its own geometry refinement. It never talks to the host graph or a
// geometry encoder directly — everything goes through the rtree.Index
// and geo.Encoder capabilities it's handed.
package search

import (
	"context"

	"github.com/skanjila/neo4j-spatial/geo"
	"github.com/skanjila/neo4j-spatial/internal/graph"
	"github.com/skanjila/neo4j-spatial/internal/rtree"
	"github.com/skanjila/neo4j-spatial/pkg/parallel"
)

// All visits every geometry reachable from ix's root, with no pruning.
func All(ctx context.Context, txn graph.Txn, ix *rtree.Index) ([]graph.VertexID, error) {
	v := &collectVisitor{}
	if err := ix.Visit(ctx, txn, ix.Root(), v); err != nil {
		return nil, err
	}
	return v.refs, nil
}

// IntersectWindow returns every geometry whose shape actually intersects
// window, pruning subtrees whose bbox misses window and, for leaf
// references whose bbox only partially overlaps window, decoding the
// geometry to apply the exact refinement test (geo.Intersects). A leaf
// reference whose bbox window fully covers is accepted without
// decoding, since containment of the bbox already implies intersection.
func IntersectWindow(ctx context.Context, txn graph.Txn, ix *rtree.Index, enc geo.Encoder, window geo.Envelope) ([]graph.VertexID, error) {
	v := &intersectWindowVisitor{ctx: ctx, txn: txn, enc: enc, window: window}
	if err := ix.Visit(ctx, txn, ix.Root(), v); err != nil {
		return nil, err
	}
	return v.refs, nil
}

// Refiner is the subclass hook AbstractIntersection dispatches to once a
// leaf reference's bbox is known to intersect the query geometry's own
// bbox: it decides, from the decoded geometry and its bbox, whether the
// reference actually satisfies whatever relation the caller cares about
// (containment, touches, crosses, ...).
type Refiner interface {
	OnEnvelopeIntersection(ctx context.Context, g geo.Geometry, bbox geo.Envelope) (bool, error)
}

// AbstractIntersection drives a traversal pruned by queryBBox, dispatching
// every leaf reference whose bbox intersects queryBBox to refine for the
// final accept/reject decision.
func AbstractIntersection(ctx context.Context, txn graph.Txn, ix *rtree.Index, enc geo.Encoder, queryBBox geo.Envelope, refine Refiner) ([]graph.VertexID, error) {
	v := &abstractIntersectionVisitor{ctx: ctx, txn: txn, enc: enc, queryBBox: queryBBox, refine: refine}
	if err := ix.Visit(ctx, txn, ix.Root(), v); err != nil {
		return nil, err
	}
	return v.refs, nil
}

// ParallelSearch runs IntersectWindow against every layer independently,
// fanning the per-layer searches out across a worker pool since each
// layer's traversal only touches its own root and is otherwise
// independent of the others — the concurrent-readers case §5 allows.
// Each layer opens and closes its own short read transaction.
func ParallelSearch(ctx context.Context, store graph.Store, enc geo.Encoder, layers []*rtree.Index, window geo.Envelope) ([]graph.VertexID, error) {
	pool := parallel.NewWorkerPool[*rtree.Index, []graph.VertexID](parallel.DefaultPoolConfig())
	results := pool.ExecuteFunc(ctx, layers, func(ctx context.Context, ix *rtree.Index) ([]graph.VertexID, error) {
		txn, err := store.Begin(ctx)
		if err != nil {
			return nil, err
		}
		refs, err := IntersectWindow(ctx, txn, ix, enc, window)
		txn.Success()
		if ferr := txn.Finish(ctx); ferr != nil && err == nil {
			err = ferr
		}
		return refs, err
	})

	var all []graph.VertexID
	for _, r := range results {
		if r.Error != nil {
			return nil, r.Error
		}
		all = append(all, r.Result...)
	}
	return all, nil
}

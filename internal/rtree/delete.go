package rtree

import (
	"context"

	"github.com/skanjila/neo4j-spatial/geo"
	"github.com/skanjila/neo4j-spatial/internal/graph"
	"github.com/skanjila/neo4j-spatial/pkg/utils"
)

// Remove locates g's leaf via its unique incoming REFERENCE edge,
// unlinks it, optionally deletes the geometry vertex itself, and either
// re-tightens bboxes upward or, if the leaf underflowed, evicts and
// re-inserts the highest underflowing ancestor's orphaned geometries
// (§4.4).
func (ix *Index) Remove(ctx context.Context, txn graph.Txn, enc geo.Encoder, g graph.VertexID, deleteGeomNode bool) error {
	refEdge, err := txn.SingleIn(ctx, g, graph.EdgeReference)
	if err != nil {
		if err == graph.ErrNoSuchEdge {
			return notIndexedf("geometry %d has no REFERENCE edge", g)
		}
		return wrapHost(err)
	}
	leaf := refEdge.Src

	path, err := ix.pathToRoot(ctx, txn, leaf)
	if err != nil {
		return err
	}

	if err := txn.DeleteEdge(ctx, refEdge.ID); err != nil {
		return wrapHost(err)
	}
	if deleteGeomNode {
		if err := txn.DeleteVertex(ctx, g); err != nil {
			return wrapHost(err)
		}
	}

	refCount, err := edgeCountOut(ctx, txn, leaf, graph.EdgeReference)
	if err != nil {
		return err
	}

	if leaf != ix.root && refCount < ix.minChildren {
		if err := ix.handleUnderflow(ctx, txn, enc, path); err != nil {
			return err
		}
	} else {
		if err := ix.retighten(ctx, txn, enc, path); err != nil {
			return err
		}
	}

	ix.totalGeometryCount--
	ix.dirty = true
	return nil
}

// Get reports whether g is currently reachable from this layer's root
// via a REFERENCE edge, surfacing NotIndexed when it is not. It mirrors
// the existence check remove performs before mutating anything.
func (ix *Index) Get(ctx context.Context, txn graph.Txn, g graph.VertexID) error {
	refEdge, err := txn.SingleIn(ctx, g, graph.EdgeReference)
	if err != nil {
		if err == graph.ErrNoSuchEdge {
			return notIndexedf("geometry %d has no REFERENCE edge", g)
		}
		return wrapHost(err)
	}
	_, err = ix.pathToRoot(ctx, txn, refEdge.Src)
	return err
}

// pathToRoot walks upward from v via its single incoming CHILD edge
// until it reaches the layer's root, returning the path in
// root-to-v order. A dead end before reaching the root means v's
// subtree is not actually attached to this layer.
func (ix *Index) pathToRoot(ctx context.Context, txn graph.Txn, v graph.VertexID) ([]graph.VertexID, error) {
	path := []graph.VertexID{v}
	cur := v
	for cur != ix.root {
		e, err := txn.SingleIn(ctx, cur, graph.EdgeChild)
		if err != nil {
			if err == graph.ErrNoSuchEdge {
				return nil, notIndexedf("vertex %d is not reachable from layer %d's root", v, ix.Layer)
			}
			return nil, wrapHost(err)
		}
		cur = e.Src
		path = append(path, cur)
	}
	reverseVertices(path)
	return path, nil
}

func reverseVertices(v []graph.VertexID) {
	for i, j := 0, len(v)-1; i < j; i, j = i+1, j-1 {
		v[i], v[j] = v[j], v[i]
	}
}

func edgeCountOut(ctx context.Context, txn graph.Txn, v graph.VertexID, et graph.EdgeType) (int, error) {
	edges, err := txn.IterateOut(ctx, v, et)
	if err != nil {
		return 0, wrapHost(err)
	}
	return len(edges), nil
}

// retighten recomputes bboxes from the end of path back to the root,
// stopping as soon as a level is unchanged (§4.4 step 4).
func (ix *Index) retighten(ctx context.Context, txn graph.Txn, enc geo.Encoder, path []graph.VertexID) error {
	for level := len(path) - 1; level >= 0; level-- {
		changed, err := ix.recomputeBBox(ctx, txn, enc, path[level])
		if err != nil {
			return err
		}
		if !changed {
			return nil
		}
	}
	return nil
}

// handleUnderflow implements §4.4 step 3: find the highest ancestor A
// whose whole chain down to the underflowing leaf would itself
// underflow by losing one child, evict A's subtree, re-tighten from A's
// parent up, then re-insert every geometry A's subtree held.
func (ix *Index) handleUnderflow(ctx context.Context, txn graph.Txn, enc geo.Encoder, path []graph.VertexID) error {
	leafIdx := len(path) - 1
	aIdx := leafIdx
	for i := leafIdx - 1; i >= 1; i-- {
		count, err := edgeCountOut(ctx, txn, path[i], graph.EdgeChild)
		if err != nil {
			return err
		}
		if count == ix.minChildren {
			aIdx = i
			continue
		}
		break
	}

	a := path[aIdx]
	parent := path[aIdx-1]

	detachEdge, err := findChildEdge(ctx, txn, parent, a)
	if err != nil {
		return err
	}
	if err := txn.DeleteEdge(ctx, detachEdge.ID); err != nil {
		return wrapHost(err)
	}

	var orphans []graph.VertexID
	if err := ix.evictSubtree(ctx, txn, a, &orphans); err != nil {
		return err
	}

	if err := ix.retighten(ctx, txn, enc, path[:aIdx]); err != nil {
		return err
	}

	for _, orphan := range orphans {
		if err := ix.insertOne(ctx, txn, enc, orphan); err != nil {
			return err
		}
	}
	return nil
}

func findChildEdge(ctx context.Context, txn graph.Txn, parent, child graph.VertexID) (graph.Edge, error) {
	edges, err := txn.IterateOut(ctx, parent, graph.EdgeChild)
	if err != nil {
		return graph.Edge{}, wrapHost(err)
	}
	for _, e := range edges {
		if e.Dst == child {
			return e, nil
		}
	}
	return graph.Edge{}, invariantf("vertex %d has no CHILD edge to %d", parent, child)
}

// evictSubtree recursively deletes v and everything under it, collecting
// the geometry vertices its leaves referenced (leaving those geometry
// vertices themselves alive, per §3's ownership rule).
func (ix *Index) evictSubtree(ctx context.Context, txn graph.Txn, v graph.VertexID, orphans *[]graph.VertexID) error {
	children, err := txn.IterateOut(ctx, v, graph.EdgeChild)
	if err != nil {
		return wrapHost(err)
	}
	if len(children) > 0 {
		for _, c := range children {
			if err := ix.evictSubtree(ctx, txn, c.Dst, orphans); err != nil {
				return err
			}
			if err := txn.DeleteEdge(ctx, c.ID); err != nil {
				return wrapHost(err)
			}
		}
	} else {
		refs, err := txn.IterateOut(ctx, v, graph.EdgeReference)
		if err != nil {
			return wrapHost(err)
		}
		for _, r := range refs {
			*orphans = append(*orphans, r.Dst)
			if err := txn.DeleteEdge(ctx, r.ID); err != nil {
				return wrapHost(err)
			}
		}
	}
	return wrapHost(txn.DeleteVertex(ctx, v))
}

// RemoveAll deletes every REFERENCE edge in the tree (and, if
// deleteGeomNodes, the geometry vertices themselves), committing once
// per leaf so a very large layer never needs a single working set
// covering the whole tree. A final transaction then deletes the empty
// skeleton and the metadata vertex.
func (ix *Index) RemoveAll(ctx context.Context, deleteGeomNodes bool, listener utils.Listener) error {
	if listener == nil {
		listener = utils.NullListener{}
	}
	listener.Begin(ix.totalGeometryCount)

	if err := ix.removeAllLeafRefs(ctx, deleteGeomNodes, listener); err != nil {
		return err
	}
	listener.Done()

	txn, err := ix.store.Begin(ctx)
	if err != nil {
		return wrapHost(err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = txn.Finish(ctx)
		}
	}()

	if rootEdge, err := txn.SingleOut(ctx, ix.Layer, graph.EdgeRoot); err == nil {
		if err := txn.DeleteEdge(ctx, rootEdge.ID); err != nil {
			return wrapHost(err)
		}
	} else if err != graph.ErrNoSuchEdge {
		return wrapHost(err)
	}

	if err := ix.deleteSkeleton(ctx, txn, ix.root); err != nil {
		return err
	}

	if metaEdge, err := txn.SingleOut(ctx, ix.Layer, graph.EdgeMetadata); err == nil {
		if err := txn.DeleteEdge(ctx, metaEdge.ID); err != nil {
			return wrapHost(err)
		}
		if err := txn.DeleteVertex(ctx, metaEdge.Dst); err != nil {
			return wrapHost(err)
		}
	} else if err != graph.ErrNoSuchEdge {
		return wrapHost(err)
	}

	txn.Success()
	if err := txn.Finish(ctx); err != nil {
		return wrapHost(err)
	}
	committed = true

	ix.totalGeometryCount = 0
	ix.dirty = true
	ix.root = 0
	ix.metadata = 0
	return nil
}

// Clear empties the tree (geometry vertices survive) and re-initialises
// root and metadata with the same fanout parameters.
func (ix *Index) Clear(ctx context.Context, listener utils.Listener) error {
	maxC, minC := ix.maxChildren, ix.minChildren
	if err := ix.RemoveAll(ctx, false, listener); err != nil {
		return err
	}

	txn, err := ix.store.Begin(ctx)
	if err != nil {
		return wrapHost(err)
	}
	if err := ix.Init(ctx, txn, maxC, minC); err != nil {
		_ = txn.Finish(ctx)
		return err
	}
	txn.Success()
	return wrapHost(txn.Finish(ctx))
}

func (ix *Index) removeAllLeafRefs(ctx context.Context, deleteGeomNodes bool, listener utils.Listener) error {
	stack := []graph.VertexID{ix.root}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		txn, err := ix.store.Begin(ctx)
		if err != nil {
			return wrapHost(err)
		}

		children, err := txn.IterateOut(ctx, node, graph.EdgeChild)
		if err != nil {
			_ = txn.Finish(ctx)
			return wrapHost(err)
		}
		if len(children) > 0 {
			txn.Success()
			if err := txn.Finish(ctx); err != nil {
				return wrapHost(err)
			}
			for i := len(children) - 1; i >= 0; i-- {
				stack = append(stack, children[i].Dst)
			}
			continue
		}

		refs, err := txn.IterateOut(ctx, node, graph.EdgeReference)
		if err != nil {
			_ = txn.Finish(ctx)
			return wrapHost(err)
		}
		for _, r := range refs {
			if err := txn.DeleteEdge(ctx, r.ID); err != nil {
				_ = txn.Finish(ctx)
				return wrapHost(err)
			}
			if deleteGeomNodes {
				if err := txn.DeleteVertex(ctx, r.Dst); err != nil {
					_ = txn.Finish(ctx)
					return wrapHost(err)
				}
			}
		}
		listener.Worked(len(refs))

		txn.Success()
		if err := txn.Finish(ctx); err != nil {
			return wrapHost(err)
		}
	}
	return nil
}

func (ix *Index) deleteSkeleton(ctx context.Context, txn graph.Txn, v graph.VertexID) error {
	children, err := txn.IterateOut(ctx, v, graph.EdgeChild)
	if err != nil {
		return wrapHost(err)
	}
	for _, c := range children {
		if err := ix.deleteSkeleton(ctx, txn, c.Dst); err != nil {
			return err
		}
		if err := txn.DeleteEdge(ctx, c.ID); err != nil {
			return wrapHost(err)
		}
	}
	return wrapHost(txn.DeleteVertex(ctx, v))
}

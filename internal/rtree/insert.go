package rtree

import (
	"context"

	"github.com/skanjila/neo4j-spatial/geo"
	"github.com/skanjila/neo4j-spatial/internal/graph"
)

// Add decodes g's envelope through enc, descends to the best leaf,
// inserts a REFERENCE edge, propagates the bbox change upward, splitting
// any vertex that overflows along the way, and finally increments the
// cached geometry count.
func (ix *Index) Add(ctx context.Context, txn graph.Txn, enc geo.Encoder, g graph.VertexID) error {
	if err := ix.insertOne(ctx, txn, enc, g); err != nil {
		return err
	}
	ix.totalGeometryCount++
	ix.dirty = true
	return nil
}

// insertOne is Add without the counter bookkeeping, used both by Add and
// by the delete path's orphan re-insertion (§4.4 step 3e), where the net
// count change is already accounted for by the removal that orphaned
// them.
func (ix *Index) insertOne(ctx context.Context, txn graph.Txn, enc geo.Encoder, g graph.VertexID) error {
	env, err := enc.DecodeEnvelope(ctx, g)
	if err != nil {
		return encoderMismatch(err)
	}

	path, err := ix.descend(ctx, txn, env)
	if err != nil {
		return err
	}
	leaf := path[len(path)-1]

	if _, err := txn.Connect(ctx, leaf, g, graph.EdgeReference); err != nil {
		return wrapHost(err)
	}

	return ix.propagateAndSplit(ctx, txn, enc, path)
}

// descend repeatedly chooses a subtree from the root until it reaches a
// leaf, returning the full root-to-leaf path.
func (ix *Index) descend(ctx context.Context, txn graph.Txn, env geo.Envelope) ([]graph.VertexID, error) {
	path := []graph.VertexID{ix.root}
	cur := ix.root
	for {
		children, err := txn.IterateOut(ctx, cur, graph.EdgeChild)
		if err != nil {
			return nil, wrapHost(err)
		}
		if len(children) == 0 {
			return path, nil
		}
		next, err := ix.chooseSubtree(ctx, txn, children, env)
		if err != nil {
			return nil, err
		}
		path = append(path, next)
		cur = next
	}
}

// chooseSubtree implements §4.3 step 2: prefer a child whose bbox covers
// g's envelope centroid (breaking ties by smallest area), otherwise pick
// the child with the cheapest enlargement (breaking ties by smallest
// area).
func (ix *Index) chooseSubtree(ctx context.Context, txn graph.Txn, children []graph.Edge, env geo.Envelope) (graph.VertexID, error) {
	cx, cy := env.Centroid()

	var (
		bestCover     graph.VertexID
		bestCoverArea float64
		haveCover     bool

		bestEnl     graph.VertexID
		bestEnlCost float64
		bestEnlArea float64
		haveEnl     bool
	)

	for _, c := range children {
		bbox, err := ix.readBBox(ctx, txn, c.Dst)
		if err != nil {
			return 0, err
		}
		area := bbox.Area()

		if bbox.CoversPoint(cx, cy) {
			if !haveCover || area < bestCoverArea {
				bestCover, bestCoverArea, haveCover = c.Dst, area, true
			}
			continue
		}

		cost := bbox.Enlargement(env)
		if !haveEnl || cost < bestEnlCost || (cost == bestEnlCost && area < bestEnlArea) {
			bestEnl, bestEnlCost, bestEnlArea, haveEnl = c.Dst, cost, area, true
		}
	}

	if haveCover {
		return bestCover, nil
	}
	if haveEnl {
		return bestEnl, nil
	}
	return 0, invariantf("chooseSubtree found no candidate child among %d children", len(children))
}

// propagateAndSplit walks path bottom-up: at every level it recomputes
// the vertex's bbox from its current children and, if the vertex now
// overflows its active edge kind, splits it and wires the sibling in
// before continuing upward. It stops as soon as a level's bbox didn't
// change and no split happened there, since nothing above it needs
// revisiting.
func (ix *Index) propagateAndSplit(ctx context.Context, txn graph.Txn, enc geo.Encoder, path []graph.VertexID) error {
	for level := len(path) - 1; level >= 0; level-- {
		node := path[level]

		changed, err := ix.recomputeBBox(ctx, txn, enc, node)
		if err != nil {
			return err
		}

		count, err := ix.activeChildCount(ctx, txn, node)
		if err != nil {
			return err
		}

		if count > ix.maxChildren {
			sibling, err := ix.quadraticSplit(ctx, txn, enc, node)
			if err != nil {
				return err
			}
			if level == 0 {
				return ix.promoteNewRoot(ctx, txn, node, sibling)
			}
			parent := path[level-1]
			if _, err := txn.Connect(ctx, parent, sibling, graph.EdgeChild); err != nil {
				return wrapHost(err)
			}
			continue // parent's child set changed; always re-examine it
		}

		if !changed {
			return nil
		}
	}
	return nil
}

// promoteNewRoot implements §4.3 step 4's final case: the split reached
// the root with no parent to attach the sibling to, so a fresh root is
// created above both.
func (ix *Index) promoteNewRoot(ctx context.Context, txn graph.Txn, oldRoot, sibling graph.VertexID) error {
	newRoot, err := txn.CreateVertex(ctx)
	if err != nil {
		return wrapHost(err)
	}
	if _, err := txn.Connect(ctx, newRoot, oldRoot, graph.EdgeChild); err != nil {
		return wrapHost(err)
	}
	if _, err := txn.Connect(ctx, newRoot, sibling, graph.EdgeChild); err != nil {
		return wrapHost(err)
	}

	if oldRootEdge, err := txn.SingleOut(ctx, ix.Layer, graph.EdgeRoot); err == nil {
		if err := txn.DeleteEdge(ctx, oldRootEdge.ID); err != nil {
			return wrapHost(err)
		}
	} else if err != graph.ErrNoSuchEdge {
		return wrapHost(err)
	}
	if _, err := txn.Connect(ctx, ix.Layer, newRoot, graph.EdgeRoot); err != nil {
		return wrapHost(err)
	}

	oldBB, err := ix.readBBox(ctx, txn, oldRoot)
	if err != nil {
		return err
	}
	sibBB, err := ix.readBBox(ctx, txn, sibling)
	if err != nil {
		return err
	}
	if err := ix.writeBBox(ctx, txn, newRoot, oldBB.Expand(sibBB)); err != nil {
		return err
	}

	ix.root = newRoot
	return nil
}

// activeChildCount returns the number of outgoing edges of whichever
// kind (CHILD or REFERENCE) node currently uses.
func (ix *Index) activeChildCount(ctx context.Context, txn graph.Txn, node graph.VertexID) (int, error) {
	children, err := txn.IterateOut(ctx, node, graph.EdgeChild)
	if err != nil {
		return 0, wrapHost(err)
	}
	if len(children) > 0 {
		return len(children), nil
	}
	refs, err := txn.IterateOut(ctx, node, graph.EdgeReference)
	if err != nil {
		return 0, wrapHost(err)
	}
	return len(refs), nil
}

// recomputeBBox recomputes node's bbox as the union of its current
// children's envelopes (geometry envelopes for a leaf's REFERENCE
// children, child bboxes for an internal vertex's CHILD children) and
// writes it back if it changed. It reports whether the bbox changed.
func (ix *Index) recomputeBBox(ctx context.Context, txn graph.Txn, enc geo.Encoder, node graph.VertexID) (bool, error) {
	old, err := ix.readBBox(ctx, txn, node)
	if err != nil {
		return false, err
	}

	children, err := txn.IterateOut(ctx, node, graph.EdgeChild)
	if err != nil {
		return false, wrapHost(err)
	}

	union := geo.NullEnvelope()
	if len(children) > 0 {
		for _, c := range children {
			bb, err := ix.readBBox(ctx, txn, c.Dst)
			if err != nil {
				return false, err
			}
			union = union.Expand(bb)
		}
	} else {
		refs, err := txn.IterateOut(ctx, node, graph.EdgeReference)
		if err != nil {
			return false, wrapHost(err)
		}
		for _, r := range refs {
			env, err := enc.DecodeEnvelope(ctx, r.Dst)
			if err != nil {
				return false, encoderMismatch(err)
			}
			union = union.Expand(env)
		}
	}

	if union == old {
		return false, nil
	}
	if err := ix.writeBBox(ctx, txn, node, union); err != nil {
		return false, err
	}
	return true, nil
}

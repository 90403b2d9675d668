package rtree

import (
	"context"
	"math"

	"github.com/skanjila/neo4j-spatial/geo"
	"github.com/skanjila/neo4j-spatial/internal/graph"
)

type splitEntry struct {
	edge graph.Edge
	bbox geo.Envelope
}

// quadraticSplit implements Guttman's quadratic split (§4.3.1) over
// node's current entries of whichever edge kind it uses. It creates a
// fresh sibling vertex, leaves the seed-picked group G1 wired to node,
// and rewires G2's edges onto the sibling. The caller is responsible for
// attaching the sibling to node's parent (or promoting a new root).
func (ix *Index) quadraticSplit(ctx context.Context, txn graph.Txn, enc geo.Encoder, node graph.VertexID) (graph.VertexID, error) {
	edgeType, entries, err := ix.splitEntries(ctx, txn, enc, node)
	if err != nil {
		return 0, err
	}
	if len(entries) < 2 {
		return 0, invariantf("split invoked on vertex %d with fewer than 2 entries", node)
	}

	seedA, seedB := pickSeeds(entries)

	g1 := []splitEntry{entries[seedA]}
	g2 := []splitEntry{entries[seedB]}
	g1bb := entries[seedA].bbox
	g2bb := entries[seedB].bbox

	remaining := make([]splitEntry, 0, len(entries)-2)
	for i, e := range entries {
		if i != seedA && i != seedB {
			remaining = append(remaining, e)
		}
	}

	for len(remaining) > 0 {
		// Underflow guard: if dumping the rest into one group is the
		// only way to keep it at minChildren, do that and stop.
		if len(g1)+len(remaining) == ix.minChildren {
			for _, e := range remaining {
				g1 = append(g1, e)
				g1bb = g1bb.Expand(e.bbox)
			}
			remaining = nil
			break
		}
		if len(g2)+len(remaining) == ix.minChildren {
			for _, e := range remaining {
				g2 = append(g2, e)
				g2bb = g2bb.Expand(e.bbox)
			}
			remaining = nil
			break
		}

		pickIdx, d1, d2 := pickNext(remaining, g1bb, g2bb)
		chosen := remaining[pickIdx]
		remaining = append(remaining[:pickIdx], remaining[pickIdx+1:]...)

		switch {
		case d1 < d2:
			g1 = append(g1, chosen)
			g1bb = g1bb.Expand(chosen.bbox)
		case d2 < d1:
			g2 = append(g2, chosen)
			g2bb = g2bb.Expand(chosen.bbox)
		default:
			if g1bb.Area() <= g2bb.Area() {
				g1 = append(g1, chosen)
				g1bb = g1bb.Expand(chosen.bbox)
			} else {
				g2 = append(g2, chosen)
				g2bb = g2bb.Expand(chosen.bbox)
			}
		}
	}

	sibling, err := txn.CreateVertex(ctx)
	if err != nil {
		return 0, wrapHost(err)
	}
	for _, e := range g2 {
		if err := txn.DeleteEdge(ctx, e.edge.ID); err != nil {
			return 0, wrapHost(err)
		}
		if _, err := txn.Connect(ctx, sibling, e.edge.Dst, edgeType); err != nil {
			return 0, wrapHost(err)
		}
	}

	if err := ix.writeBBox(ctx, txn, node, g1bb); err != nil {
		return 0, err
	}
	if err := ix.writeBBox(ctx, txn, sibling, g2bb); err != nil {
		return 0, err
	}
	return sibling, nil
}

func (ix *Index) splitEntries(ctx context.Context, txn graph.Txn, enc geo.Encoder, node graph.VertexID) (graph.EdgeType, []splitEntry, error) {
	children, err := txn.IterateOut(ctx, node, graph.EdgeChild)
	if err != nil {
		return "", nil, wrapHost(err)
	}
	if len(children) > 0 {
		entries := make([]splitEntry, len(children))
		for i, c := range children {
			bb, err := ix.readBBox(ctx, txn, c.Dst)
			if err != nil {
				return "", nil, err
			}
			entries[i] = splitEntry{edge: c, bbox: bb}
		}
		return graph.EdgeChild, entries, nil
	}

	refs, err := txn.IterateOut(ctx, node, graph.EdgeReference)
	if err != nil {
		return "", nil, wrapHost(err)
	}
	entries := make([]splitEntry, len(refs))
	for i, r := range refs {
		env, err := enc.DecodeEnvelope(ctx, r.Dst)
		if err != nil {
			return "", nil, encoderMismatch(err)
		}
		entries[i] = splitEntry{edge: r, bbox: env}
	}
	return graph.EdgeReference, entries, nil
}

// pickSeeds chooses the pair maximising dead space (§4.3.1 step 1).
func pickSeeds(entries []splitEntry) (int, int) {
	bestI, bestJ := 0, 1
	bestDead := -math.MaxFloat64
	for i := 0; i < len(entries); i++ {
		for j := i + 1; j < len(entries); j++ {
			d := entries[i].bbox.DeadSpace(entries[j].bbox)
			if d > bestDead {
				bestDead, bestI, bestJ = d, i, j
			}
		}
	}
	return bestI, bestJ
}

// pickNext chooses the remaining entry that minimises the cheaper of its
// two enlargement costs (§4.3.1 step 2), returning its index in
// remaining plus both costs so the caller can apply the group-choice
// tie-break.
func pickNext(remaining []splitEntry, g1bb, g2bb geo.Envelope) (int, float64, float64) {
	bestIdx := 0
	bestMin := math.MaxFloat64
	var bestD1, bestD2 float64
	for i, e := range remaining {
		d1 := g1bb.Enlargement(e.bbox)
		d2 := g2bb.Enlargement(e.bbox)
		m := d1
		if d2 < m {
			m = d2
		}
		if m < bestMin {
			bestMin, bestIdx, bestD1, bestD2 = m, i, d1, d2
		}
	}
	return bestIdx, bestD1, bestD2
}

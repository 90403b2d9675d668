package rtree

import (
	"context"

	"github.com/skanjila/neo4j-spatial/geo"
	"github.com/skanjila/neo4j-spatial/internal/graph"
	"github.com/skanjila/neo4j-spatial/pkg/collections"
	"github.com/skanjila/neo4j-spatial/pkg/parallel"
	"github.com/skanjila/neo4j-spatial/pkg/utils"
)

// Visitor is the capability pair that drives traversal (§4.5):
// NeedsToVisit prunes whole subtrees by their bbox, OnIndexReference is
// invoked once per leaf reference that wasn't pruned.
type Visitor interface {
	NeedsToVisit(bbox geo.Envelope) bool
	OnIndexReference(ctx context.Context, geomRef graph.VertexID) error
}

// Visit performs an in-transaction depth-first traversal rooted at
// node, in left-to-right edge-enumeration order. The caller holds txn
// for the whole call, so this is only suitable for reads that return a
// bounded result set.
func (ix *Index) Visit(ctx context.Context, txn graph.Txn, node graph.VertexID, v Visitor) error {
	visited := collections.NewBitset(64)
	return ix.visit(ctx, txn, node, v, visited)
}

func (ix *Index) visit(ctx context.Context, txn graph.Txn, node graph.VertexID, v Visitor, visited *collections.Bitset) error {
	idx := int(node)
	if visited.Test(idx) {
		return invariantf("traversal revisited vertex %d: host graph has a cycle", node)
	}
	visited.Set(idx)

	bbox, err := ix.readBBox(ctx, txn, node)
	if err != nil {
		return err
	}
	if !v.NeedsToVisit(bbox) {
		return nil
	}

	children, err := txn.IterateOut(ctx, node, graph.EdgeChild)
	if err != nil {
		return wrapHost(err)
	}
	if len(children) > 0 {
		for _, c := range children {
			if err := ix.visit(ctx, txn, c.Dst, v, visited); err != nil {
				return err
			}
		}
		return nil
	}

	refs, err := txn.IterateOut(ctx, node, graph.EdgeReference)
	if err != nil {
		return wrapHost(err)
	}
	for _, r := range refs {
		if err := v.OnIndexReference(ctx, r.Dst); err != nil {
			return err
		}
	}
	return nil
}

// VisitInTx is the transactional-batching traversal mode (§4.5): internal
// vertices are inspected without holding a long-lived transaction, and
// each leaf is visited inside its own short transaction. removeAll is
// built directly on the same per-leaf-transaction pattern rather than
// reusing this read-only visitor, since it needs to mutate within the
// leaf's transaction.
func (ix *Index) VisitInTx(ctx context.Context, root graph.VertexID, v Visitor) error {
	stack := collections.NewStack[graph.VertexID](16)
	stack.Push(root)

	for !stack.IsEmpty() {
		node, _ := stack.Pop()

		txn, err := ix.store.Begin(ctx)
		if err != nil {
			return wrapHost(err)
		}

		bbox, err := ix.readBBox(ctx, txn, node)
		if err != nil {
			_ = txn.Finish(ctx)
			return err
		}
		if !v.NeedsToVisit(bbox) {
			txn.Success()
			if err := txn.Finish(ctx); err != nil {
				return wrapHost(err)
			}
			continue
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
				stack.Push(children[i].Dst)
			}
			continue
		}

		refs, err := txn.IterateOut(ctx, node, graph.EdgeReference)
		if err != nil {
			_ = txn.Finish(ctx)
			return wrapHost(err)
		}
		for _, r := range refs {
			if err := v.OnIndexReference(ctx, r.Dst); err != nil {
				_ = txn.Finish(ctx)
				return err
			}
		}

		txn.Success()
		if err := txn.Finish(ctx); err != nil {
			return wrapHost(err)
		}
	}
	return nil
}

// Recount is a standalone maintenance operation that recomputes this
// layer's geometry count from scratch by walking the whole tree,
// fanning the root's immediate children out across a worker pool since
// each subtree's count is independent of the others. Unlike Count's
// lost-write guard, it opens its own transactions and so must not be
// called while another transaction against the same store is already
// open.
func (ix *Index) Recount(ctx context.Context) (int, error) {
	timer := utils.NewTimer("recount", utils.WithLogger(ix.log))
	defer timer.PrintSummary()

	collectPhase := timer.Start("collect-children")
	txn, err := ix.store.Begin(ctx)
	if err != nil {
		return 0, wrapHost(err)
	}
	children, err := txn.IterateOut(ctx, ix.root, graph.EdgeChild)
	if err != nil {
		_ = txn.Finish(ctx)
		return 0, wrapHost(err)
	}
	if len(children) == 0 {
		refs, err := txn.IterateOut(ctx, ix.root, graph.EdgeReference)
		txn.Success()
		collectPhase.Stop()
		if ferr := txn.Finish(ctx); ferr != nil {
			return 0, wrapHost(ferr)
		}
		if err != nil {
			return 0, wrapHost(err)
		}
		return len(refs), nil
	}
	txn.Success()
	collectPhase.Stop()
	if err := txn.Finish(ctx); err != nil {
		return 0, wrapHost(err)
	}

	inputs := make([]graph.VertexID, len(children))
	for i, c := range children {
		inputs[i] = c.Dst
	}

	countPhase := timer.Start("parallel-count")
	pool := parallel.NewWorkerPool[graph.VertexID, int](parallel.DefaultPoolConfig())
	results := pool.ExecuteFunc(ctx, inputs, func(ctx context.Context, v graph.VertexID) (int, error) {
		return ix.countSubtree(ctx, v)
	})
	countPhase.Stop()

	total := 0
	for _, r := range results {
		if r.Error != nil {
			return 0, r.Error
		}
		total += r.Result
	}
	return total, nil
}

func (ix *Index) countSubtree(ctx context.Context, v graph.VertexID) (int, error) {
	txn, err := ix.store.Begin(ctx)
	if err != nil {
		return 0, wrapHost(err)
	}
	defer func() {
		txn.Success()
		_ = txn.Finish(ctx)
	}()

	count := 0
	var walk func(node graph.VertexID) error
	walk = func(node graph.VertexID) error {
		children, err := txn.IterateOut(ctx, node, graph.EdgeChild)
		if err != nil {
			return wrapHost(err)
		}
		if len(children) > 0 {
			for _, c := range children {
				if err := walk(c.Dst); err != nil {
					return err
				}
			}
			return nil
		}
		refs, err := txn.IterateOut(ctx, node, graph.EdgeReference)
		if err != nil {
			return wrapHost(err)
		}
		count += len(refs)
		return nil
	}
	if err := walk(v); err != nil {
		return 0, err
	}
	return count, nil
}

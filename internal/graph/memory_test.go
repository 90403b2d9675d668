package graph

import (
	"context"
	"testing"
)

func TestMemoryStore_VertexLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	txn, err := s.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	v, err := txn.CreateVertex(ctx)
	if err != nil {
		t.Fatalf("CreateVertex: %v", err)
	}
	if err := txn.SetProp(ctx, v, "name", "root"); err != nil {
		t.Fatalf("SetProp: %v", err)
	}
	txn.Success()
	if err := txn.Finish(ctx); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	ok, err := s.GetVertexByID(ctx, v)
	if err != nil || !ok {
		t.Fatalf("GetVertexByID: ok=%v err=%v", ok, err)
	}

	txn2, _ := s.Begin(ctx)
	val, found, err := txn2.GetProp(ctx, v, "name")
	if err != nil || !found || val != "root" {
		t.Fatalf("GetProp = %v, %v, %v", val, found, err)
	}
	txn2.Success()
	_ = txn2.Finish(ctx)
}

func TestMemoryStore_RollbackUndoesAllMutations(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	txn, _ := s.Begin(ctx)
	v, _ := txn.CreateVertex(ctx)
	_ = txn.SetProp(ctx, v, "k", "v")
	// No Success() call: Finish must roll back.
	if err := txn.Finish(ctx); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	ok, _ := s.GetVertexByID(ctx, v)
	if ok {
		t.Fatal("expected vertex to be rolled back")
	}
}

func TestMemoryStore_EdgesAndSingle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	txn, _ := s.Begin(ctx)
	a, _ := txn.CreateVertex(ctx)
	b, _ := txn.CreateVertex(ctx)
	c, _ := txn.CreateVertex(ctx)
	if _, err := txn.Connect(ctx, a, b, EdgeChild); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if _, err := txn.Connect(ctx, a, c, EdgeChild); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	txn.Success()
	_ = txn.Finish(ctx)

	txn2, _ := s.Begin(ctx)
	out, err := txn2.IterateOut(ctx, a, EdgeChild)
	if err != nil || len(out) != 2 {
		t.Fatalf("IterateOut = %v, %v", out, err)
	}
	if _, err := txn2.SingleOut(ctx, a, EdgeChild); err == nil {
		t.Fatal("expected an error for ambiguous SingleOut")
	}
	single, err := txn2.SingleIn(ctx, b, EdgeChild)
	if err != nil || single.Src != a || single.Dst != b {
		t.Fatalf("SingleIn = %+v, %v", single, err)
	}
	txn2.Success()
	_ = txn2.Finish(ctx)
}

func TestMemoryStore_DeleteEdgeAndRollback(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	txn, _ := s.Begin(ctx)
	a, _ := txn.CreateVertex(ctx)
	b, _ := txn.CreateVertex(ctx)
	eid, _ := txn.Connect(ctx, a, b, EdgeReference)
	txn.Success()
	_ = txn.Finish(ctx)

	txn2, _ := s.Begin(ctx)
	if err := txn2.DeleteEdge(ctx, eid); err != nil {
		t.Fatalf("DeleteEdge: %v", err)
	}
	// Roll back: the edge should reappear.
	_ = txn2.Finish(ctx)

	txn3, _ := s.Begin(ctx)
	out, _ := txn3.IterateOut(ctx, a, EdgeReference)
	if len(out) != 1 {
		t.Fatalf("expected edge restored after rollback, got %d edges", len(out))
	}
	txn3.Success()
	_ = txn3.Finish(ctx)
}

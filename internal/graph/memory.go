package graph

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// MemoryStore is the in-memory reference implementation of Store. It
// exists so the core (and this package's own tests) can run against a
// real, if minimal, property-graph host without standing up a database:
// slice/map-backed records addressed by a compact handle, guarded by a
// single mutex rather than per-record locking since only one writer is
// ever expected at a time.
type MemoryStore struct {
	mu sync.Mutex

	nextVertex atomic.Uint64
	nextEdge   atomic.Uint64

	vertices map[VertexID]map[string]any
	outEdges map[VertexID]map[EdgeType][]EdgeID
	inEdges  map[VertexID]map[EdgeType][]EdgeID
	edges    map[EdgeID]Edge
}

// NewMemoryStore builds an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		vertices: make(map[VertexID]map[string]any),
		outEdges: make(map[VertexID]map[EdgeType][]EdgeID),
		inEdges:  make(map[VertexID]map[EdgeType][]EdgeID),
		edges:    make(map[EdgeID]Edge),
	}
}

// Begin implements Store. It acquires the store's single write lock for
// the lifetime of the transaction; Finish releases it.
func (s *MemoryStore) Begin(ctx context.Context) (Txn, error) {
	s.mu.Lock()
	return &memoryTxn{store: s}, nil
}

// GetVertexByID implements Store.
func (s *MemoryStore) GetVertexByID(ctx context.Context, id VertexID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.vertices[id]
	return ok, nil
}

type memoryTxn struct {
	store   *MemoryStore
	undo    []func()
	success bool
	done    bool
}

func (t *memoryTxn) record(undo func()) {
	t.undo = append(t.undo, undo)
}

func (t *memoryTxn) CreateVertex(ctx context.Context) (VertexID, error) {
	id := VertexID(t.store.nextVertex.Add(1))
	t.store.vertices[id] = make(map[string]any)
	t.record(func() { delete(t.store.vertices, id) })
	return id, nil
}

func (t *memoryTxn) DeleteVertex(ctx context.Context, v VertexID) error {
	props, ok := t.store.vertices[v]
	if !ok {
		return fmt.Errorf("graph: delete non-existent vertex %d", v)
	}
	delete(t.store.vertices, v)
	delete(t.store.outEdges, v)
	delete(t.store.inEdges, v)
	t.record(func() { t.store.vertices[v] = props })
	return nil
}

func (t *memoryTxn) VertexExists(ctx context.Context, v VertexID) (bool, error) {
	_, ok := t.store.vertices[v]
	return ok, nil
}

func (t *memoryTxn) GetProp(ctx context.Context, v VertexID, key string) (any, bool, error) {
	props, ok := t.store.vertices[v]
	if !ok {
		return nil, false, fmt.Errorf("graph: get prop on non-existent vertex %d", v)
	}
	val, ok := props[key]
	return val, ok, nil
}

func (t *memoryTxn) SetProp(ctx context.Context, v VertexID, key string, val any) error {
	props, ok := t.store.vertices[v]
	if !ok {
		return fmt.Errorf("graph: set prop on non-existent vertex %d", v)
	}
	prev, had := props[key]
	props[key] = val
	if had {
		t.record(func() { props[key] = prev })
	} else {
		t.record(func() { delete(props, key) })
	}
	return nil
}

func (t *memoryTxn) HasProp(ctx context.Context, v VertexID, key string) (bool, error) {
	props, ok := t.store.vertices[v]
	if !ok {
		return false, fmt.Errorf("graph: has prop on non-existent vertex %d", v)
	}
	_, ok = props[key]
	return ok, nil
}

func (t *memoryTxn) RemoveProp(ctx context.Context, v VertexID, key string) error {
	props, ok := t.store.vertices[v]
	if !ok {
		return fmt.Errorf("graph: remove prop on non-existent vertex %d", v)
	}
	prev, had := props[key]
	if !had {
		return nil
	}
	delete(props, key)
	t.record(func() { props[key] = prev })
	return nil
}

func (t *memoryTxn) Connect(ctx context.Context, src, dst VertexID, et EdgeType) (EdgeID, error) {
	if _, ok := t.store.vertices[src]; !ok {
		return 0, fmt.Errorf("graph: connect from non-existent vertex %d", src)
	}
	if _, ok := t.store.vertices[dst]; !ok {
		return 0, fmt.Errorf("graph: connect to non-existent vertex %d", dst)
	}
	id := EdgeID(t.store.nextEdge.Add(1))
	e := Edge{ID: id, Src: src, Dst: dst, Type: et}
	t.store.edges[id] = e

	addOutEdge(t.store, src, et, id)
	addInEdge(t.store, dst, et, id)
	t.record(func() {
		delete(t.store.edges, id)
		t.store.outEdges[src][et] = removeEdgeID(t.store.outEdges[src][et], id)
		t.store.inEdges[dst][et] = removeEdgeID(t.store.inEdges[dst][et], id)
	})
	return id, nil
}

func addOutEdge(s *MemoryStore, v VertexID, et EdgeType, id EdgeID) {
	if s.outEdges[v] == nil {
		s.outEdges[v] = make(map[EdgeType][]EdgeID)
	}
	s.outEdges[v][et] = append(s.outEdges[v][et], id)
}

func addInEdge(s *MemoryStore, v VertexID, et EdgeType, id EdgeID) {
	if s.inEdges[v] == nil {
		s.inEdges[v] = make(map[EdgeType][]EdgeID)
	}
	s.inEdges[v][et] = append(s.inEdges[v][et], id)
}

func removeEdgeID(ids []EdgeID, target EdgeID) []EdgeID {
	for i, id := range ids {
		if id == target {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}

func (t *memoryTxn) IterateOut(ctx context.Context, v VertexID, et EdgeType) ([]Edge, error) {
	ids := t.store.outEdges[v][et]
	out := make([]Edge, 0, len(ids))
	for _, id := range ids {
		out = append(out, t.store.edges[id])
	}
	return out, nil
}

func (t *memoryTxn) IterateIn(ctx context.Context, v VertexID, et EdgeType) ([]Edge, error) {
	ids := t.store.inEdges[v][et]
	out := make([]Edge, 0, len(ids))
	for _, id := range ids {
		out = append(out, t.store.edges[id])
	}
	return out, nil
}

func (t *memoryTxn) SingleOut(ctx context.Context, v VertexID, et EdgeType) (Edge, error) {
	ids := t.store.outEdges[v][et]
	switch len(ids) {
	case 0:
		return Edge{}, ErrNoSuchEdge
	case 1:
		return t.store.edges[ids[0]], nil
	default:
		return Edge{}, fmt.Errorf("graph: vertex %d has %d outgoing %s edges, want exactly one", v, len(ids), et)
	}
}

func (t *memoryTxn) SingleIn(ctx context.Context, v VertexID, et EdgeType) (Edge, error) {
	ids := t.store.inEdges[v][et]
	switch len(ids) {
	case 0:
		return Edge{}, ErrNoSuchEdge
	case 1:
		return t.store.edges[ids[0]], nil
	default:
		return Edge{}, fmt.Errorf("graph: vertex %d has %d incoming %s edges, want exactly one", v, len(ids), et)
	}
}

func (t *memoryTxn) DeleteEdge(ctx context.Context, id EdgeID) error {
	e, ok := t.store.edges[id]
	if !ok {
		return fmt.Errorf("graph: delete non-existent edge %d", id)
	}
	delete(t.store.edges, id)
	t.store.outEdges[e.Src][e.Type] = removeEdgeID(t.store.outEdges[e.Src][e.Type], id)
	t.store.inEdges[e.Dst][e.Type] = removeEdgeID(t.store.inEdges[e.Dst][e.Type], id)
	t.record(func() {
		t.store.edges[id] = e
		addOutEdge(t.store, e.Src, e.Type, id)
		addInEdge(t.store, e.Dst, e.Type, id)
	})
	return nil
}

func (t *memoryTxn) Success() { t.success = true }

func (t *memoryTxn) Finish(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	defer t.store.mu.Unlock()
	if !t.success {
		for i := len(t.undo) - 1; i >= 0; i-- {
			t.undo[i]()
		}
	}
	return nil
}

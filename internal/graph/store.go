// Package graph is the thin capability layer (§6 of the spec) the R-tree
// core uses to talk to its host property-graph store: create/delete
// vertices, get/set typed properties, create/iterate/delete typed edges,
// and begin/commit transactions. The core never reaches past this
// interface into a concrete store.
package graph

import (
	"context"
	"errors"
)

// VertexID is an opaque handle to a vertex. The core must not assume
// anything about its representation beyond equality, and must not cache
// a vertex's data across a transaction boundary — only its ID.
type VertexID uint64

// EdgeID is an opaque handle to an edge.
type EdgeID uint64

// EdgeType is one of the fixed edge-type strings of §6.
type EdgeType string

const (
	EdgeRoot        EdgeType = "ROOT"
	EdgeChild       EdgeType = "CHILD"
	EdgeReference   EdgeType = "REFERENCE"
	EdgeMetadata    EdgeType = "METADATA"
	EdgeLayerConfig EdgeType = "LAYER_CONFIG"
)

// Property keys fixed by §6.
const (
	PropBBox       = "bbox"
	PropLayer      = "layer"
	PropGType      = "gtype"
	PropQuery      = "query"
	PropMaxRefs    = "maxNodeReferences"
	PropMinRefs    = "minNodeReferences"
	PropTotalCount = "totalGeometryCount"
)

// Edge is a materialised typed edge between two vertices.
type Edge struct {
	ID   EdgeID
	Src  VertexID
	Dst  VertexID
	Type EdgeType
}

// ErrNoSuchEdge is returned by SingleOut/SingleIn when no edge of the
// requested type exists. It is not one of the core's public error kinds
// (pkg/errors) — callers translate it at the rtree-package boundary.
var ErrNoSuchEdge = errors.New("graph: no edge of requested type")

// Txn is a single host transaction. All vertex and edge operations the
// core performs go through a Txn obtained from Store.Begin. Exactly one
// of Success or Failure-by-default applies at Finish: calling Success
// marks the transaction for commit; if Finish is reached without a prior
// Success call, the transaction rolls back. This mirrors the source's
// begin()/Txn.success()/Txn.finish() protocol (§6) rather than Go's more
// common explicit Commit/Rollback, because every mutation path in this
// core is written as "do the work, then decide success", matching how
// the host graph engine itself is driven.
type Txn interface {
	// CreateVertex allocates a new, propertyless vertex.
	CreateVertex(ctx context.Context) (VertexID, error)
	// DeleteVertex removes a vertex and all its properties. The caller is
	// responsible for having already detached its edges.
	DeleteVertex(ctx context.Context, v VertexID) error
	// VertexExists reports whether v still resolves to a live vertex.
	VertexExists(ctx context.Context, v VertexID) (bool, error)

	GetProp(ctx context.Context, v VertexID, key string) (any, bool, error)
	SetProp(ctx context.Context, v VertexID, key string, val any) error
	HasProp(ctx context.Context, v VertexID, key string) (bool, error)
	RemoveProp(ctx context.Context, v VertexID, key string) error

	// Connect creates a new typed edge from src to dst.
	Connect(ctx context.Context, src, dst VertexID, t EdgeType) (EdgeID, error)
	// IterateOut returns all outgoing edges of type t from v, in no
	// particular order (§4.5: enumeration order is not part of the
	// contract).
	IterateOut(ctx context.Context, v VertexID, t EdgeType) ([]Edge, error)
	// IterateIn returns all incoming edges of type t into v.
	IterateIn(ctx context.Context, v VertexID, t EdgeType) ([]Edge, error)
	// SingleOut returns the one outgoing edge of type t from v, or
	// ErrNoSuchEdge if there is none. Callers rely on invariant 4 (edge-kind
	// exclusivity) and §3's cardinality rules to know at most one matters.
	SingleOut(ctx context.Context, v VertexID, t EdgeType) (Edge, error)
	// SingleIn returns the one incoming edge of type t into v, or
	// ErrNoSuchEdge if there is none.
	SingleIn(ctx context.Context, v VertexID, t EdgeType) (Edge, error)
	// DeleteEdge removes a single edge by ID.
	DeleteEdge(ctx context.Context, e EdgeID) error

	// Success marks the transaction to be committed at Finish. Without a
	// prior call to Success, Finish rolls back.
	Success()
	// Finish commits or rolls back depending on whether Success was
	// called, and releases the transaction either way — including when
	// the call site panics or returns early on error, per §5's scoped
	// acquisition rule.
	Finish(ctx context.Context) error
}

// Store is the capability to begin a transaction and resolve a vertex ID
// that may have been obtained out of band (e.g. from a geometry the host
// graph already has, per §6's "vertex lookup").
type Store interface {
	Begin(ctx context.Context) (Txn, error)
	GetVertexByID(ctx context.Context, id VertexID) (bool, error)
}

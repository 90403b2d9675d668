package dynamiclayer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/skanjila/neo4j-spatial/geo"
	"github.com/skanjila/neo4j-spatial/internal/graph"
)

// Direction is the edge direction a structural step traverses.
type Direction string

const (
	DirectionIn  Direction = "IN"
	DirectionOut Direction = "OUT"
)

// EdgeStep is one hop of a structural predicate: the edge type and
// direction to traverse, the properties the vertex reached must carry,
// and an optional further step to recurse through.
type EdgeStep struct {
	Type       graph.EdgeType    `json:"type"`
	Direction  Direction         `json:"direction"`
	Properties map[string]string `json:"properties,omitempty"`
	Step       *EdgeStep         `json:"step,omitempty"`
}

// StructuralPredicate mirrors the graph topology it tests against: the
// properties the geometry vertex itself must carry, plus an optional
// edge step to a related vertex.
type StructuralPredicate struct {
	Properties map[string]string `json:"properties,omitempty"`
	Step       *EdgeStep         `json:"step,omitempty"`
}

// ParseStructuralPredicate decodes the JSON dialect of §4.7.
func ParseStructuralPredicate(data []byte) (*StructuralPredicate, error) {
	var p StructuralPredicate
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("dynamiclayer: invalid structural predicate: %w", err)
	}
	return &p, nil
}

// Match implements Predicate. enc is unused: the structural dialect
// never decodes the geometry, only the vertex's own properties and its
// neighbours'.
func (p *StructuralPredicate) Match(ctx context.Context, txn graph.Txn, _ geo.Encoder, geomRef graph.VertexID) (bool, error) {
	ok, err := matchProperties(ctx, txn, geomRef, p.Properties)
	if err != nil || !ok {
		return false, err
	}
	if p.Step == nil {
		return true, nil
	}
	return matchStep(ctx, txn, geomRef, p.Step)
}

func matchStep(ctx context.Context, txn graph.Txn, v graph.VertexID, step *EdgeStep) (bool, error) {
	var (
		edges []graph.Edge
		err   error
	)
	if step.Direction == DirectionIn {
		edges, err = txn.IterateIn(ctx, v, step.Type)
	} else {
		edges, err = txn.IterateOut(ctx, v, step.Type)
	}
	if err != nil {
		return false, err
	}
	if len(edges) == 0 {
		return false, nil
	}

	for _, e := range edges {
		next := e.Dst
		if step.Direction == DirectionIn {
			next = e.Src
		}
		ok, err := matchProperties(ctx, txn, next, step.Properties)
		if err != nil {
			return false, err
		}
		if !ok {
			continue
		}
		if step.Step == nil {
			return true, nil
		}
		ok, err = matchStep(ctx, txn, next, step.Step)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// matchProperties compares by string form, smoothing over int-vs-float
// property width mismatches the host graph may introduce (§4.7).
func matchProperties(ctx context.Context, txn graph.Txn, v graph.VertexID, want map[string]string) (bool, error) {
	for key, wantVal := range want {
		got, ok, err := txn.GetProp(ctx, v, key)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
		if fmt.Sprint(got) != wantVal {
			return false, nil
		}
	}
	return true, nil
}

// Package dynamiclayer implements the predicate-filtered read-only view
// over a base index (§4.7): a Layer shares its base's root entirely and
// narrows what traversal reports by evaluating a stored predicate at
// each leaf. Two predicate dialects are recognised: a structural JSON
// tree that walks graph topology directly, and a small CQL-style
// expression evaluated against the decoded feature.
package dynamiclayer

import (
	"context"
	"strings"

	"github.com/skanjila/neo4j-spatial/geo"
	"github.com/skanjila/neo4j-spatial/internal/graph"
)

// Predicate decides whether a geometry vertex belongs in a dynamic
// layer's filtered view.
type Predicate interface {
	Match(ctx context.Context, txn graph.Txn, enc geo.Encoder, geomRef graph.VertexID) (bool, error)
}

// alwaysTrue backs an empty predicate text, letting a Layer with no
// filter configured still go through the same code path as a real one.
type alwaysTrue struct{}

func (alwaysTrue) Match(context.Context, graph.Txn, geo.Encoder, graph.VertexID) (bool, error) {
	return true, nil
}

// Parse dispatches predicateText to whichever dialect it's written in:
// a leading '{' selects the structural JSON dialect, anything else is
// parsed as CQL. An empty string always matches.
func Parse(predicateText string) (Predicate, error) {
	trimmed := strings.TrimSpace(predicateText)
	if trimmed == "" {
		return alwaysTrue{}, nil
	}
	if strings.HasPrefix(trimmed, "{") {
		return ParseStructuralPredicate([]byte(trimmed))
	}
	return ParseCQL(trimmed)
}

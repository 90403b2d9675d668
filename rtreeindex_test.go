package rtreeindex

import (
	"context"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skanjila/neo4j-spatial/geo"
	"github.com/skanjila/neo4j-spatial/internal/graph"
	"github.com/skanjila/neo4j-spatial/pkg/utils"
)

// TestFullIndexPipeline_CityPoints exercises the facade end to end: layer
// creation, indexing a small grid of points, a window search, a dynamic
// predicate-filtered view, and removal.
func TestFullIndexPipeline_CityPoints(t *testing.T) {
	ctx := context.Background()
	store := graph.NewMemoryStore()
	idx := Open(store, &utils.NullLogger{})

	// Step 1: create the base layer.
	layer, err := idx.CreateLayer(ctx, "cities", geo.ShapePoint, 8, 2)
	require.NoError(t, err)

	// Step 2: index a 10x10 grid of points, half tagged "capital".
	refs := make([]graph.VertexID, 0, 100)
	for x := 0; x < 10; x++ {
		for y := 0; y < 10; y++ {
			kind := "town"
			if x%2 == 0 && y%2 == 0 {
				kind = "capital"
			}
			v, err := layer.AddGeometry(ctx, geo.Geometry{
				Shape:      geo.ShapePoint,
				Coords:     orb.Point{float64(x), float64(y)},
				Properties: map[string]any{"kind": kind},
			})
			require.NoError(t, err)
			refs = append(refs, v)
		}
	}

	n, err := layer.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 100, n)

	all, err := layer.SearchAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 100)

	// Step 3: window search over a quadrant should find exactly the
	// points whose coordinates fall within [0,4] on both axes.
	window := geo.NewEnvelope(0, 4, 0, 4)
	inWindow, err := layer.SearchIntersectWindow(ctx, window)
	require.NoError(t, err)
	assert.Len(t, inWindow, 25)

	// Step 4: a dynamic layer narrows the base to capitals only. The CQL
	// dialect decodes each geometry's feature properties, which is where
	// AddGeometry's "kind" property actually landed.
	dyn, err := layer.Dynamic(ctx, "capitals", `kind = 'capital'`)
	require.NoError(t, err)
	assert.Equal(t, "capitals", dyn.Name)

	capitals, err := layer.CountDynamic(ctx, dyn)
	require.NoError(t, err)
	assert.Equal(t, 25, capitals)

	// Step 5: removing a point (and its geometry vertex) drops the base
	// count by one.
	require.NoError(t, layer.Remove(ctx, refs[0], true))
	n, err = layer.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 99, n)
}

package mock

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skanjila/neo4j-spatial/internal/graph"
)

func TestMockTxn_SetAndGetProp(t *testing.T) {
	m := &MockTxn{}
	ctx := context.Background()
	v := graph.VertexID(7)

	m.On("SetProp", ctx, v, graph.PropLayer, "cities").Return(nil)
	m.On("GetProp", ctx, v, graph.PropLayer).Return("cities", true, nil)

	require.NoError(t, m.SetProp(ctx, v, graph.PropLayer, "cities"))
	val, ok, err := m.GetProp(ctx, v, graph.PropLayer)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "cities", val)

	m.AssertExpectations(t)
}

func TestMockTxn_IterateOutNoEdge(t *testing.T) {
	m := &MockTxn{}
	ctx := context.Background()
	v := graph.VertexID(1)

	m.On("IterateOut", ctx, v, graph.EdgeChild).Return([]graph.Edge(nil), nil)

	edges, err := m.IterateOut(ctx, v, graph.EdgeChild)
	require.NoError(t, err)
	assert.Empty(t, edges)

	m.AssertExpectations(t)
}

// Package mock holds testify/mock doubles for the core's two host-facing
// interfaces, graph.Txn and geo.Encoder, for callers that want to assert
// on call sequences rather than drive a real MemoryStore or GormStore.
package mock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/skanjila/neo4j-spatial/geo"
	"github.com/skanjila/neo4j-spatial/internal/graph"
)

// MockTxn is a mock implementation of graph.Txn.
type MockTxn struct {
	mock.Mock
}

func (m *MockTxn) CreateVertex(ctx context.Context) (graph.VertexID, error) {
	args := m.Called(ctx)
	return args.Get(0).(graph.VertexID), args.Error(1)
}

func (m *MockTxn) DeleteVertex(ctx context.Context, v graph.VertexID) error {
	args := m.Called(ctx, v)
	return args.Error(0)
}

func (m *MockTxn) VertexExists(ctx context.Context, v graph.VertexID) (bool, error) {
	args := m.Called(ctx, v)
	return args.Bool(0), args.Error(1)
}

func (m *MockTxn) GetProp(ctx context.Context, v graph.VertexID, key string) (any, bool, error) {
	args := m.Called(ctx, v, key)
	return args.Get(0), args.Bool(1), args.Error(2)
}

func (m *MockTxn) SetProp(ctx context.Context, v graph.VertexID, key string, val any) error {
	args := m.Called(ctx, v, key, val)
	return args.Error(0)
}

func (m *MockTxn) HasProp(ctx context.Context, v graph.VertexID, key string) (bool, error) {
	args := m.Called(ctx, v, key)
	return args.Bool(0), args.Error(1)
}

func (m *MockTxn) RemoveProp(ctx context.Context, v graph.VertexID, key string) error {
	args := m.Called(ctx, v, key)
	return args.Error(0)
}

func (m *MockTxn) Connect(ctx context.Context, src, dst graph.VertexID, t graph.EdgeType) (graph.EdgeID, error) {
	args := m.Called(ctx, src, dst, t)
	return args.Get(0).(graph.EdgeID), args.Error(1)
}

func (m *MockTxn) IterateOut(ctx context.Context, v graph.VertexID, t graph.EdgeType) ([]graph.Edge, error) {
	args := m.Called(ctx, v, t)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]graph.Edge), args.Error(1)
}

func (m *MockTxn) IterateIn(ctx context.Context, v graph.VertexID, t graph.EdgeType) ([]graph.Edge, error) {
	args := m.Called(ctx, v, t)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]graph.Edge), args.Error(1)
}

func (m *MockTxn) SingleOut(ctx context.Context, v graph.VertexID, t graph.EdgeType) (graph.Edge, error) {
	args := m.Called(ctx, v, t)
	return args.Get(0).(graph.Edge), args.Error(1)
}

func (m *MockTxn) SingleIn(ctx context.Context, v graph.VertexID, t graph.EdgeType) (graph.Edge, error) {
	args := m.Called(ctx, v, t)
	return args.Get(0).(graph.Edge), args.Error(1)
}

func (m *MockTxn) DeleteEdge(ctx context.Context, e graph.EdgeID) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

func (m *MockTxn) Success() { m.Called() }

func (m *MockTxn) Finish(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockEncoder is a mock implementation of geo.Encoder.
type MockEncoder struct {
	mock.Mock
}

func (m *MockEncoder) DecodeEnvelope(ctx context.Context, ref geo.GeometryRef) (geo.Envelope, error) {
	args := m.Called(ctx, ref)
	return args.Get(0).(geo.Envelope), args.Error(1)
}

func (m *MockEncoder) DecodeGeometry(ctx context.Context, ref geo.GeometryRef) (geo.Geometry, error) {
	args := m.Called(ctx, ref)
	return args.Get(0).(geo.Geometry), args.Error(1)
}

func (m *MockEncoder) EncodeGeometry(ctx context.Context, g geo.Geometry, target geo.GeometryRef) error {
	args := m.Called(ctx, g, target)
	return args.Error(0)
}

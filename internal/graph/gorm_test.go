package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(&gormVertex{}, &gormProperty{}, &gormEdge{})
	require.NoError(t, err)

	return db
}

func TestGormStore_CreateVertexAndProps(t *testing.T) {
	store := NewGormStore(setupTestDB(t))
	ctx := context.Background()

	txn, err := store.Begin(ctx)
	require.NoError(t, err)

	v, err := txn.CreateVertex(ctx)
	require.NoError(t, err)

	require.NoError(t, txn.SetProp(ctx, v, PropGType, 1))
	val, ok, err := txn.GetProp(ctx, v, PropGType)
	require.NoError(t, err)
	require.True(t, ok)
	assert.EqualValues(t, 1, val)

	has, err := txn.HasProp(ctx, v, PropGType)
	require.NoError(t, err)
	assert.True(t, has)

	require.NoError(t, txn.RemoveProp(ctx, v, PropGType))
	_, ok, err = txn.GetProp(ctx, v, PropGType)
	require.NoError(t, err)
	assert.False(t, ok)

	txn.Success()
	require.NoError(t, txn.Finish(ctx))

	exists, err := store.GetVertexByID(ctx, v)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestGormStore_RollbackOnMissingSuccess(t *testing.T) {
	store := NewGormStore(setupTestDB(t))
	ctx := context.Background()

	txn, err := store.Begin(ctx)
	require.NoError(t, err)
	v, err := txn.CreateVertex(ctx)
	require.NoError(t, err)
	// No Success() call: Finish must roll back the created vertex.
	require.NoError(t, txn.Finish(ctx))

	exists, err := store.GetVertexByID(ctx, v)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestGormStore_EdgesRoundTrip(t *testing.T) {
	store := NewGormStore(setupTestDB(t))
	ctx := context.Background()

	txn, err := store.Begin(ctx)
	require.NoError(t, err)

	parent, err := txn.CreateVertex(ctx)
	require.NoError(t, err)
	child1, err := txn.CreateVertex(ctx)
	require.NoError(t, err)
	child2, err := txn.CreateVertex(ctx)
	require.NoError(t, err)

	_, err = txn.Connect(ctx, parent, child1, EdgeChild)
	require.NoError(t, err)
	eid2, err := txn.Connect(ctx, parent, child2, EdgeChild)
	require.NoError(t, err)

	children, err := txn.IterateOut(ctx, parent, EdgeChild)
	require.NoError(t, err)
	assert.Len(t, children, 2)

	parents, err := txn.IterateIn(ctx, child1, EdgeChild)
	require.NoError(t, err)
	require.Len(t, parents, 1)
	assert.Equal(t, parent, parents[0].Src)

	_, err = txn.SingleOut(ctx, parent, EdgeChild)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoSuchEdge)
	// two outgoing CHILD edges: SingleOut must reject ambiguity, not pick one,
	// and ambiguity is a distinct error from the zero-edge case.

	require.NoError(t, txn.DeleteEdge(ctx, eid2))
	children, err = txn.IterateOut(ctx, parent, EdgeChild)
	require.NoError(t, err)
	assert.Len(t, children, 1)

	single, err := txn.SingleOut(ctx, parent, EdgeChild)
	require.NoError(t, err)
	assert.Equal(t, child1, single.Dst)

	txn.Success()
	require.NoError(t, txn.Finish(ctx))
}

func TestGormStore_DeleteVertexRemovesProperties(t *testing.T) {
	store := NewGormStore(setupTestDB(t))
	ctx := context.Background()

	txn, err := store.Begin(ctx)
	require.NoError(t, err)
	v, err := txn.CreateVertex(ctx)
	require.NoError(t, err)
	require.NoError(t, txn.SetProp(ctx, v, PropLayer, "cities"))

	require.NoError(t, txn.DeleteVertex(ctx, v))
	txn.Success()
	require.NoError(t, txn.Finish(ctx))

	exists, err := store.GetVertexByID(ctx, v)
	require.NoError(t, err)
	assert.False(t, exists)
}

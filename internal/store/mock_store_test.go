// ABOUTME: Tests for MockStore
// ABOUTME: Verifies it behaves like SQLiteStore for the operations handlers rely on

package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockStore_AddAndWhere(t *testing.T) {
	m := NewMockStore()
	ctx := context.Background()

	snap, err := m.Add(ctx, "genesis_logs", Document{"node_id": "ALPHA-01", "timestamp": ServerTimestamp})
	require.NoError(t, err)
	assert.NotEmpty(t, snap.ID)
	assert.IsType(t, "", snap.Data["timestamp"], "mock copies documents through JSON")

	got, err := m.Where(ctx, "genesis_logs", "node_id", "ALPHA-01")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, snap.ID, got[0].ID)
	assert.Equal(t, 1, m.AddCount())
	assert.Equal(t, 1, m.Count("genesis_logs"))
}

func TestMockStore_ReturnsCopies(t *testing.T) {
	m := NewMockStore()
	ctx := context.Background()

	doc := Document{"node_id": "ALPHA-01"}
	_, err := m.Add(ctx, "genesis_logs", doc)
	require.NoError(t, err)
	doc["node_id"] = "mutated"

	got, err := m.Where(ctx, "genesis_logs", "node_id", "ALPHA-01")
	require.NoError(t, err)
	require.Len(t, got, 1)
	got[0].Data["node_id"] = "mutated again"

	again, err := m.Where(ctx, "genesis_logs", "node_id", "ALPHA-01")
	require.NoError(t, err)
	assert.Len(t, again, 1)
}

func TestMockStore_Unique(t *testing.T) {
	m := NewMockStore()
	ctx := context.Background()
	require.NoError(t, m.EnsureUnique(ctx, "genesis_logs", "node_id"))

	_, err := m.Add(ctx, "genesis_logs", Document{"node_id": "ALPHA-01"})
	require.NoError(t, err)
	_, err = m.Add(ctx, "genesis_logs", Document{"node_id": "ALPHA-01"})
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.Equal(t, 1, m.AddCount())
}

func TestMockStore_FailWith(t *testing.T) {
	m := NewMockStore()
	ctx := context.Background()
	boom := errors.New("firestore unavailable")
	m.FailWith(boom)

	_, err := m.Add(ctx, "genesis_logs", Document{})
	assert.ErrorIs(t, err, boom)
	_, err = m.Where(ctx, "genesis_logs", "node_id", "x")
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, m.EnsureUnique(ctx, "genesis_logs", "node_id"), boom)
	assert.ErrorIs(t, m.Ping(ctx), boom)

	m.FailWith(nil)
	assert.NoError(t, m.Ping(ctx))
	assert.Equal(t, 0, m.AddCount())
}

func TestMockStore_Secrets(t *testing.T) {
	m := NewMockStore()
	ctx := context.Background()

	require.NoError(t, m.SetSecret(ctx, &Secret{Key: "B", Value: `{"v":1}`}))
	require.NoError(t, m.SetSecret(ctx, &Secret{Key: "A", Value: `{"v":2}`}))
	require.NoError(t, m.SetSecret(ctx, &Secret{Key: "B", Value: `{"v":3}`}))
	assert.Error(t, m.SetSecret(ctx, &Secret{Key: "C", Value: `nope`}))

	got, err := m.GetSecretByKey(ctx, "B")
	require.NoError(t, err)
	assert.Equal(t, `{"v":3}`, got.Value)

	all, err := m.ListAllSecrets(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "A", all[0].Key)

	require.NoError(t, m.DeleteSecret(ctx, "A"))
	_, err = m.GetSecretByKey(ctx, "A")
	assert.ErrorIs(t, err, ErrNotFound)
}

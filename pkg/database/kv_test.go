package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryKV_SetGet(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()

	_, err := kv.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	require.NoError(t, kv.Set(ctx, "k", "v1"))
	require.NoError(t, kv.Set(ctx, "k", "v2"))

	got, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v2", got)
}

func TestSQLiteKV_ReplaceAndMissing(t *testing.T) {
	ctx := context.Background()
	kv, err := OpenSQLiteKV(filepath.Join(t.TempDir(), "nested", "offline.db"))
	require.NoError(t, err)
	defer kv.Close()

	_, err = kv.Get(ctx, "offline_module:m1")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	require.NoError(t, kv.Set(ctx, "offline_module:m1", `{"a":1}`))
	require.NoError(t, kv.Set(ctx, "offline_module:m1", `{"b":2}`))

	got, err := kv.Get(ctx, "offline_module:m1")
	require.NoError(t, err)
	assert.Equal(t, `{"b":2}`, got)
}

func TestSQLiteKV_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "offline.db")

	kv, err := OpenSQLiteKV(path)
	require.NoError(t, err)
	require.NoError(t, kv.Set(ctx, "k", "persisted"))
	require.NoError(t, kv.Close())

	reopened, err := OpenSQLiteKV(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "persisted", got)
}

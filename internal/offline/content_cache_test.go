package offline

import (
	"coder_edu_sync/pkg/database"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownloadModuleReplacesWholeEntry(t *testing.T) {
	ctx := context.Background()
	cache := NewContentCache(database.NewMemoryKV())

	cache.DownloadModule(ctx, "m1", json.RawMessage(`{"lessons":["intro"],"quiz":true}`))
	cache.DownloadModule(ctx, "m1", json.RawMessage(`{"lessons":["intro","loops"]}`))

	entry, ok := cache.GetOfflineModule(ctx, "m1")
	require.True(t, ok)
	assert.Equal(t, ContentVersion, entry.Version)
	assert.JSONEq(t, `{"lessons":["intro","loops"]}`, string(entry.Content))
}

func TestDownloadModuleKeepsPrivateCopy(t *testing.T) {
	ctx := context.Background()
	cache := NewContentCache(nil)

	content := json.RawMessage(`{"a":1}`)
	cache.DownloadModule(ctx, "m1", content)
	content[5] = '2'

	entry, ok := cache.GetOfflineModule(ctx, "m1")
	require.True(t, ok)
	assert.JSONEq(t, `{"a":1}`, string(entry.Content))
}

func TestGetOfflineModuleReadsThroughAfterRestart(t *testing.T) {
	ctx := context.Background()
	kv := database.NewMemoryKV()
	NewContentCache(kv).DownloadModule(ctx, "m1", json.RawMessage(`{"a":1}`))

	restarted := NewContentCache(kv)
	entry, ok := restarted.GetOfflineModule(ctx, "m1")
	require.True(t, ok)
	assert.Equal(t, "m1", entry.ModuleID)
	assert.JSONEq(t, `{"a":1}`, string(entry.Content))

	_, ok = restarted.GetOfflineModule(ctx, "m2")
	assert.False(t, ok)
}

func TestPersistFailureDoesNotAffectMemory(t *testing.T) {
	ctx := context.Background()
	cache := NewContentCache(failingKV{})

	entry := cache.DownloadModule(ctx, "m1", json.RawMessage(`{"a":1}`))
	assert.Equal(t, "m1", entry.ModuleID)

	got, ok := cache.GetOfflineModule(ctx, "m1")
	require.True(t, ok)
	assert.JSONEq(t, `{"a":1}`, string(got.Content))

	// 无法编码的内容同样只影响持久化
	cache.DownloadModule(ctx, "m2", json.RawMessage(`{broken`))
	got, ok = cache.GetOfflineModule(ctx, "m2")
	require.True(t, ok)
	assert.Equal(t, `{broken`, string(got.Content))
}

package offline

import (
	"coder_edu_sync/internal/model"
	"coder_edu_sync/pkg/database"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueAppendsInOrderWithoutDedup(t *testing.T) {
	q := NewQueue(0, nil)
	first := enqueueProgress(t, q, "u1", "m1", true)
	second := enqueueProgress(t, q, "u1", "m1", true)

	assert.NotEqual(t, first.ID, second.ID)
	assert.False(t, first.EnqueuedAt.IsZero())
	assert.Equal(t, []string{first.ID, second.ID}, ids(q.Snapshot()))
	assert.Equal(t, ProgressIdentity("u1", "m1"), first.IdentityKey)
}

func TestQueueRejectsMalformedPayloads(t *testing.T) {
	q := NewQueue(0, nil)
	ctx := context.Background()

	tests := []struct {
		name string
		m    model.PendingMutation
	}{
		{"unknown kind", model.PendingMutation{Kind: "grade", Payload: json.RawMessage(`{}`)}},
		{"empty payload", model.PendingMutation{Kind: model.MutationProgress}},
		{"not json", model.PendingMutation{Kind: model.MutationProgress, Payload: json.RawMessage(`{`)}},
		{"missing module", model.PendingMutation{Kind: model.MutationProgress, Payload: json.RawMessage(`{"userId":"u1"}`)}},
		{"negative time", model.PendingMutation{Kind: model.MutationProgress, Payload: json.RawMessage(`{"userId":"u1","moduleId":"m1","timeSpent":-1}`)}},
		{"missing todo", model.PendingMutation{Kind: model.MutationTodo, Payload: json.RawMessage(`{"userId":"u1","moduleId":"m1"}`)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := q.AddPendingSync(ctx, tt.m)
			assert.ErrorIs(t, err, ErrInvalidMutation)
		})
	}
	assert.Equal(t, 0, q.Len())
}

func TestQueueFull(t *testing.T) {
	q := NewQueue(2, nil)
	enqueueProgress(t, q, "u1", "m1", true)
	enqueueProgress(t, q, "u1", "m2", true)

	completed := true
	m, err := NewProgressMutation(model.ProgressUpsert{UserID: "u1", ModuleID: "m3", Completed: &completed})
	require.NoError(t, err)
	_, err = q.AddPendingSync(context.Background(), m)
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Equal(t, 2, q.Len())
}

func TestQueueUpdateKeepsPosition(t *testing.T) {
	q := NewQueue(0, nil)
	ctx := context.Background()
	a := enqueueProgress(t, q, "u1", "m1", true)
	b := enqueueProgress(t, q, "u1", "m2", true)

	a.Attempts = 3
	require.True(t, q.Update(ctx, a))

	snapshot := q.Snapshot()
	assert.Equal(t, []string{a.ID, b.ID}, ids(snapshot))
	assert.Equal(t, 3, snapshot[0].Attempts)

	require.True(t, q.Remove(ctx, a.ID))
	assert.False(t, q.Remove(ctx, a.ID))
	assert.Equal(t, []string{b.ID}, ids(q.Snapshot()))
}

func TestQueueSnapshotIsCopy(t *testing.T) {
	q := NewQueue(0, nil)
	enqueueProgress(t, q, "u1", "m1", true)

	snapshot := q.Snapshot()
	snapshot[0].Attempts = 99
	assert.Equal(t, 0, q.Snapshot()[0].Attempts)
}

func TestQueueRestoreFromKV(t *testing.T) {
	kv := database.NewMemoryKV()
	q := NewQueue(0, kv)
	a := enqueueProgress(t, q, "u1", "m1", true)
	b := enqueueProgress(t, q, "u1", "m2", false)

	restored := NewQueue(0, kv)
	n, err := restored.Restore(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{a.ID, b.ID}, ids(restored.Snapshot()))
}

func TestQueuePersistFailureKeepsMemory(t *testing.T) {
	q := NewQueue(0, failingKV{})
	enqueueProgress(t, q, "u1", "m1", true)
	assert.Equal(t, 1, q.Len())
}

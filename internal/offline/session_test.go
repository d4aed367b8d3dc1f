package offline

import (
	"coder_edu_sync/internal/model"
	"coder_edu_sync/pkg/database"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	content json.RawMessage
	err     error
}

func (f *fakeFetcher) FetchModuleContent(ctx context.Context, moduleID string) (json.RawMessage, error) {
	return f.content, f.err
}

func newTestSession(online, autoSync bool) (*Session, *fakeRemote, *fakeConn, *fakeFetcher) {
	e, _, r, conn := newTestEngine(online)
	fetcher := &fakeFetcher{content: json.RawMessage(`{"lessons":[]}`)}
	return NewSession("u1", e, NewContentCache(database.NewMemoryKV()), fetcher, autoSync), r, conn, fetcher
}

func TestOfflineEndToEnd(t *testing.T) {
	s, r, conn, _ := newTestSession(false, false)
	ctx := context.Background()

	record, err := s.SaveProgress(ctx, "m1", ProgressPatch{Completed: boolPtr(true), Score: floatPtr(80)})
	require.NoError(t, err)
	assert.True(t, record.Completed)

	_, err = s.Queue.AddPendingSync(ctx, model.PendingMutation{
		Kind:    model.MutationProgress,
		Payload: json.RawMessage(`{"userId":"u1","moduleId":"m1","completed":true,"score":80}`),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, s.Status().QueueDepth)

	// 离线时不访问网络
	require.NoError(t, s.SyncNow(ctx))
	assert.Equal(t, 0, r.totalCalls())

	conn.set(true)
	require.NoError(t, s.SyncNow(ctx))

	assert.Equal(t, 0, s.Queue.Len())
	assert.Equal(t, 2, r.totalCalls())

	local, ok := s.GetModuleProgress("m1")
	require.True(t, ok)
	assert.True(t, local.Completed)
	assert.Equal(t, 80.0, *local.Score)

	status := s.Status()
	assert.True(t, status.Online)
	assert.NotNil(t, status.LastSyncAt)
}

func TestSessionEnqueuesFullRecord(t *testing.T) {
	s, r, conn, _ := newTestSession(false, false)
	ctx := context.Background()

	_, err := s.SaveProgress(ctx, "m1", ProgressPatch{TimeSpent: intPtr(60)})
	require.NoError(t, err)
	_, err = s.CompleteLesson(ctx, "m1", 2)
	require.NoError(t, err)

	conn.set(true)
	require.NoError(t, s.SyncNow(ctx))

	require.Len(t, r.progress, 2)
	last := r.progress[1]
	assert.Equal(t, "u1", last.UserID)
	assert.Equal(t, 60, *last.TimeSpent)
	assert.Equal(t, 3, *last.CurrentLesson)
	assert.False(t, *last.Completed)
	assert.Nil(t, last.Score)
}

func TestSessionToggleTodoSkipsNoop(t *testing.T) {
	s, r, conn, _ := newTestSession(false, false)
	ctx := context.Background()

	_, err := s.ToggleTodo(ctx, "m1", "t1", true)
	require.NoError(t, err)
	_, err = s.ToggleTodo(ctx, "m1", "t1", true)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Queue.Len())

	conn.set(true)
	require.NoError(t, s.SyncNow(ctx))
	require.Len(t, r.todos, 1)
	assert.Equal(t, model.TodoUpsert{UserID: "u1", ModuleID: "m1", TodoID: "t1", Completed: true}, r.todos[0])
}

func TestSessionAutoSyncWhenOnline(t *testing.T) {
	s, r, _, _ := newTestSession(true, true)

	_, err := s.ToggleTodo(context.Background(), "m1", "t1", true)
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return s.Queue.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, r.totalCalls())
}

func TestSessionRejectsInvalidInput(t *testing.T) {
	s, _, _, _ := newTestSession(false, false)
	ctx := context.Background()

	_, err := s.SaveProgress(ctx, "", ProgressPatch{})
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = s.SaveProgress(ctx, "m1", ProgressPatch{TimeSpent: intPtr(-5)})
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = s.CompleteLesson(ctx, "m1", -1)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = s.ToggleTodo(ctx, "m1", " ", true)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, ok := s.GetModuleProgress("m1")
	assert.False(t, ok, "rejected input must not touch local state")
	assert.Equal(t, 0, s.Queue.Len())
}

func TestSessionQueueFullKeepsLocalState(t *testing.T) {
	s, _, _, _ := newTestSession(false, false)
	s.Queue = NewQueue(1, nil)
	ctx := context.Background()

	_, err := s.ToggleTodo(ctx, "m1", "t1", true)
	require.NoError(t, err)
	_, err = s.ToggleTodo(ctx, "m1", "t2", true)
	assert.ErrorIs(t, err, ErrQueueFull)

	_, ok := s.GetTodoProgress("m1", "t2")
	assert.True(t, ok)
}

func TestSessionDownloadModule(t *testing.T) {
	s, _, conn, fetcher := newTestSession(false, false)
	ctx := context.Background()

	_, err := s.DownloadModule(ctx, "m1")
	assert.ErrorIs(t, err, ErrOffline)

	conn.set(true)
	entry, err := s.DownloadModule(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, ContentVersion, entry.Version)

	cached, ok := s.GetOfflineModule(ctx, "m1")
	require.True(t, ok)
	assert.JSONEq(t, `{"lessons":[]}`, string(cached.Content))

	fetcher.err = errors.New("gateway down")
	_, err = s.DownloadModule(ctx, "m2")
	assert.Error(t, err)
	_, ok = s.GetOfflineModule(ctx, "m2")
	assert.False(t, ok)
}

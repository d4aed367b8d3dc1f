package offline

import (
	"coder_edu_sync/internal/model"
	"coder_edu_sync/internal/remote"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeConn 可手动切换的连通性
type fakeConn struct {
	mu        sync.Mutex
	online    bool
	listeners []func()
}

func (c *fakeConn) IsOnline() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.online
}

func (c *fakeConn) OnOnline(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

func (c *fakeConn) set(online bool) {
	c.mu.Lock()
	was := c.online
	c.online = online
	listeners := append([]func(){}, c.listeners...)
	c.mu.Unlock()
	if online && !was {
		for _, fn := range listeners {
			fn()
		}
	}
}

// fakeRemote 记录每次调用，按 identity 返回预设错误
type fakeRemote struct {
	mu       sync.Mutex
	calls    []string
	progress []model.ProgressUpsert
	todos    []model.TodoUpsert
	failures map[string]error
	once     map[string]error
	block    chan struct{}
	started  chan struct{}
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{failures: make(map[string]error), once: make(map[string]error)}
}

// failOnce 只让该 identity 的下一次调用失败
func (r *fakeRemote) failOnce(identity string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.once[identity] = err
}

func (r *fakeRemote) failWith(identity string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures[identity] = err
}

func (r *fakeRemote) clear(identity string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.failures, identity)
}

func (r *fakeRemote) record(identity string) error {
	r.mu.Lock()
	r.calls = append(r.calls, identity)
	err := r.failures[identity]
	if onceErr, ok := r.once[identity]; ok {
		err = onceErr
		delete(r.once, identity)
	}
	block, started := r.block, r.started
	r.mu.Unlock()

	if started != nil {
		select {
		case started <- struct{}{}:
		default:
		}
	}
	if block != nil {
		<-block
	}
	return err
}

func (r *fakeRemote) UpsertProgress(ctx context.Context, req model.ProgressUpsert) (*model.ModuleProgress, error) {
	if err := r.record(ProgressIdentity(req.UserID, req.ModuleID)); err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.progress = append(r.progress, req)
	r.mu.Unlock()
	return &model.ModuleProgress{UserID: req.UserID, ModuleID: req.ModuleID}, nil
}

func (r *fakeRemote) UpsertTodoProgress(ctx context.Context, req model.TodoUpsert) (*model.TodoProgress, error) {
	if err := r.record(TodoIdentity(req.UserID, req.ModuleID, req.TodoID)); err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.todos = append(r.todos, req)
	r.mu.Unlock()
	return &model.TodoProgress{UserID: req.UserID, ModuleID: req.ModuleID, TodoID: req.TodoID}, nil
}

func (r *fakeRemote) callCount() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[string]int)
	for _, c := range r.calls {
		counts[c]++
	}
	return counts
}

func (r *fakeRemote) totalCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

var errNetwork = errors.New("connection reset")

func statusErr(code int) error {
	return &remote.StatusError{StatusCode: code, Message: "status"}
}

// failingKV 持久化总是失败
type failingKV struct{}

func (failingKV) Set(ctx context.Context, key, value string) error {
	return errors.New("disk full")
}

func (failingKV) Get(ctx context.Context, key string) (string, error) {
	return "", errors.New("disk unavailable")
}

// testPolicy 无退避、无限速，便于在一次测试中连续 drain
func testPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 5}
}

func enqueueProgress(t *testing.T, q *Queue, userID, moduleID string, completed bool) model.PendingMutation {
	t.Helper()
	m, err := NewProgressMutation(model.ProgressUpsert{UserID: userID, ModuleID: moduleID, Completed: &completed})
	require.NoError(t, err)
	entry, err := q.AddPendingSync(context.Background(), m)
	require.NoError(t, err)
	return entry
}

func ids(entries []model.PendingMutation) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.ID
	}
	return out
}

func rawPayload(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *clock {
	return &clock{t: time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

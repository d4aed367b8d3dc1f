package offline

import (
	"coder_edu_sync/internal/model"
	"coder_edu_sync/pkg/database"
	"coder_edu_sync/pkg/logger"
	"coder_edu_sync/pkg/monitoring"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const queueKey = "pending_mutations"

// Queue 待同步变更的有序缓冲区。生产者只追加，移除和更新只由同步引擎在单次 drain 内进行
type Queue struct {
	mu      sync.Mutex
	entries []model.PendingMutation
	maxSize int
	now     func() time.Time

	// kv 为空时队列只存在于内存
	kv        KV
	persistMu sync.Mutex
}

func NewQueue(maxSize int, kv KV) *Queue {
	return &Queue{
		maxSize: maxSize,
		kv:      kv,
		now:     time.Now,
	}
}

// AddPendingSync 分配 ID 与入队时间后追加到队尾，不做去重
func (q *Queue) AddPendingSync(ctx context.Context, m model.PendingMutation) (model.PendingMutation, error) {
	if _, err := decodeMutation(&m); err != nil {
		return model.PendingMutation{}, err
	}

	m.ID = uuid.NewString()
	m.EnqueuedAt = q.now()
	m.Attempts = 0
	m.NextAttemptAt = time.Time{}
	m.LastError = ""

	q.mu.Lock()
	if q.maxSize > 0 && len(q.entries) >= q.maxSize {
		q.mu.Unlock()
		return model.PendingMutation{}, ErrQueueFull
	}
	q.entries = append(q.entries, m)
	depth := len(q.entries)
	q.mu.Unlock()

	monitoring.QueueDepth.Set(float64(depth))
	q.persist(ctx)
	return m, nil
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

func (q *Queue) MaxSize() int {
	return q.maxSize
}

// Snapshot 按 FIFO 顺序返回副本
func (q *Queue) Snapshot() []model.PendingMutation {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]model.PendingMutation, len(q.entries))
	copy(out, q.entries)
	return out
}

func (q *Queue) Remove(ctx context.Context, id string) bool {
	q.mu.Lock()
	removed := false
	for i := range q.entries {
		if q.entries[i].ID == id {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			removed = true
			break
		}
	}
	depth := len(q.entries)
	q.mu.Unlock()

	if removed {
		monitoring.QueueDepth.Set(float64(depth))
		q.persist(ctx)
	}
	return removed
}

// Update 按 ID 原位替换，保持条目在队列中的位置
func (q *Queue) Update(ctx context.Context, m model.PendingMutation) bool {
	q.mu.Lock()
	updated := false
	for i := range q.entries {
		if q.entries[i].ID == m.ID {
			q.entries[i] = m
			updated = true
			break
		}
	}
	q.mu.Unlock()

	if updated {
		q.persist(ctx)
	}
	return updated
}

// Restore 进程启动时从本地存储恢复上次未送达的变更，追加在当前条目之前
func (q *Queue) Restore(ctx context.Context) (int, error) {
	if q.kv == nil {
		return 0, nil
	}
	raw, err := q.kv.Get(ctx, queueKey)
	if errors.Is(err, database.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	var saved []model.PendingMutation
	if err := json.Unmarshal([]byte(raw), &saved); err != nil {
		return 0, err
	}

	q.mu.Lock()
	q.entries = append(saved, q.entries...)
	depth := len(q.entries)
	q.mu.Unlock()

	monitoring.QueueDepth.Set(float64(depth))
	return len(saved), nil
}

// persist 尽力而为：失败只记录日志，内存中的队列始终是权威状态
func (q *Queue) persist(ctx context.Context) {
	if q.kv == nil {
		return
	}
	// 串行化写入，保证最后落盘的一定是最新快照
	q.persistMu.Lock()
	defer q.persistMu.Unlock()

	data, err := json.Marshal(q.Snapshot())
	if err != nil {
		logger.Log.Error("Failed to encode pending queue", zap.Error(err))
		return
	}
	if err := q.kv.Set(context.WithoutCancel(ctx), queueKey, string(data)); err != nil {
		logger.Log.Warn("Failed to persist pending queue", zap.Error(err))
	}
}

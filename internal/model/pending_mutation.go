package model

import (
	"encoding/json"
	"time"
)

type MutationKind string

const (
	MutationProgress MutationKind = "progress"
	MutationTodo     MutationKind = "todo"
)

// PendingMutation 待同步的本地变更，按入队顺序（FIFO）重放到远端幂等 upsert 接口
type PendingMutation struct {
	ID            string          `json:"id"`
	Kind          MutationKind    `json:"type"`
	Payload       json.RawMessage `json:"payload"`
	IdentityKey   string          `json:"identityKey"` // 同一实体的变更必须按入队顺序送达
	EnqueuedAt    time.Time       `json:"enqueuedAt"`
	Attempts      int             `json:"attempts"`
	NextAttemptAt time.Time       `json:"nextAttemptAt"`
	LastError     string          `json:"lastError,omitempty"`
}

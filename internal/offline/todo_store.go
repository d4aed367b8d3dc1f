package offline

import (
	"coder_edu_sync/internal/model"
	"sort"
	"sync"
	"time"
)

type todoKey struct {
	moduleID string
	todoID   string
}

type TodoStore struct {
	mu      sync.RWMutex
	userID  string
	records map[todoKey]model.TodoProgress
	now     func() time.Time
}

func NewTodoStore(userID string) *TodoStore {
	return &TodoStore{
		userID:  userID,
		records: make(map[todoKey]model.TodoProgress),
		now:     time.Now,
	}
}

func (s *TodoStore) GetTodoProgress(moduleID, todoID string) (model.TodoProgress, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[todoKey{moduleID, todoID}]
	return record, ok
}

// GetModuleTodoProgress 返回模块下全部清单项，按 TodoID 排序
func (s *TodoStore) GetModuleTodoProgress(moduleID string) []model.TodoProgress {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.TodoProgress, 0)
	for key, record := range s.records {
		if key.moduleID == moduleID {
			out = append(out, record)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].TodoID < out[j].TodoID
	})
	return out
}

// UpdateTodoProgress 按 (moduleID, todoID) upsert。值未变化时不做任何修改，changed 为 false
func (s *TodoStore) UpdateTodoProgress(moduleID, todoID string, completed bool) (record model.TodoProgress, changed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := todoKey{moduleID, todoID}
	record, ok := s.records[key]
	if ok && record.Completed == completed {
		return record, false
	}

	now := s.now()
	if !ok {
		record = model.TodoProgress{
			UserID:    s.userID,
			ModuleID:  moduleID,
			TodoID:    todoID,
			CreatedAt: now,
		}
	}
	record.Completed = completed
	record.UpdatedAt = now
	s.records[key] = record
	return record, true
}

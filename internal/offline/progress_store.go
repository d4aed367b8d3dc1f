package offline

import (
	"coder_edu_sync/internal/model"
	"sort"
	"sync"
	"time"
)

// ProgressPatch 部分字段更新，nil 表示保持原值
type ProgressPatch struct {
	Completed     *bool      `json:"completed,omitempty"`
	Score         *float64   `json:"score,omitempty" validate:"omitempty,gte=0"`
	TimeSpent     *int       `json:"timeSpent,omitempty" validate:"omitempty,gte=0"`
	CurrentLesson *int       `json:"currentLesson,omitempty" validate:"omitempty,gte=0"`
	LastAccessed  *time.Time `json:"lastAccessed,omitempty"`
}

// ProgressStore 单个用户的本地进度，所有读写都以它为准，变更同步生效
type ProgressStore struct {
	mu      sync.RWMutex
	userID  string
	records map[string]*model.ModuleProgress
	now     func() time.Time
}

func NewProgressStore(userID string) *ProgressStore {
	return &ProgressStore{
		userID:  userID,
		records: make(map[string]*model.ModuleProgress),
		now:     time.Now,
	}
}

func (s *ProgressStore) GetModuleProgress(moduleID string) (model.ModuleProgress, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[moduleID]
	if !ok {
		return model.ModuleProgress{}, false
	}
	return record.Clone(), true
}

// UpdateProgress 浅合并到已有记录；不存在时先按默认值创建再合并
func (s *ProgressStore) UpdateProgress(moduleID string, patch ProgressPatch) model.ModuleProgress {
	s.mu.Lock()
	defer s.mu.Unlock()

	record := s.getOrCreate(moduleID)
	if patch.Completed != nil {
		record.Completed = *patch.Completed
	}
	if patch.Score != nil {
		score := *patch.Score
		record.Score = &score
	}
	if patch.TimeSpent != nil {
		record.TimeSpent = *patch.TimeSpent
	}
	if patch.CurrentLesson != nil {
		record.CurrentLesson = *patch.CurrentLesson
	}
	if patch.LastAccessed != nil {
		record.LastAccessed = *patch.LastAccessed
	}
	return record.Clone()
}

// CompleteLesson 把当前课时推进到 lessonIndex+1，只增不减，重复调用结果相同
func (s *ProgressStore) CompleteLesson(moduleID string, lessonIndex int) model.ModuleProgress {
	s.mu.Lock()
	defer s.mu.Unlock()

	record := s.getOrCreate(moduleID)
	if next := lessonIndex + 1; next > record.CurrentLesson {
		record.CurrentLesson = next
	}
	record.LastAccessed = s.now()
	return record.Clone()
}

// AllProgress 按 ModuleID 排序返回全部记录
func (s *ProgressStore) AllProgress() []model.ModuleProgress {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.ModuleProgress, 0, len(s.records))
	for _, record := range s.records {
		out = append(out, record.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ModuleID < out[j].ModuleID
	})
	return out
}

func (s *ProgressStore) getOrCreate(moduleID string) *model.ModuleProgress {
	record, ok := s.records[moduleID]
	if !ok {
		record = &model.ModuleProgress{
			UserID:       s.userID,
			ModuleID:     moduleID,
			LastAccessed: s.now(),
		}
		s.records[moduleID] = record
	}
	return record
}

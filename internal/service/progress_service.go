package service

import (
	"coder_edu_sync/internal/model"
	"coder_edu_sync/internal/util"
	"context"
	"time"
)

type ProgressStore interface {
	Upsert(ctx context.Context, progress *model.ModuleProgress, columns []string) error
	FindByUserAndModule(ctx context.Context, userID, moduleID string) (*model.ModuleProgress, error)
}

type TodoProgressStore interface {
	Upsert(ctx context.Context, todo *model.TodoProgress) error
	Find(ctx context.Context, userID, moduleID, todoID string) (*model.TodoProgress, error)
	ListByUserAndModule(ctx context.Context, userID, moduleID string) ([]model.TodoProgress, error)
}

// ProgressService 进度同步的远端落库逻辑，所有写操作都是按自然键的幂等 upsert
type ProgressService struct {
	ProgressRepo ProgressStore
	TodoRepo     TodoProgressStore
	now          func() time.Time
}

func NewProgressService(progressRepo ProgressStore, todoRepo TodoProgressStore) *ProgressService {
	return &ProgressService{
		ProgressRepo: progressRepo,
		TodoRepo:     todoRepo,
		now:          time.Now,
	}
}

func (s *ProgressService) UpsertProgress(ctx context.Context, principal model.Principal, req model.ProgressUpsert) (*model.ModuleProgress, error) {
	if !principal.CanActFor(req.UserID) {
		return nil, util.ErrPermissionDenied
	}

	progress := &model.ModuleProgress{
		UserID:       req.UserID,
		ModuleID:     req.ModuleID,
		LastAccessed: s.now(),
	}
	// 只更新请求中出现的字段，其余保持服务端现值
	columns := []string{"last_accessed", "updated_at"}
	if req.Completed != nil {
		progress.Completed = *req.Completed
		columns = append(columns, "completed")
	}
	if req.Score != nil {
		score := *req.Score
		progress.Score = &score
		columns = append(columns, "score")
	}
	if req.TimeSpent != nil {
		progress.TimeSpent = *req.TimeSpent
		columns = append(columns, "time_spent")
	}
	if req.CurrentLesson != nil {
		progress.CurrentLesson = *req.CurrentLesson
		columns = append(columns, "current_lesson")
	}

	if err := s.ProgressRepo.Upsert(ctx, progress, columns); err != nil {
		return nil, err
	}
	return s.ProgressRepo.FindByUserAndModule(ctx, req.UserID, req.ModuleID)
}

func (s *ProgressService) GetProgress(ctx context.Context, principal model.Principal, moduleID string) (*model.ModuleProgress, error) {
	return s.ProgressRepo.FindByUserAndModule(ctx, principal.ID, moduleID)
}

func (s *ProgressService) UpsertTodoProgress(ctx context.Context, principal model.Principal, req model.TodoUpsert) (*model.TodoProgress, error) {
	if !principal.CanActFor(req.UserID) {
		return nil, util.ErrPermissionDenied
	}

	now := s.now()
	todo := &model.TodoProgress{
		UserID:    req.UserID,
		ModuleID:  req.ModuleID,
		TodoID:    req.TodoID,
		Completed: req.Completed,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.TodoRepo.Upsert(ctx, todo); err != nil {
		return nil, err
	}
	return s.TodoRepo.Find(ctx, req.UserID, req.ModuleID, req.TodoID)
}

func (s *ProgressService) ListModuleTodoProgress(ctx context.Context, principal model.Principal, moduleID string) ([]model.TodoProgress, error) {
	return s.TodoRepo.ListByUserAndModule(ctx, principal.ID, moduleID)
}

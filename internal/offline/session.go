package offline

import (
	"coder_edu_sync/internal/model"
	"coder_edu_sync/pkg/logger"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

type ContentFetcher interface {
	FetchModuleContent(ctx context.Context, moduleID string) (json.RawMessage, error)
}

// Session 一个客户端会话的两阶段写入入口：
// 第一阶段同步修改本地状态，第二阶段入队并在在线时后台送达网关
type Session struct {
	UserID   string
	Progress *ProgressStore
	Todos    *TodoStore
	Cache    *ContentCache
	Queue    *Queue
	Engine   *Engine

	conn     Connectivity
	fetcher  ContentFetcher
	autoSync bool
}

func NewSession(userID string, engine *Engine, cache *ContentCache, fetcher ContentFetcher, autoSync bool) *Session {
	return &Session{
		UserID:   userID,
		Progress: NewProgressStore(userID),
		Todos:    NewTodoStore(userID),
		Cache:    cache,
		Queue:    engine.queue,
		Engine:   engine,
		conn:     engine.conn,
		fetcher:  fetcher,
		autoSync: autoSync,
	}
}

func (s *Session) SaveProgress(ctx context.Context, moduleID string, patch ProgressPatch) (model.ModuleProgress, error) {
	if err := checkID(moduleID); err != nil {
		return model.ModuleProgress{}, err
	}
	if err := validate.Struct(patch); err != nil {
		return model.ModuleProgress{}, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	record := s.Progress.UpdateProgress(moduleID, patch)
	return record, s.enqueueProgress(ctx, record)
}

func (s *Session) CompleteLesson(ctx context.Context, moduleID string, lessonIndex int) (model.ModuleProgress, error) {
	if err := checkID(moduleID); err != nil {
		return model.ModuleProgress{}, err
	}
	if lessonIndex < 0 {
		return model.ModuleProgress{}, fmt.Errorf("%w: negative lesson index", ErrInvalidArgument)
	}

	record := s.Progress.CompleteLesson(moduleID, lessonIndex)
	return record, s.enqueueProgress(ctx, record)
}

func (s *Session) ToggleTodo(ctx context.Context, moduleID, todoID string, completed bool) (model.TodoProgress, error) {
	if err := checkID(moduleID); err != nil {
		return model.TodoProgress{}, err
	}
	if err := checkID(todoID); err != nil {
		return model.TodoProgress{}, err
	}

	record, changed := s.Todos.UpdateTodoProgress(moduleID, todoID, completed)
	if !changed {
		return record, nil
	}

	m, err := NewTodoMutation(model.TodoUpsert{
		UserID:    s.UserID,
		ModuleID:  moduleID,
		TodoID:    todoID,
		Completed: completed,
	})
	if err != nil {
		return record, err
	}
	return record, s.enqueue(ctx, m)
}

// DownloadModule 从网关拉取内容包并写入本地缓存，需要在线
func (s *Session) DownloadModule(ctx context.Context, moduleID string) (model.OfflineContent, error) {
	if err := checkID(moduleID); err != nil {
		return model.OfflineContent{}, err
	}
	if !s.conn.IsOnline() {
		return model.OfflineContent{}, ErrOffline
	}

	content, err := s.fetcher.FetchModuleContent(ctx, moduleID)
	if err != nil {
		return model.OfflineContent{}, fmt.Errorf("fetch module %s: %w", moduleID, err)
	}
	return s.Cache.DownloadModule(ctx, moduleID, content), nil
}

func (s *Session) GetModuleProgress(moduleID string) (model.ModuleProgress, bool) {
	return s.Progress.GetModuleProgress(moduleID)
}

func (s *Session) GetTodoProgress(moduleID, todoID string) (model.TodoProgress, bool) {
	return s.Todos.GetTodoProgress(moduleID, todoID)
}

func (s *Session) GetModuleTodoProgress(moduleID string) []model.TodoProgress {
	return s.Todos.GetModuleTodoProgress(moduleID)
}

func (s *Session) GetOfflineModule(ctx context.Context, moduleID string) (model.OfflineContent, bool) {
	return s.Cache.GetOfflineModule(ctx, moduleID)
}

func (s *Session) SyncNow(ctx context.Context) error {
	return s.Engine.SyncPendingData(ctx)
}

func (s *Session) Status() Status {
	return s.Engine.Status()
}

// enqueueProgress 入队完整记录而非增量，重放时与到达顺序无关地收敛到同一结果
func (s *Session) enqueueProgress(ctx context.Context, record model.ModuleProgress) error {
	completed := record.Completed
	timeSpent := record.TimeSpent
	currentLesson := record.CurrentLesson
	m, err := NewProgressMutation(model.ProgressUpsert{
		UserID:        s.UserID,
		ModuleID:      record.ModuleID,
		Completed:     &completed,
		Score:         record.Score,
		TimeSpent:     &timeSpent,
		CurrentLesson: &currentLesson,
	})
	if err != nil {
		return err
	}
	return s.enqueue(ctx, m)
}

func (s *Session) enqueue(ctx context.Context, m model.PendingMutation) error {
	entry, err := s.Queue.AddPendingSync(ctx, m)
	if err != nil {
		logger.Log.Warn("Failed to enqueue pending mutation",
			zap.String("kind", string(m.Kind)),
			zap.String("identity", m.IdentityKey),
			zap.Error(err),
		)
		return err
	}
	logger.Log.Debug("Enqueued pending mutation", zap.String("id", entry.ID), zap.String("identity", entry.IdentityKey))

	if s.autoSync && s.conn.IsOnline() {
		s.Engine.Trigger()
	}
	return nil
}

func checkID(id string) error {
	if strings.TrimSpace(id) == "" || len(id) > 64 {
		return fmt.Errorf("%w: id must be 1-64 characters", ErrInvalidArgument)
	}
	return nil
}

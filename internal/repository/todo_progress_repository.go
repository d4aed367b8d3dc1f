package repository

import (
	"coder_edu_sync/internal/model"
	"coder_edu_sync/internal/util"
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TodoProgressRepository struct {
	DB *gorm.DB
}

func NewTodoProgressRepository(db *gorm.DB) *TodoProgressRepository {
	return &TodoProgressRepository{DB: db}
}

func (r *TodoProgressRepository) Upsert(ctx context.Context, todo *model.TodoProgress) error {
	return r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "module_id"}, {Name: "todo_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"completed", "updated_at"}),
	}).Create(todo).Error
}

func (r *TodoProgressRepository) Find(ctx context.Context, userID, moduleID, todoID string) (*model.TodoProgress, error) {
	var todo model.TodoProgress
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND module_id = ? AND todo_id = ?", userID, moduleID, todoID).
		First(&todo).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrProgressNotFound
	}
	if err != nil {
		return nil, err
	}
	return &todo, nil
}

func (r *TodoProgressRepository) ListByUserAndModule(ctx context.Context, userID, moduleID string) ([]model.TodoProgress, error) {
	var todos []model.TodoProgress
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND module_id = ?", userID, moduleID).
		Order("todo_id ASC").
		Find(&todos).Error
	return todos, err
}

package repository

import (
	"coder_edu_sync/internal/model"
	"coder_edu_sync/internal/util"
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProgressRepository struct {
	DB *gorm.DB
}

func NewProgressRepository(db *gorm.DB) *ProgressRepository {
	return &ProgressRepository{DB: db}
}

// Upsert 按 (user_id, module_id) 插入或只更新 columns 中列出的字段，重复投递结果一致
func (r *ProgressRepository) Upsert(ctx context.Context, progress *model.ModuleProgress, columns []string) error {
	return r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "module_id"}},
		DoUpdates: clause.AssignmentColumns(columns),
	}).Create(progress).Error
}

func (r *ProgressRepository) FindByUserAndModule(ctx context.Context, userID, moduleID string) (*model.ModuleProgress, error) {
	var progress model.ModuleProgress
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND module_id = ?", userID, moduleID).
		First(&progress).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrProgressNotFound
	}
	if err != nil {
		return nil, err
	}
	return &progress, nil
}

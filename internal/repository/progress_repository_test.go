package repository

import (
	"coder_edu_sync/internal/model"
	"coder_edu_sync/internal/util"
	"coder_edu_sync/pkg/database"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "gateway.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return db
}

func TestProgressRepository_UpsertOnlyAssignsListedColumns(t *testing.T) {
	repo := NewProgressRepository(newTestDB(t))
	ctx := context.Background()
	t0 := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

	score := 80.0
	require.NoError(t, repo.Upsert(ctx, &model.ModuleProgress{
		UserID:        "u1",
		ModuleID:      "m1",
		Completed:     true,
		Score:         &score,
		TimeSpent:     30,
		CurrentLesson: 2,
		LastAccessed:  t0,
	}, []string{"last_accessed", "updated_at", "completed", "score", "time_spent", "current_lesson"}))

	// 只带 current_lesson 时，其余列保持原值（即使结构体里是零值）
	t1 := t0.Add(time.Hour)
	require.NoError(t, repo.Upsert(ctx, &model.ModuleProgress{
		UserID:        "u1",
		ModuleID:      "m1",
		CurrentLesson: 5,
		LastAccessed:  t1,
	}, []string{"last_accessed", "updated_at", "current_lesson"}))

	got, err := repo.FindByUserAndModule(ctx, "u1", "m1")
	require.NoError(t, err)
	assert.True(t, got.Completed)
	require.NotNil(t, got.Score)
	assert.Equal(t, 80.0, *got.Score)
	assert.Equal(t, 30, got.TimeSpent)
	assert.Equal(t, 5, got.CurrentLesson)
	assert.WithinDuration(t, t1, got.LastAccessed, time.Second)

	var count int64
	require.NoError(t, repo.DB.Model(&model.ModuleProgress{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestProgressRepository_RedeliveryIsIdempotent(t *testing.T) {
	repo := NewProgressRepository(newTestDB(t))
	ctx := context.Background()
	columns := []string{"last_accessed", "updated_at", "completed", "time_spent"}

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Upsert(ctx, &model.ModuleProgress{
			UserID:       "u1",
			ModuleID:     "m1",
			Completed:    true,
			TimeSpent:    120,
			LastAccessed: time.Now(),
		}, columns))
	}
	require.NoError(t, repo.Upsert(ctx, &model.ModuleProgress{UserID: "u1", ModuleID: "m2", LastAccessed: time.Now()}, columns))

	var count int64
	require.NoError(t, repo.DB.Model(&model.ModuleProgress{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)

	got, err := repo.FindByUserAndModule(ctx, "u1", "m1")
	require.NoError(t, err)
	assert.True(t, got.Completed)
	assert.Equal(t, 120, got.TimeSpent)
	assert.Nil(t, got.Score)

	_, err = repo.FindByUserAndModule(ctx, "u2", "m1")
	assert.ErrorIs(t, err, util.ErrProgressNotFound)
}

func TestTodoProgressRepository_UpsertAndList(t *testing.T) {
	repo := NewTodoProgressRepository(newTestDB(t))
	ctx := context.Background()
	now := time.Now()

	for _, todo := range []model.TodoProgress{
		{UserID: "u1", ModuleID: "m1", TodoID: "t2", Completed: true, CreatedAt: now, UpdatedAt: now},
		{UserID: "u1", ModuleID: "m1", TodoID: "t1", Completed: true, CreatedAt: now, UpdatedAt: now},
		{UserID: "u1", ModuleID: "m1", TodoID: "t1", Completed: false, CreatedAt: now, UpdatedAt: now},
		{UserID: "u1", ModuleID: "m2", TodoID: "t1", Completed: true, CreatedAt: now, UpdatedAt: now},
	} {
		todo := todo
		require.NoError(t, repo.Upsert(ctx, &todo))
	}

	got, err := repo.Find(ctx, "u1", "m1", "t1")
	require.NoError(t, err)
	assert.False(t, got.Completed)

	list, err := repo.ListByUserAndModule(ctx, "u1", "m1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "t1", list[0].TodoID)
	assert.Equal(t, "t2", list[1].TodoID)

	_, err = repo.Find(ctx, "u1", "m1", "missing")
	assert.ErrorIs(t, err, util.ErrProgressNotFound)
}

package model

import "time"

// ModuleProgress 用户在某个学习模块上的进度，(UserID, ModuleID) 唯一
// swagger:model ModuleProgress
type ModuleProgress struct {
	ID            uint      `gorm:"primaryKey;autoIncrement" json:"-"`
	UserID        string    `gorm:"size:64;not null;uniqueIndex:idx_user_module,priority:1" json:"userId"`
	ModuleID      string    `gorm:"size:64;not null;uniqueIndex:idx_user_module,priority:2" json:"moduleId"`
	Completed     bool      `gorm:"not null" json:"completed"`
	Score         *float64  `json:"score,omitempty"`
	TimeSpent     int       `gorm:"not null" json:"timeSpent"`     // 累计秒数
	CurrentLesson int       `gorm:"not null" json:"currentLesson"` // 当前课时索引
	LastAccessed  time.Time `json:"lastAccessed"`
	CreatedAt     time.Time `json:"-"`
	UpdatedAt     time.Time `json:"-"`
}

func (ModuleProgress) TableName() string {
	return "user_progress"
}

// Clone 返回深拷贝，避免调用方通过 Score 指针修改内部状态
func (p ModuleProgress) Clone() ModuleProgress {
	if p.Score != nil {
		score := *p.Score
		p.Score = &score
	}
	return p
}

// TodoProgress 模块内清单项的完成状态，(UserID, ModuleID, TodoID) 唯一
// swagger:model TodoProgress
type TodoProgress struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"-"`
	UserID    string    `gorm:"size:64;not null;uniqueIndex:idx_user_module_todo,priority:1" json:"userId"`
	ModuleID  string    `gorm:"size:64;not null;uniqueIndex:idx_user_module_todo,priority:2" json:"moduleId"`
	TodoID    string    `gorm:"size:64;not null;uniqueIndex:idx_user_module_todo,priority:3" json:"todoId"`
	Completed bool      `gorm:"not null" json:"completed"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (TodoProgress) TableName() string {
	return "todo_progress"
}

// ProgressUpsert 进度 upsert 请求体：按 (userId, moduleId) 存在则合并、不存在则创建
type ProgressUpsert struct {
	UserID        string   `json:"userId" binding:"required" validate:"required,max=64"`
	ModuleID      string   `json:"moduleId" binding:"required" validate:"required,max=64"`
	Completed     *bool    `json:"completed,omitempty"`
	Score         *float64 `json:"score,omitempty" binding:"omitempty,gte=0" validate:"omitempty,gte=0"`
	TimeSpent     *int     `json:"timeSpent,omitempty" binding:"omitempty,gte=0" validate:"omitempty,gte=0"`
	CurrentLesson *int     `json:"currentLesson,omitempty" binding:"omitempty,gte=0" validate:"omitempty,gte=0"`
}

// TodoUpsert 清单项 upsert 请求体
type TodoUpsert struct {
	UserID    string `json:"userId" binding:"required" validate:"required,max=64"`
	ModuleID  string `json:"moduleId" binding:"required" validate:"required,max=64"`
	TodoID    string `json:"todoId" binding:"required" validate:"required,max=64"`
	Completed bool   `json:"completed"`
}

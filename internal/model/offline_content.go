package model

import (
	"encoding/json"
	"time"
)

// OfflineContent 已下载到本地的模块内容，每个模块只保留一个版本
type OfflineContent struct {
	ModuleID     string          `json:"moduleId"`
	Content      json.RawMessage `json:"content"`
	Version      string          `json:"version"`
	DownloadedAt time.Time       `json:"downloadedAt"`
}

package offline

import (
	"coder_edu_sync/internal/model"
	"coder_edu_sync/pkg/database"
	"coder_edu_sync/pkg/logger"
	"coder_edu_sync/pkg/monitoring"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	ContentVersion   = "1.0"
	contentKeyPrefix = "offline_module:"
)

func contentKey(moduleID string) string {
	return contentKeyPrefix + moduleID
}

// ContentCache 已下载模块内容的本地缓存，每个模块只保留最新一份。
// 内存是权威副本，持久化失败不影响内存中的条目
type ContentCache struct {
	mu        sync.RWMutex
	entries   map[string]model.OfflineContent
	kv        KV
	persistMu sync.Mutex
	now       func() time.Time
}

func NewContentCache(kv KV) *ContentCache {
	return &ContentCache{
		entries: make(map[string]model.OfflineContent),
		kv:      kv,
		now:     time.Now,
	}
}

// DownloadModule 整体替换该模块的缓存条目（后写者胜），然后尽力写入本地持久化存储
func (c *ContentCache) DownloadModule(ctx context.Context, moduleID string, content json.RawMessage) model.OfflineContent {
	entry := model.OfflineContent{
		ModuleID:     moduleID,
		Content:      cloneRaw(content),
		Version:      ContentVersion,
		DownloadedAt: c.now(),
	}

	c.mu.Lock()
	c.entries[moduleID] = entry
	c.mu.Unlock()

	c.persist(ctx, moduleID)
	return cloneContent(entry)
}

// GetOfflineModule 只读本地：内存未命中时回退到持久化存储（重启后读穿），从不访问网络
func (c *ContentCache) GetOfflineModule(ctx context.Context, moduleID string) (model.OfflineContent, bool) {
	c.mu.RLock()
	entry, ok := c.entries[moduleID]
	c.mu.RUnlock()
	if ok {
		return cloneContent(entry), true
	}

	if c.kv == nil {
		return model.OfflineContent{}, false
	}
	raw, err := c.kv.Get(ctx, contentKey(moduleID))
	if err != nil {
		if !errors.Is(err, database.ErrKeyNotFound) {
			logger.Log.Warn("Failed to read offline module", zap.String("module_id", moduleID), zap.Error(err))
		}
		return model.OfflineContent{}, false
	}

	var stored model.OfflineContent
	if err := json.Unmarshal([]byte(raw), &stored); err != nil || stored.ModuleID != moduleID {
		logger.Log.Warn("Discarding corrupt offline module", zap.String("module_id", moduleID), zap.Error(err))
		return model.OfflineContent{}, false
	}

	c.mu.Lock()
	// 读盘期间可能有新的下载，以内存为准
	if current, exists := c.entries[moduleID]; exists {
		stored = current
	} else {
		c.entries[moduleID] = stored
	}
	c.mu.Unlock()
	return cloneContent(stored), true
}

func (c *ContentCache) persist(ctx context.Context, moduleID string) {
	if c.kv == nil {
		return
	}
	c.persistMu.Lock()
	defer c.persistMu.Unlock()

	// 写入当前内存中的最新条目，并发下载时落盘结果不会回退到旧版本
	c.mu.RLock()
	entry := c.entries[moduleID]
	c.mu.RUnlock()

	data, err := json.Marshal(entry)
	if err != nil {
		monitoring.CachePersistCounter.WithLabelValues("encode_error").Inc()
		logger.Log.Error("Failed to encode offline module", zap.String("module_id", moduleID), zap.Error(err))
		return
	}
	if err := c.kv.Set(context.WithoutCancel(ctx), contentKey(moduleID), string(data)); err != nil {
		monitoring.CachePersistCounter.WithLabelValues("error").Inc()
		logger.Log.Warn("Failed to persist offline module", zap.String("module_id", moduleID), zap.Error(err))
		return
	}
	monitoring.CachePersistCounter.WithLabelValues("ok").Inc()
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}
	out := make(json.RawMessage, len(raw))
	copy(out, raw)
	return out
}

func cloneContent(entry model.OfflineContent) model.OfflineContent {
	entry.Content = cloneRaw(entry.Content)
	return entry
}

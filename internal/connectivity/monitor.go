package connectivity

import (
	"coder_edu_sync/pkg/logger"
	"coder_edu_sync/pkg/monitoring"
	"sync"

	"go.uber.org/zap"
)

// Monitor 连通性状态的唯一来源。离线→在线时通知所有监听者，其余变化只更新标志
type Monitor struct {
	mu        sync.RWMutex
	online    bool
	listeners []func()
}

func NewMonitor(initial bool) *Monitor {
	m := &Monitor{online: initial}
	setGauge(initial)
	return m
}

func (m *Monitor) IsOnline() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}

// SetOnlineStatus 重复设置相同状态不产生任何副作用
func (m *Monitor) SetOnlineStatus(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	var listeners []func()
	if online {
		listeners = append(listeners, m.listeners...)
	}
	m.mu.Unlock()

	setGauge(online)
	logger.Log.Info("Connectivity changed", zap.Bool("online", online))

	// 在锁外回调，监听者可以安全地读取 IsOnline
	for _, fn := range listeners {
		fn()
	}
}

// OnOnline 注册"恢复在线"监听者
func (m *Monitor) OnOnline(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

func setGauge(online bool) {
	if online {
		monitoring.OnlineGauge.Set(1)
	} else {
		monitoring.OnlineGauge.Set(0)
	}
}

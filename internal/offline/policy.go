package offline

import (
	"coder_edu_sync/internal/config"
	"coder_edu_sync/internal/model"
	"time"
)

// RetryPolicy 失败重试与毒条目淘汰策略，零值表示对应限制不生效
type RetryPolicy struct {
	MaxAttempts  int
	BaseBackoff  time.Duration
	MaxBackoff   time.Duration
	MaxAge       time.Duration
	DispatchRate float64
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  20,
		BaseBackoff:  2 * time.Second,
		MaxBackoff:   5 * time.Minute,
		MaxAge:       7 * 24 * time.Hour,
		DispatchRate: 20,
	}
}

func PolicyFromConfig(cfg config.SyncConfig) RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  cfg.MaxAttempts,
		BaseBackoff:  cfg.BaseBackoff,
		MaxBackoff:   cfg.MaxBackoff,
		MaxAge:       cfg.MaxAge,
		DispatchRate: cfg.DispatchRate,
	}
}

// Backoff 第 attempts 次失败后的等待时间：base * 2^(attempts-1)，不超过 MaxBackoff
func (p RetryPolicy) Backoff(attempts int) time.Duration {
	if p.BaseBackoff <= 0 || attempts <= 0 {
		return 0
	}
	d := p.BaseBackoff
	for i := 1; i < attempts; i++ {
		d *= 2
		if p.MaxBackoff > 0 && d >= p.MaxBackoff {
			return p.MaxBackoff
		}
		// 防止溢出
		if d <= 0 {
			return p.MaxBackoff
		}
	}
	if p.MaxBackoff > 0 && d > p.MaxBackoff {
		return p.MaxBackoff
	}
	return d
}

func (p RetryPolicy) expired(m model.PendingMutation, now time.Time) bool {
	return p.MaxAge > 0 && now.Sub(m.EnqueuedAt) > p.MaxAge
}

func (p RetryPolicy) exhausted(m model.PendingMutation) bool {
	return p.MaxAttempts > 0 && m.Attempts >= p.MaxAttempts
}

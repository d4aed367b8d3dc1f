package connectivity

import (
	"coder_edu_sync/pkg/logger"
	"context"
	"time"

	"go.uber.org/zap"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// Prober 周期性探测网关健康检查接口，把结果写入 Monitor
type Prober struct {
	monitor  *Monitor
	pinger   Pinger
	interval time.Duration
	timeout  time.Duration
}

func NewProber(monitor *Monitor, pinger Pinger, interval, timeout time.Duration) *Prober {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	if timeout <= 0 || timeout > interval {
		timeout = interval
	}
	return &Prober{
		monitor:  monitor,
		pinger:   pinger,
		interval: interval,
		timeout:  timeout,
	}
}

// Run 立即探测一次，之后按间隔探测，直到 ctx 取消
func (p *Prober) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		p.probe(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (p *Prober) probe(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err := p.pinger.Ping(probeCtx)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		logger.Log.Debug("Gateway probe failed", zap.Error(err))
	}
	p.monitor.SetOnlineStatus(err == nil)
}

package offline

import (
	"coder_edu_sync/internal/model"
	"coder_edu_sync/internal/remote"
	"coder_edu_sync/pkg/logger"
	"coder_edu_sync/pkg/monitoring"
	"coder_edu_sync/pkg/tracing"
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Remote 网关的幂等 upsert 接口
type Remote interface {
	UpsertProgress(ctx context.Context, req model.ProgressUpsert) (*model.ModuleProgress, error)
	UpsertTodoProgress(ctx context.Context, req model.TodoUpsert) (*model.TodoProgress, error)
}

type Connectivity interface {
	IsOnline() bool
	OnOnline(fn func())
}

// Status 同步状态快照，供界面展示"有未同步的更改"
type Status struct {
	Online      bool       `json:"online"`
	QueueDepth  int        `json:"queueDepth"`
	Running     bool       `json:"running"`
	AuthBlocked bool       `json:"authBlocked"`
	LastSyncAt  *time.Time `json:"lastSyncAt,omitempty"`
	LastError   string     `json:"lastError,omitempty"`
	LastErrorAt *time.Time `json:"lastErrorAt,omitempty"`
}

// Engine 在线时把队列中的变更逐条送达网关。
// 引擎本身不持有任何条目，只通过引用操作 Queue
type Engine struct {
	queue  *Queue
	remote Remote
	conn   Connectivity

	mu          sync.Mutex
	policy      RetryPolicy
	limiter     *rate.Limiter
	running     bool
	rerun       bool
	authBlocked bool
	lastSyncAt  time.Time
	lastError   string
	lastErrorAt time.Time
	baseCtx     context.Context

	// policyChanged 通知重试定时器按新的退避间隔重置
	policyChanged    chan struct{}
	minRetryInterval time.Duration
	now              func() time.Time
}

func NewEngine(queue *Queue, remote Remote, conn Connectivity, policy RetryPolicy) *Engine {
	e := &Engine{
		queue:            queue,
		remote:           remote,
		conn:             conn,
		baseCtx:          context.Background(),
		policyChanged:    make(chan struct{}, 1),
		minRetryInterval: time.Second,
		now:              time.Now,
	}
	e.SetPolicy(policy)
	return e
}

// SetPolicy 热更新重试策略，对下一个条目立即生效
func (e *Engine) SetPolicy(policy RetryPolicy) {
	e.mu.Lock()
	e.policy = policy
	switch {
	case policy.DispatchRate <= 0:
		e.limiter = nil
	case e.limiter == nil:
		e.limiter = rate.NewLimiter(rate.Limit(policy.DispatchRate), 1)
	default:
		e.limiter.SetLimit(rate.Limit(policy.DispatchRate))
	}
	e.mu.Unlock()

	select {
	case e.policyChanged <- struct{}{}:
	default:
	}
}

func (e *Engine) Policy() RetryPolicy {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.policy
}

// Start 订阅恢复在线事件，并定期重试已到退避时间的条目，直到 ctx 取消
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	e.baseCtx = ctx
	e.mu.Unlock()

	// 重新联网视为新的会话窗口，解除鉴权阻塞后再尝试一次
	e.conn.OnOnline(func() {
		e.clearAuthBlock()
		e.Trigger()
	})

	if e.conn.IsOnline() && e.queue.Len() > 0 {
		e.Trigger()
	}

	go func() {
		ticker := time.NewTicker(e.retryInterval())
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-e.policyChanged:
				ticker.Reset(e.retryInterval())
			case <-ticker.C:
				if e.conn.IsOnline() && e.queue.Len() > 0 {
					e.Trigger()
				}
			}
		}
	}()
}

func (e *Engine) retryInterval() time.Duration {
	interval := e.Policy().BaseBackoff
	if interval < e.minRetryInterval {
		interval = e.minRetryInterval
	}
	return interval
}

// Trigger 在后台发起一次同步，不受调用方请求生命周期影响。
// 鉴权失败后自动触发一律跳过，直到显式 SyncPendingData 或重新联网
func (e *Engine) Trigger() {
	e.mu.Lock()
	ctx := e.baseCtx
	blocked := e.authBlocked
	e.mu.Unlock()

	if blocked {
		logger.Log.Debug("Skipping background sync until credentials are refreshed")
		return
	}

	go func() {
		if err := e.run(ctx, false); err != nil {
			logger.Log.Warn("Background sync stopped", zap.Error(err))
		}
	}()
}

// SyncPendingData 离线或队列为空时直接返回。显式调用会解除鉴权阻塞。
// 同一时刻最多一个 drain 在执行，期间到达的触发合并为结束后的一次补充 drain
func (e *Engine) SyncPendingData(ctx context.Context) error {
	return e.run(ctx, true)
}

func (e *Engine) clearAuthBlock() {
	e.mu.Lock()
	e.authBlocked = false
	e.mu.Unlock()
}

func (e *Engine) run(ctx context.Context, explicit bool) error {
	e.mu.Lock()
	if explicit {
		e.authBlocked = false
	} else if e.authBlocked {
		e.mu.Unlock()
		return nil
	}
	if e.running {
		e.rerun = true
		e.mu.Unlock()
		return nil
	}
	e.running = true
	e.mu.Unlock()

	for {
		err := e.drain(ctx)

		e.mu.Lock()
		if err == nil && e.rerun {
			e.rerun = false
			e.mu.Unlock()
			continue
		}

		pending := e.rerun
		authFailed := errors.Is(err, ErrUnauthenticated) || errors.Is(err, ErrForbidden)
		if err != nil {
			e.lastError = err.Error()
			e.lastErrorAt = e.now()
		}
		if authFailed {
			e.authBlocked = true
		}
		e.running = false
		e.rerun = false
		baseCtx := e.baseCtx
		e.mu.Unlock()

		// 本轮因调用方 ctx 结束而中止时，合并进来的触发改在引擎自身的 ctx 上补跑
		if pending && !authFailed {
			if baseCtx.Err() == nil {
				e.Trigger()
			} else {
				logger.Log.Info("Dropped coalesced sync trigger, engine is stopping", zap.Error(err))
			}
		}
		return err
	}
}

func (e *Engine) drain(ctx context.Context) error {
	if !e.conn.IsOnline() {
		return nil
	}
	entries := e.queue.Snapshot()
	if len(entries) == 0 {
		return nil
	}

	ctx, span := tracing.Tracer.Start(ctx, "sync.drain")
	defer span.End()
	span.SetAttributes(attribute.Int("sync.entries", len(entries)))

	start := time.Now()
	defer func() {
		monitoring.DrainDuration.Observe(time.Since(start).Seconds())
	}()

	e.mu.Lock()
	policy := e.policy
	limiter := e.limiter
	e.mu.Unlock()

	// 某个身份的条目失败或仍在退避期内时，本轮跳过同一身份的后续条目，保证按入队顺序送达
	blocked := make(map[string]bool)
	var delivered, failed int
	finished := true

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !e.conn.IsOnline() {
			logger.Log.Info("Went offline during drain", zap.Int("delivered", delivered))
			finished = false
			break
		}
		if blocked[entry.IdentityKey] {
			continue
		}

		now := e.now()
		if policy.expired(entry, now) {
			e.evict(ctx, entry, "expired", nil)
			continue
		}
		if now.Before(entry.NextAttemptAt) {
			blocked[entry.IdentityKey] = true
			continue
		}

		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return err
			}
		}

		err := e.dispatch(ctx, &entry)
		if err == nil {
			e.queue.Remove(ctx, entry.ID)
			monitoring.DispatchCounter.WithLabelValues(string(entry.Kind), "success").Inc()
			delivered++
			continue
		}

		var statusErr *remote.StatusError
		switch {
		case errors.Is(err, ErrInvalidMutation):
			e.evict(ctx, entry, "invalid", err)
		case errors.As(err, &statusErr) && statusErr.IsAuth():
			monitoring.DispatchCounter.WithLabelValues(string(entry.Kind), "auth").Inc()
			span.SetStatus(codes.Error, err.Error())
			if statusErr.StatusCode == http.StatusForbidden {
				return fmt.Errorf("%w: %v", ErrForbidden, err)
			}
			return fmt.Errorf("%w: %v", ErrUnauthenticated, err)
		case errors.As(err, &statusErr) && statusErr.IsPermanent():
			monitoring.DispatchCounter.WithLabelValues(string(entry.Kind), "rejected").Inc()
			e.evict(ctx, entry, "rejected", err)
		default:
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			monitoring.DispatchCounter.WithLabelValues(string(entry.Kind), "retry").Inc()
			failed++
			e.deferEntry(ctx, entry, policy, now, err)
			blocked[entry.IdentityKey] = true
		}
	}

	// 中途断网的 drain 不算一次完整同步
	if finished {
		e.mu.Lock()
		e.lastSyncAt = e.now()
		e.mu.Unlock()
	}

	span.SetAttributes(
		attribute.Int("sync.delivered", delivered),
		attribute.Int("sync.failed", failed),
	)
	logger.Log.Info("Drain finished",
		zap.Int("delivered", delivered),
		zap.Int("failed", failed),
		zap.Int("remaining", e.queue.Len()),
	)
	return nil
}

func (e *Engine) dispatch(ctx context.Context, entry *model.PendingMutation) error {
	ctx, span := tracing.Tracer.Start(ctx, "sync.dispatch", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("sync.kind", string(entry.Kind)),
		attribute.String("sync.id", entry.ID),
	)

	payload, err := decodeMutation(entry)
	if err != nil {
		return err
	}

	switch req := payload.(type) {
	case model.ProgressUpsert:
		_, err = e.remote.UpsertProgress(ctx, req)
	case model.TodoUpsert:
		_, err = e.remote.UpsertTodoProgress(ctx, req)
	default:
		err = fmt.Errorf("%w: unsupported payload %T", ErrInvalidMutation, payload)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// deferEntry 记录一次临时失败，到达最大尝试次数的条目作为毒条目淘汰
func (e *Engine) deferEntry(ctx context.Context, entry model.PendingMutation, policy RetryPolicy, now time.Time, cause error) {
	entry.Attempts++
	entry.LastError = cause.Error()
	if policy.exhausted(entry) {
		e.evict(ctx, entry, "exhausted", cause)
		return
	}
	entry.NextAttemptAt = now.Add(policy.Backoff(entry.Attempts))
	e.queue.Update(ctx, entry)

	e.mu.Lock()
	e.lastError = cause.Error()
	e.lastErrorAt = now
	e.mu.Unlock()

	logger.Log.Warn("Pending mutation delivery failed, will retry",
		zap.String("id", entry.ID),
		zap.String("kind", string(entry.Kind)),
		zap.Int("attempts", entry.Attempts),
		zap.Time("next_attempt_at", entry.NextAttemptAt),
		zap.Error(cause),
	)
}

func (e *Engine) evict(ctx context.Context, entry model.PendingMutation, reason string, cause error) {
	e.queue.Remove(ctx, entry.ID)
	monitoring.EvictedCounter.WithLabelValues(reason).Inc()
	logger.Log.Error("Evicted poison pending mutation",
		zap.String("id", entry.ID),
		zap.String("kind", string(entry.Kind)),
		zap.String("identity", entry.IdentityKey),
		zap.String("reason", reason),
		zap.Int("attempts", entry.Attempts),
		zap.Time("enqueued_at", entry.EnqueuedAt),
		zap.ByteString("payload", entry.Payload),
		zap.Error(cause),
	)
}

func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	status := Status{
		Online:      e.conn.IsOnline(),
		QueueDepth:  e.queue.Len(),
		Running:     e.running,
		AuthBlocked: e.authBlocked,
		LastError:   e.lastError,
	}
	if !e.lastSyncAt.IsZero() {
		t := e.lastSyncAt
		status.LastSyncAt = &t
	}
	if !e.lastErrorAt.IsZero() {
		t := e.lastErrorAt
		status.LastErrorAt = &t
	}
	return status
}

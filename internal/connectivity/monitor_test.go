package connectivity

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonitorFiresOnlyOnOfflineToOnline(t *testing.T) {
	m := NewMonitor(false)
	var fired int32
	m.OnOnline(func() { atomic.AddInt32(&fired, 1) })

	m.SetOnlineStatus(false)
	assert.Equal(t, int32(0), atomic.LoadInt32(&fired))

	m.SetOnlineStatus(true)
	assert.True(t, m.IsOnline())
	assert.Equal(t, int32(1), atomic.LoadInt32(&fired))

	// 重复上线不再触发
	m.SetOnlineStatus(true)
	assert.Equal(t, int32(1), atomic.LoadInt32(&fired))

	m.SetOnlineStatus(false)
	assert.False(t, m.IsOnline())
	assert.Equal(t, int32(1), atomic.LoadInt32(&fired))

	m.SetOnlineStatus(true)
	assert.Equal(t, int32(2), atomic.LoadInt32(&fired))
}

func TestMonitorEveryListenerFiresOnce(t *testing.T) {
	m := NewMonitor(false)
	var a, b int32
	m.OnOnline(func() { atomic.AddInt32(&a, 1) })
	m.OnOnline(func() { atomic.AddInt32(&b, 1) })

	m.SetOnlineStatus(true)
	assert.Equal(t, int32(1), a)
	assert.Equal(t, int32(1), b)
}

func TestMonitorListenerMayReadStatus(t *testing.T) {
	m := NewMonitor(false)
	var seen bool
	m.OnOnline(func() { seen = m.IsOnline() })

	m.SetOnlineStatus(true)
	assert.True(t, seen)
}

type scriptedPinger struct {
	mu      sync.Mutex
	results []error
	calls   int
}

func (p *scriptedPinger) Ping(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	idx := p.calls
	p.calls++
	if idx >= len(p.results) {
		return p.results[len(p.results)-1]
	}
	return p.results[idx]
}

func TestProberDrivesMonitor(t *testing.T) {
	m := NewMonitor(false)
	became := make(chan struct{}, 4)
	m.OnOnline(func() { became <- struct{}{} })

	pinger := &scriptedPinger{results: []error{errors.New("unreachable"), nil}}
	prober := NewProber(m, pinger, 10*time.Millisecond, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go prober.Run(ctx)

	select {
	case <-became:
	case <-time.After(2 * time.Second):
		t.Fatal("prober never reported online")
	}
	require.True(t, m.IsOnline())
}

package monitor

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function, such as a Redis client's ping, to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// QueueSizer is satisfied by the ledger outbox.
type QueueSizer interface {
	Size() (int, error)
}

// DepthGauge receives the outbox depth on every refresh.
type DepthGauge interface {
	OutboxDepth(n int)
}

type Monitor struct {
	pg     Pinger
	redis  Pinger
	outbox QueueSizer
	gauge  DepthGauge
	store  string

	status   Status
	mu       sync.RWMutex
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
	logger   *zap.Logger
}

// New builds a monitor. A nil pg means the ledger runs on the in-memory
// store, which is always considered reachable.
func New(pg Pinger, redis Pinger, outbox QueueSizer, gauge DepthGauge, interval time.Duration, logger *zap.Logger) *Monitor {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	store := "postgres"
	if pg == nil {
		store = "memory"
	}
	return &Monitor{
		pg:       pg,
		redis:    redis,
		outbox:   outbox,
		gauge:    gauge,
		store:    store,
		interval: interval,
		stopCh:   make(chan struct{}),
		logger:   logger,
	}
}

func (m *Monitor) Start() {
	go m.loop()
}

func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

// IsOnline reports whether the ledger's store of record is reachable.
func (m *Monitor) IsOnline() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status.PostgreSQL
}

func (m *Monitor) GetStatus() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *Monitor) loop() {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.Refresh()
	for {
		select {
		case <-ticker.C:
			m.Refresh()
		case <-m.stopCh:
			return
		}
	}
}

// Refresh probes every dependency once and stores the result.
func (m *Monitor) Refresh() {
	outboxOK, depth := m.checkOutbox()
	status := Status{
		PostgreSQL:  m.checkPostgres(),
		Redis:       ping(m.redis, 2*time.Second),
		Outbox:      outboxOK,
		OutboxDepth: depth,
		LedgerStore: m.store,
		LastCheck:   time.Now(),
	}
	if m.gauge != nil && outboxOK {
		m.gauge.OutboxDepth(depth)
	}

	m.mu.Lock()
	m.status = status
	m.mu.Unlock()
}

func (m *Monitor) checkPostgres() bool {
	if m.pg == nil {
		return true
	}
	return ping(m.pg, 3*time.Second)
}

func (m *Monitor) checkOutbox() (bool, int) {
	if m.outbox == nil {
		return false, 0
	}
	size, err := m.outbox.Size()
	if err != nil {
		m.logger.Warn("outbox size check failed", zap.Error(err))
		return false, size
	}
	return true, size
}

func ping(p Pinger, timeout time.Duration) bool {
	if p == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return p.Ping(ctx) == nil
}

// Copyright 2025 Certen Protocol
//
// Chain Monitor — tracks the observed head block for one chain and
// broadcasts updates to every attached subscriber at a configured
// cadence (spec §4.1). Grounded on the teacher's EventWatcher poll
// loop (pkg/anchor/event_watcher.go): a ticker-driven goroutine plus a
// buffered fan-out channel per subscriber, with RPC failures simply
// retaining the last known head rather than propagating an error.

package monitor

import (
	"context"
	"log"
	"sync"
	"time"
)

// MonitorStatus is delivered to every subscriber on each tick (spec §4.1).
type MonitorStatus struct {
	BlockNumber uint64 `json:"blockNumber"`
}

// HeadFetcher is the minimal RPC surface the monitor needs. ethclient.Client
// satisfies it directly.
type HeadFetcher interface {
	BlockNumber(ctx context.Context) (uint64, error)
}

// Config configures a Monitor.
type Config struct {
	ChainID      string
	Interval     time.Duration
	RetryInterval time.Duration
	Logger       *log.Logger
}

// Monitor polls a chain's head block and fans updates out to subscribers.
// The head is monotonically non-decreasing within one Monitor's lifetime
// (spec §4.1): a transient RPC error never moves it backwards.
type Monitor struct {
	cfg    Config
	client HeadFetcher
	logger *log.Logger

	mu   sync.RWMutex
	head uint64

	subMu sync.Mutex
	subs  map[int]chan MonitorStatus
	nextID int
}

// New creates a Monitor. client is typically an *ethclient.Client.
func New(cfg Config, client HeadFetcher) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = cfg.Interval
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(log.Writer(), "[Monitor:"+cfg.ChainID+"] ", log.LstdFlags)
	}
	return &Monitor{
		cfg:    cfg,
		client: client,
		logger: cfg.Logger,
		subs:   make(map[int]chan MonitorStatus),
	}
}

// Head returns the latest known head block, 0 before the first successful
// poll.
func (m *Monitor) Head() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.head
}

// Attach returns a one-way subscription handle (spec §4.1). The returned
// channel is closed when detach is called or ctx is cancelled.
func (m *Monitor) Attach(ctx context.Context) (<-chan MonitorStatus, func()) {
	ch := make(chan MonitorStatus, 4)

	m.subMu.Lock()
	id := m.nextID
	m.nextID++
	m.subs[id] = ch
	m.subMu.Unlock()

	detach := func() {
		m.subMu.Lock()
		if c, ok := m.subs[id]; ok {
			delete(m.subs, id)
			close(c)
		}
		m.subMu.Unlock()
	}

	go func() {
		<-ctx.Done()
		detach()
	}()

	return ch, detach
}

// Run polls the chain head at the configured interval until ctx is
// cancelled. On RPC failure it logs, retains the last known head, and
// retries after RetryInterval (spec §4.1).
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			head, err := m.client.BlockNumber(ctx)
			if err != nil {
				m.logger.Printf("WARN: failed to fetch head block: %v (retaining last known %d)", err, m.Head())
				ticker.Reset(m.cfg.RetryInterval)
				continue
			}
			ticker.Reset(m.cfg.Interval)

			m.mu.Lock()
			if head > m.head {
				m.head = head
			}
			current := m.head
			m.mu.Unlock()

			m.broadcast(MonitorStatus{BlockNumber: current})
		}
	}
}

func (m *Monitor) broadcast(status MonitorStatus) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	for id, ch := range m.subs {
		select {
		case ch <- status:
		default:
			m.logger.Printf("WARN: subscriber %d channel full, dropping head update", id)
		}
	}
}

package connection

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/circlehq/circle-go/internal/infrastructure/logging"
	"github.com/circlehq/circle-go/internal/platform"
)

// ErrDestroyed is returned by operations on a destroyed manager.
var ErrDestroyed = errors.New("connection: manager destroyed")

// StatusState is the connectivity state of the process.
type StatusState string

const (
	StateOnline       StatusState = "online"
	StateOffline      StatusState = "offline"
	StateReconnecting StatusState = "reconnecting"
)

// Status is the process-wide connection status. It is mutated only by the
// manager's own event handlers and read by anyone gating work on
// connectivity.
type Status struct {
	State          StatusState
	NeedsReconnect bool
}

// Factory constructs a fresh client handle.
type Factory func(ctx context.Context) (*platform.Client, error)

// Config tunes the lifecycle manager.
type Config struct {
	// BackgroundDisconnectDelay is how long the process may stay
	// backgrounded before the realtime transport is proactively dropped
	BackgroundDisconnectDelay time.Duration
	// RecreateMinInterval throttles recreate storms; duplicate calls
	// inside the interval are skipped, not queued
	RecreateMinInterval time.Duration
	// TeardownGrace is a short pause after closing the old handle so
	// in-flight async teardown can settle before the new dial
	TeardownGrace time.Duration
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.BackgroundDisconnectDelay == 0 {
		out.BackgroundDisconnectDelay = 5 * time.Minute
	}
	if out.RecreateMinInterval == 0 {
		out.RecreateMinInterval = 5 * time.Second
	}
	if out.TeardownGrace == 0 {
		out.TeardownGrace = 100 * time.Millisecond
	}
	return out
}

// Metrics is a snapshot of lifecycle counters.
type Metrics struct {
	Recreates        uint64
	SkippedRecreates uint64
	TeardownFailures uint64
}

// Manager owns the single long-lived client handle and replaces it when its
// realtime transport is found dead.
type Manager struct {
	cfg     Config
	factory Factory
	logger  *logging.Logger

	mu           sync.Mutex
	client       *platform.Client
	status       Status
	listeners    map[int]func(*platform.Client)
	nextListener int
	lastRecreate time.Time
	bgTimer      *time.Timer
	destroyed    bool

	recreates        uint64
	skipped          uint64
	teardownFailures uint64
}

// NewManager builds the initial client handle through the factory and starts
// online. The realtime transport is dialed best-effort; a failed dial leaves
// the manager online with NeedsReconnect set.
func NewManager(ctx context.Context, factory Factory, cfg Config, logger *logging.Logger) (*Manager, error) {
	if logger == nil {
		logger = logging.NewNop()
	}

	client, err := factory(ctx)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		cfg:       cfg.withDefaults(),
		factory:   factory,
		logger:    logger,
		client:    client,
		status:    Status{State: StateOnline},
		listeners: make(map[int]func(*platform.Client)),
	}

	if err := client.Realtime().Connect(ctx); err != nil {
		logger.Warn("initial realtime dial failed", zap.Error(err))
		m.status.NeedsReconnect = true
	}

	return m, nil
}

// GetClient returns the current client handle. Consumers must re-fetch after
// a change notification rather than hold a captured reference forever.
func (m *Manager) GetClient() *platform.Client {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.client
}

// GetStatus returns the current connection status.
func (m *Manager) GetStatus() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// GetMetrics returns a snapshot of lifecycle counters.
func (m *Manager) GetMetrics() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Metrics{
		Recreates:        m.recreates,
		SkippedRecreates: m.skipped,
		TeardownFailures: m.teardownFailures,
	}
}

// OnClientChange registers a listener invoked with each replacement handle.
// The returned function unsubscribes.
func (m *Manager) OnClientChange(fn func(*platform.Client)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := m.nextListener
	m.nextListener++
	m.listeners[idx] = fn

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.listeners, idx)
	}
}

// HandleNetworkUp reacts to the network coming back. A live transport means
// nothing to do; a dead one triggers recreation.
func (m *Manager) HandleNetworkUp(ctx context.Context) {
	m.mu.Lock()
	if m.destroyed {
		m.mu.Unlock()
		return
	}
	client := m.client
	m.status.State = StateOnline
	m.mu.Unlock()

	if client.Realtime().IsConnected() {
		return
	}

	if err := m.RecreateClient(ctx); err != nil {
		m.logger.Warn("recreate after network up failed", zap.Error(err))
	}
}

// HandleNetworkDown transitions to offline. The transport drops on its own.
func (m *Manager) HandleNetworkDown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.destroyed {
		return
	}
	m.status.State = StateOffline
	m.status.NeedsReconnect = true
}

// HandleBackground arms (or re-arms) the delayed realtime disconnect. If the
// process is still backgrounded when the timer fires, the transport is
// dropped to free socket buffers; the handle itself survives.
func (m *Manager) HandleBackground() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.destroyed {
		return
	}

	if m.bgTimer != nil {
		m.bgTimer.Stop()
	}
	m.bgTimer = time.AfterFunc(m.cfg.BackgroundDisconnectDelay, func() {
		m.mu.Lock()
		client := m.client
		m.status.NeedsReconnect = true
		m.mu.Unlock()

		m.logger.Info("disconnecting realtime after prolonged background")
		if err := client.Realtime().Disconnect(); err != nil {
			m.logger.Warn("background disconnect failed", zap.Error(err))
		}
	})
}

// HandleForeground cancels any pending background disconnect and, when the
// network is up but the transport is dead, recreates the handle.
func (m *Manager) HandleForeground(ctx context.Context) {
	m.mu.Lock()
	if m.destroyed {
		m.mu.Unlock()
		return
	}
	if m.bgTimer != nil {
		m.bgTimer.Stop()
		m.bgTimer = nil
	}
	offline := m.status.State == StateOffline
	client := m.client
	m.mu.Unlock()

	if offline || client.Realtime().IsConnected() {
		return
	}

	if err := m.RecreateClient(ctx); err != nil {
		m.logger.Warn("recreate after foreground failed", zap.Error(err))
	}
}

// RecreateClient tears down the current handle and replaces it with a fresh
// one, notifying listeners so they can re-subscribe. Calls inside the
// throttle window are skipped. The manager always ends usable: teardown
// failures are counted and logged but never block the swap, and a failed
// construction keeps the previous handle with NeedsReconnect set.
func (m *Manager) RecreateClient(ctx context.Context) error {
	m.mu.Lock()
	if m.destroyed {
		m.mu.Unlock()
		return ErrDestroyed
	}

	now := time.Now()
	if now.Sub(m.lastRecreate) < m.cfg.RecreateMinInterval {
		m.skipped++
		m.mu.Unlock()
		m.logger.Debug("recreate skipped inside throttle window")
		return nil
	}
	m.lastRecreate = now
	m.status.State = StateReconnecting
	old := m.client
	m.mu.Unlock()

	if err := old.Close(); err != nil {
		m.mu.Lock()
		m.teardownFailures++
		m.mu.Unlock()
		m.logger.Warn("old client teardown failed", zap.Error(err))
	}

	// Let in-flight async teardown settle before dialing again.
	time.Sleep(m.cfg.TeardownGrace)

	fresh, err := m.factory(ctx)
	if err != nil {
		m.mu.Lock()
		m.status.State = StateOnline
		m.status.NeedsReconnect = true
		m.mu.Unlock()
		m.logger.Error("client construction failed, keeping previous handle", zap.Error(err))
		return err
	}

	if err := fresh.Realtime().Connect(ctx); err != nil {
		m.logger.Warn("realtime dial on fresh client failed", zap.Error(err))
	}

	m.mu.Lock()
	m.client = fresh
	m.status = Status{State: StateOnline, NeedsReconnect: !fresh.Realtime().IsConnected()}
	m.recreates++
	listeners := make([]func(*platform.Client), 0, len(m.listeners))
	for _, fn := range m.listeners {
		listeners = append(listeners, fn)
	}
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(fresh)
	}

	m.logger.Info("client handle recreated")
	return nil
}

// Destroy cancels timers, closes the handle and drops all listeners.
func (m *Manager) Destroy() {
	m.mu.Lock()
	if m.destroyed {
		m.mu.Unlock()
		return
	}
	m.destroyed = true
	if m.bgTimer != nil {
		m.bgTimer.Stop()
		m.bgTimer = nil
	}
	client := m.client
	m.listeners = make(map[int]func(*platform.Client))
	m.mu.Unlock()

	if err := client.Close(); err != nil {
		m.logger.Debug("close on destroy failed", zap.Error(err))
	}
}

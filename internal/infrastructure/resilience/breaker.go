package resilience

import (
	"errors"
	"os"
	"sync"
	"time"
)

// ErrCircuitOpen is returned when a call is refused without attempting the
// operation. Callers can distinguish it from a genuine operation failure.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// ErrProductionForce is returned when ForceState is called in production.
var ErrProductionForce = errors.New("forcing breaker state is disabled in production")

// State represents the circuit breaker state
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Config configures the circuit breaker behavior
type Config struct {
	// FailureThreshold is the number of consecutive failures that trips
	// the breaker from closed to open
	FailureThreshold int
	// SuccessThreshold is the number of consecutive half-open successes
	// required to close the breaker again
	SuccessThreshold int
	// ResetTimeout is how long the breaker stays open before probing
	ResetTimeout time.Duration
	// MonitoringWindow is the trailing interval over which the failure
	// rate is computed
	MonitoringWindow time.Duration
	// EnableMetrics controls whether the rolling request log is kept
	EnableMetrics bool
	// OnStateChange is called whenever the state changes
	OnStateChange func(name string, from State, to State)
}

// Metrics is an immutable snapshot of breaker statistics. The failure rate
// covers only requests inside the monitoring window.
type Metrics struct {
	State               State
	TotalRequests       uint64
	Successes           uint64
	Failures            uint64
	ConsecutiveFailures int
	LastSuccess         time.Time
	LastFailure         time.Time
	OpenedAt            time.Time
	WindowRequests      int
	FailureRate         float64
}

// request is one entry in the rolling log
type request struct {
	at      time.Time
	success bool
}

// Breaker wraps an arbitrary operation and fails fast after repeated
// failures, probing for recovery after a cooldown.
type Breaker struct {
	name string
	cfg  Config

	mu                sync.Mutex
	state             State
	total             uint64
	successes         uint64
	failures          uint64
	consecFailures    int
	halfOpenSuccesses int
	lastSuccess       time.Time
	lastFailure       time.Time
	openedAt          time.Time
	window            []request
	fallback          func() (interface{}, error)
	resetTimer        *time.Timer
	destroyed         bool
}

// New creates a new circuit breaker with the given configuration
func New(name string, cfg Config) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 2
	}
	if cfg.ResetTimeout == 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.MonitoringWindow == 0 {
		cfg.MonitoringWindow = 60 * time.Second
	}

	return &Breaker{
		name:  name,
		cfg:   cfg,
		state: StateClosed,
	}
}

// Name returns the name of the circuit breaker
func (b *Breaker) Name() string {
	return b.name
}

// State returns the current state of the circuit breaker
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// SetFallback registers a fallback invoked when the circuit is open or the
// wrapped operation fails. Pass nil to clear.
func (b *Breaker) SetFallback(fn func() (interface{}, error)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fallback = fn
}

// Execute runs the given operation if the circuit breaker accepts it.
// When the circuit is open the operation is not invoked: the registered
// fallback's result is returned, or ErrCircuitOpen if none is registered.
// A failure in closed or half-open state is recorded first, then recovered
// through the fallback if one exists.
func (b *Breaker) Execute(op func() (interface{}, error)) (interface{}, error) {
	b.mu.Lock()

	if b.destroyed {
		b.mu.Unlock()
		return nil, errors.New("circuit breaker has been destroyed")
	}

	now := time.Now()
	if b.state == StateOpen {
		// The reset timer normally moves us to half-open, but a request
		// arriving after the cooldown may also act as the probe.
		if now.Sub(b.openedAt) >= b.cfg.ResetTimeout {
			b.toHalfOpen()
		} else {
			fallback := b.fallback
			b.mu.Unlock()
			if fallback != nil {
				return fallback()
			}
			return nil, ErrCircuitOpen
		}
	}

	b.total++
	b.mu.Unlock()

	result, err := op()

	b.mu.Lock()
	now = time.Now()
	if err == nil {
		b.onSuccess(now)
		b.mu.Unlock()
		return result, nil
	}

	b.onFailure(now)
	fallback := b.fallback
	b.mu.Unlock()

	if fallback != nil {
		return fallback()
	}
	return nil, err
}

// GetMetrics returns an immutable snapshot of the breaker statistics.
// The failure rate is recomputed from the rolling log on every read;
// entries older than the monitoring window are discarded.
func (b *Breaker) GetMetrics() Metrics {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.pruneWindow(time.Now())

	windowFailures := 0
	for _, r := range b.window {
		if !r.success {
			windowFailures++
		}
	}

	rate := 0.0
	if len(b.window) > 0 {
		rate = float64(windowFailures) / float64(len(b.window))
	}

	return Metrics{
		State:               b.state,
		TotalRequests:       b.total,
		Successes:           b.successes,
		Failures:            b.failures,
		ConsecutiveFailures: b.consecFailures,
		LastSuccess:         b.lastSuccess,
		LastFailure:         b.lastFailure,
		OpenedAt:            b.openedAt,
		WindowRequests:      len(b.window),
		FailureRate:         rate,
	}
}

// Reset forces the breaker to closed and zeroes all counters
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.cancelResetTimer()
	b.setState(StateClosed)
	b.total = 0
	b.successes = 0
	b.failures = 0
	b.consecFailures = 0
	b.halfOpenSuccesses = 0
	b.lastSuccess = time.Time{}
	b.lastFailure = time.Time{}
	b.openedAt = time.Time{}
	b.window = nil
}

// ForceState sets the breaker state directly. Intended for tests only;
// refused in production builds.
func (b *Breaker) ForceState(s State) error {
	if isProduction() {
		return ErrProductionForce
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.cancelResetTimer()
	if s == StateOpen {
		b.openedAt = time.Now()
	} else {
		b.openedAt = time.Time{}
	}
	b.halfOpenSuccesses = 0
	b.setState(s)
	return nil
}

// Destroy cancels timers and releases the fallback and request log.
// The breaker refuses all calls afterwards.
func (b *Breaker) Destroy() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.cancelResetTimer()
	b.fallback = nil
	b.window = nil
	b.destroyed = true
}

// onSuccess handles a successful operation. Caller holds the lock.
func (b *Breaker) onSuccess(now time.Time) {
	b.successes++
	b.consecFailures = 0
	b.lastSuccess = now
	b.record(now, true)

	if b.state == StateHalfOpen {
		b.halfOpenSuccesses++
		if b.halfOpenSuccesses >= b.cfg.SuccessThreshold {
			b.toClosed()
		}
	}
}

// onFailure handles a failed operation. Caller holds the lock.
func (b *Breaker) onFailure(now time.Time) {
	b.failures++
	b.consecFailures++
	b.lastFailure = now
	b.record(now, false)

	switch b.state {
	case StateHalfOpen:
		b.toOpen(now)
	case StateClosed:
		if b.consecFailures >= b.cfg.FailureThreshold {
			b.toOpen(now)
		}
	}
}

// toOpen transitions to open and arms the reset timer. Caller holds the lock.
func (b *Breaker) toOpen(now time.Time) {
	b.openedAt = now
	b.halfOpenSuccesses = 0
	b.setState(StateOpen)

	b.cancelResetTimer()
	b.resetTimer = time.AfterFunc(b.cfg.ResetTimeout, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.state == StateOpen {
			b.toHalfOpen()
		}
	})
}

// toHalfOpen transitions to half-open. Caller holds the lock.
func (b *Breaker) toHalfOpen() {
	b.cancelResetTimer()
	b.halfOpenSuccesses = 0
	b.setState(StateHalfOpen)
}

// toClosed transitions to closed. Caller holds the lock.
func (b *Breaker) toClosed() {
	b.cancelResetTimer()
	b.consecFailures = 0
	b.halfOpenSuccesses = 0
	b.openedAt = time.Time{}
	b.setState(StateClosed)
}

// setState changes the state and fires the change callback. Caller holds the lock.
func (b *Breaker) setState(s State) {
	if b.state == s {
		return
	}
	prev := b.state
	b.state = s
	if b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(b.name, prev, s)
	}
}

// record appends to the rolling log and prunes stale entries.
// Caller holds the lock.
func (b *Breaker) record(now time.Time, success bool) {
	if !b.cfg.EnableMetrics {
		return
	}
	b.window = append(b.window, request{at: now, success: success})
	b.pruneWindow(now)
}

// pruneWindow lazily discards entries older than the monitoring window.
// Caller holds the lock.
func (b *Breaker) pruneWindow(now time.Time) {
	cutoff := now.Add(-b.cfg.MonitoringWindow)
	i := 0
	for i < len(b.window) && b.window[i].at.Before(cutoff) {
		i++
	}
	if i > 0 {
		b.window = b.window[i:]
	}
}

// cancelResetTimer stops any pending open->half-open timer. Caller holds the lock.
func (b *Breaker) cancelResetTimer() {
	if b.resetTimer != nil {
		b.resetTimer.Stop()
		b.resetTimer = nil
	}
}

// isProduction checks if running in production environment
func isProduction() bool {
	env := os.Getenv("ENV")
	return env == "production" || env == "prod"
}

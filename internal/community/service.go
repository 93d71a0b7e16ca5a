package community

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/circlehq/circle-go/internal/infrastructure/logging"
	"github.com/circlehq/circle-go/internal/infrastructure/monitoring"
	"github.com/circlehq/circle-go/internal/infrastructure/resilience"
	"github.com/circlehq/circle-go/internal/infrastructure/tracing"
)

// Config tunes the per-service circuit breakers. Zero fields fall back to
// defaults suited to interactive screens: trip fast, probe after a short
// cooldown. Metrics and Tracer are optional; when set, every platform call
// is timed and traced.
type Config struct {
	FailureThreshold int
	SuccessThreshold int
	ResetTimeout     time.Duration
	Metrics          *monitoring.Metrics
	Tracer           *tracing.Tracer
}

func (c Config) withDefaults() Config {
	if c.FailureThreshold == 0 {
		c.FailureThreshold = 3
	}
	if c.SuccessThreshold == 0 {
		c.SuccessThreshold = 2
	}
	if c.ResetTimeout == 0 {
		c.ResetTimeout = 10 * time.Second
	}
	return c
}

// newBreaker builds one service's circuit breaker.
func newBreaker(name string, cfg Config, logger *logging.Logger) *resilience.Breaker {
	cfg = cfg.withDefaults()
	return resilience.New(name, resilience.Config{
		FailureThreshold: cfg.FailureThreshold,
		SuccessThreshold: cfg.SuccessThreshold,
		ResetTimeout:     cfg.ResetTimeout,
		MonitoringWindow: time.Minute,
		EnableMetrics:    true,
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("circuit state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
}

// calls wraps a service's outbound platform requests with its circuit
// breaker and, when configured, per-call metrics and tracing.
type calls struct {
	service string
	breaker *resilience.Breaker
	metrics *monitoring.Metrics
	tracer  *tracing.Tracer
}

func newCalls(name string, cfg Config, logger *logging.Logger) calls {
	return calls{
		service: name,
		breaker: newBreaker(name, cfg, logger),
		metrics: cfg.Metrics,
		tracer:  cfg.Tracer,
	}
}

// run executes one platform operation through the breaker. The timer fires
// even when the breaker fast-fails so open-circuit rejections show up in the
// platform call counters.
func (c calls) run(ctx context.Context, operation string, op func(context.Context) (interface{}, error)) (interface{}, error) {
	var finish func(error)
	if c.tracer != nil {
		ctx, finish = tracing.PlatformSpan(ctx, c.tracer, c.service, operation)
	}
	var timer *monitoring.Timer
	if c.metrics != nil {
		timer = monitoring.NewTimer(c.metrics, c.service, operation)
	}

	v, err := c.breaker.Execute(func() (interface{}, error) {
		return op(ctx)
	})

	if timer != nil {
		timer.Stop(callStatus(err))
	}
	if finish != nil {
		finish(err)
	}
	return v, err
}

func callStatus(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, resilience.ErrCircuitOpen):
		return "circuit_open"
	default:
		return "error"
	}
}

/*
Package resilience provides a circuit breaker for guarding remote platform calls.

# Overview

Every call the client core makes against the hosted platform can fail or hang.
The breaker fails fast after repeated failures, probes for recovery after a
cooldown, and can route refused or failed calls to a registered fallback
(typically a cached value).

# Usage

	breaker := resilience.New("content", resilience.Config{
		FailureThreshold: 3,
		SuccessThreshold: 2,
		ResetTimeout:     5 * time.Second,
		MonitoringWindow: 60 * time.Second,
		EnableMetrics:    true,
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("breaker state change", zap.String("breaker", name))
		},
	})

	result, err := breaker.Execute(func() (interface{}, error) {
		return client.From("posts").Select(ctx, nil)
	})

# States

	Closed --[FailureThreshold consecutive failures]-> Open
	Open --[ResetTimeout]-> Half-Open
	Half-Open --[SuccessThreshold consecutive successes]-> Closed
	Half-Open --[any failure]-> Open

The breaker imposes no timeout on the wrapped operation; wrap the operation
with a context deadline if one is needed.
*/
package resilience

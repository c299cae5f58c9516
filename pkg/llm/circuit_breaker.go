package llm

import (
	"context"
	"time"

	"github.com/harunnryd/tablecall/pkg/metrics"
	"github.com/harunnryd/tablecall/pkg/resilience"
)

// CircuitBreakerAdapter guards a classifier backend. While the breaker is
// open Generate fails fast with resilience.ErrCircuitOpen so the caller can
// fall back to keyword rules without waiting on a struggling provider.
type CircuitBreakerAdapter struct {
	inner   LLMAdapter
	breaker *resilience.CircuitBreaker
	obs     metrics.Observer
}

func NewCircuitBreakerAdapter(inner LLMAdapter, breaker *resilience.CircuitBreaker) *CircuitBreakerAdapter {
	if breaker == nil {
		breaker = resilience.NewCircuitBreaker(3, 30*time.Second)
	}
	return &CircuitBreakerAdapter{inner: inner, breaker: breaker}
}

func (a *CircuitBreakerAdapter) Name() string { return a.inner.Name() }

func (a *CircuitBreakerAdapter) SetObserver(obs metrics.Observer) { a.obs = obs }

// State reports the current breaker position.
func (a *CircuitBreakerAdapter) State() resilience.BreakerState { return a.breaker.State() }

func (a *CircuitBreakerAdapter) Generate(ctx context.Context, input Context) (Response, error) {
	if !a.breaker.Allow() {
		a.emit(metrics.EventBreakerDenied)
		return Response{}, resilience.ErrCircuitOpen
	}
	before := a.breaker.State()
	resp, err := a.inner.Generate(ctx, input)
	if err != nil {
		if resilience.IsRateLimit(err) {
			a.emit(metrics.EventRateLimit)
		}
		a.breaker.OnError(err)
	} else {
		a.breaker.OnSuccess()
	}

	switch after := a.breaker.State(); {
	case after == resilience.BreakerOpen && before != resilience.BreakerOpen:
		a.emit(metrics.EventBreakerOpen)
	case after == resilience.BreakerClosed && before == resilience.BreakerHalfOpen:
		a.emit(metrics.EventBreakerClose)
	}
	if err != nil {
		return Response{}, err
	}
	return resp, nil
}

func (a *CircuitBreakerAdapter) emit(name string) {
	metrics.Record(a.obs, name, 1, map[string]string{
		"provider":  a.inner.Name(),
		"component": "classifier",
	})
}

package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusObserver turns observer events into Prometheus series.
type PrometheusObserver struct {
	registry *prometheus.Registry

	TurnsTotal        *prometheus.CounterVec
	TurnDuration      *prometheus.HistogramVec
	ToolCallsTotal    *prometheus.CounterVec
	FallbacksTotal    *prometheus.CounterVec
	RetriesTotal      *prometheus.CounterVec
	BreakerEvents     *prometheus.CounterVec
	ActiveCalls       prometheus.Gauge
	HTTPRequestsTotal *prometheus.CounterVec
}

func NewPrometheusObserver(namespace string) *PrometheusObserver {
	if namespace == "" {
		namespace = "tablecall"
	}
	registry := prometheus.NewRegistry()

	turnsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Processed dialogue turns by intent and language",
		},
		[]string{"intent", "language", "clarify"},
	)
	turnDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_duration_seconds",
			Help:      "Time spent processing one turn",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"intent"},
	)
	toolCalls := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Tool dispatches by tool and outcome",
		},
		[]string{"tool", "outcome"},
	)
	fallbacks := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classifier_fallbacks_total",
			Help:      "Remote classifier failures answered by the rule-based path",
		},
		[]string{"reason"},
	)
	retries := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "external_retries_total",
			Help:      "Retries of external API calls",
		},
		[]string{"service"},
	)
	breaker := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "breaker_events_total",
			Help:      "Circuit breaker transitions and rejections",
		},
		[]string{"provider", "event"},
	)
	activeCalls := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_calls",
			Help:      "Calls with a live session",
		},
	)
	httpRequests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status",
		},
		[]string{"route", "status"},
	)

	registry.MustRegister(
		turnsTotal,
		turnDuration,
		toolCalls,
		fallbacks,
		retries,
		breaker,
		activeCalls,
		httpRequests,
	)

	return &PrometheusObserver{
		registry:          registry,
		TurnsTotal:        turnsTotal,
		TurnDuration:      turnDuration,
		ToolCallsTotal:    toolCalls,
		FallbacksTotal:    fallbacks,
		RetriesTotal:      retries,
		BreakerEvents:     breaker,
		ActiveCalls:       activeCalls,
		HTTPRequestsTotal: httpRequests,
	}
}

// Handler returns an HTTP handler for the metrics endpoint.
func (p *PrometheusObserver) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests.
func (p *PrometheusObserver) Registry() *prometheus.Registry {
	return p.registry
}

func (p *PrometheusObserver) RecordEvent(ev MetricsEvent) {
	tag := func(k string) string { return ev.Tags[k] }
	switch ev.Name {
	case EventTurnCompleted:
		p.TurnsTotal.WithLabelValues(tag("intent"), tag("language"), tag("clarify")).Inc()
		if ev.Value > 0 {
			p.TurnDuration.WithLabelValues(tag("intent")).Observe(ev.Value)
		}
	case EventToolDispatched:
		p.ToolCallsTotal.WithLabelValues(tag("tool"), tag("outcome")).Inc()
	case EventClassifierFallback:
		p.FallbacksTotal.WithLabelValues(tag("reason")).Inc()
	case EventExternalRetry:
		p.RetriesTotal.WithLabelValues(tag("service")).Inc()
	case EventBreakerOpen, EventBreakerClose, EventBreakerDenied, EventRateLimit:
		p.BreakerEvents.WithLabelValues(tag("provider"), ev.Name).Inc()
	case EventCallStarted:
		p.ActiveCalls.Inc()
	case EventCallEnded:
		p.ActiveCalls.Dec()
	case EventHTTPRequest:
		p.HTTPRequestsTotal.WithLabelValues(tag("route"), tag("status")).Inc()
	}
}

var _ Observer = (*PrometheusObserver)(nil)

package metrics

import "time"

type MetricsEvent struct {
	Name   string
	Time   time.Time
	Value  float64
	Tags   map[string]string
	Fields map[string]any
}

type Observer interface {
	RecordEvent(ev MetricsEvent)
}

type NoopObserver struct{}

func (NoopObserver) RecordEvent(MetricsEvent) {}

// Event names.
const (
	EventTurnCompleted      = "turn_completed"
	EventToolDispatched     = "tool_dispatched"
	EventClassifierFallback = "classifier_fallback"
	EventExternalRetry      = "external_api_retry"
	EventRateLimit          = "rate_limit"
	EventBreakerOpen        = "breaker_open"
	EventBreakerClose       = "breaker_close"
	EventBreakerDenied      = "breaker_denied"
	EventCallStarted        = "call_started"
	EventCallEnded          = "call_ended"
	EventHTTPRequest        = "http_request"
)

// Record is a shorthand for emitting an event with tags at the current time.
func Record(obs Observer, name string, value float64, tags map[string]string) {
	if obs == nil {
		return
	}
	obs.RecordEvent(MetricsEvent{Name: name, Time: time.Now(), Value: value, Tags: tags})
}

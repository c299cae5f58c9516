// Package session owns per-call conversation state and runs turns through
// the dialogue driver on behalf of every entry point.
package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/harunnryd/tablecall/pkg/dialogue"
	"github.com/harunnryd/tablecall/pkg/metrics"
)

// Session is one live call. mu serialises turns of the same call.
type Session struct {
	CallID  string
	State   *dialogue.CallState
	Created time.Time

	mu sync.Mutex
}

// Language reads the call language under the session lock.
func (s *Session) Language() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.State.Language
}

// Registry keys live sessions by call id.
type Registry struct {
	sessions sync.Map
	count    atomic.Int64
	draining atomic.Bool
	obs      metrics.Observer
}

func NewRegistry(obs metrics.Observer) *Registry {
	if obs == nil {
		obs = metrics.NoopObserver{}
	}
	return &Registry{obs: obs}
}

// GetOrCreate returns the session for callID, creating it with the given
// language hint. The boolean reports whether it was created.
func (r *Registry) GetOrCreate(callID, language string) (*Session, bool) {
	if callID == "" {
		return nil, false
	}
	if v, ok := r.sessions.Load(callID); ok {
		return v.(*Session), false
	}
	sess := &Session{
		CallID:  callID,
		State:   dialogue.NewCallState(callID, language),
		Created: time.Now(),
	}
	actual, loaded := r.sessions.LoadOrStore(callID, sess)
	if loaded {
		return actual.(*Session), false
	}
	r.count.Add(1)
	metrics.Record(r.obs, metrics.EventCallStarted, 1, nil)
	return sess, true
}

func (r *Registry) Get(callID string) (*Session, bool) {
	if v, ok := r.sessions.Load(callID); ok {
		return v.(*Session), true
	}
	return nil, false
}

func (r *Registry) Remove(callID string) {
	if _, ok := r.sessions.LoadAndDelete(callID); ok {
		r.count.Add(-1)
		metrics.Record(r.obs, metrics.EventCallEnded, 1, nil)
	}
}

func (r *Registry) CloseAll() {
	r.sessions.Range(func(key, _ any) bool {
		if callID, ok := key.(string); ok {
			r.Remove(callID)
		}
		return true
	})
}

func (r *Registry) Count() int64 {
	return r.count.Load()
}

func (r *Registry) SetDraining(v bool) {
	r.draining.Store(v)
}

func (r *Registry) Draining() bool {
	return r.draining.Load()
}

// WaitForEmpty polls until no sessions remain or ctx ends.
func (r *Registry) WaitForEmpty(ctx context.Context, interval time.Duration) bool {
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if r.Count() == 0 {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
}

package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

var ErrInvalidTransition = errors.New("invalid state transition")

// LifecycleRunner drives one process through New, Starting, Running,
// Draining and Stopped. Each shutdown phase gets its own timeout.
type LifecycleRunner struct {
	state   atomic.Int32
	hooks   Hooks
	drainer Drainer
	timeout time.Duration
	banner  io.Writer

	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped sync.Once
	stopErr error
}

func NewLifecycleRunner(drainer Drainer, hooks Hooks, timeout time.Duration) *LifecycleRunner {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	r := &LifecycleRunner{hooks: hooks, drainer: drainer, timeout: timeout, banner: os.Stdout}
	r.state.Store(int32(StateNew))
	return r
}

// SetBannerOutput redirects the startup banner. nil disables it.
func (r *LifecycleRunner) SetBannerOutput(w io.Writer) { r.banner = w }

// Run blocks until ctx is done or Stop is called, then shuts down.
func (r *LifecycleRunner) Run(ctx context.Context) error {
	if !r.state.CompareAndSwap(int32(StateNew), int32(StateStarting)) {
		return ErrInvalidTransition
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()

	PrintBanner(r.banner)
	if r.hooks.OnStart != nil {
		if err := r.hooks.OnStart(ctx); err != nil {
			cancel()
			r.enter(StateStopped)
			return fmt.Errorf("start: %w", err)
		}
	}
	r.enter(StateRunning)
	<-ctx.Done()
	return r.shutdown()
}

// Stop ends Run. Safe to call more than once.
func (r *LifecycleRunner) Stop() error {
	r.mu.Lock()
	cancel := r.cancel
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return r.shutdown()
}

func (r *LifecycleRunner) State() State { return State(r.state.Load()) }

func (r *LifecycleRunner) shutdown() error {
	r.stopped.Do(func() {
		r.enter(StateDraining)
		var errs []error
		if r.drainer != nil {
			errs = append(errs, r.phase("drain", r.drainer.Drain))
		}
		if r.hooks.OnStop != nil {
			errs = append(errs, r.phase("stop", r.hooks.OnStop))
		}
		r.stopErr = errors.Join(errs...)
		r.enter(StateStopped)
	})
	return r.stopErr
}

// phase runs fn with a fresh deadline; the parent context is already done.
func (r *LifecycleRunner) phase(name string, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	start := time.Now()
	err := fn(ctx)
	slog.Debug("lifecycle_phase", "phase", name, "duration", time.Since(start), "error", err)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

func (r *LifecycleRunner) enter(s State) {
	r.state.Store(int32(s))
	switch s {
	case StateRunning, StateStopped:
		slog.Info("lifecycle_" + s.String())
	}
}

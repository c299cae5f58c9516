package server

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

type checkResult struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type readyBody struct {
	Status string                 `json:"status"`
	Checks map[string]checkResult `json:"checks"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	slog.DebugContext(r.Context(), "health_check")
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady probes every dependency in parallel, each under its own
// timeout. Any failure turns the whole probe into a 503.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.opts.Draining != nil && s.opts.Draining() {
		writeJSON(w, http.StatusServiceUnavailable, readyBody{Status: "draining", Checks: map[string]checkResult{}})
		return
	}
	results := s.runChecks(r.Context())

	body := readyBody{Status: "ok", Checks: results}
	status := http.StatusOK
	for _, res := range results {
		if res.Status != "ok" {
			body.Status = "error"
			status = http.StatusServiceUnavailable
		}
	}
	if status != http.StatusOK {
		slog.WarnContext(r.Context(), "readiness_failed", "checks", failedNames(results))
	}
	writeJSON(w, status, body)
}

func (s *Server) runChecks(ctx context.Context) map[string]checkResult {
	var (
		mu      sync.Mutex
		results = make(map[string]checkResult, len(s.opts.Checks))
		g       errgroup.Group
	)
	for name, check := range s.opts.Checks {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, s.opts.ReadyTimeout)
			defer cancel()
			res := checkResult{Status: "ok"}
			if err := check(cctx); err != nil {
				res = checkResult{Status: "error", Error: err.Error()}
			}
			mu.Lock()
			results[name] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func failedNames(results map[string]checkResult) []string {
	var out []string
	for name, res := range results {
		if res.Status != "ok" {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

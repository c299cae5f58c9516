package server

import (
	"bufio"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/harunnryd/tablecall/pkg/logging"
	"github.com/harunnryd/tablecall/pkg/metrics"
)

const (
	headerRequestID = "x-request-id"
	headerCallID    = "x-call-id"
)

// requestContext tags every request with request and call ids (taken from
// the headers or generated), echoes them back, and turns panics into a 500.
func (s *Server) requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		began := time.Now()
		requestID := r.Header.Get(headerRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		callID := r.Header.Get(headerCallID)
		if callID == "" {
			callID = uuid.NewString()
		}
		ctx := logging.WithRequestID(logging.WithCallID(r.Context(), callID), requestID)
		r = r.WithContext(ctx)

		w.Header().Set(headerRequestID, requestID)
		w.Header().Set(headerCallID, callID)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		defer func() {
			if v := recover(); v != nil {
				if v == http.ErrAbortHandler {
					panic(v)
				}
				slog.ErrorContext(ctx, "request_failed",
					"path", r.URL.Path,
					"panic", v,
					"stack", string(debug.Stack()),
				)
				if !rec.wrote {
					writeDetail(rec, http.StatusInternalServerError, "Internal Server Error")
				}
			}
			route := r.Pattern
			if route == "" {
				route = "unmatched"
			}
			metrics.Record(s.opts.Observer, metrics.EventHTTPRequest, time.Since(began).Seconds(), map[string]string{
				"route":  route,
				"status": strconv.Itoa(rec.status),
			})
		}()
		next.ServeHTTP(rec, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	wrote  bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if !r.wrote {
		r.status = code
		r.wrote = true
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	r.wrote = true
	return r.ResponseWriter.Write(b)
}

// Hijack lets websocket upgrades pass through the recorder.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("hijack not supported")
	}
	r.status = http.StatusSwitchingProtocols
	r.wrote = true
	return h.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/harunnryd/tablecall/pkg/agent"
	"github.com/harunnryd/tablecall/pkg/convlog"
	"github.com/harunnryd/tablecall/pkg/crm"
	"github.com/harunnryd/tablecall/pkg/dialogue"
	"github.com/harunnryd/tablecall/pkg/intent"
	"github.com/harunnryd/tablecall/pkg/menu"
	"github.com/harunnryd/tablecall/pkg/metrics"
	"github.com/harunnryd/tablecall/pkg/providers/mock"
	"github.com/harunnryd/tablecall/pkg/session"
	"github.com/harunnryd/tablecall/pkg/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingSearcher struct{}

func (failingSearcher) Search(ctx context.Context, query, language string) ([]menu.Item, error) {
	return nil, errors.New("qdrant down")
}

type fixture struct {
	server *Server
	log    *convlog.MemoryStore
	obs    *metrics.MemoryObserver
}

func newFixture(t *testing.T, mutate func(*Options)) *fixture {
	t.Helper()
	driver := agent.NewDriver(
		intent.NewClassifier(nil, nil),
		tools.NewDispatcher(crm.NewMemoryStore(), menu.NewStaticSearcher(nil, 5), nil),
		agent.Config{},
		nil,
	)
	log := convlog.NewMemoryStore()
	obs := metrics.NewMemoryObserver()
	opts := Options{
		Service:      session.NewService(driver, log),
		Calls:        log,
		AudioDir:     t.TempDir(),
		AdminEnabled: true,
		Observer:     obs,
	}
	if mutate != nil {
		mutate(&opts)
	}
	return &fixture{server: New(opts), log: log, obs: obs}
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(w, req)
	return w
}

func postJSON(path string, body any) *http.Request {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHealthEchoesRequestIDs(t *testing.T) {
	f := newFixture(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("x-request-id", "req-1")
	w := f.do(req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	assert.Equal(t, "req-1", w.Header().Get("x-request-id"))
	assert.NotEmpty(t, w.Header().Get("x-call-id"))
	assert.Contains(t, f.obs.Names(), metrics.EventHTTPRequest)
}

func TestReadyReportsEachCheck(t *testing.T) {
	f := newFixture(t, func(o *Options) {
		o.ReadyTimeout = 20 * time.Millisecond
		o.Checks = map[string]Checker{
			"storage": func(ctx context.Context) error { return nil },
			"qdrant":  func(ctx context.Context) error { return errors.New("connection refused") },
			"openai": func(ctx context.Context) error {
				<-ctx.Done()
				return ctx.Err()
			},
		}
	})

	w := f.do(httptest.NewRequest(http.MethodGet, "/ready", nil))
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	body := decodeBody[readyBody](t, w)
	assert.Equal(t, "error", body.Status)
	assert.Equal(t, checkResult{Status: "ok"}, body.Checks["storage"])
	assert.Equal(t, checkResult{Status: "error", Error: "connection refused"}, body.Checks["qdrant"])
	assert.Equal(t, "error", body.Checks["openai"].Status)
	assert.Contains(t, body.Checks["openai"].Error, "deadline exceeded")
}

func TestReadyOKAndDraining(t *testing.T) {
	draining := false
	f := newFixture(t, func(o *Options) {
		o.Checks = map[string]Checker{"storage": func(ctx context.Context) error { return nil }}
		o.Draining = func() bool { return draining }
	})

	w := f.do(httptest.NewRequest(http.MethodGet, "/ready", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","checks":{"storage":{"status":"ok"}}}`, w.Body.String())

	draining = true
	w = f.do(httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestTextCreatesReservation(t *testing.T) {
	f := newFixture(t, nil)

	w := f.do(postJSON("/mvp/text", map[string]any{
		"text":     "I want to book a table for 2 on 2025-05-10 18:30, my name is Alice.",
		"language": "en",
		"call_id":  "web-1",
	}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decodeBody[mvpResponse](t, w)
	require.NotNil(t, body.Intent)
	assert.Equal(t, dialogue.IntentCreateReservation, *body.Intent)
	assert.Equal(t, "Reservation created.", body.AnswerText)
	assert.Empty(t, body.Actions)
	require.NotNil(t, body.ReservationID)
	assert.Equal(t, 1, *body.ReservationID)

	detail, err := f.log.GetCall(context.Background(), "web-1")
	require.NoError(t, err)
	require.Len(t, detail.Turns, 1)
	assert.Equal(t, "en", detail.Turns[0].Language)
}

func TestTextClarifyShape(t *testing.T) {
	f := newFixture(t, nil)

	req := postJSON("/mvp/text", map[string]any{"text": "Cancel my booking", "language": "en"})
	req.Header.Set("x-call-id", "hdr-call")
	w := f.do(req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{
		"transcript": "Cancel my booking",
		"intent": "cancel_reservation",
		"actions": ["clarify"],
		"answer_text": "Please provide the reservation ID.",
		"reservation_id": null
	}`, w.Body.String())

	_, err := f.log.GetCall(context.Background(), "hdr-call")
	assert.NoError(t, err)
}

func TestTextValidation(t *testing.T) {
	f := newFixture(t, nil)

	cases := map[string]any{
		"unsupported language": map[string]any{"text": "hello", "language": "de"},
		"blank text":           map[string]any{"text": " \x00 ", "language": "en"},
		"long text":            map[string]any{"text": strings.Repeat("a", 4001), "language": "en"},
		"long call id":         map[string]any{"text": "hello", "language": "en", "call_id": strings.Repeat("c", 129)},
	}
	for name, body := range cases {
		w := f.do(postJSON("/mvp/text", body))
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code, name)
	}

	req := httptest.NewRequest(http.MethodPost, "/mvp/text", strings.NewReader("{"))
	assert.Equal(t, http.StatusUnprocessableEntity, f.do(req).Code)
}

func TestTextCollaboratorFailureApologises(t *testing.T) {
	driver := agent.NewDriver(
		intent.NewClassifier(nil, nil),
		tools.NewDispatcher(crm.NewMemoryStore(), failingSearcher{}, nil),
		agent.Config{},
		nil,
	)
	f := newFixture(t, func(o *Options) { o.Service = session.NewService(driver, convlog.NewMemoryStore()) })

	w := f.do(postJSON("/mvp/text", map[string]any{"text": "What is on the menu?", "language": "en"}))
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody[mvpResponse](t, w)
	assert.Equal(t, "I'm sorry, I couldn't process your request.", body.AnswerText)
	assert.Empty(t, body.Actions)
}

func multipartAudio(t *testing.T, path string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "utterance.wav")
	require.NoError(t, err)
	_, err = part.Write([]byte("RIFF....WAVE"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestAudioTranscribesAndRecords(t *testing.T) {
	stt := mock.NewTranscriber(mock.STTConfig{Transcript: "What are your opening hours?", Language: "en"})
	var audioDir string
	f := newFixture(t, func(o *Options) {
		o.Transcriber = stt
		audioDir = o.AudioDir
	})

	w := f.do(multipartAudio(t, "/mvp/audio?language=en&call_id=voice-1"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decodeBody[mvpResponse](t, w)
	assert.Equal(t, "What are your opening hours?", body.Transcript)
	assert.Equal(t, "We are open daily from 10:00 to 22:00.", body.AnswerText)

	saved := filepath.Join(audioDir, "voice-1", "input_1.wav")
	data, err := os.ReadFile(saved)
	require.NoError(t, err)
	assert.Equal(t, "RIFF....WAVE", string(data))
	assert.Equal(t, []convlog.AudioFile{{CallID: "voice-1", TurnID: 1, Path: saved, Kind: convlog.AudioInput}}, f.log.AudioFiles("voice-1"))
}

func TestAudioErrors(t *testing.T) {
	f := newFixture(t, nil)
	w := f.do(multipartAudio(t, "/mvp/audio?language=xx"))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.JSONEq(t, `{"detail":"Unsupported language"}`, w.Body.String())

	w = f.do(multipartAudio(t, "/mvp/audio?language=en"))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	broken := newFixture(t, func(o *Options) {
		o.Transcriber = mock.NewTranscriber(mock.STTConfig{Err: errors.New("stt down")})
	})
	w = broken.do(multipartAudio(t, "/mvp/audio?language=en&call_id=c1"))
	assert.Equal(t, http.StatusBadGateway, w.Code)

	w = broken.do(multipartAudio(t, "/mvp/audio?language=en&call_id=..%2Fetc"))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestAdminCalls(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	require.NoError(t, f.log.UpdateCall(ctx, "CA1", convlog.CallUpdate{FromNumber: "+14155550100", Status: "completed"}))
	require.NoError(t, f.log.UpdateCall(ctx, "CA2", convlog.CallUpdate{FromNumber: "+421905123456", Status: "in-progress"}))
	_, err := f.log.RecordTurn(ctx, convlog.Turn{CallID: "CA1", UserText: "hi", AssistantText: "How can I help you today?"})
	require.NoError(t, err)

	w := f.do(httptest.NewRequest(http.MethodGet, "/admin/calls?from_number=%2B1%20415%20555%200100", nil))
	require.Equal(t, http.StatusOK, w.Code)
	list := decodeBody[callList](t, w)
	require.Len(t, list.Calls, 1)
	assert.Equal(t, "CA1", list.Calls[0].CallID)
	assert.Equal(t, convlog.DefaultListLimit, list.Limit)

	w = f.do(httptest.NewRequest(http.MethodGet, "/admin/calls?limit=1000&offset=-3", nil))
	list = decodeBody[callList](t, w)
	assert.Equal(t, convlog.MaxListLimit, list.Limit)
	assert.Equal(t, 0, list.Offset)
	assert.Len(t, list.Calls, 2)

	w = f.do(httptest.NewRequest(http.MethodGet, "/admin/calls?limit=abc", nil))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = f.do(httptest.NewRequest(http.MethodGet, "/admin/calls/CA1", nil))
	require.Equal(t, http.StatusOK, w.Code)
	detail := decodeBody[convlog.CallDetail](t, w)
	assert.Equal(t, "User: hi\nAssistant: How can I help you today?", detail.Transcript)

	w = f.do(httptest.NewRequest(http.MethodGet, "/admin/calls/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminDisabled(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.AdminEnabled = false })
	w := f.do(httptest.NewRequest(http.MethodGet, "/admin/calls", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

type panicMount struct{}

func (panicMount) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /boom", func(w http.ResponseWriter, r *http.Request) { panic("boom") })
}

func TestPanicBecomesInternalError(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.Mounts = []Mounter{panicMount{}} })

	w := f.do(httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"detail":"Internal Server Error"}`, w.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	prom := metrics.NewPrometheusObserver("test")
	f := newFixture(t, func(o *Options) {
		o.Observer = prom
		o.Metrics = prom.Handler()
	})
	f.do(httptest.NewRequest(http.MethodGet, "/health", nil))

	w := f.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `test_http_requests_total{route="GET /health",status="200"} 1`)
}

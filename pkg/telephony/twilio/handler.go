package twilio

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/harunnryd/tablecall/pkg/convlog"
	"github.com/harunnryd/tablecall/pkg/errorsx"
	"github.com/harunnryd/tablecall/pkg/logging"
	"github.com/harunnryd/tablecall/pkg/redact"
	"github.com/harunnryd/tablecall/pkg/reply"
	"github.com/harunnryd/tablecall/pkg/session"
	twilioclient "github.com/twilio/twilio-go/client"
)

// Handler answers the Twilio voice webhooks. Each CallSid maps to one
// registry session so the conversation history accumulates across the
// Gather round trips of a call.
type Handler struct {
	cfg      Config
	service  *session.Service
	sessions *session.Registry
	calls    convlog.Store
}

// NewHandler wires the webhooks. calls may be nil when call metadata is not
// persisted.
func NewHandler(cfg Config, service *session.Service, sessions *session.Registry, calls convlog.Store) *Handler {
	if !cfg.ValidateSignature || cfg.AuthToken == "" {
		slog.Warn("twilio_signature_validation_disabled")
	}
	return &Handler{cfg: cfg.withDefaults(), service: service, sessions: sessions, calls: calls}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc(h.cfg.IncomingPath, h.handleIncoming)
	mux.HandleFunc(h.cfg.VoicePath, h.handleVoice)
	mux.HandleFunc(h.cfg.StatusPath, h.handleStatus)
}

func (h *Handler) handleIncoming(w http.ResponseWriter, r *http.Request) {
	if !h.accept(w, r, "twilio_incoming_invalid_signature") {
		return
	}
	if h.sessions.Draining() {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	p, err := parseIncoming(r)
	if err != nil {
		slog.Warn("twilio_invalid_payload", "path", r.URL.Path, "error", err)
		w.WriteHeader(http.StatusUnprocessableEntity)
		return
	}
	ctx := logging.WithCallID(r.Context(), p.CallSID)
	slog.InfoContext(ctx, "incoming_call",
		"from_number", redact.Phone(p.From),
		"to_number", redact.Phone(p.To),
	)

	h.sessions.GetOrCreate(p.CallSID, "")
	h.updateCall(ctx, p.CallSID, convlog.CallUpdate{FromNumber: p.From, ToNumber: p.To, Status: "in-progress"})

	doc, err := h.gatherTwiML(greeting, "en")
	writeTwiML(w, doc, err)
}

func (h *Handler) handleVoice(w http.ResponseWriter, r *http.Request) {
	if !h.accept(w, r, "twilio_voice_invalid_signature") {
		return
	}
	p, err := parseVoice(r)
	if err != nil {
		slog.Warn("twilio_invalid_payload", "path", r.URL.Path, "error", err)
		w.WriteHeader(http.StatusUnprocessableEntity)
		return
	}
	ctx := logging.WithCallID(r.Context(), p.CallSID)
	slog.InfoContext(ctx, "voice_input",
		"speech_result", redact.Value(p.SpeechResult),
		"confidence", p.Confidence,
	)

	sess, _ := h.sessions.GetOrCreate(p.CallSID, "")
	if p.SpeechResult == "" {
		lang := sess.Language()
		doc, err := h.gatherTwiML(reprompt(lang), lang)
		writeTwiML(w, doc, err)
		return
	}

	out, err := h.service.SessionTurn(ctx, sess, p.SpeechResult, "")
	lang := out.Response.Language
	if lang == "" {
		lang = sess.Language()
	}
	answer := out.Response.AnswerText
	if answer == "" {
		answer = reply.Apology(lang).AnswerText
	}

	var doc string
	switch {
	case err != nil, out.Response.NeedsClarification():
		// A failed turn keeps the line open so the caller can try again.
		doc, err = h.gatherTwiML(answer, lang)
	default:
		doc, err = hangupTwiML(answer, lang)
	}
	writeTwiML(w, doc, err)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !h.accept(w, r, "twilio_status_invalid_signature") {
		return
	}
	p, err := parseStatus(r)
	if err != nil {
		slog.Warn("twilio_invalid_payload", "path", r.URL.Path, "error", err)
		w.WriteHeader(http.StatusUnprocessableEntity)
		return
	}
	ctx := logging.WithCallID(r.Context(), p.CallSID)
	reason := normalizeCallEndReason(p.CallStatus)
	slog.InfoContext(ctx, "call_status_update", "status", p.CallStatus, "end_reason", reason)

	ended := reason != ""
	h.updateCall(ctx, p.CallSID, convlog.CallUpdate{Status: strings.ToLower(p.CallStatus), Ended: ended})
	if ended {
		h.sessions.Remove(p.CallSID)
	}
	doc, err := emptyTwiML()
	writeTwiML(w, doc, err)
}

// accept enforces POST and, when enabled, the request signature.
func (h *Handler) accept(w http.ResponseWriter, r *http.Request, event string) bool {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return false
	}
	if h.cfg.verifySignatures() && !h.validateTwilioRequest(r) {
		slog.Warn(event, "reason_code", string(errorsx.ReasonTransportInvalidSignature))
		w.WriteHeader(http.StatusForbidden)
		return false
	}
	return true
}

func (h *Handler) updateCall(ctx context.Context, callSID string, upd convlog.CallUpdate) {
	if h.calls == nil {
		return
	}
	if err := h.calls.UpdateCall(ctx, callSID, upd); err != nil {
		slog.ErrorContext(ctx, "call_update_failed", "error", err)
	}
}

func (h *Handler) validateTwilioRequest(r *http.Request) bool {
	signature := r.Header.Get("X-Twilio-Signature")
	if signature == "" {
		return false
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return false
	}
	_ = r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(body))

	values, err := url.ParseQuery(string(body))
	if err != nil {
		return false
	}
	params := make(map[string]string, len(values))
	for k, v := range values {
		if len(v) > 0 {
			params[k] = v[0]
		}
	}
	validator := twilioclient.NewRequestValidator(h.cfg.AuthToken)
	return validator.Validate(h.requestURL(r), params, signature)
}

// requestURL rebuilds the URL Twilio signed. Behind a proxy PublicURL wins.
func (h *Handler) requestURL(r *http.Request) string {
	if h.cfg.PublicURL != "" {
		base := strings.TrimRight(h.cfg.PublicURL, "/")
		return base + r.URL.RequestURI()
	}
	scheme := r.URL.Scheme
	if scheme == "" {
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		} else {
			scheme = "https"
		}
	}
	host := r.Host
	if host == "" {
		host = strings.TrimPrefix(h.cfg.ServerAddr, ":")
	}
	return scheme + "://" + host + r.URL.RequestURI()
}

func writeTwiML(w http.ResponseWriter, doc string, err error) {
	if err != nil {
		slog.Error("twiml_render_failed", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	_, _ = w.Write([]byte(doc))
}

// normalizeCallEndReason maps a Twilio CallStatus to an end reason, or ""
// while the call is still live.
func normalizeCallEndReason(raw string) string {
	r := strings.ToLower(strings.TrimSpace(raw))
	if r == "" {
		return ""
	}
	switch r {
	case "queued", "initiated", "ringing", "in-progress", "inprogress":
		return ""
	case "completed", "call_ended", "call-ended", "completed_by_user", "hangup":
		return "completed"
	case "busy":
		return "busy"
	case "no_answer", "noanswer", "no-answer":
		return "no_answer"
	case "failed", "error", "canceled", "cancelled":
		return "failed"
	default:
		return "unknown"
	}
}

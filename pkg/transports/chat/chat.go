// Package chat exposes the assistant over a websocket for text conversations.
// One socket is one call: every inbound message is a caller utterance and
// every reply is a JSON frame.
package chat

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/harunnryd/tablecall/pkg/convlog"
	"github.com/harunnryd/tablecall/pkg/dialogue"
	"github.com/harunnryd/tablecall/pkg/errorsx"
	"github.com/harunnryd/tablecall/pkg/logging"
	"github.com/harunnryd/tablecall/pkg/session"
	"github.com/harunnryd/tablecall/pkg/validate"
)

const (
	maxCallIDLen = 128
	maxTextLen   = 4000
)

type Config struct {
	Path           string        `mapstructure:"path"`
	AllowAnyOrigin bool          `mapstructure:"allow_any_origin"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
}

func (c Config) withDefaults() Config {
	if c.Path == "" {
		c.Path = "/chat/ws"
	}
	if !c.AllowAnyOrigin && len(c.AllowedOrigins) == 0 {
		c.AllowAnyOrigin = true
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 5 * time.Minute
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = 16 << 10
	}
	return c
}

// Inbound is a client frame.
type Inbound struct {
	Text     string `json:"text"`
	Language string `json:"language,omitempty"`
}

// Outbound is a server frame. Type is "session", "reply" or "error".
type Outbound struct {
	Type          string            `json:"type"`
	CallID        string            `json:"call_id"`
	TurnID        int               `json:"turn_id,omitempty"`
	Transcript    string            `json:"transcript,omitempty"`
	Intent        dialogue.Intent   `json:"intent,omitempty"`
	AnswerText    string            `json:"answer_text,omitempty"`
	Actions       []dialogue.Action `json:"actions,omitempty"`
	Language      string            `json:"language,omitempty"`
	ReservationID int               `json:"reservation_id,omitempty"`
	Done          bool              `json:"done,omitempty"`
	Error         string            `json:"error,omitempty"`
}

type Handler struct {
	cfg      Config
	service  *session.Service
	sessions *session.Registry
	calls    convlog.Store
	upgrader websocket.Upgrader
}

func NewHandler(cfg Config, service *session.Service, sessions *session.Registry, calls convlog.Store) *Handler {
	cfg = cfg.withDefaults()
	h := &Handler{
		cfg:      cfg,
		service:  service,
		sessions: sessions,
		calls:    calls,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
	h.upgrader.CheckOrigin = h.checkOrigin
	return h
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.Handle(h.cfg.Path, h)
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.sessions.Draining() {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	callID, err := resolveCallID(r.URL.Query().Get("call_id"))
	if err != nil {
		http.Error(w, "invalid call_id", http.StatusUnprocessableEntity)
		return
	}
	language := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("language")))

	sess, created := h.sessions.GetOrCreate(callID, language)
	if !created {
		http.Error(w, "call already connected", http.StatusConflict)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.sessions.Remove(callID)
		return
	}
	ctx := logging.WithCallID(context.WithoutCancel(r.Context()), callID)
	slog.InfoContext(ctx, "chat_connected", "remote", r.RemoteAddr)
	h.updateCall(ctx, callID, convlog.CallUpdate{Status: "in-progress"})

	defer func() {
		_ = conn.Close()
		h.sessions.Remove(callID)
		h.updateCall(ctx, callID, convlog.CallUpdate{Status: "completed", Ended: true})
		slog.InfoContext(ctx, "chat_disconnected")
	}()

	conn.SetReadLimit(h.cfg.MaxMessageSize)
	if err := writeFrame(conn, Outbound{Type: "session", CallID: callID}); err != nil {
		return
	}
	h.loop(ctx, conn, sess)
}

func (h *Handler) loop(ctx context.Context, conn *websocket.Conn, sess *session.Session) {
	for {
		_ = conn.SetReadDeadline(time.Now().Add(h.cfg.IdleTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.DebugContext(ctx, "chat_read_ended", "error", err)
			}
			return
		}
		in, err := parseInbound(msg)
		if err != nil {
			if werr := writeFrame(conn, Outbound{Type: "error", CallID: sess.CallID, Error: err.Error()}); werr != nil {
				return
			}
			continue
		}
		out, err := h.service.SessionTurn(ctx, sess, in.Text, in.Language)
		frame := Outbound{
			Type:          "reply",
			CallID:        sess.CallID,
			TurnID:        out.TurnID,
			Transcript:    out.Transcript,
			Intent:        out.Intent,
			AnswerText:    out.Response.AnswerText,
			Actions:       out.Response.Actions,
			Language:      out.Response.Language,
			ReservationID: out.ReservationID,
			Done:          err == nil && !out.Response.NeedsClarification(),
		}
		if err := writeFrame(conn, frame); err != nil {
			slog.WarnContext(ctx, "chat_write_failed", "error", err, errorsx.Attr(err))
			return
		}
	}
}

// parseInbound accepts a JSON frame or a bare text message.
func parseInbound(msg []byte) (Inbound, error) {
	var in Inbound
	trimmed := strings.TrimSpace(string(msg))
	if strings.HasPrefix(trimmed, "{") {
		if err := json.Unmarshal(msg, &in); err != nil {
			return Inbound{}, err
		}
	} else {
		in.Text = trimmed
	}
	text, err := validate.Text(in.Text, maxTextLen)
	if err != nil {
		return Inbound{}, err
	}
	in.Text = text
	in.Language = strings.ToLower(strings.TrimSpace(in.Language))
	return in, nil
}

func resolveCallID(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return uuid.NewString(), nil
	}
	return validate.Text(raw, maxCallIDLen)
}

func writeFrame(conn *websocket.Conn, frame Outbound) error {
	_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return errorsx.Wrap(conn.WriteJSON(frame), errorsx.ReasonTransportSend)
}

func (h *Handler) updateCall(ctx context.Context, callID string, upd convlog.CallUpdate) {
	if h.calls == nil {
		return
	}
	if err := h.calls.UpdateCall(ctx, callID, upd); err != nil {
		slog.ErrorContext(ctx, "call_update_failed", "error", err)
	}
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if h.cfg.AllowAnyOrigin {
		return true
	}
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	origin = strings.TrimRight(origin, "/")
	originHost := strings.TrimPrefix(origin, "https://")
	originHost = strings.TrimPrefix(originHost, "http://")
	for _, allowed := range h.cfg.AllowedOrigins {
		a := strings.TrimRight(strings.TrimSpace(allowed), "/")
		if a == "" {
			continue
		}
		if strings.HasPrefix(a, "http://") || strings.HasPrefix(a, "https://") {
			if strings.EqualFold(a, origin) {
				return true
			}
			continue
		}
		if strings.EqualFold(a, originHost) {
			return true
		}
	}
	return false
}

package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/harunnryd/tablecall/pkg/adapters/stt"
	"github.com/harunnryd/tablecall/pkg/convlog"
	"github.com/harunnryd/tablecall/pkg/dialogue"
	"github.com/harunnryd/tablecall/pkg/errorsx"
	"github.com/harunnryd/tablecall/pkg/logging"
	"github.com/harunnryd/tablecall/pkg/redact"
	"github.com/harunnryd/tablecall/pkg/session"
	"github.com/harunnryd/tablecall/pkg/validate"
)

const (
	maxTextLen   = 4000
	maxCallIDLen = 128
	maxAudioSize = 25 << 20
)

var supportedLanguages = map[string]bool{"sk": true, "en": true, "ru": true, "uk": true}

type textRequest struct {
	Text     string  `json:"text"`
	Language string  `json:"language"`
	CallID   *string `json:"call_id"`
}

// mvpResponse is the reply shape shared by the text and audio endpoints.
type mvpResponse struct {
	Transcript    string            `json:"transcript"`
	Intent        *dialogue.Intent  `json:"intent"`
	Actions       []dialogue.Action `json:"actions"`
	AnswerText    string            `json:"answer_text"`
	ReservationID *int              `json:"reservation_id"`
}

func newMVPResponse(out session.Outcome) mvpResponse {
	resp := mvpResponse{
		Transcript: out.Transcript,
		Actions:    out.Response.Actions,
		AnswerText: out.Response.AnswerText,
	}
	if resp.Actions == nil {
		resp.Actions = []dialogue.Action{}
	}
	if out.Intent != "" {
		intent := out.Intent
		resp.Intent = &intent
	}
	if out.ReservationID > 0 {
		id := out.ReservationID
		resp.ReservationID = &id
	}
	return resp
}

// handleText runs one utterance on a fresh call state. Conversation memory
// across requests is the job of the chat and telephony entry points.
func (s *Server) handleText(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "Invalid JSON body")
		return
	}
	if !supportedLanguages[req.Language] {
		writeDetail(w, http.StatusUnprocessableEntity, "Unsupported language")
		return
	}
	text, err := validate.Text(req.Text, maxTextLen)
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "text: "+err.Error())
		return
	}
	callID := logging.CallID(r.Context())
	if req.CallID != nil {
		if callID, err = validate.Text(*req.CallID, maxCallIDLen); err != nil {
			writeDetail(w, http.StatusUnprocessableEntity, "call_id: "+err.Error())
			return
		}
	}
	ctx := logging.WithCallID(r.Context(), callID)

	state := dialogue.NewCallState(callID, req.Language)
	out, err := s.opts.Service.Turn(ctx, state, text, 0)
	if err != nil {
		slog.WarnContext(ctx, "mvp_text_apology", errorsx.Attr(err))
	}
	writeJSON(w, http.StatusOK, newMVPResponse(out))
}

// handleAudio stores the upload under the call's audio directory, transcribes
// it and runs the transcript as one turn.
func (s *Server) handleAudio(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	language := q.Get("language")
	if language == "" {
		language = "en"
	}
	if !supportedLanguages[language] {
		writeDetail(w, http.StatusUnprocessableEntity, "Unsupported language")
		return
	}
	callID := logging.CallID(r.Context())
	if raw, ok := q["call_id"]; ok && len(raw) > 0 {
		id, err := validate.Text(raw[0], maxCallIDLen)
		if err != nil {
			writeDetail(w, http.StatusUnprocessableEntity, "Invalid call_id")
			return
		}
		callID = id
	}
	if !safePathSegment(callID) {
		writeDetail(w, http.StatusUnprocessableEntity, "Invalid call_id")
		return
	}
	if s.opts.Transcriber == nil {
		writeDetail(w, http.StatusServiceUnavailable, "Speech recognition is not configured")
		return
	}
	ctx := logging.WithCallID(r.Context(), callID)

	r.Body = http.MaxBytesReader(w, r.Body, maxAudioSize)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "file is required")
		return
	}
	defer file.Close()

	turnID, err := s.opts.Service.NextTurnID(ctx, callID)
	if err != nil {
		slog.ErrorContext(ctx, "turn_id_failed", "error", err)
		writeDetail(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	path, err := s.saveAudio(callID, turnID, file)
	if err != nil {
		slog.ErrorContext(ctx, "audio_save_failed", "error", err)
		writeDetail(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	transcript, err := s.transcribe(ctx, path, header.Header.Get("Content-Type"), language)
	if err != nil {
		slog.ErrorContext(ctx, "stt_failed", "error", err, errorsx.Attr(err))
		writeDetail(w, http.StatusBadGateway, "Transcription failed")
		return
	}
	text := strings.TrimSpace(transcript.Text)
	if text == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "No speech detected")
		return
	}
	slog.InfoContext(ctx, "audio_transcribed", "text", redact.Value(text), "language", transcript.Language)

	stateLang := transcript.Language
	if !supportedLanguages[stateLang] {
		stateLang = language
	}
	state := dialogue.NewCallState(callID, stateLang)
	out, err := s.opts.Service.Turn(ctx, state, text, turnID)
	if err != nil {
		slog.WarnContext(ctx, "mvp_audio_apology", errorsx.Attr(err))
	} else if s.opts.Calls != nil {
		audio := convlog.AudioFile{CallID: callID, TurnID: out.TurnID, Path: path, Kind: convlog.AudioInput}
		if err := s.opts.Calls.RecordAudio(ctx, audio); err != nil {
			slog.ErrorContext(ctx, "audio_record_failed", "error", err)
		}
	}
	writeJSON(w, http.StatusOK, newMVPResponse(out))
}

func (s *Server) saveAudio(callID string, turnID int, src io.Reader) (string, error) {
	dir := filepath.Join(s.opts.AudioDir, callID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, fmt.Sprintf("input_%d.wav", turnID))
	dst, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return "", err
	}
	return path, dst.Close()
}

func (s *Server) transcribe(ctx context.Context, path, contentType, language string) (stt.Transcript, error) {
	f, err := os.Open(path)
	if err != nil {
		return stt.Transcript{}, err
	}
	defer f.Close()
	if contentType == "" {
		contentType = "audio/wav"
	}
	return s.opts.Transcriber.Transcribe(ctx, f, contentType, language)
}

// safePathSegment rejects ids that would escape the audio directory.
func safePathSegment(id string) bool {
	if id == "." || id == ".." {
		return false
	}
	return !strings.ContainsAny(id, `/\`)
}

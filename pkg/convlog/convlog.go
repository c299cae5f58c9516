// Package convlog records the turns of every call so sessions can be
// reviewed after the fact.
package convlog

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/harunnryd/tablecall/pkg/dialogue"
)

// ErrCallNotFound is returned by GetCall for an unknown call id.
var ErrCallNotFound = errors.New("call not found")

type AudioKind string

const (
	AudioInput  AudioKind = "input"
	AudioOutput AudioKind = "output"
)

func (k AudioKind) Valid() bool {
	return k == AudioInput || k == AudioOutput
}

// Turn is one processed utterance of a call. TurnID zero asks the store to
// allocate the next id for the call.
type Turn struct {
	CallID        string          `json:"call_id"`
	TurnID        int             `json:"turn_id"`
	Language      string          `json:"language,omitempty"`
	UserText      string          `json:"user_text"`
	Intent        string          `json:"intent"`
	ToolCalls     json.RawMessage `json:"tool_calls,omitempty"`
	AssistantText string          `json:"assistant_text"`
	CreatedAt     time.Time       `json:"created_at"`
}

type Call struct {
	CallID     string     `json:"call_id"`
	StartedAt  time.Time  `json:"started_at"`
	EndedAt    *time.Time `json:"ended_at"`
	Language   string     `json:"language,omitempty"`
	FromNumber string     `json:"from_number,omitempty"`
	ToNumber   string     `json:"to_number,omitempty"`
	Status     string     `json:"status,omitempty"`
}

// CallDetail is a call with its ordered turns and a plain-text transcript.
type CallDetail struct {
	Call
	Turns      []Turn `json:"turns"`
	Transcript string `json:"transcript"`
}

// CallUpdate changes call metadata. Empty fields keep their stored value;
// Ended stamps ended_at with the current time.
type CallUpdate struct {
	FromNumber string
	ToNumber   string
	Status     string
	Ended      bool
}

type CallFilter struct {
	Limit      int
	Offset     int
	FromNumber string
	Status     string
}

const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// Normalize clamps the paging window.
func (f CallFilter) Normalize() CallFilter {
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	if f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

type AudioFile struct {
	CallID string
	TurnID int
	Path   string
	Kind   AudioKind
}

// Store persists calls, turns and audio references.
type Store interface {
	RecordTurn(ctx context.Context, turn Turn) (int, error)
	NextTurnID(ctx context.Context, callID string) (int, error)
	RecordAudio(ctx context.Context, audio AudioFile) error
	UpdateCall(ctx context.Context, callID string, upd CallUpdate) error
	GetCall(ctx context.Context, callID string) (CallDetail, error)
	ListCalls(ctx context.Context, filter CallFilter) ([]Call, error)
}

// FromState captures the outcome of the last driver run.
func FromState(state *dialogue.CallState) (Turn, error) {
	turn := Turn{
		CallID:   state.CallID,
		Language: state.Language,
		UserText: state.LastUserMessage(),
		Intent:   string(state.Intent),
	}
	if state.FinalAnswer != nil {
		turn.AssistantText = state.FinalAnswer.AnswerText
	}
	if len(state.ToolResults) > 0 {
		raw, err := json.Marshal(state.ToolResults)
		if err != nil {
			return Turn{}, err
		}
		turn.ToolCalls = raw
	}
	return turn, nil
}

// Transcript renders turns as alternating "User:" and "Assistant:" lines.
func Transcript(turns []Turn) string {
	var b strings.Builder
	for _, t := range turns {
		if t.UserText != "" {
			b.WriteString("User: ")
			b.WriteString(t.UserText)
			b.WriteByte('\n')
		}
		if t.AssistantText != "" {
			b.WriteString("Assistant: ")
			b.WriteString(t.AssistantText)
			b.WriteByte('\n')
		}
	}
	return strings.TrimSuffix(b.String(), "\n")
}

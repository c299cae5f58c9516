package session

import (
	"context"
	"log/slog"

	"github.com/harunnryd/tablecall/pkg/convlog"
	"github.com/harunnryd/tablecall/pkg/dialogue"
	"github.com/harunnryd/tablecall/pkg/redact"
	"github.com/harunnryd/tablecall/pkg/reply"
)

// Runner is the dialogue driver.
type Runner interface {
	Run(ctx context.Context, state *dialogue.CallState) error
}

// Outcome is what an entry point needs to answer the caller.
type Outcome struct {
	CallID        string
	TurnID        int
	Transcript    string
	Intent        dialogue.Intent
	Response      dialogue.AgentResponse
	ReservationID int
	// Failed is set when a collaborator failed and Response is the apology.
	Failed bool
}

// Service runs turns and records them in the conversation log.
type Service struct {
	driver Runner
	log    convlog.Store
}

func NewService(driver Runner, log convlog.Store) *Service {
	return &Service{driver: driver, log: log}
}

// Turn submits text on state, runs the driver and records the turn under
// turnID (zero allocates the next id). A driver error is logged and turned
// into the apology reply; the error is still returned for status reporting.
//
// A repeated submission of an utterance that was already answered leaves the
// history untouched; the previous reply is returned and nothing is recorded.
func (s *Service) Turn(ctx context.Context, state *dialogue.CallState, text string, turnID int) (Outcome, error) {
	state.Submit(text)
	out := Outcome{CallID: state.CallID, Transcript: text, TurnID: turnID}
	before := len(state.History)

	if err := s.driver.Run(ctx, state); err != nil {
		slog.ErrorContext(ctx, "turn_apology", "call_id", state.CallID, "error", err, "text", redact.Value(text))
		out.Intent = state.Intent
		out.Response = reply.Apology(state.Language)
		out.Failed = true
		return out, err
	}

	out.Intent = state.Intent
	if state.FinalAnswer != nil {
		out.Response = *state.FinalAnswer
	}
	out.ReservationID = reservationID(state.ToolResults)
	if len(state.History) == before {
		return out, nil
	}
	out.TurnID = s.record(ctx, state, turnID)
	return out, nil
}

// SessionTurn runs a turn on a registered session, one at a time per call.
// languageHint seeds the call language when none is known yet.
func (s *Service) SessionTurn(ctx context.Context, sess *Session, text, languageHint string) (Outcome, error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if languageHint != "" && sess.State.Language == "" {
		sess.State.Language = languageHint
	}
	return s.Turn(ctx, sess.State, text, 0)
}

// NextTurnID reserves the id the next recorded turn of callID will use.
func (s *Service) NextTurnID(ctx context.Context, callID string) (int, error) {
	if s.log == nil {
		return 0, nil
	}
	return s.log.NextTurnID(ctx, callID)
}

func (s *Service) record(ctx context.Context, state *dialogue.CallState, turnID int) int {
	if s.log == nil {
		return turnID
	}
	turn, err := convlog.FromState(state)
	if err != nil {
		slog.ErrorContext(ctx, "turn_record_failed", "call_id", state.CallID, "error", err)
		return turnID
	}
	turn.TurnID = turnID
	id, err := s.log.RecordTurn(ctx, turn)
	if err != nil {
		slog.ErrorContext(ctx, "turn_record_failed", "call_id", state.CallID, "error", err)
		return turnID
	}
	return id
}

func reservationID(results []dialogue.ToolResult) int {
	for _, r := range results {
		if p, ok := r.Payload.(dialogue.ReservationPayload); ok && p.Record.ID > 0 {
			return p.Record.ID
		}
	}
	return 0
}

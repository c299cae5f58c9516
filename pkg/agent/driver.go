// Package agent runs the multi-turn dialogue loop over a CallState.
package agent

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/harunnryd/tablecall/pkg/dialogue"
	"github.com/harunnryd/tablecall/pkg/metrics"
	"github.com/harunnryd/tablecall/pkg/redact"
	"github.com/harunnryd/tablecall/pkg/reply"
)

const DefaultMaxTurns = 2

type Classifier interface {
	Classify(ctx context.Context, text, languageHint string) dialogue.IntentExtraction
}

type Dispatcher interface {
	Dispatch(ctx context.Context, state *dialogue.CallState) error
}

type Config struct {
	MaxTurns int
}

type Driver struct {
	classifier Classifier
	dispatcher Dispatcher
	cfg        Config
	obs        metrics.Observer
}

func NewDriver(classifier Classifier, dispatcher Dispatcher, cfg Config, obs metrics.Observer) *Driver {
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = DefaultMaxTurns
	}
	if obs == nil {
		obs = metrics.NoopObserver{}
	}
	return &Driver{classifier: classifier, dispatcher: dispatcher, cfg: cfg, obs: obs}
}

// Run folds the submitted utterance into history and processes up to the
// last MaxTurns pending user utterances, oldest first. An utterance is
// pending until a reply that does not ask for clarification covers it, so a
// live call never replays what was already answered. Run stops after the
// first such reply. Every turn re-derives intent and entities from its own
// utterance. A dispatcher error aborts the run.
func (d *Driver) Run(ctx context.Context, state *dialogue.CallState) error {
	d.ensureHistory(state)

	pending := state.PendingUserIndexes()
	if len(pending) == 0 {
		return nil
	}
	start := max(0, len(pending)-d.cfg.MaxTurns)
	for _, idx := range pending[start:] {
		msg := state.History[idx]
		began := time.Now()
		state.LastUserText = msg.Text

		ext := d.classifier.Classify(ctx, msg.Text, state.Language)
		state.Intent = ext.Intent
		state.Entities = ext.Entities
		state.Language = ext.Language
		state.ToolResults = nil

		if err := d.dispatcher.Dispatch(ctx, state); err != nil {
			slog.ErrorContext(ctx, "turn_failed", "intent", state.Intent, "error", err, "text", redact.Value(msg.Text))
			return err
		}

		resp := reply.Compose(state)
		state.FinalAnswer = &resp
		state.AddHistory(dialogue.RoleAssistant, resp.AnswerText)

		clarify := resp.NeedsClarification()
		slog.InfoContext(ctx, "turn_completed",
			"intent", state.Intent,
			"language", state.Language,
			"tools", len(state.ToolResults),
			"clarify", clarify,
		)
		metrics.Record(d.obs, metrics.EventTurnCompleted, time.Since(began).Seconds(), map[string]string{
			"intent":   string(state.Intent),
			"language": state.Language,
			"clarify":  strconv.FormatBool(clarify),
		})
		if !clarify {
			state.Answered = idx + 1
			break
		}
	}
	return nil
}

// ensureHistory appends the submitted utterance unless it already is the
// latest user entry.
func (d *Driver) ensureHistory(state *dialogue.CallState) {
	if state.LastUserText == "" {
		return
	}
	if last, ok := state.LastUserEntry(); ok && last.Text == state.LastUserText {
		return
	}
	state.AddHistory(dialogue.RoleUser, state.LastUserText)
}

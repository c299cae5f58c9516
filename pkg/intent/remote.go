package intent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/harunnryd/tablecall/pkg/dialogue"
	"github.com/harunnryd/tablecall/pkg/llm"
)

// RemoteModel sends a prompt to a language model and returns its raw reply.
type RemoteModel interface {
	Invoke(ctx context.Context, prompt string) (string, error)
}

// RemoteStatus is the outcome of one remote classification.
type RemoteStatus int

const (
	RemoteOK RemoteStatus = iota
	RemoteTransportError
	RemoteParseError
)

func (s RemoteStatus) String() string {
	switch s {
	case RemoteOK:
		return "ok"
	case RemoteTransportError:
		return "transport"
	case RemoteParseError:
		return "parse"
	}
	return fmt.Sprintf("RemoteStatus(%d)", int(s))
}

// RemoteResult is what the remote path hands back to the classifier.
// Extraction is only meaningful when Status is RemoteOK.
type RemoteResult struct {
	Status     RemoteStatus
	Extraction dialogue.IntentExtraction
	Err        error
	Raw        string
}

// ClassifyRemote builds the prompt, invokes the model and validates the reply.
func ClassifyRemote(ctx context.Context, model RemoteModel, text, languageHint string) RemoteResult {
	raw, err := model.Invoke(ctx, BuildPrompt(text, languageHint))
	if err != nil {
		return RemoteResult{Status: RemoteTransportError, Err: err}
	}
	ext, err := ParseReply(raw)
	if err != nil {
		return RemoteResult{Status: RemoteParseError, Err: err, Raw: raw}
	}
	return RemoteResult{Status: RemoteOK, Extraction: ext, Raw: raw}
}

type replyDTO struct {
	Intent   *string    `json:"intent"`
	Entities *entityDTO `json:"entities"`
	Language *string    `json:"language"`
}

type entityDTO struct {
	Name          *string `json:"name"`
	DateTime      *string `json:"datetime"`
	People        *int    `json:"people"`
	ReservationID *int    `json:"reservation_id"`
}

var dateTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// ParseReply decodes and validates a model reply. Any deviation from the
// schema is an error; nothing is accepted partially.
func ParseReply(raw string) (dialogue.IntentExtraction, error) {
	var dto replyDTO
	if err := json.Unmarshal([]byte(cleanJSON(raw)), &dto); err != nil {
		return dialogue.IntentExtraction{}, fmt.Errorf("decode reply: %w", err)
	}
	if dto.Intent == nil {
		return dialogue.IntentExtraction{}, errors.New("reply has no intent")
	}
	in, ok := dialogue.ParseIntent(strings.TrimSpace(*dto.Intent))
	if !ok {
		return dialogue.IntentExtraction{}, fmt.Errorf("unknown intent %q", *dto.Intent)
	}
	if dto.Language == nil || strings.TrimSpace(*dto.Language) == "" {
		return dialogue.IntentExtraction{}, errors.New("reply has no language")
	}
	ent, err := dto.Entities.toEntities()
	if err != nil {
		return dialogue.IntentExtraction{}, err
	}
	return dialogue.IntentExtraction{
		Intent:   in,
		Entities: ent,
		Language: strings.ToLower(strings.TrimSpace(*dto.Language)),
	}, nil
}

func (d *entityDTO) toEntities() (*dialogue.Entities, error) {
	if d == nil {
		return nil, nil
	}
	e := &dialogue.Entities{}
	if d.Name != nil {
		e.Name = strings.TrimSpace(*d.Name)
	}
	if d.DateTime != nil && strings.TrimSpace(*d.DateTime) != "" {
		t, err := parseDateTime(strings.TrimSpace(*d.DateTime))
		if err != nil {
			return nil, err
		}
		e.DateTime = &t
	}
	if d.People != nil {
		if *d.People < 1 {
			return nil, fmt.Errorf("people must be at least 1, got %d", *d.People)
		}
		e.People = *d.People
	}
	if d.ReservationID != nil {
		if *d.ReservationID < 1 {
			return nil, fmt.Errorf("invalid reservation id %d", *d.ReservationID)
		}
		e.ReservationID = *d.ReservationID
	}
	return e.OrNil(), nil
}

func parseDateTime(s string) (time.Time, error) {
	for _, layout := range dateTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable datetime %q", s)
}

// LLMModel adapts a chat adapter to RemoteModel. Sampling is pinned for
// repeatable classification.
type LLMModel struct {
	adapter   llm.LLMAdapter
	maxTokens int
}

func NewLLMModel(adapter llm.LLMAdapter) *LLMModel {
	return &LLMModel{adapter: adapter, maxTokens: 512}
}

func (m *LLMModel) Invoke(ctx context.Context, prompt string) (string, error) {
	input := llm.UserMessage(prompt)
	input.Temperature = 0
	input.MaxTokens = m.maxTokens
	resp, err := m.adapter.Generate(ctx, input)
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

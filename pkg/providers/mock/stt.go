package mock

import (
	"context"
	"io"
	"sync"

	"github.com/harunnryd/tablecall/pkg/adapters/stt"
)

type STTConfig struct {
	Transcript string
	Language   string
	Err        error
}

// Transcriber returns a canned transcript and remembers what it was sent.
type Transcriber struct {
	cfg STTConfig

	mu    sync.Mutex
	audio [][]byte
}

func NewTranscriber(cfg STTConfig) *Transcriber {
	if cfg.Transcript == "" && cfg.Err == nil {
		cfg.Transcript = "mock transcript"
	}
	return &Transcriber{cfg: cfg}
}

func (t *Transcriber) Name() string { return "mock_stt" }

func (t *Transcriber) Transcribe(ctx context.Context, audio io.Reader, contentType, language string) (stt.Transcript, error) {
	data, err := io.ReadAll(audio)
	if err != nil {
		return stt.Transcript{}, err
	}
	t.mu.Lock()
	t.audio = append(t.audio, data)
	t.mu.Unlock()
	if t.cfg.Err != nil {
		return stt.Transcript{}, t.cfg.Err
	}
	lang := t.cfg.Language
	if lang == "" {
		lang = language
	}
	return stt.Transcript{Text: t.cfg.Transcript, Language: lang, Confidence: 1}, nil
}

// Received returns the audio payloads seen so far.
func (t *Transcriber) Received() [][]byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([][]byte(nil), t.audio...)
}

var _ stt.Transcriber = (*Transcriber)(nil)

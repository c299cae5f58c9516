package deepgram

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"

	"github.com/harunnryd/tablecall/pkg/adapters/stt"
	"github.com/harunnryd/tablecall/pkg/errorsx"
	"github.com/harunnryd/tablecall/pkg/logging"

	api "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/rest"
	msginterfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/rest/interfaces"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	client "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
)

type Config struct {
	APIKey      string `mapstructure:"api_key"`
	Model       string `mapstructure:"model"`
	SmartFormat bool   `mapstructure:"smart_format"`
}

type prerecorded interface {
	FromStream(ctx context.Context, src io.Reader, options *interfaces.PreRecordedTranscriptionOptions) (*msginterfaces.PreRecordedResponse, error)
}

// Transcriber recognises whole recordings through the Deepgram REST API.
type Transcriber struct {
	cfg    Config
	dg     prerecorded
	logger *slog.Logger
}

func New(cfg Config) (*Transcriber, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("deepgram: api_key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "nova-2"
	}
	c := client.NewREST(cfg.APIKey, &interfaces.ClientOptions{})
	return &Transcriber{
		cfg:    cfg,
		dg:     api.New(c),
		logger: logging.NewComponentLogger(slog.Default(), "deepgram_stt"),
	}, nil
}

func (t *Transcriber) Name() string { return "deepgram" }

func (t *Transcriber) Transcribe(ctx context.Context, audio io.Reader, contentType, language string) (stt.Transcript, error) {
	opts := &interfaces.PreRecordedTranscriptionOptions{
		Model:       t.cfg.Model,
		Language:    language,
		SmartFormat: t.cfg.SmartFormat,
		Punctuate:   true,
	}
	res, err := t.dg.FromStream(ctx, audio, opts)
	if err != nil {
		return stt.Transcript{}, errorsx.Wrap(err, errorsx.ReasonSTTTranscribe)
	}
	tr := toTranscript(res)
	if tr.Language == "" {
		tr.Language = language
	}
	t.logger.DebugContext(ctx, "stt_transcribed", "content_type", contentType, "chars", len(tr.Text), "confidence", tr.Confidence)
	return tr, nil
}

func toTranscript(res *msginterfaces.PreRecordedResponse) stt.Transcript {
	if res == nil || res.Results == nil || len(res.Results.Channels) == 0 {
		return stt.Transcript{}
	}
	ch := res.Results.Channels[0]
	if len(ch.Alternatives) == 0 {
		return stt.Transcript{}
	}
	alt := ch.Alternatives[0]
	return stt.Transcript{
		Text:       strings.TrimSpace(alt.Transcript),
		Confidence: alt.Confidence,
	}
}

var _ stt.Transcriber = (*Transcriber)(nil)

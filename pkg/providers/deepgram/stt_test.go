package deepgram

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/harunnryd/tablecall/pkg/errorsx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	msginterfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/rest/interfaces"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
)

type fakeREST struct {
	res  *msginterfaces.PreRecordedResponse
	err  error
	opts *interfaces.PreRecordedTranscriptionOptions
	body string
}

func (f *fakeREST) FromStream(ctx context.Context, src io.Reader, options *interfaces.PreRecordedTranscriptionOptions) (*msginterfaces.PreRecordedResponse, error) {
	b, _ := io.ReadAll(src)
	f.body = string(b)
	f.opts = options
	return f.res, f.err
}

func TestNewRequiresKey(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestTranscribeReadsFirstAlternative(t *testing.T) {
	res := &msginterfaces.PreRecordedResponse{
		Results: &msginterfaces.Result{
			Channels: []msginterfaces.Channel{{
				Alternatives: []msginterfaces.Alternative{{Transcript: " book a table ", Confidence: 0.93}},
			}},
		},
	}
	fake := &fakeREST{res: res}
	tr := &Transcriber{cfg: Config{Model: "nova-2"}, dg: fake, logger: discardLogger()}

	got, err := tr.Transcribe(context.Background(), strings.NewReader("RIFF"), "audio/wav", "sk")
	require.NoError(t, err)
	assert.Equal(t, "book a table", got.Text)
	assert.Equal(t, "sk", got.Language)
	assert.InDelta(t, 0.93, got.Confidence, 1e-9)
	assert.Equal(t, "RIFF", fake.body)
	assert.Equal(t, "sk", fake.opts.Language)
	assert.Equal(t, "nova-2", fake.opts.Model)
}

func TestTranscribeWrapsErrors(t *testing.T) {
	tr := &Transcriber{dg: &fakeREST{err: errors.New("timeout")}, logger: discardLogger()}
	_, err := tr.Transcribe(context.Background(), strings.NewReader(""), "audio/wav", "")
	require.Error(t, err)
	assert.True(t, errorsx.HasReason(err, errorsx.ReasonSTTTranscribe))
}

func TestToTranscriptEmpty(t *testing.T) {
	assert.Empty(t, toTranscript(nil).Text)
	assert.Empty(t, toTranscript(&msginterfaces.PreRecordedResponse{}).Text)
}

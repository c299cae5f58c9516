package mock

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/harunnryd/tablecall/pkg/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLLMAdapterScript(t *testing.T) {
	a := NewLLMAdapter(LLMConfig{Responses: []string{"first", "second"}})
	var got []string
	for i := 0; i < 3; i++ {
		resp, err := a.Generate(context.Background(), llm.UserMessage("hi"))
		require.NoError(t, err)
		got = append(got, resp.Text)
	}
	assert.Equal(t, "first", got[0])
	assert.Equal(t, "second", got[1])
	assert.Contains(t, got[2], `"intent":"generic"`)
	assert.Len(t, a.Calls(), 3)
}

func TestLLMAdapterErrors(t *testing.T) {
	boom := errors.New("boom")
	a := NewLLMAdapter(LLMConfig{Err: boom})
	_, err := a.Generate(context.Background(), llm.UserMessage("hi"))
	assert.ErrorIs(t, err, boom)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewLLMAdapter(LLMConfig{}).Generate(ctx, llm.UserMessage("hi"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTranscriberDefaults(t *testing.T) {
	tr := NewTranscriber(STTConfig{})
	got, err := tr.Transcribe(context.Background(), strings.NewReader("pcm"), "audio/wav", "en")
	require.NoError(t, err)
	assert.Equal(t, "mock transcript", got.Text)
}

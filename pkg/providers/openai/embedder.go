package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/harunnryd/tablecall/pkg/errorsx"
	"github.com/harunnryd/tablecall/pkg/resilience"
)

const DefaultEmbeddingModel = "text-embedding-3-small"

// Embedder calls the embeddings endpoint. It shares transport settings with
// the chat adapter.
type Embedder struct {
	adapter *Adapter
	model   string
}

func NewEmbedder(adapter *Adapter, model string) *Embedder {
	if model == "" {
		model = DefaultEmbeddingModel
	}
	return &Embedder{adapter: adapter, model: model}
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	body, err := json.Marshal(map[string]any{"model": e.model, "input": texts})
	if err != nil {
		return nil, err
	}
	raw, err := resilience.Retry(ctx, e.adapter.Retry, "openai", func(ctx context.Context) ([]byte, error) {
		return e.adapter.post(ctx, "/embeddings", body)
	})
	if err != nil {
		return nil, errorsx.Wrap(err, errorsx.ReasonMenuEmbed)
	}
	var payload embeddingResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, errorsx.Wrap(err, errorsx.ReasonMenuEmbed)
	}
	if len(payload.Data) != len(texts) {
		return nil, errorsx.Wrap(fmt.Errorf("got %d embeddings for %d inputs", len(payload.Data), len(texts)), errorsx.ReasonMenuEmbed)
	}
	sort.Slice(payload.Data, func(i, j int) bool { return payload.Data[i].Index < payload.Data[j].Index })
	out := make([][]float32, len(payload.Data))
	for i, d := range payload.Data {
		out[i] = d.Embedding
	}
	return out, nil
}

// Package intent decides what an utterance asks for. A remote language model
// is consulted when configured; the keyword fallback always backs it.
package intent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/harunnryd/tablecall/pkg/dialogue"
	"github.com/harunnryd/tablecall/pkg/errorsx"
	"github.com/harunnryd/tablecall/pkg/metrics"
	"github.com/harunnryd/tablecall/pkg/redact"
)

type Classifier struct {
	remote RemoteModel
	obs    metrics.Observer
}

// NewClassifier returns a classifier. A nil remote means keyword-only.
func NewClassifier(remote RemoteModel, obs metrics.Observer) *Classifier {
	if obs == nil {
		obs = metrics.NoopObserver{}
	}
	return &Classifier{remote: remote, obs: obs}
}

// Classify never fails: remote transport and parse errors degrade to the
// keyword fallback.
func (c *Classifier) Classify(ctx context.Context, text, languageHint string) dialogue.IntentExtraction {
	if c.remote == nil {
		return Fallback(text, languageHint)
	}
	res := ClassifyRemote(ctx, c.remote, text, languageHint)
	switch res.Status {
	case RemoteOK:
		return res.Extraction
	case RemoteTransportError:
		slog.WarnContext(ctx, "classifier_fallback",
			"reason", errorsx.ReasonClassifierTransport, "error", res.Err, "text", redact.Value(text))
	case RemoteParseError:
		slog.WarnContext(ctx, "classifier_fallback",
			"reason", errorsx.ReasonClassifierParse, "error", res.Err, "payload", redact.Value(res.Raw))
	default:
		panic(fmt.Sprintf("intent: unhandled remote status %v", res.Status))
	}
	metrics.Record(c.obs, metrics.EventClassifierFallback, 1, map[string]string{"reason": res.Status.String()})
	return Fallback(text, languageHint)
}

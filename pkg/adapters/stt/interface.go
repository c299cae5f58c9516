package stt

import (
	"context"
	"io"
)

// Transcript is the recognised text of one recorded utterance.
type Transcript struct {
	Text       string
	Language   string
	Confidence float64
}

// Transcriber defines the contract for a prerecorded speech-to-text vendor.
type Transcriber interface {
	// Name returns adapter name for logging/metrics.
	Name() string
	// Transcribe recognises a whole audio file. language may be empty for
	// vendor auto-detection.
	Transcribe(ctx context.Context, audio io.Reader, contentType, language string) (Transcript, error)
}

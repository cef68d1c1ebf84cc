package stt

import "context"

// Result is one recognition pass over a flushed audio window.
type Result struct {
	Text string
	// Confidence averages the service's per-segment confidences.
	Confidence float64
	Language   string
}

type Provider interface {
	Transcribe(ctx context.Context, audio []byte, sampleRate int32, language string) (*Result, error)
	Close() error
}

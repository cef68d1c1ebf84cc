package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiters throttles calls to the shared external services. It is the one
// deliberately shared, synchronized resource across sessions; everything else
// is session-owned.
type Limiters struct {
	stt *rate.Limiter
	llm *rate.Limiter
}

func New(sttPerSec, llmPerSec float64) *Limiters {
	if sttPerSec <= 0 {
		sttPerSec = 10
	}
	if llmPerSec <= 0 {
		llmPerSec = 5
	}
	return &Limiters{
		stt: rate.NewLimiter(rate.Limit(sttPerSec), int(sttPerSec)+1),
		llm: rate.NewLimiter(rate.Limit(llmPerSec), int(llmPerSec)+1),
	}
}

func (l *Limiters) WaitSTT(ctx context.Context) error { return l.stt.Wait(ctx) }
func (l *Limiters) WaitLLM(ctx context.Context) error { return l.llm.Wait(ctx) }

package llm

import "context"

// Request is the normalized completion request every backend accepts. The
// chain hands the same request to each provider so fallback needs no
// per-provider translation at the call site.
type Request struct {
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
}

type Completion struct {
	Text     string
	Provider string
}

type Provider interface {
	Name() string
	Complete(ctx context.Context, req Request) (*Completion, error)
	// Stream returns incremental text chunks. errs carries at most one error
	// and both channels close when the stream is done.
	Stream(ctx context.Context, req Request) (chunks <-chan string, errs <-chan error)
	Close() error
}

package llm

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
)

// Chain tries each provider in order and returns the first success. Callers
// see a single provider; per-link failures surface only when every link has
// failed.
type Chain struct {
	providers []Provider
	log       *logrus.Logger
}

func NewChain(log *logrus.Logger, providers ...Provider) *Chain {
	if log == nil {
		log = logrus.New()
	}
	return &Chain{providers: providers, log: log}
}

func (c *Chain) Name() string { return "chain" }

func (c *Chain) Complete(ctx context.Context, req Request) (*Completion, error) {
	if len(c.providers) == 0 {
		return nil, errors.New("llm: no providers configured")
	}

	var lastErr error
	for _, p := range c.providers {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		out, err := p.Complete(ctx, req)
		if err == nil {
			return out, nil
		}
		lastErr = err
		c.log.WithError(err).WithField("provider", p.Name()).Warn("llm provider failed, trying next")
	}
	return nil, lastErr
}

// Stream falls back to the next provider only if the current one fails
// before emitting any chunk; once tokens have been relayed the stream is
// committed to that provider.
func (c *Chain) Stream(ctx context.Context, req Request) (<-chan string, <-chan error) {
	out := make(chan string, 32)
	errs := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errs)

		if len(c.providers) == 0 {
			errs <- errors.New("llm: no providers configured")
			return
		}

		var lastErr error
		for _, p := range c.providers {
			if ctx.Err() != nil {
				errs <- ctx.Err()
				return
			}

			chunks, perrs := p.Stream(ctx, req)
			emitted := false
			for chunk := range chunks {
				emitted = true
				select {
				case out <- chunk:
				case <-ctx.Done():
					errs <- ctx.Err()
					return
				}
			}

			var streamErr error
			select {
			case streamErr = <-perrs:
			default:
			}

			if streamErr == nil {
				return
			}
			if emitted {
				// partial output already delivered; not retryable
				errs <- streamErr
				return
			}
			lastErr = streamErr
			c.log.WithError(streamErr).WithField("provider", p.Name()).Warn("llm stream failed before first token, trying next")
		}
		errs <- lastErr
	}()

	return out, errs
}

func (c *Chain) Close() error {
	var err error
	for _, p := range c.providers {
		if cerr := p.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

package llm

import (
	"context"
	"errors"

	vertexgenai "cloud.google.com/go/vertexai/genai"
	"google.golang.org/api/iterator"
)

type VertexGemini struct {
	client *vertexgenai.Client
	model  *vertexgenai.GenerativeModel
}

func NewVertexGemini(ctx context.Context, projectID, location, modelName string) (*VertexGemini, error) {
	c, err := vertexgenai.NewClient(ctx, projectID, location)
	if err != nil {
		return nil, err
	}

	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}

	m := c.GenerativeModel(modelName)
	return &VertexGemini{client: c, model: m}, nil
}

func (v *VertexGemini) Name() string { return "vertex-gemini" }

func (v *VertexGemini) Close() error { return v.client.Close() }

// modelFor copies the shared model and applies per-request config on the
// copy. Sessions generate concurrently; the shared model is never written.
func (v *VertexGemini) modelFor(req Request) *vertexgenai.GenerativeModel {
	m := *v.model
	if req.System != "" {
		m.SystemInstruction = &vertexgenai.Content{
			Parts: []vertexgenai.Part{vertexgenai.Text(req.System)},
		}
	}
	if req.Temperature > 0 {
		t := float32(req.Temperature)
		m.GenerationConfig.Temperature = &t
	}
	if req.MaxTokens > 0 {
		n := int32(req.MaxTokens)
		m.GenerationConfig.MaxOutputTokens = &n
	}
	return &m
}

func (v *VertexGemini) Complete(ctx context.Context, req Request) (*Completion, error) {
	resp, err := v.modelFor(req).GenerateContent(ctx, vertexgenai.Text(req.Prompt))
	if err != nil {
		return nil, err
	}

	var text string
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(vertexgenai.Text); ok {
				text += string(t)
			}
		}
	}
	if text == "" {
		return nil, errors.New("vertex: empty completion")
	}
	return &Completion{Text: text, Provider: v.Name()}, nil
}

func (v *VertexGemini) Stream(ctx context.Context, req Request) (<-chan string, <-chan error) {
	out := make(chan string, 32)
	errs := make(chan error, 1)

	m := v.modelFor(req)

	go func() {
		defer close(out)
		defer close(errs)

		it := m.GenerateContentStream(ctx, vertexgenai.Text(req.Prompt))
		for {
			resp, err := it.Next()
			if err == iterator.Done {
				return
			}
			if err != nil {
				errs <- err
				return
			}

			for _, cand := range resp.Candidates {
				if cand.Content == nil {
					continue
				}
				for _, part := range cand.Content.Parts {
					if t, ok := part.(vertexgenai.Text); ok && string(t) != "" {
						select {
						case out <- string(t):
						case <-ctx.Done():
							errs <- ctx.Err()
							return
						}
					}
				}
			}
		}
	}()

	return out, errs
}

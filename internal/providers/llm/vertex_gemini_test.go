package llm

import (
	"fmt"
	"testing"

	vertexgenai "cloud.google.com/go/vertexai/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVertexModelForLeavesSharedModelUntouched(t *testing.T) {
	v := &VertexGemini{model: &vertexgenai.GenerativeModel{}}

	m := v.modelFor(Request{System: "be brief", Temperature: 0.7, MaxTokens: 100})

	require.NotNil(t, m.SystemInstruction)
	require.NotNil(t, m.GenerationConfig.Temperature)
	assert.InDelta(t, 0.7, float64(*m.GenerationConfig.Temperature), 0.001)
	require.NotNil(t, m.GenerationConfig.MaxOutputTokens)
	assert.Equal(t, int32(100), *m.GenerationConfig.MaxOutputTokens)

	assert.Nil(t, v.model.SystemInstruction)
	assert.Nil(t, v.model.GenerationConfig.Temperature)
	assert.Nil(t, v.model.GenerationConfig.MaxOutputTokens)
}

func TestVertexModelForIsolatesConcurrentRequests(t *testing.T) {
	v := &VertexGemini{model: &vertexgenai.GenerativeModel{}}

	const n = 8
	out := make(chan string, n)
	for i := 0; i < n; i++ {
		go func(i int) {
			m := v.modelFor(Request{System: fmt.Sprintf("session %d", i), Temperature: 0.5, MaxTokens: 64})
			txt, _ := m.SystemInstruction.Parts[0].(vertexgenai.Text)
			out <- string(txt)
		}(i)
	}

	seen := make(map[string]bool, n)
	for i := 0; i < n; i++ {
		seen[<-out] = true
	}
	assert.Len(t, seen, n, "each request keeps its own system instruction")
	assert.Nil(t, v.model.SystemInstruction)
}

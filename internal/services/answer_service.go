package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/okhamid/interviewly/internal/models"
	"github.com/okhamid/interviewly/internal/providers/llm"
	"github.com/okhamid/interviewly/internal/ratelimit"
	"github.com/okhamid/interviewly/internal/utils"
)

// AnswerService produces a suggested answer for one detected question. The
// provider chain hides the cloud/local fallback; a GENERATION_FAILED error
// means every provider failed.
type AnswerService interface {
	// Generate runs the LLM chain. When onToken is non-nil tokens are
	// relayed as they stream; the returned record always carries the full
	// text. The record is not persisted here.
	Generate(ctx context.Context, q *models.DetectedQuestion, pctx *PromptContext, attempt int, onToken func(token string)) (*models.QARecord, error)
}

type answerService struct {
	chain       *llm.Chain
	limits      *ratelimit.Limiters
	timeout     time.Duration
	temperature float64
	maxTokens   int
}

func NewAnswerService(chain *llm.Chain, limits *ratelimit.Limiters, timeout time.Duration) AnswerService {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &answerService{
		chain:       chain,
		limits:      limits,
		timeout:     timeout,
		temperature: 0.7,
		maxTokens:   300,
	}
}

func (s *answerService) Generate(ctx context.Context, q *models.DetectedQuestion, pctx *PromptContext, attempt int, onToken func(string)) (*models.QARecord, error) {
	const op = "AnswerService.Generate"

	if s.limits != nil {
		if err := s.limits.WaitLLM(ctx); err != nil {
			return nil, utils.E(utils.CodeGenerationFailed, op, "llm rate limiter interrupted", err)
		}
	}

	req := llm.Request{
		System:      systemPrompt(q.Type),
		Prompt:      userPrompt(q.Text, pctx),
		Temperature: s.temperature,
		MaxTokens:   s.maxTokens,
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var (
		text     string
		provider string
	)
	if onToken != nil {
		chunks, errs := s.chain.Stream(callCtx, req)
		var b strings.Builder
		for chunk := range chunks {
			b.WriteString(chunk)
			onToken(chunk)
		}
		var streamErr error
		select {
		case streamErr = <-errs:
		default:
		}
		if streamErr != nil {
			return nil, utils.E(utils.CodeGenerationFailed, op, "all llm providers failed", streamErr)
		}
		text = b.String()
		provider = s.chain.Name()
	} else {
		out, err := s.chain.Complete(callCtx, req)
		if err != nil {
			return nil, utils.E(utils.CodeGenerationFailed, op, "all llm providers failed", err)
		}
		text = out.Text
		provider = out.Provider
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, utils.E(utils.CodeGenerationFailed, op, "llm returned empty answer", nil)
	}

	if attempt < 1 {
		attempt = 1
	}
	return &models.QARecord{
		SessionID:    q.SessionID,
		QuestionID:   q.QuestionID,
		Question:     q.Text,
		QuestionType: q.Type,
		Answer:       text,
		Confidence:   answerConfidence(text, pctx),
		Context:      pctx.Used(),
		Provider:     provider,
		Attempt:      attempt,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

func systemPrompt(questionType string) string {
	const base = "You are an interview candidate responding to questions. "

	switch questionType {
	case models.QuestionBehavioral:
		return base + "Use the STAR format (Situation, Task, Action, Result) to structure your answer. Be specific and concise."
	case models.QuestionTechnical:
		return base + "Demonstrate technical depth with specific examples from your experience. Mention technologies, tools, and measurable outcomes."
	default:
		return base + "Answer clearly and confidently, backing up claims with specific examples from your experience."
	}
}

func userPrompt(question string, pctx *PromptContext) string {
	var b strings.Builder

	fmt.Fprintf(&b, "QUESTION: %s\n\n", question)

	b.WriteString("YOUR BACKGROUND:\n")
	if pctx.ProfileSection != "" {
		b.WriteString(pctx.ProfileSection)
	} else {
		b.WriteString("No resume context available")
	}

	b.WriteString("\n\nJOB REQUIREMENTS:\n")
	if pctx.JDSection != "" {
		b.WriteString(pctx.JDSection)
	} else {
		b.WriteString("No job description context available")
	}

	if len(pctx.PriorQA) > 0 {
		b.WriteString("\n\nPREVIOUS INTERVIEW CONTEXT:\n")
		for _, qa := range pctx.PriorQA {
			fmt.Fprintf(&b, "Q: %s\nA: %s\n\n", qa.Question, qa.Answer)
		}
	}

	b.WriteString(`
Provide a concise, personalized answer (2-3 sentences max) that:
1. Directly addresses the question
2. References YOUR specific experience from the background
3. Aligns with the job requirements
4. Sounds natural and confident

Answer:`)

	return b.String()
}

// answerConfidence is a keyword-overlap heuristic between the answer and the
// assembled context, clamped to [0.5, 0.95]. Advisory only; it never blocks
// delivery.
func answerConfidence(answer string, pctx *PromptContext) float64 {
	answerWords := fieldSet(answer)
	contextWords := fieldSet(pctx.ProfileSection + " " + pctx.JDSection)

	if len(answerWords) == 0 {
		return 0.5
	}

	overlap := 0
	for w := range answerWords {
		if _, ok := contextWords[w]; ok {
			overlap++
		}
	}

	conf := float64(overlap) / float64(len(answerWords))
	if conf < 0.5 {
		conf = 0.5
	}
	if conf > 0.95 {
		conf = 0.95
	}
	return conf
}

func fieldSet(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(s)) {
		out[strings.Trim(w, ".,;:!?")] = struct{}{}
	}
	return out
}

package detect

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/okhamid/interviewly/internal/models"
)

var questionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(what|when|where|who|why|how|which)\b`),
	regexp.MustCompile(`(?i)\b(tell me|describe|explain|discuss|talk about|walk me through)\b`),
	regexp.MustCompile(`(?i)\b(can you|could you|would you|will you)\b`),
	regexp.MustCompile(`(?i)\b(do you|did you|have you|are you|were you)\b`),
	regexp.MustCompile(`\?$`),
}

var behavioralKeywords = []string{
	"tell me about a time",
	"describe a situation",
	"give me an example",
	"challenge you faced",
	"conflict",
	"team",
	"leadership",
}

// experienceKeywords are weaker behavioral cues. "experience with Kafka" is a
// technical question; these only decide when no technical keyword matched.
var experienceKeywords = []string{
	"experience with",
	"worked with",
	"have you used",
}

var technicalKeywords = []string{
	"how does",
	"explain",
	"implement",
	"algorithm",
	"system design",
	"architecture",
	"code",
	"database",
	"api",
	"performance",
	"distributed",
}

// Detector classifies finalized transcript text as an interview question.
// It is stateful per session: the debounce memory of the last detection
// lives here, so each orchestrator owns one.
type Detector struct {
	floor    float64
	debounce time.Duration

	lastNormalized string
	lastAt         time.Time
	now            func() time.Time
}

func New(confidenceFloor float64, debounce time.Duration) *Detector {
	if confidenceFloor <= 0 {
		confidenceFloor = 0.5
	}
	if debounce <= 0 {
		debounce = 2 * time.Second
	}
	return &Detector{floor: confidenceFloor, debounce: debounce, now: time.Now}
}

// Classify returns the dominant interrogative clause of text as a
// DetectedQuestion, or nil for non-question text, low-confidence matches,
// and debounced repeats. False negatives are preferred over re-triggering
// generation on ambiguous input.
func (d *Detector) Classify(sessionID, segmentID, text string) *models.DetectedQuestion {
	text = strings.TrimSpace(text)
	if len(text) < 5 {
		return nil
	}

	// Interviewers rarely nest questions; when several clauses qualify the
	// most recent one is the actionable one.
	clause, confidence := dominantClause(text)
	if clause == "" || confidence < d.floor {
		return nil
	}

	normalized := normalize(clause)
	ts := d.now()
	if d.lastNormalized != "" && ts.Sub(d.lastAt) < d.debounce && nearIdentical(normalized, d.lastNormalized) {
		return nil
	}
	d.lastNormalized = normalized
	d.lastAt = ts

	return &models.DetectedQuestion{
		QuestionID: uuid.NewString(),
		SessionID:  sessionID,
		SegmentID:  segmentID,
		Text:       clause,
		Type:       questionType(clause),
		Confidence: confidence,
		DetectedAt: ts,
	}
}

// dominantClause scans sentence-like clauses back to front and returns the
// last one that reads as a question, with its confidence.
func dominantClause(text string) (string, float64) {
	clauses := splitClauses(text)
	for i := len(clauses) - 1; i >= 0; i-- {
		c := clauses[i]
		if conf, ok := score(c); ok {
			return c, conf
		}
	}
	return "", 0
}

func splitClauses(text string) []string {
	var out []string
	start := 0
	for i, r := range text {
		if r == '.' || r == '?' || r == '!' {
			c := strings.TrimSpace(text[start : i+1])
			if c != "" {
				out = append(out, c)
			}
			start = i + 1
		}
	}
	if tail := strings.TrimSpace(text[start:]); tail != "" {
		out = append(out, tail)
	}
	return out
}

// score counts surface cues; 2+ matches saturate confidence at 1.
func score(clause string) (float64, bool) {
	if len(clause) < 5 {
		return 0, false
	}
	matches := 0
	for _, p := range questionPatterns {
		if p.MatchString(clause) {
			matches++
		}
	}
	if matches == 0 && !strings.HasSuffix(clause, "?") {
		return 0, false
	}
	conf := float64(matches) / 2.0
	if conf > 1 {
		conf = 1
	}
	return conf, true
}

func questionType(text string) string {
	lower := strings.ToLower(text)
	for _, kw := range behavioralKeywords {
		if strings.Contains(lower, kw) {
			return models.QuestionBehavioral
		}
	}
	for _, kw := range technicalKeywords {
		if strings.Contains(lower, kw) {
			return models.QuestionTechnical
		}
	}
	for _, kw := range experienceKeywords {
		if strings.Contains(lower, kw) {
			return models.QuestionBehavioral
		}
	}
	return models.QuestionGeneral
}

func normalize(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == ' ' {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// nearIdentical treats a question as a repeat when one normalized form
// contains the other, which covers transcript corrections that extend or
// truncate the same utterance.
func nearIdentical(a, b string) bool {
	if a == b {
		return true
	}
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

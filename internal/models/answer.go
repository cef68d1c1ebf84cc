package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ContextUsed records which profile/job-description sections fed the prompt.
type ContextUsed struct {
	ProfileSection string `bson:"profile_section,omitempty" json:"profile_section,omitempty"`
	JDSection      string `bson:"jd_section,omitempty" json:"jd_section,omitempty"`
	PriorQAPairs   int    `bson:"prior_qa_pairs,omitempty" json:"prior_qa_pairs,omitempty"`
}

// QARecord is the persisted question/answer pair. Regeneration appends a new
// record with a bumped attempt number; history is append-only.
type QARecord struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SessionID string             `bson:"session_id" json:"session_id"`

	QuestionID   string `bson:"question_id" json:"question_id"`
	Question     string `bson:"question" json:"question"`
	QuestionType string `bson:"question_type" json:"question_type"`

	Answer     string      `bson:"answer" json:"answer"`
	Confidence float64     `bson:"confidence" json:"confidence"`
	Context    ContextUsed `bson:"context_used" json:"context_used"`
	Provider   string      `bson:"provider,omitempty" json:"provider,omitempty"`

	// Attempt is 1 for the first generation, incremented on regenerate.
	Attempt int `bson:"attempt" json:"attempt"`
	// WasUsed is set by the client when the candidate actually used the
	// suggestion; never set by the pipeline itself.
	WasUsed bool `bson:"was_used" json:"was_used"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

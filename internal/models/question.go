package models

import "time"

const (
	QuestionBehavioral = "behavioral"
	QuestionTechnical  = "technical"
	QuestionGeneral    = "general"
)

// DetectedQuestion is a transcript segment classified as an interview
// question. It lives in the owning session's memory for the duration of the
// connection so regeneration can rerun it; the persisted record is the Q&A
// pair written on successful generation.
type DetectedQuestion struct {
	QuestionID string `json:"question_id"`
	SessionID  string `json:"session_id"`
	SegmentID  string `json:"segment_id"`

	Text       string    `json:"text"`
	Type       string    `json:"type"` // behavioral|technical|general
	Confidence float64   `json:"confidence"`
	DetectedAt time.Time `json:"detected_at"`
}

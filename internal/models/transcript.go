package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TranscriptSegment is one emitted unit of transcribed speech. Segments are
// immutable once created and appended in the order their source windows were
// flushed.
type TranscriptSegment struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SessionID string             `bson:"session_id" json:"session_id"`
	SegmentID string             `bson:"segment_id" json:"segment_id"`

	Text    string `bson:"text" json:"text"`
	Speaker string `bson:"speaker" json:"speaker"` // "interviewer" until diarization exists
	IsFinal bool   `bson:"is_final" json:"is_final"`

	Confidence float64 `bson:"confidence" json:"confidence"`
	// LowConfidence flags segments below the configured floor. They are
	// still emitted and persisted; downstream detection treats them
	// conservatively.
	LowConfidence bool `bson:"low_confidence,omitempty" json:"low_confidence,omitempty"`

	Language  string    `bson:"language,omitempty" json:"language,omitempty"`
	Timestamp time.Time `bson:"timestamp" json:"timestamp"`
}

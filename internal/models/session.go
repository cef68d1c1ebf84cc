package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	SessionPending = "pending"
	SessionActive  = "active"
	SessionPaused  = "paused"
	SessionEnded   = "ended"
)

// Session is one live interview run. It is bound to at most one open
// websocket connection at a time and owned by that connection's orchestrator
// until it ends.
type Session struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SessionID string             `bson:"session_id" json:"session_id"` // uuid v4

	ProfileID        string `bson:"profile_id" json:"profile_id"`
	JobDescriptionID string `bson:"job_description_id" json:"job_description_id"`
	// ParentSessionID links a follow-up interview to the run whose Q&A
	// history feeds the prompt context.
	ParentSessionID string `bson:"parent_session_id,omitempty" json:"parent_session_id,omitempty"`

	Status   string          `bson:"status" json:"status"` // pending|active|paused|ended
	Language string          `bson:"language" json:"language"`
	Metadata SessionMetadata `bson:"metadata,omitempty" json:"metadata,omitempty"`

	CreatedAt time.Time  `bson:"created_at" json:"created_at"`
	EndedAt   *time.Time `bson:"ended_at,omitempty" json:"ended_at,omitempty"`

	DurationSeconds int64 `bson:"duration_seconds" json:"duration_seconds"`
}

type SessionMetadata struct {
	CompanyName string `bson:"company_name,omitempty" json:"company_name,omitempty"`
	Position    string `bson:"position,omitempty" json:"position,omitempty"`
}

package realtime

import (
	"time"

	"github.com/okhamid/interviewly/internal/models"
	"github.com/okhamid/interviewly/internal/utils"
)

const (
	EventTranscript       = "transcript"
	EventQuestionDetected = "question_detected"
	EventAnswerToken      = "answer_token"
	EventAnswerGenerated  = "answer_generated"
	EventError            = "error"
	EventStatus           = "status"
)

// Event is the outbound envelope written to the websocket as JSON.
type Event struct {
	Type      string `json:"type"`
	Data      any    `json:"data"`
	Timestamp int64  `json:"timestamp"` // unix millis
}

type TranscriptData struct {
	Text       string  `json:"text"`
	Speaker    string  `json:"speaker"`
	IsFinal    bool    `json:"isFinal"`
	Confidence float64 `json:"confidence"`
}

type QuestionData struct {
	QuestionID   string  `json:"questionId"`
	Question     string  `json:"question"`
	QuestionType string  `json:"questionType"`
	Confidence   float64 `json:"confidence"`
}

type AnswerTokenData struct {
	QuestionID string `json:"questionId"`
	Token      string `json:"token"`
	Seq        int64  `json:"seq"`
}

type AnswerData struct {
	QuestionID  string             `json:"questionId"`
	Answer      string             `json:"answer"`
	Confidence  float64            `json:"confidence"`
	ContextUsed models.ContextUsed `json:"contextUsed"`
}

type ErrorData struct {
	Code    utils.Code `json:"code"`
	Message string     `json:"message"`
}

type StatusData struct {
	Status string `json:"status"`
}

func newEvent(typ string, data any) Event {
	return Event{Type: typ, Data: data, Timestamp: time.Now().UnixMilli()}
}

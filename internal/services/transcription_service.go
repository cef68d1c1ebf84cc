package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/okhamid/interviewly/internal/audio"
	"github.com/okhamid/interviewly/internal/models"
	"github.com/okhamid/interviewly/internal/providers/stt"
	"github.com/okhamid/interviewly/internal/ratelimit"
	"github.com/okhamid/interviewly/internal/utils"
)

// SpeakerInterviewer labels all inbound audio until diarization exists; the
// candidate's own mic is not streamed through this pipeline.
const SpeakerInterviewer = "interviewer"

// TranscriptionService converts one flushed audio window into a transcript
// segment via the external speech-to-text service.
type TranscriptionService interface {
	Transcribe(ctx context.Context, sessionID string, w *audio.Window, language string) (*models.TranscriptSegment, error)
}

type transcriptionService struct {
	provider stt.Provider
	limits   *ratelimit.Limiters
	timeout  time.Duration
	// confidence floor below which a segment is flagged, never dropped
	floor float64
}

func NewTranscriptionService(provider stt.Provider, limits *ratelimit.Limiters, timeout time.Duration, confidenceFloor float64) TranscriptionService {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &transcriptionService{provider: provider, limits: limits, timeout: timeout, floor: confidenceFloor}
}

func (s *transcriptionService) Transcribe(ctx context.Context, sessionID string, w *audio.Window, language string) (*models.TranscriptSegment, error) {
	const op = "TranscriptionService.Transcribe"

	if w == nil || len(w.Samples) == 0 {
		return nil, utils.E(utils.CodeInvalidArgument, op, "empty audio window", nil)
	}

	if s.limits != nil {
		if err := s.limits.WaitSTT(ctx); err != nil {
			return nil, utils.E(utils.CodeTranscriptionUnavailable, op, "stt rate limiter interrupted", err)
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	res, err := s.provider.Transcribe(callCtx, w.Samples, w.SampleRate, language)
	if err != nil {
		return nil, utils.E(utils.CodeTranscriptionUnavailable, op, "speech-to-text call failed", err)
	}

	seg := &models.TranscriptSegment{
		SessionID:     sessionID,
		SegmentID:     uuid.NewString(),
		Text:          res.Text,
		Speaker:       SpeakerInterviewer,
		IsFinal:       true,
		Confidence:    res.Confidence,
		LowConfidence: res.Confidence < s.floor,
		Language:      res.Language,
		Timestamp:     time.Now().UTC(),
	}
	return seg, nil
}

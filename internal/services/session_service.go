package services

import (
	"context"
	"errors"
	"time"

	"github.com/okhamid/interviewly/internal/models"
	mongorepo "github.com/okhamid/interviewly/internal/repositories/mongo"
	"github.com/okhamid/interviewly/internal/utils"

	"github.com/google/uuid"
)

type SessionService interface {
	Create(ctx context.Context, profileID, jdID, parentSessionID, language string, md models.SessionMetadata) (*models.Session, error)
	Get(ctx context.Context, sessionID string) (*models.Session, error)
	End(ctx context.Context, sessionID string) (*models.Session, error)
	SetStatus(ctx context.Context, sessionID, status string) error
}

type sessionService struct {
	sessions mongorepo.SessionRepository
}

func NewSessionService(sessions mongorepo.SessionRepository) SessionService {
	return &sessionService{sessions: sessions}
}

// Create persists a session in pending state. It transitions to active when
// the first audio frame arrives over the websocket.
func (s *sessionService) Create(ctx context.Context, profileID, jdID, parentSessionID, language string, md models.SessionMetadata) (*models.Session, error) {
	const op = "SessionService.Create"

	if profileID == "" || jdID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "profile_id and job_description_id are required", nil)
	}
	if language == "" {
		language = "en-US"
	}

	if parentSessionID != "" {
		if _, err := s.Get(ctx, parentSessionID); err != nil {
			return nil, utils.E(utils.CodeInvalidArgument, op, "parent session not found", err)
		}
	}

	now := time.Now().UTC()
	session := &models.Session{
		SessionID:        uuid.NewString(),
		ProfileID:        profileID,
		JobDescriptionID: jdID,
		ParentSessionID:  parentSessionID,
		Status:           models.SessionPending,
		Language:         language,
		Metadata:         md,
		CreatedAt:        now,
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to create session", err)
	}
	return session, nil
}

func (s *sessionService) Get(ctx context.Context, sessionID string) (*models.Session, error) {
	const op = "SessionService.Get"

	if sessionID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "session_id is required", nil)
	}

	out, err := s.sessions.GetBySessionID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeSessionNotFound, op, "session not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to get session", err)
	}
	return out, nil
}

func (s *sessionService) End(ctx context.Context, sessionID string) (*models.Session, error) {
	const op = "SessionService.End"

	ss, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if ss.Status == models.SessionEnded {
		// terminal state is immutable; ending twice is a no-op
		return ss, nil
	}

	now := time.Now().UTC()
	dur := int64(now.Sub(ss.CreatedAt).Seconds())
	if dur < 0 {
		dur = 0
	}

	if err := s.sessions.End(ctx, sessionID, now, dur); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to end session", err)
	}

	ss.Status = models.SessionEnded
	ss.EndedAt = &now
	ss.DurationSeconds = dur
	return ss, nil
}

func (s *sessionService) SetStatus(ctx context.Context, sessionID, status string) error {
	const op = "SessionService.SetStatus"

	if sessionID == "" || status == "" {
		return utils.E(utils.CodeInvalidArgument, op, "session_id and status are required", nil)
	}
	if err := s.sessions.SetStatus(ctx, sessionID, status); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to set status", err)
	}
	return nil
}

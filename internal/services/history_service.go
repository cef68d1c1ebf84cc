package services

import (
	"context"
	"errors"

	"github.com/okhamid/interviewly/internal/models"
	mongorepo "github.com/okhamid/interviewly/internal/repositories/mongo"
	"github.com/okhamid/interviewly/internal/utils"
)

// HistoryService serves the after-the-fact view of a session: the transcript
// and the generated answers.
type HistoryService interface {
	Transcript(ctx context.Context, sessionID string, limit int64) ([]models.TranscriptSegment, error)
	Answers(ctx context.Context, sessionID string, limit int64) ([]models.QARecord, error)
	MarkAnswerUsed(ctx context.Context, sessionID, questionID string) error
}

type historyService struct {
	sessions    SessionService
	transcripts mongorepo.TranscriptRepository
	qa          mongorepo.QARepository
}

func NewHistoryService(sessions SessionService, transcripts mongorepo.TranscriptRepository, qa mongorepo.QARepository) HistoryService {
	return &historyService{sessions: sessions, transcripts: transcripts, qa: qa}
}

func (s *historyService) Transcript(ctx context.Context, sessionID string, limit int64) ([]models.TranscriptSegment, error) {
	const op = "HistoryService.Transcript"

	if _, err := s.sessions.Get(ctx, sessionID); err != nil {
		return nil, err
	}

	segs, err := s.transcripts.ListBySession(ctx, sessionID, limit)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list transcript", err)
	}
	return segs, nil
}

func (s *historyService) Answers(ctx context.Context, sessionID string, limit int64) ([]models.QARecord, error) {
	const op = "HistoryService.Answers"

	if _, err := s.sessions.Get(ctx, sessionID); err != nil {
		return nil, err
	}

	rows, err := s.qa.ListBySession(ctx, sessionID, limit)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list answers", err)
	}
	return rows, nil
}

func (s *historyService) MarkAnswerUsed(ctx context.Context, sessionID, questionID string) error {
	const op = "HistoryService.MarkAnswerUsed"

	if _, err := s.sessions.Get(ctx, sessionID); err != nil {
		return err
	}
	if err := s.qa.MarkUsed(ctx, sessionID, questionID); err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return utils.E(utils.CodeNotFound, op, "no answer recorded for question", err)
		}
		return utils.E(utils.CodeInternal, op, "failed to mark answer used", err)
	}
	return nil
}

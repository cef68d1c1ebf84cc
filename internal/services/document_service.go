package services

import (
	"context"
	"errors"
	"time"

	"github.com/okhamid/interviewly/internal/cache"
	"github.com/okhamid/interviewly/internal/models"
	mongorepo "github.com/okhamid/interviewly/internal/repositories/mongo"
	pgrepo "github.com/okhamid/interviewly/internal/repositories/postgres"
	"github.com/okhamid/interviewly/internal/utils"
)

// DocumentStore is the pipeline's view of everything persisted outside the
// session itself: profiles and job descriptions in Postgres, sessions,
// transcripts and Q&A history in Mongo. The orchestrator and assembler only
// see this interface, which keeps them testable against fakes.
type DocumentStore interface {
	GetSession(ctx context.Context, sessionID string) (*models.Session, error)
	GetProfile(ctx context.Context, profileID string) (*models.Profile, error)
	GetJobDescription(ctx context.Context, jdID string) (*models.JobDescription, error)
	// RecentSessionQA returns the session's most recent Q&A pairs in
	// chronological order.
	RecentSessionQA(ctx context.Context, sessionID string, limit int) ([]models.QARecord, error)
	AppendTranscript(ctx context.Context, seg *models.TranscriptSegment) error
	AppendQA(ctx context.Context, qa *models.QARecord) error
	QAAttempts(ctx context.Context, questionID string) (int64, error)
	UpdateSessionStatus(ctx context.Context, sessionID, status string) error
	EndSession(ctx context.Context, sessionID string) error
}

type documentService struct {
	sessions    SessionService
	profiles    pgrepo.ProfileRepository
	jds         pgrepo.JobDescriptionRepository
	transcripts mongorepo.TranscriptRepository
	qa          mongorepo.QARepository
	cache       cache.Cache
	cacheTTL    time.Duration
}

func NewDocumentService(
	sessions SessionService,
	profiles pgrepo.ProfileRepository,
	jds pgrepo.JobDescriptionRepository,
	transcripts mongorepo.TranscriptRepository,
	qa mongorepo.QARepository,
	c cache.Cache,
) DocumentStore {
	return &documentService{
		sessions:    sessions,
		profiles:    profiles,
		jds:         jds,
		transcripts: transcripts,
		qa:          qa,
		cache:       c,
		cacheTTL:    10 * time.Minute,
	}
}

func (s *documentService) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	return s.sessions.Get(ctx, sessionID)
}

// GetProfile serves from Redis when possible; profiles change rarely while a
// session reads them on every detected question.
func (s *documentService) GetProfile(ctx context.Context, profileID string) (*models.Profile, error) {
	const op = "DocumentService.GetProfile"

	key := "profile:" + profileID
	if s.cache != nil {
		var cached models.Profile
		if hit, _ := s.cache.GetJSON(ctx, key, &cached); hit {
			return &cached, nil
		}
	}

	p, err := s.profiles.GetByID(ctx, profileID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeContextUnavailable, op, "profile not found", err)
		}
		return nil, utils.E(utils.CodeContextUnavailable, op, "failed to get profile", err)
	}

	if s.cache != nil {
		_ = s.cache.SetJSON(ctx, key, p, s.cacheTTL)
	}
	return p, nil
}

func (s *documentService) GetJobDescription(ctx context.Context, jdID string) (*models.JobDescription, error) {
	const op = "DocumentService.GetJobDescription"

	key := "jd:" + jdID
	if s.cache != nil {
		var cached models.JobDescription
		if hit, _ := s.cache.GetJSON(ctx, key, &cached); hit {
			return &cached, nil
		}
	}

	jd, err := s.jds.GetByID(ctx, jdID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeContextUnavailable, op, "job description not found", err)
		}
		return nil, utils.E(utils.CodeContextUnavailable, op, "failed to get job description", err)
	}

	if s.cache != nil {
		_ = s.cache.SetJSON(ctx, key, jd, s.cacheTTL)
	}
	return jd, nil
}

func (s *documentService) RecentSessionQA(ctx context.Context, sessionID string, limit int) ([]models.QARecord, error) {
	const op = "DocumentService.RecentSessionQA"

	// sliding window over the most recent pairs; older pairs are dropped,
	// not summarized
	rows, err := s.qa.ListRecentBySession(ctx, sessionID, int64(limit))
	if err != nil {
		return nil, utils.E(utils.CodeContextUnavailable, op, "failed to list session q&a", err)
	}

	// repo returns newest first; prompts read oldest to newest
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	return rows, nil
}

func (s *documentService) AppendTranscript(ctx context.Context, seg *models.TranscriptSegment) error {
	const op = "DocumentService.AppendTranscript"
	if err := s.transcripts.Append(ctx, seg); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to append transcript segment", err)
	}
	return nil
}

func (s *documentService) AppendQA(ctx context.Context, qa *models.QARecord) error {
	const op = "DocumentService.AppendQA"
	if err := s.qa.Append(ctx, qa); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to append q&a record", err)
	}
	return nil
}

func (s *documentService) QAAttempts(ctx context.Context, questionID string) (int64, error) {
	return s.qa.CountByQuestion(ctx, questionID)
}

func (s *documentService) UpdateSessionStatus(ctx context.Context, sessionID, status string) error {
	return s.sessions.SetStatus(ctx, sessionID, status)
}

func (s *documentService) EndSession(ctx context.Context, sessionID string) error {
	_, err := s.sessions.End(ctx, sessionID)
	return err
}

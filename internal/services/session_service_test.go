package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okhamid/interviewly/internal/models"
	"github.com/okhamid/interviewly/internal/utils"
)

type fakeSessionRepo struct {
	byID map[string]*models.Session
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{byID: make(map[string]*models.Session)}
}

func (f *fakeSessionRepo) Create(ctx context.Context, s *models.Session) error {
	f.byID[s.SessionID] = s
	return nil
}

func (f *fakeSessionRepo) GetBySessionID(ctx context.Context, sessionID string) (*models.Session, error) {
	s, ok := f.byID[sessionID]
	if !ok {
		return nil, utils.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSessionRepo) SetStatus(ctx context.Context, sessionID, status string) error {
	if s, ok := f.byID[sessionID]; ok {
		s.Status = status
	}
	return nil
}

func (f *fakeSessionRepo) End(ctx context.Context, sessionID string, endedAt time.Time, durationSeconds int64) error {
	if s, ok := f.byID[sessionID]; ok {
		s.Status = models.SessionEnded
		s.EndedAt = &endedAt
		s.DurationSeconds = durationSeconds
	}
	return nil
}

func TestSessionCreate(t *testing.T) {
	svc := NewSessionService(newFakeSessionRepo())

	s, err := svc.Create(context.Background(), "p1", "jd1", "", "", models.SessionMetadata{CompanyName: "Acme"})
	require.NoError(t, err)

	assert.NotEmpty(t, s.SessionID)
	assert.Equal(t, models.SessionPending, s.Status)
	assert.Equal(t, "en-US", s.Language, "language defaults when omitted")
	assert.Equal(t, "Acme", s.Metadata.CompanyName)
	assert.False(t, s.CreatedAt.IsZero())
}

func TestSessionCreateRequiresProfileAndJD(t *testing.T) {
	svc := NewSessionService(newFakeSessionRepo())

	_, err := svc.Create(context.Background(), "", "jd1", "", "", models.SessionMetadata{})
	require.Error(t, err)
	assert.Equal(t, utils.CodeInvalidArgument, utils.CodeOf(err))

	_, err = svc.Create(context.Background(), "p1", "", "", "", models.SessionMetadata{})
	require.Error(t, err)
}

func TestSessionCreateValidatesParent(t *testing.T) {
	repo := newFakeSessionRepo()
	svc := NewSessionService(repo)

	_, err := svc.Create(context.Background(), "p1", "jd1", "ghost", "", models.SessionMetadata{})
	require.Error(t, err)
	assert.Equal(t, utils.CodeInvalidArgument, utils.CodeOf(err))

	parent, err := svc.Create(context.Background(), "p1", "jd1", "", "", models.SessionMetadata{})
	require.NoError(t, err)

	child, err := svc.Create(context.Background(), "p1", "jd1", parent.SessionID, "", models.SessionMetadata{})
	require.NoError(t, err)
	assert.Equal(t, parent.SessionID, child.ParentSessionID)
}

func TestSessionGetUnknown(t *testing.T) {
	svc := NewSessionService(newFakeSessionRepo())

	_, err := svc.Get(context.Background(), "ghost")
	require.Error(t, err)
	assert.Equal(t, utils.CodeSessionNotFound, utils.CodeOf(err))
}

func TestSessionEndIsIdempotent(t *testing.T) {
	repo := newFakeSessionRepo()
	svc := NewSessionService(repo)

	s, err := svc.Create(context.Background(), "p1", "jd1", "", "", models.SessionMetadata{})
	require.NoError(t, err)

	ended, err := svc.End(context.Background(), s.SessionID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionEnded, ended.Status)
	require.NotNil(t, ended.EndedAt)
	first := *ended.EndedAt

	again, err := svc.End(context.Background(), s.SessionID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionEnded, again.Status)
	require.NotNil(t, again.EndedAt)
	assert.Equal(t, first, *again.EndedAt, "a second end must not move the end timestamp")
}

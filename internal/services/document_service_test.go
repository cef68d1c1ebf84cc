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

// fakeQARepo mimics the Mongo repository's sort contracts: ListBySession is
// oldest first, ListRecentBySession newest first.
type fakeQARepo struct {
	records []models.QARecord
	marked  []string
}

func (f *fakeQARepo) Append(ctx context.Context, qa *models.QARecord) error {
	f.records = append(f.records, *qa)
	return nil
}

func (f *fakeQARepo) ListBySession(ctx context.Context, sessionID string, limit int64) ([]models.QARecord, error) {
	var out []models.QARecord
	for _, r := range f.records {
		if r.SessionID != sessionID {
			continue
		}
		out = append(out, r)
		if limit > 0 && int64(len(out)) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeQARepo) ListRecentBySession(ctx context.Context, sessionID string, limit int64) ([]models.QARecord, error) {
	var out []models.QARecord
	for i := len(f.records) - 1; i >= 0; i-- {
		if f.records[i].SessionID != sessionID {
			continue
		}
		out = append(out, f.records[i])
		if limit > 0 && int64(len(out)) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeQARepo) CountByQuestion(ctx context.Context, questionID string) (int64, error) {
	var n int64
	for _, r := range f.records {
		if r.QuestionID == questionID {
			n++
		}
	}
	return n, nil
}

func (f *fakeQARepo) MarkUsed(ctx context.Context, sessionID, questionID string) error {
	for _, r := range f.records {
		if r.SessionID == sessionID && r.QuestionID == questionID {
			f.marked = append(f.marked, questionID)
			return nil
		}
	}
	return utils.ErrNotFound
}

func seededQARepo() *fakeQARepo {
	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	repo := &fakeQARepo{}
	for i, q := range []string{"q1", "q2", "q3", "q4"} {
		repo.records = append(repo.records, models.QARecord{
			SessionID:  "s1",
			QuestionID: q,
			Question:   "question " + q,
			Answer:     "answer " + q,
			Attempt:    1,
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		})
	}
	return repo
}

func TestRecentSessionQAChronological(t *testing.T) {
	svc := NewDocumentService(nil, nil, nil, nil, seededQARepo(), nil)

	rows, err := svc.RecentSessionQA(context.Background(), "s1", 3)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	// the newest three pairs, oldest first for the prompt
	assert.Equal(t, "q2", rows[0].QuestionID)
	assert.Equal(t, "q3", rows[1].QuestionID)
	assert.Equal(t, "q4", rows[2].QuestionID)
}

func TestRecentSessionQAUnknownSession(t *testing.T) {
	svc := NewDocumentService(nil, nil, nil, nil, seededQARepo(), nil)

	rows, err := svc.RecentSessionQA(context.Background(), "ghost", 3)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

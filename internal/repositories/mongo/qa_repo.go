package mongo

import (
	"context"
	"errors"
	"time"

	"github.com/okhamid/interviewly/internal/models"
	"github.com/okhamid/interviewly/internal/utils"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type QARepository interface {
	Append(ctx context.Context, qa *models.QARecord) error
	ListBySession(ctx context.Context, sessionID string, limit int64) ([]models.QARecord, error)
	// ListRecentBySession returns the newest records first.
	ListRecentBySession(ctx context.Context, sessionID string, limit int64) ([]models.QARecord, error)
	CountByQuestion(ctx context.Context, questionID string) (int64, error)
	MarkUsed(ctx context.Context, sessionID, questionID string) error
}

type qaRepo struct {
	col *mongo.Collection
}

func NewQARepo(db *mongo.Database) QARepository {
	return &qaRepo{col: db.Collection("question_answers")}
}

func (r *qaRepo) Append(ctx context.Context, qa *models.QARecord) error {
	if qa.CreatedAt.IsZero() {
		qa.CreatedAt = time.Now().UTC()
	}
	_, err := r.col.InsertOne(ctx, qa)
	return err
}

func (r *qaRepo) ListBySession(ctx context.Context, sessionID string, limit int64) ([]models.QARecord, error) {
	if limit <= 0 {
		limit = 200
	}

	cur, err := r.col.Find(ctx,
		bson.M{"session_id": sessionID},
		options.Find().
			SetSort(bson.D{{Key: "created_at", Value: 1}}).
			SetLimit(limit),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.QARecord
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *qaRepo) ListRecentBySession(ctx context.Context, sessionID string, limit int64) ([]models.QARecord, error) {
	if limit <= 0 {
		limit = 10
	}

	cur, err := r.col.Find(ctx,
		bson.M{"session_id": sessionID},
		options.Find().
			SetSort(bson.D{{Key: "created_at", Value: -1}}).
			SetLimit(limit),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.QARecord
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *qaRepo) CountByQuestion(ctx context.Context, questionID string) (int64, error) {
	return r.col.CountDocuments(ctx, bson.M{"question_id": questionID})
}

// MarkUsed flips was_used on the latest attempt for the question. The answer
// text itself is never mutated.
func (r *qaRepo) MarkUsed(ctx context.Context, sessionID, questionID string) error {
	res := r.col.FindOneAndUpdate(ctx,
		bson.M{"session_id": sessionID, "question_id": questionID},
		bson.M{"$set": bson.M{"was_used": true}},
		options.FindOneAndUpdate().SetSort(bson.D{{Key: "attempt", Value: -1}}),
	)
	if errors.Is(res.Err(), mongo.ErrNoDocuments) {
		return utils.ErrNotFound
	}
	return res.Err()
}

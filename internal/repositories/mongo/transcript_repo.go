package mongo

import (
	"context"
	"time"

	"github.com/okhamid/interviewly/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type TranscriptRepository interface {
	Append(ctx context.Context, seg *models.TranscriptSegment) error
	ListBySession(ctx context.Context, sessionID string, limit int64) ([]models.TranscriptSegment, error)
}

type transcriptRepo struct {
	col *mongo.Collection
}

func NewTranscriptRepo(db *mongo.Database) TranscriptRepository {
	return &transcriptRepo{col: db.Collection("transcript_segments")}
}

func (r *transcriptRepo) Append(ctx context.Context, seg *models.TranscriptSegment) error {
	if seg.Timestamp.IsZero() {
		seg.Timestamp = time.Now().UTC()
	}
	_, err := r.col.InsertOne(ctx, seg)
	return err
}

func (r *transcriptRepo) ListBySession(ctx context.Context, sessionID string, limit int64) ([]models.TranscriptSegment, error) {
	if limit <= 0 {
		limit = 500
	}

	cur, err := r.col.Find(ctx,
		bson.M{"session_id": sessionID},
		options.Find().
			SetSort(bson.D{{Key: "timestamp", Value: 1}}).
			SetLimit(limit),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.TranscriptSegment
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

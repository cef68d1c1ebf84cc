package postgres

import (
	"context"
	"errors"

	"github.com/okhamid/interviewly/internal/models"
	"github.com/okhamid/interviewly/internal/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type JobDescriptionRepository interface {
	GetByID(ctx context.Context, jdID string) (*models.JobDescription, error)
	Upsert(ctx context.Context, jd *models.JobDescription) error
}

type jobDescRepo struct {
	db *gorm.DB
}

func NewJobDescRepo(db *gorm.DB) JobDescriptionRepository {
	return &jobDescRepo{db: db}
}

func (r *jobDescRepo) GetByID(ctx context.Context, jdID string) (*models.JobDescription, error) {
	var jd models.JobDescription
	err := r.db.WithContext(ctx).
		Where("jd_id = ?", jdID).
		Take(&jd).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &jd, err
}

func (r *jobDescRepo) Upsert(ctx context.Context, jd *models.JobDescription) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "jd_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"company_name", "role_name", "required_skills", "responsibilities", "description", "embedding", "updated_at"}),
		}).
		Create(jd).Error
}

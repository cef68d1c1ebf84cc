package services

import (
	"context"
	"errors"
	"time"

	"github.com/okhamid/interviewly/internal/cache"
	"github.com/okhamid/interviewly/internal/models"
	pgrepo "github.com/okhamid/interviewly/internal/repositories/postgres"
	"github.com/okhamid/interviewly/internal/utils"
)

// ProfileService manages the candidate profiles and job descriptions the
// assembler draws prompt context from.
type ProfileService interface {
	GetProfile(ctx context.Context, profileID string) (*models.Profile, error)
	SaveProfile(ctx context.Context, p *models.Profile) (*models.Profile, error)
	GetJobDescription(ctx context.Context, jdID string) (*models.JobDescription, error)
	SaveJobDescription(ctx context.Context, jd *models.JobDescription) (*models.JobDescription, error)
}

type profileService struct {
	profiles pgrepo.ProfileRepository
	jds      pgrepo.JobDescriptionRepository
	cache    cache.Cache
}

func NewProfileService(profiles pgrepo.ProfileRepository, jds pgrepo.JobDescriptionRepository, c cache.Cache) ProfileService {
	return &profileService{profiles: profiles, jds: jds, cache: c}
}

func (s *profileService) GetProfile(ctx context.Context, profileID string) (*models.Profile, error) {
	const op = "ProfileService.GetProfile"

	p, err := s.profiles.GetByID(ctx, profileID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "profile not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to get profile", err)
	}
	return p, nil
}

func (s *profileService) SaveProfile(ctx context.Context, p *models.Profile) (*models.Profile, error) {
	const op = "ProfileService.SaveProfile"

	if p.ProfileID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "profile_id is required", nil)
	}
	p.UpdatedAt = time.Now().UTC()

	if err := s.profiles.Upsert(ctx, p); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to save profile", err)
	}

	// writes invalidate the context-assembly cache so live sessions pick the
	// new version up on the next question
	if s.cache != nil {
		_ = s.cache.Del(ctx, "profile:"+p.ProfileID)
	}
	return p, nil
}

func (s *profileService) GetJobDescription(ctx context.Context, jdID string) (*models.JobDescription, error) {
	const op = "ProfileService.GetJobDescription"

	jd, err := s.jds.GetByID(ctx, jdID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "job description not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to get job description", err)
	}
	return jd, nil
}

func (s *profileService) SaveJobDescription(ctx context.Context, jd *models.JobDescription) (*models.JobDescription, error) {
	const op = "ProfileService.SaveJobDescription"

	if jd.JDID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "jd_id is required", nil)
	}
	jd.UpdatedAt = time.Now().UTC()

	if err := s.jds.Upsert(ctx, jd); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to save job description", err)
	}

	if s.cache != nil {
		_ = s.cache.Del(ctx, "jd:"+jd.JDID)
	}
	return jd, nil
}

package models

import (
	"time"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

// JobDescription is the posting the candidate is interviewing for.
type JobDescription struct {
	JDID        string `gorm:"column:jd_id;type:uuid;primaryKey" json:"jd_id"`
	CompanyName string `gorm:"column:company_name;type:text" json:"company_name"`
	RoleName    string `gorm:"column:role_name;type:text" json:"role_name"`

	RequiredSkills   pq.StringArray `gorm:"column:required_skills;type:text[]" json:"required_skills"`
	Responsibilities pq.StringArray `gorm:"column:responsibilities;type:text[]" json:"responsibilities"`

	Description string `gorm:"column:description;type:text" json:"description"`

	Embedding pgvector.Vector `gorm:"column:embedding;type:vector(768)" json:"embedding"`

	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamptz" json:"updated_at"`
}

func (JobDescription) TableName() string { return "job_descriptions" }

package models

import (
	"time"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

// Profile is the candidate's parsed resume. Stored in Postgres; the pipeline
// only reads it when assembling prompt context.
type Profile struct {
	ProfileID string `gorm:"column:profile_id;type:uuid;primaryKey" json:"profile_id"`
	FullName  string `gorm:"column:full_name;type:text" json:"full_name"`
	Summary   string `gorm:"column:summary;type:text" json:"summary"`

	Skills pq.StringArray `gorm:"column:skills;type:text[]" json:"skills"`

	// JSONB: flexible resume structure, shape owned by the parser upstream
	Experience datatypes.JSON `gorm:"column:experience;type:jsonb" json:"experience"`
	Projects   datatypes.JSON `gorm:"column:projects;type:jsonb" json:"projects"`
	Education  datatypes.JSON `gorm:"column:education;type:jsonb" json:"education"`

	// pgvector, for semantic retrieval over resumes
	Embedding pgvector.Vector `gorm:"column:embedding;type:vector(768)" json:"embedding"`

	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamptz" json:"updated_at"`
}

func (Profile) TableName() string { return "profiles" }

// ExperienceEntry / ProjectEntry mirror the JSONB shapes the assembler reads.
type ExperienceEntry struct {
	Role        string `json:"role"`
	Company     string `json:"company"`
	Duration    string `json:"duration"`
	Description string `json:"description"`
}

type ProjectEntry struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

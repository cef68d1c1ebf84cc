package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/okhamid/interviewly/internal/models"
	"github.com/okhamid/interviewly/internal/utils"
)

// PromptContext is the bounded context handed to answer generation. Missing
// pieces leave their section empty; generation always proceeds with whatever
// is here.
type PromptContext struct {
	ProfileSection string
	JDSection      string
	PriorQA        []models.QARecord

	// Partial is set when any fetch failed; answer quality degrades instead
	// of the session blocking.
	Partial bool
}

// Used summarizes context provenance for the persisted Q&A record.
func (c *PromptContext) Used() models.ContextUsed {
	return models.ContextUsed{
		ProfileSection: sectionNames(c.ProfileSection),
		JDSection:      sectionNames(c.JDSection),
		PriorQAPairs:   len(c.PriorQA),
	}
}

// ContextService assembles the prompt context for one detected question from
// session-scoped documents.
type ContextService interface {
	Assemble(ctx context.Context, sess *models.Session) (*PromptContext, error)
}

type contextService struct {
	store        DocumentStore
	priorQALimit int
}

func NewContextService(store DocumentStore, priorQALimit int) ContextService {
	if priorQALimit <= 0 {
		priorQALimit = 3
	}
	return &contextService{store: store, priorQALimit: priorQALimit}
}

// Assemble never returns a nil context. The error, when non-nil, carries
// CONTEXT_UNAVAILABLE and means the context is partial; callers log it and
// generate anyway.
func (s *contextService) Assemble(ctx context.Context, sess *models.Session) (*PromptContext, error) {
	const op = "ContextService.Assemble"

	out := &PromptContext{}
	var firstErr error

	profile, err := s.store.GetProfile(ctx, sess.ProfileID)
	if err != nil {
		out.Partial = true
		firstErr = err
	} else {
		out.ProfileSection = renderProfile(profile)
	}

	jd, err := s.store.GetJobDescription(ctx, sess.JobDescriptionID)
	if err != nil {
		out.Partial = true
		if firstErr == nil {
			firstErr = err
		}
	} else {
		out.JDSection = renderJobDescription(jd)
	}

	if sess.ParentSessionID != "" {
		prior, err := s.store.RecentSessionQA(ctx, sess.ParentSessionID, s.priorQALimit)
		if err != nil {
			out.Partial = true
			if firstErr == nil {
				firstErr = err
			}
		} else {
			out.PriorQA = prior
		}
	}

	if out.Partial {
		return out, utils.E(utils.CodeContextUnavailable, op, "prompt context is partial", firstErr)
	}
	return out, nil
}

func renderProfile(p *models.Profile) string {
	var parts []string

	if len(p.Skills) > 0 {
		skills := p.Skills
		if len(skills) > 10 {
			skills = skills[:10]
		}
		parts = append(parts, "Skills: "+strings.Join(skills, ", "))
	}

	var exp []models.ExperienceEntry
	if err := json.Unmarshal(p.Experience, &exp); err == nil {
		for i, e := range exp {
			if i >= 2 {
				break
			}
			parts = append(parts, fmt.Sprintf("Experience: %s at %s (%s): %s",
				e.Role, e.Company, e.Duration, truncate(e.Description, 200)))
		}
	}

	var projects []models.ProjectEntry
	if err := json.Unmarshal(p.Projects, &projects); err == nil {
		for i, pr := range projects {
			if i >= 2 {
				break
			}
			parts = append(parts, fmt.Sprintf("Project: %s - %s", pr.Name, truncate(pr.Description, 150)))
		}
	}

	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, "\n")
}

func renderJobDescription(jd *models.JobDescription) string {
	var parts []string

	if len(jd.RequiredSkills) > 0 {
		skills := jd.RequiredSkills
		if len(skills) > 8 {
			skills = skills[:8]
		}
		parts = append(parts, "Required Skills: "+strings.Join(skills, ", "))
	}
	if len(jd.Responsibilities) > 0 {
		resp := jd.Responsibilities
		if len(resp) > 3 {
			resp = resp[:3]
		}
		parts = append(parts, "Key Responsibilities: "+strings.Join(resp, ", "))
	}
	if jd.CompanyName != "" && jd.RoleName != "" {
		parts = append(parts, fmt.Sprintf("Role: %s at %s", jd.RoleName, jd.CompanyName))
	}

	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, "\n")
}

// sectionNames lists the "Header:" prefixes of a rendered section, which is
// all the client needs to show where an answer came from.
func sectionNames(rendered string) string {
	if rendered == "" {
		return ""
	}
	var names []string
	for _, line := range strings.Split(rendered, "\n") {
		if i := strings.Index(line, ":"); i > 0 && i < 50 {
			names = append(names, strings.TrimSpace(line[:i]))
		}
		if len(names) == 3 {
			break
		}
	}
	return strings.Join(names, ", ")
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

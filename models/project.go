package models

import (
	"errors"
	"sort"
	"sync"
	"time"
)

// Project workflow status.
const (
	ProjectStatusDraft       = "draft"        // created, brief not locked
	ProjectStatusInProgress  = "in_progress"  // generation running or partially done
	ProjectStatusNeedsReview = "needs_review" // waiting on an approval gate
	ProjectStatusApproved    = "approved"     // pack approved by client
	ProjectStatusArchived    = "archived"
)

// Workflow steps in order.
const (
	StepBrief       = "brief"
	StepConcept     = "concept"
	StepScreenplays = "screenplays"
	StepSelect      = "select"
	StepStoryboard  = "storyboard"
	StepProduction  = "production"
	StepExport      = "export"
)

// Budget bands for rough client sizing.
const (
	BudgetBandLow     = "low"
	BudgetBandMedium  = "medium"
	BudgetBandHigh    = "high"
	BudgetBandPremium = "premium"
)

// CreativeBrief is the input record the whole pipeline runs from. The first four
// fields are required; the rest refine prompts when present.
type CreativeBrief struct {
	Brand             string   `json:"brand" yaml:"brand"`
	Theme             string   `json:"theme" yaml:"theme"`
	DurationSec       int      `json:"duration" yaml:"duration"`
	AspectRatio       string   `json:"aspect_ratio" yaml:"aspect_ratio"`
	Platform          string   `json:"platform,omitempty" yaml:"platform"`
	TargetAudience    string   `json:"target_audience,omitempty" yaml:"target_audience"`
	CreativeDirection string   `json:"creative_direction,omitempty" yaml:"creative_direction"`
	Constraints       []string `json:"constraints,omitempty" yaml:"constraints"`
}

func (b CreativeBrief) Validate() error {
	if b.Brand == "" {
		return errors.New("brief: brand is required")
	}
	if b.Theme == "" {
		return errors.New("brief: theme is required")
	}
	if b.DurationSec <= 0 {
		return errors.New("brief: duration must be positive")
	}
	if b.AspectRatio == "" {
		return errors.New("brief: aspect_ratio is required")
	}
	return nil
}

type Project struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	Client          string         `json:"client"`
	Status          string         `json:"status"`
	CurrentStep     string         `json:"current_step"`
	BudgetBand      string         `json:"budget_band"`
	Tags            []string       `json:"tags"`
	Brief           *CreativeBrief `json:"brief,omitempty"`
	SelectedVariant int            `json:"selected_variant"` // 0 = none
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

var ErrProjectNotFound = errors.New("models: project not found")

// ProjectStore is a keyed in-memory repository. Records live for the process
// lifetime only.
type ProjectStore struct {
	mu       sync.RWMutex
	projects map[string]*Project
}

func NewProjectStore() *ProjectStore {
	return &ProjectStore{projects: make(map[string]*Project)}
}

func (s *ProjectStore) Create(p *Project) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now
	if p.Status == "" {
		p.Status = ProjectStatusDraft
	}
	if p.CurrentStep == "" {
		p.CurrentStep = StepBrief
	}
	if p.BudgetBand == "" {
		p.BudgetBand = BudgetBandMedium
	}
	s.projects[p.ID] = p
}

func (s *ProjectStore) Get(id string) (*Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[id]
	if !ok {
		return nil, ErrProjectNotFound
	}
	cp := *p
	return &cp, nil
}

// List returns projects ordered by creation time, newest first.
func (s *ProjectStore) List() []*Project {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Project, 0, len(s.projects))
	for _, p := range s.projects {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Update applies fn to the stored project under the lock.
func (s *ProjectStore) Update(id string, fn func(*Project)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok {
		return ErrProjectNotFound
	}
	fn(p)
	p.UpdatedAt = time.Now()
	return nil
}

func (s *ProjectStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[id]; !ok {
		return ErrProjectNotFound
	}
	delete(s.projects, id)
	return nil
}

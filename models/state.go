package models

import (
	"sync"
	"time"
)

// ProjectState is the shared record every pipeline node reads and the engine alone
// writes. Artifact fields follow a single-writer-per-field discipline: each is
// produced by exactly one node per run, so concurrent sibling nodes never touch the
// same field. All mutation goes through Apply.
type ProjectState struct {
	mu sync.RWMutex

	ProjectID string        `json:"project_id"`
	Brief     CreativeBrief `json:"brief"`

	Concept          string                `json:"concept,omitempty"`
	Screenplay1      *Screenplay           `json:"screenplay_1,omitempty"`
	Screenplay2      *Screenplay           `json:"screenplay_2,omitempty"`
	ScreenplayWinner *Screenplay           `json:"screenplay_winner,omitempty"`
	Storyboard       *Storyboard           `json:"storyboard,omitempty"`
	ScenePlan        *ScenePlan            `json:"scene_plan,omitempty"`
	Locations        *LocationsPlan        `json:"locations_plan,omitempty"`
	Budget           *BudgetEstimate       `json:"budget_estimate,omitempty"`
	Schedule         *SchedulePlan         `json:"schedule_plan,omitempty"`
	Casting          *CastingPlan          `json:"casting_suggestions,omitempty"`
	PropsWardrobe    *PropsWardrobeList    `json:"props_wardrobe_list,omitempty"`
	CrewGear         *CrewGearPackage      `json:"crew_gear_package,omitempty"`
	Legal            *LegalClearanceReport `json:"legal_clearance_report,omitempty"`
	Risk             *RiskRegister         `json:"risk_register,omitempty"`
	ProductionPack   string                `json:"production_pack,omitempty"`

	StatusLog []string `json:"status_log"`
}

func NewProjectState(projectID string, brief CreativeBrief) *ProjectState {
	return &ProjectState{
		ProjectID: projectID,
		Brief:     brief,
		StatusLog: []string{},
	}
}

// StateUpdate is a partial update returned by a node. Nil fields are untouched;
// non-nil fields replace the state's current value during Apply.
type StateUpdate struct {
	Concept          *string
	Screenplay1      *Screenplay
	Screenplay2      *Screenplay
	ScreenplayWinner *Screenplay
	Storyboard       *Storyboard
	ScenePlan        *ScenePlan
	Locations        *LocationsPlan
	Budget           *BudgetEstimate
	Schedule         *SchedulePlan
	Casting          *CastingPlan
	PropsWardrobe    *PropsWardrobeList
	CrewGear         *CrewGearPackage
	Legal            *LegalClearanceReport
	Risk             *RiskRegister
	ProductionPack   *string

	// Notes are appended to the status log in order.
	Notes []string
	// Degraded marks the producing node as having fallen back to synthetic
	// or derived content.
	Degraded bool
	// Halt stops forward traversal after this update merges. Gate nodes set it
	// on rejection.
	Halt bool
}

func (u *StateUpdate) AddNote(note string) {
	u.Notes = append(u.Notes, note)
}

// Apply merges a partial update into the state. Only the engine calls this.
func (s *ProjectState) Apply(u *StateUpdate) {
	if u == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.Concept != nil {
		s.Concept = *u.Concept
	}
	if u.Screenplay1 != nil {
		s.Screenplay1 = u.Screenplay1
	}
	if u.Screenplay2 != nil {
		s.Screenplay2 = u.Screenplay2
	}
	if u.ScreenplayWinner != nil {
		s.ScreenplayWinner = u.ScreenplayWinner
	}
	if u.Storyboard != nil {
		s.Storyboard = u.Storyboard
	}
	if u.ScenePlan != nil {
		s.ScenePlan = u.ScenePlan
	}
	if u.Locations != nil {
		s.Locations = u.Locations
	}
	if u.Budget != nil {
		s.Budget = u.Budget
	}
	if u.Schedule != nil {
		s.Schedule = u.Schedule
	}
	if u.Casting != nil {
		s.Casting = u.Casting
	}
	if u.PropsWardrobe != nil {
		s.PropsWardrobe = u.PropsWardrobe
	}
	if u.CrewGear != nil {
		s.CrewGear = u.CrewGear
	}
	if u.Legal != nil {
		s.Legal = u.Legal
	}
	if u.Risk != nil {
		s.Risk = u.Risk
	}
	if u.ProductionPack != nil {
		s.ProductionPack = *u.ProductionPack
	}
	for _, n := range u.Notes {
		s.StatusLog = append(s.StatusLog, time.Now().Format("15:04:05")+" "+n)
	}
}

// LogStatus appends one entry outside a node update (runner bookkeeping).
func (s *ProjectState) LogStatus(note string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.StatusLog = append(s.StatusLog, time.Now().Format("15:04:05")+" "+note)
}

// StatusSnapshot copies the status log for safe external reads.
func (s *ProjectState) StatusSnapshot() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.StatusLog))
	copy(out, s.StatusLog)
	return out
}

// ExportCopy returns a copy safe for marshaling while a run is in flight.
// Artifacts are never mutated after Apply, so sharing the pointers is fine.
func (s *ProjectState) ExportCopy() *ProjectState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := &ProjectState{
		ProjectID:        s.ProjectID,
		Brief:            s.Brief,
		Concept:          s.Concept,
		Screenplay1:      s.Screenplay1,
		Screenplay2:      s.Screenplay2,
		ScreenplayWinner: s.ScreenplayWinner,
		Storyboard:       s.Storyboard,
		ScenePlan:        s.ScenePlan,
		Locations:        s.Locations,
		Budget:           s.Budget,
		Schedule:         s.Schedule,
		Casting:          s.Casting,
		PropsWardrobe:    s.PropsWardrobe,
		CrewGear:         s.CrewGear,
		Legal:            s.Legal,
		Risk:             s.Risk,
		ProductionPack:   s.ProductionPack,
		StatusLog:        make([]string, len(s.StatusLog)),
	}
	copy(cp.StatusLog, s.StatusLog)
	return cp
}

// ArtifactPresence reports which artifact fields are populated, keyed by their
// JSON names.
func (s *ProjectState) ArtifactPresence() map[string]bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return map[string]bool{
		"concept":                s.Concept != "",
		"screenplay_1":           s.Screenplay1 != nil,
		"screenplay_2":           s.Screenplay2 != nil,
		"screenplay_winner":      s.ScreenplayWinner != nil,
		"storyboard":             s.Storyboard != nil,
		"scene_plan":             s.ScenePlan != nil,
		"locations_plan":         s.Locations != nil,
		"budget_estimate":        s.Budget != nil,
		"schedule_plan":          s.Schedule != nil,
		"casting_suggestions":    s.Casting != nil,
		"props_wardrobe_list":    s.PropsWardrobe != nil,
		"crew_gear_package":      s.CrewGear != nil,
		"legal_clearance_report": s.Legal != nil,
		"risk_register":          s.Risk != nil,
		"production_pack":        s.ProductionPack != "",
	}
}

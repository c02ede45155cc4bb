package models

// Typed production artifacts accumulated by the pipeline. Field names follow the
// JSON shapes the generation prompts ask for, so decoded model output and synthetic
// fallback content share one schema.

// SceneDetail is one scene of the production breakdown.
type SceneDetail struct {
	SceneID             string   `json:"scene_id"`
	Description         string   `json:"description"`
	LocationType        string   `json:"location_type"` // INT or EXT
	TimeOfDay           string   `json:"time_of_day"`   // DAY or NIGHT
	LocationDescription string   `json:"location_description"`
	DurationSec         float64  `json:"duration_sec"`
	CastCount           int      `json:"cast_count"`
	Props               []string `json:"props"`
	Wardrobe            []string `json:"wardrobe"`
	SfxVfx              []string `json:"sfx_vfx"`
	DialogueVO          string   `json:"dialogue_vo"`
	OnScreenText        string   `json:"on_screen_text"`
}

type ShotDetail struct {
	ShotID         string  `json:"shot_id"`
	SceneID        string  `json:"scene_id"`
	ShotType       string  `json:"shot_type"`
	CameraMovement string  `json:"camera_movement"`
	DurationSec    float64 `json:"duration_sec"`
	Description    string  `json:"description"`
}

type ScenePlan struct {
	Scenes    []SceneDetail `json:"scenes"`
	Shots     []ShotDetail  `json:"shots"`
	Synthetic bool          `json:"synthetic,omitempty"`
	Notes     string        `json:"notes,omitempty"`
}

type StoryboardFrame struct {
	FrameNumber int     `json:"frame_number"`
	SceneNumber int     `json:"scene_number"`
	Description string  `json:"description"`
	Camera      string  `json:"camera"`
	DurationSec float64 `json:"duration_sec"`
	// ImageURL is a data URI or an object-storage URL; empty when no image
	// backend is configured.
	ImageURL string `json:"image_url,omitempty"`
}

type Storyboard struct {
	Frames    []StoryboardFrame `json:"frames"`
	Synthetic bool              `json:"synthetic,omitempty"`
	Notes     string            `json:"notes,omitempty"`
}

type LocationRequirement struct {
	LocationID      string   `json:"location_id"`
	Description     string   `json:"description"`
	Type            string   `json:"type"` // INT or EXT
	PermitsRequired bool     `json:"permits_required"`
	Alternates      []string `json:"alternates"`
	Notes           string   `json:"notes"`
}

type LocationsPlan struct {
	Locations      []LocationRequirement `json:"locations"`
	TotalLocations int                   `json:"total_locations"`
	PermitsNeeded  int                   `json:"permits_needed"`
	Synthetic      bool                  `json:"synthetic,omitempty"`
	Notes          string                `json:"notes,omitempty"`
}

type BudgetLineItem struct {
	Category    string  `json:"category"`
	Description string  `json:"description"`
	MinCost     float64 `json:"min_cost"`
	MaxCost     float64 `json:"max_cost"`
}

type BudgetEstimate struct {
	LineItems          []BudgetLineItem `json:"line_items"`
	TotalMin           float64          `json:"total_min"`
	TotalMax           float64          `json:"total_max"`
	Assumptions        []string         `json:"assumptions"`
	CostDrivers        []string         `json:"cost_drivers"`
	ContingencyPercent float64          `json:"contingency_percent"`
	Synthetic          bool             `json:"synthetic,omitempty"`
	Notes              string           `json:"notes,omitempty"`
}

type ScheduleDay struct {
	DayNumber int      `json:"day_number"`
	Date      string   `json:"date"` // relative labels: "Day 1", "Day 2", ...
	SceneIDs  []string `json:"scene_ids"`
	Location  string   `json:"location"`
	CallTime  string   `json:"call_time"`
	WrapTime  string   `json:"wrap_time"`
	Notes     string   `json:"notes"`
}

type SchedulePlan struct {
	Days           []ScheduleDay `json:"days"`
	TotalShootDays int           `json:"total_shoot_days"`
	CompanyMoves   int           `json:"company_moves"`
	PrepDays       int           `json:"prep_days"`
	WrapDays       int           `json:"wrap_days"`
	Assumptions    []string      `json:"assumptions"`
	Synthetic      bool          `json:"synthetic,omitempty"`
	Notes          string        `json:"notes,omitempty"`
}

type CastRole struct {
	RoleID      string   `json:"role_id"`
	Description string   `json:"description"`
	SceneIDs    []string `json:"scene_ids"`
	Notes       string   `json:"notes"`
}

type CastingPlan struct {
	Roles      []CastRole `json:"roles"`
	TotalRoles int        `json:"total_roles"`
	Synthetic  bool       `json:"synthetic,omitempty"`
	Notes      string     `json:"notes,omitempty"`
}

type ScenePropsWardrobe struct {
	SceneID  string   `json:"scene_id"`
	Props    []string `json:"props"`
	Wardrobe []string `json:"wardrobe"`
}

type PropsWardrobeList struct {
	Scenes     []ScenePropsWardrobe `json:"scenes"`
	TotalItems int                  `json:"total_items"`
	Synthetic  bool                 `json:"synthetic,omitempty"`
	Notes      string               `json:"notes,omitempty"`
}

type CrewMember struct {
	Role    string  `json:"role"`
	DayRate float64 `json:"day_rate"`
	Days    int     `json:"days"`
}

type EquipmentItem struct {
	Item        string  `json:"item"`
	Description string  `json:"description"`
	DayRate     float64 `json:"day_rate"`
	Days        int     `json:"days"`
}

type CrewGearPackage struct {
	Crew               []CrewMember    `json:"crew"`
	Equipment          []EquipmentItem `json:"equipment"`
	TotalCrewCost      float64         `json:"total_crew_cost"`
	TotalEquipmentCost float64         `json:"total_equipment_cost"`
	Synthetic          bool            `json:"synthetic,omitempty"`
	Notes              string          `json:"notes,omitempty"`
}

type LegalItem struct {
	Item     string `json:"item"`
	Category string `json:"category"`
	Priority string `json:"priority"` // high, medium, low
	Status   string `json:"status"`   // pending, cleared
	Notes    string `json:"notes"`
}

type LegalClearanceReport struct {
	Items                []LegalItem `json:"items"`
	HighPriorityCount    int         `json:"high_priority_count"`
	PendingCount         int         `json:"pending_count"`
	MinorsInvolved       bool        `json:"minors_involved"`
	DronePermitsRequired bool        `json:"drone_permits_required"`
	Synthetic            bool        `json:"synthetic,omitempty"`
	Notes                string      `json:"notes,omitempty"`
}

type RiskEntry struct {
	RiskID      string `json:"risk_id"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Likelihood  string `json:"likelihood"` // high, medium, low
	Impact      string `json:"impact"`     // high, medium, low
	Mitigation  string `json:"mitigation"`
}

type RiskRegister struct {
	Risks             []RiskEntry `json:"risks"`
	HighPriorityCount int         `json:"high_priority_count"`
	Synthetic         bool        `json:"synthetic,omitempty"`
	Notes             string      `json:"notes,omitempty"`
}

package models

// ScreenplayScene is one scene recovered from free-form screenplay text.
type ScreenplayScene struct {
	SceneNumber  int    `json:"scene_number"`
	Title        string `json:"title"`
	DurationSec  int    `json:"duration_sec"`
	Visuals      string `json:"visuals"`
	Action       string `json:"action"`
	Camera       string `json:"camera"`
	Dialogue     string `json:"dialogue"`
	TextOnScreen string `json:"text_on_screen"`
	// Placeholder marks scenes inserted by padding, never recovered content.
	Placeholder bool `json:"placeholder,omitempty"`
}

// Scorecard rates a screenplay variant for the selection step.
type Scorecard struct {
	Clarity     float64 `json:"clarity"`
	Feasibility float64 `json:"feasibility"`
	CostRisk    float64 `json:"cost_risk"`
}

type Screenplay struct {
	Variant   int               `json:"variant"` // 1 or 2
	Label     string            `json:"label"`
	Scenes    []ScreenplayScene `json:"scenes"`
	TotalSec  int               `json:"total_duration_sec"`
	RawText   string            `json:"raw_text,omitempty"`
	Scores    Scorecard         `json:"scores"`
	Synthetic bool              `json:"synthetic,omitempty"`
	Notes     string            `json:"notes,omitempty"`
}

// Fixed scorecards shown at the selection gate. Variant A leans spectacle,
// variant B leans message-driven storytelling.
var (
	VariantALabel = "A (Rajamouli Style)"
	VariantBLabel = "B (Shankar Style)"

	VariantAScores = Scorecard{Clarity: 8.5, Feasibility: 7.5, CostRisk: 6.5}
	VariantBScores = Scorecard{Clarity: 7.8, Feasibility: 8.2, CostRisk: 7.0}
)

// TotalDuration sums scene durations in seconds.
func (s *Screenplay) TotalDuration() int {
	total := 0
	for _, sc := range s.Scenes {
		total += sc.DurationSec
	}
	return total
}

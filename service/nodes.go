package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"BriefToPack-server/models"
)

// Pipeline holds everything the node funcs close over: the generation clients,
// the decision provider for gates, and optional object storage for frame
// images. Graph builders below assemble the standard node topology:
//
//	concept → screenplay_a / screenplay_b → select_screenplay → storyboard
//	→ scene_breakdown → scene_plan_gate → 8 planners → review_gate
//	→ production_pack
type Pipeline struct {
	llm       *LLMClient
	image     *ImageClient
	oss       *ObjectStore
	decisions DecisionProvider
	logger    *slog.Logger
}

func NewPipeline(llm *LLMClient, image *ImageClient, oss *ObjectStore, decisions DecisionProvider, logger *slog.Logger) *Pipeline {
	if decisions == nil {
		decisions = AutoApprove{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		llm:       llm,
		image:     image,
		oss:       oss,
		decisions: decisions,
		logger:    logger.With("component", "pipeline"),
	}
}

// plannerIDs are the fan-out nodes between the two gates.
var plannerIDs = []string{
	"locations", "budget", "schedule", "casting",
	"props_wardrobe", "crew_gear", "legal", "risk",
}

// ConceptGraph runs only the fatal concept node.
func (p *Pipeline) ConceptGraph() *Graph {
	g := NewGraph()
	g.MustAddNode("concept", p.conceptNode, Fatal())
	return g
}

// ScreenplayGraph runs the two competing variants in parallel.
func (p *Pipeline) ScreenplayGraph() *Graph {
	g := NewGraph()
	g.MustAddNode("screenplay_a", p.screenplayNode(1))
	g.MustAddNode("screenplay_b", p.screenplayNode(2))
	return g
}

// SelectionGraph picks the winner using the given provider. The web surface
// passes a fixed choice; the full run uses the pipeline's own provider.
func (p *Pipeline) SelectionGraph(provider DecisionProvider) *Graph {
	g := NewGraph()
	g.MustAddNode("select_screenplay", p.selectNodeWith(provider), Fatal())
	return g
}

func (p *Pipeline) StoryboardGraph() *Graph {
	g := NewGraph()
	g.MustAddNode("storyboard", p.storyboardNode)
	return g
}

// ProductionGraph is the back half: breakdown, both gates, the planning
// fan-out and the final pack.
func (p *Pipeline) ProductionGraph() *Graph {
	g := NewGraph()
	g.MustAddNode("scene_breakdown", p.sceneBreakdownNode)
	g.MustAddNode("scene_plan_gate",
		p.gateNode("scene_plan_gate", "Scene plan", scenePlanSummary),
		Gate(), DependsOn("scene_breakdown"))
	p.addPlanners(g, "scene_plan_gate")
	g.MustAddNode("review_gate",
		p.gateNode("review_gate", "Production plan review", reviewSummary),
		Gate(), DependsOn(plannerIDs...))
	g.MustAddNode("production_pack", p.productionPackNode, DependsOn("review_gate"))
	return g
}

// FullGraph is the whole pipeline as one traversal, used by the CLI run.
func (p *Pipeline) FullGraph() *Graph {
	g := NewGraph()
	g.MustAddNode("concept", p.conceptNode, Fatal())
	g.MustAddNode("screenplay_a", p.screenplayNode(1), DependsOn("concept"))
	g.MustAddNode("screenplay_b", p.screenplayNode(2), DependsOn("concept"))
	g.MustAddNode("select_screenplay", p.selectNodeWith(p.decisions),
		Fatal(), DependsOn("screenplay_a", "screenplay_b"))
	g.MustAddNode("storyboard", p.storyboardNode, DependsOn("select_screenplay"))
	g.MustAddNode("scene_breakdown", p.sceneBreakdownNode, DependsOn("storyboard"))
	g.MustAddNode("scene_plan_gate",
		p.gateNode("scene_plan_gate", "Scene plan", scenePlanSummary),
		Gate(), DependsOn("scene_breakdown"))
	p.addPlanners(g, "scene_plan_gate")
	g.MustAddNode("review_gate",
		p.gateNode("review_gate", "Production plan review", reviewSummary),
		Gate(), DependsOn(plannerIDs...))
	g.MustAddNode("production_pack", p.productionPackNode, DependsOn("review_gate"))
	return g
}

func (p *Pipeline) addPlanners(g *Graph, after string) {
	g.MustAddNode("locations", p.locationsNode, DependsOn(after))
	g.MustAddNode("budget", p.budgetNode, DependsOn(after))
	g.MustAddNode("schedule", p.scheduleNode, DependsOn(after))
	g.MustAddNode("casting", p.castingNode, DependsOn(after))
	g.MustAddNode("props_wardrobe", p.propsWardrobeNode, DependsOn(after))
	g.MustAddNode("crew_gear", p.crewGearNode, DependsOn(after))
	g.MustAddNode("legal", p.legalNode, DependsOn(after))
	g.MustAddNode("risk", p.riskNode, DependsOn(after))
}

// ---------------------------------------------------------------------------
// Front half: concept, screenplays, selection, storyboard, breakdown
// ---------------------------------------------------------------------------

func (p *Pipeline) conceptNode(ctx context.Context, st *models.ProjectState) (*models.StateUpdate, error) {
	raw, err := p.llm.Generate(ctx, conceptPrompt(st.Brief), 1000)
	if err != nil {
		// no fallback for the concept: nothing downstream makes sense without it
		return nil, fmt.Errorf("concept generation: %w", err)
	}
	concept := strings.TrimSpace(raw)
	u := &models.StateUpdate{Concept: &concept}
	u.AddNote("concept generated")
	return u, nil
}

func (p *Pipeline) screenplayNode(variant int) NodeFunc {
	label, scores, style := models.VariantALabel, models.VariantAScores,
		"grand heroic visual storytelling with epic scale and emotional peaks"
	if variant == 2 {
		label, scores, style = models.VariantBLabel, models.VariantBScores,
			"sleek message-driven spectacle building to a social twist"
	}
	return func(ctx context.Context, st *models.ProjectState) (*models.StateUpdate, error) {
		raw, err := p.llm.Generate(ctx, screenplayPrompt(st.Brief, st.Concept, style), 2000)
		if err != nil {
			p.logger.Warn("screenplay generation degraded", "variant", label, "error", err)
			raw = ""
		}
		scenes := ParseScreenplay(raw)
		placeholders := 0
		for _, sc := range scenes {
			if sc.Placeholder {
				placeholders++
			}
		}
		degraded := err != nil || placeholders > 0

		sp := &models.Screenplay{
			Variant:   variant,
			Label:     label,
			Scenes:    scenes,
			RawText:   raw,
			Scores:    scores,
			Synthetic: degraded,
		}
		sp.TotalSec = sp.TotalDuration()
		if degraded {
			sp.Notes = syntheticNote
		}

		u := &models.StateUpdate{Degraded: degraded}
		if variant == 1 {
			u.Screenplay1 = sp
		} else {
			u.Screenplay2 = sp
		}
		u.AddNote(fmt.Sprintf("screenplay %s: %d scenes (%d placeholder)", label, len(scenes), placeholders))
		return u, nil
	}
}

func (p *Pipeline) selectNodeWith(provider DecisionProvider) NodeFunc {
	return func(ctx context.Context, st *models.ProjectState) (*models.StateUpdate, error) {
		a, b := st.Screenplay1, st.Screenplay2
		if a == nil && b == nil {
			return nil, errors.New("no screenplay variants available for selection")
		}
		choice := 1
		switch {
		case a == nil:
			choice = 2
		case b == nil:
			choice = 1
		default:
			if provider.SelectScreenplay(a, b) == 2 {
				choice = 2
			}
		}
		winner := a
		if choice == 2 {
			winner = b
		}
		u := &models.StateUpdate{ScreenplayWinner: winner}
		u.AddNote(fmt.Sprintf("screenplay %s selected", winner.Label))
		return u, nil
	}
}

func (p *Pipeline) storyboardNode(ctx context.Context, st *models.ProjectState) (*models.StateUpdate, error) {
	if st.ScreenplayWinner == nil {
		return nil, errors.New("storyboard requires a selected screenplay")
	}

	u := &models.StateUpdate{}
	var board *models.Storyboard
	raw, err := p.llm.Generate(ctx, storyboardPrompt(st.Brief, st.ScreenplayWinner), 2000)
	if err == nil {
		board, err = decodeFrames(raw)
	}
	if err != nil {
		p.logger.Warn("storyboard degraded to derived frames", "error", err)
		board = DerivedStoryboard(st.ScreenplayWinner)
		u.Degraded = true
		u.AddNote("storyboard: derived from screenplay after generation failure")
	} else {
		u.AddNote(fmt.Sprintf("storyboard: %d frames", len(board.Frames)))
	}

	for i := range board.Frames {
		if board.Frames[i].FrameNumber == 0 {
			board.Frames[i].FrameNumber = i + 1
		}
	}
	p.attachFrameImages(ctx, st.ProjectID, board, u)

	u.Storyboard = board
	return u, nil
}

func decodeFrames(raw string) (*models.Storyboard, error) {
	var wrapper struct {
		Frames []models.StoryboardFrame `json:"frames"`
	}
	if err := DecodeJSON(raw, &wrapper); err == nil && len(wrapper.Frames) > 0 {
		return &models.Storyboard{Frames: wrapper.Frames}, nil
	}
	var frames []models.StoryboardFrame
	if err := DecodeJSON(raw, &frames); err != nil {
		return nil, err
	}
	if len(frames) == 0 {
		return nil, errors.New("storyboard decoded to zero frames")
	}
	return &models.Storyboard{Frames: frames}, nil
}

// attachFrameImages fills frame images when an image backend is configured.
// Frames without images are normal, not failures.
func (p *Pipeline) attachFrameImages(ctx context.Context, projectID string, board *models.Storyboard, u *models.StateUpdate) {
	if !p.image.Enabled() {
		return
	}
	attached := 0
	for i := range board.Frames {
		fr := &board.Frames[i]
		mime, data, err := p.image.GenerateImage(ctx, framePrompt(fr))
		if err != nil {
			p.logger.Warn("frame image generation failed", "frame", fr.FrameNumber, "error", err)
			continue
		}
		if len(data) == 0 {
			continue
		}
		if p.oss.Enabled() {
			objectName := fmt.Sprintf("projects/%s/storyboard/frame_%02d.png", projectID, fr.FrameNumber)
			url, uerr := p.oss.UploadBytes(ctx, objectName, data, mime)
			if uerr == nil {
				fr.ImageURL = url
				attached++
				continue
			}
			p.logger.Warn("frame image upload failed, embedding inline", "frame", fr.FrameNumber, "error", uerr)
		}
		fr.ImageURL = DataURI(mime, data)
		attached++
	}
	if attached > 0 {
		u.AddNote(fmt.Sprintf("storyboard images: %d of %d frames", attached, len(board.Frames)))
	}
}

func (p *Pipeline) sceneBreakdownNode(ctx context.Context, st *models.ProjectState) (*models.StateUpdate, error) {
	if st.Storyboard == nil {
		return nil, errors.New("scene breakdown requires a storyboard")
	}

	u := &models.StateUpdate{}
	var plan models.ScenePlan
	raw, err := p.llm.Generate(ctx, breakdownPrompt(st.Brief, st.Storyboard), 2500)
	if err == nil {
		err = DecodeJSON(raw, &plan)
	}
	if err == nil && len(plan.Scenes) == 0 {
		err = errors.New("breakdown decoded to zero scenes")
	}
	if err != nil {
		p.logger.Warn("scene breakdown degraded to derived plan", "error", err)
		u.ScenePlan = DerivedScenePlan(st.Storyboard)
		u.Degraded = true
		u.AddNote("scene breakdown: derived from storyboard after generation failure")
		return u, nil
	}

	for i := range plan.Scenes {
		if plan.Scenes[i].SceneID == "" {
			plan.Scenes[i].SceneID = fmt.Sprintf("S%d", i+1)
		}
	}
	u.ScenePlan = &plan
	u.AddNote(fmt.Sprintf("scene breakdown: %d scenes, %d shots", len(plan.Scenes), len(plan.Shots)))
	return u, nil
}

// ---------------------------------------------------------------------------
// Planning fan-out. Every planner follows generate → parse → validate →
// synthetic fallback, so a planner never fails the run.
// ---------------------------------------------------------------------------

func (p *Pipeline) locationsNode(ctx context.Context, st *models.ProjectState) (*models.StateUpdate, error) {
	scenes := sceneList(st)
	u := &models.StateUpdate{}
	var plan models.LocationsPlan
	raw, err := p.llm.Generate(ctx, plannerPrompt(st, "locations", locationsShape), 1500)
	if err == nil {
		err = DecodeJSON(raw, &plan)
	}
	if err == nil && len(plan.Locations) == 0 {
		err = errors.New("no locations decoded")
	}
	if err != nil {
		p.logger.Warn("locations degraded to synthetic", "error", err)
		u.Locations = SyntheticLocations(scenes)
		u.Degraded = true
		u.AddNote("locations: synthetic fallback used")
		return u, nil
	}
	plan.TotalLocations = len(plan.Locations)
	u.Locations = &plan
	u.AddNote(fmt.Sprintf("locations planned: %d", plan.TotalLocations))
	return u, nil
}

func (p *Pipeline) budgetNode(ctx context.Context, st *models.ProjectState) (*models.StateUpdate, error) {
	scenes := sceneList(st)
	u := &models.StateUpdate{}
	var est models.BudgetEstimate
	raw, err := p.llm.Generate(ctx, plannerPrompt(st, "budget", budgetShape), 1500)
	if err == nil {
		err = DecodeJSON(raw, &est)
	}
	if err == nil && len(est.LineItems) == 0 {
		err = errors.New("no budget line items decoded")
	}
	if err == nil && est.TotalMin > est.TotalMax {
		err = errors.New("budget totals inverted")
	}
	if err != nil {
		p.logger.Warn("budget degraded to synthetic", "error", err)
		u.Budget = SyntheticBudget(scenes)
		u.Degraded = true
		u.AddNote("budget: synthetic fallback used")
		return u, nil
	}
	if est.TotalMin == 0 && est.TotalMax == 0 {
		for _, it := range est.LineItems {
			est.TotalMin += it.MinCost
			est.TotalMax += it.MaxCost
		}
	}
	u.Budget = &est
	u.AddNote(fmt.Sprintf("budget estimated: %.0f to %.0f", est.TotalMin, est.TotalMax))
	return u, nil
}

func (p *Pipeline) scheduleNode(ctx context.Context, st *models.ProjectState) (*models.StateUpdate, error) {
	scenes := sceneList(st)
	u := &models.StateUpdate{}
	var plan models.SchedulePlan
	raw, err := p.llm.Generate(ctx, plannerPrompt(st, "shooting schedule", scheduleShape), 1500)
	if err == nil {
		err = DecodeJSON(raw, &plan)
	}
	if err == nil && len(plan.Days) == 0 {
		err = errors.New("no schedule days decoded")
	}
	if err != nil {
		p.logger.Warn("schedule degraded to synthetic", "error", err)
		u.Schedule = SyntheticSchedule(scenes)
		u.Degraded = true
		u.AddNote("schedule: synthetic fallback used")
		return u, nil
	}
	if plan.TotalShootDays == 0 {
		plan.TotalShootDays = len(plan.Days)
	}
	u.Schedule = &plan
	u.AddNote(fmt.Sprintf("schedule planned: %d shoot day(s)", plan.TotalShootDays))
	return u, nil
}

func (p *Pipeline) castingNode(ctx context.Context, st *models.ProjectState) (*models.StateUpdate, error) {
	scenes := sceneList(st)
	u := &models.StateUpdate{}
	var plan models.CastingPlan
	raw, err := p.llm.Generate(ctx, plannerPrompt(st, "casting suggestions", castingShape), 1200)
	if err == nil {
		err = DecodeJSON(raw, &plan)
	}
	if err == nil && len(plan.Roles) == 0 {
		err = errors.New("no casting roles decoded")
	}
	if err != nil {
		p.logger.Warn("casting degraded to synthetic", "error", err)
		u.Casting = SyntheticCasting(scenes)
		u.Degraded = true
		u.AddNote("casting: synthetic fallback used")
		return u, nil
	}
	plan.TotalRoles = len(plan.Roles)
	u.Casting = &plan
	u.AddNote(fmt.Sprintf("casting suggested: %d role(s)", plan.TotalRoles))
	return u, nil
}

func (p *Pipeline) propsWardrobeNode(ctx context.Context, st *models.ProjectState) (*models.StateUpdate, error) {
	scenes := sceneList(st)
	u := &models.StateUpdate{}
	var list models.PropsWardrobeList
	raw, err := p.llm.Generate(ctx, plannerPrompt(st, "props and wardrobe list", propsShape), 1200)
	if err == nil {
		err = DecodeJSON(raw, &list)
	}
	if err == nil && len(list.Scenes) == 0 {
		err = errors.New("no props scenes decoded")
	}
	if err != nil {
		p.logger.Warn("props and wardrobe degraded to synthetic", "error", err)
		u.PropsWardrobe = SyntheticPropsWardrobe(scenes)
		u.Degraded = true
		u.AddNote("props and wardrobe: synthetic fallback used")
		return u, nil
	}
	u.PropsWardrobe = &list
	u.AddNote(fmt.Sprintf("props and wardrobe listed for %d scene(s)", len(list.Scenes)))
	return u, nil
}

func (p *Pipeline) crewGearNode(ctx context.Context, st *models.ProjectState) (*models.StateUpdate, error) {
	scenes := sceneList(st)
	u := &models.StateUpdate{}
	var pack models.CrewGearPackage
	raw, err := p.llm.Generate(ctx, plannerPrompt(st, "crew and equipment package", crewGearShape), 1500)
	if err == nil {
		err = DecodeJSON(raw, &pack)
	}
	if err == nil && len(pack.Crew) == 0 {
		err = errors.New("no crew decoded")
	}
	if err != nil {
		p.logger.Warn("crew and gear degraded to synthetic", "error", err)
		u.CrewGear = SyntheticCrewGear(scenes)
		u.Degraded = true
		u.AddNote("crew and gear: synthetic fallback used")
		return u, nil
	}
	u.CrewGear = &pack
	u.AddNote(fmt.Sprintf("crew and gear packaged: %d crew, %d equipment", len(pack.Crew), len(pack.Equipment)))
	return u, nil
}

func (p *Pipeline) legalNode(ctx context.Context, st *models.ProjectState) (*models.StateUpdate, error) {
	scenes := sceneList(st)
	u := &models.StateUpdate{}
	var report models.LegalClearanceReport
	raw, err := p.llm.Generate(ctx, plannerPrompt(st, "legal clearance checklist", legalShape), 1200)
	if err == nil {
		err = DecodeJSON(raw, &report)
	}
	if err == nil && len(report.Items) == 0 {
		err = errors.New("no legal items decoded")
	}
	if err != nil {
		p.logger.Warn("legal degraded to synthetic", "error", err)
		u.Legal = SyntheticLegal(scenes)
		u.Degraded = true
		u.AddNote("legal: synthetic fallback used")
		return u, nil
	}
	u.Legal = &report
	u.AddNote(fmt.Sprintf("legal checklist: %d item(s)", len(report.Items)))
	return u, nil
}

func (p *Pipeline) riskNode(ctx context.Context, st *models.ProjectState) (*models.StateUpdate, error) {
	scenes := sceneList(st)
	u := &models.StateUpdate{}
	var reg models.RiskRegister
	raw, err := p.llm.Generate(ctx, plannerPrompt(st, "production risk register", riskShape), 1200)
	if err == nil {
		err = DecodeJSON(raw, &reg)
	}
	if err == nil && len(reg.Risks) == 0 {
		err = errors.New("no risks decoded")
	}
	if err != nil {
		p.logger.Warn("risk degraded to synthetic", "error", err)
		u.Risk = SyntheticRisks(scenes)
		u.Degraded = true
		u.AddNote("risk: synthetic fallback used")
		return u, nil
	}
	u.Risk = &reg
	u.AddNote(fmt.Sprintf("risk register: %d risk(s)", len(reg.Risks)))
	return u, nil
}

// ---------------------------------------------------------------------------
// Gates and the final pack
// ---------------------------------------------------------------------------

func (p *Pipeline) gateNode(id, title string, summarize func(*models.ProjectState) string) NodeFunc {
	return func(ctx context.Context, st *models.ProjectState) (*models.StateUpdate, error) {
		u := &models.StateUpdate{}
		if p.decisions.Decide(id, summarize(st)) == Approved {
			u.AddNote(title + " approved")
		} else {
			u.Halt = true
			u.AddNote(title + " rejected, run halted")
		}
		return u, nil
	}
}

func (p *Pipeline) productionPackNode(ctx context.Context, st *models.ProjectState) (*models.StateUpdate, error) {
	pack := RenderProductionPack(st)
	u := &models.StateUpdate{ProductionPack: &pack}
	u.AddNote("production pack assembled")
	return u, nil
}

func sceneList(st *models.ProjectState) []models.SceneDetail {
	if st.ScenePlan == nil {
		return nil
	}
	return st.ScenePlan.Scenes
}

func scenePlanSummary(st *models.ProjectState) string {
	if st.ScenePlan == nil {
		return "no scene plan available"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d scenes, %d shots\n", len(st.ScenePlan.Scenes), len(st.ScenePlan.Shots))
	for _, sc := range st.ScenePlan.Scenes {
		fmt.Fprintf(&sb, "  %s %s/%s %s (%.0fs)\n",
			sc.SceneID, sc.LocationType, sc.TimeOfDay, sc.LocationDescription, sc.DurationSec)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func reviewSummary(st *models.ProjectState) string {
	var sb strings.Builder
	present := st.ArtifactPresence()
	ready := 0
	for _, id := range []string{
		"locations_plan", "budget_estimate", "schedule_plan", "casting_suggestions",
		"props_wardrobe_list", "crew_gear_package", "legal_clearance_report", "risk_register",
	} {
		if present[id] {
			ready++
		}
	}
	fmt.Fprintf(&sb, "planning artifacts ready: %d of 8\n", ready)
	if st.Budget != nil {
		fmt.Fprintf(&sb, "budget range: %.0f to %.0f\n", st.Budget.TotalMin, st.Budget.TotalMax)
	}
	if st.Schedule != nil {
		fmt.Fprintf(&sb, "shoot days: %d\n", st.Schedule.TotalShootDays)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// ---------------------------------------------------------------------------
// Prompts. Wording stays short; the contracts are the JSON shapes.
// ---------------------------------------------------------------------------

const (
	locationsShape = `{"locations": [{"location_id": "L1", "description": "...", "type": "INT|EXT", "permits_required": true, "alternates": ["..."], "notes": "..."}], "total_locations": 0, "permits_needed": 0}`
	budgetShape    = `{"line_items": [{"category": "...", "description": "...", "min_cost": 0, "max_cost": 0}], "total_min": 0, "total_max": 0, "assumptions": ["..."], "cost_drivers": ["..."], "contingency_percent": 12.5}`
	scheduleShape  = `{"days": [{"day_number": 1, "date": "Day 1", "scene_ids": ["S1"], "location": "...", "call_time": "07:00", "wrap_time": "19:00", "notes": "..."}], "total_shoot_days": 0, "company_moves": 0, "prep_days": 2, "wrap_days": 1, "assumptions": ["..."]}`
	castingShape   = `{"roles": [{"role_id": "R1", "description": "...", "scene_ids": ["S1"], "notes": "..."}], "total_roles": 0}`
	propsShape     = `{"scenes": [{"scene_id": "S1", "props": ["..."], "wardrobe": ["..."]}], "total_items": 0}`
	crewGearShape  = `{"crew": [{"role": "...", "day_rate": 0, "days": 0}], "equipment": [{"item": "...", "description": "...", "day_rate": 0, "days": 0}], "total_crew_cost": 0, "total_equipment_cost": 0}`
	legalShape     = `{"items": [{"item": "...", "category": "...", "priority": "high|medium|low", "status": "pending|cleared", "notes": "..."}], "high_priority_count": 0, "pending_count": 0, "minors_involved": false, "drone_permits_required": false}`
	riskShape      = `{"risks": [{"risk_id": "R1", "description": "...", "category": "...", "likelihood": "high|medium|low", "impact": "high|medium|low", "mitigation": "..."}], "high_priority_count": 0}`
)

func conceptPrompt(b models.CreativeBrief) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are the creative director of an advertising agency. Develop one advertising concept for %s.\n", b.Brand)
	fmt.Fprintf(&sb, "Theme: %s\n", b.Theme)
	fmt.Fprintf(&sb, "Format: %d second spot, aspect ratio %s.\n", b.DurationSec, b.AspectRatio)
	if b.Platform != "" {
		fmt.Fprintf(&sb, "Primary platform: %s.\n", b.Platform)
	}
	if b.TargetAudience != "" {
		fmt.Fprintf(&sb, "Target audience: %s.\n", b.TargetAudience)
	}
	if b.CreativeDirection != "" {
		fmt.Fprintf(&sb, "Creative direction: %s.\n", b.CreativeDirection)
	}
	for _, c := range b.Constraints {
		fmt.Fprintf(&sb, "Constraint: %s.\n", c)
	}
	sb.WriteString("\nDescribe the big idea, the narrative arc, the tone and the closing message in three short paragraphs.")
	return sb.String()
}

func screenplayPrompt(b models.CreativeBrief, concept, style string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Write a %d second advertising screenplay for %s in the style of %s.\n\n", b.DurationSec, b.Brand, style)
	if concept != "" {
		fmt.Fprintf(&sb, "Concept:\n%s\n\n", concept)
	}
	sb.WriteString("Format EXACTLY 6 SCENES as:\n")
	sb.WriteString("SCENE <number> (<start>-<end>)\nVisuals: ...\nAction: ...\nCamera: ...\nDialogue: ...\nText on Screen: ...\n\n")
	sb.WriteString("Keep each scene under 8 seconds and make the brand payoff land in the final scene.")
	return sb.String()
}

func storyboardPrompt(b models.CreativeBrief, sp *models.Screenplay) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Create a storyboard for this %d second %s spot.\n\nScreenplay:\n", b.DurationSec, b.Brand)
	for _, sc := range sp.Scenes {
		fmt.Fprintf(&sb, "Scene %d (%ds): %s\n", sc.SceneNumber, sc.DurationSec, sc.Visuals)
	}
	sb.WriteString("\nRespond with JSON only: {\"frames\": [{\"frame_number\": 1, \"scene_number\": 1, \"description\": \"...\", \"camera\": \"...\", \"duration_sec\": 5}]}")
	return sb.String()
}

func framePrompt(fr *models.StoryboardFrame) string {
	return fmt.Sprintf("Cinematic storyboard frame, %s. Camera: %s. Clean composition, production quality.",
		fr.Description, fr.Camera)
}

func breakdownPrompt(b models.CreativeBrief, sb *models.Storyboard) string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Break this %s storyboard into a production scene plan.\n\nFrames:\n", b.Brand)
	for _, fr := range sb.Frames {
		fmt.Fprintf(&buf, "Frame %d (%.0fs): %s\n", fr.FrameNumber, fr.DurationSec, fr.Description)
	}
	buf.WriteString("\nRespond with JSON only: {\"scenes\": [{\"scene_id\": \"S1\", \"description\": \"...\", ")
	buf.WriteString("\"location_type\": \"INT|EXT\", \"time_of_day\": \"DAY|NIGHT\", \"location_description\": \"...\", ")
	buf.WriteString("\"duration_sec\": 5, \"cast_count\": 1, \"props\": [], \"wardrobe\": [], \"sfx_vfx\": [], ")
	buf.WriteString("\"dialogue_vo\": \"\", \"on_screen_text\": \"\"}], ")
	buf.WriteString("\"shots\": [{\"shot_id\": \"S1-A\", \"scene_id\": \"S1\", \"shot_type\": \"...\", \"camera_movement\": \"...\", \"duration_sec\": 5, \"description\": \"...\"}]}")
	return buf.String()
}

func plannerPrompt(st *models.ProjectState, artifact, shape string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are a line producer. Produce the %s for this %s shoot.\n\nScenes:\n",
		artifact, st.Brief.Brand)
	for _, sc := range sceneList(st) {
		fmt.Fprintf(&sb, "%s %s/%s at %s, %.0fs, cast %d: %s\n",
			sc.SceneID, sc.LocationType, sc.TimeOfDay, sc.LocationDescription,
			sc.DurationSec, sc.CastCount, sc.Description)
	}
	fmt.Fprintf(&sb, "\nRespond with JSON only, following this shape exactly:\n%s", shape)
	return sb.String()
}

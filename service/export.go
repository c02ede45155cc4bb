package service

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"BriefToPack-server/models"
)

// packSections fixes the production pack outline. The order is part of the
// document contract: client-facing packs always read in this sequence.
var packSections = []struct {
	title string
	write func(*strings.Builder, *models.ProjectState)
}{
	{"Concept", writeConceptSection},
	{"Screenplay", writeScreenplaySection},
	{"Storyboard", writeStoryboardSection},
	{"Scene Plan", writeScenePlanSection},
	{"Locations", writeLocationsSection},
	{"Budget", writeBudgetSection},
	{"Schedule", writeScheduleSection},
	{"Crew and Gear", writeCrewGearSection},
	{"Legal", writeLegalSection},
	{"Risk", writeRiskSection},
}

// RenderProductionPack assembles the client-facing markdown document. Missing
// artifacts render a stub line so the outline never changes shape.
func RenderProductionPack(st *models.ProjectState) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Production Pack: %s\n\n", st.Brief.Brand)
	fmt.Fprintf(&sb, "Theme: %s\n\n", st.Brief.Theme)
	fmt.Fprintf(&sb, "Format: %d second spot, %s", st.Brief.DurationSec, st.Brief.AspectRatio)
	if st.Brief.Platform != "" {
		fmt.Fprintf(&sb, ", %s", st.Brief.Platform)
	}
	sb.WriteString("\n")
	for i, sec := range packSections {
		fmt.Fprintf(&sb, "\n## %d. %s\n\n", i+1, sec.title)
		sec.write(&sb, st)
	}
	return sb.String()
}

const missingSection = "Not available.\n"

func writeConceptSection(sb *strings.Builder, st *models.ProjectState) {
	if st.Concept == "" {
		sb.WriteString(missingSection)
		return
	}
	sb.WriteString(strings.TrimSpace(st.Concept))
	sb.WriteString("\n")
}

func writeScreenplaySection(sb *strings.Builder, st *models.ProjectState) {
	sp := st.ScreenplayWinner
	if sp == nil {
		sb.WriteString(missingSection)
		return
	}
	fmt.Fprintf(sb, "Selected variant: %s, %d scenes, %d seconds total.\n", sp.Label, len(sp.Scenes), sp.TotalSec)
	for _, sc := range sp.Scenes {
		title := sc.Title
		if title == "" {
			title = fmt.Sprintf("Scene %d", sc.SceneNumber)
		}
		fmt.Fprintf(sb, "\n### Scene %d: %s (%ds)\n\n", sc.SceneNumber, title, sc.DurationSec)
		writeLine(sb, "Visuals", sc.Visuals)
		writeLine(sb, "Action", sc.Action)
		writeLine(sb, "Camera", sc.Camera)
		writeLine(sb, "Dialogue", sc.Dialogue)
		writeLine(sb, "Text on screen", sc.TextOnScreen)
	}
}

func writeLine(sb *strings.Builder, label, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(sb, "- %s: %s\n", label, value)
}

func writeStoryboardSection(sb *strings.Builder, st *models.ProjectState) {
	if st.Storyboard == nil || len(st.Storyboard.Frames) == 0 {
		sb.WriteString(missingSection)
		return
	}
	for _, fr := range st.Storyboard.Frames {
		fmt.Fprintf(sb, "- Frame %d (scene %d, %.0fs): %s", fr.FrameNumber, fr.SceneNumber, fr.DurationSec, fr.Description)
		if fr.Camera != "" {
			fmt.Fprintf(sb, " [%s]", fr.Camera)
		}
		sb.WriteString("\n")
		if strings.HasPrefix(fr.ImageURL, "http") {
			fmt.Fprintf(sb, "  ![Frame %d](%s)\n", fr.FrameNumber, fr.ImageURL)
		}
	}
}

func writeScenePlanSection(sb *strings.Builder, st *models.ProjectState) {
	plan := st.ScenePlan
	if plan == nil || len(plan.Scenes) == 0 {
		sb.WriteString(missingSection)
		return
	}
	fmt.Fprintf(sb, "%d scenes, %d shots.\n\n", len(plan.Scenes), len(plan.Shots))
	for _, sc := range plan.Scenes {
		fmt.Fprintf(sb, "- %s (%s/%s, %.0fs, cast %d) %s", sc.SceneID, sc.LocationType, sc.TimeOfDay, sc.DurationSec, sc.CastCount, sc.Description)
		if sc.LocationDescription != "" {
			fmt.Fprintf(sb, " @ %s", sc.LocationDescription)
		}
		sb.WriteString("\n")
	}
	if len(plan.Shots) > 0 {
		sb.WriteString("\nShot list:\n\n")
		for _, sh := range plan.Shots {
			fmt.Fprintf(sb, "- %s (%s) %s, %s, %.0fs\n", sh.ShotID, sh.SceneID, sh.ShotType, sh.CameraMovement, sh.DurationSec)
		}
	}
}

func writeLocationsSection(sb *strings.Builder, st *models.ProjectState) {
	plan := st.Locations
	if plan == nil || len(plan.Locations) == 0 {
		sb.WriteString(missingSection)
		return
	}
	fmt.Fprintf(sb, "%d location(s), %d requiring permits.\n\n", plan.TotalLocations, plan.PermitsNeeded)
	for _, loc := range plan.Locations {
		fmt.Fprintf(sb, "- %s (%s) %s", loc.LocationID, loc.Type, loc.Description)
		if loc.PermitsRequired {
			sb.WriteString(" [permits required]")
		}
		sb.WriteString("\n")
		for _, alt := range loc.Alternates {
			fmt.Fprintf(sb, "  - %s\n", alt)
		}
		if loc.Notes != "" {
			fmt.Fprintf(sb, "  - Note: %s\n", loc.Notes)
		}
	}
}

func writeBudgetSection(sb *strings.Builder, st *models.ProjectState) {
	est := st.Budget
	if est == nil || len(est.LineItems) == 0 {
		sb.WriteString(missingSection)
		return
	}
	sb.WriteString("| Category | Description | Min | Max |\n")
	sb.WriteString("|---|---|---:|---:|\n")
	for _, it := range est.LineItems {
		fmt.Fprintf(sb, "| %s | %s | $%.0f | $%.0f |\n", it.Category, it.Description, it.MinCost, it.MaxCost)
	}
	fmt.Fprintf(sb, "\n**Total: $%.0f to $%.0f** (contingency %.1f%% included)\n", est.TotalMin, est.TotalMax, est.ContingencyPercent)
	writeBullets(sb, "Assumptions", est.Assumptions)
	writeBullets(sb, "Cost drivers", est.CostDrivers)
}

func writeBullets(sb *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(sb, "\n%s:\n\n", title)
	for _, it := range items {
		fmt.Fprintf(sb, "- %s\n", it)
	}
}

func writeScheduleSection(sb *strings.Builder, st *models.ProjectState) {
	plan := st.Schedule
	if plan == nil || len(plan.Days) == 0 {
		sb.WriteString(missingSection)
		return
	}
	fmt.Fprintf(sb, "%d shoot day(s), %d prep, %d wrap, %d company move(s).\n\n",
		plan.TotalShootDays, plan.PrepDays, plan.WrapDays, plan.CompanyMoves)
	for _, day := range plan.Days {
		fmt.Fprintf(sb, "- %s: scenes %s at %s, call %s, wrap %s\n",
			day.Date, strings.Join(day.SceneIDs, ", "), day.Location, day.CallTime, day.WrapTime)
	}
	writeBullets(sb, "Assumptions", plan.Assumptions)
}

func writeCrewGearSection(sb *strings.Builder, st *models.ProjectState) {
	pack := st.CrewGear
	if pack == nil || len(pack.Crew) == 0 {
		sb.WriteString(missingSection)
		return
	}
	sb.WriteString("| Role | Day rate | Days |\n|---|---:|---:|\n")
	for _, c := range pack.Crew {
		fmt.Fprintf(sb, "| %s | $%.0f | %d |\n", c.Role, c.DayRate, c.Days)
	}
	if len(pack.Equipment) > 0 {
		sb.WriteString("\n| Equipment | Day rate | Days |\n|---|---:|---:|\n")
		for _, e := range pack.Equipment {
			fmt.Fprintf(sb, "| %s | $%.0f | %d |\n", e.Item, e.DayRate, e.Days)
		}
	}
	fmt.Fprintf(sb, "\nCrew cost $%.0f, equipment cost $%.0f.\n", pack.TotalCrewCost, pack.TotalEquipmentCost)
}

func writeLegalSection(sb *strings.Builder, st *models.ProjectState) {
	report := st.Legal
	if report == nil || len(report.Items) == 0 {
		sb.WriteString(missingSection)
		return
	}
	fmt.Fprintf(sb, "%d item(s), %d high priority, %d pending.\n\n",
		len(report.Items), report.HighPriorityCount, report.PendingCount)
	for _, it := range report.Items {
		fmt.Fprintf(sb, "- [%s/%s] %s", it.Priority, it.Status, it.Item)
		if it.Notes != "" {
			fmt.Fprintf(sb, " (%s)", it.Notes)
		}
		sb.WriteString("\n")
	}
	if report.MinorsInvolved {
		sb.WriteString("\nMinors are involved: work-permit and guardian requirements apply.\n")
	}
	if report.DronePermitsRequired {
		sb.WriteString("\nDrone work planned: aviation permits required.\n")
	}
}

func writeRiskSection(sb *strings.Builder, st *models.ProjectState) {
	reg := st.Risk
	if reg == nil || len(reg.Risks) == 0 {
		sb.WriteString(missingSection)
		return
	}
	fmt.Fprintf(sb, "%d risk(s), %d high priority.\n\n", len(reg.Risks), reg.HighPriorityCount)
	for _, r := range reg.Risks {
		fmt.Fprintf(sb, "- %s (%s, likelihood %s, impact %s): %s\n  Mitigation: %s\n",
			r.RiskID, r.Category, r.Likelihood, r.Impact, r.Description, r.Mitigation)
	}
}

type exportDocument struct {
	Project    *models.Project      `json:"project"`
	State      *models.ProjectState `json:"state"`
	ExportedAt time.Time            `json:"exported_at"`
}

// ExportJSON marshals the full project record and artifact state.
func ExportJSON(proj *models.Project, st *models.ProjectState) ([]byte, error) {
	return marshalExport(proj, st.ExportCopy())
}

func marshalExport(proj *models.Project, snap *models.ProjectState) ([]byte, error) {
	doc := exportDocument{Project: proj, State: snap, ExportedAt: time.Now().UTC()}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal export: %w", err)
	}
	return data, nil
}

// BuildZip bundles the JSON export, the rendered pack and a short README
// into a single downloadable archive.
func BuildZip(proj *models.Project, st *models.ProjectState) ([]byte, error) {
	snap := st.ExportCopy()
	data, err := marshalExport(proj, snap)
	if err != nil {
		return nil, err
	}
	pack := snap.ProductionPack
	if pack == "" {
		pack = RenderProductionPack(snap)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	files := []struct {
		name string
		body []byte
	}{
		{"project_data.json", data},
		{"production_pack.md", []byte(pack)},
		{"README.md", []byte(packReadme(proj))},
	}
	for _, f := range files {
		w, err := zw.Create(f.name)
		if err != nil {
			zw.Close()
			return nil, fmt.Errorf("create zip entry %s: %w", f.name, err)
		}
		if _, err := w.Write(f.body); err != nil {
			zw.Close()
			return nil, fmt.Errorf("write zip entry %s: %w", f.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close zip: %w", err)
	}
	return buf.Bytes(), nil
}

func packReadme(proj *models.Project) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", proj.Name)
	sb.WriteString("Production handoff bundle.\n\n")
	sb.WriteString("- production_pack.md: the client-facing pack document\n")
	sb.WriteString("- project_data.json: full project and artifact data\n\n")
	fmt.Fprintf(&sb, "Client: %s\nExported: %s\n", proj.Client, time.Now().UTC().Format(time.RFC3339))
	return sb.String()
}

// ExportToDir writes the pack and JSON export to a directory, returning the
// written paths. Used by the command-line full run.
func ExportToDir(dir string, proj *models.Project, st *models.ProjectState) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	snap := st.ExportCopy()
	pack := snap.ProductionPack
	if pack == "" {
		pack = RenderProductionPack(snap)
	}
	data, err := marshalExport(proj, snap)
	if err != nil {
		return nil, err
	}

	written := make([]string, 0, 2)
	packPath := filepath.Join(dir, "production_pack.md")
	if err := os.WriteFile(packPath, []byte(pack), 0o644); err != nil {
		return nil, fmt.Errorf("write pack: %w", err)
	}
	written = append(written, packPath)

	dataPath := filepath.Join(dir, "project_data.json")
	if err := os.WriteFile(dataPath, data, 0o644); err != nil {
		return nil, fmt.Errorf("write export: %w", err)
	}
	written = append(written, dataPath)
	return written, nil
}

package service

import (
	"fmt"
	"strings"

	"BriefToPack-server/models"
)

// Synthetic fallbacks keep the pipeline moving when generation fails. Every
// function here is a pure function of its input: no remote calls, no randomness,
// no clock reads. Outputs are tagged Synthetic with a fixed note so reviewers
// can always tell recovered content from generated content.

const syntheticNote = "Synthetic data generated after generation failure"

// shootDays is the scheduling rule shared by the schedule and crew fallbacks:
// about three scenes a day, never fewer than two days.
func shootDays(numScenes int) int {
	if numScenes <= 0 {
		return 2
	}
	return max(2, (numScenes+4)/3) // ceil((n+2)/3)
}

// SyntheticLocations derives one requirement per unique location in first-seen
// order. Exteriors need permits and a weather note; interiors get noise control.
func SyntheticLocations(scenes []models.SceneDetail) *models.LocationsPlan {
	seen := make(map[string]bool)
	locations := []models.LocationRequirement{}
	for _, sc := range scenes {
		desc := sc.LocationDescription
		if desc == "" {
			desc = "Studio"
		}
		typ := strings.ToUpper(sc.LocationType)
		if typ == "" {
			typ = "INT"
		}
		key := typ + "|" + desc
		if seen[key] {
			continue
		}
		seen[key] = true

		ext := typ == "EXT"
		notes := "Noise control"
		if ext {
			notes = "Weather dependent"
		}
		locations = append(locations, models.LocationRequirement{
			LocationID:      fmt.Sprintf("L%d", len(locations)+1),
			Description:     desc,
			Type:            typ,
			PermitsRequired: ext,
			Alternates: []string{
				"Alternate A: comparable location nearby",
				"Alternate B: studio recreation",
			},
			Notes: notes,
		})
	}

	permits := 0
	for _, l := range locations {
		if l.PermitsRequired {
			permits++
		}
	}
	return &models.LocationsPlan{
		Locations:      locations,
		TotalLocations: len(locations),
		PermitsNeeded:  permits,
		Synthetic:      true,
		Notes:          syntheticNote,
	}
}

// SyntheticBudget prices the shoot at a flat 5000 per scene split across fixed
// category fractions.
func SyntheticBudget(scenes []models.SceneDetail) *models.BudgetEstimate {
	base := float64(len(scenes)) * 5000
	items := []models.BudgetLineItem{
		{Category: "Crew", Description: "Director, DP, sound, grips", MinCost: base * 0.30, MaxCost: base * 0.40},
		{Category: "Equipment", Description: "Camera, lenses, lighting, sound", MinCost: base * 0.20, MaxCost: base * 0.30},
		{Category: "Locations", Description: "Permits and location fees", MinCost: base * 0.10, MaxCost: base * 0.15},
		{Category: "Talent", Description: "On-camera talent and extras", MinCost: base * 0.15, MaxCost: base * 0.20},
		{Category: "Post-production", Description: "Edit, color, mix, delivery", MinCost: base * 0.15, MaxCost: base * 0.20},
		{Category: "Insurance", Description: "Production insurance", MinCost: base * 0.05, MaxCost: base * 0.05},
		{Category: "Contingency", Description: "Overage buffer", MinCost: base * 0.10, MaxCost: base * 0.125},
	}
	var totalMin, totalMax float64
	for _, it := range items {
		totalMin += it.MinCost
		totalMax += it.MaxCost
	}
	return &models.BudgetEstimate{
		LineItems: items,
		TotalMin:  totalMin,
		TotalMax:  totalMax,
		Assumptions: []string{
			"Local crew, no travel days",
			"Standard production insurance",
			"No celebrity talent",
		},
		CostDrivers:        []string{"Location count", "Shoot day count", "Equipment tier"},
		ContingencyPercent: 12.5,
		Synthetic:          true,
		Notes:              syntheticNote,
	}
}

// SyntheticSchedule spreads scenes round-robin across the shoot days so every
// scene lands on exactly one day regardless of how the counts divide.
func SyntheticSchedule(scenes []models.SceneDetail) *models.SchedulePlan {
	days := shootDays(len(scenes))
	perDay := make([][]models.SceneDetail, days)
	for i, sc := range scenes {
		perDay[i%days] = append(perDay[i%days], sc)
	}

	out := make([]models.ScheduleDay, 0, days)
	for d := 0; d < days; d++ {
		ids := make([]string, 0, len(perDay[d]))
		location := "Studio"
		for i, sc := range perDay[d] {
			ids = append(ids, sc.SceneID)
			if i == 0 && sc.LocationDescription != "" {
				location = sc.LocationDescription
			}
		}
		out = append(out, models.ScheduleDay{
			DayNumber: d + 1,
			Date:      fmt.Sprintf("Day %d", d+1),
			SceneIDs:  ids,
			Location:  location,
			CallTime:  "07:00",
			WrapTime:  "19:00",
			Notes:     fmt.Sprintf("Shoot %d scene(s)", len(ids)),
		})
	}
	return &models.SchedulePlan{
		Days:           out,
		TotalShootDays: days,
		CompanyMoves:   max(1, days/2),
		PrepDays:       2,
		WrapDays:       1,
		Assumptions:    []string{"Up to 3 scenes per shoot day", "12-hour shoot days"},
		Synthetic:      true,
		Notes:          syntheticNote,
	}
}

// SyntheticCasting derives roles from the largest on-screen cast, capped at
// four named roles.
func SyntheticCasting(scenes []models.SceneDetail) *models.CastingPlan {
	maxCast := 1
	for _, sc := range scenes {
		if sc.CastCount > maxCast {
			maxCast = sc.CastCount
		}
	}
	descriptions := []string{
		"Lead: embodies the brand promise",
		"Supporting: everyday customer",
		"Supporting: skeptic turned believer",
		"Featured extra",
	}
	n := min(maxCast, len(descriptions))
	roles := make([]models.CastRole, 0, n)
	for i := 0; i < n; i++ {
		sceneIDs := []string{}
		for _, sc := range scenes {
			if sc.CastCount > i {
				sceneIDs = append(sceneIDs, sc.SceneID)
			}
		}
		roles = append(roles, models.CastRole{
			RoleID:      fmt.Sprintf("R%d", i+1),
			Description: descriptions[i],
			SceneIDs:    sceneIDs,
			Notes:       "Non-union assumed",
		})
	}
	return &models.CastingPlan{
		Roles:      roles,
		TotalRoles: len(roles),
		Synthetic:  true,
		Notes:      syntheticNote,
	}
}

// SyntheticPropsWardrobe aggregates the per-scene breakdown lists, defaulting
// empty scenes to the hero product and contemporary wardrobe.
func SyntheticPropsWardrobe(scenes []models.SceneDetail) *models.PropsWardrobeList {
	out := make([]models.ScenePropsWardrobe, 0, len(scenes))
	total := 0
	for _, sc := range scenes {
		props := sc.Props
		if len(props) == 0 {
			props = []string{"Hero product"}
		}
		wardrobe := sc.Wardrobe
		if len(wardrobe) == 0 {
			wardrobe = []string{"Contemporary casual"}
		}
		total += len(props) + len(wardrobe)
		out = append(out, models.ScenePropsWardrobe{
			SceneID:  sc.SceneID,
			Props:    props,
			Wardrobe: wardrobe,
		})
	}
	return &models.PropsWardrobeList{
		Scenes:     out,
		TotalItems: total,
		Synthetic:  true,
		Notes:      syntheticNote,
	}
}

// SyntheticCrewGear returns the fixed crew and equipment catalog priced against
// the shoot day count.
func SyntheticCrewGear(scenes []models.SceneDetail) *models.CrewGearPackage {
	days := shootDays(len(scenes))
	crew := []models.CrewMember{
		{Role: "Director", DayRate: 1500, Days: days + 2},
		{Role: "Director of Photography", DayRate: 1200, Days: days + 1},
		{Role: "Gaffer", DayRate: 650, Days: days},
		{Role: "Sound Mixer", DayRate: 600, Days: days},
		{Role: "Production Designer", DayRate: 800, Days: days + 1},
		{Role: "Hair & Makeup", DayRate: 450, Days: days},
	}
	equipment := []models.EquipmentItem{
		{Item: "Camera package", Description: "Cinema body, media, support", DayRate: 900, Days: days},
		{Item: "Lens kit", Description: "Prime set plus zoom", DayRate: 400, Days: days},
		{Item: "Lighting package", Description: "LED panels, HMIs, modifiers", DayRate: 700, Days: days},
		{Item: "Sound package", Description: "Boom, wireless lavs, recorder", DayRate: 250, Days: days},
		{Item: "Grip package", Description: "Dolly, sliders, stands, flags", DayRate: 500, Days: days},
	}
	var crewCost, gearCost float64
	for _, c := range crew {
		crewCost += c.DayRate * float64(c.Days)
	}
	for _, e := range equipment {
		gearCost += e.DayRate * float64(e.Days)
	}
	return &models.CrewGearPackage{
		Crew:               crew,
		Equipment:          equipment,
		TotalCrewCost:      crewCost,
		TotalEquipmentCost: gearCost,
		Synthetic:          true,
		Notes:              syntheticNote,
	}
}

// SyntheticLegal returns the standard clearance checklist. Drone permits flip
// on when any scene's effects mention drones.
func SyntheticLegal(scenes []models.SceneDetail) *models.LegalClearanceReport {
	items := []models.LegalItem{
		{Item: "Music licensing", Category: "licensing", Priority: "high", Status: "pending", Notes: "Sync and master rights for any track"},
		{Item: "Brand and trademark clearance", Category: "clearance", Priority: "high", Status: "pending", Notes: "Clear visible third-party marks"},
		{Item: "Location releases", Category: "releases", Priority: "medium", Status: "pending", Notes: "Signed release per location"},
		{Item: "Talent releases", Category: "releases", Priority: "high", Status: "pending", Notes: "All on-camera talent"},
		{Item: "Insurance certificates", Category: "insurance", Priority: "medium", Status: "pending", Notes: "COI for each location owner"},
	}
	high, pending := 0, 0
	for _, it := range items {
		if it.Priority == "high" {
			high++
		}
		if it.Status == "pending" {
			pending++
		}
	}
	drones := false
	for _, sc := range scenes {
		for _, fx := range sc.SfxVfx {
			if strings.Contains(strings.ToLower(fx), "drone") {
				drones = true
			}
		}
	}
	return &models.LegalClearanceReport{
		Items:                items,
		HighPriorityCount:    high,
		PendingCount:         pending,
		MinorsInvolved:       false,
		DronePermitsRequired: drones,
		Synthetic:            true,
		Notes:                syntheticNote,
	}
}

// SyntheticRisks returns the standard production risk register.
func SyntheticRisks(scenes []models.SceneDetail) *models.RiskRegister {
	risks := []models.RiskEntry{
		{RiskID: "R1", Description: "Weather disrupts exterior days", Category: "weather", Likelihood: "medium", Impact: "high", Mitigation: "Hold a cover set and monitor forecasts"},
		{RiskID: "R2", Description: "Key talent unavailable on shoot dates", Category: "talent", Likelihood: "low", Impact: "high", Mitigation: "Contract backups for principal roles"},
		{RiskID: "R3", Description: "Camera or lighting equipment failure", Category: "equipment", Likelihood: "low", Impact: "medium", Mitigation: "Carry spare body and critical spares"},
		{RiskID: "R4", Description: "Schedule overrun past wrap", Category: "schedule", Likelihood: "medium", Impact: "medium", Mitigation: "Lock the shot list and protect company moves"},
	}
	high := 0
	for _, r := range risks {
		if r.Impact == "high" {
			high++
		}
	}
	return &models.RiskRegister{
		Risks:             risks,
		HighPriorityCount: high,
		Synthetic:         true,
		Notes:             syntheticNote,
	}
}

// DerivedStoryboard builds frames straight from the winning screenplay when the
// storyboard generation step fails.
func DerivedStoryboard(sp *models.Screenplay) *models.Storyboard {
	frames := []models.StoryboardFrame{}
	for i, sc := range sp.Scenes {
		desc := sc.Visuals
		if desc == "" {
			desc = sc.Action
		}
		camera := sc.Camera
		if camera == "" {
			camera = "Medium shot"
		}
		frames = append(frames, models.StoryboardFrame{
			FrameNumber: i + 1,
			SceneNumber: sc.SceneNumber,
			Description: desc,
			Camera:      camera,
			DurationSec: float64(sc.DurationSec),
		})
	}
	return &models.Storyboard{Frames: frames, Synthetic: true, Notes: syntheticNote}
}

// DerivedScenePlan rebuilds a minimal breakdown from storyboard frames when the
// breakdown generation step fails, so the planning fan-out still has scene ids
// to work from.
func DerivedScenePlan(sb *models.Storyboard) *models.ScenePlan {
	scenes := []models.SceneDetail{}
	shots := []models.ShotDetail{}
	for i, fr := range sb.Frames {
		id := fmt.Sprintf("S%d", i+1)
		scenes = append(scenes, models.SceneDetail{
			SceneID:             id,
			Description:         fr.Description,
			LocationType:        "INT",
			TimeOfDay:           "DAY",
			LocationDescription: "Studio",
			DurationSec:         fr.DurationSec,
			CastCount:           1,
			Props:               []string{},
			Wardrobe:            []string{},
			SfxVfx:              []string{},
		})
		camera := fr.Camera
		if camera == "" {
			camera = "Static"
		}
		shots = append(shots, models.ShotDetail{
			ShotID:         id + "-A",
			SceneID:        id,
			ShotType:       "Medium",
			CameraMovement: camera,
			DurationSec:    fr.DurationSec,
			Description:    fr.Description,
		})
	}
	return &models.ScenePlan{Scenes: scenes, Shots: shots, Synthetic: true, Notes: syntheticNote}
}

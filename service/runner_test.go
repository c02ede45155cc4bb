package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"BriefToPack-server/models"
)

type runnerHarness struct {
	runner     *Runner
	projects   *models.ProjectStore
	jobs       *models.JobStore
	dispatched []string
}

// newHarness wires a runner whose dispatch just records the job id, so tests
// drive Execute explicitly the way the queue worker would.
func newHarness(t *testing.T, llmURL string, decisions DecisionProvider) *runnerHarness {
	t.Helper()
	h := &runnerHarness{
		projects: models.NewProjectStore(),
		jobs:     models.NewJobStore(),
	}
	pipe := testPipeline(llmURL, decisions)
	h.runner = NewRunner(pipe, h.projects, h.jobs, discardLogger(),
		WithDispatch(func(jobID string) error {
			h.dispatched = append(h.dispatched, jobID)
			return nil
		}))
	return h
}

func (h *runnerHarness) addProject(t *testing.T, id string) {
	t.Helper()
	b := ecoBrief()
	h.projects.Create(&models.Project{ID: id, Name: id + " campaign", Brief: &b})
}

// seedFrontHalf marks the project as having run through storyboard, so
// production-step tests do not regenerate the front of the pipeline.
func (h *runnerHarness) seedFrontHalf(t *testing.T, projectID string) *models.ProjectState {
	t.Helper()
	st, err := h.runner.StateFor(projectID)
	if err != nil {
		t.Fatalf("StateFor: %v", err)
	}
	winner := &models.Screenplay{
		Variant: 1,
		Label:   models.VariantALabel,
		Scenes:  ParseScreenplay(cannedScreenplay),
		Scores:  models.VariantAScores,
	}
	winner.TotalSec = winner.TotalDuration()
	concept := cannedConcept
	st.Apply(&models.StateUpdate{
		Concept:          &concept,
		Screenplay1:      winner,
		Screenplay2:      winner,
		ScreenplayWinner: winner,
		Storyboard:       DerivedStoryboard(winner),
	})
	return st
}

func TestStartStepValidation(t *testing.T) {
	srv, _ := cannedChatServer(t, nil)
	h := newHarness(t, srv.URL, AutoApprove{})
	h.addProject(t, "p1")

	if _, err := h.runner.StartStep("p1", "teaser"); !errors.Is(err, ErrUnknownStep) {
		t.Fatalf("unknown step: err = %v", err)
	}
	if _, err := h.runner.StartStep("missing", models.JobStepConcept); !errors.Is(err, models.ErrProjectNotFound) {
		t.Fatalf("missing project: err = %v", err)
	}

	h.projects.Create(&models.Project{ID: "bare", Name: "no brief yet"})
	var pe *PrereqError
	if _, err := h.runner.StartStep("bare", models.JobStepConcept); !errors.As(err, &pe) {
		t.Fatalf("briefless project: err = %v, want *PrereqError", err)
	} else if pe.Missing != "an attached brief" {
		t.Fatalf("missing = %q", pe.Missing)
	}

	ordering := []struct {
		step    string
		missing string
	}{
		{models.JobStepScreenplays, "a generated concept"},
		{models.JobStepStoryboard, "a selected screenplay"},
		{models.JobStepProduction, "a storyboard"},
	}
	for _, c := range ordering {
		_, err := h.runner.StartStep("p1", c.step)
		var pe *PrereqError
		if !errors.As(err, &pe) {
			t.Fatalf("step %s on fresh project: err = %v, want *PrereqError", c.step, err)
		}
		if pe.Missing != c.missing {
			t.Fatalf("step %s missing = %q, want %q", c.step, pe.Missing, c.missing)
		}
	}

	if len(h.dispatched) != 0 {
		t.Fatalf("rejected requests dispatched jobs: %v", h.dispatched)
	}
}

func TestStartStepSingleJobPerProject(t *testing.T) {
	srv, _ := cannedChatServer(t, nil)
	h := newHarness(t, srv.URL, AutoApprove{})
	h.addProject(t, "p1")

	job, err := h.runner.StartStep("p1", models.JobStepConcept)
	if err != nil {
		t.Fatalf("StartStep: %v", err)
	}
	if job.Status != models.JobStatusPending || job.Step != models.JobStepConcept {
		t.Fatalf("job = %+v", job)
	}
	if _, err := h.runner.StartStep("p1", models.JobStepConcept); !errors.Is(err, ErrJobActive) {
		t.Fatalf("second request: err = %v, want ErrJobActive", err)
	}

	proj, _ := h.projects.Get("p1")
	if proj.Status != models.ProjectStatusInProgress {
		t.Fatalf("project status = %q, want in_progress", proj.Status)
	}

	if err := h.runner.Execute(context.Background(), job.ID); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if _, err := h.runner.StartStep("p1", models.JobStepConcept); err != nil {
		t.Fatalf("request after completion: %v", err)
	}
}

func TestExecuteConceptJob(t *testing.T) {
	srv, counts := cannedChatServer(t, nil)
	h := newHarness(t, srv.URL, AutoApprove{})
	h.addProject(t, "p1")

	job, err := h.runner.StartStep("p1", models.JobStepConcept)
	if err != nil {
		t.Fatalf("StartStep: %v", err)
	}
	if err := h.runner.Execute(context.Background(), job.ID); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	done, _ := h.jobs.Get(job.ID)
	if done.Status != models.JobStatusCompleted || done.Progress != 100 || done.Message != "done" {
		t.Fatalf("job = %+v", done)
	}
	st, _ := h.runner.StateFor("p1")
	if !strings.Contains(st.Concept, "EcoPhone") {
		t.Fatalf("concept = %q", st.Concept)
	}
	proj, _ := h.projects.Get("p1")
	if proj.CurrentStep != models.StepConcept {
		t.Fatalf("current step = %q", proj.CurrentStep)
	}

	// re-delivery of a finished job is a no-op
	if err := h.runner.Execute(context.Background(), job.ID); err != nil {
		t.Fatalf("second Execute: %v", err)
	}
	if got := counts.get("concept"); got != 1 {
		t.Fatalf("concept generated %d times, want 1", got)
	}
}

func TestExecuteFatalFailureFailsJob(t *testing.T) {
	failing := map[string]bool{"concept": true}
	srv, _ := cannedChatServer(t, failing)
	h := newHarness(t, srv.URL, AutoApprove{})
	h.addProject(t, "p1")

	job, err := h.runner.StartStep("p1", models.JobStepConcept)
	if err != nil {
		t.Fatalf("StartStep: %v", err)
	}
	if err := h.runner.Execute(context.Background(), job.ID); err != nil {
		t.Fatalf("Execute should swallow run errors, got %v", err)
	}

	done, _ := h.jobs.Get(job.ID)
	if done.Status != models.JobStatusFailed || done.Message != "generation failed" {
		t.Fatalf("job = %+v", done)
	}
	if !strings.Contains(done.Error, "concept generation") {
		t.Fatalf("job error = %q", done.Error)
	}
}

func TestExecuteUnknownJob(t *testing.T) {
	srv, _ := cannedChatServer(t, nil)
	h := newHarness(t, srv.URL, AutoApprove{})
	if err := h.runner.Execute(context.Background(), "nope"); !errors.Is(err, models.ErrJobNotFound) {
		t.Fatalf("err = %v, want ErrJobNotFound", err)
	}
}

func TestCancelBeforeExecution(t *testing.T) {
	srv, counts := cannedChatServer(t, nil)
	h := newHarness(t, srv.URL, AutoApprove{})
	h.addProject(t, "p1")

	job, _ := h.runner.StartStep("p1", models.JobStepConcept)
	ok, err := h.runner.Cancel(job.ID)
	if err != nil || !ok {
		t.Fatalf("Cancel = %v, %v", ok, err)
	}
	if err := h.runner.Execute(context.Background(), job.ID); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	done, _ := h.jobs.Get(job.ID)
	if done.Status != models.JobStatusCancelled {
		t.Fatalf("status = %q", done.Status)
	}
	if got := counts.get("concept"); got != 0 {
		t.Fatalf("cancelled job still generated %d times", got)
	}
}

// A cancel that lands while the step is running wins over the step's own
// failure: the job reports cancelled, not failed.
func TestCancelDuringRunWins(t *testing.T) {
	var mu sync.Mutex
	var cancelID string
	var h *runnerHarness

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		id, harness := cancelID, h
		mu.Unlock()
		if harness != nil && id != "" {
			harness.jobs.RequestCancel(id)
		}
		http.Error(w, "upstream exploded", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	mu.Lock()
	h = newHarness(t, srv.URL, AutoApprove{})
	mu.Unlock()
	h.addProject(t, "p1")

	job, err := h.runner.StartStep("p1", models.JobStepConcept)
	if err != nil {
		t.Fatalf("StartStep: %v", err)
	}
	mu.Lock()
	cancelID = job.ID
	mu.Unlock()

	if err := h.runner.Execute(context.Background(), job.ID); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	done, _ := h.jobs.Get(job.ID)
	if done.Status != models.JobStatusCancelled {
		t.Fatalf("status = %q, want cancelled to win over the failure", done.Status)
	}
	if done.Message != "cancelled, partial artifacts kept" {
		t.Fatalf("message = %q", done.Message)
	}
}

func TestStepJobsResumeFromExistingArtifacts(t *testing.T) {
	srv, counts := cannedChatServer(t, nil)
	h := newHarness(t, srv.URL, AutoApprove{})
	h.addProject(t, "p1")
	ctx := context.Background()

	job1, err := h.runner.StartStep("p1", models.JobStepConcept)
	if err != nil {
		t.Fatalf("concept StartStep: %v", err)
	}
	if err := h.runner.Execute(ctx, job1.ID); err != nil {
		t.Fatalf("concept Execute: %v", err)
	}

	job2, err := h.runner.StartStep("p1", models.JobStepScreenplays)
	if err != nil {
		t.Fatalf("screenplays StartStep: %v", err)
	}
	if err := h.runner.Execute(ctx, job2.ID); err != nil {
		t.Fatalf("screenplays Execute: %v", err)
	}
	if got := counts.get("concept"); got != 1 {
		t.Fatalf("concept regenerated on the screenplay step: %d calls", got)
	}
	if got := counts.get("screenplay"); got != 2 {
		t.Fatalf("screenplay calls = %d, want one per variant", got)
	}

	if err := h.runner.SelectScreenplay(ctx, "p1", 2); err != nil {
		t.Fatalf("SelectScreenplay: %v", err)
	}
	st, _ := h.runner.StateFor("p1")
	if st.ScreenplayWinner == nil || st.ScreenplayWinner.Variant != 2 {
		t.Fatalf("winner = %+v", st.ScreenplayWinner)
	}
	proj, _ := h.projects.Get("p1")
	if proj.SelectedVariant != 2 || proj.CurrentStep != models.StepSelect {
		t.Fatalf("project = %+v", proj)
	}

	job3, err := h.runner.StartStep("p1", models.JobStepStoryboard)
	if err != nil {
		t.Fatalf("storyboard StartStep: %v", err)
	}
	if err := h.runner.Execute(ctx, job3.ID); err != nil {
		t.Fatalf("storyboard Execute: %v", err)
	}
	if got := counts.get("concept"); got != 1 {
		t.Fatalf("concept regenerated on the storyboard step: %d calls", got)
	}
	if got := counts.get("screenplay"); got != 2 {
		t.Fatalf("screenplays regenerated on the storyboard step: %d calls", got)
	}
	if got := counts.get("storyboard"); got != 1 {
		t.Fatalf("storyboard calls = %d, want 1", got)
	}
	if st.Storyboard == nil {
		t.Fatalf("storyboard missing after step")
	}
	proj, _ = h.projects.Get("p1")
	if proj.CurrentStep != models.StepStoryboard {
		t.Fatalf("current step = %q", proj.CurrentStep)
	}
}

func TestSelectScreenplayValidation(t *testing.T) {
	srv, _ := cannedChatServer(t, nil)
	h := newHarness(t, srv.URL, AutoApprove{})
	h.addProject(t, "p1")
	ctx := context.Background()

	if err := h.runner.SelectScreenplay(ctx, "p1", 3); err == nil || !strings.Contains(err.Error(), "variant must be 1 or 2") {
		t.Fatalf("variant 3: err = %v", err)
	}

	var pe *PrereqError
	if err := h.runner.SelectScreenplay(ctx, "p1", 1); !errors.As(err, &pe) {
		t.Fatalf("no screenplays: err = %v, want *PrereqError", err)
	}

	h.seedFrontHalf(t, "p1")
	if _, err := h.runner.StartStep("p1", models.JobStepProduction); err != nil {
		t.Fatalf("StartStep: %v", err)
	}
	if err := h.runner.SelectScreenplay(ctx, "p1", 1); !errors.Is(err, ErrJobActive) {
		t.Fatalf("busy project: err = %v, want ErrJobActive", err)
	}
}

func TestSelectScreenplayExcludesConcurrentJobs(t *testing.T) {
	srv, _ := cannedChatServer(t, nil)
	h := newHarness(t, srv.URL, AutoApprove{})
	h.addProject(t, "p1")
	h.seedFrontHalf(t, "p1")

	// Selection and job admission serialize on one lock; a raced attempt must
	// either run cleanly or see the other side's active job.
	for i := 0; i < 30; i++ {
		var wg sync.WaitGroup
		var selErr, stepErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			selErr = h.runner.SelectScreenplay(context.Background(), "p1", 1)
		}()
		go func() {
			defer wg.Done()
			job, err := h.runner.StartStep("p1", models.JobStepConcept)
			stepErr = err
			if err == nil {
				h.runner.Execute(context.Background(), job.ID)
			}
		}()
		wg.Wait()

		if selErr != nil && !errors.Is(selErr, ErrJobActive) {
			t.Fatalf("iteration %d selection: %v", i, selErr)
		}
		if stepErr != nil {
			t.Fatalf("iteration %d step: %v", i, stepErr)
		}
	}
}

func TestReplaceBriefResetsState(t *testing.T) {
	srv, _ := cannedChatServer(t, nil)
	h := newHarness(t, srv.URL, AutoApprove{})
	h.addProject(t, "p1")

	next := ecoBrief()
	next.Brand = "TerraCup"
	next.Theme = "zero-waste coffee"

	job, err := h.runner.StartStep("p1", models.JobStepConcept)
	if err != nil {
		t.Fatalf("StartStep: %v", err)
	}
	if err := h.runner.ReplaceBrief("p1", next); !errors.Is(err, ErrJobActive) {
		t.Fatalf("replace with a pending job: err = %v, want ErrJobActive", err)
	}
	if err := h.runner.Execute(context.Background(), job.ID); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	st, err := h.runner.StateFor("p1")
	if err != nil {
		t.Fatalf("StateFor: %v", err)
	}
	if !st.ArtifactPresence()["concept"] {
		t.Fatalf("concept missing after the job completed")
	}

	if err := h.runner.ReplaceBrief("p1", next); err != nil {
		t.Fatalf("ReplaceBrief: %v", err)
	}
	proj, err := h.projects.Get("p1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if proj.Brief == nil || proj.Brief.Brand != "TerraCup" {
		t.Fatalf("brief = %+v, want the replacement", proj.Brief)
	}
	if proj.CurrentStep != models.StepBrief {
		t.Fatalf("current step = %q, want %q", proj.CurrentStep, models.StepBrief)
	}

	fresh, err := h.runner.StateFor("p1")
	if err != nil {
		t.Fatalf("StateFor after replace: %v", err)
	}
	if fresh == st {
		t.Fatalf("state not reset on brief replacement")
	}
	if fresh.ArtifactPresence()["concept"] {
		t.Fatalf("old concept survived the brief replacement")
	}
	if fresh.Brief.Brand != "TerraCup" {
		t.Fatalf("state brief brand = %q, want TerraCup", fresh.Brief.Brand)
	}

	if err := h.runner.ReplaceBrief("ghost", next); !errors.Is(err, models.ErrProjectNotFound) {
		t.Fatalf("missing project: err = %v", err)
	}
}

func TestExecuteHaltedByGate(t *testing.T) {
	srv, _ := cannedChatServer(t, nil)
	h := newHarness(t, srv.URL, gateRejecter{gate: "scene_plan_gate"})
	h.addProject(t, "p1")
	st := h.seedFrontHalf(t, "p1")

	job, err := h.runner.StartStep("p1", models.JobStepProduction)
	if err != nil {
		t.Fatalf("StartStep: %v", err)
	}
	if err := h.runner.Execute(context.Background(), job.ID); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	done, _ := h.jobs.Get(job.ID)
	if done.Status != models.JobStatusCompleted {
		t.Fatalf("status = %q, want completed: rejection is an outcome, not a failure", done.Status)
	}
	if done.Message != "halted at scene_plan_gate: changes requested" {
		t.Fatalf("message = %q", done.Message)
	}
	proj, _ := h.projects.Get("p1")
	if proj.Status != models.ProjectStatusNeedsReview {
		t.Fatalf("project status = %q, want needs_review", proj.Status)
	}
	if st.ScenePlan == nil {
		t.Fatalf("scene plan produced before the gate was discarded")
	}
	if st.Locations != nil {
		t.Fatalf("planning fan-out ran past a rejected gate")
	}
}

type gateRejecter struct{ gate string }

func (g gateRejecter) Decide(gate, summary string) Decision {
	if gate == g.gate {
		return Rejected
	}
	return Approved
}

func (g gateRejecter) SelectScreenplay(a, b *models.Screenplay) int { return 1 }

// With the generation backend down entirely, a production job still completes
// on synthetic artifacts and approves the project.
func TestExecuteProductionWithBackendDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model offline", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)
	h := newHarness(t, srv.URL, AutoApprove{})
	h.addProject(t, "p1")
	st := h.seedFrontHalf(t, "p1")

	job, err := h.runner.StartStep("p1", models.JobStepProduction)
	if err != nil {
		t.Fatalf("StartStep: %v", err)
	}
	if err := h.runner.Execute(context.Background(), job.ID); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	done, _ := h.jobs.Get(job.ID)
	if done.Status != models.JobStatusCompleted || done.Progress != 100 {
		t.Fatalf("job = %+v", done)
	}
	for key, ok := range st.ArtifactPresence() {
		if !ok {
			t.Errorf("artifact %s missing", key)
		}
	}
	if !st.Budget.Synthetic || st.Budget.TotalMin > st.Budget.TotalMax {
		t.Fatalf("budget = %+v", st.Budget)
	}
	proj, _ := h.projects.Get("p1")
	if proj.Status != models.ProjectStatusApproved || proj.CurrentStep != models.StepProduction {
		t.Fatalf("project = %+v", proj)
	}
}

func TestStartStepDispatchFailure(t *testing.T) {
	srv, _ := cannedChatServer(t, nil)
	projects := models.NewProjectStore()
	jobs := models.NewJobStore()
	b := ecoBrief()
	projects.Create(&models.Project{ID: "p1", Name: "p1", Brief: &b})

	runner := NewRunner(testPipeline(srv.URL, AutoApprove{}), projects, jobs, discardLogger(),
		WithDispatch(func(string) error { return errors.New("queue unavailable") }))

	if _, err := runner.StartStep("p1", models.JobStepConcept); err == nil || !strings.Contains(err.Error(), "dispatch job") {
		t.Fatalf("err = %v", err)
	}
	list := jobs.ListForProject("p1")
	if len(list) != 1 || list[0].Status != models.JobStatusFailed || list[0].Message != "dispatch failed" {
		t.Fatalf("jobs = %+v", list)
	}
	// the failed dispatch must not leave the project locked
	if _, ok := jobs.ActiveForProject("p1"); ok {
		t.Fatalf("project still has an active job after dispatch failure")
	}
}

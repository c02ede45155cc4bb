package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"BriefToPack-server/models"

	"github.com/google/uuid"
)

var (
	// ErrJobActive rejects a second generation request while one is in flight.
	ErrJobActive = errors.New("a generation job is already running for this project")
	// ErrUnknownStep rejects step names outside the job step constants.
	ErrUnknownStep = errors.New("unknown generation step")
)

// PrereqError reports an out-of-order step request, e.g. a storyboard before a
// screenplay has been selected.
type PrereqError struct {
	Step    string
	Missing string
}

func (e *PrereqError) Error() string {
	return fmt.Sprintf("step %s requires %s", e.Step, e.Missing)
}

// PipelineRunner is the shared runner, set by InitRunner from main.go.
var PipelineRunner *Runner

// Runner executes pipeline steps for projects as jobs: one ProjectState and at
// most one running job per project. Dispatch is pluggable so the queue worker,
// tests and the command line can drive the same execution path.
type Runner struct {
	pipeline *Pipeline
	projects *models.ProjectStore
	jobs     *models.JobStore
	dispatch func(jobID string) error
	logger   *slog.Logger

	mu     sync.Mutex
	states map[string]*models.ProjectState
}

type RunnerOption func(*Runner)

// WithDispatch replaces the queue handoff, e.g. with an inline call in tests.
func WithDispatch(fn func(jobID string) error) RunnerOption {
	return func(r *Runner) { r.dispatch = fn }
}

func NewRunner(p *Pipeline, projects *models.ProjectStore, jobs *models.JobStore, logger *slog.Logger, opts ...RunnerOption) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Runner{
		pipeline: p,
		projects: projects,
		jobs:     jobs,
		dispatch: EnqueueGenerationJob,
		logger:   logger.With("component", "runner"),
		states:   make(map[string]*models.ProjectState),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func InitRunner(p *Pipeline, projects *models.ProjectStore, jobs *models.JobStore, logger *slog.Logger, opts ...RunnerOption) {
	PipelineRunner = NewRunner(p, projects, jobs, logger, opts...)
}

// Projects exposes the project repository to the HTTP layer.
func (r *Runner) Projects() *models.ProjectStore { return r.projects }

// Jobs exposes the job repository to the HTTP layer.
func (r *Runner) Jobs() *models.JobStore { return r.jobs }

// StateFor returns the project's pipeline state, creating it from the stored
// brief on first use.
func (r *Runner) StateFor(projectID string) (*models.ProjectState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stateForLocked(projectID)
}

// stateForLocked is StateFor with r.mu already held. The brief is read under
// the lock so a concurrent ReplaceBrief cannot seed the state from a record
// it is about to swap.
func (r *Runner) stateForLocked(projectID string) (*models.ProjectState, error) {
	if st, ok := r.states[projectID]; ok {
		return st, nil
	}
	proj, err := r.projects.Get(projectID)
	if err != nil {
		return nil, err
	}
	var brief models.CreativeBrief
	if proj.Brief != nil {
		brief = *proj.Brief
	}
	st := models.NewProjectState(projectID, brief)
	r.states[projectID] = st
	return st, nil
}

// DropState forgets a project's pipeline state. Used on project deletion;
// brief replacement goes through ReplaceBrief instead.
func (r *Runner) DropState(projectID string) {
	r.mu.Lock()
	delete(r.states, projectID)
	r.mu.Unlock()
}

// ReplaceBrief swaps the project's brief and drops the cached pipeline state,
// whose artifacts describe the old brief. It runs under the same admission
// lock as StartStep: a running job rejects the swap, and no job can be
// admitted mid-swap.
func (r *Runner) ReplaceBrief(projectID string, brief models.CreativeBrief) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, busy := r.jobs.ActiveForProject(projectID); busy {
		return fmt.Errorf("%w (job %s)", ErrJobActive, id)
	}
	if err := r.projects.Update(projectID, func(p *models.Project) {
		p.Brief = &brief
		p.CurrentStep = models.StepBrief
	}); err != nil {
		return err
	}
	delete(r.states, projectID)
	return nil
}

func validStep(step string) bool {
	switch step {
	case models.JobStepConcept, models.JobStepScreenplays, models.JobStepStoryboard,
		models.JobStepProduction, models.JobStepFullRun:
		return true
	}
	return false
}

// checkPrereq enforces step ordering against the current state. The runner can
// backfill missing prerequisites itself, but an explicit out-of-order request
// is a caller mistake and gets rejected instead of silently expanded.
func (r *Runner) checkPrereq(step string, st *models.ProjectState) error {
	present := st.ArtifactPresence()
	switch step {
	case models.JobStepScreenplays:
		if !present["concept"] {
			return &PrereqError{Step: step, Missing: "a generated concept"}
		}
	case models.JobStepStoryboard:
		if !present["screenplay_winner"] {
			return &PrereqError{Step: step, Missing: "a selected screenplay"}
		}
	case models.JobStepProduction:
		if !present["storyboard"] {
			return &PrereqError{Step: step, Missing: "a storyboard"}
		}
	}
	return nil
}

// StartStep validates the request, records the job and hands it to dispatch.
// The admission check and job creation are serialized so two concurrent
// requests cannot both win.
func (r *Runner) StartStep(projectID, step string) (*models.Job, error) {
	if !validStep(step) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStep, step)
	}
	proj, err := r.projects.Get(projectID)
	if err != nil {
		return nil, err
	}
	if proj.Brief == nil {
		return nil, &PrereqError{Step: step, Missing: "an attached brief"}
	}
	st, err := r.StateFor(projectID)
	if err != nil {
		return nil, err
	}
	if err := r.checkPrereq(step, st); err != nil {
		return nil, err
	}

	r.mu.Lock()
	if id, busy := r.jobs.ActiveForProject(projectID); busy {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w (job %s)", ErrJobActive, id)
	}
	job := r.jobs.Create(uuid.New().String(), projectID, step)
	r.mu.Unlock()

	if err := r.dispatch(job.ID); err != nil {
		r.jobs.Finish(job.ID, models.JobStatusFailed, "dispatch failed", err.Error())
		return nil, fmt.Errorf("dispatch job: %w", err)
	}
	r.projects.Update(projectID, func(p *models.Project) {
		if p.Status == models.ProjectStatusDraft {
			p.Status = models.ProjectStatusInProgress
		}
	})
	r.logger.Info("job accepted", "job_id", job.ID, "project_id", projectID, "step", step)
	return job, nil
}

// Cancel requests cooperative cancellation. The engine stops between nodes;
// whatever has merged stays in state.
func (r *Runner) Cancel(jobID string) (bool, error) {
	ok, err := r.jobs.RequestCancel(jobID)
	if err == nil && ok {
		r.logger.Info("job cancel requested", "job_id", jobID)
	}
	return ok, err
}

// SelectScreenplay applies a synchronous winner selection through the engine
// so the merge path stays uniform. The whole call holds the admission lock:
// the selection run is in-memory only, and a job admitted partway through
// would race the merge.
func (r *Runner) SelectScreenplay(ctx context.Context, projectID string, variant int) error {
	if variant != 1 && variant != 2 {
		return fmt.Errorf("variant must be 1 or 2, got %d", variant)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	st, err := r.stateForLocked(projectID)
	if err != nil {
		return err
	}
	present := st.ArtifactPresence()
	if !present["screenplay_1"] && !present["screenplay_2"] {
		return &PrereqError{Step: "select", Missing: "generated screenplays"}
	}
	if _, busy := r.jobs.ActiveForProject(projectID); busy {
		return ErrJobActive
	}

	g := r.pipeline.SelectionGraph(fixedSelection{choice: variant})
	eng := NewEngine(g, WithEngineLogger(r.logger))
	if _, err := eng.Run(ctx, st); err != nil {
		return err
	}
	return r.projects.Update(projectID, func(p *models.Project) {
		p.SelectedVariant = variant
		p.CurrentStep = models.StepSelect
	})
}

// fixedSelection satisfies DecisionProvider with a predetermined choice.
type fixedSelection struct{ choice int }

func (f fixedSelection) Decide(gate, summary string) Decision { return Approved }

func (f fixedSelection) SelectScreenplay(a, b *models.Screenplay) int { return f.choice }

// Execute runs a job to completion. Called by the queue worker; safe to call
// again for an already-finished job id.
func (r *Runner) Execute(ctx context.Context, jobID string) error {
	job, err := r.jobs.Get(jobID)
	if err != nil {
		return err
	}
	if job.Terminal() {
		return nil
	}
	st, err := r.StateFor(job.ProjectID)
	if err != nil {
		r.jobs.Finish(jobID, models.JobStatusFailed, "project missing", err.Error())
		return nil
	}

	r.jobs.MarkRunning(jobID)
	r.logger.Info("job started", "job_id", jobID, "project_id", job.ProjectID, "step", job.Step)

	result, runErr := r.runStep(ctx, jobID, job.Step, st)

	switch {
	case r.jobs.Cancelled(jobID):
		r.jobs.Finish(jobID, models.JobStatusCancelled, "cancelled, partial artifacts kept", "")
		r.logger.Info("job cancelled", "job_id", jobID)
	case runErr != nil:
		r.jobs.Finish(jobID, models.JobStatusFailed, "generation failed", runErr.Error())
		r.logger.Error("job failed", "job_id", jobID, "error", runErr)
	case result != nil && result.Interrupted:
		r.jobs.Finish(jobID, models.JobStatusCancelled, "interrupted", "")
		r.logger.Info("job interrupted", "job_id", jobID)
	case result != nil && result.Halted:
		r.jobs.Finish(jobID, models.JobStatusCompleted, fmt.Sprintf("halted at %s: changes requested", result.HaltedAt), "")
		r.projects.Update(job.ProjectID, func(p *models.Project) {
			p.Status = models.ProjectStatusNeedsReview
		})
		r.logger.Info("job halted by gate", "job_id", jobID, "gate", result.HaltedAt)
	default:
		r.jobs.Finish(jobID, models.JobStatusCompleted, "done", "")
		r.finishProject(job.ProjectID, job.Step, st)
		r.logger.Info("job completed", "job_id", jobID, "step", job.Step)
	}
	return nil
}

// finishProject advances the project record after a successful step.
func (r *Runner) finishProject(projectID, step string, st *models.ProjectState) {
	r.projects.Update(projectID, func(p *models.Project) {
		switch step {
		case models.JobStepConcept:
			p.CurrentStep = models.StepConcept
		case models.JobStepScreenplays:
			p.CurrentStep = models.StepScreenplays
		case models.JobStepStoryboard:
			p.CurrentStep = models.StepStoryboard
		case models.JobStepProduction, models.JobStepFullRun:
			p.CurrentStep = models.StepProduction
			if st.ArtifactPresence()["production_pack"] {
				p.Status = models.ProjectStatusApproved
			}
		}
	})
}

// phase is one engine traversal inside a job, used for composite progress.
type phase struct {
	name  string
	graph *Graph
	// skip reports whether the state already satisfies this phase.
	skip func(map[string]bool) bool
}

// runStep assembles the phases for a step and runs them in order. Later steps
// backfill missing earlier artifacts, so a storyboard job on a fresh state
// still produces a concept and screenplays first.
func (r *Runner) runStep(ctx context.Context, jobID, step string, st *models.ProjectState) (*RunResult, error) {
	p := r.pipeline
	conceptPhase := phase{"concept", p.ConceptGraph(), func(m map[string]bool) bool { return m["concept"] }}
	screenplayPhase := phase{"screenplays", p.ScreenplayGraph(), func(m map[string]bool) bool {
		return m["screenplay_1"] || m["screenplay_2"]
	}}
	selectPhase := phase{"selection", p.SelectionGraph(p.decisions), func(m map[string]bool) bool {
		return m["screenplay_winner"]
	}}
	storyboardPhase := phase{"storyboard", p.StoryboardGraph(), func(m map[string]bool) bool {
		return m["storyboard"]
	}}
	productionPhase := phase{"production", p.ProductionGraph(), nil}

	var phases []phase
	switch step {
	case models.JobStepConcept:
		// an explicit request always regenerates, no skip
		phases = []phase{{"concept", p.ConceptGraph(), nil}}
	case models.JobStepScreenplays:
		phases = []phase{conceptPhase, {"screenplays", p.ScreenplayGraph(), nil}}
	case models.JobStepStoryboard:
		phases = []phase{conceptPhase, screenplayPhase, selectPhase, {"storyboard", p.StoryboardGraph(), nil}}
	case models.JobStepProduction:
		phases = []phase{conceptPhase, screenplayPhase, selectPhase, storyboardPhase, productionPhase}
	case models.JobStepFullRun:
		phases = []phase{{"full run", p.FullGraph(), nil}}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownStep, step)
	}
	return r.runPhases(ctx, jobID, phases, st)
}

func (r *Runner) runPhases(ctx context.Context, jobID string, phases []phase, st *models.ProjectState) (*RunResult, error) {
	present := st.ArtifactPresence()
	var active []phase
	total := 0
	for _, ph := range phases {
		if ph.skip != nil && ph.skip(present) {
			continue
		}
		active = append(active, ph)
		total += ph.graph.NodeCount()
	}
	if total == 0 {
		return &RunResult{}, nil
	}

	done := 0
	var last *RunResult
	for _, ph := range active {
		if r.jobs.Cancelled(jobID) {
			return &RunResult{Interrupted: true}, nil
		}
		hooks := Hooks{
			OnNodeStart: func(id string) {
				r.jobs.SetProgress(jobID, 5+done*90/total, "running "+id)
			},
			OnNodeFinish: func(id string, status NodeStatus) {
				done++
				r.jobs.SetProgress(jobID, 5+done*90/total, fmt.Sprintf("%s %s", id, status))
			},
		}
		eng := NewEngine(ph.graph,
			WithHooks(hooks),
			WithInterrupt(func() bool { return r.jobs.Cancelled(jobID) }),
			WithEngineLogger(r.logger.With("phase", ph.name)),
		)
		result, err := eng.Run(ctx, st)
		if err != nil {
			return result, err
		}
		last = result
		if result.Halted || result.Interrupted {
			return result, nil
		}
	}
	r.jobs.SetProgress(jobID, 100, "finished")
	return last, nil
}

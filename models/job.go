package models

import (
	"errors"
	"sync"
	"time"
)

// Job status lifecycle.
const (
	// pending: job created, waiting for a worker to pick it up
	JobStatusPending = "pending"
	// running: a worker is executing the step
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
	// cancelled: requested by the user; the runner stops between nodes,
	// already-produced artifacts are kept
	JobStatusCancelled = "cancelled"
)

// Generation steps a job can execute.
const (
	JobStepConcept     = "concept"
	JobStepScreenplays = "screenplays"
	JobStepStoryboard  = "storyboard"
	JobStepProduction  = "production"
	JobStepFullRun     = "full_run"
)

// Fixed client-facing estimates returned when a job is accepted.
const (
	JobEstimatedTimeSec = 60
	JobEstimatedCost    = 0.50
)

type Job struct {
	ID            string     `json:"id"`
	ProjectID     string     `json:"project_id"`
	Step          string     `json:"step"`
	Status        string     `json:"status"`
	Progress      int        `json:"progress"`
	Message       string     `json:"message"`
	Error         string     `json:"error,omitempty"`
	EstimatedTime int        `json:"estimated_time"`
	EstimatedCost float64    `json:"estimated_cost"`
	CreatedAt     time.Time  `json:"created_at"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
}

func (j *Job) Terminal() bool {
	switch j.Status {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

var ErrJobNotFound = errors.New("models: job not found")

// JobStore is the keyed in-memory job repository.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[string]*Job)}
}

func (s *JobStore) Create(id, projectID, step string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	j := &Job{
		ID:            id,
		ProjectID:     projectID,
		Step:          step,
		Status:        JobStatusPending,
		Progress:      0,
		Message:       "queued",
		EstimatedTime: JobEstimatedTimeSec,
		EstimatedCost: JobEstimatedCost,
		CreatedAt:     time.Now(),
	}
	s.jobs[id] = j
	return s.snapshotLocked(id)
}

func (s *JobStore) Get(id string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.jobs[id]; !ok {
		return nil, ErrJobNotFound
	}
	return s.snapshotLocked(id), nil
}

func (s *JobStore) snapshotLocked(id string) *Job {
	cp := *s.jobs[id]
	return &cp
}

// MarkRunning transitions pending → running and stamps the start time.
func (s *JobStore) MarkRunning(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	if j.Status != JobStatusPending {
		return nil
	}
	now := time.Now()
	j.Status = JobStatusRunning
	j.StartedAt = &now
	j.Message = "running"
	return nil
}

// SetProgress updates progress and message. Progress never moves backwards.
func (s *JobStore) SetProgress(id string, progress int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok || j.Terminal() {
		return
	}
	if progress > j.Progress {
		if progress > 100 {
			progress = 100
		}
		j.Progress = progress
	}
	if message != "" {
		j.Message = message
	}
}

// Finish moves the job to a terminal status. Cancelled jobs stay cancelled even
// when the worker reports completion afterwards.
func (s *JobStore) Finish(id, status, message, errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return
	}
	if j.Status == JobStatusCancelled && status != JobStatusCancelled {
		return
	}
	now := time.Now()
	j.Status = status
	j.FinishedAt = &now
	if status == JobStatusCompleted {
		j.Progress = 100
	}
	if message != "" {
		j.Message = message
	}
	j.Error = errMsg
}

// RequestCancel marks a non-terminal job cancelled. The runner observes the mark
// between nodes; in-flight calls are never forcibly aborted.
func (s *JobStore) RequestCancel(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return false, ErrJobNotFound
	}
	if j.Terminal() {
		return false, nil
	}
	now := time.Now()
	j.Status = JobStatusCancelled
	j.FinishedAt = &now
	j.Message = "cancel requested"
	return true, nil
}

// Cancelled reports whether cancel was requested for the job.
func (s *JobStore) Cancelled(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	return ok && j.Status == JobStatusCancelled
}

// ActiveForProject reports whether the project already has a pending or running
// job. One job per project at a time.
func (s *JobStore) ActiveForProject(projectID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, j := range s.jobs {
		if j.ProjectID == projectID && !j.Terminal() {
			return j.ID, true
		}
	}
	return "", false
}

// ListForProject returns the project's jobs, newest first.
func (s *JobStore) ListForProject(projectID string) []*Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Job
	for id, j := range s.jobs {
		if j.ProjectID == projectID {
			out = append(out, s.snapshotLocked(id))
		}
	}
	for i := 0; i < len(out); i++ {
		for k := i + 1; k < len(out); k++ {
			if out[k].CreatedAt.After(out[i].CreatedAt) {
				out[i], out[k] = out[k], out[i]
			}
		}
	}
	return out
}

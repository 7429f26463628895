package mcp

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Sriram-PR/site-spider/pkg/models"
	"github.com/Sriram-PR/site-spider/pkg/orchestrate"
)

// JobStatus represents the current state of a check job
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// maxJobErrors caps the error messages kept on a job
const maxJobErrors = 200

// Job represents a background site check
// Target is the configured site key or the ad-hoc root URL
type Job struct {
	ID           string         `json:"id"`
	Target       string         `json:"target"`
	Status       JobStatus      `json:"status"`
	StartedAt    time.Time      `json:"started_at"`
	CompletedAt  time.Time      `json:"completed_at,omitempty"`
	Success      *bool          `json:"success,omitempty"` // nil until the crawl finished
	Pages        int            `json:"pages"`
	Links        int            `json:"links"`
	ErrorCounts  map[string]int `json:"error_counts,omitempty"`
	Errors       []string       `json:"errors,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
	RunID        string         `json:"run_id,omitempty"`

	// Internal fields
	ctx    context.Context
	cancel context.CancelFunc
}

func (j *Job) active() bool {
	return j.Status == JobStatusPending || j.Status == JobStatusRunning
}

// JobManager manages background check jobs
type JobManager struct {
	jobs     map[string]*Job
	mu       sync.RWMutex
	byTarget map[string]string // target -> jobID for running jobs
}

// NewJobManager creates a new job manager
func NewJobManager() *JobManager {
	return &JobManager{
		jobs:     make(map[string]*Job),
		byTarget: make(map[string]string),
	}
}

// CreateJob creates a new job for target, or returns the one already running for it
// created is false when an existing job was returned
func (m *JobManager) CreateJob(target string) (job *Job, created bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existingJobID, exists := m.byTarget[target]; exists {
		if existing := m.jobs[existingJobID]; existing != nil && existing.active() {
			return existing.snapshot(), false
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	job = &Job{
		ID:        uuid.New().String(),
		Target:    target,
		Status:    JobStatusPending,
		StartedAt: time.Now(),
		ctx:       ctx,
		cancel:    cancel,
	}

	m.jobs[job.ID] = job
	m.byTarget[target] = job.ID
	return job.snapshot(), true
}

// snapshot copies the exported state; caller holds mu
func (j *Job) snapshot() *Job {
	c := *j
	if j.Success != nil {
		success := *j.Success
		c.Success = &success
	}
	c.ErrorCounts = make(map[string]int, len(j.ErrorCounts))
	for k, v := range j.ErrorCounts {
		c.ErrorCounts[k] = v
	}
	c.Errors = slices.Clone(j.Errors)
	return &c
}

// GetJob retrieves a snapshot of a job by ID
func (m *JobManager) GetJob(jobID string) *Job {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if job, exists := m.jobs[jobID]; exists {
		return job.snapshot()
	}
	return nil
}

// GetJobByTarget retrieves the running job for target
func (m *JobManager) GetJobByTarget(target string) *Job {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if jobID, exists := m.byTarget[target]; exists {
		if job := m.jobs[jobID]; job != nil {
			return job.snapshot()
		}
	}
	return nil
}

// IsRunning checks if a job is currently running for target
func (m *JobManager) IsRunning(target string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if jobID, exists := m.byTarget[target]; exists {
		job := m.jobs[jobID]
		return job != nil && job.active()
	}
	return false
}

// UpdateStatus updates the status of a job
// A job that was cancelled keeps its cancelled status
func (m *JobManager) UpdateStatus(jobID string, status JobStatus, errorMsg string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, exists := m.jobs[jobID]
	if !exists || job.Status == JobStatusCancelled {
		return
	}
	job.Status = status
	if !job.active() {
		job.CompletedAt = time.Now()
		delete(m.byTarget, job.Target)
	}
	if errorMsg != "" {
		job.ErrorMessage = errorMsg
	}
}

// Complete stores the outcome of a finished check
// A crawl that found problems is still a completed job; Success tells the verdict
func (m *JobManager) Complete(jobID string, result orchestrate.SiteResult) {
	m.mu.Lock()
	job, exists := m.jobs[jobID]
	if !exists || job.Status == JobStatusCancelled {
		m.mu.Unlock()
		return
	}
	if result.Summary != nil {
		success := result.Success
		job.Success = &success
		job.Pages = result.Pages
		job.Links = result.Links
		job.ErrorCounts = result.Summary.ErrorCounts
		job.Errors = models.Messages(result.Errors)
		if len(job.Errors) > maxJobErrors {
			job.Errors = job.Errors[:maxJobErrors]
		}
		job.RunID = result.RunID
	}
	m.mu.Unlock()

	if result.Summary == nil && result.Error != nil {
		m.UpdateStatus(jobID, JobStatusFailed, result.Error.Error())
		return
	}
	m.UpdateStatus(jobID, JobStatusCompleted, "")
}

// CancelJob cancels a running job
func (m *JobManager) CancelJob(jobID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if job, exists := m.jobs[jobID]; exists && job.active() {
		job.cancel()
		job.Status = JobStatusCancelled
		job.CompletedAt = time.Now()
		delete(m.byTarget, job.Target)
		return true
	}
	return false
}

// CancelAll cancels all running jobs
func (m *JobManager) CancelAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, job := range m.jobs {
		if job.active() {
			job.cancel()
			job.Status = JobStatusCancelled
			job.CompletedAt = time.Now()
		}
	}
	m.byTarget = make(map[string]string)
}

// ListJobs returns snapshots of all jobs, oldest first
func (m *JobManager) ListJobs() []*Job {
	m.mu.RLock()
	defer m.mu.RUnlock()

	jobs := make([]*Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		jobs = append(jobs, job.snapshot())
	}
	slices.SortFunc(jobs, func(a, b *Job) int { return a.StartedAt.Compare(b.StartedAt) })
	return jobs
}

// GetContext returns the context for a job (for running the crawl)
func (m *JobManager) GetContext(jobID string) context.Context {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if job, exists := m.jobs[jobID]; exists {
		return job.ctx
	}
	return context.Background()
}

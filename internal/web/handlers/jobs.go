package handlers

import (
	"context"
	"sync"
	"time"
)

// eventChannelBuffer is the per-listener event buffer size.
const eventChannelBuffer = 100

// JobStatus represents the status of an async job.
type JobStatus string

// JobStatus constants define the lifecycle states of an async job.
const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// EnrollJob represents an async enrollment capture session.
type EnrollJob struct {
	EventBroadcaster

	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Surname     string     `json:"surname"`
	AccessLevel int        `json:"access_level"`
	Status      JobStatus  `json:"status"`
	Captured    int        `json:"captured"`
	Target      int        `json:"target"`
	SubjectID   *int64     `json:"subject_id,omitempty"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// GetStatus returns the current job status.
func (j *EnrollJob) GetStatus() JobStatus {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// SetStatus updates the job status.
func (j *EnrollJob) SetStatus(status JobStatus) {
	j.mu.Lock()
	j.Status = status
	if status == JobStatusCompleted || status == JobStatusFailed || status == JobStatusCancelled {
		now := time.Now()
		j.CompletedAt = &now
	}
	j.mu.Unlock()
}

// SetProgress updates the captured sample count.
func (j *EnrollJob) SetProgress(captured int) {
	j.mu.Lock()
	j.Captured = captured
	j.mu.Unlock()
}

// Finish marks the job completed with the enrolled subject.
func (j *EnrollJob) Finish(subjectID int64) {
	j.mu.Lock()
	j.SubjectID = &subjectID
	j.mu.Unlock()
	j.SetStatus(JobStatusCompleted)
}

// Fail marks the job failed with a reason.
func (j *EnrollJob) Fail(reason string) {
	j.mu.Lock()
	j.Error = reason
	j.mu.Unlock()
	j.SetStatus(JobStatusFailed)
}

// Cancel cancels the enrollment job.
func (j *EnrollJob) Cancel() {
	j.EventBroadcaster.Cancel()
	j.SetStatus(JobStatusCancelled)
}

// Snapshot returns a copy of the job safe for JSON encoding.
func (j *EnrollJob) Snapshot() EnrollJob {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return EnrollJob{
		ID:          j.ID,
		Name:        j.Name,
		Surname:     j.Surname,
		AccessLevel: j.AccessLevel,
		Status:      j.Status,
		Captured:    j.Captured,
		Target:      j.Target,
		SubjectID:   j.SubjectID,
		Error:       j.Error,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
	}
}

// JobEvent represents an event from a job.
type JobEvent struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// EventBroadcaster provides listener management and event broadcasting for async jobs.
// Embed this in job structs to get AddListener, RemoveListener, and SendEvent methods.
type EventBroadcaster struct {
	cancel    context.CancelFunc
	listeners []chan JobEvent
	mu        sync.RWMutex
}

// SetCancel stores the cancel function of the job's context.
func (b *EventBroadcaster) SetCancel(cancel context.CancelFunc) {
	b.mu.Lock()
	b.cancel = cancel
	b.mu.Unlock()
}

// AddListener adds an event listener.
func (b *EventBroadcaster) AddListener() chan JobEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan JobEvent, eventChannelBuffer)
	b.listeners = append(b.listeners, ch)
	return ch
}

// RemoveListener removes an event listener.
func (b *EventBroadcaster) RemoveListener(ch chan JobEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, listener := range b.listeners {
		if listener == ch {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}

// SendEvent sends an event to all listeners.
func (b *EventBroadcaster) SendEvent(event JobEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, listener := range b.listeners {
		select {
		case listener <- event:
		default:
			// Listener buffer full, skip.
		}
	}
}

// Cancel cancels the job via context and sends a cancelled event.
func (b *EventBroadcaster) Cancel() {
	b.mu.RLock()
	cancel := b.cancel
	b.mu.RUnlock()
	if cancel != nil {
		cancel()
	}
	b.SendEvent(JobEvent{Type: "cancelled", Message: "Job cancelled by user"})
}

// JobManager manages async enrollment jobs.
type JobManager struct {
	jobs map[string]*EnrollJob
	mu   sync.RWMutex
}

// NewJobManager creates a new job manager.
func NewJobManager() *JobManager {
	return &JobManager{
		jobs: make(map[string]*EnrollJob),
	}
}

// CreateJob creates a new enrollment job.
func (m *JobManager) CreateJob(id, name, surname string, accessLevel, target int) *EnrollJob {
	job := &EnrollJob{
		ID:          id,
		Name:        name,
		Surname:     surname,
		AccessLevel: accessLevel,
		Target:      target,
		Status:      JobStatusPending,
		StartedAt:   time.Now(),
	}

	m.mu.Lock()
	m.jobs[id] = job
	m.mu.Unlock()

	return job
}

// GetJob retrieves a job by ID.
func (m *JobManager) GetJob(id string) *EnrollJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.jobs[id]
}

// DeleteJob removes a job.
func (m *JobManager) DeleteJob(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.jobs, id)
}

// ListJobs returns all jobs.
func (m *JobManager) ListJobs() []*EnrollJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	jobs := make([]*EnrollJob, 0, len(m.jobs))
	for _, job := range m.jobs {
		jobs = append(jobs, job)
	}
	return jobs
}

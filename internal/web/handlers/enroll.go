package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/kozaktomas/facegate/internal/enroll"
	"github.com/kozaktomas/facegate/internal/quality"
	"github.com/kozaktomas/facegate/internal/vision"
)

// EnrollDeps bundles everything an enrollment capture session needs.
type EnrollDeps struct {
	NewSource func() (vision.FrameSource, error)
	Detector  vision.Detector
	Landmarks vision.LandmarkPredictor
	Extractor vision.Extractor
	Gate      *quality.Gate
	Enroller  *enroll.Enroller
	Options   enroll.Options
}

// EnrollHandler manages enrollment jobs over the REST API.
type EnrollHandler struct {
	jobs *JobManager
	deps EnrollDeps
}

// NewEnrollHandler creates an enrollment handler.
func NewEnrollHandler(jobs *JobManager, deps EnrollDeps) *EnrollHandler {
	return &EnrollHandler{jobs: jobs, deps: deps}
}

// EnrollRequest is the body of POST /enroll.
type EnrollRequest struct {
	Name        string `json:"name"`
	Surname     string `json:"surname"`
	AccessLevel int    `json:"access_level"`
}

// Start launches an async enrollment capture session.
func (h *EnrollHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req EnrollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Surname = strings.TrimSpace(req.Surname)
	if req.Name == "" || req.Surname == "" {
		respondError(w, http.StatusBadRequest, "name and surname are required")
		return
	}

	job := h.jobs.CreateJob(uuid.New().String(), req.Name, req.Surname, req.AccessLevel, h.deps.Options.MinSamples)

	ctx, cancel := context.WithCancel(context.Background())
	job.SetCancel(cancel)

	go h.runEnrollment(ctx, job)

	log.Printf("Started enrollment job %s for %s %s", job.ID, sanitizeForLog(req.Name), sanitizeForLog(req.Surname))
	respondJSON(w, http.StatusAccepted, job.Snapshot())
}

func (h *EnrollHandler) runEnrollment(ctx context.Context, job *EnrollJob) {
	source, err := h.deps.NewSource()
	if err != nil {
		job.Fail("failed to open frame source: " + err.Error())
		job.SendEvent(JobEvent{Type: "failed", Message: job.Error})
		return
	}
	defer source.Close()

	orchestrator := enroll.NewOrchestrator(source, h.deps.Detector, h.deps.Landmarks, h.deps.Extractor, h.deps.Gate, h.deps.Options)
	job.SetStatus(JobStatusRunning)

	forwarded := make(chan struct{})
	go func() {
		defer close(forwarded)
		for ev := range orchestrator.Events() {
			job.SetProgress(ev.Captured)
			job.SendEvent(JobEvent{Type: string(ev.Type), Message: ev.Message, Data: ev})
		}
	}()

	result, err := orchestrator.Run(ctx)
	<-forwarded
	if err != nil {
		job.Fail(err.Error())
		return
	}

	if result.State != enroll.StateCompleted {
		if ctx.Err() != nil {
			// Cancel already set the status and notified listeners.
			return
		}
		job.Fail(result.Reason)
		job.SendEvent(JobEvent{Type: "failed", Message: result.Reason})
		return
	}

	subject, err := h.deps.Enroller.Enroll(context.Background(), job.Name, job.Surname, job.AccessLevel, result.Samples)
	if err != nil {
		job.Fail("failed to store enrollment: " + err.Error())
		job.SendEvent(JobEvent{Type: "failed", Message: job.Error})
		return
	}

	job.Finish(subject.ID)
	job.SendEvent(JobEvent{Type: "enrolled", Message: "subject enrolled", Data: subject})
}

// Status returns the current state of an enrollment job.
func (h *EnrollHandler) Status(w http.ResponseWriter, r *http.Request) {
	job := h.jobs.GetJob(jobIDParam(r))
	if job == nil {
		respondError(w, http.StatusNotFound, "job not found")
		return
	}
	respondJSON(w, http.StatusOK, job.Snapshot())
}

// Events streams enrollment progress via SSE.
func (h *EnrollHandler) Events(w http.ResponseWriter, r *http.Request) {
	job := h.jobs.GetJob(jobIDParam(r))
	if job == nil {
		respondError(w, http.StatusNotFound, "job not found")
		return
	}
	streamJobEvents(w, r, job)
}

// Cancel aborts a running enrollment job.
func (h *EnrollHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	job := h.jobs.GetJob(jobIDParam(r))
	if job == nil {
		respondError(w, http.StatusNotFound, "job not found")
		return
	}
	job.Cancel()
	respondJSON(w, http.StatusOK, job.Snapshot())
}

package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// jobIDParam extracts the job ID from the URL.
func jobIDParam(r *http.Request) string {
	return chi.URLParam(r, "jobId")
}

// isJobTerminal returns true if the job status is a terminal state
func isJobTerminal(status JobStatus) bool {
	return status == JobStatusCompleted || status == JobStatusFailed || status == JobStatusCancelled
}

// streamJobEvents streams an enrollment job's progress events as SSE frames.
// A "status" frame with the full job snapshot opens the stream; the stream
// ends when the job reaches a terminal state, the client disconnects, or the
// event channel closes.
func streamJobEvents(w http.ResponseWriter, r *http.Request, job *EnrollJob) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	eventCh := job.AddListener()
	defer job.RemoveListener(eventCh)

	sendSSEEvent(w, flusher, "status", job.Snapshot())

	for {
		select {
		case <-r.Context().Done():
			return
		case event, open := <-eventCh:
			if !open {
				return
			}
			sendSSEEvent(w, flusher, event.Type, event)
			if isJobTerminal(job.GetStatus()) {
				return
			}
		}
	}
}

// sendSSEEvent writes a single SSE event frame and flushes it.
func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, eventType string, data any) {
	jsonData, _ := json.Marshal(data)
	_, _ = io.WriteString(w, "event: "+eventType+"\n")
	_, _ = io.WriteString(w, "data: ")
	_, _ = w.Write(jsonData)
	_, _ = io.WriteString(w, "\n\n")
	flusher.Flush()
}

package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/kozaktomas/facegate/internal/database"
)

const defaultLogLimit = 100

// LogResponse represents an access log entry in API responses.
type LogResponse struct {
	ID         int64    `json:"id"`
	SubjectID  *int64   `json:"subject_id,omitempty"`
	AccessType string   `json:"access_type"`
	Result     string   `json:"result"`
	Confidence *float64 `json:"confidence,omitempty"`
	Timestamp  string   `json:"timestamp"`
}

// LogsHandler serves the access log API.
type LogsHandler struct {
	store database.AccessLogStore
}

// NewLogsHandler creates an access log handler.
func NewLogsHandler(store database.AccessLogStore) *LogsHandler {
	return &LogsHandler{store: store}
}

// Recent returns the latest access log entries, newest first.
func (h *LogsHandler) Recent(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = defaultLogLimit
	}

	entries, err := h.store.RecentAccessLogs(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load access logs")
		return
	}

	response := make([]LogResponse, len(entries))
	for i, entry := range entries {
		response[i] = LogResponse{
			ID:         entry.ID,
			SubjectID:  entry.SubjectID,
			AccessType: string(entry.AccessType),
			Result:     string(entry.Result),
			Confidence: entry.Confidence,
			Timestamp:  entry.Timestamp.Format(time.RFC3339),
		}
	}
	respondJSON(w, http.StatusOK, response)
}

package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/facegate/internal/cache"
	"github.com/kozaktomas/facegate/internal/database"
)

// SubjectResponse represents an enrolled subject in API responses.
type SubjectResponse struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Surname     string    `json:"surname"`
	PhotoPath   string    `json:"photo_path,omitempty"`
	AccessLevel int       `json:"access_level"`
	CreatedAt   time.Time `json:"created_at"`
	Templates   int       `json:"templates,omitempty"`
}

func subjectToResponse(s database.Subject) SubjectResponse {
	return SubjectResponse{
		ID:          s.ID,
		Name:        s.Name,
		Surname:     s.Surname,
		PhotoPath:   s.PhotoPath,
		AccessLevel: s.AccessLevel,
		CreatedAt:   s.CreatedAt,
	}
}

// SubjectsHandler serves the enrolled subjects API.
type SubjectsHandler struct {
	store database.Store
	cache *cache.DescriptorCache
}

// NewSubjectsHandler creates a subjects handler.
func NewSubjectsHandler(store database.Store, descriptorCache *cache.DescriptorCache) *SubjectsHandler {
	return &SubjectsHandler{store: store, cache: descriptorCache}
}

// List returns all enrolled subjects.
func (h *SubjectsHandler) List(w http.ResponseWriter, r *http.Request) {
	subjects, err := h.store.ListSubjects(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list subjects")
		return
	}

	response := make([]SubjectResponse, len(subjects))
	for i := range subjects {
		response[i] = subjectToResponse(subjects[i])
	}
	respondJSON(w, http.StatusOK, response)
}

// Get returns one subject with its template count.
func (h *SubjectsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := subjectIDParam(w, r)
	if !ok {
		return
	}

	subject, err := h.store.GetSubject(r.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, "subject not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to get subject")
		return
	}

	response := subjectToResponse(*subject)
	if templates, err := h.store.TemplatesBySubject(r.Context(), id); err == nil {
		response.Templates = len(templates)
	}
	respondJSON(w, http.StatusOK, response)
}

// Delete removes a subject and its templates.
func (h *SubjectsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := subjectIDParam(w, r)
	if !ok {
		return
	}

	if err := h.store.DeleteSubject(r.Context(), id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, "subject not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to delete subject")
		return
	}

	if h.cache != nil {
		h.cache.Invalidate()
	}
	respondJSON(w, http.StatusOK, map[string]int64{"deleted": id})
}

func subjectIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "invalid subject ID")
		return 0, false
	}
	return id, true
}

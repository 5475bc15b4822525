package handlers

import (
	"net/http"

	"github.com/kozaktomas/facegate/internal/biometric"
	"github.com/kozaktomas/facegate/internal/cache"
	"github.com/kozaktomas/facegate/internal/database"
)

// StatsHandler reports population and cache statistics.
type StatsHandler struct {
	store   database.Store
	cache   *cache.DescriptorCache
	matcher *biometric.Matcher
}

// NewStatsHandler creates a stats handler.
func NewStatsHandler(store database.Store, descriptorCache *cache.DescriptorCache, matcher *biometric.Matcher) *StatsHandler {
	return &StatsHandler{store: store, cache: descriptorCache, matcher: matcher}
}

// StatsResponse summarizes the enrolled population.
type StatsResponse struct {
	Subjects      int     `json:"subjects"`
	Templates     int     `json:"templates"`
	CacheSize     int     `json:"cache_size"`
	CacheAgeSecs  float64 `json:"cache_age_seconds"`
	Threshold     float64 `json:"threshold"`
	DescriptorDim int     `json:"descriptor_dim"`
}

// Get returns the current statistics.
func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	subjects, err := h.store.ListSubjects(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load subjects")
		return
	}
	templates, err := h.store.CountTemplates(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to count templates")
		return
	}

	response := StatsResponse{
		Subjects:      len(subjects),
		Templates:     templates,
		Threshold:     h.matcher.Threshold(),
		DescriptorDim: biometric.DescriptorDim,
	}
	if snap, err := h.cache.Current(r.Context()); err == nil {
		response.CacheSize = snap.Size()
		response.CacheAgeSecs = snap.Age().Seconds()
	}
	respondJSON(w, http.StatusOK, response)
}

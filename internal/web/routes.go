package web

import (
	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/facegate/internal/identify"
	"github.com/kozaktomas/facegate/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	identifier := identify.NewIdentifier(s.deps.Cache, s.deps.Matcher, s.deps.Store)
	verifier := identify.NewVerifier(s.deps.Store, s.deps.Matcher)

	subjectsHandler := handlers.NewSubjectsHandler(s.deps.Store, s.deps.Cache)
	logsHandler := handlers.NewLogsHandler(s.deps.Store)
	statsHandler := handlers.NewStatsHandler(s.deps.Store, s.deps.Cache, s.deps.Matcher)
	enrollHandler := handlers.NewEnrollHandler(s.jobManager, s.deps.Enroll)
	identifyHandler := handlers.NewIdentifyHandler(
		identifier,
		verifier,
		s.deps.Enroll.Detector,
		s.deps.Enroll.Extractor,
		s.config.Recognition.MaxFacesPerFrame,
	)

	// Health check
	s.router.Get("/api/v1/health", handlers.HealthCheck)

	// API routes
	s.router.Route("/api/v1", func(r chi.Router) {
		// Subjects
		r.Get("/subjects", subjectsHandler.List)
		r.Get("/subjects/{id}", subjectsHandler.Get)
		r.Delete("/subjects/{id}", subjectsHandler.Delete)
		r.Post("/subjects/{id}/verify", identifyHandler.Verify)

		// Identification
		r.Post("/identify", identifyHandler.Identify)

		// Enrollment (long-running capture sessions)
		r.Post("/enroll", enrollHandler.Start)
		r.Get("/enroll/{jobId}", enrollHandler.Status)
		r.Get("/enroll/{jobId}/events", enrollHandler.Events)
		r.Delete("/enroll/{jobId}", enrollHandler.Cancel)

		// Audit and stats
		r.Get("/logs", logsHandler.Recent)
		r.Get("/stats", statsHandler.Get)
	})
}

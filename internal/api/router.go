package api

import (
	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced; it covers the
// SSE stream and uploads as well.
func NewRouter(svc Services, authEnabled bool, token string) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Graph and view sessions.
	r.Get("/graph", h.Graph)
	r.Get("/graph/stats", h.GraphStats)
	r.Route("/graph/views", func(r chi.Router) {
		r.Post("/", h.CreateView)
		r.Get("/{id}", h.GetView)
		r.Patch("/{id}/filter", h.FilterView)
		r.Post("/{id}/pointer", h.PointerView)
		r.Post("/{id}/tick", h.TickView)
		r.Get("/{id}/render.{format}", h.RenderView)
		r.Delete("/{id}", h.DeleteView)
	})

	// Decision ledger.
	r.Get("/decisions", h.ListDecisions)
	r.Post("/decisions", h.CreateDecision)
	r.Route("/decisions/{id}", func(r chi.Router) {
		r.Get("/", h.GetDecision)
		r.Put("/", h.EditDecision)
		r.Post("/duplicate", h.DuplicateDecision)
		r.Post("/deprecate", h.DeprecateDecision)
		r.Patch("/status", h.SetDecisionStatus)
		r.Post("/stakeholders", h.AssignStakeholders)
		r.Post("/acknowledgments/{personID}", h.Acknowledge)
	})
	r.Get("/propagation", h.Propagation)

	// Organisation.
	r.Get("/persons", h.ListPersons)
	r.Post("/persons", h.CreatePerson)
	r.Get("/persons/{id}", h.GetPerson)
	r.Get("/teams", h.ListTeams)
	r.Post("/teams", h.CreateTeam)
	r.Get("/teams/{id}", h.GetTeam)
	r.Get("/projects", h.ListProjects)
	r.Post("/projects", h.CreateProject)
	r.Get("/projects/{id}", h.GetProject)
	r.Get("/relationships", h.ListRelationships)
	r.Post("/relationships", h.CreateRelationship)
	r.Get("/conflicts", h.ListConflicts)
	r.Post("/conflicts", h.ReportConflict)
	r.Patch("/conflicts/{id}", h.SetConflictStatus)
	r.Get("/activity", h.Activity)
	r.Get("/metrics/dashboard", h.Dashboard)

	// Ingestion and AI.
	r.Post("/extract-entities", h.ExtractEntities)
	r.Post("/ingest/commit", h.CommitExtraction)
	r.Post("/extract-pdf", h.ExtractPDF)
	r.Post("/ingest/file", h.IngestFile)
	r.Post("/query-ai", h.QueryAI)
	r.Post("/transcribe", h.Transcribe)
	r.Post("/voice/token", h.VoiceToken)

	// Stored uploads.
	r.Get("/uploads", h.ListUploads)
	r.Get("/uploads/*", h.ServeUpload)
	r.Head("/uploads/*", h.StatUpload)

	if svc.Events != nil {
		r.Get("/events", svc.Events.ServeHTTP)
	}

	return r
}

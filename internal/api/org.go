package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/alignos/internal/models"
	"github.com/starford/alignos/internal/org"
)

func queryLimit(r *http.Request) int {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	return limit
}

// ListPersons handles GET /api/persons.
//
//	@Summary		List people
//	@Tags			org
//	@Produce		json
//	@Param			limit	query		int	false	"Max results"
//	@Success		200		{object}	map[string][]models.Person
//	@Security		BearerAuth
//	@Router			/persons [get]
func (h *Handler) ListPersons(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.Org.ListPersons(r.Context(), queryLimit(r))
	if err != nil {
		writeError(w, "list persons", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"persons": items})
}

// CreatePerson handles POST /api/persons.
//
//	@Summary		Create a person
//	@Tags			org
//	@Accept			json
//	@Produce		json
//	@Param			body	body		org.PersonInput	true	"Person"
//	@Success		201		{object}	models.Person
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/persons [post]
func (h *Handler) CreatePerson(w http.ResponseWriter, r *http.Request) {
	var in org.PersonInput
	if !decodeJSON(w, r, &in) {
		return
	}
	p, err := h.svc.Org.CreatePerson(r.Context(), in)
	if err != nil {
		writeError(w, "create person", err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// GetPerson handles GET /api/persons/{id}.
//
//	@Summary		Get a person
//	@Tags			org
//	@Produce		json
//	@Param			id	path		string	true	"Person id"
//	@Success		200	{object}	models.Person
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/persons/{id} [get]
func (h *Handler) GetPerson(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Org.GetPerson(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "get person", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// ListTeams handles GET /api/teams.
//
//	@Summary		List teams
//	@Tags			org
//	@Produce		json
//	@Success		200	{object}	map[string][]models.Team
//	@Security		BearerAuth
//	@Router			/teams [get]
func (h *Handler) ListTeams(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.Org.ListTeams(r.Context())
	if err != nil {
		writeError(w, "list teams", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"teams": items})
}

// CreateTeam handles POST /api/teams.
//
//	@Summary		Create a team
//	@Tags			org
//	@Accept			json
//	@Produce		json
//	@Param			body	body		org.TeamInput	true	"Team"
//	@Success		201		{object}	models.Team
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/teams [post]
func (h *Handler) CreateTeam(w http.ResponseWriter, r *http.Request) {
	var in org.TeamInput
	if !decodeJSON(w, r, &in) {
		return
	}
	t, err := h.svc.Org.CreateTeam(r.Context(), in)
	if err != nil {
		writeError(w, "create team", err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// GetTeam handles GET /api/teams/{id}.
//
//	@Summary		Get a team
//	@Tags			org
//	@Produce		json
//	@Param			id	path		string	true	"Team id"
//	@Success		200	{object}	models.Team
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/teams/{id} [get]
func (h *Handler) GetTeam(w http.ResponseWriter, r *http.Request) {
	t, err := h.svc.Org.GetTeam(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "get team", err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// ListProjects handles GET /api/projects.
//
//	@Summary		List projects
//	@Tags			org
//	@Produce		json
//	@Param			limit	query		int	false	"Max results"
//	@Success		200		{object}	map[string][]models.Project
//	@Security		BearerAuth
//	@Router			/projects [get]
func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.Org.ListProjects(r.Context(), queryLimit(r))
	if err != nil {
		writeError(w, "list projects", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"projects": items})
}

// CreateProject handles POST /api/projects.
//
//	@Summary		Create a project
//	@Tags			org
//	@Accept			json
//	@Produce		json
//	@Param			body	body		org.ProjectInput	true	"Project"
//	@Success		201		{object}	models.Project
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/projects [post]
func (h *Handler) CreateProject(w http.ResponseWriter, r *http.Request) {
	var in org.ProjectInput
	if !decodeJSON(w, r, &in) {
		return
	}
	p, err := h.svc.Org.CreateProject(r.Context(), in)
	if err != nil {
		writeError(w, "create project", err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// GetProject handles GET /api/projects/{id}.
//
//	@Summary		Get a project
//	@Tags			org
//	@Produce		json
//	@Param			id	path		string	true	"Project id"
//	@Success		200	{object}	models.Project
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/projects/{id} [get]
func (h *Handler) GetProject(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Org.GetProject(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "get project", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// ListRelationships handles GET /api/relationships.
//
//	@Summary		List explicit relationships
//	@Tags			org
//	@Produce		json
//	@Success		200	{object}	map[string][]models.Relationship
//	@Security		BearerAuth
//	@Router			/relationships [get]
func (h *Handler) ListRelationships(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.Org.ListRelationships(r.Context())
	if err != nil {
		writeError(w, "list relationships", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"relationships": items})
}

// CreateRelationship handles POST /api/relationships. The type defaults to
// relates_to; endpoints are stored as given.
//
//	@Summary		Create an explicit relationship
//	@Tags			org
//	@Accept			json
//	@Produce		json
//	@Param			body	body		models.Relationship	true	"Relationship"
//	@Success		201		{object}	models.Relationship
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/relationships [post]
func (h *Handler) CreateRelationship(w http.ResponseWriter, r *http.Request) {
	var rel models.Relationship
	if !decodeJSON(w, r, &rel) {
		return
	}
	rel.ID = ""
	if rel.RelationshipType == "" {
		rel.RelationshipType = models.RelRelatesTo
	}
	if err := h.svc.Org.CreateRelationship(r.Context(), &rel); err != nil {
		writeError(w, "create relationship", err)
		return
	}
	writeJSON(w, http.StatusCreated, rel)
}

// ListConflicts handles GET /api/conflicts.
//
//	@Summary		List conflicts with status counts
//	@Tags			conflicts
//	@Produce		json
//	@Success		200	{object}	org.ConflictList
//	@Security		BearerAuth
//	@Router			/conflicts [get]
func (h *Handler) ListConflicts(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Org.ListConflicts(r.Context())
	if err != nil {
		writeError(w, "list conflicts", err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// ReportConflict handles POST /api/conflicts. Detection happens outside
// this service; this records its findings.
//
//	@Summary		Record a detected conflict
//	@Tags			conflicts
//	@Accept			json
//	@Produce		json
//	@Param			body	body		org.ConflictInput	true	"Conflict"
//	@Success		201		{object}	models.Conflict
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/conflicts [post]
func (h *Handler) ReportConflict(w http.ResponseWriter, r *http.Request) {
	var in org.ConflictInput
	if !decodeJSON(w, r, &in) {
		return
	}
	c, err := h.svc.Org.ReportConflict(r.Context(), in)
	if err != nil {
		writeError(w, "report conflict", err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// SetConflictStatus handles PATCH /api/conflicts/{id}.
//
//	@Summary		Move a conflict through review
//	@Tags			conflicts
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string					true	"Conflict id"
//	@Param			body	body		ConflictStatusRequest	true	"Status"
//	@Success		200		{object}	models.Conflict
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/conflicts/{id} [patch]
func (h *Handler) SetConflictStatus(w http.ResponseWriter, r *http.Request) {
	var req ConflictStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	c, err := h.svc.Org.SetConflictStatus(r.Context(), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		writeError(w, "set conflict status", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// Activity handles GET /api/activity.
//
//	@Summary		Recent activity with entity names
//	@Tags			activity
//	@Produce		json
//	@Param			limit	query		int	false	"Max events (default 10)"
//	@Success		200		{object}	map[string][]org.ActivityItem
//	@Security		BearerAuth
//	@Router			/activity [get]
func (h *Handler) Activity(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.Org.Activity(r.Context(), queryLimit(r))
	if err != nil {
		writeError(w, "activity", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"activity": items})
}

// Dashboard handles GET /api/metrics/dashboard.
//
//	@Summary		Dashboard counts
//	@Tags			activity
//	@Produce		json
//	@Success		200	{object}	org.Dashboard
//	@Security		BearerAuth
//	@Router			/metrics/dashboard [get]
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.Org.Dashboard(r.Context())
	if err != nil {
		writeError(w, "dashboard", err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

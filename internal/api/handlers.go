package api

import (
	"bytes"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/alignos/internal/graph"
	"github.com/starford/alignos/internal/graphview"
	"github.com/starford/alignos/internal/ledger"
	"github.com/starford/alignos/internal/models"
)

// topInfluencers is how many nodes GraphStats ranks.
const topInfluencers = 5

// Handler holds API route handlers.
type Handler struct {
	svc Services
}

// NewHandler creates a new Handler.
func NewHandler(svc Services) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) loadGraph(r *http.Request) (*graph.Graph, error) {
	snap, err := h.svc.Snapshots.Snapshot(r.Context())
	if err != nil {
		return nil, err
	}
	return graph.Build(snap), nil
}

// Graph handles GET /api/graph.
//
//	@Summary		Get the organisation graph
//	@Tags			graph
//	@Produce		json
//	@Param			q		query		string	false	"Label search"
//	@Param			type	query		string	false	"Entity type"	Enums(all, person, team, project, decision)
//	@Success		200		{object}	GraphResponse
//	@Security		BearerAuth
//	@Router			/graph [get]
func (h *Handler) Graph(w http.ResponseWriter, r *http.Request) {
	g, err := h.loadGraph(r)
	if err != nil {
		writeError(w, "graph", err)
		return
	}
	q := r.URL.Query()
	g = graph.Filter(g, q.Get("q"), q.Get("type"))
	writeJSON(w, http.StatusOK, GraphResponse{Nodes: g.Nodes, Links: g.Links})
}

// GraphStats handles GET /api/graph/stats.
//
//	@Summary		Graph counts, components and top nodes by PageRank
//	@Tags			graph
//	@Produce		json
//	@Success		200	{object}	graph.Summary
//	@Security		BearerAuth
//	@Router			/graph/stats [get]
func (h *Handler) GraphStats(w http.ResponseWriter, r *http.Request) {
	g, err := h.loadGraph(r)
	if err != nil {
		writeError(w, "graph stats", err)
		return
	}
	writeJSON(w, http.StatusOK, graph.Stats(g, topInfluencers))
}

// CreateView handles POST /api/graph/views.
//
//	@Summary		Open a server-side graph view
//	@Tags			graph
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateViewRequest	true	"View options"
//	@Success		201		{object}	graphview.Frame
//	@Security		BearerAuth
//	@Router			/graph/views [post]
func (h *Handler) CreateView(w http.ResponseWriter, r *http.Request) {
	var req CreateViewRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	f, err := h.svc.Views.Create(r.Context(), req.Query, req.Type, req.Width, req.Height)
	if err != nil {
		writeError(w, "create view", err)
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

// GetView handles GET /api/graph/views/{id}.
//
//	@Summary		Get the current frame of a graph view
//	@Tags			graph
//	@Produce		json
//	@Param			id	path		string	true	"Session id"
//	@Success		200	{object}	graphview.Frame
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/graph/views/{id} [get]
func (h *Handler) GetView(w http.ResponseWriter, r *http.Request) {
	f, err := h.svc.Views.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "get view", err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// FilterView handles PATCH /api/graph/views/{id}/filter.
//
//	@Summary		Re-filter a graph view
//	@Tags			graph
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string				true	"Session id"
//	@Param			body	body		FilterViewRequest	true	"Filter"
//	@Success		200		{object}	graphview.Frame
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/graph/views/{id}/filter [patch]
func (h *Handler) FilterView(w http.ResponseWriter, r *http.Request) {
	var req FilterViewRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	f, err := h.svc.Views.Filter(r.Context(), chi.URLParam(r, "id"), req.Query, req.Type)
	if err != nil {
		writeError(w, "filter view", err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// PointerView handles POST /api/graph/views/{id}/pointer.
//
//	@Summary		Feed a pointer event to a graph view
//	@Description	A completed shift-drag between two nodes creates a relates_to relationship.
//	@Tags			graph
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string					true	"Session id"
//	@Param			body	body		graphview.PointerEvent	true	"Pointer event"
//	@Success		200		{object}	graphview.Frame
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/graph/views/{id}/pointer [post]
func (h *Handler) PointerView(w http.ResponseWriter, r *http.Request) {
	var ev graphview.PointerEvent
	if !decodeJSON(w, r, &ev) {
		return
	}
	f, err := h.svc.Views.Pointer(r.Context(), chi.URLParam(r, "id"), ev)
	if err != nil {
		writeError(w, "pointer", err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// TickView handles POST /api/graph/views/{id}/tick.
//
//	@Summary		Advance a graph view's layout
//	@Description	With restart set, the layout is reheated to full energy first.
//	@Tags			graph
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string		true	"Session id"
//	@Param			body	body		TickRequest	true	"Steps"
//	@Success		200		{object}	graphview.Frame
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/graph/views/{id}/tick [post]
func (h *Handler) TickView(w http.ResponseWriter, r *http.Request) {
	var req TickRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	tick := h.svc.Views.Tick
	if req.Restart {
		tick = h.svc.Views.Relayout
	}
	f, err := tick(r.Context(), chi.URLParam(r, "id"), req.Ticks)
	if err != nil {
		writeError(w, "tick", err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// RenderView handles GET /api/graph/views/{id}/render.{svg,png}.
//
//	@Summary		Render a graph view as SVG or PNG
//	@Tags			graph
//	@Produce		image/svg+xml,image/png
//	@Param			id		path		string	true	"Session id"
//	@Param			format	path		string	true	"Image format"	Enums(svg, png)
//	@Success		200		{file}		file
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/graph/views/{id}/render.{format} [get]
func (h *Handler) RenderView(w http.ResponseWriter, r *http.Request) {
	format := chi.URLParam(r, "format")
	var buf bytes.Buffer
	if err := h.svc.Views.Render(r.Context(), chi.URLParam(r, "id"), format, &buf); err != nil {
		writeError(w, "render view", err)
		return
	}
	ct := "image/png"
	if format == "svg" {
		ct = "image/svg+xml"
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(buf.Bytes())
}

// DeleteView handles DELETE /api/graph/views/{id}.
//
//	@Summary		Close a graph view
//	@Tags			graph
//	@Param			id	path	string	true	"Session id"
//	@Success		204
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/graph/views/{id} [delete]
func (h *Handler) DeleteView(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Views.Delete(chi.URLParam(r, "id")); err != nil {
		writeError(w, "delete view", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListDecisions handles GET /api/decisions.
//
//	@Summary		List decisions with versions and acknowledgment totals
//	@Tags			decisions
//	@Produce		json
//	@Param			search	query		string	false	"Title or description search"
//	@Param			status	query		string	false	"Status"	Enums(draft, active, superseded, deprecated)
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	DecisionListResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/decisions [get]
func (h *Handler) ListDecisions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	items, err := h.svc.Ledger.List(r.Context(), ledger.Filter{
		Search: q.Get("search"),
		Status: models.DecisionStatus(q.Get("status")),
		Limit:  limit,
	})
	if err != nil {
		writeError(w, "list decisions", err)
		return
	}
	writeJSON(w, http.StatusOK, DecisionListResponse{Decisions: items, Total: len(items)})
}

// CreateDecision handles POST /api/decisions.
//
//	@Summary		Create a decision at version 1
//	@Tags			decisions
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ledger.CreateInput	true	"Decision"
//	@Success		201		{object}	models.Decision
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/decisions [post]
func (h *Handler) CreateDecision(w http.ResponseWriter, r *http.Request) {
	var in ledger.CreateInput
	if !decodeJSON(w, r, &in) {
		return
	}
	d, err := h.svc.Ledger.Create(r.Context(), in)
	if err != nil {
		writeError(w, "create decision", err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

// GetDecision handles GET /api/decisions/{id}.
//
//	@Summary		Get a decision with its versions and acknowledgments
//	@Tags			decisions
//	@Produce		json
//	@Param			id	path		string	true	"Decision id"
//	@Success		200	{object}	ledger.Detail
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/decisions/{id} [get]
func (h *Handler) GetDecision(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.Ledger.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "get decision", err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// EditDecision handles PUT /api/decisions/{id}.
//
//	@Summary		Edit a decision, appending the next version
//	@Tags			decisions
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string				true	"Decision id"
//	@Param			body	body		ledger.EditInput	true	"New content"
//	@Success		200		{object}	models.DecisionVersion
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/decisions/{id} [put]
func (h *Handler) EditDecision(w http.ResponseWriter, r *http.Request) {
	var in ledger.EditInput
	if !decodeJSON(w, r, &in) {
		return
	}
	v, err := h.svc.Ledger.Edit(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, "edit decision", err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// DuplicateDecision handles POST /api/decisions/{id}/duplicate.
//
//	@Summary		Copy a decision as a new draft
//	@Tags			decisions
//	@Produce		json
//	@Param			id	path		string	true	"Decision id"
//	@Success		201	{object}	models.Decision
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/decisions/{id}/duplicate [post]
func (h *Handler) DuplicateDecision(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.Ledger.Duplicate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "duplicate decision", err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

// DeprecateDecision handles POST /api/decisions/{id}/deprecate.
//
//	@Summary		Deprecate a decision
//	@Tags			decisions
//	@Produce		json
//	@Param			id	path		string	true	"Decision id"
//	@Success		200	{object}	models.Decision
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/decisions/{id}/deprecate [post]
func (h *Handler) DeprecateDecision(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.Ledger.Deprecate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "deprecate decision", err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// SetDecisionStatus handles PATCH /api/decisions/{id}/status.
//
//	@Summary		Change a decision's status
//	@Tags			decisions
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string					true	"Decision id"
//	@Param			body	body		DecisionStatusRequest	true	"Status"
//	@Success		200		{object}	models.Decision
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/decisions/{id}/status [patch]
func (h *Handler) SetDecisionStatus(w http.ResponseWriter, r *http.Request) {
	var req DecisionStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	d, err := h.svc.Ledger.SetStatus(r.Context(), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		writeError(w, "set decision status", err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// AssignStakeholders handles POST /api/decisions/{id}/stakeholders.
//
//	@Summary		Assign people who must acknowledge a decision
//	@Tags			decisions
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string				true	"Decision id"
//	@Param			body	body		StakeholdersRequest	true	"People"
//	@Success		200		{object}	map[string][]models.Acknowledgment
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/decisions/{id}/stakeholders [post]
func (h *Handler) AssignStakeholders(w http.ResponseWriter, r *http.Request) {
	var req StakeholdersRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	acks, err := h.svc.Ledger.AssignStakeholders(r.Context(), chi.URLParam(r, "id"), req.PersonIDs)
	if err != nil {
		writeError(w, "assign stakeholders", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stakeholders": acks})
}

// Acknowledge handles POST /api/decisions/{id}/acknowledgments/{personID}.
//
//	@Summary		Record a stakeholder's acknowledgment
//	@Tags			decisions
//	@Produce		json
//	@Param			id			path		string	true	"Decision id"
//	@Param			personID	path		string	true	"Person id"
//	@Success		200			{object}	models.Acknowledgment
//	@Failure		404			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/decisions/{id}/acknowledgments/{personID} [post]
func (h *Handler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	a, err := h.svc.Ledger.Acknowledge(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "personID"))
	if err != nil {
		writeError(w, "acknowledge", err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// Propagation handles GET /api/propagation.
//
//	@Summary		Acknowledgment propagation of active decisions
//	@Tags			decisions
//	@Produce		json
//	@Success		200	{object}	ledger.Report
//	@Security		BearerAuth
//	@Router			/propagation [get]
func (h *Handler) Propagation(w http.ResponseWriter, r *http.Request) {
	rep, err := h.svc.Ledger.Propagation(r.Context())
	if err != nil {
		writeError(w, "propagation", err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

package api

import (
	"github.com/starford/alignos/internal/assistant"
	"github.com/starford/alignos/internal/graph"
	"github.com/starford/alignos/internal/ledger"
	"github.com/starford/alignos/internal/models"
	"github.com/starford/alignos/internal/storage"
)

// GraphResponse wraps the organisation graph.
type GraphResponse struct {
	Nodes []graph.Node `json:"nodes" validate:"required"`
	Links []graph.Link `json:"links" validate:"required"`
}

// CreateViewRequest opens a graph view. Zero sizes take the configured defaults.
type CreateViewRequest struct {
	Query  string  `json:"query" example:"gcp"`
	Type   string  `json:"type" example:"all"`
	Width  float64 `json:"width" example:"800"`
	Height float64 `json:"height" example:"600"`
}

// FilterViewRequest re-filters a graph view.
type FilterViewRequest struct {
	Query string `json:"query" example:"sarah"`
	Type  string `json:"type" example:"person"`
}

// TickRequest advances a view's simulation; Restart reheats it first.
type TickRequest struct {
	Ticks   int  `json:"ticks" example:"50"`
	Restart bool `json:"restart" example:"false"`
}

// DecisionListResponse wraps ledger entries.
type DecisionListResponse struct {
	Decisions []ledger.Entry `json:"decisions" validate:"required"`
	Total     int            `json:"total" example:"12" validate:"required"`
}

// DecisionStatusRequest changes a decision's status.
type DecisionStatusRequest struct {
	Status models.DecisionStatus `json:"status" example:"active" validate:"required"`
}

// StakeholdersRequest lists people who must acknowledge a decision.
type StakeholdersRequest struct {
	PersonIDs []string `json:"person_ids" validate:"required"`
}

// ConflictStatusRequest moves a conflict through review.
type ConflictStatusRequest struct {
	Status models.ConflictStatus `json:"status" example:"resolved" validate:"required"`
}

// ExtractRequest is the body of POST /extract-entities.
type ExtractRequest struct {
	Content string `json:"content" example:"Sarah Chen and Marcus Johnson agreed to migrate to GCP by Q3" validate:"required"`
}

// QueryRequest is the body of POST /query-ai. Context overrides the
// organisation summary built from the database.
type QueryRequest struct {
	Query   string                `json:"query" example:"Who owns the cloud migration?" validate:"required"`
	Context *assistant.OrgContext `json:"context,omitempty"`
}

// QueryResponse carries the assistant's answer.
type QueryResponse struct {
	Answer string `json:"answer" validate:"required"`
}

// TranscribeResponse carries the transcript of an audio upload.
type TranscribeResponse struct {
	Text     string `json:"text" validate:"required"`
	SourceID string `json:"source_id"`
}

// UploadListResponse lists stored originals.
type UploadListResponse struct {
	Objects []storage.Object `json:"objects" validate:"required"`
	Total   int              `json:"total" example:"3" validate:"required"`
}

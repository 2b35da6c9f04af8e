// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes AlignOS tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/alignos/internal/graph"
	"github.com/starford/alignos/internal/ingest"
	"github.com/starford/alignos/internal/ledger"
	"github.com/starford/alignos/internal/models"
	"github.com/starford/alignos/internal/org"
	"github.com/starford/alignos/internal/store"
)

// defaultListLimit caps list_decisions when no limit is given.
const defaultListLimit = 20

// SnapshotSource loads the rows graph tools build from.
type SnapshotSource interface {
	Snapshot(ctx context.Context) (*store.Snapshot, error)
}

// Server wraps the MCP server with AlignOS tools.
type Server struct {
	mcp       *server.MCPServer
	snapshots SnapshotSource
	ledger    *ledger.Service
	org       *org.Service
	ingest    *ingest.Service
	fetcher   *fetcher
}

// New creates a new MCP server with all AlignOS tools registered.
func New(snapshots SnapshotSource, ledgerSvc *ledger.Service, orgSvc *org.Service, ingestSvc *ingest.Service) *Server {
	s := &Server{
		snapshots: snapshots,
		ledger:    ledgerSvc,
		org:       orgSvc,
		ingest:    ingestSvc,
		fetcher:   newFetcher(),
	}

	s.mcp = server.NewMCPServer(
		"AlignOS",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_entities",
		mcp.WithDescription("Find people, teams, projects and decisions whose name or title contains the query."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Case-insensitive substring")),
		mcp.WithString("type", mcp.Description("Entity type filter"),
			mcp.Enum(graph.TypeAll, string(models.EntityPerson), string(models.EntityTeam),
				string(models.EntityProject), string(models.EntityDecision))),
	), s.searchEntities)

	s.mcp.AddTool(mcp.NewTool("get_graph",
		mcp.WithDescription("Return the organisation graph (nodes and links), optionally filtered."),
		mcp.WithString("query", mcp.Description("Label filter")),
		mcp.WithString("type", mcp.Description("Entity type filter (default all)")),
	), s.getGraph)

	s.mcp.AddTool(mcp.NewTool("list_decisions",
		mcp.WithDescription("List decisions newest first with versions and acknowledgment totals."),
		mcp.WithString("search", mcp.Description("Title or description search")),
		mcp.WithString("status", mcp.Description("draft, active, superseded or deprecated")),
		mcp.WithNumber("limit", mcp.Description("Max results (default 20)")),
	), s.listDecisions)

	s.mcp.AddTool(mcp.NewTool("get_decision",
		mcp.WithDescription("Read one decision with its version history, stakeholders and events."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Decision id")),
	), s.getDecision)

	s.mcp.AddTool(mcp.NewTool("edit_decision",
		mcp.WithDescription("Edit a decision. Each edit appends the next version and an updated event."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Decision id")),
		mcp.WithString("title", mcp.Required(), mcp.Description("New title")),
		mcp.WithString("description", mcp.Required(), mcp.Description("New description")),
		mcp.WithString("rationale", mcp.Description("New rationale")),
		mcp.WithString("editor_id", mcp.Description("Person id of the editor")),
	), s.editDecision)

	s.mcp.AddTool(mcp.NewTool("acknowledge_decision",
		mcp.WithDescription("Record that a stakeholder acknowledged a decision."),
		mcp.WithString("decision_id", mcp.Required(), mcp.Description("Decision id")),
		mcp.WithString("person_id", mcp.Required(), mcp.Description("Person id")),
	), s.acknowledgeDecision)

	s.mcp.AddTool(mcp.NewTool("create_relationship",
		mcp.WithDescription("Create an explicit relationship between two entities."),
		mcp.WithString("source_type", mcp.Required(), mcp.Description("person, team, project or decision")),
		mcp.WithString("source_id", mcp.Required(), mcp.Description("Source entity id")),
		mcp.WithString("target_type", mcp.Required(), mcp.Description("person, team, project or decision")),
		mcp.WithString("target_id", mcp.Required(), mcp.Description("Target entity id")),
		mcp.WithString("relationship_type", mcp.Description("owns, member_of, relates_to, supersedes or depends_on (default relates_to)")),
	), s.createRelationship)

	s.mcp.AddTool(mcp.NewTool("ingest_text",
		mcp.WithDescription("Extract decisions, people and projects from text and commit them. "+
			"Read the "+ContractURI+" resource for the payload format."),
		mcp.WithString("content", mcp.Required(), mcp.Description("Meeting notes, transcript or other text")),
	), s.ingestText)

	s.mcp.AddTool(mcp.NewTool("ingest_document",
		mcp.WithDescription("Store a document from a public http(s) URL or a data URI and return its text. "+
			"Allowed types: txt and md up to 2MB, doc up to 10MB, docx and pdf up to 20MB."),
		mcp.WithString("url", mcp.Required(), mcp.Description("http(s) URL, data:<mime>;base64,<data> or data:<mime>,<percent-encoded text>")),
		mcp.WithString("filename", mcp.Description("Name to store under; taken from Content-Disposition or the URL path when empty")),
	), s.ingestDocument)

	s.mcp.AddTool(mcp.NewTool("get_propagation",
		mcp.WithDescription("Acknowledgment propagation of active decisions, bucketed by progress."),
	), s.getPropagation)

	s.mcp.AddTool(mcp.NewTool("get_extraction_contract",
		mcp.WithDescription("Returns the extraction payload contract and its JSON Schema."),
	), s.getExtractionContract)

	s.mcp.AddResource(
		mcp.NewResource(ContractURI, "Extraction Contract",
			mcp.WithResourceDescription("Format of entity extraction payloads."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readContractResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) loadGraph(ctx context.Context, query, typ string) (*graph.Graph, error) {
	snap, err := s.snapshots.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return graph.Filter(graph.Build(snap), query, typ), nil
}

type entityHit struct {
	ID    string            `json:"id"`
	Type  models.EntityType `json:"type"`
	Label string            `json:"label"`
}

func (s *Server) searchEntities(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	g, err := s.loadGraph(ctx, query, req.GetString("type", graph.TypeAll))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	hits := make([]entityHit, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		hits = append(hits, entityHit{ID: n.ID, Type: n.Type, Label: n.Label})
	}
	return jsonResult(hits)
}

func (s *Server) getGraph(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	g, err := s.loadGraph(ctx, req.GetString("query", ""), req.GetString("type", graph.TypeAll))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(g)
}

func (s *Server) listDecisions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items, err := s.ledger.List(ctx, ledger.Filter{
		Search: req.GetString("search", ""),
		Status: models.DecisionStatus(req.GetString("status", "")),
		Limit:  req.GetInt("limit", defaultListLimit),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(items)
}

func (s *Server) getDecision(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	d, err := s.ledger.Get(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(d)
}

func optional(req mcp.CallToolRequest, key string) *string {
	if v := req.GetString(key, ""); v != "" {
		return &v
	}
	return nil
}

func (s *Server) editDecision(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	desc, err := req.RequireString("description")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	v, err := s.ledger.Edit(ctx, id, ledger.EditInput{
		Title:       title,
		Description: desc,
		Rationale:   optional(req, "rationale"),
		EditorID:    optional(req, "editor_id"),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(v)
}

func (s *Server) acknowledgeDecision(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	decisionID, err := req.RequireString("decision_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	personID, err := req.RequireString("person_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	a, err := s.ledger.Acknowledge(ctx, decisionID, personID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(a)
}

func (s *Server) createRelationship(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var rel models.Relationship
	for _, f := range []struct {
		key string
		dst *string
	}{
		{"source_id", &rel.SourceID},
		{"target_id", &rel.TargetID},
	} {
		v, err := req.RequireString(f.key)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		*f.dst = v
	}
	rel.SourceType = models.EntityType(req.GetString("source_type", ""))
	rel.TargetType = models.EntityType(req.GetString("target_type", ""))
	rel.RelationshipType = models.RelationshipType(req.GetString("relationship_type", string(models.RelRelatesTo)))

	if err := s.org.CreateRelationship(ctx, &rel); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(rel)
}

type ingestResult struct {
	SourceID string               `json:"source_id"`
	Summary  string               `json:"summary"`
	Commit   *ingest.CommitResult `json:"commit"`
}

func (s *Server) ingestText(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ext, res, err := s.ingest.IngestText(ctx, content)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(ingestResult{SourceID: ext.SourceID, Summary: ext.Summary, Commit: res})
}

func (s *Server) getPropagation(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rep, err := s.ledger.Propagation(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(rep)
}

func (s *Server) getExtractionContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(ExtractionContract), nil
}

func (s *Server) readContractResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      ContractURI,
			MIMEType: "text/markdown",
			Text:     ExtractionContract,
		},
	}, nil
}

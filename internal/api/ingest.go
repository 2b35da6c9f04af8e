package api

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/starford/alignos/internal/models"
)

// ExtractEntities handles POST /api/extract-entities.
//
//	@Summary		Extract decisions, people and projects from text
//	@Description	Records a text source; nothing else is written until the result is committed.
//	@Tags			ingest
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ExtractRequest	true	"Content"
//	@Success		200		{object}	ingest.ExtractResult
//	@Failure		400		{object}	errResponse
//	@Failure		402		{object}	errResponse
//	@Failure		429		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/extract-entities [post]
func (h *Handler) ExtractEntities(w http.ResponseWriter, r *http.Request) {
	var req ExtractRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("Content is required and must be a string"))
		return
	}
	res, err := h.svc.Ingest.Extract(r.Context(), req.Content)
	if err != nil {
		writeError(w, "extract entities", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// CommitExtraction handles POST /api/ingest/commit.
//
//	@Summary		Commit a reviewed extraction
//	@Tags			ingest
//	@Accept			json
//	@Produce		json
//	@Param			body	body		models.Extraction	true	"Extraction"
//	@Success		201		{object}	ingest.CommitResult
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/ingest/commit [post]
func (h *Handler) CommitExtraction(w http.ResponseWriter, r *http.Request) {
	var ext models.Extraction
	if !decodeJSON(w, r, &ext) {
		return
	}
	res, err := h.svc.Ingest.Commit(r.Context(), ext)
	if err != nil {
		writeError(w, "commit extraction", err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// ExtractPDF handles POST /api/extract-pdf (multipart/form-data, field "file").
//
//	@Summary		Upload a PDF and read its text
//	@Tags			ingest
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			file	formData	file	true	"PDF document"
//	@Success		200		{object}	ingest.FileResult
//	@Failure		400		{object}	errResponse
//	@Failure		402		{object}	errResponse
//	@Failure		429		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/extract-pdf [post]
func (h *Handler) ExtractPDF(w http.ResponseWriter, r *http.Request) {
	up, ok := h.readUpload(w, r, "file", "No file provided")
	if !ok {
		return
	}
	if strings.ToLower(filepath.Ext(up.filename)) != ".pdf" {
		writeJSON(w, http.StatusBadRequest, errorBody("only PDF files are supported"))
		return
	}
	res, err := h.svc.Ingest.ExtractFile(r.Context(), up.filename, up.data)
	if err != nil {
		writeError(w, "extract pdf", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// IngestFile handles POST /api/ingest/file (multipart/form-data, field "file").
//
//	@Summary		Upload a document and read its text
//	@Tags			ingest
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			file	formData	file	true	"Document (.txt .md .doc .docx .pdf)"
//	@Success		200		{object}	ingest.FileResult
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/ingest/file [post]
func (h *Handler) IngestFile(w http.ResponseWriter, r *http.Request) {
	up, ok := h.readUpload(w, r, "file", "No file provided")
	if !ok {
		return
	}
	res, err := h.svc.Ingest.ExtractFile(r.Context(), up.filename, up.data)
	if err != nil {
		writeError(w, "ingest file", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Transcribe handles POST /api/transcribe (multipart/form-data, field "audio").
//
//	@Summary		Transcribe a voice recording
//	@Tags			ingest
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			audio	formData	file	true	"Recording"
//	@Success		200		{object}	TranscribeResponse
//	@Failure		400		{object}	errResponse
//	@Failure		503		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/transcribe [post]
func (h *Handler) Transcribe(w http.ResponseWriter, r *http.Request) {
	up, ok := h.readUpload(w, r, "audio", "No audio file provided")
	if !ok {
		return
	}
	tr, err := h.svc.Ingest.Transcribe(r.Context(), up.data, up.contentType)
	if err != nil {
		writeError(w, "transcribe", err)
		return
	}
	writeJSON(w, http.StatusOK, TranscribeResponse{Text: tr.Text, SourceID: tr.SourceID})
}

// QueryAI handles POST /api/query-ai.
//
//	@Summary		Ask a question about the organisation
//	@Tags			ai
//	@Accept			json
//	@Produce		json
//	@Param			body	body		QueryRequest	true	"Question"
//	@Success		200		{object}	QueryResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/query-ai [post]
func (h *Handler) QueryAI(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	answer, err := h.svc.Assistant.Ask(r.Context(), req.Query, req.Context)
	if err != nil {
		writeError(w, "query ai", err)
		return
	}
	writeJSON(w, http.StatusOK, QueryResponse{Answer: answer})
}

// VoiceToken handles POST /api/voice/token.
//
//	@Summary		Issue a signed voice-agent session URL
//	@Tags			ai
//	@Produce		json
//	@Success		200	{object}	voice.Token
//	@Failure		503	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/voice/token [post]
func (h *Handler) VoiceToken(w http.ResponseWriter, r *http.Request) {
	tok, err := h.svc.Voice.SignedURL(r.Context())
	if err != nil {
		writeError(w, "voice token", err)
		return
	}
	writeJSON(w, http.StatusOK, tok)
}

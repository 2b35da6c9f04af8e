// Package ingest turns free text, uploaded files and voice recordings into
// sources, documents and, after review, committed people, projects and
// decisions.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/alignos/internal/apperr"
	"github.com/starford/alignos/internal/checksum"
	"github.com/starford/alignos/internal/ledger"
	"github.com/starford/alignos/internal/models"
	"github.com/starford/alignos/internal/parser"
	"github.com/starford/alignos/internal/storage"
	"github.com/starford/alignos/internal/store"
)

const (
	PDFModeAI    = "ai"
	PDFModeLocal = "local"

	DefaultMaxFileBytes = 20 << 20

	// PlaceholderDomain is appended to emails derived from extracted names.
	PlaceholderDomain = "placeholder.com"
)

// DefaultExtensions is the upload allow list.
var DefaultExtensions = []string{".txt", ".md", ".doc", ".docx", ".pdf"}

// Extractor is the AI side of ingestion.
type Extractor interface {
	ExtractEntities(ctx context.Context, content string) (*models.Extraction, error)
	ExtractPDF(ctx context.Context, filename string, data []byte) (string, error)
}

// Transcriber turns audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, contentType string) (string, error)
}

// Config bounds file ingestion.
type Config struct {
	MaxFileBytes      int64
	AllowedExtensions []string
	PDFMode           string
}

func (c Config) withDefaults() Config {
	if c.MaxFileBytes <= 0 {
		c.MaxFileBytes = DefaultMaxFileBytes
	}
	if len(c.AllowedExtensions) == 0 {
		c.AllowedExtensions = DefaultExtensions
	}
	if c.PDFMode == "" {
		c.PDFMode = PDFModeAI
	}
	return c
}

// Service coordinates AI extraction, object storage and the store.
type Service struct {
	db      *store.DB
	ai      Extractor
	speech  Transcriber
	objects storage.Provider
	cfg     Config
	now     func() time.Time
}

// NewService creates an ingest service.
func NewService(db *store.DB, ai Extractor, speech Transcriber, objects storage.Provider, cfg Config) *Service {
	return &Service{
		db:      db,
		ai:      ai,
		speech:  speech,
		objects: objects,
		cfg:     cfg.withDefaults(),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// ExtractResult is an extraction ready for review, with the source row it
// was recorded under.
type ExtractResult struct {
	models.Extraction
	SourceID string `json:"source_id"`
}

// Extract runs entity extraction on content and records a text source
// whose processed content is the extraction summary.
func (s *Service) Extract(ctx context.Context, content string) (*ExtractResult, error) {
	return s.extract(ctx, content, models.SourceText, nil)
}

func (s *Service) extract(ctx context.Context, content string, typ models.SourceType, meta models.Metadata) (*ExtractResult, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("ingest: %w: content is required", apperr.ErrValidation)
	}
	ext, err := s.ai.ExtractEntities(ctx, content)
	if err != nil {
		return nil, err
	}

	ext.SuggestedStakeholders = withMentions(ext.SuggestedStakeholders, parser.Mentions(content))

	if meta == nil {
		meta = models.Metadata{}
	}
	meta["checksum"] = checksum.SumString(content)
	src := &models.Source{Type: typ, RawContent: content, ProcessedContent: &ext.Summary, Metadata: meta}
	if err := s.db.InsertSource(ctx, src); err != nil {
		return nil, fmt.Errorf("ingest: record source: %w", err)
	}
	return &ExtractResult{Extraction: *ext, SourceID: src.ID}, nil
}

// withMentions adds @Name mentions not already among the suggested
// stakeholders.
func withMentions(suggested, mentions []string) []string {
	out := slices.Clone(suggested)
	for _, m := range mentions {
		if !slices.ContainsFunc(out, func(s string) bool { return strings.EqualFold(s, m) }) {
			out = append(out, m)
		}
	}
	return out
}

// CommitResult lists the rows a commit created or reused.
type CommitResult struct {
	PersonIDs       []string `json:"person_ids"`
	ReusedPersonIDs []string `json:"reused_person_ids"`
	ProjectIDs      []string `json:"project_ids"`
	DecisionIDs     []string `json:"decision_ids"`
	Created         Counts   `json:"created"`
}

type Counts struct {
	People    int `json:"people"`
	Projects  int `json:"projects"`
	Decisions int `json:"decisions"`
}

// PlaceholderEmail derives the email used to deduplicate extracted people:
// the lowercased name with whitespace runs replaced by dots.
func PlaceholderEmail(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), ".") + "@" + PlaceholderDomain
}

// Commit writes a reviewed extraction in one transaction. People whose
// derived email already exists are reused, projects start active and
// decisions start as drafts at version 1. Every new row gets one created
// event.
func (s *Service) Commit(ctx context.Context, ext models.Extraction) (*CommitResult, error) {
	ext.Repair()
	if err := ext.Validate(); err != nil {
		return nil, fmt.Errorf("ingest: %w: %v", apperr.ErrValidation, err)
	}

	res := &CommitResult{
		PersonIDs:       []string{},
		ReusedPersonIDs: []string{},
		ProjectIDs:      []string{},
		DecisionIDs:     []string{},
	}
	err := s.db.WithTx(ctx, func(tx *store.Tx) error {
		for _, ep := range ext.People {
			email := PlaceholderEmail(ep.Name)
			existing, err := tx.PersonByEmail(ctx, email)
			if err == nil {
				res.ReusedPersonIDs = append(res.ReusedPersonIDs, existing.ID)
				continue
			}
			if !errors.Is(err, apperr.ErrNotFound) {
				return err
			}
			p := &models.Person{Name: ep.Name, Email: email, Role: ep.Role}
			if err := tx.InsertPerson(ctx, p); err != nil {
				return err
			}
			if _, err := tx.AppendEvent(ctx, models.EntityPerson, p.ID, models.EventCreated, models.Metadata{"source": "ingest"}); err != nil {
				return err
			}
			res.PersonIDs = append(res.PersonIDs, p.ID)
		}

		for _, epr := range ext.Projects {
			p := &models.Project{Name: epr.Name, Description: epr.Description, Status: models.ProjectActive}
			if err := tx.InsertProject(ctx, p); err != nil {
				return err
			}
			if _, err := tx.AppendEvent(ctx, models.EntityProject, p.ID, models.EventCreated, models.Metadata{"source": "ingest"}); err != nil {
				return err
			}
			res.ProjectIDs = append(res.ProjectIDs, p.ID)
		}

		for _, ed := range ext.Decisions {
			d := &models.Decision{
				Title:       ed.Title,
				Description: ed.Description,
				Rationale:   ed.Rationale,
				Status:      models.DecisionDraft,
			}
			if err := ledger.InsertWithFirstVersion(ctx, tx, d, nil, models.Metadata{"source": "ingest"}); err != nil {
				return err
			}
			res.DecisionIDs = append(res.DecisionIDs, d.ID)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ingest: commit: %w", err)
	}

	res.Created = Counts{People: len(res.PersonIDs), Projects: len(res.ProjectIDs), Decisions: len(res.DecisionIDs)}
	slog.Info("ingest: committed",
		slog.Int("people", res.Created.People),
		slog.Int("projects", res.Created.Projects),
		slog.Int("decisions", res.Created.Decisions))
	return res, nil
}

// FileResult is the outcome of a file upload.
type FileResult struct {
	Success    bool   `json:"success"`
	Text       string `json:"text"`
	Filename   string `json:"filename"`
	Key        string `json:"key"`
	SourceID   string `json:"source_id"`
	DocumentID string `json:"document_id,omitempty"`
	// Tags and Mentions are read from text uploads only.
	Tags     []string `json:"tags,omitempty"`
	Mentions []string `json:"mentions,omitempty"`
	// Duplicate is set when identical bytes were ingested before; the
	// earlier source is returned and nothing new is written.
	Duplicate bool `json:"duplicate"`
}

type fileInput struct {
	Filename string
	Data     []byte
}

func (in fileInput) validate(cfg Config) error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Filename, validation.Required),
		validation.Field(&in.Data,
			validation.Required.Error("file is empty"),
			validation.By(func(any) error {
				if int64(len(in.Data)) > cfg.MaxFileBytes {
					return fmt.Errorf("file exceeds %dMB limit", cfg.MaxFileBytes>>20)
				}
				return nil
			})),
	)
}

// ExtractFile reads the text of an uploaded file, keeps the original in
// object storage and records a file source plus a document row.
func (s *Service) ExtractFile(ctx context.Context, filename string, data []byte) (*FileResult, error) {
	filename = filepath.Base(strings.TrimSpace(filename))
	if err := (fileInput{Filename: filename, Data: data}).validate(s.cfg); err != nil {
		return nil, fmt.Errorf("ingest: %w: %v", apperr.ErrValidation, err)
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if !slices.Contains(s.cfg.AllowedExtensions, ext) {
		return nil, fmt.Errorf("ingest: %w: extension %q is not allowed", apperr.ErrValidation, ext)
	}

	sum := checksum.Sum(data)
	if prev, err := s.db.SourceByChecksum(ctx, sum); err == nil {
		key, _ := prev.Metadata["key"].(string)
		return &FileResult{Success: true, Text: prev.RawContent, Filename: filename, Key: key, SourceID: prev.ID, Duplicate: true}, nil
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}

	format, err := Detect(filename, data)
	if err != nil {
		return nil, err
	}
	var (
		text    string
		docType = models.DocumentDocument
		title   = strings.TrimSuffix(filename, filepath.Ext(filename))
		parsed  parser.Result
	)
	switch format {
	case FormatText:
		parsed = *parser.Parse(filename, data)
		text, docType, title = parsed.Body, parsed.Type, parsed.Title
	case FormatPDF:
		if s.cfg.PDFMode == PDFModeLocal {
			text, err = pdfText(data)
		} else {
			text, err = s.ai.ExtractPDF(ctx, filename, data)
		}
	case FormatDOCX:
		text, err = docxText(data)
	case FormatDOC:
		text = docText(data)
	}
	if err != nil {
		return nil, err
	}

	key := storage.UploadKey(filename, data, s.now())
	obj, err := s.objects.Put(ctx, key, data)
	if err != nil {
		return nil, fmt.Errorf("ingest: store upload: %w", err)
	}

	res := &FileResult{Success: true, Text: text, Filename: filename, Key: obj.Key, Tags: parsed.Tags, Mentions: parsed.Mentions}
	meta := models.Metadata{
		"filename":     filename,
		"key":          obj.Key,
		"size":         obj.Size,
		"content_type": obj.ContentType,
		"checksum":     sum,
		"format":       string(format),
	}
	if len(parsed.Tags) > 0 {
		meta["tags"] = parsed.Tags
	}
	if len(parsed.Mentions) > 0 {
		meta["mentions"] = parsed.Mentions
	}
	if len(parsed.Frontmatter) > 0 {
		meta["frontmatter"] = parsed.Frontmatter
	}
	err = s.db.WithTx(ctx, func(tx *store.Tx) error {
		src := &models.Source{Type: models.SourceFile, RawContent: text, Metadata: meta}
		if err := tx.InsertSource(ctx, src); err != nil {
			return err
		}
		doc := &models.Document{Title: title, Content: &text, SourceURL: models.Ptr("/api/uploads/" + obj.Key), Type: docType}
		if err := tx.InsertDocument(ctx, doc); err != nil {
			return err
		}
		res.SourceID, res.DocumentID = src.ID, doc.ID
		return nil
	})
	if err != nil {
		// The row never landed, so the stored original would be orphaned.
		if derr := s.objects.Delete(context.WithoutCancel(ctx), obj.Key); derr != nil {
			slog.Warn("ingest: remove orphaned upload", slog.String("key", obj.Key), slog.String("error", derr.Error()))
		}
		return nil, fmt.Errorf("ingest: record file: %w", err)
	}
	slog.Info("ingest: file stored",
		slog.String("filename", filename),
		slog.String("key", obj.Key),
		slog.Int("chars", len(text)))
	return res, nil
}

// Transcription is the outcome of a voice upload.
type Transcription struct {
	Text     string `json:"text"`
	SourceID string `json:"source_id"`
}

// Transcribe converts a recording to text and records a voice source.
func (s *Service) Transcribe(ctx context.Context, audio []byte, contentType string) (*Transcription, error) {
	if len(audio) == 0 {
		return nil, fmt.Errorf("ingest: %w: no audio file provided", apperr.ErrValidation)
	}
	if int64(len(audio)) > s.cfg.MaxFileBytes {
		return nil, fmt.Errorf("ingest: %w: audio exceeds %dMB limit", apperr.ErrValidation, s.cfg.MaxFileBytes>>20)
	}
	text, err := s.speech.Transcribe(ctx, audio, contentType)
	if err != nil {
		return nil, err
	}
	src := &models.Source{
		Type:       models.SourceVoice,
		RawContent: text,
		Metadata:   models.Metadata{"content_type": contentType, "bytes": len(audio), "checksum": checksum.Sum(audio)},
	}
	if err := s.db.InsertSource(ctx, src); err != nil {
		return nil, fmt.Errorf("ingest: record transcription: %w", err)
	}
	return &Transcription{Text: text, SourceID: src.ID}, nil
}

// IngestText extracts and immediately commits content. It backs inbox
// auto-extraction and the MCP ingest tool.
func (s *Service) IngestText(ctx context.Context, content string) (*ExtractResult, *CommitResult, error) {
	ext, err := s.Extract(ctx, content)
	if err != nil {
		return nil, nil, err
	}
	res, err := s.Commit(ctx, ext.Extraction)
	if err != nil {
		return ext, nil, err
	}
	return ext, res, nil
}

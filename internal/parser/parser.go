// Package parser turns uploaded Markdown and plain-text documents into a
// title, a document type and the text handed to entity extraction.
package parser

import (
	"bytes"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/starford/alignos/internal/models"
)

// maxTitleRunes bounds titles derived from the first line of a document.
const maxTitleRunes = 100

var (
	mentionRe = regexp.MustCompile(`(?:^|[\s(])@([A-Z][\p{L}'-]+(?:\s+[A-Z][\p{L}'-]+)?)`)
	tagRe     = regexp.MustCompile(`(?:^|\s)#([A-Za-z][A-Za-z0-9_/-]*)`)
	emailHdr  = regexp.MustCompile(`(?m)^(From|To|Subject):\s`)
)

// Result is a parsed document.
type Result struct {
	Frontmatter map[string]any
	Body        string
	Title       string
	Type        models.DocumentType
	Tags        []string
	// Mentions are @Name references, a hint for stakeholder extraction.
	Mentions []string
}

// Parse reads a document. Markdown files (.md, .markdown) may carry YAML
// frontmatter; every other name is treated as plain text.
func Parse(filename string, data []byte) *Result {
	var (
		fm   map[string]any
		body = string(data)
	)
	if isMarkdown(filename) {
		fm, body = splitFrontmatter(data)
	}
	body = strings.ReplaceAll(body, "\r\n", "\n")

	return &Result{
		Frontmatter: fm,
		Body:        body,
		Title:       deriveTitle(filename, fm, body),
		Type:        deriveType(filename, fm, body),
		Tags:        extractTags(body, fm),
		Mentions:    Mentions(body),
	}
}

func isMarkdown(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".md", ".markdown":
		return true
	}
	return false
}

// splitFrontmatter separates YAML frontmatter (between leading --- lines)
// from the body. Missing or invalid frontmatter leaves the content as body.
func splitFrontmatter(data []byte) (map[string]any, string) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")
	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, string(data)
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, string(data)
	}

	var fm map[string]any
	if err := yaml.Unmarshal(rest[:idx], &fm); err != nil {
		return nil, string(data)
	}
	body := strings.TrimLeft(string(rest[idx+1+len(delim):]), "\n\r")
	return fm, body
}

// deriveTitle prefers frontmatter "title", then the first H1, then the first
// non-empty line, then the file name without extension.
func deriveTitle(filename string, fm map[string]any, body string) string {
	if s, ok := fm["title"].(string); ok && strings.TrimSpace(s) != "" {
		return strings.TrimSpace(s)
	}
	var first string
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
		if first == "" && trimmed != "" && !strings.HasPrefix(trimmed, "#") {
			first = trimmed
		}
	}
	if first != "" {
		return clip(first)
	}
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func clip(s string) string {
	if utf8.RuneCountInString(s) <= maxTitleRunes {
		return s
	}
	return string([]rune(s)[:maxTitleRunes])
}

// deriveType uses frontmatter "type" when it names a document type, then
// falls back to hints in the file name and email-style headers.
func deriveType(filename string, fm map[string]any, body string) models.DocumentType {
	if s, ok := fm["type"].(string); ok {
		if t := models.DocumentType(strings.ToLower(strings.TrimSpace(s))); t.Valid() {
			return t
		}
	}
	name := strings.ToLower(filepath.Base(filename))
	switch {
	case strings.Contains(name, "transcript"):
		return models.DocumentTranscript
	case strings.Contains(name, "notes"), strings.Contains(name, "minutes"), strings.Contains(name, "standup"):
		return models.DocumentNotes
	case strings.HasSuffix(name, ".eml") || len(emailHdr.FindAllString(body, 3)) >= 2:
		return models.DocumentEmail
	}
	return models.DocumentDocument
}

// extractTags collects frontmatter "tags" and inline #tags, deduplicated.
func extractTags(body string, fm map[string]any) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" {
			return
		}
		if _, dup := seen[s]; dup {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}

	if items, ok := fm["tags"].([]any); ok {
		for _, item := range items {
			if s, ok := item.(string); ok {
				add(s)
			}
		}
	}
	for _, m := range tagRe.FindAllStringSubmatch(body, -1) {
		add(m[1])
	}
	return out
}

// Mentions returns the distinct @Name references in body, in order.
func Mentions(body string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, m := range mentionRe.FindAllStringSubmatch(body, -1) {
		name := strings.Join(strings.Fields(m[1]), " ")
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

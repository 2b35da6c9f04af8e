// Package aigateway talks to an OpenAI-compatible chat completions gateway
// for entity extraction, PDF text extraction and free-form questions.
package aigateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/starford/alignos/internal/apperr"
	"github.com/starford/alignos/internal/models"
)

const (
	service = "aigateway"

	// NoAnswer replaces an empty completion in Ask.
	NoAnswer = "I couldn't generate a response."

	ocrMaxTokens   = 16000
	askMaxTokens   = 500
	askTemperature = 0.7

	maxResponseBytes = 8 << 20
)

// Config holds gateway connection settings. An empty APIKey disables the client.
type Config struct {
	URL             string
	APIKey          string
	ExtractionModel string
	OCRModel        string
	QueryModel      string
	Timeout         time.Duration
}

// Client calls the gateway.
type Client struct {
	cfg     Config
	hc      *http.Client
	observe func(service, outcome string)
}

// New creates a gateway client.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	cfg.URL = strings.TrimRight(cfg.URL, "/")
	return &Client{cfg: cfg, hc: &http.Client{Timeout: cfg.Timeout}}
}

// SetObserver registers a callback invoked once per upstream call.
func (c *Client) SetObserver(fn func(service, outcome string)) {
	c.observe = fn
}

// Configured reports whether the gateway has credentials.
func (c *Client) Configured() bool {
	return c.cfg.APIKey != "" && c.cfg.URL != ""
}

type message struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type tool struct {
	Type     string       `json:"type"`
	Function toolFunction `json:"function"`
}

type toolFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

type toolChoice struct {
	Type     string       `json:"type"`
	Function toolFunction `json:"function"`
}

type chatRequest struct {
	Model       string      `json:"model"`
	Messages    []message   `json:"messages"`
	Tools       []tool      `json:"tools,omitempty"`
	ToolChoice  *toolChoice `json:"tool_choice,omitempty"`
	Temperature *float64    `json:"temperature,omitempty"`
	MaxTokens   int         `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content   *string `json:"content"`
			ToolCalls []struct {
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
}

// ExtractEntities asks the model to call extract_entities on content and
// returns the repaired, validated arguments.
func (c *Client) ExtractEntities(ctx context.Context, content string) (ext *models.Extraction, err error) {
	defer func() { c.record(err) }()

	req := chatRequest{
		Model: c.cfg.ExtractionModel,
		Messages: []message{
			{Role: "system", Content: extractionPrompt},
			{Role: "user", Content: "Analyze the following text and extract organizational information:\n\n" + content},
		},
		Tools: []tool{{
			Type: "function",
			Function: toolFunction{
				Name:        ExtractToolName,
				Description: "Extract decisions, people, projects, and stakeholders from organizational text",
				Parameters:  ExtractionSchema,
			},
		}},
		ToolChoice: &toolChoice{Type: "function", Function: toolFunction{Name: ExtractToolName}},
	}
	resp, err := c.complete(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 || len(resp.Choices[0].Message.ToolCalls) == 0 {
		return nil, fmt.Errorf("%s: %w: no tool call", service, apperr.ErrMalformedResponse)
	}
	call := resp.Choices[0].Message.ToolCalls[0].Function
	if call.Name != ExtractToolName {
		return nil, fmt.Errorf("%s: %w: unexpected tool %q", service, apperr.ErrMalformedResponse, call.Name)
	}

	ext = &models.Extraction{}
	if err := json.Unmarshal([]byte(call.Arguments), ext); err != nil {
		return nil, fmt.Errorf("%s: %w: decode arguments: %v", service, apperr.ErrMalformedResponse, err)
	}
	ext.Repair()
	if err := ext.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", service, apperr.ErrMalformedResponse, err)
	}
	return ext, nil
}

// ExtractPDF sends a PDF as a base64 data URI and returns the text the
// model read from it. A non-empty filename is passed along as a hint.
func (c *Client) ExtractPDF(ctx context.Context, filename string, data []byte) (text string, err error) {
	defer func() { c.record(err) }()

	parts := []contentPart{
		{Type: "text", Text: ocrPrompt},
		{Type: "image_url", ImageURL: &imageURL{URL: "data:application/pdf;base64," + base64.StdEncoding.EncodeToString(data)}},
	}
	if filename != "" {
		parts = append(parts, contentPart{Type: "text", Text: "File name: " + filename})
	}
	req := chatRequest{
		Model:     c.cfg.OCRModel,
		Messages:  []message{{Role: "user", Content: parts}},
		MaxTokens: ocrMaxTokens,
	}
	resp, err := c.complete(ctx, req)
	if err != nil {
		return "", err
	}
	return firstContent(resp), nil
}

// Ask answers query under the given system prompt. An empty completion
// yields NoAnswer.
func (c *Client) Ask(ctx context.Context, system, query string) (answer string, err error) {
	defer func() { c.record(err) }()

	temp := askTemperature
	req := chatRequest{
		Model: c.cfg.QueryModel,
		Messages: []message{
			{Role: "system", Content: system},
			{Role: "user", Content: query},
		},
		Temperature: &temp,
		MaxTokens:   askMaxTokens,
	}
	resp, err := c.complete(ctx, req)
	if err != nil {
		return "", err
	}
	if answer = firstContent(resp); answer == "" {
		answer = NoAnswer
	}
	return answer, nil
}

func firstContent(resp *chatResponse) string {
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == nil {
		return ""
	}
	return *resp.Choices[0].Message.Content
}

func (c *Client) complete(ctx context.Context, payload chatRequest) (*chatResponse, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("%s: %w", service, apperr.ErrNotConfigured)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%s: encode request: %w", service, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", service, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	res, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", service, apperr.ErrUpstream, err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%s: %w: read body: %v", service, apperr.ErrUpstream, err)
	}
	if res.StatusCode/100 != 2 {
		return nil, apperr.FromStatus(service, res.StatusCode, raw)
	}

	var out chatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", service, apperr.ErrMalformedResponse, err)
	}
	return &out, nil
}

func (c *Client) record(err error) {
	if c.observe != nil {
		c.observe(service, apperr.Outcome(err))
	}
}

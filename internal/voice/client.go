// Package voice issues signed conversation URLs for the ElevenLabs agent.
package voice

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/starford/alignos/internal/apperr"
)

const (
	service    = "voice"
	DefaultURL = "https://api.elevenlabs.io"
)

// Config holds ElevenLabs settings. Both APIKey and AgentID are required
// for the client to be usable.
type Config struct {
	URL     string
	APIKey  string
	AgentID string
	Timeout time.Duration
}

type Client struct {
	cfg     Config
	hc      *http.Client
	observe func(service, outcome string)
}

func New(cfg Config) *Client {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	cfg.URL = strings.TrimRight(cfg.URL, "/")
	return &Client{cfg: cfg, hc: &http.Client{Timeout: cfg.Timeout}}
}

// SetObserver registers a callback invoked once per upstream call.
func (c *Client) SetObserver(fn func(service, outcome string)) {
	c.observe = fn
}

func (c *Client) Configured() bool {
	return c.cfg.APIKey != "" && c.cfg.AgentID != ""
}

// Token is the response handed to voice clients.
type Token struct {
	SignedURL string `json:"signed_url"`
}

// SignedURL requests a short-lived conversation URL for the configured agent.
func (c *Client) SignedURL(ctx context.Context) (tok *Token, err error) {
	defer func() {
		if c.observe != nil {
			c.observe(service, apperr.Outcome(err))
		}
	}()

	if !c.Configured() {
		return nil, fmt.Errorf("%s: %w", service, apperr.ErrNotConfigured)
	}
	endpoint := c.cfg.URL + "/v1/convai/conversation/get_signed_url?agent_id=" + url.QueryEscape(c.cfg.AgentID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", service, err)
	}
	req.Header.Set("xi-api-key", c.cfg.APIKey)

	res, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", service, apperr.ErrUpstream, err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: read body: %v", service, apperr.ErrUpstream, err)
	}
	if res.StatusCode/100 != 2 {
		return nil, apperr.FromStatus(service, res.StatusCode, raw)
	}

	tok = &Token{}
	if err := json.Unmarshal(raw, tok); err != nil || tok.SignedURL == "" {
		return nil, fmt.Errorf("%s: %w: missing signed_url", service, apperr.ErrMalformedResponse)
	}
	return tok, nil
}

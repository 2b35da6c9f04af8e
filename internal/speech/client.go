// Package speech transcribes recorded audio through the Deepgram listen API.
package speech

import (
	"bytes"
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
	service = "speech"

	DefaultURL         = "https://api.deepgram.com"
	DefaultModel       = "nova-2"
	DefaultContentType = "audio/webm"

	// maxResponseBytes bounds a listen response; transcripts are text.
	maxResponseBytes = 4 << 20
)

// Config holds Deepgram settings. An empty APIKey disables the client.
type Config struct {
	URL     string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Client calls Deepgram.
type Client struct {
	cfg     Config
	hc      *http.Client
	maxBody int64
	observe func(service, outcome string)
}

func New(cfg Config) *Client {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	cfg.URL = strings.TrimRight(cfg.URL, "/")
	return &Client{cfg: cfg, hc: &http.Client{Timeout: cfg.Timeout}, maxBody: maxResponseBytes}
}

// SetObserver registers a callback invoked once per upstream call.
func (c *Client) SetObserver(fn func(service, outcome string)) {
	c.observe = fn
}

func (c *Client) Configured() bool {
	return c.cfg.APIKey != ""
}

type listenResponse struct {
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string `json:"transcript"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

// Transcribe returns the transcript of audio. A response without
// alternatives yields an empty transcript.
func (c *Client) Transcribe(ctx context.Context, audio []byte, contentType string) (transcript string, err error) {
	defer func() {
		if c.observe != nil {
			c.observe(service, apperr.Outcome(err))
		}
	}()

	if !c.Configured() {
		return "", fmt.Errorf("%s: %w", service, apperr.ErrNotConfigured)
	}
	if contentType == "" {
		contentType = DefaultContentType
	}

	q := url.Values{}
	q.Set("model", c.cfg.Model)
	q.Set("smart_format", "true")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL+"/v1/listen?"+q.Encode(), bytes.NewReader(audio))
	if err != nil {
		return "", fmt.Errorf("%s: build request: %w", service, err)
	}
	req.Header.Set("Authorization", "Token "+c.cfg.APIKey)
	req.Header.Set("Content-Type", contentType)

	res, err := c.hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s: %w: %v", service, apperr.ErrUpstream, err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, c.maxBody+1))
	if err != nil {
		return "", fmt.Errorf("%s: %w: read body: %v", service, apperr.ErrUpstream, err)
	}
	if res.StatusCode/100 != 2 {
		return "", apperr.FromStatus(service, res.StatusCode, raw)
	}
	if int64(len(raw)) > c.maxBody {
		return "", fmt.Errorf("%s: %w: response exceeds %d bytes", service, apperr.ErrMalformedResponse, c.maxBody)
	}

	var out listenResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("%s: %w: %v", service, apperr.ErrMalformedResponse, err)
	}
	if len(out.Results.Channels) == 0 || len(out.Results.Channels[0].Alternatives) == 0 {
		return "", nil
	}
	return out.Results.Channels[0].Alternatives[0].Transcript, nil
}

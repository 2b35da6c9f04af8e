package voice

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/starford/alignos/internal/apperr"
)

func TestSignedURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/convai/conversation/get_signed_url" || r.URL.Query().Get("agent_id") != "agent-7" {
			http.Error(w, "bad route", http.StatusNotFound)
			return
		}
		if r.Header.Get("xi-api-key") != "xi" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = io.WriteString(w, `{"signed_url":"wss://example/convai?token=abc"}`)
	}))
	defer srv.Close()

	tok, err := New(Config{URL: srv.URL, APIKey: "xi", AgentID: "agent-7"}).SignedURL(context.Background())
	if err != nil {
		t.Fatalf("SignedURL: %v", err)
	}
	if tok.SignedURL != "wss://example/convai?token=abc" {
		t.Errorf("token = %+v", tok)
	}

	if _, err := New(Config{URL: srv.URL, APIKey: "wrong", AgentID: "agent-7"}).SignedURL(context.Background()); !errors.Is(err, apperr.ErrUpstream) {
		t.Errorf("err = %v, want ErrUpstream", err)
	}
}

func TestSignedURLMissingField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{}`)
	}))
	defer srv.Close()

	if _, err := New(Config{URL: srv.URL, APIKey: "xi", AgentID: "a"}).SignedURL(context.Background()); !errors.Is(err, apperr.ErrMalformedResponse) {
		t.Errorf("err = %v", err)
	}
}

func TestSignedURLNotConfigured(t *testing.T) {
	if _, err := New(Config{APIKey: "xi"}).SignedURL(context.Background()); !errors.Is(err, apperr.ErrNotConfigured) {
		t.Errorf("err = %v", err)
	}
}

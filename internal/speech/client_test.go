package speech

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/starford/alignos/internal/apperr"
)

func TestTranscribe(t *testing.T) {
	var (
		gotQuery, gotAuth, gotType string
		gotBody                    []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/listen" {
			http.NotFound(w, r)
			return
		}
		gotQuery = r.URL.RawQuery
		gotAuth = r.Header.Get("Authorization")
		gotType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		_, _ = io.WriteString(w, `{"results":{"channels":[{"alternatives":[{"transcript":"we chose GCP"}]}]}}`)
	}))
	defer srv.Close()

	c := New(Config{URL: srv.URL, APIKey: "dg"})
	text, err := c.Transcribe(context.Background(), []byte("webm-bytes"), "")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text != "we chose GCP" {
		t.Errorf("text = %q", text)
	}
	if gotQuery != "model=nova-2&smart_format=true" {
		t.Errorf("query = %q", gotQuery)
	}
	if gotAuth != "Token dg" || gotType != "audio/webm" || string(gotBody) != "webm-bytes" {
		t.Errorf("auth=%q type=%q body=%q", gotAuth, gotType, gotBody)
	}
}

func TestTranscribeEmptyResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"results":{"channels":[]}}`)
	}))
	defer srv.Close()

	text, err := New(Config{URL: srv.URL, APIKey: "dg"}).Transcribe(context.Background(), []byte("x"), "audio/ogg")
	if err != nil || text != "" {
		t.Errorf("text=%q err=%v", text, err)
	}
}

func TestTranscribeErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	var outcome string
	c := New(Config{URL: srv.URL, APIKey: "dg"})
	c.SetObserver(func(_, o string) { outcome = o })
	if _, err := c.Transcribe(context.Background(), []byte("x"), ""); !errors.Is(err, apperr.ErrRateLimited) {
		t.Errorf("err = %v", err)
	}
	if outcome != "rate_limited" {
		t.Errorf("outcome = %q", outcome)
	}

	if _, err := New(Config{URL: srv.URL}).Transcribe(context.Background(), []byte("x"), ""); !errors.Is(err, apperr.ErrNotConfigured) {
		t.Errorf("err = %v", err)
	}
}

func TestTranscribeOversizedResponse(t *testing.T) {
	transcript := strings.Repeat("we chose GCP ", 20)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"results":{"channels":[{"alternatives":[{"transcript":"`+transcript+`"}]}]}}`)
	}))
	defer srv.Close()

	c := New(Config{URL: srv.URL, APIKey: "dg"})
	c.maxBody = 64
	if _, err := c.Transcribe(context.Background(), []byte("x"), ""); !errors.Is(err, apperr.ErrMalformedResponse) {
		t.Errorf("err = %v, want ErrMalformedResponse", err)
	}

	c.maxBody = maxResponseBytes
	if text, err := c.Transcribe(context.Background(), []byte("x"), ""); err != nil || text != transcript {
		t.Errorf("text=%q err=%v", text, err)
	}
}

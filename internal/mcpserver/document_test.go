package mcpserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func TestPublicAddr(t *testing.T) {
	tests := []struct {
		addr    string
		blocked bool
	}{
		{"127.0.0.1", true},
		{"127.8.8.8", true},
		{"::1", true},
		{"::ffff:127.0.0.1", true},
		{"0.0.0.0", true},
		{"::", true},
		{"10.0.0.5", true},
		{"172.16.0.1", true},
		{"192.168.1.1", true},
		{"169.254.1.1", true},
		{"169.254.169.254", true},
		{"fe80::1", true},
		{"fd00::1", true},
		{"fc00::abcd", true},
		{"100.64.0.1", true},
		{"198.18.0.9", true},
		{"224.0.0.1", true},
		{"ff02::1", true},
		{"255.255.255.255", true},
		{"8.8.8.8", false},
		{"93.184.216.34", false},
		{"2606:4700::1111", false},
	}
	for _, tt := range tests {
		ip := net.ParseIP(tt.addr)
		if ip == nil {
			t.Fatalf("bad test address %q", tt.addr)
		}
		err := publicAddr(ip)
		if got := err != nil; got != tt.blocked {
			t.Errorf("publicAddr(%s) err = %v, want blocked=%v", tt.addr, err, tt.blocked)
		}
	}
}

func TestVetChecksEveryResolvedAddress(t *testing.T) {
	f := newFetcher()
	resolved := map[string][]net.IPAddr{
		"docs.example.com":  {{IP: net.ParseIP("93.184.216.34")}, {IP: net.ParseIP("2606:4700::1111")}},
		"mixed.example.com": {{IP: net.ParseIP("93.184.216.34")}, {IP: net.ParseIP("10.1.2.3")}},
		"late.example.com":  {{IP: net.ParseIP("8.8.8.8")}, {IP: net.ParseIP("169.254.169.254")}},
		"empty.example.com": {},
	}
	f.lookup = func(_ context.Context, host string) ([]net.IPAddr, error) {
		addrs, ok := resolved[host]
		if !ok {
			return nil, errors.New("no such host")
		}
		return addrs, nil
	}

	tests := map[string]bool{
		"https://docs.example.com/plan.pdf":    false,
		"https://mixed.example.com/plan.pdf":   true,
		"https://late.example.com/plan.pdf":    true,
		"https://empty.example.com/plan.pdf":   true,
		"https://missing.example.com/plan.pdf": true,
		"http://localhost:8080/x.txt":          true,
		"http://LOCALHOST./x.txt":              true,
		"http://metadata.google.internal/":     true,
		"http://169.254.169.254/latest/":       true,
		"http://[fd00::1]/x.txt":               true,
		"http://8.8.8.8/x.txt":                 false,
		"file:///etc/passwd":                   true,
		"gopher://docs.example.com/plan.pdf":   true,
		"http:///no-host":                      true,
	}
	for raw, blocked := range tests {
		u, err := url.Parse(raw)
		if err != nil {
			t.Fatalf("parse %q: %v", raw, err)
		}
		err = f.vet(context.Background(), u)
		if got := err != nil; got != blocked {
			t.Errorf("vet(%s) err = %v, want blocked=%v", raw, err, blocked)
		}
	}
}

func TestFetcherRefusesPrivateDial(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("internal"))
	}))
	defer ts.Close()

	f := newFetcher()
	// The client itself refuses the connection even when nothing vetted the URL.
	resp, err := f.client.Get(ts.URL)
	if err == nil {
		_ = resp.Body.Close()
		t.Fatal("dial to loopback succeeded")
	}
	if !strings.Contains(err.Error(), "blocked address 127.0.0.1") {
		t.Errorf("err = %v", err)
	}
	if _, err := f.fetch(context.Background(), ts.URL+"/a.txt"); err == nil {
		t.Error("fetch of loopback succeeded")
	}
}

func TestFetcherVetsRedirects(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "http://169.254.169.254/latest/meta-data/", http.StatusFound)
	}))
	defer ts.Close()

	f := newFetcher()
	f.allow = func(ip net.IP) error {
		if ip.IsLoopback() {
			return nil
		}
		return publicAddr(ip)
	}
	_, err := f.fetch(context.Background(), ts.URL+"/doc.txt")
	if err == nil || !strings.Contains(err.Error(), "blocked address 169.254.169.254") {
		t.Errorf("err = %v", err)
	}
}

func TestFetchNamesDocument(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/download", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="Q3 plan.md"`)
		_, _ = w.Write([]byte("# Q3 plan"))
	})
	mux.HandleFunc("/moved", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/files/minutes.txt", http.StatusFound)
	})
	mux.HandleFunc("/files/minutes.txt", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("Minutes"))
	})
	mux.HandleFunc("/big", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "999999999")
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	f := newFetcher()
	f.allow = func(net.IP) error { return nil }
	ctx := context.Background()

	doc, err := f.fetch(ctx, ts.URL+"/download")
	if err != nil {
		t.Fatal(err)
	}
	if doc.name != "Q3 plan.md" || doc.mediaType != "text/markdown" {
		t.Errorf("doc = %q %q", doc.name, doc.mediaType)
	}
	if name, _ := doc.filename(""); name != "Q3_plan.md" {
		t.Errorf("filename = %q", name)
	}

	doc, err = f.fetch(ctx, ts.URL+"/moved")
	if err != nil {
		t.Fatal(err)
	}
	if doc.name != "minutes.txt" {
		t.Errorf("redirected name = %q", doc.name)
	}

	if _, err := f.fetch(ctx, ts.URL+"/big"); err == nil || !strings.Contains(err.Error(), "too large") {
		t.Errorf("big err = %v", err)
	}
	if _, err := f.fetch(ctx, ts.URL+"/missing"); err == nil {
		t.Error("404 should fail")
	}
}

func TestParseDataURI(t *testing.T) {
	tests := []struct {
		uri       string
		mediaType string
		name      string
		data      string
		wantErr   bool
	}{
		{uri: "data:text/markdown;base64,IyBSZXRybw==", mediaType: "text/markdown", data: "# Retro"},
		{uri: "data:text/markdown;base64,IyBSZXRybw", mediaType: "text/markdown", data: "# Retro"},
		{uri: "data:text/plain;charset=utf-8;name=retro.txt,Ship%20it", mediaType: "text/plain", name: "retro.txt", data: "Ship it"},
		{uri: "data:,hello", mediaType: "text/plain", data: "hello"},
		{uri: "data:text/plain;base64", wantErr: true},
		{uri: "data:text/plain,", wantErr: true},
		{uri: "data:text/plain;base64,!!!", wantErr: true},
		{uri: "data:text/plain,%zz", wantErr: true},
		{uri: "data:not a type;base64,aGk=", wantErr: true},
	}
	for _, tt := range tests {
		doc, err := parseDataURI(tt.uri)
		if tt.wantErr {
			if err == nil {
				t.Errorf("%s: expected error", tt.uri)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: %v", tt.uri, err)
			continue
		}
		if doc.mediaType != tt.mediaType || doc.name != tt.name || string(doc.data) != tt.data {
			t.Errorf("%s: got %q %q %q", tt.uri, doc.mediaType, doc.name, doc.data)
		}
	}
}

func TestDocumentFilename(t *testing.T) {
	pdf := []byte("%PDF-1.4\n")
	tests := []struct {
		name     string
		doc      document
		override string
		want     string
		wantErr  bool
	}{
		{name: "override wins", doc: document{name: "a.txt", data: []byte("x")}, override: "../b.md", want: "b.md"},
		{name: "source name", doc: document{name: "board minutes.pdf", data: pdf}, want: "board_minutes.pdf"},
		{name: "media type ext", doc: document{name: "report", mediaType: "application/pdf", data: pdf}, want: "report.pdf"},
		{name: "sniffed ext", doc: document{name: "report", mediaType: "application/octet-stream", data: pdf}, want: "report.pdf"},
		{name: "unknown", doc: document{name: "blob", mediaType: "application/zip", data: []byte("PK\x03\x04")}, wantErr: true},
	}
	for _, tt := range tests {
		got, err := tt.doc.filename(tt.override)
		if tt.wantErr {
			if err == nil {
				t.Errorf("%s: expected error, got %q", tt.name, got)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("%s: got %q, %v; want %q", tt.name, got, err, tt.want)
		}
	}

	if got, err := (&document{mediaType: "text/plain", data: []byte("hi")}).filename(""); err != nil || !strings.HasSuffix(got, ".txt") {
		t.Errorf("unnamed text = %q, %v", got, err)
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"../../etc/passwd": "passwd",
		`dir\notes.md`:     "notes.md",
		"q3 plan (v2).pdf": "q3_plan__v2_.pdf",
		".hidden.md":       "hidden.md",
		"":                 "",
		"..":               "",
	}
	for in, want := range tests {
		got := sanitizeFilename(in)
		if want == "" {
			if got == "" || strings.Trim(got, "._") == "" {
				t.Errorf("sanitizeFilename(%q) = %q", in, got)
			}
			continue
		}
		if got != want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}

package mcpserver

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/alignos/internal/ingest"
)

const (
	fetchTimeout = 30 * time.Second
	dialTimeout  = 10 * time.Second
	maxRedirects = 5

	// maxDocumentBytes caps any read; formatLimits then applies per format.
	maxDocumentBytes = ingest.DefaultMaxFileBytes
)

// formatLimits bounds each document format once it has been identified.
var formatLimits = map[ingest.Format]int{
	ingest.FormatText: 2 << 20,
	ingest.FormatPDF:  maxDocumentBytes,
	ingest.FormatDOCX: maxDocumentBytes,
	ingest.FormatDOC:  10 << 20,
}

var (
	mediaExt = map[string]string{
		"text/plain":         ".txt",
		"text/markdown":      ".md",
		"text/x-markdown":    ".md",
		"application/pdf":    ".pdf",
		"application/msword": ".doc",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document": ".docx",
	}

	unsafeNameRe = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

	// blockedHostnames never resolve to anything we should read.
	blockedHostnames = map[string]bool{
		"localhost":                true,
		"metadata.google.internal": true,
	}

	// reservedNets are non-public ranges the net.IP predicates miss.
	reservedNets = mustCIDRs(
		"0.0.0.0/8",
		"100.64.0.0/10",
		"192.0.0.0/24",
		"198.18.0.0/15",
		"240.0.0.0/4",
	)
)

func mustCIDRs(cidrs ...string) []*net.IPNet {
	out := make([]*net.IPNet, 0, len(cidrs))
	for _, c := range cidrs {
		_, n, err := net.ParseCIDR(c)
		if err != nil {
			panic(err)
		}
		out = append(out, n)
	}
	return out
}

// document is a file read from a URL, before it is handed to ingest.
type document struct {
	// name is what the source called the file, possibly empty.
	name      string
	mediaType string
	data      []byte
}

// filename picks the stored name: override, then the source's name, then a
// random one. A name without an extension gets one from the media type or
// the sniffed content.
func (d *document) filename(override string) (string, error) {
	name := override
	if name == "" {
		name = d.name
	}
	name = sanitizeFilename(name)
	if path.Ext(name) != "" {
		return name, nil
	}
	ext := mediaExt[d.mediaType]
	if ext == "" {
		sniffed, _, _ := mime.ParseMediaType(http.DetectContentType(d.data))
		ext = mediaExt[sniffed]
	}
	if ext == "" {
		return "", fmt.Errorf("cannot tell the document type of %s (%s)", name, d.mediaType)
	}
	return name + ext, nil
}

func (s *Server) ingestDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rawURL, err := req.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var doc *document
	if strings.HasPrefix(rawURL, "data:") {
		doc, err = parseDataURI(rawURL)
	} else {
		doc, err = s.fetcher.fetch(ctx, rawURL)
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	name, err := doc.filename(req.GetString("filename", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	format, err := ingest.Detect(name, doc.data)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if limit := formatLimits[format]; len(doc.data) > limit {
		return mcp.NewToolResultError(fmt.Sprintf("%s documents are limited to %d bytes, got %d", format, limit, len(doc.data))), nil
	}

	res, err := s.ingest.ExtractFile(ctx, name, doc.data)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res)
}

// parseDataURI reads data:[<mediatype>][;base64],<data>. Without ;base64
// the payload is percent-encoded text.
func parseDataURI(uri string) (*document, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(uri, "data:"), ",")
	if !ok {
		return nil, fmt.Errorf("invalid data URI: missing comma separator")
	}
	meta, isBase64 := strings.CutSuffix(meta, ";base64")

	doc := &document{mediaType: "text/plain"}
	if meta != "" {
		mediaType, params, err := mime.ParseMediaType(meta)
		if err != nil {
			return nil, fmt.Errorf("invalid data URI media type %q: %w", meta, err)
		}
		doc.mediaType, doc.name = mediaType, params["name"]
	}

	if isBase64 {
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			if data, err = base64.RawStdEncoding.DecodeString(payload); err != nil {
				return nil, fmt.Errorf("invalid base64 data: %w", err)
			}
		}
		doc.data = data
	} else {
		text, err := url.PathUnescape(payload)
		if err != nil {
			return nil, fmt.Errorf("invalid data URI payload: %w", err)
		}
		doc.data = []byte(text)
	}

	switch {
	case len(doc.data) == 0:
		return nil, fmt.Errorf("data URI is empty")
	case len(doc.data) > maxDocumentBytes:
		return nil, fmt.Errorf("file too large: %d bytes (max %d)", len(doc.data), maxDocumentBytes)
	}
	return doc, nil
}

// fetcher downloads documents from public http(s) hosts. Every resolved
// address is checked before the request and again at dial time, so a name
// that re-resolves to a private address is still refused.
type fetcher struct {
	client *http.Client
	lookup func(ctx context.Context, host string) ([]net.IPAddr, error)
	allow  func(ip net.IP) error
}

func newFetcher() *fetcher {
	f := &fetcher{
		lookup: net.DefaultResolver.LookupIPAddr,
		allow:  publicAddr,
	}
	dialer := &net.Dialer{Timeout: dialTimeout, Control: f.control}
	f.client = &http.Client{
		Timeout: fetchTimeout,
		// No Proxy: a proxy would be dialled in place of the target.
		Transport: &http.Transport{
			DialContext:           dialer.DialContext,
			TLSHandshakeTimeout:   dialTimeout,
			ResponseHeaderTimeout: fetchTimeout,
			MaxIdleConns:          4,
			IdleConnTimeout:       30 * time.Second,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("too many redirects (max %d)", maxRedirects)
			}
			return f.vet(req.Context(), req.URL)
		},
	}
	return f
}

// control runs on every outgoing connection with the address actually dialled.
func (f *fetcher) control(_, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return fmt.Errorf("dial %s: not an IP address", address)
	}
	return f.allow(ip)
}

// vet checks the scheme and every address the host resolves to.
func (f *fetcher) vet(ctx context.Context, u *url.URL) error {
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme: %s (only http/https)", u.Scheme)
	}
	host := strings.ToLower(strings.TrimSuffix(u.Hostname(), "."))
	if host == "" {
		return fmt.Errorf("URL has no host")
	}
	if blockedHostnames[host] {
		return fmt.Errorf("blocked host: %s", host)
	}
	if ip := net.ParseIP(host); ip != nil {
		return f.allow(ip)
	}

	addrs, err := f.lookup(ctx, host)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", host, err)
	}
	if len(addrs) == 0 {
		return fmt.Errorf("resolve %s: no addresses", host)
	}
	for _, a := range addrs {
		if err := f.allow(a.IP); err != nil {
			return fmt.Errorf("host %s: %w", host, err)
		}
	}
	return nil
}

func (f *fetcher) fetch(ctx context.Context, rawURL string) (*document, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if err := f.vet(ctx, u); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download failed: HTTP %d", resp.StatusCode)
	}
	if resp.ContentLength > maxDocumentBytes {
		return nil, fmt.Errorf("file too large: %d bytes (max %d)", resp.ContentLength, maxDocumentBytes)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body failed: %w", err)
	}
	if len(data) > maxDocumentBytes {
		return nil, fmt.Errorf("file too large: exceeds %d bytes", maxDocumentBytes)
	}

	doc := &document{data: data}
	doc.mediaType, _, _ = mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil {
		doc.name = params["filename"]
	}
	if doc.name == "" {
		// resp.Request is the last request, after redirects.
		doc.name = path.Base(resp.Request.URL.Path)
	}
	return doc, nil
}

// publicAddr refuses loopback, private, link-local, multicast, unspecified
// and reserved addresses.
func publicAddr(ip net.IP) error {
	switch {
	case ip.IsLoopback(), ip.IsPrivate(), ip.IsUnspecified(),
		ip.IsLinkLocalUnicast(), ip.IsLinkLocalMulticast(),
		ip.IsInterfaceLocalMulticast(), ip.IsMulticast():
		return fmt.Errorf("blocked address %s", ip)
	}
	for _, n := range reservedNets {
		if n.Contains(ip) {
			return fmt.Errorf("blocked address %s", ip)
		}
	}
	return nil
}

// sanitizeFilename keeps the last path element and replaces anything but
// letters, digits, dots, dashes and underscores.
func sanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.Trim(unsafeNameRe.ReplaceAllString(name, "_"), "._")
	if name == "" {
		name = uuid.NewString()
	}
	return name
}

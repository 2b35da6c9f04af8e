package ingest

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dslipak/pdf"

	"github.com/starford/alignos/internal/apperr"
)

// Format is the extractor a file is routed to.
type Format string

const (
	FormatText Format = "text"
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
	FormatDOC  Format = "doc"
)

// minDocRun is the shortest printable run kept from a legacy .doc file.
const minDocRun = 4

// Detect picks the extractor from the extension and checks that the leading
// bytes agree with it.
func Detect(filename string, data []byte) (Format, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	sniffed := http.DetectContentType(data)

	var f Format
	ok := false
	switch ext {
	case ".txt", ".md", ".markdown":
		f, ok = FormatText, strings.HasPrefix(sniffed, "text/")
	case ".pdf":
		f, ok = FormatPDF, sniffed == "application/pdf"
	case ".docx":
		f, ok = FormatDOCX, sniffed == "application/zip"
	case ".doc":
		f, ok = FormatDOC, sniffed == "application/msword" || sniffed == "application/octet-stream"
	default:
		return "", fmt.Errorf("ingest: %w: unsupported file type %q", apperr.ErrValidation, ext)
	}
	if !ok {
		return "", fmt.Errorf("ingest: %w: %s content does not match its extension (%s)", apperr.ErrValidation, ext, sniffed)
	}
	return f, nil
}

// pdfText extracts the text layer of a PDF in-process.
func pdfText(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("ingest: %w: open pdf: %v", apperr.ErrValidation, err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("ingest: read pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", fmt.Errorf("ingest: read pdf text: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// docxText unzips word/document.xml and keeps its character data, with a
// newline per paragraph and a tab per <w:tab/>.
func docxText(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("ingest: %w: open docx: %v", apperr.ErrValidation, err)
	}
	var doc *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			doc = f
			break
		}
	}
	if doc == nil {
		return "", fmt.Errorf("ingest: %w: docx has no word/document.xml", apperr.ErrValidation)
	}
	rc, err := doc.Open()
	if err != nil {
		return "", fmt.Errorf("ingest: open document.xml: %w", err)
	}
	defer rc.Close()

	var sb strings.Builder
	dec := xml.NewDecoder(rc)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("ingest: %w: docx xml: %v", apperr.ErrValidation, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				if sb.Len() > 0 {
					sb.WriteString("\n")
				}
			case "tab":
				sb.WriteString("\t")
			}
		case xml.CharData:
			sb.Write(t)
		}
	}
	return strings.TrimSpace(sb.String()), nil
}

// docText recovers readable text from a legacy Word binary by keeping runs
// of printable characters, decoded as UTF-16LE where the file stores them
// that way.
func docText(data []byte) string {
	var (
		out strings.Builder
		run []rune
	)
	flush := func() {
		if len(run) >= minDocRun {
			if out.Len() > 0 {
				out.WriteByte('\n')
			}
			out.WriteString(strings.TrimSpace(string(run)))
		}
		run = run[:0]
	}
	for i := 0; i < len(data); {
		r, size := utf8.DecodeRune(data[i:])
		if i+1 < len(data) && data[i+1] == 0 && data[i] >= 0x20 && data[i] < 0x7f {
			r, size = rune(data[i]), 2
		}
		if r != utf8.RuneError && (unicode.IsPrint(r) || r == '\t') {
			run = append(run, r)
		} else {
			flush()
		}
		i += size
	}
	flush()
	return out.String()
}

// Package extract turns uploaded file bytes into plain text for the
// ingestion pipeline. Supported types: PDF, plain text, markdown, CSV
// and JSON. Anything else fails before any persistence happens.
package extract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"unboxed/internal/apperrors"
)

// Result carries the extracted text and the file facts reported back to
// the uploader.
type Result struct {
	Text        string
	Filename    string
	ContentType string
	FileSize    int
	WordCount   int
}

// Extractor dispatches on MIME content type.
type Extractor struct {
	handlers map[string]func([]byte) (string, error)
}

// New returns an Extractor with all supported content types registered.
func New() *Extractor {
	e := &Extractor{handlers: make(map[string]func([]byte) (string, error))}
	e.handlers["application/pdf"] = extractPDF
	e.handlers["text/plain"] = extractText
	e.handlers["text/markdown"] = extractText
	e.handlers["text/csv"] = extractText
	e.handlers["application/json"] = extractJSON
	return e
}

// Supported reports whether contentType can be extracted.
func (e *Extractor) Supported(contentType string) bool {
	_, ok := e.handlers[normalizeContentType(contentType)]
	return ok
}

// SupportedTypes returns the accepted MIME types, sorted.
func (e *Extractor) SupportedTypes() []string {
	types := make([]string, 0, len(e.handlers))
	for t := range e.handlers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Extract pulls plain text out of data and computes the file facts.
// Returns apperrors.ErrUnsupportedType for unregistered content types
// and apperrors.ErrEmptyDocument when extraction yields nothing usable.
func (e *Extractor) Extract(data []byte, contentType, filename string) (*Result, error) {
	handler, ok := e.handlers[normalizeContentType(contentType)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrUnsupportedType, contentType)
	}

	text, err := handler(data)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", filename, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%s: %w", filename, apperrors.ErrEmptyDocument)
	}

	return &Result{
		Text:        text,
		Filename:    filename,
		ContentType: contentType,
		FileSize:    len(data),
		WordCount:   len(strings.Fields(text)),
	}, nil
}

// normalizeContentType strips parameters like "; charset=utf-8".
func normalizeContentType(ct string) string {
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.ToLower(strings.TrimSpace(ct))
}

func extractPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	var sb strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			// A single unreadable page should not sink the document.
			continue
		}
		sb.WriteString(content)
		sb.WriteByte('\n')
	}
	return sb.String(), nil
}

func extractText(data []byte) (string, error) {
	if utf8.Valid(data) {
		return string(data), nil
	}
	// Latin-1 fallback: every byte maps to the same code point.
	runes := make([]rune, len(data))
	for i, b := range data {
		runes[i] = rune(b)
	}
	return string(runes), nil
}

// extractJSON flattens a JSON document into "key: value" text. Arrays
// and nested objects are rendered inline; non-JSON input falls back to
// plain text.
func extractJSON(data []byte) (string, error) {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return extractText(data)
	}

	obj, ok := doc.(map[string]any)
	if !ok {
		return fmt.Sprintf("%v", doc), nil
	}

	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		switch v := obj[k].(type) {
		case string:
			parts = append(parts, fmt.Sprintf("%s: %s", k, v))
		default:
			parts = append(parts, fmt.Sprintf("%s: %v", k, v))
		}
	}
	return strings.Join(parts, " "), nil
}

// Package extract turns uploaded file bytes into plain text.
package extract

import (
	"context"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"docrag/internal/crawler"
	"docrag/internal/domain"
)

// Func extracts plain text from raw file contents.
type Func func(ctx context.Context, data []byte) (string, error)

// Registry maps type tags such as "pdf" or "txt" to extractors.
type Registry struct {
	byType map[string]Func
}

// NewRegistry returns a registry with the built-in extractors.
func NewRegistry() *Registry {
	r := &Registry{byType: map[string]Func{}}
	for _, t := range []string{"txt", "text", "md", "markdown", "csv"} {
		r.Register(t, plainText)
	}
	r.Register("html", htmlText)
	r.Register("htm", htmlText)
	r.Register("pdf", pdfText)
	r.Register("docx", docxText)
	r.Register("xlsx", xlsxText)
	return r
}

// Register installs fn for typeTag, replacing any previous extractor.
func (r *Registry) Register(typeTag string, fn Func) {
	r.byType[NormalizeType(typeTag)] = fn
}

// Supports reports whether typeTag has an extractor.
func (r *Registry) Supports(typeTag string) bool {
	_, ok := r.byType[NormalizeType(typeTag)]
	return ok
}

// Types lists registered type tags.
func (r *Registry) Types() []string {
	out := make([]string, 0, len(r.byType))
	for t := range r.byType {
		out = append(out, t)
	}
	return out
}

// Extract returns the text of data interpreted as typeTag.
func (r *Registry) Extract(ctx context.Context, data []byte, typeTag string) (string, error) {
	tag := NormalizeType(typeTag)
	fn, ok := r.byType[tag]
	if !ok {
		return "", domain.Unsupported(domain.ErrUnsupportedType, "type %q", tag)
	}
	text, err := fn(ctx, data)
	if err != nil {
		return "", domain.Validation(err, "extraction error (%s)", tag)
	}
	return text, nil
}

// NormalizeType lowercases a type tag and strips a leading dot.
func NormalizeType(typeTag string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(typeTag)), ".")
}

// TypeFromFilename returns the normalised extension of name.
func TypeFromFilename(name string) string {
	return NormalizeType(filepath.Ext(name))
}

func plainText(_ context.Context, data []byte) (string, error) {
	if !utf8.Valid(data) {
		return strings.ToValidUTF8(string(data), "�"), nil
	}
	return string(data), nil
}

func htmlText(_ context.Context, data []byte) (string, error) {
	return crawler.ExtractText(data)
}

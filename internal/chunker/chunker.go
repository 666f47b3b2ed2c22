// Package chunker splits raw text into overlapping segments for embedding.
package chunker

import "docrag/internal/domain"

// Chunker splits text into ordered segments.
type Chunker interface {
	Chunk(text string) ([]string, error)
}

// WindowChunker cuts text into fixed-size character windows that overlap
// their predecessor by a fixed number of characters.
type WindowChunker struct {
	size    int
	overlap int
}

// NewWindowChunker validates size and overlap and returns a WindowChunker.
func NewWindowChunker(size, overlap int) (*WindowChunker, error) {
	if err := validate(size, overlap); err != nil {
		return nil, err
	}
	return &WindowChunker{size: size, overlap: overlap}, nil
}

func (c *WindowChunker) Chunk(text string) ([]string, error) {
	return Split(text, c.size, c.overlap)
}

// Split returns windows of size characters starting at offsets
// 0, size-overlap, 2*(size-overlap), ... until the start offset reaches the
// end of text. The last window may be shorter than size. Offsets count
// Unicode code points, so a window never splits a UTF-8 sequence, but it
// may split a multi-rune grapheme.
func Split(text string, size, overlap int) ([]string, error) {
	if err := validate(size, overlap); err != nil {
		return nil, err
	}
	runes := []rune(text)
	if len(runes) == 0 {
		return nil, nil
	}
	stride := size - overlap
	out := make([]string, 0, (len(runes)+stride-1)/stride)
	for start := 0; start < len(runes); start += stride {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[start:end]))
	}
	return out, nil
}

func validate(size, overlap int) error {
	if size <= 0 {
		return domain.Validation(nil, "chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return domain.Validation(nil, "chunk overlap must be in [0, %d), got %d", size, overlap)
	}
	return nil
}

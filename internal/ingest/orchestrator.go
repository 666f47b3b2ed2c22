// Package ingest turns raw text into stored, embedded chunks.
package ingest

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"docrag/internal/chunker"
	"docrag/internal/domain"
	"docrag/internal/vectorstore"
)

// BatchEmbedder embeds texts, returning one vector per text in order.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float64, error)
}

// Orchestrator runs chunk → embed → append for each ingestion. Nothing is
// written unless every chunk of the call was embedded.
type Orchestrator struct {
	chunker  chunker.Chunker
	embedder BatchEmbedder
	store    vectorstore.Storage
	log      *slog.Logger
	now      func() time.Time
}

// New creates an Orchestrator.
func New(c chunker.Chunker, e BatchEmbedder, s vectorstore.Storage, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		chunker:  c,
		embedder: e,
		store:    s,
		log:      logger.With("component", "ingest"),
		now:      time.Now,
	}
}

// Ingest stores text from source and returns the number of chunks created.
func (o *Orchestrator) Ingest(ctx context.Context, text, source string) (int, error) {
	if strings.TrimSpace(text) == "" {
		return 0, domain.Validation(domain.ErrEmptyText, "ingest %q", source)
	}
	return o.IngestDocuments(ctx, []domain.Document{{Text: text, Source: source}})
}

// IngestDocuments stores several documents in one embed and one append.
// Blank documents are skipped; if all of them are blank it fails.
func (o *Orchestrator) IngestDocuments(ctx context.Context, docs []domain.Document) (int, error) {
	var (
		texts   []string
		sources []string
	)
	for _, d := range docs {
		if strings.TrimSpace(d.Text) == "" {
			o.log.Debug("skipping blank document", "source", d.Source)
			continue
		}
		windows, err := o.chunker.Chunk(d.Text)
		if err != nil {
			return 0, err
		}
		for _, w := range windows {
			texts = append(texts, w)
			sources = append(sources, d.Source)
		}
	}
	if len(texts) == 0 {
		return 0, domain.Validation(domain.ErrEmptyText, "no text to ingest")
	}

	start := time.Now()
	vecs, err := o.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, err
	}

	stamp := strconv.FormatInt(o.now().UnixMilli(), 10)
	chunks := make([]domain.Chunk, len(texts))
	for i := range texts {
		chunks[i] = domain.Chunk{
			ID:        sources[i] + "_" + stamp + "_" + strconv.Itoa(i),
			Text:      texts[i],
			Embedding: vecs[i],
			Source:    sources[i],
		}
	}
	if err := o.store.Append(ctx, chunks); err != nil {
		return 0, err
	}
	o.log.Info("ingested",
		"documents", len(docs),
		"chunks", len(chunks),
		"total", o.store.Len(),
		"took", time.Since(start).Round(time.Millisecond),
	)
	return len(chunks), nil
}

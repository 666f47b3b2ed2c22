// Package service wires extraction, ingestion, crawling and retrieval into
// the operations exposed by the HTTP API, the CLI and the TUI.
package service

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"docrag/internal/domain"
	"docrag/internal/extract"
	"docrag/internal/llm"
	"docrag/internal/retriever"
	"docrag/internal/vectorstore"
)

// Ingester stores text as embedded chunks.
type Ingester interface {
	Ingest(ctx context.Context, text, source string) (int, error)
	IngestDocuments(ctx context.Context, docs []domain.Document) (int, error)
}

// QueryEmbedder embeds a single question.
type QueryEmbedder interface {
	Name() string
	EmbedQuery(ctx context.Context, text string) ([]float64, error)
}

// SiteCrawler fetches single pages or whole sites.
type SiteCrawler interface {
	Crawl(ctx context.Context, baseURL string, maxPages int) ([]domain.Page, error)
	FetchPage(ctx context.Context, rawURL string) (domain.Page, error)
}

// Extractor turns file bytes into text.
type Extractor interface {
	Extract(ctx context.Context, data []byte, typeTag string) (string, error)
}

// Deps are the collaborators of a RAGService.
type Deps struct {
	Ingester  Ingester
	Embedder  QueryEmbedder
	Store     vectorstore.Storage
	Crawler   SiteCrawler
	Extractor Extractor
	Completer llm.Completer
}

// Options tune request defaults.
type Options struct {
	TopK          int
	MaxPages      int
	MaxPagesLimit int
	SystemPrompt  string
}

// Stats describes the current contents of the store.
type Stats struct {
	Chunks    int            `json:"chunks"`
	Dimension int            `json:"dimension"`
	Embedder  string         `json:"embedder"`
	Sources   map[string]int `json:"sources"`
}

// RAGService is safe for concurrent use; writes are serialised by the store.
type RAGService struct {
	deps Deps
	opts Options
	log  *slog.Logger
}

// NewRAGService creates the service. Zero options take defaults.
func NewRAGService(deps Deps, opts Options, logger *slog.Logger) *RAGService {
	if opts.TopK <= 0 {
		opts.TopK = 5
	}
	if opts.MaxPagesLimit <= 0 {
		opts.MaxPagesLimit = 200
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = 20
	}
	opts.MaxPages = min(opts.MaxPages, opts.MaxPagesLimit)
	if opts.SystemPrompt == "" {
		opts.SystemPrompt = llm.DefaultSystemPrompt
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RAGService{deps: deps, opts: opts, log: logger.With("component", "service")}
}

// IngestUpload extracts text from data according to typeTag and stores it
// with the normalised type tag as its source.
func (s *RAGService) IngestUpload(ctx context.Context, data []byte, typeTag string) (int, error) {
	tag := extract.NormalizeType(typeTag)
	text, err := s.deps.Extractor.Extract(ctx, data, tag)
	if err != nil {
		return 0, err
	}
	return s.deps.Ingester.Ingest(ctx, text, tag)
}

// IngestFiles reads every file matching paths (glob patterns allowed) and
// ingests them in a single batch. Files of unsupported type are skipped.
func (s *RAGService) IngestFiles(ctx context.Context, paths []string) (int, error) {
	var docs []domain.Document
	for _, p := range paths {
		matches, err := filepath.Glob(p)
		if err != nil {
			return 0, domain.Validation(err, "bad pattern %q", p)
		}
		if matches == nil {
			matches = []string{p}
		}
		for _, m := range matches {
			tag := extract.TypeFromFilename(m)
			data, err := os.ReadFile(m)
			if errors.Is(err, fs.ErrNotExist) {
				return 0, &domain.Error{Kind: domain.KindNotFound, Msg: "no such file " + m, Err: err}
			}
			if err != nil {
				return 0, domain.Validation(err, "read %s", m)
			}
			text, err := s.deps.Extractor.Extract(ctx, data, tag)
			if domain.KindOf(err) == domain.KindUnsupported {
				s.log.Warn("skipping file", "path", m, "err", err)
				continue
			}
			if err != nil {
				return 0, err
			}
			docs = append(docs, domain.Document{Text: text, Source: tag})
		}
	}
	if len(docs) == 0 {
		return 0, domain.Unsupported(domain.ErrUnsupportedType, "no supported documents found")
	}
	return s.deps.Ingester.IngestDocuments(ctx, docs)
}

// IngestText stores raw text. An empty source is labelled "text".
func (s *RAGService) IngestText(ctx context.Context, text, source string) (int, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		source = "text"
	}
	return s.deps.Ingester.Ingest(ctx, text, source)
}

// IngestPage fetches one page and stores it with source "website".
func (s *RAGService) IngestPage(ctx context.Context, rawURL string) (int, error) {
	page, err := s.deps.Crawler.FetchPage(ctx, rawURL)
	if err != nil {
		return 0, err
	}
	return s.deps.Ingester.Ingest(ctx, page.Text, "website")
}

// CrawlSite crawls from rawURL and ingests all pages in one call, so
// either every page's chunks are stored or none. Each chunk's source is
// its page URL. maxPages <= 0 uses the default; larger values are capped.
func (s *RAGService) CrawlSite(ctx context.Context, rawURL string, maxPages int) (domain.CrawlReport, error) {
	if maxPages <= 0 {
		maxPages = s.opts.MaxPages
	}
	maxPages = min(maxPages, s.opts.MaxPagesLimit)

	pages, err := s.deps.Crawler.Crawl(ctx, rawURL, maxPages)
	if err != nil {
		return domain.CrawlReport{}, err
	}
	if len(pages) == 0 {
		return domain.CrawlReport{}, domain.Upstream(nil, "no pages with text found at %s", rawURL)
	}
	docs := make([]domain.Document, len(pages))
	for i, p := range pages {
		docs[i] = domain.Document{Text: p.Text, Source: p.URL}
	}
	n, err := s.deps.Ingester.IngestDocuments(ctx, docs)
	if err != nil {
		return domain.CrawlReport{}, err
	}
	s.log.Info("crawled site", "url", rawURL, "pages", len(pages), "chunks", n)
	return domain.CrawlReport{Pages: len(pages), Chunks: n}, nil
}

// Search returns the k chunks closest to question. k <= 0 uses the
// default. When the question embeds to the zero vector (no known tokens
// for a hashing embedder) chunks are ranked by word overlap instead.
func (s *RAGService) Search(ctx context.Context, question string, k int) ([]domain.SearchResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, domain.Validation(domain.ErrEmptyQuestion, "ask")
	}
	if k <= 0 {
		k = s.opts.TopK
	}
	qv, err := s.deps.Embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, err
	}
	chunks := s.deps.Store.Snapshot()
	if dim := vectorstore.Dimension(chunks); dim != 0 && dim != len(qv) {
		return nil, domain.Validation(domain.ErrDimensionMismatch,
			"query has %d values but the store holds %d; was the embedder changed?", len(qv), dim)
	}
	if isZero(qv) {
		return lexicalSearch(question, chunks, k), nil
	}
	return retriever.Rank(qv, chunks, k), nil
}

// Ask retrieves the top k chunks and has the completer answer from them.
// The answer cites the IDs of the chunks used as context.
func (s *RAGService) Ask(ctx context.Context, question string, k int) (domain.Answer, error) {
	matches, err := s.Search(ctx, question, k)
	if err != nil {
		return domain.Answer{}, err
	}
	passages := make([]string, len(matches))
	sources := make([]string, len(matches))
	for i, m := range matches {
		passages[i] = m.Chunk.Text
		sources[i] = m.Chunk.ID
	}
	text, err := s.deps.Completer.Complete(ctx, llm.Prompt{
		System:   s.opts.SystemPrompt,
		Context:  passages,
		Question: strings.TrimSpace(question),
	})
	if err != nil {
		return domain.Answer{}, domain.Upstream(err, "generate answer")
	}
	s.log.Debug("answered question", "matches", len(matches))
	return domain.Answer{Text: text, Sources: sources, Matches: matches}, nil
}

// Stats reports chunk counts per source.
func (s *RAGService) Stats() Stats {
	chunks := s.deps.Store.Snapshot()
	return Stats{
		Chunks:    len(chunks),
		Dimension: vectorstore.Dimension(chunks),
		Embedder:  s.deps.Embedder.Name(),
		Sources:   vectorstore.CountBySource(chunks),
	}
}

func isZero(v []float64) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

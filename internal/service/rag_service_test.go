package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrag/internal/chunker"
	"docrag/internal/domain"
	"docrag/internal/embedding"
	"docrag/internal/embedding/hashing"
	"docrag/internal/extract"
	"docrag/internal/ingest"
	"docrag/internal/llm"
	"docrag/internal/llm/extractive"
	"docrag/internal/vectorstore/memory"
)

type fakeCrawler struct {
	pages    []domain.Page
	err      error
	gotMax   int
	gotURL   string
	pageText string
}

func (f *fakeCrawler) Crawl(_ context.Context, baseURL string, maxPages int) ([]domain.Page, error) {
	f.gotURL, f.gotMax = baseURL, maxPages
	return f.pages, f.err
}

func (f *fakeCrawler) FetchPage(_ context.Context, rawURL string) (domain.Page, error) {
	if f.err != nil {
		return domain.Page{}, f.err
	}
	return domain.Page{URL: rawURL, Text: f.pageText}, nil
}

type recordingCompleter struct {
	prompts []llm.Prompt
	answer  string
	err     error
}

func (r *recordingCompleter) Complete(_ context.Context, p llm.Prompt) (string, error) {
	r.prompts = append(r.prompts, p)
	return r.answer, r.err
}

type zeroEmbedder struct{}

func (zeroEmbedder) Name() string { return "zero" }
func (zeroEmbedder) EmbedQuery(context.Context, string) ([]float64, error) {
	return []float64{0, 0}, nil
}

type harness struct {
	svc     *RAGService
	store   *memory.Storage
	crawler *fakeCrawler
}

func newHarness(t *testing.T, completer llm.Completer) *harness {
	t.Helper()
	ch, err := chunker.NewWindowChunker(500, 100)
	require.NoError(t, err)
	batcher := embedding.NewBatcher(hashing.NewEmbedder(4096), embedding.BatcherConfig{BatchSize: 4})
	store := memory.NewStorage()
	cr := &fakeCrawler{}
	if completer == nil {
		completer = extractive.New(3)
	}
	svc := NewRAGService(Deps{
		Ingester:  ingest.New(ch, batcher, store, nil),
		Embedder:  batcher,
		Store:     store,
		Crawler:   cr,
		Extractor: extract.NewRegistry(),
		Completer: completer,
	}, Options{TopK: 3, MaxPages: 20, MaxPagesLimit: 200}, nil)
	return &harness{svc: svc, store: store, crawler: cr}
}

func TestAsk_AnswersFromBestChunk(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	_, err := h.svc.IngestText(ctx, "Go was released in 2009 by Google.", "notes")
	require.NoError(t, err)
	_, err = h.svc.IngestText(ctx, "Bananas are a yellow fruit.", "fruit")
	require.NoError(t, err)

	ans, err := h.svc.Ask(ctx, "  When was Go released?  ", 1)
	require.NoError(t, err)
	require.Len(t, ans.Sources, 1)
	assert.True(t, strings.HasPrefix(ans.Sources[0], "notes_"), ans.Sources[0])
	assert.Equal(t, "Go was released in 2009 by Google.", ans.Text)
	require.Len(t, ans.Matches, 1)
	assert.Greater(t, ans.Matches[0].Score, 0.0)
}

func TestAsk_BlankQuestion(t *testing.T) {
	rec := &recordingCompleter{}
	h := newHarness(t, rec)

	_, err := h.svc.Ask(context.Background(), " \t", 3)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrEmptyQuestion)
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
	assert.Empty(t, rec.prompts)
}

func TestAsk_EmptyStoreStillAsksCompleter(t *testing.T) {
	rec := &recordingCompleter{answer: "nothing indexed"}
	h := newHarness(t, rec)

	ans, err := h.svc.Ask(context.Background(), "anything?", 0)
	require.NoError(t, err)
	assert.Equal(t, "nothing indexed", ans.Text)
	assert.Empty(t, ans.Sources)
	require.Len(t, rec.prompts, 1)
	assert.Empty(t, rec.prompts[0].Context)
	assert.Equal(t, llm.DefaultSystemPrompt, rec.prompts[0].System)
	assert.Equal(t, "anything?", rec.prompts[0].Question)
}

func TestAsk_CompleterFailureIsUpstream(t *testing.T) {
	h := newHarness(t, &recordingCompleter{err: errors.New("model overloaded")})
	_, err := h.svc.Ask(context.Background(), "question", 0)
	require.Error(t, err)
	assert.Equal(t, domain.KindUpstream, domain.KindOf(err))
	assert.ErrorContains(t, err, "model overloaded")
}

func TestSearch_DefaultTopK(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	for _, s := range []string{"alpha one", "alpha two", "alpha three", "alpha four"} {
		_, err := h.svc.IngestText(ctx, s, "t")
		require.NoError(t, err)
	}
	res, err := h.svc.Search(ctx, "alpha", 0)
	require.NoError(t, err)
	assert.Len(t, res, 3)
}

func TestSearch_DimensionMismatch(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.store.Append(context.Background(), []domain.Chunk{
		{ID: "old", Text: "x", Embedding: []float64{1, 0}, Source: "txt"},
	}))
	_, err := h.svc.Search(context.Background(), "x", 1)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestSearch_ZeroQueryFallsBackToWordOverlap(t *testing.T) {
	store := memory.NewStorage(
		domain.Chunk{ID: "a", Text: "Kiwis are green.", Embedding: []float64{1, 0}},
		domain.Chunk{ID: "b", Text: "Bananas are yellow.", Embedding: []float64{0, 1}},
	)
	svc := NewRAGService(Deps{Embedder: zeroEmbedder{}, Store: store}, Options{}, nil)

	res, err := svc.Search(context.Background(), "yellow bananas", 2)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "b", res[0].Chunk.ID)
	assert.Greater(t, res[0].Score, res[1].Score)
}

func TestCrawlSite_IngestsAllPagesWithURLSources(t *testing.T) {
	h := newHarness(t, nil)
	h.crawler.pages = []domain.Page{
		{URL: "https://example.com/docs", Text: "Welcome to the docs."},
		{URL: "https://example.com/docs/install", Text: strings.Repeat("install ", 100)},
	}

	report, err := h.svc.CrawlSite(context.Background(), "https://example.com/docs", 0)
	require.NoError(t, err)
	assert.Equal(t, 20, h.crawler.gotMax)
	assert.Equal(t, 2, report.Pages)
	assert.Equal(t, 3, report.Chunks)

	counts := h.svc.Stats().Sources
	assert.Equal(t, 1, counts["https://example.com/docs"])
	assert.Equal(t, 2, counts["https://example.com/docs/install"])
}

func TestCrawlSite_CapsMaxPages(t *testing.T) {
	h := newHarness(t, nil)
	h.crawler.pages = []domain.Page{{URL: "https://example.com/", Text: "home"}}

	_, err := h.svc.CrawlSite(context.Background(), "https://example.com/", 5000)
	require.NoError(t, err)
	assert.Equal(t, 200, h.crawler.gotMax)

	_, err = h.svc.CrawlSite(context.Background(), "https://example.com/", 7)
	require.NoError(t, err)
	assert.Equal(t, 7, h.crawler.gotMax)
}

func TestCrawlSite_NoPages(t *testing.T) {
	h := newHarness(t, nil)
	_, err := h.svc.CrawlSite(context.Background(), "https://example.com/", 3)
	require.Error(t, err)
	assert.Equal(t, domain.KindUpstream, domain.KindOf(err))
	assert.Zero(t, h.store.Len())
}

func TestCrawlSite_CrawlerError(t *testing.T) {
	h := newHarness(t, nil)
	h.crawler.err = domain.Validation(domain.ErrInvalidURL, "url is required")
	_, err := h.svc.CrawlSite(context.Background(), "", 3)
	assert.ErrorIs(t, err, domain.ErrInvalidURL)
}

func TestIngestPage_UsesWebsiteSource(t *testing.T) {
	h := newHarness(t, nil)
	h.crawler.pageText = "Single page content."

	n, err := h.svc.IngestPage(context.Background(), "https://example.com/about")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "website", h.store.Snapshot()[0].Source)
}

func TestIngestUpload(t *testing.T) {
	h := newHarness(t, nil)

	n, err := h.svc.IngestUpload(context.Background(), []byte("# Title\n\nSome markdown."), ".MD")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "md", h.store.Snapshot()[0].Source)

	_, err = h.svc.IngestUpload(context.Background(), []byte("x"), "ods")
	assert.Equal(t, domain.KindUnsupported, domain.KindOf(err))

	_, err = h.svc.IngestUpload(context.Background(), []byte("   "), "txt")
	assert.ErrorIs(t, err, domain.ErrEmptyText)
	assert.Equal(t, 1, h.store.Len())
}

func TestIngestFiles_GlobSkipsUnsupported(t *testing.T) {
	h := newHarness(t, nil)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("plain text file"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.md"), []byte("markdown file"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.ods"), []byte("binary"), 0o644))

	n, err := h.svc.IngestFiles(context.Background(), []string{filepath.Join(dir, "*")})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, map[string]int{"txt": 1, "md": 1}, h.svc.Stats().Sources)
}

func TestIngestFiles_Missing(t *testing.T) {
	h := newHarness(t, nil)
	_, err := h.svc.IngestFiles(context.Background(), []string{filepath.Join(t.TempDir(), "nope.txt")})
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
}

func TestStats(t *testing.T) {
	h := newHarness(t, nil)
	_, err := h.svc.IngestText(context.Background(), "hello world", "")
	require.NoError(t, err)

	st := h.svc.Stats()
	assert.Equal(t, 1, st.Chunks)
	assert.Equal(t, 4096, st.Dimension)
	assert.Equal(t, "hashing", st.Embedder)
	assert.Equal(t, map[string]int{"text": 1}, st.Sources)
}

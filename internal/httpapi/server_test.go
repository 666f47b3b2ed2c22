package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrag/internal/domain"
	"docrag/internal/service"
)

type fakeService struct {
	uploadData []byte
	uploadType string
	text       string
	source     string
	pageURL    string
	crawlURL   string
	crawlMax   int
	question   string
	topK       int
	err        error
	answer     domain.Answer
}

func (f *fakeService) IngestUpload(_ context.Context, data []byte, typeTag string) (int, error) {
	f.uploadData, f.uploadType = data, typeTag
	return 2, f.err
}

func (f *fakeService) IngestText(_ context.Context, text, source string) (int, error) {
	f.text, f.source = text, source
	return 1, f.err
}

func (f *fakeService) IngestPage(_ context.Context, rawURL string) (int, error) {
	f.pageURL = rawURL
	return 4, f.err
}

func (f *fakeService) CrawlSite(_ context.Context, rawURL string, maxPages int) (domain.CrawlReport, error) {
	f.crawlURL, f.crawlMax = rawURL, maxPages
	return domain.CrawlReport{Pages: 3, Chunks: 9}, f.err
}

func (f *fakeService) Ask(_ context.Context, question string, k int) (domain.Answer, error) {
	f.question, f.topK = question, k
	return f.answer, f.err
}

func (f *fakeService) Stats() service.Stats {
	return service.Stats{Chunks: 5, Dimension: 3, Embedder: "fake", Sources: map[string]int{"txt": 5}}
}

func do(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealthAndRequestID(t *testing.T) {
	s := New(&fakeService{}, Config{}, nil)
	rec := do(t, s, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
}

func TestStats(t *testing.T) {
	rec := do(t, New(&fakeService{}, Config{}, nil), http.MethodGet, "/api/stats", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"chunks":5,"dimension":3,"embedder":"fake","sources":{"txt":5}}`, rec.Body.String())
}

func TestText(t *testing.T) {
	svc := &fakeService{}
	rec := do(t, New(svc, Config{}, nil), http.MethodPost, "/api/text", textRequest{Text: "hello", Source: "notes"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"chunks":1}`, rec.Body.String())
	assert.Equal(t, "hello", svc.text)
	assert.Equal(t, "notes", svc.source)
}

func TestText_ValidationError(t *testing.T) {
	svc := &fakeService{err: domain.Validation(domain.ErrEmptyText, "ingest")}
	rec := do(t, New(svc, Config{}, nil), http.MethodPost, "/api/text", textRequest{Text: " "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "validation", body["category"])
	assert.Equal(t, "ingest: text is empty", body["error"])
}

func TestText_MalformedJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/text", strings.NewReader("{nope"))
	rec := httptest.NewRecorder()
	New(&fakeService{}, Config{}, nil).Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation", decodeBody(t, rec)["category"])
}

func TestText_BodyTooLarge(t *testing.T) {
	s := New(&fakeService{}, Config{MaxUploadBytes: 16}, nil)
	rec := do(t, s, http.MethodPost, "/api/text", textRequest{Text: strings.Repeat("x", 100)})
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestWebsite_SinglePage(t *testing.T) {
	svc := &fakeService{}
	rec := do(t, New(svc, Config{}, nil), http.MethodPost, "/api/website", websiteRequest{URL: "https://example.com"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"chunks":4,"pages":1}`, rec.Body.String())
	assert.Equal(t, "https://example.com", svc.pageURL)
	assert.Empty(t, svc.crawlURL)
}

func TestWebsite_Crawl(t *testing.T) {
	svc := &fakeService{}
	rec := do(t, New(svc, Config{}, nil), http.MethodPost, "/api/website",
		websiteRequest{URL: "https://example.com/docs", Crawl: true, MaxPages: 7})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"chunks":9,"pages":3}`, rec.Body.String())
	assert.Equal(t, 7, svc.crawlMax)
}

func TestWebsite_MissingURL(t *testing.T) {
	rec := do(t, New(&fakeService{}, Config{}, nil), http.MethodPost, "/api/website", websiteRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebsite_UpstreamFailure(t *testing.T) {
	svc := &fakeService{err: domain.Upstream(errors.New("connection refused"), "fetch https://example.com")}
	rec := do(t, New(svc, Config{}, nil), http.MethodPost, "/api/website", websiteRequest{URL: "https://example.com"})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "upstream", decodeBody(t, rec)["category"])
}

func TestAsk(t *testing.T) {
	svc := &fakeService{answer: domain.Answer{
		Text:    "In 2009.",
		Sources: []string{"txt_1_0"},
		Matches: []domain.SearchResult{{Chunk: domain.Chunk{ID: "txt_1_0", Text: "Go was released in 2009.", Source: "txt"}, Score: 0.9}},
	}}
	rec := do(t, New(svc, Config{}, nil), http.MethodPost, "/api/ask", askRequest{Question: "when?", TopK: 2})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"answer": "In 2009.",
		"sources": ["txt_1_0"],
		"matches": [{"id":"txt_1_0","source":"txt","score":0.9,"text":"Go was released in 2009."}]
	}`, rec.Body.String())
	assert.Equal(t, "when?", svc.question)
	assert.Equal(t, 2, svc.topK)
}

func TestAsk_EmptySourcesIsArray(t *testing.T) {
	rec := do(t, New(&fakeService{answer: domain.Answer{Text: "none"}}, Config{}, nil), http.MethodPost, "/api/ask", askRequest{Question: "q"})
	assert.JSONEq(t, `{"answer":"none","sources":[],"matches":[]}`, rec.Body.String())
}

func TestAsk_InternalErrorIsHidden(t *testing.T) {
	rec := do(t, New(&fakeService{err: errors.New("nil pointer somewhere")}, Config{}, nil), http.MethodPost, "/api/ask", askRequest{Question: "q"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal error","category":"internal"}`, rec.Body.String())
}

func TestInternalErrorLoggedOnServerLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	s := New(&fakeService{err: errors.New("disk on fire")}, Config{}, logger)

	req := httptest.NewRequest(http.MethodPost, "/api/ask", strings.NewReader(`{"question":"q"}`))
	req.Header.Set("X-Request-ID", "req-42")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var line string
	for _, l := range strings.Split(buf.String(), "\n") {
		if strings.Contains(l, "unhandled error") {
			line = l
		}
	}
	require.NotEmpty(t, line, "log output: %s", buf.String())
	assert.Contains(t, line, "component=http")
	assert.Contains(t, line, `err="disk on fire"`)
	assert.Contains(t, line, "request_id=req-42")
}

func newUpload(t *testing.T, filename, typeField string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if typeField != "" {
		require.NoError(t, mw.WriteField("type", typeField))
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUpload_TypeFromExtension(t *testing.T) {
	svc := &fakeService{}
	rec := httptest.NewRecorder()
	New(svc, Config{}, nil).Handler().ServeHTTP(rec, newUpload(t, "Report.PDF", "", []byte("%PDF-1.4")))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"chunks":2,"source":"pdf"}`, rec.Body.String())
	assert.Equal(t, "pdf", svc.uploadType)
	assert.Equal(t, []byte("%PDF-1.4"), svc.uploadData)
}

func TestUpload_TypeField(t *testing.T) {
	svc := &fakeService{}
	rec := httptest.NewRecorder()
	New(svc, Config{}, nil).Handler().ServeHTTP(rec, newUpload(t, "blob", ".MD", []byte("# hi")))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "md", svc.uploadType)
}

func TestUpload_MissingFile(t *testing.T) {
	rec := httptest.NewRecorder()
	New(&fakeService{}, Config{}, nil).Handler().ServeHTTP(rec, newUpload(t, "", "txt", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "file is required: http: no such file", decodeBody(t, rec)["error"])
}

func TestUpload_Unsupported(t *testing.T) {
	svc := &fakeService{err: domain.Unsupported(domain.ErrUnsupportedType, "type %q", "ods")}
	rec := httptest.NewRecorder()
	New(svc, Config{}, nil).Handler().ServeHTTP(rec, newUpload(t, "sheet.ods", "", []byte("x")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "unsupported", decodeBody(t, rec)["category"])
}

func TestNotFound(t *testing.T) {
	rec := do(t, New(&fakeService{}, Config{}, nil), http.MethodGet, "/api/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decodeBody(t, rec)["category"])
}

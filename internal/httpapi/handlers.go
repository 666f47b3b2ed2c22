package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"docrag/internal/domain"
	"docrag/internal/extract"
)

type textRequest struct {
	Text   string `json:"text"`
	Source string `json:"source"`
}

type websiteRequest struct {
	URL      string `json:"url"`
	Crawl    bool   `json:"crawl"`
	MaxPages int    `json:"max_pages"`
}

type askRequest struct {
	Question string `json:"question"`
	TopK     int    `json:"top_k"`
}

type ingestResponse struct {
	Chunks int    `json:"chunks"`
	Pages  int    `json:"pages,omitempty"`
	Source string `json:"source,omitempty"`
}

type match struct {
	ID     string  `json:"id"`
	Source string  `json:"source"`
	Score  float64 `json:"score"`
	Text   string  `json:"text"`
}

type askResponse struct {
	Answer  string   `json:"answer"`
	Sources []string `json:"sources"`
	Matches []match  `json:"matches"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Stats())
}

// handleUpload ingests a multipart "file". The type comes from the "type"
// field when present, otherwise from the file extension.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		s.writeError(w, r, wrapBodyErr(err, "invalid multipart form"))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, r, domain.Validation(err, "file is required"))
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, r, wrapBodyErr(err, "read upload"))
		return
	}
	typeTag := extract.NormalizeType(r.FormValue("type"))
	if typeTag == "" {
		typeTag = extract.TypeFromFilename(header.Filename)
	}
	n, err := s.svc.IngestUpload(r.Context(), data, typeTag)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ingestResponse{Chunks: n, Source: typeTag})
}

func (s *Server) handleText(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if !s.decode(w, r, &req) {
		return
	}
	n, err := s.svc.IngestText(r.Context(), req.Text, req.Source)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ingestResponse{Chunks: n})
}

func (s *Server) handleWebsite(w http.ResponseWriter, r *http.Request) {
	var req websiteRequest
	if !s.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		s.writeError(w, r, domain.Validation(domain.ErrInvalidURL, "url is required"))
		return
	}
	if !req.Crawl {
		n, err := s.svc.IngestPage(r.Context(), req.URL)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, ingestResponse{Chunks: n, Pages: 1})
		return
	}
	report, err := s.svc.CrawlSite(r.Context(), req.URL, req.MaxPages)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ingestResponse{Chunks: report.Chunks, Pages: report.Pages})
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if !s.decode(w, r, &req) {
		return
	}
	ans, err := s.svc.Ask(r.Context(), req.Question, req.TopK)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp := askResponse{Answer: ans.Text, Sources: ans.Sources, Matches: make([]match, len(ans.Matches))}
	if resp.Sources == nil {
		resp.Sources = []string{}
	}
	for i, m := range ans.Matches {
		resp.Matches[i] = match{ID: m.Chunk.ID, Source: m.Chunk.Source, Score: m.Score, Text: m.Chunk.Text}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeError(w, r, wrapBodyErr(err, "invalid JSON body"))
		return false
	}
	return true
}

func wrapBodyErr(err error, msg string) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return err
	}
	return domain.Validation(err, "%s", msg)
}

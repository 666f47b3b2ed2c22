package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"docrag/internal/domain"
)

type errorResponse struct {
	Error    string `json:"error"`
	Category string `json:"category"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps an error's kind to an HTTP status. Internal errors are
// logged on the server's logger and hidden from the client.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "request body too large", Category: string(domain.KindValidation)})
		return
	}
	kind := domain.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case domain.KindValidation, domain.KindUnsupported:
		status = http.StatusBadRequest
	case domain.KindUpstream:
		status = http.StatusBadGateway
	case domain.KindNotFound:
		status = http.StatusNotFound
	}
	msg := err.Error()
	if kind == domain.KindInternal {
		s.log.ErrorContext(r.Context(), "unhandled error", "err", err, "request_id", RequestIDFrom(r.Context()))
		msg = "internal error"
	}
	writeJSON(w, status, errorResponse{Error: msg, Category: string(kind)})
}

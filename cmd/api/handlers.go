package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/WessleyAI/docrag/engine/domain"
	"github.com/WessleyAI/docrag/engine/loader"
	"github.com/WessleyAI/docrag/engine/rag"
)

func newMux(svc *rag.Service, root *loader.Root, logger *slog.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", handleHealth)
	mux.HandleFunc("GET /api/status", handleStatus(svc, logger))
	mux.HandleFunc("POST /api/ingest", handleIngest(svc, root, logger))
	mux.HandleFunc("POST /api/query", handleQuery(svc, logger))
	mux.HandleFunc("DELETE /api/records", handleReset(svc, logger))
	return mux
}

// IngestRequest is the JSON body for POST /api/ingest. Path is relative to
// the configured document root or absolute inside it.
type IngestRequest struct {
	Path string `json:"path"`
}

// QueryRequest is the JSON body for POST /api/query.
type QueryRequest struct {
	Question string `json:"question"`
	NResults int    `json:"n_results,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps pipeline errors onto HTTP statuses. Internal details are
// logged, not returned, for 5xx responses.
func writeError(w http.ResponseWriter, logger *slog.Logger, msg string, err error) {
	status := statusFor(err)
	resp := errorResponse{Error: err.Error()}
	if k := domain.Kind(err); k != nil {
		resp.Kind = k.Error()
	}
	if status >= http.StatusInternalServerError {
		logger.Error(msg, "err", err)
		resp.Error = msg
	}
	writeJSON(w, status, resp)
}

func statusFor(err error) int {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, domain.ErrDocumentLoad):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrEmbedding), errors.Is(err, domain.ErrGeneration):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func handleStatus(svc *rag.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := svc.Status(r.Context())
		if err != nil {
			writeError(w, logger, "status failed", err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}

func handleIngest(svc *rag.Service, root *loader.Root, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req IngestRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "path is required"})
			return
		}
		path, err := root.Resolve(req.Path)
		if err != nil {
			logger.Warn("ingest path rejected", "path", req.Path, "err", err)
			writeError(w, logger, "ingest rejected", err)
			return
		}
		rep, err := svc.Ingest(r.Context(), path)
		if err != nil {
			writeError(w, logger, "ingest failed", err)
			return
		}
		writeJSON(w, http.StatusOK, rep)
	}
}

func handleQuery(svc *rag.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req QueryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
			return
		}
		if req.NResults < 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "n_results must not be negative"})
			return
		}
		ans, err := svc.Query(r.Context(), req.Question, req.NResults)
		if err != nil {
			writeError(w, logger, "query failed", err)
			return
		}
		writeJSON(w, http.StatusOK, ans)
	}
}

func handleReset(svc *rag.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Reset(r.Context()); err != nil {
			writeError(w, logger, "reset failed", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

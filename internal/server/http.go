package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/haasonsaas/buildli/api/rpc"
	"github.com/haasonsaas/buildli/internal/query"
	"github.com/haasonsaas/buildli/pkg/core/health"
)

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /v1/query", s.auth(s.handleQuery))
	mux.HandleFunc("GET /v1/index/status", s.auth(s.handleIndexStatus))
	mux.HandleFunc("GET /v1/query/ws", s.auth(s.handleQueryWS))
	return mux
}

// auth enforces the bearer token when one is configured. /health stays
// open for probes.
func (s *Server) auth(next http.HandlerFunc) http.HandlerFunc {
	if s.opts.Token == "" {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+s.opts.Token {
			writeError(w, http.StatusUnauthorized, "invalid or missing token")
			return
		}
		next(w, r)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.opts.Health.CheckWithTimeout(3 * time.Second)

	code := http.StatusOK
	if report.Status == health.StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, report)
}

type queryHTTPRequest struct {
	Question  string   `json:"question"`
	TopK      int      `json:"top_k,omitempty"`
	Repos     []string `json:"repos,omitempty"`
	Languages []string `json:"languages,omitempty"`
}

type queryHTTPResponse struct {
	Answer     string              `json:"answer"`
	References []*rpc.CodeReference `json:"references,omitempty"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryHTTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	answer, err := s.opts.Engine.Query(r.Context(), req.Question, req.TopK,
		query.Filters{Repos: req.Repos, Languages: req.Languages})
	if err != nil {
		s.log.Error("query failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, queryHTTPResponse{
		Answer:     answer.Text,
		References: toWireRefs(answer.References),
	})
}

func (s *Server) handleIndexStatus(w http.ResponseWriter, r *http.Request) {
	stats := s.opts.Indexer.Stats()

	chunks, err := s.opts.Indexer.StoreCount(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := rpc.IndexStatusResponse{
		TotalFiles:   stats.TotalFiles,
		IndexedFiles: stats.IndexedFiles,
		TotalChunks:  chunks,
	}
	if !stats.LastUpdated.IsZero() {
		resp.LastUpdated = stats.LastUpdated.UTC().Format("2006-01-02T15:04:05Z")
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

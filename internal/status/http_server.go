package status

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/GoSim-25-26J-441/xp-sweep/internal/ledger"
	"github.com/GoSim-25-26J-441/xp-sweep/internal/runner"
	"github.com/GoSim-25-26J-441/xp-sweep/pkg/logger"
)

// ProgressSource is implemented by *runner.Driver
type ProgressSource interface {
	SweepID() string
	Progress() runner.Progress
}

type HTTPServer struct {
	mux      *http.ServeMux
	progress ProgressSource
	store    ledger.Store
}

func NewHTTPServer(progress ProgressSource, store ledger.Store) *HTTPServer {
	s := &HTTPServer{
		mux:      http.NewServeMux(),
		progress: progress,
		store:    store,
	}

	s.mux.HandleFunc("/healthz", s.handleHealthz)
	s.mux.HandleFunc("/v1/progress", s.handleProgress)
	s.mux.HandleFunc("/v1/invocations", s.handleInvocations)
	s.mux.HandleFunc("/v1/invocations/", s.handleInvocation)

	return s
}

func (s *HTTPServer) Handler() http.Handler {
	return s.mux
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *HTTPServer) handleProgress(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, s.progress.Progress())
}

// handleInvocations lists ledger records of the current sweep, optionally
// filtered by ?stage= and bounded by ?limit=, with the per-status counts of
// the whole sweep
func (s *HTTPServer) handleInvocations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	q := ledger.Query{
		SweepID: s.progress.SweepID(),
		Stage:   r.URL.Query().Get("stage"),
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			s.writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		q.Limit = limit
	}

	records, err := s.store.List(r.Context(), q)
	if err != nil {
		logger.Error("failed to list invocations", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list invocations")
		return
	}
	if records == nil {
		records = []ledger.Record{}
	}
	summary, err := s.store.Summary(r.Context(), q.SweepID)
	if err != nil {
		logger.Error("failed to summarize invocations", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to summarize invocations")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"sweep_id":    q.SweepID,
		"summary":     summary,
		"invocations": records,
	})
}

// handleInvocation returns one record by id (/v1/invocations/<sweep>/<stage>/<seq>)
func (s *HTTPServer) handleInvocation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/invocations/")
	if id == "" {
		s.writeError(w, http.StatusBadRequest, "invocation id is required")
		return
	}
	rec, ok, err := s.store.Get(r.Context(), id)
	if err != nil {
		logger.Error("failed to get invocation", "id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get invocation")
		return
	}
	if !ok {
		s.writeError(w, http.StatusNotFound, "invocation not found")
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

func (s *HTTPServer) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("failed to encode response", "error", err)
	}
}

func (s *HTTPServer) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

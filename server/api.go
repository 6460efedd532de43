package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/hubmirror/hubmirror/inventory"
)

// defaultStatsWindow is the request stats window when none is given.
const defaultStatsWindow = 60 * time.Minute

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.inventory.GetOverview())
}

func (s *Server) handleListRepos(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	opts := inventory.ListOptions{
		RepoType:  q.Get("type"),
		SortBy:    q.Get("sort_by"),
		SortOrder: q.Get("sort_order"),
	}

	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			s.writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		opts.Limit = limit
	}

	repos := s.inventory.ListRepos(opts)
	if repos == nil {
		repos = []inventory.RepoRecord{}
	}
	s.writeJSON(w, http.StatusOK, repos)
}

func (s *Server) handleRepoDetails(w http.ResponseWriter, r *http.Request) {
	details := s.inventory.GetRepoDetails(r.PathValue("type"), r.PathValue("org"), r.PathValue("repo"))
	if details == nil {
		s.writeError(w, http.StatusNotFound, "repository not found")
		return
	}
	s.writeJSON(w, http.StatusOK, details)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	query := q.Get("q")
	if query == "" {
		s.writeError(w, http.StatusBadRequest, "missing query parameter q")
		return
	}

	results := s.inventory.Search(query, q.Get("type"))
	if results == nil {
		results = []inventory.RepoRecord{}
	}
	s.writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleEfficiency(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.inventory.GetEfficiency())
}

func (s *Server) handleRequestStats(w http.ResponseWriter, r *http.Request) {
	window := defaultStatsWindow
	if raw := r.URL.Query().Get("window"); raw != "" {
		minutes, err := strconv.Atoi(raw)
		if err != nil || minutes <= 0 {
			s.writeError(w, http.StatusBadRequest, "invalid window")
			return
		}
		window = time.Duration(minutes) * time.Minute
	}

	s.writeJSON(w, http.StatusOK, s.store.RequestStats(window))
}

func (s *Server) handleSystemStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.store.SystemStats())
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.store.CacheStats())
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

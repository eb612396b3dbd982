package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/watzon/relay/internal/engine"
	"github.com/watzon/relay/internal/hook"
)

var startTime = time.Now()

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"uptime":    time.Since(startTime).Round(time.Second).String(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleListHooks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := hook.ListFilter{
		Category: q.Get("category"),
		Tag:      q.Get("tag"),
		Search:   q.Get("search"),
	}
	if v := q.Get("enabled"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			Error(w, http.StatusBadRequest, "INVALID_QUERY", "enabled must be a boolean")
			return
		}
		filter.Enabled = &enabled
	}

	JSON(w, http.StatusOK, s.store.List(filter))
}

func (s *Server) handleGetHook(w http.ResponseWriter, r *http.Request) {
	h, err := s.store.Get(r.PathValue("id"))
	if err != nil {
		NotFound(w, err.Error())
		return
	}
	JSON(w, http.StatusOK, h)
}

type runRequest struct {
	Variables  map[string]any `json:"variables,omitempty"`
	WorkingDir string         `json:"working_dir,omitempty"`
}

func (s *Server) handleRunHook(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		Error(w, http.StatusBadRequest, "INVALID_BODY", "request body must be JSON")
		return
	}

	res, err := s.engine.Run(r.Context(), r.PathValue("id"), engine.RunOptions{
		Variables:  req.Variables,
		WorkingDir: req.WorkingDir,
	})
	switch {
	case errors.Is(err, hook.ErrNotFound):
		NotFound(w, err.Error())
		return
	case errors.Is(err, hook.ErrDisabled):
		Error(w, http.StatusConflict, "HOOK_DISABLED", err.Error())
		return
	case err != nil:
		Error(w, http.StatusInternalServerError, "RUN_FAILED", err.Error())
		return
	}

	JSON(w, http.StatusOK, res)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := engine.Collect(s.store.List(hook.ListFilter{}), s.engine.History())
	JSON(w, http.StatusOK, stats)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := 0
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			Error(w, http.StatusBadRequest, "INVALID_QUERY", "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	history := s.engine.History()
	var entries []*engine.ExecutionResult
	if hookID := q.Get("hook"); hookID != "" {
		entries = history.ByHook(hookID, limit)
	} else {
		entries = history.Recent(limit)
	}

	JSON(w, http.StatusOK, entries)
}

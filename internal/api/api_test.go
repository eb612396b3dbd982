package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/watzon/relay/internal/action"
	"github.com/watzon/relay/internal/condition"
	"github.com/watzon/relay/internal/config"
	"github.com/watzon/relay/internal/engine"
	"github.com/watzon/relay/internal/hook"
	"github.com/watzon/relay/internal/shell"
)

func setupTestAPI(t *testing.T) (http.Handler, *hook.Store) {
	t.Helper()

	store := hook.NewStore(t.TempDir())
	if err := store.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if err := store.Save(&hook.Hook{
		ID:          "echo-hook",
		Name:        "Echo",
		Description: "Echoes a greeting",
		Enabled:     true,
		Trigger:     hook.Trigger{Type: hook.TriggerManual},
		Actions: []hook.Action{
			{ID: "say", Type: hook.ActionShell, Command: "echo hello {{name}}"},
		},
	}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if err := store.Save(&hook.Hook{
		ID:          "sleeper",
		Name:        "Sleeper",
		Description: "Disabled hook",
		Enabled:     false,
		Trigger:     hook.Trigger{Type: hook.TriggerManual},
		Actions: []hook.Action{
			{ID: "nap", Type: hook.ActionShell, Command: "true"},
		},
	}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	runner := shell.NewRunner()
	eng := engine.New(store, condition.NewEvaluator(runner),
		action.NewDispatcher(runner, nil, nil, nil), config.EngineConfig{})

	return New(store, eng, nil).Handler(), store
}

func doRequest(t *testing.T, handler http.Handler, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, bytes.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	handler, _ := setupTestAPI(t)

	w := doRequest(t, handler, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Invalid JSON response: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("Expected status ok, got %v", resp["status"])
	}
}

func TestListHooks(t *testing.T) {
	handler, _ := setupTestAPI(t)

	w := doRequest(t, handler, http.MethodGet, "/api/hooks", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var hooks []*hook.Hook
	if err := json.Unmarshal(w.Body.Bytes(), &hooks); err != nil {
		t.Fatalf("Invalid JSON response: %v", err)
	}
	if len(hooks) != 2 {
		t.Errorf("Expected 2 hooks, got %d", len(hooks))
	}

	w = doRequest(t, handler, http.MethodGet, "/api/hooks?enabled=true", nil)
	if err := json.Unmarshal(w.Body.Bytes(), &hooks); err != nil {
		t.Fatalf("Invalid JSON response: %v", err)
	}
	if len(hooks) != 1 || hooks[0].ID != "echo-hook" {
		t.Errorf("Expected only the enabled hook, got %+v", hooks)
	}

	w = doRequest(t, handler, http.MethodGet, "/api/hooks?enabled=banana", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for bad enabled value, got %d", w.Code)
	}
}

func TestGetHook(t *testing.T) {
	handler, _ := setupTestAPI(t)

	w := doRequest(t, handler, http.MethodGet, "/api/hooks/echo-hook", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var h hook.Hook
	if err := json.Unmarshal(w.Body.Bytes(), &h); err != nil {
		t.Fatalf("Invalid JSON response: %v", err)
	}
	if h.ID != "echo-hook" || h.Name != "Echo" {
		t.Errorf("Unexpected hook: %+v", h)
	}

	w = doRequest(t, handler, http.MethodGet, "/api/hooks/missing", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}
}

func TestRunHook(t *testing.T) {
	handler, _ := setupTestAPI(t)

	body := []byte(`{"variables": {"name": "world"}}`)
	w := doRequest(t, handler, http.MethodPost, "/api/hooks/echo-hook/run", body)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var res engine.ExecutionResult
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("Invalid JSON response: %v", err)
	}
	if !res.Success {
		t.Errorf("Expected successful run: %+v", res)
	}
	if len(res.Actions) != 1 || !bytes.Contains([]byte(res.Actions[0].Output), []byte("hello world")) {
		t.Errorf("Variable not applied: %+v", res.Actions)
	}
}

func TestRunHook_EmptyBody(t *testing.T) {
	handler, _ := setupTestAPI(t)

	w := doRequest(t, handler, http.MethodPost, "/api/hooks/echo-hook/run", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 with empty body, got %d", w.Code)
	}
}

func TestRunHook_Disabled(t *testing.T) {
	handler, _ := setupTestAPI(t)

	w := doRequest(t, handler, http.MethodPost, "/api/hooks/sleeper/run", nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("Expected 409, got %d", w.Code)
	}

	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Invalid JSON response: %v", err)
	}
	if resp.Code != "HOOK_DISABLED" {
		t.Errorf("Expected HOOK_DISABLED code, got %q", resp.Code)
	}
}

func TestRunHook_NotFound(t *testing.T) {
	handler, _ := setupTestAPI(t)

	w := doRequest(t, handler, http.MethodPost, "/api/hooks/missing/run", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}
}

func TestStatsAndHistory(t *testing.T) {
	handler, _ := setupTestAPI(t)

	if w := doRequest(t, handler, http.MethodPost, "/api/hooks/echo-hook/run", nil); w.Code != http.StatusOK {
		t.Fatalf("Run failed: %d", w.Code)
	}

	w := doRequest(t, handler, http.MethodGet, "/api/stats", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var stats engine.Stats
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatalf("Invalid JSON response: %v", err)
	}
	if stats.TotalHooks != 2 || stats.EnabledHooks != 1 {
		t.Errorf("Unexpected hook counts: %+v", stats)
	}
	if stats.TotalRuns != 1 {
		t.Errorf("Expected 1 recorded run, got %d", stats.TotalRuns)
	}

	w = doRequest(t, handler, http.MethodGet, "/api/history", nil)
	var entries []*engine.ExecutionResult
	if err := json.Unmarshal(w.Body.Bytes(), &entries); err != nil {
		t.Fatalf("Invalid JSON response: %v", err)
	}
	if len(entries) != 1 || entries[0].HookID != "echo-hook" {
		t.Errorf("Unexpected history: %+v", entries)
	}

	w = doRequest(t, handler, http.MethodGet, "/api/history?hook=sleeper", nil)
	if err := json.Unmarshal(w.Body.Bytes(), &entries); err != nil {
		t.Fatalf("Invalid JSON response: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Expected no history for sleeper, got %d", len(entries))
	}

	w = doRequest(t, handler, http.MethodGet, "/api/history?limit=-1", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for negative limit, got %d", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	handler, _ := setupTestAPI(t)

	w := doRequest(t, handler, http.MethodGet, "/metrics", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if w.Body.Len() == 0 {
		t.Error("Expected metrics output")
	}
}

func TestRequestIDHeader(t *testing.T) {
	handler, _ := setupTestAPI(t)

	w := doRequest(t, handler, http.MethodGet, "/health", nil)
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("Expected a generated X-Request-ID header")
	}

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "fixed-id")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-ID"); got != "fixed-id" {
		t.Errorf("Expected caller request id to be honored, got %q", got)
	}
}

// Package api serves the daemon's HTTP surface: hook queries, manual
// runs, execution history, the live execution feed, and Prometheus
// metrics.
package api

import (
	"net/http"

	"github.com/watzon/relay/internal/engine"
	"github.com/watzon/relay/internal/feed"
	"github.com/watzon/relay/internal/hook"
	"github.com/watzon/relay/internal/metrics"
)

// Server exposes the daemon's wired components over HTTP.
type Server struct {
	store  *hook.Store
	engine *engine.Engine
	broker *feed.Broker
}

// New builds the API server. broker may be nil; the feed endpoint then
// responds 404.
func New(store *hook.Store, eng *engine.Engine, broker *feed.Broker) *Server {
	return &Server{
		store:  store,
		engine: eng,
		broker: broker,
	}
}

// Handler builds the routed handler with the standard middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/hooks", s.handleListHooks)
	mux.HandleFunc("GET /api/hooks/{id}", s.handleGetHook)
	mux.HandleFunc("POST /api/hooks/{id}/run", s.handleRunHook)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /api/history", s.handleHistory)

	if s.broker != nil {
		mux.HandleFunc("GET /api/feed", s.broker.HandleWebSocket)
	}
	mux.Handle("GET /metrics", metrics.Handler())

	var handler http.Handler = mux
	handler = LoggingMiddleware(handler)
	handler = RequestIDMiddleware(handler)
	handler = RecoveryMiddleware(handler)
	return handler
}

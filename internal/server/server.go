// server.go — HTTP surface for the redirect tracker.
// Routes: event ingestion from the extension, the persisted+pending log,
// session groups, per-tab badge state, stats, and log clearing. No handler
// lets an error escape: malformed batches degrade to skipped events, storage
// hiccups are logged and answered with a 5xx, never a crash.
package server

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hoptrace/hoptrace/internal/badge"
	"github.com/hoptrace/hoptrace/internal/chain"
	"github.com/hoptrace/hoptrace/internal/storage"
)

// Server wires the tracker, storage, and badge board behind a chi router.
// The caller owns the listener; Router is the full handler stack.
type Server struct {
	Router  *chi.Mux
	tracker *chain.Tracker
	store   *storage.Store
	badges  *badge.Board
	log     *zap.Logger
}

// New builds the HTTP server.
func New(tracker *chain.Tracker, store *storage.Store, badges *badge.Board, logger *zap.Logger) *Server {
	s := &Server{
		tracker: tracker,
		store:   store,
		badges:  badges,
		log:     logger,
	}

	r := chi.NewRouter()
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))
	r.Use(middleware.Recoverer)

	r.Post("/events", s.handleEvents)
	r.Get("/log", s.handleGetLog)
	r.Delete("/log", s.handleClearLog)
	r.Get("/groups", s.handleGroups)
	r.Get("/badge/{tabID}", s.handleBadge)
	r.Get("/stats", s.handleStats)
	r.Get("/healthz", s.handleHealthz)

	s.Router = r
	return s
}

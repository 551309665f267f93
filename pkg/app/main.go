package app

import (
	"github.com/gorilla/sessions"

	"github.com/ghuser/persistredis/pkg/logger"
	"github.com/ghuser/persistredis/pkg/metrics"
	"github.com/ghuser/persistredis/pkg/store"
	appsvcs "github.com/ghuser/persistredis/services/journal/application/services"
)

// Application holds shared infrastructure dependencies for the journal service.
// Pass to JournalRoutes/AdminRoutes during server initialization.
//
// Logging: app.Logger is backed by a trace-aware handler — use slog's context methods
// and trace_id, span_id, and request_id are injected automatically:
//
//	app.Logger.InfoContext(ctx, "draining source", "persistence_id", id)
//	app.Logger.ErrorContext(ctx, "range read failed", "error", err)
//
// Use app.Logger.Info/Error (no context) only for startup and shutdown messages.
type Application struct {
	Redis        *store.RedisClient
	Logger       logger.Logger
	Metrics      *metrics.Journal
	QueryEngine  *appsvcs.QueryEngine
	SessionStore sessions.Store // Redis-backed session store, guards the admin surface
	IsProduction bool           // redacts 5xx error bodies when true
}

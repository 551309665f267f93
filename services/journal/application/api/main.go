package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/sessions"

	"github.com/ghuser/persistredis/pkg/auth"
	"github.com/ghuser/persistredis/pkg/logger"
	appsvcs "github.com/ghuser/persistredis/services/journal/application/services"
)

// JournalRoutes registers the public streaming endpoints on r. isProduction
// controls whether 5xx error bodies are redacted to generic status text.
func JournalRoutes(r chi.Router, engine *appsvcs.QueryEngine, log logger.Logger, isProduction bool) {
	r.Route("/persistence-ids/{id}/events", func(r chi.Router) {
		r.Get("/", NewPersistenceIDEventsHandler(engine, log, isProduction).Execute)
	})
	r.Route("/tags/{tag}/events", func(r chi.Router) {
		r.Get("/", NewTagEventsHandler(engine, log, isProduction).Execute)
	})
}

// AdminRoutes registers the session-guarded introspection endpoint on r.
func AdminRoutes(r chi.Router, engine *appsvcs.QueryEngine, sessionStore sessions.Store, log logger.Logger) {
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAdmin(sessionStore, log))
		r.Route("/admin", func(r chi.Router) {
			r.Get("/sources", NewAdminSourcesHandler(engine).Execute)
		})
	})
}

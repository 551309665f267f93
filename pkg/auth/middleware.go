package auth

import (
	"net/http"

	"github.com/gorilla/sessions"

	"github.com/ghuser/persistredis/pkg/httpx"
	"github.com/ghuser/persistredis/pkg/logger"
)

const sessionName = "persistredis_admin_session"
const sessionAdminIDKey = "admin_id"

// RequireAdmin is a chi middleware that enforces authentication via session cookies
// on the /admin/sources introspection surface. It reads the session cookie, extracts
// the admin identity, and injects it into the request context.
// Returns 401 Unauthorized if the session is missing, invalid, or lacks an admin_id.
//
// After this middleware, handlers can safely call auth.AdminIDFromCtx(r.Context()).
func RequireAdmin(store sessions.Store, log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, err := store.Get(r, sessionName)
			if err != nil {
				log.WarnContext(r.Context(), "invalid session cookie", "error", err)
				httpx.JSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
				return
			}

			adminID, ok := session.Values[sessionAdminIDKey].(string)
			if !ok || adminID == "" {
				log.WarnContext(r.Context(), "session missing admin_id")
				httpx.JSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
				return
			}

			ctx := WithAdminID(r.Context(), adminID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

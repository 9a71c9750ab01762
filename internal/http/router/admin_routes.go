package router

import (
	"github.com/go-chi/chi/v5"

	mw "github.com/dropDatabas3/authcore/internal/http/middlewares"
)

// registerAdminRoutes registra la API operativa. No usa el guard chain:
// la llama tooling (authcorectl, cron), no humanos con sesión.
func registerAdminRoutes(r chi.Router, deps Deps) {
	r.Group(func(r chi.Router) {
		r.Use(mw.RequireAdminKey(deps.AdminKeyPHC))

		r.Post("/v1/admin/sweep", deps.Admin.Sweep)
		r.Post("/v1/admin/users/{id}/tokens/revoke", deps.Admin.RevokeUserTokens)
	})
}

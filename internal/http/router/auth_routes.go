package router

import (
	"github.com/go-chi/chi/v5"

	mw "github.com/dropDatabas3/authcore/internal/http/middlewares"
)

// registerAuthRoutes registra las rutas de credenciales.
func registerAuthRoutes(r chi.Router, deps Deps) {
	limit := publicLimit(deps)

	// Públicas. Todas devuelven o tocan secretos, así que no-store siempre.
	r.Group(func(r chi.Router) {
		r.Use(limit, mw.WithNoStore())

		r.Post("/v1/auth/refresh", deps.Auth.Refresh.Refresh)
		r.Post("/v1/auth/logout", deps.Auth.Logout.Logout)
		if deps.ExchangeEnabled {
			r.Post("/v1/auth/exchange", deps.Auth.Exchange.Exchange)
		}
	})

	// Autenticadas.
	r.Group(func(r chi.Router) {
		r.Use(mw.RequireAuth(deps.Guard))

		r.Post("/v1/auth/logout-all", deps.Auth.Logout.LogoutAll)
	})

	// JWKS: material público, pero servido no-store igual que el resto de
	// la superficie de llaves para que una rotación se vea de inmediato.
	r.Group(func(r chi.Router) {
		r.Use(mw.WithNoStore())

		r.Get("/.well-known/jwks.json", deps.Auth.JWKS.JWKS)
		r.Head("/.well-known/jwks.json", deps.Auth.JWKS.JWKS)
	})
}

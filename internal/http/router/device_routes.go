package router

import (
	"github.com/go-chi/chi/v5"

	mw "github.com/dropDatabas3/authcore/internal/http/middlewares"
)

// registerDeviceRoutes registra el flujo de dispositivos.
//
// El lado dispositivo (code, token) es público con rate limit: el token
// endpoint es el que golpean los pollers. El lado humano (activate,
// approve, deny) va detrás del guard chain; aprobar vincula el device
// code al sujeto autenticado, así que el guard es el que decide quién es.
func registerDeviceRoutes(r chi.Router, deps Deps) {
	limit := publicLimit(deps)

	r.Group(func(r chi.Router) {
		r.Use(limit, mw.WithNoStore())

		r.Post("/v1/device/code", deps.Device.Flow.RequestCode)

		// Todos los métodos: el endpoint de polling contesta siempre con el
		// envelope OAuth, incluso el 405, así que el método lo decide el
		// controller y no el router.
		r.HandleFunc("/v1/device/token", deps.Device.Flow.Token)
	})

	r.Group(func(r chi.Router) {
		r.Use(
			mw.RequireAuth(deps.Guard),
			mw.RequireRole("user", "admin"),
		)

		r.Get("/v1/device/activate", deps.Device.Decision.Activate)

		r.Group(func(r chi.Router) {
			r.Use(mw.RequirePermission("device:approve"))

			r.Post("/v1/device/approve", deps.Device.Decision.Approve)
			r.Post("/v1/device/deny", deps.Device.Decision.Deny)
		})
	})
}

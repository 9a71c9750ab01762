// Package router arma el mux HTTP: middlewares globales, grupos por área
// y guards por grupo.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	adminctrl "github.com/dropDatabas3/authcore/internal/http/controllers/admin"
	authctrl "github.com/dropDatabas3/authcore/internal/http/controllers/auth"
	devicectrl "github.com/dropDatabas3/authcore/internal/http/controllers/device"
	healthctrl "github.com/dropDatabas3/authcore/internal/http/controllers/health"
	httperrors "github.com/dropDatabas3/authcore/internal/http/errors"
	mw "github.com/dropDatabas3/authcore/internal/http/middlewares"
	"github.com/dropDatabas3/authcore/internal/observability/metrics"
	"github.com/dropDatabas3/authcore/internal/rate"
)

// Deps contiene todo lo que el router necesita para montar rutas.
type Deps struct {
	Auth   *authctrl.Controllers
	Device devicectrl.Controllers
	Admin  *adminctrl.Controller
	Health *healthctrl.HealthController

	// Metrics es el handler de /metrics. nil lo deshabilita.
	Metrics http.Handler

	// Guard configura el stage de autenticación (bearer + lookup fresco).
	Guard mw.AuthConfig

	// AdminKeyPHC es el hash argon2id de la admin API key. Vacío deja los
	// endpoints /v1/admin montados pero siempre en 401.
	AdminKeyPHC string

	// Limiter aplica a los endpoints públicos. nil lo deshabilita.
	Limiter rate.Limiter

	// CORSAllowedOrigins habilita CORS para esos origins exactos o "*".
	CORSAllowedOrigins []string

	// ExchangeEnabled monta POST /v1/auth/exchange. Sólo tiene sentido
	// cuando hay un IdentityBridge configurado.
	ExchangeEnabled bool
}

// New construye el handler HTTP completo.
func New(deps Deps) http.Handler {
	r := chi.NewRouter()

	// Middlewares globales. El request id va primero y el logging justo
	// después: todo lo que sigue (recover incluido) loggea con el logger
	// scoped del request.
	r.Use(
		mw.WithRequestID(),
		mw.WithLogging(),
		mw.WithRecover(),
		metrics.WithHTTP,
		mw.WithSecurityHeaders(),
		mw.WithCORS(deps.CORSAllowedOrigins),
	)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httperrors.WriteError(w, httperrors.ErrRouteNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
	})

	registerHealthRoutes(r, deps)
	registerAuthRoutes(r, deps)
	registerDeviceRoutes(r, deps)
	registerAdminRoutes(r, deps)

	return r
}

// publicLimit arma el rate limiting de los endpoints públicos de tokens.
// La key por defecto es ip|path|client_id para que un cliente ruidoso no
// agote la ventana de los demás detrás del mismo NAT.
func publicLimit(deps Deps) mw.Middleware {
	return mw.WithRateLimit(mw.RateLimitConfig{
		Limiter: deps.Limiter,
		KeyFunc: mw.DefaultRateKey,
		Whitelist: []string{
			"/healthz",
			"/readyz",
			"/metrics",
			"/.well-known/jwks.json",
		},
	})
}

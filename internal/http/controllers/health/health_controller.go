// Package health contiene el controller para health checks.
package health

import (
	"encoding/json"
	"net/http"

	httperrors "github.com/dropDatabas3/authcore/internal/http/errors"
	svc "github.com/dropDatabas3/authcore/internal/http/services/health"
	"github.com/dropDatabas3/authcore/internal/observability/logger"
)

// HealthController maneja las rutas de health check.
type HealthController struct {
	service svc.HealthService
}

// NewHealthController crea un nuevo controller de health check.
func NewHealthController(service svc.HealthService) *HealthController {
	return &HealthController{service: service}
}

// Healthz maneja GET /healthz. Liveness puro, sin tocar dependencias.
func (c *HealthController) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Readyz maneja GET /readyz
func (c *HealthController) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("HealthController.Readyz"))

	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
		return
	}

	response := c.service.Check(ctx)

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if response.Version != "" {
		w.Header().Set("X-Service-Version", response.Version)
	}
	if response.ActiveKeyID != "" {
		w.Header().Set("X-JWKS-KID", response.ActiveKeyID)
	}

	var statusCode int
	switch response.Status {
	case "unavailable":
		statusCode = http.StatusServiceUnavailable
	default: // "ready" o "degraded"
		statusCode = http.StatusOK
	}

	log.Debug("health check completed",
		logger.String("status", response.Status),
		logger.Int("components_count", len(response.Components)),
	)

	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(response)
}

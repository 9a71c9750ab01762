// Package health contiene el service para health checks.
package health

import (
	"context"
	"fmt"
	"time"

	dto "github.com/dropDatabas3/authcore/internal/http/dto/health"
	jwtx "github.com/dropDatabas3/authcore/internal/jwt"
	"github.com/dropDatabas3/authcore/internal/observability/logger"
)

// HealthService define las operaciones de health check.
type HealthService interface {
	Check(ctx context.Context) dto.ReadyResponse
}

// Deps contiene las dependencias inyectables para el health service.
// Los checks son funcs para no acoplar este paquete a los adapters.
type Deps struct {
	Issuer     *jwtx.Issuer
	StoreCheck func(ctx context.Context) error // ping al storage (crítico)
	RedisCheck func(ctx context.Context) error // nil si el rate limiter es en memoria
	Version    string
}

// Services agrupa los services del dominio health.
type Services struct {
	Health HealthService
}

// NewServices crea el aggregator del dominio health.
func NewServices(d Deps) Services {
	return Services{Health: NewHealthService(d)}
}

type healthService struct {
	deps Deps
}

// NewHealthService crea un nuevo service de health check.
func NewHealthService(deps Deps) HealthService {
	return &healthService{deps: deps}
}

func (s *healthService) Check(ctx context.Context) dto.ReadyResponse {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("health"),
		logger.Op("Check"),
	)

	response := dto.ReadyResponse{
		Components: make(map[string]dto.ComponentStatus),
		Timestamp:  time.Now().UTC(),
		Version:    s.deps.Version,
	}
	if s.deps.Issuer != nil {
		response.ActiveKeyID = s.deps.Issuer.ActiveKID()
	}

	hasErrors := false
	hasCriticalErrors := false

	// 1) Storage (crítico: sin storage no hay decisiones de acceso)
	if s.deps.StoreCheck != nil {
		if err := s.deps.StoreCheck(ctx); err != nil {
			response.Components["storage"] = dto.ComponentStatus{
				Status:  "error",
				Message: fmt.Sprintf("unavailable: %v", err),
			}
			hasCriticalErrors = true
			log.Error("storage unavailable", logger.Err(err))
		} else {
			response.Components["storage"] = dto.ComponentStatus{Status: "ok"}
		}
	} else {
		response.Components["storage"] = dto.ComponentStatus{
			Status:  "error",
			Message: "store not initialized",
		}
		hasCriticalErrors = true
	}

	// 2) Clave de firma (crítico: sin firma no se emiten credenciales)
	if s.deps.Issuer != nil {
		if err := s.deps.Issuer.SelfCheck(); err != nil {
			response.Components["signing_key"] = dto.ComponentStatus{
				Status:  "error",
				Message: err.Error(),
			}
			hasCriticalErrors = true
			log.Error("signing self-check failed", logger.Err(err))
		} else {
			response.Components["signing_key"] = dto.ComponentStatus{Status: "ok"}
		}
	} else {
		response.Components["signing_key"] = dto.ComponentStatus{
			Status:  "error",
			Message: "issuer not initialized",
		}
		hasCriticalErrors = true
	}

	// 3) Redis (no crítico: el rate limiter degrada a fail-open)
	if s.deps.RedisCheck != nil {
		if err := s.deps.RedisCheck(ctx); err != nil {
			response.Components["redis"] = dto.ComponentStatus{
				Status:  "error",
				Message: fmt.Sprintf("unavailable: %v", err),
			}
			hasErrors = true
			log.Warn("redis unavailable", logger.Err(err))
		} else {
			response.Components["redis"] = dto.ComponentStatus{Status: "ok"}
		}
	} else {
		response.Components["redis"] = dto.ComponentStatus{
			Status:  "disabled",
			Message: "memory rate limiter",
		}
	}

	switch {
	case hasCriticalErrors:
		response.Status = "unavailable"
	case hasErrors:
		response.Status = "degraded"
	default:
		response.Status = "ready"
	}

	return response
}

package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dropDatabas3/authcore/internal/domain/repository"
	dto "github.com/dropDatabas3/authcore/internal/http/dto/auth"
	httperrors "github.com/dropDatabas3/authcore/internal/http/errors"
	"github.com/dropDatabas3/authcore/internal/http/middlewares"
	svc "github.com/dropDatabas3/authcore/internal/http/services/auth"
	"github.com/dropDatabas3/authcore/internal/observability/logger"
)

// LogoutController handles POST /v1/auth/logout and /v1/auth/logout-all.
type LogoutController struct {
	service svc.LogoutService
}

// NewLogoutController creates the controller.
func NewLogoutController(s svc.LogoutService) *LogoutController {
	return &LogoutController{service: s}
}

// Logout revokes the presented refresh token. Public and idempotent: an
// unknown token still answers ok so callers cannot probe for validity.
func (c *LogoutController) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("auth.logout"))

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 4<<10)

	var req dto.LogoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.WriteError(w, httperrors.ErrInvalidJSON)
		return
	}

	if err := c.service.Logout(ctx, req); err != nil {
		switch {
		case errors.Is(err, svc.ErrMissingRefreshToken):
			httperrors.WriteError(w, httperrors.ErrMissingFields.WithDetail("refresh_token is required"))
		case repository.IsUnavailable(err):
			httperrors.WriteError(w, httperrors.ErrServiceUnavailable)
		default:
			log.Error("unexpected service error", logger.Err(err))
			httperrors.WriteError(w, httperrors.ErrInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(dto.LogoutResponse{OK: true})
}

// LogoutAll revokes every session of the authenticated caller.
func (c *LogoutController) LogoutAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("auth.logout_all"))

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
		return
	}

	p := middlewares.GetPrincipal(ctx)
	if p == nil {
		httperrors.WriteError(w, httperrors.ErrUnauthorized)
		return
	}

	n, err := c.service.LogoutAll(ctx, p.SubjectID)
	if err != nil {
		if repository.IsUnavailable(err) {
			httperrors.WriteError(w, httperrors.ErrServiceUnavailable)
			return
		}
		log.Error("unexpected service error", logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(dto.LogoutAllResponse{OK: true, Revoked: n})
}

// Package auth contiene los controllers de autenticación.
package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dropDatabas3/authcore/internal/domain/repository"
	dto "github.com/dropDatabas3/authcore/internal/http/dto/auth"
	httperrors "github.com/dropDatabas3/authcore/internal/http/errors"
	svc "github.com/dropDatabas3/authcore/internal/http/services/auth"
	"github.com/dropDatabas3/authcore/internal/observability/logger"
	"go.uber.org/zap"
)

// RefreshController handles POST /v1/auth/refresh.
type RefreshController struct {
	service svc.RefreshService
}

// NewRefreshController creates the controller.
func NewRefreshController(s svc.RefreshService) *RefreshController {
	return &RefreshController{service: s}
}

// Refresh rotates the presented refresh token.
func (c *RefreshController) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("auth.refresh"))

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 4<<10)

	var req dto.RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.WriteError(w, httperrors.ErrInvalidJSON)
		return
	}

	result, err := c.service.Refresh(ctx, req)
	if err != nil {
		c.handleServiceError(w, err, log)
		return
	}

	writeTokenResponse(w, result)
}

// handleServiceError maps refresh outcomes onto the wire. Reuse detection
// deliberately has no case of its own: the service already collapsed it
// into ErrInvalidRefreshToken, so the response bytes cannot differ.
func (c *RefreshController) handleServiceError(w http.ResponseWriter, err error, log *zap.Logger) {
	switch {
	case errors.Is(err, svc.ErrMissingRefreshToken):
		httperrors.WriteError(w, httperrors.ErrMissingFields.WithDetail("refresh_token is required"))
	case errors.Is(err, svc.ErrInvalidRefreshToken):
		httperrors.WriteError(w, httperrors.ErrInvalidToken)
	case errors.Is(err, svc.ErrRefreshTokenExpired):
		httperrors.WriteError(w, httperrors.ErrTokenExpired)
	case errors.Is(err, svc.ErrSubjectDisabled):
		httperrors.WriteError(w, httperrors.ErrAccountSuspended)
	case errors.Is(err, svc.ErrIssueFailed):
		httperrors.WriteError(w, httperrors.ErrInternalServerError)
	case repository.IsUnavailable(err):
		httperrors.WriteError(w, httperrors.ErrServiceUnavailable)
	default:
		log.Error("unexpected service error", logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrInternalServerError)
	}
}

// writeTokenResponse serializa una emisión de credenciales. Siempre
// no-store: la respuesta contiene secretos.
func writeTokenResponse(w http.ResponseWriter, result *dto.TokenResult) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	resp := dto.TokenResponse{
		AccessToken:  result.AccessToken,
		TokenType:    "Bearer",
		ExpiresIn:    result.ExpiresIn,
		RefreshToken: result.RefreshToken,
	}
	_ = json.NewEncoder(w).Encode(resp)
}

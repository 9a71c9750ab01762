// Package admin contiene los controllers de la API operativa. Todos los
// endpoints de este paquete van detrás de RequireAdminKey.
package admin

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/authcore/internal/domain/repository"
	httperrors "github.com/dropDatabas3/authcore/internal/http/errors"
	svc "github.com/dropDatabas3/authcore/internal/http/services/admin"
	"github.com/dropDatabas3/authcore/internal/observability/logger"
)

// Controller handles the operational endpoints.
type Controller struct {
	service svc.Service
}

// NewController creates the controller.
func NewController(s svc.Service) *Controller {
	return &Controller{service: s}
}

// Sweep deletes expired refresh tokens and device codes and reports counts.
func (c *Controller) Sweep(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("admin.sweep"))

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
		return
	}

	resp, err := c.service.Sweep(ctx)
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
	_ = json.NewEncoder(w).Encode(resp)
}

// RevokeUserTokens revokes every refresh token of the subject in the path.
func (c *Controller) RevokeUserTokens(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("admin.revoke_user_tokens"))

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
		return
	}

	resp, err := c.service.RevokeUserTokens(ctx, chi.URLParam(r, "id"))
	if err != nil {
		switch {
		case errors.Is(err, svc.ErrMissingUserID):
			httperrors.WriteError(w, httperrors.ErrMissingFields.WithDetail("user id is required"))
		case errors.Is(err, svc.ErrUserNotFound):
			httperrors.WriteError(w, httperrors.ErrUserNotFound)
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
	_ = json.NewEncoder(w).Encode(resp)
}

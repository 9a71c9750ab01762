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
)

// ExchangeController handles POST /v1/auth/exchange. The router only mounts
// it when an identity bridge is configured.
type ExchangeController struct {
	service svc.ExchangeService
}

// NewExchangeController creates the controller.
func NewExchangeController(s svc.ExchangeService) *ExchangeController {
	return &ExchangeController{service: s}
}

// Exchange trades an upstream authorization artifact for credentials.
func (c *ExchangeController) Exchange(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("auth.exchange"))

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 8<<10)

	var req dto.ExchangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.WriteError(w, httperrors.ErrInvalidJSON)
		return
	}

	result, err := c.service.Exchange(ctx, req)
	if err != nil {
		switch {
		case errors.Is(err, svc.ErrMissingCode):
			httperrors.WriteError(w, httperrors.ErrMissingFields.WithDetail("code is required"))
		case errors.Is(err, svc.ErrExchangeUnavailable):
			httperrors.WriteError(w, httperrors.ErrRouteNotFound)
		case errors.Is(err, svc.ErrExchangeRejected), errors.Is(err, svc.ErrSubjectNotFound):
			httperrors.WriteError(w, httperrors.ErrUnauthorized.WithDetail("authorization code rejected"))
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
		return
	}

	writeTokenResponse(w, result)
}

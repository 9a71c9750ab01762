package device

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dropDatabas3/authcore/internal/domain/repository"
	dto "github.com/dropDatabas3/authcore/internal/http/dto/device"
	httperrors "github.com/dropDatabas3/authcore/internal/http/errors"
	"github.com/dropDatabas3/authcore/internal/http/middlewares"
	svc "github.com/dropDatabas3/authcore/internal/http/services/device"
	"github.com/dropDatabas3/authcore/internal/observability/logger"
	"go.uber.org/zap"
)

// DecisionController handles the operator side of the device flow:
// GET /v1/device/activate plus the approve and deny endpoints. All three
// sit behind the auth guard; the poll endpoint never does.
type DecisionController struct {
	service svc.DecisionService
}

// NewDecisionController creates the controller.
func NewDecisionController(s svc.DecisionService) *DecisionController {
	return &DecisionController{service: s}
}

// Activate shows a pending request so the operator can inspect it before
// deciding. The user code arrives as a query param because the activation
// page links here straight from verification_uri_complete.
func (c *DecisionController) Activate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("device.activate"))

	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
		return
	}

	resp, err := c.service.Activate(ctx, r.URL.Query().Get("user_code"))
	if err != nil {
		writeDecisionError(w, err, log)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}

// Approve marks a pending request as approved by the caller.
func (c *DecisionController) Approve(w http.ResponseWriter, r *http.Request) {
	c.decide(w, r, "device.approve", c.service.Approve)
}

// Deny marks a pending request as denied.
func (c *DecisionController) Deny(w http.ResponseWriter, r *http.Request) {
	c.decide(w, r, "device.deny", c.service.Deny)
}

func (c *DecisionController) decide(w http.ResponseWriter, r *http.Request, op string, fn func(ctx context.Context, userCode, approverID string) (*dto.DecisionResponse, error)) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op(op))

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
		return
	}

	principal := middlewares.GetPrincipal(ctx)
	if principal == nil {
		httperrors.WriteError(w, httperrors.ErrUnauthorized)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 4<<10)

	var req dto.DecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.WriteError(w, httperrors.ErrInvalidJSON)
		return
	}

	resp, err := fn(ctx, req.UserCode, principal.SubjectID)
	if err != nil {
		writeDecisionError(w, err, log)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}

// writeDecisionError maps decision service errors onto the AppError table.
// Unlike the poll endpoint these are plain JSON APIs, so not-found, expired
// and already-decided each get their own status.
func writeDecisionError(w http.ResponseWriter, err error, log *zap.Logger) {
	switch {
	case errors.Is(err, svc.ErrInvalidUserCode):
		httperrors.WriteError(w, httperrors.ErrMissingFields.WithDetail("user_code is required"))
	case errors.Is(err, svc.ErrDeviceCodeNotFound):
		httperrors.WriteError(w, httperrors.ErrDeviceCodeNotFound)
	case errors.Is(err, svc.ErrDeviceCodeExpired):
		httperrors.WriteError(w, httperrors.ErrDeviceCodeExpired)
	case errors.Is(err, svc.ErrAlreadyDecided):
		httperrors.WriteError(w, httperrors.ErrDeviceCodeTerminal)
	case repository.IsUnavailable(err):
		httperrors.WriteError(w, httperrors.ErrServiceUnavailable)
	default:
		log.Error("unexpected service error", logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrInternalServerError)
	}
}

// Package device contiene los controllers del flujo de dispositivos.
package device

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/dropDatabas3/authcore/internal/domain/repository"
	authdto "github.com/dropDatabas3/authcore/internal/http/dto/auth"
	dto "github.com/dropDatabas3/authcore/internal/http/dto/device"
	httperrors "github.com/dropDatabas3/authcore/internal/http/errors"
	authsvc "github.com/dropDatabas3/authcore/internal/http/services/auth"
	svc "github.com/dropDatabas3/authcore/internal/http/services/device"
	"github.com/dropDatabas3/authcore/internal/observability/logger"
	"go.uber.org/zap"
)

// FlowController handles the device-facing endpoints: POST /v1/device/code
// and POST /v1/device/token.
type FlowController struct {
	service svc.FlowService
}

// NewFlowController creates the controller.
func NewFlowController(s svc.FlowService) *FlowController {
	return &FlowController{service: s}
}

// RequestCode starts a device authorization.
func (c *FlowController) RequestCode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("device.code"))

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 8<<10)

	var req dto.CodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.WriteError(w, httperrors.ErrInvalidJSON)
		return
	}

	result, err := c.service.RequestCode(ctx, req, requestIP(r), r.UserAgent())
	if err != nil {
		switch {
		case errors.Is(err, svc.ErrMissingClientID):
			httperrors.WriteError(w, httperrors.ErrMissingFields.WithDetail("client_id is required"))
		case repository.IsUnavailable(err):
			httperrors.WriteError(w, httperrors.ErrServiceUnavailable)
		default:
			log.Error("unexpected service error", logger.Err(err))
			httperrors.WriteError(w, httperrors.ErrInternalServerError)
		}
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(dto.CodeResponse{
		DeviceCode:              result.DeviceCode,
		UserCode:                result.UserCode,
		VerificationURI:         result.VerificationURI,
		VerificationURIComplete: result.VerificationURIComplete,
		ExpiresIn:               result.ExpiresIn,
		Interval:                result.Interval,
	})
}

// Token is the RFC 8628 polling endpoint. Every error leaves in the OAuth
// envelope ({"error":"authorization_pending"}), not the AppError one,
// because device SDKs parse that field.
func (c *FlowController) Token(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("device.token"))

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		writeOAuthError(w, http.StatusBadRequest, "invalid_request", "POST required")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 8<<10)

	req, err := decodeTokenRequest(r)
	if err != nil {
		writeOAuthError(w, http.StatusBadRequest, "invalid_request", "malformed body")
		return
	}

	result, err := c.service.Poll(ctx, req)
	if err != nil {
		c.handlePollError(w, err, log)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(authdto.TokenResponse{
		AccessToken:  result.AccessToken,
		TokenType:    "Bearer",
		ExpiresIn:    result.ExpiresIn,
		RefreshToken: result.RefreshToken,
	})
}

// decodeTokenRequest acepta JSON y form-encoding: RFC 8628 manda
// application/x-www-form-urlencoded pero los SDKs propios mandan JSON.
func decodeTokenRequest(r *http.Request) (dto.TokenRequest, error) {
	ct := strings.ToLower(r.Header.Get("Content-Type"))
	if strings.Contains(ct, "application/json") {
		var req dto.TokenRequest
		err := json.NewDecoder(r.Body).Decode(&req)
		return req, err
	}
	if err := r.ParseForm(); err != nil {
		return dto.TokenRequest{}, err
	}
	return dto.TokenRequest{
		GrantType:  r.PostFormValue("grant_type"),
		DeviceCode: r.PostFormValue("device_code"),
	}, nil
}

func (c *FlowController) handlePollError(w http.ResponseWriter, err error, log *zap.Logger) {
	switch {
	case errors.Is(err, svc.ErrAuthorizationPending):
		writeOAuthError(w, http.StatusBadRequest, "authorization_pending", "")
	case errors.Is(err, svc.ErrSlowDown):
		writeOAuthError(w, http.StatusBadRequest, "slow_down", "")
	case errors.Is(err, svc.ErrAccessDenied):
		writeOAuthError(w, http.StatusBadRequest, "access_denied", "")
	case errors.Is(err, svc.ErrDeviceCodeExpired):
		writeOAuthError(w, http.StatusBadRequest, "expired_token", "")
	case errors.Is(err, svc.ErrAlreadyRedeemed):
		writeOAuthError(w, http.StatusBadRequest, "expired_token", "device code already redeemed")
	case errors.Is(err, svc.ErrDeviceCodeNotFound):
		writeOAuthError(w, http.StatusBadRequest, "invalid_grant", "")
	case errors.Is(err, svc.ErrMissingDeviceCode):
		writeOAuthError(w, http.StatusBadRequest, "invalid_request", "device_code is required")
	case errors.Is(err, svc.ErrUnsupportedGrant):
		writeOAuthError(w, http.StatusBadRequest, "unsupported_grant_type", "")
	case errors.Is(err, authsvc.ErrSubjectDisabled), errors.Is(err, authsvc.ErrSubjectNotFound):
		writeOAuthError(w, http.StatusBadRequest, "access_denied", "")
	case repository.IsUnavailable(err):
		writeOAuthError(w, http.StatusServiceUnavailable, "temporarily_unavailable", "")
	default:
		log.Error("unexpected service error", logger.Err(err))
		writeOAuthError(w, http.StatusInternalServerError, "server_error", "")
	}
}

// writeOAuthError escribe el envelope de error OAuth.
func writeOAuthError(w http.ResponseWriter, status int, code, description string) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(dto.OAuthError{Error: code, ErrorDescription: description})
}

// requestIP extrae la IP del cliente considerando proxies.
func requestIP(r *http.Request) string {
	if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
		parts := strings.Split(xf, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}

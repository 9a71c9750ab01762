package device_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dropDatabas3/authcore/internal/http/middlewares"
	"github.com/stretchr/testify/require"
)

func (e *flowEnv) decide(h http.HandlerFunc, userCode string, principal *middlewares.Principal) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/v1/device/approve",
		strings.NewReader(`{"user_code":"`+userCode+`"}`))
	req.Header.Set("Content-Type", "application/json")
	if principal != nil {
		req = req.WithContext(middlewares.WithPrincipal(req.Context(), principal))
	}
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func (e *flowEnv) activate(userCode string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/v1/device/activate?user_code="+userCode, nil)
	rec := httptest.NewRecorder()
	e.ctrl.Decision.Activate(rec, req)
	return rec
}

func TestActivateEndpoint_ShowsPendingRequest(t *testing.T) {
	e := newFlowEnv(t)
	code := e.startFlow(t)

	// The activation page hands the code over exactly as the human typed it.
	sloppy := strings.ToLower(strings.ReplaceAll(code.UserCode, "-", ""))
	rec := e.activate(sloppy)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	require.Contains(t, rec.Body.String(), `"client_id":"tv-app"`)
	require.Contains(t, rec.Body.String(), `"user_code":"`+code.UserCode+`"`)
}

func TestActivateEndpoint_ErrorStatuses(t *testing.T) {
	e := newFlowEnv(t)

	rec := e.activate("")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "MISSING_FIELDS")

	rec = e.activate("ZZZZ-9999")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), "DEVICE_CODE_NOT_FOUND")

	code := e.startFlow(t)
	principal := &middlewares.Principal{SubjectID: e.approverID}
	require.Equal(t, http.StatusOK, e.decide(e.ctrl.Decision.Approve, code.UserCode, principal).Code)

	rec = e.activate(code.UserCode)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Contains(t, rec.Body.String(), "DEVICE_CODE_TERMINAL")
}

func TestActivateEndpoint_Expired(t *testing.T) {
	e := newFlowEnvTTL(t, -time.Second)
	code := e.startFlow(t)

	rec := e.activate(code.UserCode)
	require.Equal(t, http.StatusGone, rec.Code)
	require.Contains(t, rec.Body.String(), "DEVICE_CODE_EXPIRED")
}

func TestDecisionEndpoints_ApproveAndDeny(t *testing.T) {
	e := newFlowEnv(t)
	principal := &middlewares.Principal{SubjectID: e.approverID}

	code := e.startFlow(t)
	rec := e.decide(e.ctrl.Decision.Approve, code.UserCode, principal)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Contains(t, rec.Body.String(), `"status":"approved"`)

	// Terminal: both retry and contradiction are 409.
	rec = e.decide(e.ctrl.Decision.Approve, code.UserCode, principal)
	require.Equal(t, http.StatusConflict, rec.Code)
	rec = e.decide(e.ctrl.Decision.Deny, code.UserCode, principal)
	require.Equal(t, http.StatusConflict, rec.Code)

	other := e.startFlow(t)
	rec = e.decide(e.ctrl.Decision.Deny, other.UserCode, principal)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"status":"denied"`)
}

func TestDecisionEndpoints_RequirePrincipal(t *testing.T) {
	e := newFlowEnv(t)
	code := e.startFlow(t)

	rec := e.decide(e.ctrl.Decision.Approve, code.UserCode, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDecisionEndpoints_MethodChecks(t *testing.T) {
	e := newFlowEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/device/approve", nil)
	rec := httptest.NewRecorder()
	e.ctrl.Decision.Approve(rec, req)
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/v1/device/activate", nil)
	rec = httptest.NewRecorder()
	e.ctrl.Decision.Activate(rec, req)
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

package device_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/dropDatabas3/authcore/internal/domain/repository"
	ctrl "github.com/dropDatabas3/authcore/internal/http/controllers/device"
	authdto "github.com/dropDatabas3/authcore/internal/http/dto/auth"
	dto "github.com/dropDatabas3/authcore/internal/http/dto/device"
	authsvc "github.com/dropDatabas3/authcore/internal/http/services/auth"
	devsvc "github.com/dropDatabas3/authcore/internal/http/services/device"
	jwtx "github.com/dropDatabas3/authcore/internal/jwt"
	"github.com/dropDatabas3/authcore/internal/notify"
	"github.com/dropDatabas3/authcore/internal/store/adapters/memory"
	"github.com/stretchr/testify/require"
)

type flowEnv struct {
	conn       *memory.Connection
	svc        devsvc.Services
	ctrl       ctrl.Controllers
	approverID string
}

func newFlowEnv(t *testing.T) *flowEnv {
	return newFlowEnvTTL(t, 10*time.Minute)
}

func newFlowEnvTTL(t *testing.T, codeTTL time.Duration) *flowEnv {
	t.Helper()
	ctx := context.Background()

	ks, err := jwtx.NewDevEd25519("test-1")
	require.NoError(t, err)
	issuer := jwtx.NewIssuer("https://auth.test", ks)

	conn := memory.NewConnection()
	approverID, err := conn.Users().Create(ctx, repository.CreateUserInput{Email: "ada@example.com"})
	require.NoError(t, err)
	require.NoError(t, conn.RBAC().CreateRole(ctx, repository.Role{Name: "user"}))
	require.NoError(t, conn.RBAC().AssignRole(ctx, approverID, "user"))

	hashKey := []byte("0123456789abcdef0123456789abcdef")
	auth := authsvc.NewServices(authsvc.Deps{
		Users:      conn.Users(),
		Tokens:     conn.Tokens(),
		RBAC:       conn.RBAC(),
		Issuer:     issuer,
		RefreshTTL: time.Hour,
		HashKey:    hashKey,
		Notifier:   notify.New(nil),
	})
	services := devsvc.NewServices(devsvc.Deps{
		Devices:         conn.DeviceCodes(),
		Issue:           auth.Issue,
		HashKey:         hashKey,
		CodeTTL:         codeTTL,
		PollInterval:    5 * time.Second,
		VerificationURI: "https://auth.test/activate",
	})

	return &flowEnv{
		conn:       conn,
		svc:        services,
		ctrl:       ctrl.NewControllers(services),
		approverID: approverID,
	}
}

func (e *flowEnv) startFlow(t *testing.T) dto.CodeResponse {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/device/code",
		strings.NewReader(`{"client_id":"tv-app","client_name":"Living Room TV","scopes":["read"]}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.ctrl.Flow.RequestCode(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp dto.CodeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func (e *flowEnv) pollJSON(deviceCode string) *httptest.ResponseRecorder {
	body := `{"grant_type":"` + dto.GrantTypeDeviceCode + `","device_code":"` + deviceCode + `"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/device/token", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.ctrl.Flow.Token(rec, req)
	return rec
}

func (e *flowEnv) pollForm(deviceCode string) *httptest.ResponseRecorder {
	form := url.Values{}
	form.Set("grant_type", dto.GrantTypeDeviceCode)
	form.Set("device_code", deviceCode)
	req := httptest.NewRequest(http.MethodPost, "/v1/device/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	e.ctrl.Flow.Token(rec, req)
	return rec
}

func oauthErr(t *testing.T, rec *httptest.ResponseRecorder) dto.OAuthError {
	t.Helper()
	var e dto.OAuthError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e), rec.Body.String())
	return e
}

func TestRequestCode_ReturnsGrantMaterial(t *testing.T) {
	e := newFlowEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/device/code",
		strings.NewReader(`{"client_id":"tv-app"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.ctrl.Flow.RequestCode(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	var resp dto.CodeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.DeviceCode)
	require.Len(t, resp.UserCode, 9)
	require.Equal(t, "https://auth.test/activate", resp.VerificationURI)
	require.Equal(t, resp.VerificationURI+"?user_code="+resp.UserCode, resp.VerificationURIComplete)
	require.Equal(t, int64(600), resp.ExpiresIn)
	require.Equal(t, int64(5), resp.Interval)
}

func TestRequestCode_MissingClientIDEnvelope(t *testing.T) {
	e := newFlowEnv(t)

	// The code endpoint speaks the JSON API envelope, not the OAuth one.
	req := httptest.NewRequest(http.MethodPost, "/v1/device/code", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.ctrl.Flow.RequestCode(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "MISSING_FIELDS")
}

func TestTokenEndpoint_PendingThenSlowDown(t *testing.T) {
	e := newFlowEnv(t)
	code := e.startFlow(t)

	// RFC form encoding and JSON both work; both get the OAuth envelope.
	rec := e.pollForm(code.DeviceCode)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "authorization_pending", oauthErr(t, rec).Error)
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	rec = e.pollJSON(code.DeviceCode)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "slow_down", oauthErr(t, rec).Error)
}

func TestTokenEndpoint_ApprovedIssuesCredentials(t *testing.T) {
	e := newFlowEnv(t)
	ctx := context.Background()
	code := e.startFlow(t)

	_, err := e.svc.Decision.Approve(ctx, code.UserCode, e.approverID)
	require.NoError(t, err)

	rec := e.pollJSON(code.DeviceCode)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	var resp authdto.TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "Bearer", resp.TokenType)
	require.NotEmpty(t, resp.AccessToken)
	require.NotEmpty(t, resp.RefreshToken)

	// Exactly once: the next poll is a terminal OAuth error.
	rec = e.pollJSON(code.DeviceCode)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := oauthErr(t, rec)
	require.Equal(t, "expired_token", body.Error)
	require.Equal(t, "device code already redeemed", body.ErrorDescription)
}

func TestTokenEndpoint_Denied(t *testing.T) {
	e := newFlowEnv(t)
	code := e.startFlow(t)

	_, err := e.svc.Decision.Deny(context.Background(), code.UserCode, e.approverID)
	require.NoError(t, err)

	rec := e.pollJSON(code.DeviceCode)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "access_denied", oauthErr(t, rec).Error)
}

func TestTokenEndpoint_RequestErrors(t *testing.T) {
	e := newFlowEnv(t)

	rec := e.pollJSON("never-issued")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "invalid_grant", oauthErr(t, rec).Error)

	req := httptest.NewRequest(http.MethodPost, "/v1/device/token",
		strings.NewReader(`{"grant_type":"authorization_code","device_code":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	wrongGrant := httptest.NewRecorder()
	e.ctrl.Flow.Token(wrongGrant, req)
	require.Equal(t, "unsupported_grant_type", oauthErr(t, wrongGrant).Error)

	req = httptest.NewRequest(http.MethodPost, "/v1/device/token",
		strings.NewReader(`{"grant_type":"`+dto.GrantTypeDeviceCode+`"}`))
	req.Header.Set("Content-Type", "application/json")
	missing := httptest.NewRecorder()
	e.ctrl.Flow.Token(missing, req)
	require.Equal(t, "invalid_request", oauthErr(t, missing).Error)

	req = httptest.NewRequest(http.MethodPost, "/v1/device/token", strings.NewReader(`{not json`))
	req.Header.Set("Content-Type", "application/json")
	malformed := httptest.NewRecorder()
	e.ctrl.Flow.Token(malformed, req)
	require.Equal(t, http.StatusBadRequest, malformed.Code)
	require.Equal(t, "invalid_request", oauthErr(t, malformed).Error)
}

func TestTokenEndpoint_WrongMethodStaysInOAuthEnvelope(t *testing.T) {
	e := newFlowEnv(t)

	// Pollers parse the "error" field even out of band; a bare 405 body
	// would break their state machines.
	req := httptest.NewRequest(http.MethodGet, "/v1/device/token", nil)
	rec := httptest.NewRecorder()
	e.ctrl.Flow.Token(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "POST", rec.Header().Get("Allow"))
	body := oauthErr(t, rec)
	require.Equal(t, "invalid_request", body.Error)
	require.Equal(t, "POST required", body.ErrorDescription)
}

package middlewares_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dropDatabas3/authcore/internal/domain/repository"
	"github.com/dropDatabas3/authcore/internal/http/middlewares"
	jwtx "github.com/dropDatabas3/authcore/internal/jwt"
	"github.com/dropDatabas3/authcore/internal/security/password"
	"github.com/dropDatabas3/authcore/internal/store/adapters/memory"
)

type errBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail"`
}

func decodeErr(t *testing.T, rec *httptest.ResponseRecorder) errBody {
	t.Helper()
	var b errBody
	if err := json.Unmarshal(rec.Body.Bytes(), &b); err != nil {
		t.Fatalf("response is not the error envelope: %v (%s)", err, rec.Body.String())
	}
	return b
}

// authFixture wires RequireAuth against a live in-memory store so the tests
// cover the real lookup path, not a mock of it.
type authFixture struct {
	conn   *memory.Connection
	issuer *jwtx.Issuer
	userID string
	auth   middlewares.Middleware
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	ctx := context.Background()

	ks, err := jwtx.NewDevEd25519("test-1")
	if err != nil {
		t.Fatalf("keyset: %v", err)
	}
	issuer := jwtx.NewIssuer("https://auth.test", ks)

	conn := memory.NewConnection()
	userID, err := conn.Users().Create(ctx, repository.CreateUserInput{Email: "ada@example.com"})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	if err := conn.RBAC().CreateRole(ctx, repository.Role{
		Name: "user", Permissions: []string{"device:approve"},
	}); err != nil {
		t.Fatalf("seed role: %v", err)
	}
	if err := conn.RBAC().AssignRole(ctx, userID, "user"); err != nil {
		t.Fatalf("assign role: %v", err)
	}

	return &authFixture{
		conn:   conn,
		issuer: issuer,
		userID: userID,
		auth: middlewares.RequireAuth(middlewares.AuthConfig{
			Issuer: issuer,
			Users:  conn.Users(),
			RBAC:   conn.RBAC(),
		}),
	}
}

func (f *authFixture) bearer(t *testing.T, sub string) string {
	t.Helper()
	token, _, err := f.issuer.IssueAccess(sub, nil)
	if err != nil {
		t.Fatalf("sign access token: %v", err)
	}
	return "Bearer " + token
}

func (f *authFixture) get(h http.Handler, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestRequireAuth_MissingToken(t *testing.T) {
	f := newAuthFixture(t)
	h := middlewares.Chain(okHandler(), f.auth)

	rec := f.get(h, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if got := decodeErr(t, rec).Code; got != "TOKEN_MISSING" {
		t.Fatalf("code = %q, want TOKEN_MISSING", got)
	}
	if rec.Header().Get("WWW-Authenticate") == "" {
		t.Fatal("401 must carry WWW-Authenticate")
	}
}

func TestRequireAuth_GarbageToken(t *testing.T) {
	f := newAuthFixture(t)
	h := middlewares.Chain(okHandler(), f.auth)

	rec := f.get(h, "Bearer not.a.jwt")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if got := decodeErr(t, rec).Code; got != "TOKEN_INVALID" {
		t.Fatalf("code = %q, want TOKEN_INVALID", got)
	}
}

func TestRequireAuth_ExpiredToken(t *testing.T) {
	f := newAuthFixture(t)
	h := middlewares.Chain(okHandler(), f.auth)

	// Same key, but signed already past exp by more than the leeway.
	stale := jwtx.NewIssuer(f.issuer.Iss, f.issuer.Keys)
	stale.AccessTTL = -2 * time.Minute
	token, _, err := stale.IssueAccess(f.userID, nil)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	rec := f.get(h, "Bearer "+token)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if got := decodeErr(t, rec).Code; got != "TOKEN_EXPIRED" {
		t.Fatalf("code = %q, want TOKEN_EXPIRED", got)
	}
}

func TestRequireAuth_UnknownSubject(t *testing.T) {
	f := newAuthFixture(t)
	h := middlewares.Chain(okHandler(), f.auth)

	rec := f.get(h, f.bearer(t, "00000000-0000-0000-0000-000000000000"))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	body := decodeErr(t, rec)
	if body.Code != "TOKEN_INVALID" || body.Detail != "unknown subject" {
		t.Fatalf("body = %+v", body)
	}
}

func TestRequireAuth_DisabledSubject(t *testing.T) {
	f := newAuthFixture(t)
	h := middlewares.Chain(okHandler(), f.auth)

	if err := f.conn.Users().SetDisabled(context.Background(), f.userID, true); err != nil {
		t.Fatalf("disable: %v", err)
	}

	rec := f.get(h, f.bearer(t, f.userID))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	if got := decodeErr(t, rec).Code; got != "ACCOUNT_SUSPENDED" {
		t.Fatalf("code = %q, want ACCOUNT_SUSPENDED", got)
	}
}

func TestRequireAuth_PopulatesPrincipal(t *testing.T) {
	f := newAuthFixture(t)

	var principal *middlewares.Principal
	var userID string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal = middlewares.GetPrincipal(r.Context())
		userID = middlewares.GetUserID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	rec := f.get(middlewares.Chain(inner, f.auth), f.bearer(t, f.userID))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204 (%s)", rec.Code, rec.Body.String())
	}
	if principal == nil {
		t.Fatal("no principal in context")
	}
	if principal.SubjectID != f.userID || userID != f.userID {
		t.Fatalf("subject = %q / %q, want %q", principal.SubjectID, userID, f.userID)
	}
	if principal.Email != "ada@example.com" {
		t.Fatalf("email = %q", principal.Email)
	}
	if len(principal.Roles) != 1 || principal.Roles[0] != "user" {
		t.Fatalf("roles = %v", principal.Roles)
	}
	if len(principal.Permissions) != 1 || principal.Permissions[0] != "device:approve" {
		t.Fatalf("permissions = %v", principal.Permissions)
	}
}

func TestRequireAuth_EntitlementChangeAppliesImmediately(t *testing.T) {
	f := newAuthFixture(t)
	h := middlewares.Chain(okHandler(), f.auth)
	authz := f.bearer(t, f.userID)

	if rec := f.get(h, authz); rec.Code != http.StatusNoContent {
		t.Fatalf("first request: %d", rec.Code)
	}

	// Same still-valid token, but the subject was suspended in between.
	// The fresh per-request lookup must notice without waiting for expiry.
	if err := f.conn.Users().SetDisabled(context.Background(), f.userID, true); err != nil {
		t.Fatalf("disable: %v", err)
	}
	if rec := f.get(h, authz); rec.Code != http.StatusForbidden {
		t.Fatalf("second request: %d, want 403", rec.Code)
	}
}

// downUsers simulates storage that cannot answer.
type downUsers struct{}

func (downUsers) GetByID(ctx context.Context, id string) (*repository.User, error) {
	return nil, fmt.Errorf("dial tcp 10.0.0.5:5432: %w", repository.ErrUnavailable)
}
func (downUsers) GetByEmail(ctx context.Context, email string) (*repository.User, error) {
	return nil, fmt.Errorf("dial tcp 10.0.0.5:5432: %w", repository.ErrUnavailable)
}
func (downUsers) Create(ctx context.Context, input repository.CreateUserInput) (string, error) {
	return "", fmt.Errorf("dial tcp 10.0.0.5:5432: %w", repository.ErrUnavailable)
}
func (downUsers) SetDisabled(ctx context.Context, id string, disabled bool) error {
	return fmt.Errorf("dial tcp 10.0.0.5:5432: %w", repository.ErrUnavailable)
}

func TestRequireAuth_StorageDownIs503(t *testing.T) {
	f := newAuthFixture(t)

	guard := middlewares.RequireAuth(middlewares.AuthConfig{
		Issuer: f.issuer,
		Users:  downUsers{},
		RBAC:   f.conn.RBAC(),
	})

	// A valid token with storage down must read as "try again", never as a
	// verdict about the caller's access.
	rec := f.get(middlewares.Chain(okHandler(), guard), f.bearer(t, f.userID))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	if got := decodeErr(t, rec).Code; got != "SERVICE_UNAVAILABLE" {
		t.Fatalf("code = %q, want SERVICE_UNAVAILABLE", got)
	}
}

func TestRequireRole_AnyOfSuffices(t *testing.T) {
	f := newAuthFixture(t)

	h := middlewares.Chain(okHandler(), f.auth, middlewares.RequireRole("admin", "user"))
	if rec := f.get(h, f.bearer(t, f.userID)); rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}

	h = middlewares.Chain(okHandler(), f.auth, middlewares.RequireRole("admin"))
	rec := f.get(h, f.bearer(t, f.userID))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	body := decodeErr(t, rec)
	if body.Code != "FORBIDDEN" || body.Detail != "requires one of roles: admin" {
		t.Fatalf("body = %+v", body)
	}
}

func TestRequirePermission_AllRequired(t *testing.T) {
	f := newAuthFixture(t)

	h := middlewares.Chain(okHandler(), f.auth, middlewares.RequirePermission("device:approve"))
	if rec := f.get(h, f.bearer(t, f.userID)); rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}

	h = middlewares.Chain(okHandler(), f.auth,
		middlewares.RequirePermission("device:approve", "user:manage"))
	rec := f.get(h, f.bearer(t, f.userID))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	// The detail names only what is missing, not what the caller holds.
	if got := decodeErr(t, rec).Detail; got != "missing permissions: user:manage" {
		t.Fatalf("detail = %q", got)
	}
}

func TestGuards_WithoutAuthAre401(t *testing.T) {
	f := newAuthFixture(t)

	for name, h := range map[string]http.Handler{
		"role":       middlewares.Chain(okHandler(), middlewares.RequireRole("user")),
		"permission": middlewares.Chain(okHandler(), middlewares.RequirePermission("device:approve")),
	} {
		rec := f.get(h, f.bearer(t, f.userID))
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s guard without RequireAuth: status = %d, want 401", name, rec.Code)
		}
	}
}

func TestRequireAdminKey(t *testing.T) {
	// Cheap cost: Verify reads parameters back from the PHC string.
	phc, err := password.Hash(password.Params{Memory: 8 * 1024, Time: 1, Parallelism: 1, KeyLen: 32}, "s3cret")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	h := middlewares.Chain(okHandler(), middlewares.RequireAdminKey(phc))

	do := func(key string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/v1/admin/sweep", nil)
		if key != "" {
			req.Header.Set("X-Admin-API-Key", key)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	if rec := do("s3cret"); rec.Code != http.StatusNoContent {
		t.Fatalf("valid key: status = %d, want 204", rec.Code)
	}
	if rec := do("wrong"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong key: status = %d, want 401", rec.Code)
	}
	if rec := do(""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing key: status = %d, want 401", rec.Code)
	}

	// No hash configured: everything is rejected no matter the key.
	disabled := middlewares.Chain(okHandler(), middlewares.RequireAdminKey(""))
	req := httptest.NewRequest(http.MethodPost, "/v1/admin/sweep", nil)
	req.Header.Set("X-Admin-API-Key", "s3cret")
	rec := httptest.NewRecorder()
	disabled.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("disabled admin API: status = %d, want 401", rec.Code)
	}
	if got := decodeErr(t, rec).Detail; got != "admin API disabled" {
		t.Fatalf("detail = %q", got)
	}
}

package device_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/dropDatabas3/authcore/internal/domain/repository"
	authdto "github.com/dropDatabas3/authcore/internal/http/dto/auth"
	dto "github.com/dropDatabas3/authcore/internal/http/dto/device"
	authsvc "github.com/dropDatabas3/authcore/internal/http/services/auth"
	svc "github.com/dropDatabas3/authcore/internal/http/services/device"
	jwtx "github.com/dropDatabas3/authcore/internal/jwt"
	"github.com/dropDatabas3/authcore/internal/notify"
	"github.com/dropDatabas3/authcore/internal/store/adapters/memory"
	"github.com/stretchr/testify/require"
)

type deviceEnv struct {
	conn       *memory.Connection
	issuer     *jwtx.Issuer
	auth       authsvc.Services
	svc        svc.Services
	approverID string
}

func newDeviceEnv(t *testing.T, codeTTL time.Duration) *deviceEnv {
	t.Helper()
	ctx := context.Background()

	ks, err := jwtx.NewDevEd25519("test-1")
	require.NoError(t, err)
	issuer := jwtx.NewIssuer("https://auth.test", ks)

	conn := memory.NewConnection()
	approverID, err := conn.Users().Create(ctx, repository.CreateUserInput{
		Email: "ada@example.com", Name: "Ada",
	})
	require.NoError(t, err)
	require.NoError(t, conn.RBAC().CreateRole(ctx, repository.Role{
		Name: "user", Permissions: []string{"device:approve"},
	}))
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

	return &deviceEnv{
		conn:       conn,
		issuer:     issuer,
		auth:       auth,
		approverID: approverID,
		svc: svc.NewServices(svc.Deps{
			Devices:         conn.DeviceCodes(),
			Issue:           auth.Issue,
			HashKey:         hashKey,
			CodeTTL:         codeTTL,
			PollInterval:    5 * time.Second,
			VerificationURI: "https://auth.test/activate/",
		}),
	}
}

func (e *deviceEnv) requestCode(t *testing.T) *dto.CodeResult {
	t.Helper()
	out, err := e.svc.Flow.RequestCode(context.Background(), dto.CodeRequest{
		ClientID:   "tv-app",
		ClientName: "Living Room TV",
		Scopes:     []string{"read"},
	}, "203.0.113.9", "tv-app/2.1")
	require.NoError(t, err)
	return out
}

func pollReq(deviceCode string) dto.TokenRequest {
	return dto.TokenRequest{GrantType: dto.GrantTypeDeviceCode, DeviceCode: deviceCode}
}

func TestDeviceFlow_EndToEnd(t *testing.T) {
	e := newDeviceEnv(t, 10*time.Minute)
	ctx := context.Background()

	code := e.requestCode(t)
	require.Len(t, code.UserCode, 9)
	require.Equal(t, "https://auth.test/activate", code.VerificationURI)
	require.Equal(t, "https://auth.test/activate?user_code="+code.UserCode, code.VerificationURIComplete)
	require.Equal(t, int64(600), code.ExpiresIn)
	require.Equal(t, int64(5), code.Interval)

	// First poll: nobody decided yet.
	_, err := e.svc.Flow.Poll(ctx, pollReq(code.DeviceCode))
	require.ErrorIs(t, err, svc.ErrAuthorizationPending)

	// Second poll right away violates the cadence.
	_, err = e.svc.Flow.Poll(ctx, pollReq(code.DeviceCode))
	require.ErrorIs(t, err, svc.ErrSlowDown)

	// The human side sees the request. Sloppy entry is fine: lowercase,
	// no hyphen, stray spaces.
	sloppy := " " + strings.ToLower(strings.ReplaceAll(code.UserCode, "-", "")) + " "
	act, err := e.svc.Decision.Activate(ctx, sloppy)
	require.NoError(t, err)
	require.Equal(t, code.UserCode, act.UserCode)
	require.Equal(t, "tv-app", act.ClientID)
	require.Equal(t, "Living Room TV", act.ClientName)
	require.Equal(t, []string{"read"}, act.Scopes)
	require.Equal(t, "203.0.113.9", act.IP)

	dec, err := e.svc.Decision.Approve(ctx, code.UserCode, e.approverID)
	require.NoError(t, err)
	require.Equal(t, "approved", dec.Status)

	// An approved poll redeems immediately; the cadence only throttles
	// pending codes.
	issued, err := e.svc.Flow.Poll(ctx, pollReq(code.DeviceCode))
	require.NoError(t, err)
	claims, err := jwtx.ParseEdDSA(issued.AccessToken, e.issuer.Keys, e.issuer.Iss, e.issuer.Leeway)
	require.NoError(t, err)
	require.Equal(t, e.approverID, claims["sub"])
	require.Equal(t, "read", claims["scope"])

	// Redemption is exactly-once.
	_, err = e.svc.Flow.Poll(ctx, pollReq(code.DeviceCode))
	require.ErrorIs(t, err, svc.ErrAlreadyRedeemed)

	// The refresh token minted through the device grant is a first-class
	// session.
	rotated, err := e.auth.Refresh.Refresh(ctx, authdto.RefreshRequest{RefreshToken: issued.RefreshToken})
	require.NoError(t, err)
	require.NotEmpty(t, rotated.AccessToken)
}

func TestRequestCode_MissingClientID(t *testing.T) {
	e := newDeviceEnv(t, 10*time.Minute)

	_, err := e.svc.Flow.RequestCode(context.Background(), dto.CodeRequest{ClientID: "  "}, "", "")
	require.ErrorIs(t, err, svc.ErrMissingClientID)
}

func TestPoll_RequestValidation(t *testing.T) {
	e := newDeviceEnv(t, 10*time.Minute)
	ctx := context.Background()

	_, err := e.svc.Flow.Poll(ctx, dto.TokenRequest{GrantType: "authorization_code", DeviceCode: "x"})
	require.ErrorIs(t, err, svc.ErrUnsupportedGrant)

	_, err = e.svc.Flow.Poll(ctx, dto.TokenRequest{GrantType: dto.GrantTypeDeviceCode, DeviceCode: " "})
	require.ErrorIs(t, err, svc.ErrMissingDeviceCode)

	_, err = e.svc.Flow.Poll(ctx, pollReq("never-issued"))
	require.ErrorIs(t, err, svc.ErrDeviceCodeNotFound)
}

func TestPoll_Denied(t *testing.T) {
	e := newDeviceEnv(t, 10*time.Minute)
	ctx := context.Background()

	code := e.requestCode(t)
	_, err := e.svc.Decision.Deny(ctx, code.UserCode, e.approverID)
	require.NoError(t, err)

	// Denial is stable across retries, no cadence involved.
	for i := 0; i < 2; i++ {
		_, err = e.svc.Flow.Poll(ctx, pollReq(code.DeviceCode))
		require.ErrorIs(t, err, svc.ErrAccessDenied)
	}
}

func TestPoll_Expired(t *testing.T) {
	e := newDeviceEnv(t, -time.Second)
	ctx := context.Background()

	code := e.requestCode(t)
	_, err := e.svc.Flow.Poll(ctx, pollReq(code.DeviceCode))
	require.ErrorIs(t, err, svc.ErrDeviceCodeExpired)
}

func TestRedeem_IssuanceFailureDoesNotReopenCode(t *testing.T) {
	e := newDeviceEnv(t, 10*time.Minute)
	ctx := context.Background()

	code := e.requestCode(t)
	_, err := e.svc.Decision.Approve(ctx, code.UserCode, e.approverID)
	require.NoError(t, err)

	// The approver is disabled between approval and redemption: issuance
	// fails, the error surfaces, and the code stays consumed rather than
	// reopening for another try.
	require.NoError(t, e.conn.Users().SetDisabled(ctx, e.approverID, true))
	_, err = e.svc.Flow.Poll(ctx, pollReq(code.DeviceCode))
	require.ErrorIs(t, err, authsvc.ErrSubjectDisabled)

	_, err = e.svc.Flow.Poll(ctx, pollReq(code.DeviceCode))
	require.ErrorIs(t, err, svc.ErrAlreadyRedeemed)
}

func TestActivate_Rejections(t *testing.T) {
	e := newDeviceEnv(t, 10*time.Minute)
	ctx := context.Background()

	_, err := e.svc.Decision.Activate(ctx, "short")
	require.ErrorIs(t, err, svc.ErrInvalidUserCode)

	_, err = e.svc.Decision.Activate(ctx, "ZZZZ-9999")
	require.ErrorIs(t, err, svc.ErrDeviceCodeNotFound)

	code := e.requestCode(t)
	_, err = e.svc.Decision.Approve(ctx, code.UserCode, e.approverID)
	require.NoError(t, err)
	_, err = e.svc.Decision.Activate(ctx, code.UserCode)
	require.ErrorIs(t, err, svc.ErrAlreadyDecided)
}

func TestActivate_Expired(t *testing.T) {
	e := newDeviceEnv(t, -time.Second)

	code := e.requestCode(t)
	_, err := e.svc.Decision.Activate(context.Background(), code.UserCode)
	require.ErrorIs(t, err, svc.ErrDeviceCodeExpired)
}

func TestDecision_IsTerminal(t *testing.T) {
	e := newDeviceEnv(t, 10*time.Minute)
	ctx := context.Background()

	code := e.requestCode(t)
	_, err := e.svc.Decision.Approve(ctx, code.UserCode, e.approverID)
	require.NoError(t, err)

	_, err = e.svc.Decision.Approve(ctx, code.UserCode, e.approverID)
	require.ErrorIs(t, err, svc.ErrAlreadyDecided)
	_, err = e.svc.Decision.Deny(ctx, code.UserCode, e.approverID)
	require.ErrorIs(t, err, svc.ErrAlreadyDecided)
}

func TestDecision_Expired(t *testing.T) {
	e := newDeviceEnv(t, -time.Second)
	ctx := context.Background()

	code := e.requestCode(t)
	_, err := e.svc.Decision.Approve(ctx, code.UserCode, e.approverID)
	require.ErrorIs(t, err, svc.ErrDeviceCodeExpired)
	_, err = e.svc.Decision.Deny(ctx, code.UserCode, e.approverID)
	require.ErrorIs(t, err, svc.ErrDeviceCodeExpired)
}

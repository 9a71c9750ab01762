package middlewares

import (
	"context"
	stderrors "errors"
	"net/http"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/dropDatabas3/authcore/internal/domain/repository"
	"github.com/dropDatabas3/authcore/internal/http/errors"
	jwtx "github.com/dropDatabas3/authcore/internal/jwt"
	"github.com/dropDatabas3/authcore/internal/observability/logger"
)

// =================================================================================
// AUTHENTICATION MIDDLEWARE
// =================================================================================

// AuthConfig wires the pieces RequireAuth needs: the verifier for the access
// token and the repositories consulted on every request.
type AuthConfig struct {
	Issuer *jwtx.Issuer
	Users  repository.UserRepository
	RBAC   repository.RBACRepository
}

// RequireAuth validates Authorization: Bearer <JWT> and resolves the caller
// against storage. The token only proves identity; roles and permissions are
// looked up fresh here, so a role revoked a second ago is gone on this very
// request even though the access token still carries the old snapshot.
//
// Responses:
//   - 401 for missing, malformed, expired or otherwise unverifiable tokens
//   - 403 when the subject exists but is disabled
//   - 503 when storage cannot answer (never a silent allow or deny)
func RequireAuth(cfg AuthConfig) Middleware {
	resolver := &subjectResolver{cfg: cfg}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ah := strings.TrimSpace(r.Header.Get("Authorization"))
			if ah == "" || !strings.HasPrefix(strings.ToLower(ah), "bearer ") {
				w.Header().Set("WWW-Authenticate", `Bearer realm="api", error="invalid_token", error_description="missing bearer token"`)
				errors.WriteError(w, errors.ErrTokenMissing)
				return
			}
			raw := strings.TrimSpace(ah[len("Bearer "):])

			claims, err := jwtx.ParseEdDSA(raw, cfg.Issuer.Keys, cfg.Issuer.Iss, cfg.Issuer.Leeway)
			if err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="api", error="invalid_token", error_description="`+err.Error()+`"`)
				if stderrors.Is(err, jwtx.ErrTokenExpired) {
					errors.WriteError(w, errors.ErrTokenExpired)
					return
				}
				errors.WriteError(w, errors.ErrInvalidToken.WithDetail(err.Error()))
				return
			}

			sub := ClaimString(claims, "sub")
			if sub == "" {
				w.Header().Set("WWW-Authenticate", `Bearer realm="api", error="invalid_token", error_description="token has no subject"`)
				errors.WriteError(w, errors.ErrInvalidToken.WithDetail("token has no subject"))
				return
			}

			ctx := r.Context()

			rs, err := resolver.resolve(ctx, sub)
			if err != nil {
				if repository.IsNotFound(err) {
					w.Header().Set("WWW-Authenticate", `Bearer realm="api", error="invalid_token", error_description="unknown subject"`)
					errors.WriteError(w, errors.ErrInvalidToken.WithDetail("unknown subject"))
					return
				}
				writeLookupError(w, r, "auth.subject_lookup", err)
				return
			}
			if !rs.active {
				errors.WriteError(w, errors.ErrAccountSuspended)
				return
			}

			ctx = WithClaims(ctx, claims)
			ctx = WithUserID(ctx, rs.principal.SubjectID)
			ctx = WithPrincipal(ctx, rs.principal)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// subjectResolver hace el lookup de sujeto, roles y permisos. Requests
// concurrentes del mismo sujeto comparten un único viaje a storage
// (singleflight); nada queda cacheado una vez resuelto el vuelo, así que
// una revocación sigue aplicando al request siguiente.
type subjectResolver struct {
	cfg AuthConfig
	sf  singleflight.Group
}

type resolvedSubject struct {
	principal *Principal
	active    bool
}

func (s *subjectResolver) resolve(ctx context.Context, sub string) (resolvedSubject, error) {
	v, err, _ := s.sf.Do(sub, func() (any, error) {
		user, err := s.cfg.Users.GetByID(ctx, sub)
		if err != nil {
			return nil, err
		}
		if !user.Active() {
			return resolvedSubject{active: false}, nil
		}

		roles, err := s.cfg.RBAC.GetUserRoles(ctx, user.ID)
		if err != nil {
			return nil, err
		}
		perms, err := s.cfg.RBAC.GetRolePermissions(ctx, roles)
		if err != nil {
			return nil, err
		}

		return resolvedSubject{
			principal: &Principal{
				SubjectID:   user.ID,
				Email:       user.Email,
				Roles:       roles,
				Permissions: perms,
			},
			active: true,
		}, nil
	})
	if err != nil {
		return resolvedSubject{}, err
	}
	return v.(resolvedSubject), nil
}

// writeLookupError maps a repository failure during auth to a response.
// An unreachable store is 503: the caller may retry and must not read the
// failure as a decision about their access.
func writeLookupError(w http.ResponseWriter, r *http.Request, op string, err error) {
	logger.From(r.Context()).Error("auth storage lookup failed",
		logger.Op(op),
		logger.Err(err),
	)
	if repository.IsUnavailable(err) {
		errors.WriteError(w, errors.ErrServiceUnavailable)
		return
	}
	errors.WriteError(w, errors.ErrInternalServerError)
}

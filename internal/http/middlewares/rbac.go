package middlewares

import (
	"net/http"
	"strings"

	"github.com/dropDatabas3/authcore/internal/http/errors"
)

// =================================================================================
// RBAC MIDDLEWARES
// =================================================================================

// normalizeSet builds a lookup set with trimmed, lowercased entries.
func normalizeSet(vals []string) map[string]struct{} {
	set := make(map[string]struct{}, len(vals))
	for _, v := range vals {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" {
			set[v] = struct{}{}
		}
	}
	return set
}

// requirePrincipal fetches the Principal or writes a 401. Guards below run
// after RequireAuth; a missing principal means the chain was wired wrong.
func requirePrincipal(w http.ResponseWriter, r *http.Request) *Principal {
	p := GetPrincipal(r.Context())
	if p == nil {
		w.Header().Set("WWW-Authenticate", `Bearer realm="api", error="invalid_token"`)
		errors.WriteError(w, errors.ErrUnauthorized.WithDetail("no principal in context"))
		return nil
	}
	return p
}

// RequireRole allows the request when the caller holds AT LEAST ONE of the
// given roles. The 403 detail names the full required set so operators can
// read the denial without consulting the route table.
func RequireRole(roles ...string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := requirePrincipal(w, r)
			if p == nil {
				return
			}

			have := normalizeSet(p.Roles)
			for _, want := range roles {
				if _, ok := have[strings.ToLower(strings.TrimSpace(want))]; ok {
					next.ServeHTTP(w, r)
					return
				}
			}

			errors.WriteError(w, errors.ErrForbidden.WithDetail(
				"requires one of roles: "+strings.Join(roles, ", ")))
		})
	}
}

// RequirePermission allows the request only when the caller holds ALL of the
// given permissions. The 403 detail names exactly the permissions that are
// missing, not the ones already held.
func RequirePermission(perms ...string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := requirePrincipal(w, r)
			if p == nil {
				return
			}

			have := normalizeSet(p.Permissions)
			var missing []string
			for _, want := range perms {
				if _, ok := have[strings.ToLower(strings.TrimSpace(want))]; !ok {
					missing = append(missing, want)
				}
			}
			if len(missing) > 0 {
				errors.WriteError(w, errors.ErrForbidden.WithDetail(
					"missing permissions: "+strings.Join(missing, ", ")))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

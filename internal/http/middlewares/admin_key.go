package middlewares

import (
	"net/http"
	"strings"

	"github.com/dropDatabas3/authcore/internal/http/errors"
	"github.com/dropDatabas3/authcore/internal/observability/logger"
	"github.com/dropDatabas3/authcore/internal/security/password"
)

// RequireAdminKey validates the X-Admin-API-Key header against the argon2id
// hash from config. With an empty hash every request is rejected; the router
// additionally avoids mounting admin routes in that case.
func RequireAdminKey(phcHash string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if phcHash == "" {
				errors.WriteError(w, errors.ErrUnauthorized.WithDetail("admin API disabled"))
				return
			}

			key := strings.TrimSpace(r.Header.Get("X-Admin-API-Key"))
			if key == "" {
				errors.WriteError(w, errors.ErrUnauthorized.WithDetail("missing admin API key"))
				return
			}

			if !password.Verify(key, phcHash) {
				logger.From(r.Context()).Warn("admin API key rejected",
					logger.Op("admin_key"),
					logger.ClientIP(clientIP(r)),
				)
				errors.WriteError(w, errors.ErrUnauthorized.WithDetail("invalid admin API key"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

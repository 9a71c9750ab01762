package auth

import (
	"net/http"

	httperrors "github.com/dropDatabas3/authcore/internal/http/errors"
	jwtx "github.com/dropDatabas3/authcore/internal/jwt"
)

// JWKSController serves GET /.well-known/jwks.json so peers can verify
// access tokens without calling back.
type JWKSController struct {
	issuer *jwtx.Issuer
}

// NewJWKSController creates the controller.
func NewJWKSController(issuer *jwtx.Issuer) *JWKSController {
	return &JWKSController{issuer: issuer}
}

// JWKS responde con el set de claves públicas del emisor.
func (c *JWKSController) JWKS(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	_, _ = w.Write(c.issuer.JWKSJSON())
}

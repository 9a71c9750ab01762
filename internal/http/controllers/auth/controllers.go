package auth

import (
	svc "github.com/dropDatabas3/authcore/internal/http/services/auth"
	jwtx "github.com/dropDatabas3/authcore/internal/jwt"
)

// Controllers agrupa todos los controllers del dominio auth.
type Controllers struct {
	Refresh  *RefreshController
	Logout   *LogoutController
	Exchange *ExchangeController
	JWKS     *JWKSController
}

// NewControllers creates the auth controllers aggregator.
func NewControllers(s svc.Services, issuer *jwtx.Issuer) *Controllers {
	return &Controllers{
		Refresh:  NewRefreshController(s.Refresh),
		Logout:   NewLogoutController(s.Logout),
		Exchange: NewExchangeController(s.Exchange),
		JWKS:     NewJWKSController(issuer),
	}
}

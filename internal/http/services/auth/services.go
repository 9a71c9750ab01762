// Package auth contiene los services de emisión y rotación de credenciales.
package auth

import (
	"time"

	"github.com/dropDatabas3/authcore/internal/domain/repository"
	jwtx "github.com/dropDatabas3/authcore/internal/jwt"
	"github.com/dropDatabas3/authcore/internal/notify"
)

// Deps contiene las dependencias inyectables del dominio auth.
type Deps struct {
	Users      repository.UserRepository
	Tokens     repository.TokenRepository
	RBAC       repository.RBACRepository
	Issuer     *jwtx.Issuer
	RefreshTTL time.Duration
	HashKey    []byte
	Notifier   *notify.Notifier
	Bridge     IdentityBridge // opcional; sin bridge no se monta /v1/auth/exchange
}

// Services agrupa los services del dominio auth.
type Services struct {
	Issue    IssueService
	Refresh  RefreshService
	Logout   LogoutService
	Exchange ExchangeService
}

// NewServices crea el aggregator del dominio auth.
func NewServices(d Deps) Services {
	issue := NewIssueService(IssueDeps{
		Users:      d.Users,
		RBAC:       d.RBAC,
		Tokens:     d.Tokens,
		Issuer:     d.Issuer,
		RefreshTTL: d.RefreshTTL,
		HashKey:    d.HashKey,
	})
	return Services{
		Issue: issue,
		Refresh: NewRefreshService(RefreshDeps{
			Tokens:     d.Tokens,
			Users:      d.Users,
			RBAC:       d.RBAC,
			Issuer:     d.Issuer,
			RefreshTTL: d.RefreshTTL,
			HashKey:    d.HashKey,
			Notifier:   d.Notifier,
		}),
		Logout: NewLogoutService(LogoutDeps{
			Tokens:  d.Tokens,
			HashKey: d.HashKey,
		}),
		Exchange: NewExchangeService(ExchangeDeps{
			Bridge: d.Bridge,
			Issue:  issue,
		}),
	}
}

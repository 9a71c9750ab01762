package auth

import (
	"context"
	"fmt"
	"strings"

	dto "github.com/dropDatabas3/authcore/internal/http/dto/auth"
	"github.com/dropDatabas3/authcore/internal/observability/logger"
)

// BridgeIdentity is a verified subject as returned by the upstream provider.
type BridgeIdentity struct {
	SubjectID string
	Email     string
	Name      string
}

// IdentityBridge exchanges an upstream authorization artifact for a verified
// subject identity. Find-or-create of the subject row and default role
// assignment happen behind this interface, outside this service.
type IdentityBridge interface {
	Exchange(ctx context.Context, code string) (*BridgeIdentity, error)
}

// ExchangeService logs a subject in through the identity bridge.
type ExchangeService interface {
	Exchange(ctx context.Context, in dto.ExchangeRequest) (*dto.TokenResult, error)
}

// ExchangeDeps contains dependencies for the exchange service.
type ExchangeDeps struct {
	Bridge IdentityBridge // nil when no upstream provider is configured
	Issue  IssueService
}

type exchangeService struct {
	deps ExchangeDeps
}

// NewExchangeService creates a new exchange service.
func NewExchangeService(deps ExchangeDeps) ExchangeService {
	return &exchangeService{deps: deps}
}

// Exchange errors.
var (
	ErrMissingCode         = fmt.Errorf("missing authorization code")
	ErrExchangeUnavailable = fmt.Errorf("identity bridge not configured")
	ErrExchangeRejected    = fmt.Errorf("upstream rejected the authorization code")
)

func (s *exchangeService) Exchange(ctx context.Context, in dto.ExchangeRequest) (*dto.TokenResult, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("auth.exchange"),
		logger.Op("Exchange"),
	)

	if s.deps.Bridge == nil {
		return nil, ErrExchangeUnavailable
	}

	code := strings.TrimSpace(in.Code)
	if code == "" {
		return nil, ErrMissingCode
	}

	identity, err := s.deps.Bridge.Exchange(ctx, code)
	if err != nil {
		log.Info("upstream exchange failed", logger.Err(err))
		return nil, ErrExchangeRejected
	}
	if identity == nil || identity.SubjectID == "" {
		log.Warn("bridge returned no subject")
		return nil, ErrExchangeRejected
	}

	return s.deps.Issue.IssueForSubject(ctx, identity.SubjectID, "exchange", nil)
}

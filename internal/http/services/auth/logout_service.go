package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/dropDatabas3/authcore/internal/audit"
	"github.com/dropDatabas3/authcore/internal/domain/repository"
	dto "github.com/dropDatabas3/authcore/internal/http/dto/auth"
	"github.com/dropDatabas3/authcore/internal/observability/logger"
	tokens "github.com/dropDatabas3/authcore/internal/security/token"
)

// LogoutService revokes refresh credentials.
type LogoutService interface {
	// Logout revokes the presented refresh token. Idempotent: an unknown
	// or already revoked token succeeds without effect.
	Logout(ctx context.Context, in dto.LogoutRequest) error
	// LogoutAll revokes every active refresh token of the subject and
	// returns how many were revoked.
	LogoutAll(ctx context.Context, subjectID string) (int, error)
}

// LogoutDeps contains dependencies for the logout service.
type LogoutDeps struct {
	Tokens  repository.TokenRepository
	HashKey []byte
}

type logoutService struct {
	deps LogoutDeps
}

// NewLogoutService creates a new logout service.
func NewLogoutService(deps LogoutDeps) LogoutService {
	return &logoutService{deps: deps}
}

func (s *logoutService) Logout(ctx context.Context, in dto.LogoutRequest) error {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("auth.logout"),
		logger.Op("Logout"),
	)

	raw := strings.TrimSpace(in.RefreshToken)
	if raw == "" {
		return ErrMissingRefreshToken
	}

	hash := tokens.Digest(s.deps.HashKey, raw)
	rt, err := s.deps.Tokens.GetByHash(ctx, hash)
	if err != nil {
		if repository.IsNotFound(err) {
			log.Debug("logout for unknown token, nothing to do")
			return nil
		}
		return fmt.Errorf("lookup refresh token: %w", err)
	}

	if err := s.deps.Tokens.Revoke(ctx, rt.ID); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}

	audit.Log(ctx, audit.EventLogout, map[string]any{
		"user_id":  rt.UserID,
		"token_id": rt.ID,
	})
	log.Info("logout successful", logger.UserID(rt.UserID), logger.TokenID(rt.ID))
	return nil
}

func (s *logoutService) LogoutAll(ctx context.Context, subjectID string) (int, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("auth.logout"),
		logger.Op("LogoutAll"),
	)

	if strings.TrimSpace(subjectID) == "" {
		return 0, ErrSubjectNotFound
	}

	n, err := s.deps.Tokens.RevokeAllByUser(ctx, subjectID)
	if err != nil {
		return 0, fmt.Errorf("revoke subject tokens: %w", err)
	}

	audit.Log(ctx, audit.EventTokenRevokedAll, map[string]any{
		"user_id": subjectID,
		"revoked": n,
	})
	log.Info("all sessions revoked", logger.UserID(subjectID), logger.Count(n))
	return n, nil
}

package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dropDatabas3/authcore/internal/audit"
	"github.com/dropDatabas3/authcore/internal/domain/repository"
	dto "github.com/dropDatabas3/authcore/internal/http/dto/auth"
	jwtx "github.com/dropDatabas3/authcore/internal/jwt"
	"github.com/dropDatabas3/authcore/internal/notify"
	"github.com/dropDatabas3/authcore/internal/observability/logger"
	"github.com/dropDatabas3/authcore/internal/observability/metrics"
	tokens "github.com/dropDatabas3/authcore/internal/security/token"
	"go.uber.org/zap"
)

// RefreshService rotates refresh credentials.
type RefreshService interface {
	Refresh(ctx context.Context, in dto.RefreshRequest) (*dto.TokenResult, error)
}

// RefreshDeps contains dependencies for the refresh service.
type RefreshDeps struct {
	Tokens     repository.TokenRepository
	Users      repository.UserRepository
	RBAC       repository.RBACRepository
	Issuer     *jwtx.Issuer
	RefreshTTL time.Duration
	HashKey    []byte
	Notifier   *notify.Notifier
}

type refreshService struct {
	deps RefreshDeps
}

// NewRefreshService creates a new refresh service.
func NewRefreshService(deps RefreshDeps) RefreshService {
	return &refreshService{deps: deps}
}

// Refresh errors.
var (
	ErrMissingRefreshToken = fmt.Errorf("missing refresh token")
	// ErrInvalidRefreshToken covers unknown tokens AND detected reuse.
	// Both must be indistinguishable to the caller.
	ErrInvalidRefreshToken = fmt.Errorf("invalid refresh token")
	ErrRefreshTokenExpired = fmt.Errorf("refresh token expired")
)

func (s *refreshService) Refresh(ctx context.Context, in dto.RefreshRequest) (*dto.TokenResult, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("auth.refresh"),
		logger.Op("Refresh"),
	)

	raw := strings.TrimSpace(in.RefreshToken)
	if raw == "" {
		return nil, ErrMissingRefreshToken
	}

	hash := tokens.Digest(s.deps.HashKey, raw)
	rt, err := s.deps.Tokens.GetByHash(ctx, hash)
	if err != nil {
		if repository.IsNotFound(err) {
			log.Debug("refresh token not found")
			return nil, ErrInvalidRefreshToken
		}
		return nil, fmt.Errorf("lookup refresh token: %w", err)
	}

	// A revoked token coming back is the theft signal: its successor was
	// already handed out, nobody legitimate still holds this secret.
	if rt.RevokedAt != nil {
		return nil, s.handleReuse(ctx, rt, log)
	}

	now := time.Now().UTC()
	if !now.Before(rt.ExpiresAt) {
		log.Debug("refresh token expired", logger.TokenID(rt.ID))
		return nil, ErrRefreshTokenExpired
	}

	user, err := s.deps.Users.GetByID(ctx, rt.UserID)
	if err != nil {
		if repository.IsNotFound(err) {
			log.Debug("subject no longer exists", logger.UserID(rt.UserID))
			return nil, ErrInvalidRefreshToken
		}
		return nil, fmt.Errorf("load subject: %w", err)
	}
	if !user.Active() {
		log.Info("subject disabled", logger.UserID(user.ID))
		return nil, ErrSubjectDisabled
	}

	roles, err := s.deps.RBAC.GetUserRoles(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("load roles: %w", err)
	}

	// Sign before rotating: a signing failure here must not leave the
	// subject with a revoked token and no replacement.
	access, exp, err := signAccess(s.deps.Issuer, user, roles, nil)
	if err != nil {
		log.Error("failed to sign access token", logger.Err(err))
		return nil, ErrIssueFailed
	}

	newRaw, newHash, err := mintRefresh(s.deps.HashKey)
	if err != nil {
		log.Error("failed to generate refresh secret", logger.Err(err))
		return nil, ErrIssueFailed
	}

	successorID, err := s.deps.Tokens.Rotate(ctx, rt.ID, repository.CreateRefreshTokenInput{
		UserID:      user.ID,
		TokenHash:   newHash,
		TTL:         s.deps.RefreshTTL,
		RotatedFrom: &rt.ID,
	})
	if err != nil {
		if repository.IsConflict(err) {
			// Lost the race: someone else rotated this token between our
			// read and our update. From here it is indistinguishable from
			// replay of a stolen secret.
			return nil, s.handleReuse(ctx, rt, log)
		}
		log.Error("rotation failed", logger.Err(err), logger.TokenID(rt.ID))
		return nil, fmt.Errorf("rotate refresh token: %w", err)
	}

	metrics.RecordTokenIssued("refresh")
	audit.Log(ctx, audit.EventTokenRotated, map[string]any{
		"user_id":      user.ID,
		"token_id":     rt.ID,
		"successor_id": successorID,
	})
	log.Info("refresh successful", logger.UserID(user.ID), logger.TokenID(successorID))

	return &dto.TokenResult{
		AccessToken:  access,
		RefreshToken: newRaw,
		ExpiresIn:    int64(time.Until(exp).Seconds()),
	}, nil
}

// handleReuse runs the theft response: revoke every session of the subject,
// raise the alarm, and answer exactly as if the token never existed. Even a
// storage failure mid-response keeps the outward answer at "invalid": the
// row stays revoked, so the next presentation trips this path again.
func (s *refreshService) handleReuse(ctx context.Context, rt *repository.RefreshToken, log *zap.Logger) error {
	n, err := s.deps.Tokens.RevokeAllByUser(ctx, rt.UserID)
	if err != nil {
		log.Error("failed to revoke subject tokens after reuse",
			logger.Err(err), logger.UserID(rt.UserID))
	}

	metrics.RecordTokenReuse()
	audit.Log(ctx, audit.EventTokenReuse, map[string]any{
		"user_id":          rt.UserID,
		"token_id":         rt.ID,
		"revoked_sessions": n,
	})
	log.Warn("refresh token reuse detected",
		logger.UserID(rt.UserID), logger.TokenID(rt.ID), logger.Count(n))

	if s.deps.Notifier.Enabled() {
		if user, uerr := s.deps.Users.GetByID(ctx, rt.UserID); uerr == nil && user.Email != "" {
			s.deps.Notifier.ReuseAlert(user.Email, time.Now().UTC(), n)
		}
	}

	return ErrInvalidRefreshToken
}

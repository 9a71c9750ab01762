// Package admin contiene los services operativos: barrido de filas vencidas
// y revocación forzada de sesiones.
package admin

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dropDatabas3/authcore/internal/audit"
	"github.com/dropDatabas3/authcore/internal/domain/repository"
	dto "github.com/dropDatabas3/authcore/internal/http/dto/admin"
	"github.com/dropDatabas3/authcore/internal/observability/logger"
	"github.com/dropDatabas3/authcore/internal/observability/metrics"
)

// Service define las operaciones de administración.
type Service interface {
	// Sweep removes rows whose natural expiry has passed: refresh tokens
	// and device codes. Revoked but unexpired tokens survive on purpose;
	// they are the reuse tripwire. Correctness never depends on this run.
	Sweep(ctx context.Context) (*dto.SweepResponse, error)

	// RevokeUserTokens revokes every refresh token of one subject.
	RevokeUserTokens(ctx context.Context, userID string) (*dto.RevokeResponse, error)
}

// Deps contiene las dependencias del service de administración.
type Deps struct {
	Tokens  repository.TokenRepository
	Devices repository.DeviceCodeRepository
	Users   repository.UserRepository
}

type service struct {
	deps Deps
}

// NewService crea el service de administración.
func NewService(deps Deps) Service {
	return &service{deps: deps}
}

// Admin errors.
var (
	ErrMissingUserID = fmt.Errorf("missing user id")
	ErrUserNotFound  = fmt.Errorf("user not found")
)

func (s *service) Sweep(ctx context.Context) (*dto.SweepResponse, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("admin"),
		logger.Op("Sweep"),
	)

	now := time.Now().UTC()

	nTokens, err := s.deps.Tokens.DeleteExpired(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("sweep refresh tokens: %w", err)
	}
	nDevices, err := s.deps.Devices.DeleteExpired(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("sweep device codes: %w", err)
	}

	metrics.RecordSweep("refresh_token", nTokens)
	metrics.RecordSweep("device_code", nDevices)
	audit.Log(ctx, audit.EventSweepCompleted, map[string]any{
		"refresh_tokens": nTokens,
		"device_codes":   nDevices,
	})
	log.Info("sweep completed",
		logger.Int("refresh_tokens", nTokens),
		logger.Int("device_codes", nDevices),
	)

	return &dto.SweepResponse{RefreshTokens: nTokens, DeviceCodes: nDevices}, nil
}

func (s *service) RevokeUserTokens(ctx context.Context, userID string) (*dto.RevokeResponse, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("admin"),
		logger.Op("RevokeUserTokens"),
	)

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrMissingUserID
	}

	if _, err := s.deps.Users.GetByID(ctx, userID); err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("load subject: %w", err)
	}

	n, err := s.deps.Tokens.RevokeAllByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("revoke subject tokens: %w", err)
	}

	audit.Log(ctx, audit.EventTokenRevokedAll, map[string]any{
		"user_id": userID,
		"revoked": n,
		"actor":   "admin_api",
	})
	log.Info("subject tokens revoked", logger.UserID(userID), logger.Count(n))

	return &dto.RevokeResponse{UserID: userID, Revoked: n}, nil
}

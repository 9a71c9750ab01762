package device

import (
	"context"
	"fmt"
	"time"

	"github.com/dropDatabas3/authcore/internal/audit"
	"github.com/dropDatabas3/authcore/internal/domain/repository"
	dto "github.com/dropDatabas3/authcore/internal/http/dto/device"
	"github.com/dropDatabas3/authcore/internal/observability/logger"
	"github.com/dropDatabas3/authcore/internal/observability/metrics"
	tokens "github.com/dropDatabas3/authcore/internal/security/token"
	"go.uber.org/zap"
)

// DecisionService is the human-facing half of the flow: inspect a code,
// approve it, deny it.
type DecisionService interface {
	Activate(ctx context.Context, userCode string) (*dto.ActivateResponse, error)
	Approve(ctx context.Context, userCode, approverID string) (*dto.DecisionResponse, error)
	Deny(ctx context.Context, userCode, approverID string) (*dto.DecisionResponse, error)
}

// DecisionDeps contains dependencies for the decision service.
type DecisionDeps struct {
	Devices repository.DeviceCodeRepository
}

type decisionService struct {
	deps DecisionDeps
}

// NewDecisionService creates a new decision service.
func NewDecisionService(deps DecisionDeps) DecisionService {
	return &decisionService{deps: deps}
}

// Decision errors.
var (
	ErrInvalidUserCode = fmt.Errorf("invalid user code")
	ErrAlreadyDecided  = fmt.Errorf("device code already decided")
)

func (s *decisionService) Activate(ctx context.Context, userCode string) (*dto.ActivateResponse, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("device.decision"),
		logger.Op("Activate"),
	)

	dc, err := s.lookup(ctx, userCode, log)
	if err != nil {
		return nil, err
	}

	switch dc.StatusAt(time.Now().UTC()) {
	case repository.DeviceCodeExpired:
		return nil, ErrDeviceCodeExpired
	case repository.DeviceCodeApproved, repository.DeviceCodeDenied:
		return nil, ErrAlreadyDecided
	}

	return &dto.ActivateResponse{
		UserCode:    dc.UserCode,
		ClientID:    dc.ClientID,
		ClientName:  dc.ClientName,
		Scopes:      dc.Scopes,
		IP:          dc.IP,
		UserAgent:   dc.UserAgent,
		RequestedAt: dc.CreatedAt,
		ExpiresAt:   dc.ExpiresAt,
	}, nil
}

func (s *decisionService) Approve(ctx context.Context, userCode, approverID string) (*dto.DecisionResponse, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("device.decision"),
		logger.Op("Approve"),
		logger.UserID(approverID),
	)

	dc, err := s.lookup(ctx, userCode, log)
	if err != nil {
		return nil, err
	}
	if err := s.checkPending(dc); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if err := s.deps.Devices.Approve(ctx, dc.ID, approverID, now); err != nil {
		if repository.IsConflict(err) {
			return nil, s.conflictReason(ctx, dc.UserCode, now)
		}
		return nil, fmt.Errorf("approve device code: %w", err)
	}

	metrics.RecordDeviceCode("approved")
	audit.Log(ctx, audit.EventDeviceApproved, map[string]any{
		"device_code_id": dc.ID,
		"user_code":      dc.UserCode,
		"user_id":        approverID,
		"client_id":      dc.ClientID,
	})
	log.Info("device code approved", logger.DeviceCodeID(dc.ID), logger.ClientID(dc.ClientID))

	return &dto.DecisionResponse{UserCode: dc.UserCode, Status: string(repository.DeviceCodeApproved)}, nil
}

func (s *decisionService) Deny(ctx context.Context, userCode, approverID string) (*dto.DecisionResponse, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("device.decision"),
		logger.Op("Deny"),
		logger.UserID(approverID),
	)

	dc, err := s.lookup(ctx, userCode, log)
	if err != nil {
		return nil, err
	}
	if err := s.checkPending(dc); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if err := s.deps.Devices.Deny(ctx, dc.ID, now); err != nil {
		if repository.IsConflict(err) {
			return nil, s.conflictReason(ctx, dc.UserCode, now)
		}
		return nil, fmt.Errorf("deny device code: %w", err)
	}

	metrics.RecordDeviceCode("denied")
	audit.Log(ctx, audit.EventDeviceDenied, map[string]any{
		"device_code_id": dc.ID,
		"user_code":      dc.UserCode,
		"user_id":        approverID,
		"client_id":      dc.ClientID,
	})
	log.Info("device code denied", logger.DeviceCodeID(dc.ID), logger.ClientID(dc.ClientID))

	return &dto.DecisionResponse{UserCode: dc.UserCode, Status: string(repository.DeviceCodeDenied)}, nil
}

// lookup normalizes a user code and resolves its row.
func (s *decisionService) lookup(ctx context.Context, userCode string, log *zap.Logger) (*repository.DeviceCode, error) {
	code, err := tokens.NormalizeUserCode(userCode)
	if err != nil {
		return nil, ErrInvalidUserCode
	}

	dc, err := s.deps.Devices.GetByUserCode(ctx, code)
	if err != nil {
		if repository.IsNotFound(err) {
			log.Debug("user code not found", logger.UserCode(code))
			return nil, ErrDeviceCodeNotFound
		}
		return nil, fmt.Errorf("lookup user code: %w", err)
	}
	return dc, nil
}

// checkPending rejects decisions on codes that are no longer pending.
func (s *decisionService) checkPending(dc *repository.DeviceCode) error {
	switch dc.StatusAt(time.Now().UTC()) {
	case repository.DeviceCodeExpired:
		return ErrDeviceCodeExpired
	case repository.DeviceCodeApproved, repository.DeviceCodeDenied:
		return ErrAlreadyDecided
	}
	return nil
}

// conflictReason re-reads a row after a conditional transition failed, to
// tell a lost decision race apart from expiry in flight.
func (s *decisionService) conflictReason(ctx context.Context, userCode string, now time.Time) error {
	dc, err := s.deps.Devices.GetByUserCode(ctx, userCode)
	if err == nil && dc.StatusAt(now) == repository.DeviceCodeExpired {
		return ErrDeviceCodeExpired
	}
	return ErrAlreadyDecided
}

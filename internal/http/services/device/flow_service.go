package device

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/dropDatabas3/authcore/internal/audit"
	"github.com/dropDatabas3/authcore/internal/domain/repository"
	authdto "github.com/dropDatabas3/authcore/internal/http/dto/auth"
	dto "github.com/dropDatabas3/authcore/internal/http/dto/device"
	authsvc "github.com/dropDatabas3/authcore/internal/http/services/auth"
	"github.com/dropDatabas3/authcore/internal/observability/logger"
	"github.com/dropDatabas3/authcore/internal/observability/metrics"
	tokens "github.com/dropDatabas3/authcore/internal/security/token"
)

const (
	// deviceSecretBytes is the entropy of the device_code polling secret.
	deviceSecretBytes = 32
	// userCodeRetries bounds regeneration when a user code collides with a
	// live pending one.
	userCodeRetries = 5
)

// FlowService is the device-facing half of the flow: start it, poll it.
type FlowService interface {
	RequestCode(ctx context.Context, in dto.CodeRequest, ip, userAgent string) (*dto.CodeResult, error)
	Poll(ctx context.Context, in dto.TokenRequest) (*authdto.TokenResult, error)
}

// FlowDeps contains dependencies for the flow service.
type FlowDeps struct {
	Devices         repository.DeviceCodeRepository
	Issue           authsvc.IssueService
	HashKey         []byte
	CodeTTL         time.Duration
	PollInterval    time.Duration
	VerificationURI string
}

type flowService struct {
	deps FlowDeps
}

// NewFlowService creates a new flow service.
func NewFlowService(deps FlowDeps) FlowService {
	return &flowService{deps: deps}
}

// Flow errors. The poll ones mirror RFC 8628 outcomes one to one.
var (
	ErrMissingClientID      = fmt.Errorf("missing client_id")
	ErrUnsupportedGrant     = fmt.Errorf("unsupported grant_type")
	ErrMissingDeviceCode    = fmt.Errorf("missing device_code")
	ErrDeviceCodeNotFound   = fmt.Errorf("device code not found")
	ErrDeviceCodeExpired    = fmt.Errorf("device code expired")
	ErrAuthorizationPending = fmt.Errorf("authorization pending")
	ErrSlowDown             = fmt.Errorf("polling too fast")
	ErrAccessDenied         = fmt.Errorf("authorization denied")
	ErrAlreadyRedeemed      = fmt.Errorf("device code already redeemed")
)

func (s *flowService) RequestCode(ctx context.Context, in dto.CodeRequest, ip, userAgent string) (*dto.CodeResult, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("device.flow"),
		logger.Op("RequestCode"),
	)

	clientID := strings.TrimSpace(in.ClientID)
	if clientID == "" {
		return nil, ErrMissingClientID
	}

	rawSecret, err := tokens.GenerateOpaqueToken(deviceSecretBytes)
	if err != nil {
		log.Error("failed to generate device secret", logger.Err(err))
		return nil, fmt.Errorf("generate device secret: %w", err)
	}
	hash := tokens.Digest(s.deps.HashKey, rawSecret)

	input := repository.CreateDeviceCodeInput{
		DeviceCodeHash: hash,
		ClientID:       clientID,
		ClientName:     strings.TrimSpace(in.ClientName),
		Scopes:         in.Scopes,
		IP:             ip,
		UserAgent:      userAgent,
		TTL:            s.deps.CodeTTL,
	}

	// User codes live in a tiny keyspace on purpose; collisions with live
	// pending codes are expected and handled by regenerating.
	var id, userCode string
	for attempt := 0; attempt < userCodeRetries; attempt++ {
		userCode, err = tokens.NewUserCode()
		if err != nil {
			return nil, fmt.Errorf("generate user code: %w", err)
		}
		input.UserCode = userCode

		id, err = s.deps.Devices.Create(ctx, input)
		if err == nil {
			break
		}
		if !repository.IsConflict(err) {
			log.Error("failed to persist device code", logger.Err(err))
			return nil, fmt.Errorf("persist device code: %w", err)
		}
	}
	if err != nil {
		log.Error("user code space exhausted", logger.Int("retries", userCodeRetries))
		return nil, fmt.Errorf("allocate user code: %w", err)
	}

	verURI := strings.TrimRight(s.deps.VerificationURI, "/")
	complete := verURI + "?user_code=" + url.QueryEscape(userCode)

	metrics.RecordDeviceCode("created")
	audit.Log(ctx, audit.EventDeviceCodeCreated, map[string]any{
		"device_code_id": id,
		"client_id":      clientID,
		"user_code":      userCode,
	})
	log.Info("device code created",
		logger.DeviceCodeID(id), logger.ClientID(clientID), logger.UserCode(userCode))

	return &dto.CodeResult{
		DeviceCode:              rawSecret,
		UserCode:                userCode,
		VerificationURI:         verURI,
		VerificationURIComplete: complete,
		ExpiresIn:               int64(s.deps.CodeTTL.Seconds()),
		Interval:                int64(s.deps.PollInterval.Seconds()),
	}, nil
}

func (s *flowService) Poll(ctx context.Context, in dto.TokenRequest) (*authdto.TokenResult, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("device.flow"),
		logger.Op("Poll"),
	)

	if in.GrantType != dto.GrantTypeDeviceCode {
		return nil, ErrUnsupportedGrant
	}
	raw := strings.TrimSpace(in.DeviceCode)
	if raw == "" {
		return nil, ErrMissingDeviceCode
	}

	hash := tokens.Digest(s.deps.HashKey, raw)
	dc, err := s.deps.Devices.GetByDeviceCodeHash(ctx, hash)
	if err != nil {
		if repository.IsNotFound(err) {
			log.Debug("device code not found")
			return nil, ErrDeviceCodeNotFound
		}
		return nil, fmt.Errorf("lookup device code: %w", err)
	}

	now := time.Now().UTC()
	switch dc.StatusAt(now) {
	case repository.DeviceCodeExpired:
		log.Debug("device code expired", logger.DeviceCodeID(dc.ID))
		return nil, ErrDeviceCodeExpired

	case repository.DeviceCodeDenied:
		log.Info("poll on denied code", logger.DeviceCodeID(dc.ID))
		return nil, ErrAccessDenied

	case repository.DeviceCodePending:
		ok, err := s.deps.Devices.MarkPolled(ctx, dc.ID, now, s.deps.PollInterval)
		if err != nil {
			return nil, fmt.Errorf("record poll: %w", err)
		}
		if !ok {
			return nil, ErrSlowDown
		}
		return nil, ErrAuthorizationPending

	case repository.DeviceCodeApproved:
		return s.redeem(ctx, dc, now)
	}

	return nil, fmt.Errorf("device code %s in unknown state %q", dc.ID, dc.Status)
}

// redeem turns an approved code into tokens exactly once. The conditional
// consume decides the winner among concurrent polls; issuance happens only
// after this process owns the redemption.
func (s *flowService) redeem(ctx context.Context, dc *repository.DeviceCode, now time.Time) (*authdto.TokenResult, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("device.flow"),
		logger.Op("redeem"),
		logger.DeviceCodeID(dc.ID),
	)

	if dc.Consumed() {
		log.Info("poll on already redeemed code")
		return nil, ErrAlreadyRedeemed
	}
	if dc.SubjectID == nil || *dc.SubjectID == "" {
		log.Error("approved code without bound subject")
		return nil, fmt.Errorf("device code %s approved without subject", dc.ID)
	}

	if err := s.deps.Devices.Consume(ctx, dc.ID, now); err != nil {
		if repository.IsConflict(err) {
			log.Info("lost redemption race")
			return nil, ErrAlreadyRedeemed
		}
		return nil, fmt.Errorf("consume device code: %w", err)
	}

	result, err := s.deps.Issue.IssueForSubject(ctx, *dc.SubjectID, "device", dc.Scopes)
	if err != nil {
		// The code is consumed either way; a retry gets "already redeemed".
		// Surfacing the failure beats silently minting a second credential.
		log.Error("issuance failed after consume", logger.Err(err))
		return nil, err
	}

	metrics.RecordDeviceCode("consumed")
	audit.Log(ctx, audit.EventDeviceConsumed, map[string]any{
		"device_code_id": dc.ID,
		"user_id":        *dc.SubjectID,
		"client_id":      dc.ClientID,
	})
	log.Info("device code redeemed", logger.UserID(*dc.SubjectID))

	return result, nil
}

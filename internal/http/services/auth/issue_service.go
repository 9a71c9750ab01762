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
	"github.com/dropDatabas3/authcore/internal/observability/logger"
	"github.com/dropDatabas3/authcore/internal/observability/metrics"
	tokens "github.com/dropDatabas3/authcore/internal/security/token"
)

// refreshSecretBytes is the entropy of an opaque refresh secret.
const refreshSecretBytes = 32

// IssueService mints a credential pair for an already verified subject.
// Callers bring a subject id they trust (an approved device code, the
// identity bridge); this service only re-checks that the subject is alive.
type IssueService interface {
	IssueForSubject(ctx context.Context, subjectID, grant string, scopes []string) (*dto.TokenResult, error)
}

// IssueDeps contains dependencies for the issue service.
type IssueDeps struct {
	Users      repository.UserRepository
	RBAC       repository.RBACRepository
	Tokens     repository.TokenRepository
	Issuer     *jwtx.Issuer
	RefreshTTL time.Duration
	HashKey    []byte
}

type issueService struct {
	deps IssueDeps
}

// NewIssueService creates a new issue service.
func NewIssueService(deps IssueDeps) IssueService {
	return &issueService{deps: deps}
}

// Issue errors, shared across the package.
var (
	ErrSubjectNotFound = fmt.Errorf("subject not found")
	ErrSubjectDisabled = fmt.Errorf("subject disabled")
	ErrIssueFailed     = fmt.Errorf("failed to issue credentials")
)

func (s *issueService) IssueForSubject(ctx context.Context, subjectID, grant string, scopes []string) (*dto.TokenResult, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("auth.issue"),
		logger.Op("IssueForSubject"),
	)

	user, err := s.deps.Users.GetByID(ctx, subjectID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrSubjectNotFound
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

	access, exp, err := signAccess(s.deps.Issuer, user, roles, scopes)
	if err != nil {
		log.Error("failed to sign access token", logger.Err(err))
		return nil, ErrIssueFailed
	}

	rawRefresh, hash, err := mintRefresh(s.deps.HashKey)
	if err != nil {
		log.Error("failed to generate refresh secret", logger.Err(err))
		return nil, ErrIssueFailed
	}

	id, err := s.deps.Tokens.Create(ctx, repository.CreateRefreshTokenInput{
		UserID:    user.ID,
		TokenHash: hash,
		TTL:       s.deps.RefreshTTL,
	})
	if err != nil {
		log.Error("failed to persist refresh token", logger.Err(err))
		return nil, fmt.Errorf("persist refresh token: %w", err)
	}

	metrics.RecordTokenIssued(grant)
	audit.Log(ctx, audit.EventTokenIssued, map[string]any{
		"user_id":  user.ID,
		"token_id": id,
		"grant":    grant,
	})
	log.Info("credentials issued", logger.UserID(user.ID), logger.TokenID(id))

	return &dto.TokenResult{
		AccessToken:  access,
		RefreshToken: rawRefresh,
		ExpiresIn:    int64(time.Until(exp).Seconds()),
	}, nil
}

// signAccess builds the claim set for a subject and signs it. The roles
// claim is a snapshot for external consumers; in-process authorization
// never reads it back.
func signAccess(issuer *jwtx.Issuer, user *repository.User, roles, scopes []string) (string, time.Time, error) {
	extra := map[string]any{
		"email": user.Email,
		"roles": roles,
	}
	if user.Name != "" {
		extra["name"] = user.Name
	}
	if len(scopes) > 0 {
		extra["scope"] = strings.Join(scopes, " ")
	}
	return issuer.IssueAccess(user.ID, extra)
}

// mintRefresh generates an opaque refresh secret and the keyed digest that
// is the only form ever persisted.
func mintRefresh(hashKey []byte) (raw, digest string, err error) {
	raw, err = tokens.GenerateOpaqueToken(refreshSecretBytes)
	if err != nil {
		return "", "", err
	}
	return raw, tokens.Digest(hashKey, raw), nil
}

// Package audit emite eventos de seguridad estructurados.
package audit

import (
	"context"

	"go.uber.org/zap"

	"github.com/dropDatabas3/authcore/internal/observability/logger"
)

// Eventos canónicos. Los consumidores downstream filtran por estos nombres,
// así que son parte del contrato: no renombrar a la ligera.
const (
	EventTokenIssued       = "token_issued"
	EventTokenRotated      = "token_rotated"
	EventTokenReuse        = "token_reuse_detected"
	EventTokenRevokedAll   = "tokens_revoked_all"
	EventLogout            = "logout"
	EventDeviceCodeCreated = "device_code_created"
	EventDeviceApproved    = "device_approved"
	EventDeviceDenied      = "device_denied"
	EventDeviceConsumed    = "device_consumed"
	EventSubjectDisabled   = "subject_disabled"
	EventSubjectEnabled    = "subject_enabled"
	EventSweepCompleted    = "sweep_completed"
)

// Log writes a structured audit event. In the future this can be wired to DB or external sink.
func Log(ctx context.Context, event string, fields map[string]any) {
	zf := make([]zap.Field, 0, len(fields)+1)
	zf = append(zf, zap.String("event", event))
	for k, v := range fields {
		zf = append(zf, zap.Any(k, v))
	}
	logger.From(ctx).Named("audit").Info("audit", zf...)
}

package logger

import (
	"time"

	"go.uber.org/zap"
)

// =================================================================================
// STANDARD FIELDS - HTTP
// =================================================================================

// RequestID is the per-request correlation id.
func RequestID(v string) zap.Field {
	return zap.String("request_id", v)
}

// Method is the HTTP method.
func Method(v string) zap.Field {
	return zap.String("method", v)
}

// Path is the request path.
func Path(v string) zap.Field {
	return zap.String("path", v)
}

// Status is the HTTP status code.
func Status(v int) zap.Field {
	return zap.Int("status", v)
}

// Duration is the elapsed time of an operation.
func Duration(v time.Duration) zap.Field {
	return zap.Duration("duration", v)
}

// DurationMs is the elapsed time of a request in milliseconds.
func DurationMs(v int64) zap.Field {
	return zap.Int64("duration_ms", v)
}

// Bytes is the size of a response body.
func Bytes(v int) zap.Field {
	return zap.Int("bytes", v)
}

// ClientIP is the remote client address.
func ClientIP(v string) zap.Field {
	return zap.String("client_ip", v)
}

// UserAgent is the request User-Agent.
func UserAgent(v string) zap.Field {
	return zap.String("user_agent", v)
}

// =================================================================================
// STANDARD FIELDS - DOMAIN
// =================================================================================

// UserID is the subject id.
func UserID(v string) zap.Field {
	return zap.String("user_id", v)
}

// ClientID is the id of the client application.
func ClientID(v string) zap.Field {
	return zap.String("client_id", v)
}

// Email is the subject email (use sparingly in prod).
func Email(v string) zap.Field {
	return zap.String("email", v)
}

// TokenID is the id of a refresh-token row.
func TokenID(v string) zap.Field {
	return zap.String("token_id", v)
}

// DeviceCodeID is the id of a device-authorization row.
func DeviceCodeID(v string) zap.Field {
	return zap.String("device_code_id", v)
}

// UserCode is the human-entry code of a device authorization.
func UserCode(v string) zap.Field {
	return zap.String("user_code", v)
}

// Event names a security/audit event.
func Event(v string) zap.Field {
	return zap.String("event", v)
}

// =================================================================================
// STANDARD FIELDS - SYSTEM
// =================================================================================

// Component names the module emitting the entry.
func Component(v string) zap.Field {
	return zap.String("component", v)
}

// Op names the current operation.
func Op(v string) zap.Field {
	return zap.String("op", v)
}

// Layer names the layer (controller, service, repository).
func Layer(v string) zap.Field {
	return zap.String("layer", v)
}

// Err wraps an error value.
func Err(err error) zap.Field {
	return zap.Error(err)
}

// =================================================================================
// STANDARD FIELDS - GENERIC
// =================================================================================

// Count is a generic counter field.
func Count(v int) zap.Field {
	return zap.Int("count", v)
}

// ID is a generic id field.
func ID(v string) zap.Field {
	return zap.String("id", v)
}

// Any is a generic field of any type.
func Any(key string, v any) zap.Field {
	return zap.Any(key, v)
}

// String is a generic string field.
func String(key, v string) zap.Field {
	return zap.String(key, v)
}

// Int is a generic int field.
func Int(key string, v int) zap.Field {
	return zap.Int(key, v)
}

// Bool is a generic bool field.
func Bool(key string, v bool) zap.Field {
	return zap.Bool(key, v)
}

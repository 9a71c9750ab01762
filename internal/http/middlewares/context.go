package middlewares

import "context"

// =================================================================================
// CONTEXT KEYS
// =================================================================================

type ctxKey string

const (
	// ctxClaimsKey guarda las claims JWT parseadas
	ctxClaimsKey ctxKey = "claims"
	// ctxPrincipalKey guarda el Principal resuelto contra storage
	ctxPrincipalKey ctxKey = "principal"
	// ctxUserIDKey guarda el user ID extraído del token
	ctxUserIDKey ctxKey = "user_id"
	// ctxRequestIDKey guarda el request ID
	ctxRequestIDKey ctxKey = "request_id"
)

// Principal is the authenticated caller as storage sees it right now.
// Roles and permissions come from a lookup done on this request, not from
// the token: entitlement changes apply on the next call, without waiting
// for the access token to expire.
type Principal struct {
	SubjectID   string
	Email       string
	Roles       []string
	Permissions []string
}

// =================================================================================
// CONTEXT SETTERS (Internos, usados por middlewares)
// =================================================================================

// WithClaims inyecta claims en el contexto
func WithClaims(ctx context.Context, claims map[string]any) context.Context {
	return context.WithValue(ctx, ctxClaimsKey, claims)
}

// WithPrincipal inyecta el Principal en el contexto
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, ctxPrincipalKey, p)
}

// WithUserID inyecta el user ID en el contexto
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ctxUserIDKey, userID)
}

// setRequestID inyecta el request ID en el contexto (interno)
func setRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxRequestIDKey, requestID)
}

// =================================================================================
// CONTEXT GETTERS (Públicos, usados por handlers/services)
// =================================================================================

// GetClaims obtiene las claims JWT del contexto.
// Retorna nil si no hay claims (token no validado o middleware no aplicado).
func GetClaims(ctx context.Context) map[string]any {
	if v := ctx.Value(ctxClaimsKey); v != nil {
		if m, ok := v.(map[string]any); ok {
			return m
		}
	}
	return nil
}

// GetPrincipal obtiene el Principal del contexto.
// Retorna nil si el request no pasó por RequireAuth.
func GetPrincipal(ctx context.Context) *Principal {
	if v := ctx.Value(ctxPrincipalKey); v != nil {
		if p, ok := v.(*Principal); ok {
			return p
		}
	}
	return nil
}

// GetUserID obtiene el user ID del contexto.
// Retorna "" si no hay usuario autenticado.
func GetUserID(ctx context.Context) string {
	if v := ctx.Value(ctxUserIDKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// GetRequestID obtiene el request ID del contexto.
func GetRequestID(ctx context.Context) string {
	if v := ctx.Value(ctxRequestIDKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// =================================================================================
// CLAIM HELPERS
// =================================================================================

// ClaimString extrae una claim string por key. Retorna "" si no existe o no es string.
func ClaimString(claims map[string]any, key string) string {
	if claims == nil {
		return ""
	}
	if v, ok := claims[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// ClaimBool extrae una claim bool por key.
func ClaimBool(claims map[string]any, key string) bool {
	if claims == nil {
		return false
	}
	if v, ok := claims[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return false
}

// ClaimStringSlice extrae una claim []string por key.
// Acepta tanto []string como []any con elementos string (caso típico de JSON).
func ClaimStringSlice(claims map[string]any, key string) []string {
	if claims == nil {
		return nil
	}
	switch v := claims[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, it := range v {
			if s, ok := it.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// ClaimMap extrae una claim map[string]any por key.
func ClaimMap(claims map[string]any, key string) map[string]any {
	if claims == nil {
		return nil
	}
	if v, ok := claims[key]; ok {
		if m, ok := v.(map[string]any); ok {
			return m
		}
	}
	return nil
}

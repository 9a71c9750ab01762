package auth

// LogoutRequest revoca el refresh token presentado.
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// LogoutResponse confirma la revocación (idempotente).
type LogoutResponse struct {
	OK bool `json:"ok"`
}

// LogoutAllResponse reporta cuántas sesiones fueron revocadas.
type LogoutAllResponse struct {
	OK      bool `json:"ok"`
	Revoked int  `json:"revoked"`
}

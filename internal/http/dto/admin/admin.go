// Package admin contiene DTOs para los endpoints operativos.
package admin

// SweepResponse reporta las filas removidas por el barrido.
type SweepResponse struct {
	RefreshTokens int `json:"refresh_tokens"`
	DeviceCodes   int `json:"device_codes"`
}

// RevokeResponse reporta cuántos refresh tokens de un sujeto fueron revocados.
type RevokeResponse struct {
	UserID  string `json:"user_id"`
	Revoked int    `json:"revoked"`
}

// Package auth contiene DTOs para endpoints de autenticación.
package auth

// RefreshRequest representa la solicitud de rotación de refresh token.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// TokenResponse representa una emisión exitosa de credenciales.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"` // "Bearer"
	ExpiresIn    int64  `json:"expires_in"` // segundos
	RefreshToken string `json:"refresh_token"`
}

// TokenResult es el resultado interno del service.
type TokenResult struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
}

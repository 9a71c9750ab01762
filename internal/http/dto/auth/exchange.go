package auth

// ExchangeRequest lleva el artefacto del proveedor de identidad upstream.
// El bridge configurado lo canjea por una identidad verificada.
type ExchangeRequest struct {
	Code string `json:"code"`
}

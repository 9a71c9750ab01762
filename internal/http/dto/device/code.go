// Package device contiene DTOs para el flujo de autorización de dispositivos.
package device

// CodeRequest inicia el flujo: el dispositivo se identifica y pide scopes.
type CodeRequest struct {
	ClientID   string   `json:"client_id"`
	ClientName string   `json:"client_name,omitempty"`
	Scopes     []string `json:"scopes,omitempty"`
}

// CodeResponse sigue el shape de RFC 8628 §3.2.
type CodeResponse struct {
	DeviceCode              string `json:"device_code"`
	UserCode                string `json:"user_code"`
	VerificationURI         string `json:"verification_uri"`
	VerificationURIComplete string `json:"verification_uri_complete"`
	ExpiresIn               int64  `json:"expires_in"`
	Interval                int64  `json:"interval"`
}

// CodeResult es el resultado interno del service.
type CodeResult struct {
	DeviceCode              string
	UserCode                string
	VerificationURI         string
	VerificationURIComplete string
	ExpiresIn               int64
	Interval                int64
}

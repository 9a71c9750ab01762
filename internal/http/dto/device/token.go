package device

// GrantTypeDeviceCode es el grant_type de RFC 8628 §3.4.
const GrantTypeDeviceCode = "urn:ietf:params:oauth:grant-type:device_code"

// TokenRequest es el request del endpoint de polling (RFC 8628 §3.4).
type TokenRequest struct {
	GrantType  string `json:"grant_type"`
	DeviceCode string `json:"device_code"`
}

// OAuthError es el envelope de error de RFC 8628/6749 que habla el endpoint
// de polling: {"error":"authorization_pending"}.
type OAuthError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

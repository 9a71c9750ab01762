package device

import "time"

// ActivateResponse muestra al usuario qué dispositivo está pidiendo acceso
// antes de aprobar o denegar.
type ActivateResponse struct {
	UserCode    string    `json:"user_code"`
	ClientID    string    `json:"client_id"`
	ClientName  string    `json:"client_name,omitempty"`
	Scopes      []string  `json:"scopes,omitempty"`
	IP          string    `json:"ip,omitempty"`
	UserAgent   string    `json:"user_agent,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// DecisionRequest lleva el user_code a aprobar o denegar.
type DecisionRequest struct {
	UserCode string `json:"user_code"`
}

// DecisionResponse confirma la transición aplicada.
type DecisionResponse struct {
	UserCode string `json:"user_code"`
	Status   string `json:"status"` // "approved" | "denied"
}

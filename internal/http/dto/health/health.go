// Package health contiene DTOs para health checks.
package health

import "time"

// ComponentStatus es el estado de un componente individual.
type ComponentStatus struct {
	Status  string `json:"status"` // "ok" | "error" | "disabled"
	Message string `json:"message,omitempty"`
}

// ReadyResponse es la respuesta de GET /readyz.
// Status es "ready", "degraded" o "unavailable".
type ReadyResponse struct {
	Status      string                     `json:"status"`
	Version     string                     `json:"version,omitempty"`
	ActiveKeyID string                     `json:"active_key_id,omitempty"`
	Components  map[string]ComponentStatus `json:"components"`
	Timestamp   time.Time                  `json:"timestamp"`
}

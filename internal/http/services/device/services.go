// Package device contiene los services del flujo de autorización de
// dispositivos (RFC 8628).
package device

import (
	"time"

	"github.com/dropDatabas3/authcore/internal/domain/repository"
	authsvc "github.com/dropDatabas3/authcore/internal/http/services/auth"
)

// Deps contiene las dependencias inyectables del dominio device.
type Deps struct {
	Devices         repository.DeviceCodeRepository
	Issue           authsvc.IssueService
	HashKey         []byte
	CodeTTL         time.Duration
	PollInterval    time.Duration
	VerificationURI string
}

// Services agrupa los services del dominio device.
type Services struct {
	Flow     FlowService
	Decision DecisionService
}

// NewServices crea el aggregator del dominio device.
func NewServices(d Deps) Services {
	return Services{
		Flow: NewFlowService(FlowDeps{
			Devices:         d.Devices,
			Issue:           d.Issue,
			HashKey:         d.HashKey,
			CodeTTL:         d.CodeTTL,
			PollInterval:    d.PollInterval,
			VerificationURI: d.VerificationURI,
		}),
		Decision: NewDecisionService(DecisionDeps{
			Devices: d.Devices,
		}),
	}
}

package device

import (
	svc "github.com/dropDatabas3/authcore/internal/http/services/device"
)

// Controllers agrupa los controllers del flujo de dispositivos.
type Controllers struct {
	Flow     *FlowController
	Decision *DecisionController
}

// NewControllers construye los controllers a partir de los services.
func NewControllers(s svc.Services) Controllers {
	return Controllers{
		Flow:     NewFlowController(s.Flow),
		Decision: NewDecisionController(s.Decision),
	}
}

// services/hal/internal/consts/consts.go
package consts

// Top-level topics
const (
	TokConfig     = "config"
	TokHAL        = "hal"
	TokCapability = "capability"
	TokInfo       = "info"
	TokState      = "state"
	TokControl    = "control"
)

// Control verbs
const (
	CtrlStatus  = "status"
	CtrlRearm   = "rearm"
	CtrlDisable = "disable"
)

// Capability kinds used in service wiring
const (
	KindSPISlave = "spi_slave"
)

// Device types accepted in config/hal
const (
	TypeSERCOMSPISlave = "sercom_spi_slave"
)

package types

// ------------------------
// Common HAL state (retained)
// ------------------------

type HALState struct {
	Level  string `json:"level"`           // "idle", "ready", "error", "stopped"
	Status string `json:"status"`          // freeform short code
	Error  string `json:"error,omitempty"` // errcode string
	TS     int64  `json:"ts_ns"`           // publish Unix ns
}

// Link is the link/state reported for a capability.
type Link string

const (
	LinkUp       Link = "up"
	LinkDown     Link = "down"
	LinkDegraded Link = "degraded"
)

type CapabilityState struct {
	Link  Link   `json:"link"`
	TS    int64  `json:"ts_ns"`           // Unix ns
	Error string `json:"error,omitempty"` // machine-readable short code
}

// ------------------------
// HAL configuration
// ------------------------

type HALConfig struct {
	Devices []HALDevice `json:"devices"`
}

type HALDevice struct {
	ID     string `json:"id"`     // logical device id
	Type   string `json:"type"`   // e.g. "sercom_spi_slave"
	Params any    `json:"params"` // device-specific params (JSON-like)
}

// ------------------------
// Generic replies
// ------------------------

type OKReply struct {
	OK bool `json:"ok"`
}

type ErrorReply struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// ------------------------
// Info envelope (retained)
// ------------------------

type Info struct {
	SchemaVersion int    `json:"schema_version"`
	Driver        string `json:"driver"`
	Detail        any    `json:"detail,omitempty"` // one of *Info types
}

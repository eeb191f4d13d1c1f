package sercomspi

import "errors"

var (
	// Sentinel errors (TinyGo-safe; no fmt)
	ErrInvalidPinSelection = errors.New("invalid pin selection")
	ErrUnsupportedInstance = errors.New("unsupported sercom instance")
	ErrSyncTimeout         = errors.New("synchronization timeout")
	ErrInvalidConfig       = errors.New("invalid config")
)

// PinError describes a rejected pin choice. It matches ErrInvalidPinSelection
// with errors.Is.
type PinError struct {
	Instance Instance
	Role     Role
	Pin      Pin
	// Collides is set when Pin is already used by another role.
	Collides bool
	With     Role
	// Absent is set when the pin is in the route table but not bonded out on
	// the selected chip variant.
	Absent bool
}

func (e *PinError) Error() string {
	msg := ErrInvalidPinSelection.Error() + ": " + e.Instance.String() + " " + e.Role.String() + "=" + e.Pin.String()
	switch {
	case e.Collides:
		return msg + " already used for " + e.With.String()
	case e.Absent:
		return msg + " not present on this variant"
	default:
		return msg + " not a candidate"
	}
}

func (e *PinError) Unwrap() error { return ErrInvalidPinSelection }

// SyncError reports a synchronisation flag that did not clear within
// Config.SpinLimit polls. It matches ErrSyncTimeout with errors.Is.
type SyncError struct {
	Instance Instance
	Step     Step
}

func (e *SyncError) Error() string {
	return ErrSyncTimeout.Error() + ": " + e.Instance.String() + " " + string(e.Step)
}

func (e *SyncError) Unwrap() error { return ErrSyncTimeout }

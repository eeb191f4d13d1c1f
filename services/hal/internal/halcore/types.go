// services/hal/internal/halcore/types.go
package halcore

import (
	"errors"

	"sercomspi-go/drivers/samd21"
)

// CapInfo describes one capability's retained info document.
type CapInfo struct {
	Kind string // capability kind
	Info any    // small JSONable value
}

// Adaptor abstracts a concrete device/driver. Must not own goroutines or the bus.
type Adaptor interface {
	ID() string
	Capabilities() []CapInfo
	// Healthy reports whether the device is in its configured operating state.
	Healthy() bool
	// Control handles capability methods; unknown methods return ErrUnsupported.
	Control(kind, method string, payload any) (result any, err error)
	// Close releases the hardware. The adaptor is not used afterwards.
	Close() error
}

var (
	// ErrUnsupported for adaptor Control pass-through.
	ErrUnsupported = errors.New("unsupported")
)

// RegisterFactory supplies the register capability devices are built on.
// MCU builds hand out MMIO; host builds a simulator.
type RegisterFactory interface {
	Registers() samd21.Registers
}

// RegisterFunc adapts a function to RegisterFactory.
type RegisterFunc func() samd21.Registers

func (f RegisterFunc) Registers() samd21.Registers { return f() }

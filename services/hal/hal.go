// services/hal/hal.go
package hal

import (
	"context"

	"sercomspi-go/bus"
	"sercomspi-go/drivers/samd21"
	"sercomspi-go/services/hal/internal/halcore"
	"sercomspi-go/services/hal/internal/registry"
	"sercomspi-go/services/hal/internal/service"

	// Device builders register themselves.
	_ "sercomspi-go/services/hal/internal/devices/spislave"
)

// Run serves config/hal and the capability control topics on conn until ctx
// is cancelled. Devices are built on regs.
func Run(ctx context.Context, conn *bus.Connection, regs samd21.Registers) {
	s := service.New(conn, halcore.RegisterFunc(func() samd21.Registers { return regs }))
	s.Run(ctx)
}

// DeviceTypes lists the device types accepted in config/hal.
func DeviceTypes() []string { return registry.Types() }

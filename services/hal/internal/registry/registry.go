// services/hal/internal/registry/registry.go
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"sercomspi-go/services/hal/internal/halcore"
)

// BuildInput is passed to a device builder.
type BuildInput struct {
	Ctx        context.Context
	Regs       halcore.RegisterFactory
	DeviceID   string
	Type       string
	ParamsJSON any

	// Claim reserves an exclusive hardware unit, e.g. "SERCOM0", before the
	// builder touches it. It fails if another device holds the unit.
	Claim func(resource string) error
}

// BuildOutput describes a constructed device.
type BuildOutput struct {
	Adaptor halcore.Adaptor
	// Resource is the exclusive hardware unit the device occupies, e.g.
	// "SERCOM0". Two devices may not hold the same resource.
	Resource string
}

// Builder creates an adaptor from config and factories.
type Builder interface {
	Build(in BuildInput) (BuildOutput, error)
}

// BuilderFunc adapts a function to Builder.
type BuilderFunc func(in BuildInput) (BuildOutput, error)

func (f BuilderFunc) Build(in BuildInput) (BuildOutput, error) { return f(in) }

var (
	mu       sync.RWMutex
	builders = map[string]Builder{}
)

func RegisterBuilder(deviceType string, b Builder) {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := builders[deviceType]; exists {
		panic(fmt.Sprintf("device builder already registered for type %q", deviceType))
	}
	builders[deviceType] = b
}

func Lookup(deviceType string) (Builder, bool) {
	mu.RLock()
	defer mu.RUnlock()
	b, ok := builders[deviceType]
	return b, ok
}

// Types lists registered device types in sorted order.
func Types() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(builders))
	for t := range builders {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

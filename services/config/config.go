package config

import (
	"context"
	"encoding/json"
	"errors"

	"sercomspi-go/bus"
)

// -----------------------------------------------------------------------------
// String constants (live in flash, not RAM)
// -----------------------------------------------------------------------------

const (
	serviceName  = "config"
	configPrefix = "config"
)

type ctxKey string

// ctxDeviceKey carries the board ID the embedded config is chosen by.
const ctxDeviceKey ctxKey = "device"

// WithDevice returns a context selecting the embedded config of device.
func WithDevice(ctx context.Context, device string) context.Context {
	return context.WithValue(ctx, ctxDeviceKey, device)
}

// EmbeddedConfigLookup allows overriding how configs are resolved.
var EmbeddedConfigLookup = func(device string) ([]byte, bool) {
	b, ok := embeddedConfigs[device]
	return b, ok
}

var (
	errNoDevice  = errors.New("missing device ID in context")
	errNotObject = errors.New("embedded config is not a JSON object")
)

// -----------------------------------------------------------------------------
// Config Service
// -----------------------------------------------------------------------------

type ConfigService struct {
	Name string
	// OnError, when set, receives a publish failure from Start.
	OnError func(error)
}

func NewConfigService() *ConfigService {
	return &ConfigService{Name: serviceName}
}

// publishConfig reads the device config from embedded data and publishes
// each top-level key as a retained config/<key> message.
func (s *ConfigService) publishConfig(ctx context.Context, conn *bus.Connection) error {
	device, _ := ctx.Value(ctxDeviceKey).(string)
	if device == "" {
		return errNoDevice
	}

	raw, ok := EmbeddedConfigLookup(device)
	if !ok || len(raw) == 0 {
		return errors.New("no embedded config for device: " + device)
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return err
	}
	if m == nil {
		return errNotObject
	}

	for k, v := range m {
		conn.Publish(conn.NewMessage(bus.T(configPrefix, k), v, true))
	}
	return nil
}

// Start launches the config publisher in a goroutine.
func (s *ConfigService) Start(ctx context.Context, conn *bus.Connection) {
	go func() {
		if err := s.publishConfig(ctx, conn); err != nil && s.OnError != nil {
			s.OnError(err)
		}
	}()
}

// Boards lists the IDs with an embedded config.
func Boards() []string {
	out := make([]string, 0, len(embeddedConfigs))
	for k := range embeddedConfigs {
		out = append(out, k)
	}
	return out
}

// services/hal/internal/halerr/errors.go
package halerr

import "errors"

var (
	// Service/control plane
	ErrInvalidCapAddr = errors.New("invalid_capability_address")
	ErrUnknownCap     = errors.New("unknown_capability")
	ErrNoAdaptor      = errors.New("no_adaptor")

	// Build/config
	ErrUnknownType     = errors.New("unknown_device_type")
	ErrInvalidParams   = errors.New("invalid_params")
	ErrUnknownPin      = errors.New("unknown_pin")
	ErrInstanceInUse   = errors.New("instance_in_use")
	ErrConfigWrongType = errors.New("config_wrong_type")

	// Generic / pass-through
	ErrUnsupported = errors.New("unsupported")
)

// services/hal/internal/devices/spislave/builder.go
package spislave

import (
	"sercomspi-go/drivers/sercomspi"
	"sercomspi-go/errcode"
	"sercomspi-go/services/hal/internal/consts"
	"sercomspi-go/services/hal/internal/halerr"
	"sercomspi-go/services/hal/internal/registry"
	"sercomspi-go/services/hal/internal/util"
	"sercomspi-go/types"
)

func init() {
	registry.RegisterBuilder(consts.TypeSERCOMSPISlave, builder{})
}

type builder struct{}

func (builder) Build(in registry.BuildInput) (registry.BuildOutput, error) {
	var p types.SPISlaveParams
	if err := util.DecodeJSON(in.ParamsJSON, &p); err != nil {
		return registry.BuildOutput{}, errcode.Wrap(errcode.InvalidParams, "decode", err)
	}
	n, pinout, cfg, err := ParseParams(p)
	if err != nil {
		return registry.BuildOutput{}, err
	}
	if in.Regs == nil {
		return registry.BuildOutput{}, errcode.Wrap(errcode.Unsupported, "registers", halerr.ErrNoAdaptor)
	}

	// Reject everything the driver would reject before claiming the unit.
	dev, err := sercomspi.New(in.Regs.Registers(), n, cfg)
	if err != nil {
		return registry.BuildOutput{}, err
	}
	if err := dev.CheckPinout(pinout); err != nil {
		return registry.BuildOutput{}, err
	}
	res := n.String()
	if in.Claim != nil {
		for _, r := range Resources(n, pinout) {
			if err := in.Claim(r); err != nil {
				return registry.BuildOutput{}, err
			}
		}
	}
	if err := dev.Configure(pinout); err != nil {
		_ = dev.Disable()
		return registry.BuildOutput{Resource: res}, err
	}
	return registry.BuildOutput{
		Adaptor:  newAdaptor(in.DeviceID, dev, pinout),
		Resource: res,
	}, nil
}

// Resources lists the exclusive hardware a device holds: the SERCOM unit
// followed by its four pins.
func Resources(n sercomspi.Instance, p sercomspi.Pinout) []string {
	return []string{n.String(), p.MOSI.String(), p.SCK.String(), p.SS.String(), p.MISO.String()}
}

// ParseParams turns bus params into driver inputs. Unknown pin names become
// NoPin so the driver reports them as an invalid selection without writing
// anything.
func ParseParams(p types.SPISlaveParams) (sercomspi.Instance, sercomspi.Pinout, sercomspi.Config, error) {
	cfg := sercomspi.DefaultConfig()
	if p.SERCOM < 0 || p.SERCOM >= sercomspi.NumInstances {
		return 0, sercomspi.Pinout{}, cfg, sercomspi.ErrUnsupportedInstance
	}
	v, ok := sercomspi.ParseVariant(p.Variant)
	if !ok {
		return 0, sercomspi.Pinout{}, cfg, errcode.Wrap(errcode.InvalidParams, "variant", halerr.ErrInvalidParams)
	}
	cfg.Variant = v
	if p.IRQPriority != nil {
		cfg.IRQPriority = *p.IRQPriority
	}
	cfg.SpinLimit = p.SpinLimit
	if err := cfg.Validate(); err != nil {
		return 0, sercomspi.Pinout{}, cfg, err
	}
	pin := func(s string) sercomspi.Pin {
		pp, _ := sercomspi.ParsePin(s)
		return pp
	}
	pinout := sercomspi.Pinout{
		MOSI: pin(p.MOSI),
		SCK:  pin(p.SCK),
		SS:   pin(p.SS),
		MISO: pin(p.MISO),
	}
	return sercomspi.Instance(p.SERCOM), pinout, cfg, nil
}

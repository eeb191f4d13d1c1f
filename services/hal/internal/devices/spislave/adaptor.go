// services/hal/internal/devices/spislave/adaptor.go
package spislave

import (
	"sercomspi-go/drivers/sercomspi"
	"sercomspi-go/services/hal/internal/consts"
	"sercomspi-go/services/hal/internal/halcore"
	"sercomspi-go/types"
)

type adaptor struct {
	id     string
	dev    *sercomspi.Device
	pinout sercomspi.Pinout
	info   types.SPISlaveInfo
}

func newAdaptor(id string, dev *sercomspi.Device, pinout sercomspi.Pinout) *adaptor {
	cfg := dev.Config()
	n := dev.Instance()
	info := types.SPISlaveInfo{
		SERCOM:      int(n),
		Variant:     cfg.Variant.String(),
		IRQ:         n.IRQ(),
		IRQPriority: cfg.IRQPriority,
	}
	if mux, err := sercomspi.ResolvePinout(n, pinout); err == nil {
		info.MOSI = route(mux[sercomspi.MOSI])
		info.SCK = route(mux[sercomspi.SCK])
		info.SS = route(mux[sercomspi.SS])
		info.MISO = route(mux[sercomspi.MISO])
	}
	return &adaptor{id: id, dev: dev, pinout: pinout, info: info}
}

func route(m sercomspi.MuxSetting) types.SPIPinRoute {
	return types.SPIPinRoute{Pin: m.Pin.String(), Function: m.Function.String(), Pad: m.Pad}
}

func (a *adaptor) ID() string { return a.id }

func (a *adaptor) Capabilities() []halcore.CapInfo {
	return []halcore.CapInfo{{
		Kind: consts.KindSPISlave,
		Info: types.Info{SchemaVersion: 1, Driver: "sercomspi", Detail: a.info},
	}}
}

func (a *adaptor) Healthy() bool { return a.dev.Armed() }

// Control supports:
//   - status  -> types.SPISlaveStatus
//   - rearm   -> runs bring-up again, then types.SPISlaveStatus
//   - disable -> types.OKReply
func (a *adaptor) Control(kind, method string, payload any) (any, error) {
	if kind != consts.KindSPISlave {
		return nil, halcore.ErrUnsupported
	}
	switch method {
	case consts.CtrlStatus:
		return statusOf(a.dev.Status()), nil
	case consts.CtrlRearm:
		if err := a.dev.Configure(a.pinout); err != nil {
			return nil, err
		}
		return statusOf(a.dev.Status()), nil
	case consts.CtrlDisable:
		if err := a.dev.Disable(); err != nil {
			return nil, err
		}
		return types.OKReply{OK: true}, nil
	default:
		return nil, halcore.ErrUnsupported
	}
}

func (a *adaptor) Close() error { return a.dev.Disable() }

func statusOf(st sercomspi.Status) types.SPISlaveStatus {
	return types.SPISlaveStatus{
		Armed:      st.Armed,
		BusClock:   st.BusClock,
		Enabled:    st.Enabled,
		Receiver:   st.Receiver,
		IRQEnabled: st.IRQEnabled,
		Mode:       st.Mode,
		Interrupts: st.Interrupts,
		Flags:      st.Flags,
		SyncBusy:   st.SyncBusy,
	}
}

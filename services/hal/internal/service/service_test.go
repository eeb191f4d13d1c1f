package service

import (
	"context"
	"testing"
	"time"

	"sercomspi-go/bus"
	"sercomspi-go/drivers/samd21"
	"sercomspi-go/drivers/samd21/regsim"
	"sercomspi-go/errcode"
	"sercomspi-go/services/hal/internal/consts"
	"sercomspi-go/services/hal/internal/halcore"
	"sercomspi-go/types"

	_ "sercomspi-go/services/hal/internal/devices/spislave"
)

// ---- helpers ----

func recvWithin[T any](t *testing.T, ch <-chan T, d time.Duration) (T, bool) {
	t.Helper()
	var zero T
	select {
	case v := <-ch:
		return v, true
	case <-time.After(d):
		return zero, false
	}
}

func startService(t *testing.T) (*bus.Connection, *regsim.Sim, context.CancelFunc) {
	t.Helper()
	b := bus.NewBus(16)
	conn := b.NewConnection("test")
	sim := regsim.New()
	s := New(conn, halcore.RegisterFunc(func() samd21.Registers { return sim }))

	ctx, cancel := context.WithCancel(context.Background())
	go s.Run(ctx)
	waitHALState(t, conn, "idle")
	return conn, sim, cancel
}

func waitHALState(t *testing.T, conn *bus.Connection, level string) types.HALState {
	t.Helper()
	sub := conn.Subscribe(bus.Topic{consts.TokHAL, consts.TokState})
	defer conn.Unsubscribe(sub)
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		msg, ok := recvWithin(t, sub.Channel(), 50*time.Millisecond)
		if !ok {
			continue
		}
		if st, _ := msg.Payload.(types.HALState); st.Level == level {
			return st
		}
	}
	t.Fatalf("timeout waiting for hal/state level=%q", level)
	return types.HALState{}
}

func waitCapLink(t *testing.T, sub *bus.Subscription, want types.Link) types.CapabilityState {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		msg, ok := recvWithin(t, sub.Channel(), 50*time.Millisecond)
		if !ok {
			continue
		}
		if st, _ := msg.Payload.(types.CapabilityState); st.Link == want {
			return st
		}
	}
	t.Fatalf("timeout waiting for link=%q", want)
	return types.CapabilityState{}
}

func publishConfig(conn *bus.Connection, cfg any) {
	conn.Publish(conn.NewMessage(bus.Topic{consts.TokConfig, consts.TokHAL}, cfg, false))
}

func control(t *testing.T, conn *bus.Connection, id int, method string) any {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	req := conn.NewMessage(bus.Topic{consts.TokHAL, consts.TokCapability, consts.KindSPISlave, id, consts.TokControl, method}, nil, false)
	reply, err := conn.RequestWait(ctx, req)
	if err != nil {
		t.Fatalf("%s: %v", method, err)
	}
	return reply.Payload
}

var featherDevice = types.HALDevice{
	ID:   "spi0",
	Type: consts.TypeSERCOMSPISlave,
	Params: types.SPISlaveParams{
		SERCOM: 0, Variant: "samd21g",
		MOSI: "PA08", SCK: "PA09", SS: "PA10", MISO: "PA11",
	},
}

// ---- tests ----

func TestServiceBringsUpSPISlave(t *testing.T) {
	conn, sim, cancel := startService(t)
	defer cancel()

	stSub := conn.Subscribe(bus.Topic{consts.TokHAL, consts.TokCapability, consts.KindSPISlave, 0, consts.TokState})
	defer conn.Unsubscribe(stSub)

	publishConfig(conn, types.HALConfig{Devices: []types.HALDevice{featherDevice}})
	waitHALState(t, conn, "ready")
	waitCapLink(t, stSub, types.LinkUp)

	if !sim.Armed(0) {
		t.Fatal("SERCOM0 not armed")
	}

	infoSub := conn.Subscribe(bus.Topic{consts.TokHAL, consts.TokCapability, consts.KindSPISlave, 0, consts.TokInfo})
	defer conn.Unsubscribe(infoSub)
	msg, ok := recvWithin(t, infoSub.Channel(), 200*time.Millisecond)
	if !ok {
		t.Fatal("no retained info")
	}
	if info := msg.Payload.(types.Info).Detail.(types.SPISlaveInfo); info.SS.Pin != "PA10" || info.Variant != "samd21g" {
		t.Fatalf("info = %+v", info)
	}

	if st, ok := control(t, conn, 0, consts.CtrlStatus).(types.SPISlaveStatus); !ok || !st.Armed || !st.IRQEnabled {
		t.Fatalf("status = %+v", st)
	}

	if r, ok := control(t, conn, 0, consts.CtrlDisable).(types.OKReply); !ok || !r.OK {
		t.Fatalf("disable reply = %+v", r)
	}
	waitCapLink(t, stSub, types.LinkDown)
	if sim.Armed(0) {
		t.Fatal("still armed after disable")
	}

	if st, ok := control(t, conn, 0, consts.CtrlRearm).(types.SPISlaveStatus); !ok || !st.Armed {
		t.Fatalf("rearm = %+v", st)
	}
	waitCapLink(t, stSub, types.LinkUp)

	if r, ok := control(t, conn, 0, "bogus").(types.ErrorReply); !ok || r.Error != "unsupported" {
		t.Fatalf("bogus reply = %+v", r)
	}
	if r, ok := control(t, conn, 9, consts.CtrlStatus).(types.ErrorReply); !ok || r.Error != "unknown_capability" {
		t.Fatalf("unknown cap reply = %+v", r)
	}
}

func TestServiceAcceptsJSONConfig(t *testing.T) {
	conn, sim, cancel := startService(t)
	defer cancel()

	publishConfig(conn, map[string]any{
		"devices": []any{map[string]any{
			"id": "slave", "type": "sercom_spi_slave",
			"params": map[string]any{"sercom": 1, "mosi": "PA16", "sck": "PA17", "ss": "PA18", "miso": "PA19"},
		}},
	})
	waitHALState(t, conn, "ready")
	if !sim.Armed(1) {
		t.Fatal("SERCOM1 not armed")
	}
}

func TestServiceReportsErrorCodes(t *testing.T) {
	tests := []struct {
		name string
		devs []types.HALDevice
		want errcode.Code
	}{
		{"bad pin", []types.HALDevice{{ID: "a", Type: consts.TypeSERCOMSPISlave,
			Params: types.SPISlaveParams{SERCOM: 0, MOSI: "PA12", SCK: "PA09", SS: "PA10", MISO: "PA11"}}}, errcode.InvalidPinSelection},
		{"instance", []types.HALDevice{{ID: "a", Type: consts.TypeSERCOMSPISlave,
			Params: types.SPISlaveParams{SERCOM: 6, MOSI: "PA08", SCK: "PA09", SS: "PA10", MISO: "PA11"}}}, errcode.UnsupportedInstance},
		{"unknown type", []types.HALDevice{{ID: "a", Type: "nope"}}, errcode.Unsupported},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn, sim, cancel := startService(t)
			defer cancel()
			publishConfig(conn, types.HALConfig{Devices: tt.devs})
			st := waitHALState(t, conn, "error")
			if st.Error != string(tt.want) {
				t.Fatalf("error = %q, want %q", st.Error, tt.want)
			}
			if len(sim.Writes()) != 0 {
				t.Fatal("registers written for a rejected device")
			}
		})
	}
}

func TestServiceRejectsSharedInstance(t *testing.T) {
	conn, sim, cancel := startService(t)
	defer cancel()

	second := types.HALDevice{ID: "spi0b", Type: consts.TypeSERCOMSPISlave,
		Params: types.SPISlaveParams{SERCOM: 0, MOSI: "PA04", SCK: "PA05", SS: "PA06", MISO: "PA07"}}
	publishConfig(conn, types.HALConfig{Devices: []types.HALDevice{featherDevice, second}})

	st := waitHALState(t, conn, "error")
	if st.Error != string(errcode.InstanceInUse) {
		t.Fatalf("error = %q", st.Error)
	}
	if !sim.Armed(0) {
		t.Fatal("first device lost")
	}
	if on, _ := sim.Pinmux(0, 4); on {
		t.Fatal("second device routed pins")
	}
}

func TestServiceRejectsSharedPins(t *testing.T) {
	conn, sim, cancel := startService(t)
	defer cancel()

	// SERCOM2 reaches PA08..PA11 through function D.
	second := types.HALDevice{ID: "spi2", Type: consts.TypeSERCOMSPISlave,
		Params: types.SPISlaveParams{SERCOM: 2, MOSI: "PA08", SCK: "PA09", SS: "PA10", MISO: "PA11"}}
	publishConfig(conn, types.HALConfig{Devices: []types.HALDevice{featherDevice, second}})

	st := waitHALState(t, conn, "error")
	if st.Error != string(errcode.InstanceInUse) {
		t.Fatalf("error = %q", st.Error)
	}
	if !sim.Armed(0) || sim.Armed(2) {
		t.Fatalf("armed: SERCOM0=%v SERCOM2=%v", sim.Armed(0), sim.Armed(2))
	}
	if on, fn := sim.Pinmux(0, 8); !on || fn != 2 {
		t.Fatalf("PA08 pinmux on=%v fn=%d, want function C", on, fn)
	}

	// Dropping the rejected device must leave the first one routed.
	publishConfig(conn, types.HALConfig{Devices: []types.HALDevice{featherDevice}})
	waitHALState(t, conn, "ready")
	if on, fn := sim.Pinmux(0, 8); !on || fn != 2 || !sim.Armed(0) {
		t.Fatalf("PA08 pinmux on=%v fn=%d armed=%v", on, fn, sim.Armed(0))
	}
}

func TestServiceRemovesDevices(t *testing.T) {
	conn, sim, cancel := startService(t)
	defer cancel()

	stSub := conn.Subscribe(bus.Topic{consts.TokHAL, consts.TokCapability, consts.KindSPISlave, "+", consts.TokState})
	defer conn.Unsubscribe(stSub)

	publishConfig(conn, types.HALConfig{Devices: []types.HALDevice{featherDevice}})
	waitCapLink(t, stSub, types.LinkUp)

	publishConfig(conn, types.HALConfig{})
	waitCapLink(t, stSub, types.LinkDown)
	if sim.Armed(0) {
		t.Fatal("removed device still armed")
	}
	if on, _ := sim.Pinmux(0, 8); on {
		t.Fatal("removed device kept its pins")
	}
}

func TestServiceWrongConfigType(t *testing.T) {
	conn, _, cancel := startService(t)
	defer cancel()
	publishConfig(conn, 42)
	if st := waitHALState(t, conn, "error"); st.Status != "config_wrong_type" {
		t.Fatalf("status = %q", st.Status)
	}
}

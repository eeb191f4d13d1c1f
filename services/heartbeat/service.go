package heartbeat

import (
	"context"
	"time"

	"sercomspi-go/bus"
	"sercomspi-go/errcode"
	"sercomspi-go/types"
	"sercomspi-go/x/conv"
)

var (
	topicConfigHeartbeat = bus.Topic{"config", "heartbeat"}
	topicState           = bus.Topic{"heartbeat", "state"}
)

// State is published retained on heartbeat/state after every tick.
type State struct {
	Capability int    `json:"capability"`
	Armed      bool   `json:"armed"`
	Rearms     int    `json:"rearms"`
	Error      string `json:"error,omitempty"`
	TS         int64  `json:"ts_ns"`
}

// Service polls the status of one spi_slave capability and, when enabled,
// re-arms it if the peripheral has fallen out of slave receive mode.
type Service struct {
	Interval   time.Duration
	Capability int
	Rearm      bool

	// Timeout bounds each control request. Defaults to Interval.
	Timeout time.Duration

	rearms int
}

func (s *Service) control(ctx context.Context, conn *bus.Connection, method string) (types.SPISlaveStatus, error) {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = s.Interval
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req := conn.NewMessage(bus.Topic{"hal", "capability", string(types.KindSPISlave), s.Capability, "control", method}, nil, false)
	reply, err := conn.RequestWait(ctx, req)
	if err != nil {
		return types.SPISlaveStatus{}, errcode.Wrap(errcode.Timeout, method, err)
	}
	switch p := reply.Payload.(type) {
	case types.SPISlaveStatus:
		return p, nil
	case types.ErrorReply:
		return types.SPISlaveStatus{}, errcode.Code(p.Error)
	}
	return types.SPISlaveStatus{}, errcode.InvalidPayload
}

func (s *Service) check(ctx context.Context, conn *bus.Connection) State {
	st := State{Capability: s.Capability}
	status, err := s.control(ctx, conn, "status")
	if err == nil && !status.Armed && s.Rearm {
		println("Warn: heartbeat: spi_slave", s.Capability, "not armed, flags", hex(status.Flags))
		if status, err = s.control(ctx, conn, "rearm"); err == nil {
			s.rearms++
		}
	}
	st.Armed = status.Armed
	st.Rearms = s.rearms
	if err != nil {
		st.Error = string(errcode.Of(err))
	}
	st.TS = time.Now().UnixNano()
	return st
}

func hex(v uint32) string {
	var buf [10]byte
	return string(conv.AppendHex32(append(buf[:0], "0x"...), v))
}

// applyConfig reads {"interval": seconds, "capability": id, "rearm": bool}.
// Unknown or mistyped keys are ignored.
func (s *Service) applyConfig(p any) bool {
	m, ok := p.(map[string]any)
	if !ok {
		return false
	}
	changed := false
	if v, ok := m["interval"].(float64); ok && v > 0 {
		s.Interval = time.Duration(v * float64(time.Second))
		changed = true
	}
	if v, ok := m["capability"].(float64); ok && v >= 0 {
		s.Capability = int(v)
	}
	if v, ok := m["rearm"].(bool); ok {
		s.Rearm = v
	}
	return changed
}

func (s *Service) serviceLoop(ctx context.Context, conn *bus.Connection) {
	cfgSub := conn.Subscribe(topicConfigHeartbeat)
	defer conn.Unsubscribe(cfgSub)

	if s.Interval <= 0 {
		s.Interval = time.Second
	}
	tick := time.NewTicker(s.Interval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			println("Info: heartbeat service stopping")
			return
		case <-tick.C:
			st := s.check(ctx, conn)
			conn.Publish(conn.NewMessage(topicState, st, true))
		case msg := <-cfgSub.Channel():
			if s.applyConfig(msg.Payload) {
				tick.Reset(s.Interval)
				println("Info: heartbeat interval set to", s.Interval.String())
			}
		}
	}
}

// Start the heartbeat service.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) error {
	go s.serviceLoop(ctx, conn)
	return nil
}

// services/hal/internal/service/service.go
package service

import (
	"context"
	"time"

	"sercomspi-go/bus"
	"sercomspi-go/errcode"
	"sercomspi-go/services/hal/internal/consts"
	"sercomspi-go/services/hal/internal/halcore"
	"sercomspi-go/services/hal/internal/halerr"
	"sercomspi-go/services/hal/internal/registry"
	"sercomspi-go/services/hal/internal/util"

	"sercomspi-go/types"
)

type devEntry struct {
	adaptor  halcore.Adaptor
	caps     map[string]int // kind -> numeric capability id
	resource string
	params   string // fingerprint of the params it was built from
	typ      string
}

type capKey struct {
	kind string
	id   int
}

type Service struct {
	conn *bus.Connection
	regs halcore.RegisterFactory

	devices   map[string]devEntry
	capToDev  map[capKey]string // (kind,id) -> devID
	nextCapID map[string]int
	claims    map[string]string // resource -> devID
}

var (
	topicConfigHAL = bus.Topic{consts.TokConfig, consts.TokHAL}
	topicCtrl      = bus.Topic{consts.TokHAL, consts.TokCapability, "+", "+", consts.TokControl, "+"}
)

func New(conn *bus.Connection, regs halcore.RegisterFactory) *Service {
	return &Service{
		conn:      conn,
		regs:      regs,
		devices:   map[string]devEntry{},
		capToDev:  map[capKey]string{},
		nextCapID: map[string]int{},
		claims:    map[string]string{},
	}
}

func (s *Service) Run(ctx context.Context) {
	cfgSub := s.conn.Subscribe(topicConfigHAL)
	ctrlSub := s.conn.Subscribe(topicCtrl)
	defer s.conn.Unsubscribe(cfgSub)
	defer s.conn.Unsubscribe(ctrlSub)

	s.publishState("idle", "awaiting_config", nil)

	for {
		select {
		case <-ctx.Done():
			for devID := range s.devices {
				s.removeDevice(devID)
			}
			s.publishState("stopped", "context_cancelled", nil)
			return

		case msg, ok := <-cfgSub.Channel():
			if !ok {
				return
			}
			cfg, err := decodeConfig(msg.Payload)
			if err != nil {
				s.publishState("error", "config_wrong_type", err)
				continue
			}
			if err := s.applyConfig(ctx, cfg); err != nil {
				s.publishState("error", "apply_config_failed", err)
				continue
			}
			s.publishState("ready", "configured", nil)

		case msg, ok := <-ctrlSub.Channel():
			if !ok {
				return
			}
			s.handleControl(msg)
		}
	}
}

// decodeConfig accepts the typed config or its JSON forms (raw bytes, string
// or the decoded map the config service publishes).
func decodeConfig(p any) (types.HALConfig, error) {
	switch v := p.(type) {
	case types.HALConfig:
		return v, nil
	case *types.HALConfig:
		if v != nil {
			return *v, nil
		}
	case nil:
	default:
		var cfg types.HALConfig
		if err := util.DecodeJSON(v, &cfg); err == nil {
			return cfg, nil
		}
	}
	return types.HALConfig{}, halerr.ErrConfigWrongType
}

// applyConfig builds new or changed devices and tears down removed ones.
// Every device is attempted; the first failure is returned.
func (s *Service) applyConfig(ctx context.Context, cfg types.HALConfig) error {
	seen := map[string]struct{}{}
	var first error
	fail := func(devID string, err error) {
		if first == nil {
			first = errcode.Wrap(errcode.Of(err), devID, err)
		}
	}

	for i := range cfg.Devices {
		d := &cfg.Devices[i]
		seen[d.ID] = struct{}{}

		fp := util.Fingerprint(d.Params)
		if ent, exists := s.devices[d.ID]; exists {
			if ent.typ == d.Type && ent.params == fp {
				continue
			}
			s.removeDevice(d.ID)
		}

		b, ok := registry.Lookup(d.Type)
		if !ok {
			fail(d.ID, errcode.Wrap(errcode.Unsupported, d.Type, halerr.ErrUnknownType))
			continue
		}

		devID := d.ID
		out, err := b.Build(registry.BuildInput{
			Ctx:        ctx,
			Regs:       s.regs,
			DeviceID:   devID,
			Type:       d.Type,
			ParamsJSON: d.Params,
			Claim:      func(res string) error { return s.claim(res, devID) },
		})
		if err != nil {
			s.releaseClaims(devID)
			fail(devID, err)
			continue
		}

		ad := out.Adaptor
		entry := devEntry{adaptor: ad, caps: map[string]int{}, resource: out.Resource, params: fp, typ: d.Type}
		link := types.LinkUp
		if !ad.Healthy() {
			link = types.LinkDegraded
		}
		for _, ci := range ad.Capabilities() {
			id := s.nextCapID[ci.Kind]
			s.nextCapID[ci.Kind]++

			entry.caps[ci.Kind] = id
			s.capToDev[capKey{kind: ci.Kind, id: id}] = devID

			s.pubRet(ci.Kind, id, consts.TokInfo, ci.Info)
			s.pubRet(ci.Kind, id, consts.TokState, capState(link, nil))
		}
		s.devices[devID] = entry
	}

	// Tidy-up devices not in config
	for devID := range s.devices {
		if _, ok := seen[devID]; !ok {
			s.removeDevice(devID)
		}
	}
	return first
}

func (s *Service) claim(res, devID string) error {
	if owner, ok := s.claims[res]; ok && owner != devID {
		return errcode.Wrap(errcode.InstanceInUse, res, halerr.ErrInstanceInUse)
	}
	s.claims[res] = devID
	return nil
}

func (s *Service) releaseClaims(devID string) {
	for res, owner := range s.claims {
		if owner == devID {
			delete(s.claims, res)
		}
	}
}

func (s *Service) removeDevice(devID string) {
	ent, ok := s.devices[devID]
	if !ok {
		return
	}
	var err error
	if ent.adaptor != nil {
		err = ent.adaptor.Close()
	}
	for kind, id := range ent.caps {
		s.pubRet(kind, id, consts.TokInfo, nil)
		s.pubRet(kind, id, consts.TokState, capState(types.LinkDown, err))
		delete(s.capToDev, capKey{kind: kind, id: id})
	}
	s.releaseClaims(devID)
	delete(s.devices, devID)
}

// ---- control plane ----

func (s *Service) handleControl(msg *bus.Message) {
	if len(msg.Topic) < 6 {
		return
	}
	kind, _ := msg.Topic[2].(string)
	idNum, ok := asInt(msg.Topic[3])
	if !ok || kind == "" {
		s.replyErr(msg, halerr.ErrInvalidCapAddr.Error())
		return
	}
	key := capKey{kind: kind, id: idNum}
	devID, ok := s.capToDev[key]
	if !ok {
		s.replyErr(msg, halerr.ErrUnknownCap.Error())
		return
	}
	ent := s.devices[devID]
	if ent.adaptor == nil {
		s.replyErr(msg, halerr.ErrNoAdaptor.Error())
		return
	}
	method, _ := msg.Topic[5].(string)

	res, err := ent.adaptor.Control(kind, method, msg.Payload)
	if err == halcore.ErrUnsupported {
		s.replyErr(msg, halerr.ErrUnsupported.Error())
		return
	}
	if err != nil {
		s.pubRet(kind, idNum, consts.TokState, capState(types.LinkDegraded, err))
		s.replyErr(msg, string(errcode.Of(err)))
		return
	}
	switch method {
	case consts.CtrlDisable:
		s.pubRet(kind, idNum, consts.TokState, capState(types.LinkDown, nil))
	case consts.CtrlRearm:
		s.pubRet(kind, idNum, consts.TokState, capState(types.LinkUp, nil))
	}
	s.conn.Reply(msg, res, false)
}

// ---- bus helpers & utils ----

func capState(link types.Link, err error) types.CapabilityState {
	st := types.CapabilityState{Link: link, TS: time.Now().UnixNano()}
	if err != nil {
		st.Error = string(errcode.Of(err))
	}
	return st
}

func (s *Service) publishState(level, status string, err error) {
	pl := types.HALState{Level: level, Status: status, TS: time.Now().UnixNano()}
	if err != nil {
		pl.Error = string(errcode.Of(err))
	}
	s.conn.Publish(s.conn.NewMessage(bus.Topic{consts.TokHAL, consts.TokState}, pl, true))
}

func (s *Service) replyErr(req *bus.Message, code string) {
	if len(req.ReplyTo) == 0 {
		return
	}
	if code == "" {
		code = string(errcode.Error)
	}
	s.conn.Reply(req, types.ErrorReply{OK: false, Error: code}, false)
}

func capTopic(kind string, id int, suffix string) bus.Topic {
	return bus.Topic{consts.TokHAL, consts.TokCapability, kind, id, suffix}
}

func (s *Service) pubRet(kind string, id int, suffix string, p any) {
	s.conn.Publish(s.conn.NewMessage(capTopic(kind, id, suffix), p, true))
}

func asInt(t any) (int, bool) {
	switch v := t.(type) {
	case int:
		return v, true
	case int8:
		return int(v), true
	case int16:
		return int(v), true
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case uint:
		return int(v), true
	case uint8:
		return int(v), true
	case uint16:
		return int(v), true
	case uint32:
		return int(v), true
	case uint64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

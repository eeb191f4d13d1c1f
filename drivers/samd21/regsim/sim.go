// Package regsim is an in-memory model of the SAM D21 registers touched by the
// SERCOM drivers. It implements samd21.Registers so drivers can be exercised
// on a host.
//
// The model is deliberately small, but it keeps the behaviours that make a
// bring-up sequence right or wrong: synchronisation latency, software reset,
// enable-protected fields, the RXEN erratum and APB clock gating.
package regsim

import (
	"sync"

	"sercomspi-go/drivers/samd21"
)

// DefaultLatency is the number of polls a synchronisation-busy flag stays set.
const DefaultLatency = 3

// apbcmaskReset is the power-on value of PM.APBCMASK: every SERCOM gated.
const apbcmaskReset = 0x0001_0000

// Write is one register store in program order.
type Write struct {
	Reg   samd21.Reg
	Value uint32
}

// Fault records an access to a SERCOM whose bus clock is gated.
type Fault struct {
	SERCOM int
	Reg    samd21.Reg
	Store  bool
}

type sercomState struct {
	syncSWRST  int
	syncENABLE int
	syncCTRLB  int
	resetting  bool

	rxDropped bool
	txData    byte
	received  []byte
}

// Sim is a simulated register file. It is safe for concurrent use.
type Sim struct {
	mu      sync.Mutex
	latency int

	mem    map[uintptr]uint32
	stuck  map[uintptr]uint32
	log    []Write
	faults []Fault

	sercom   [samd21.NumSERCOM]sercomState
	gclkBusy int
	gclk     map[uint32]uint32 // channel id -> CLKCTRL
	nvicEn   uint32
}

// Option tweaks a Sim at construction.
type Option func(*Sim)

// WithLatency sets how many polls a busy flag stays set. Zero makes every
// write take effect immediately.
func WithLatency(n int) Option {
	return func(s *Sim) {
		if n < 0 {
			n = 0
		}
		s.latency = n
	}
}

// WithBusClocks starts with the APB clock of every SERCOM enabled, as a
// board runtime usually leaves it.
func WithBusClocks() Option {
	return func(s *Sim) {
		s.mem[samd21.PM_APBCMASK.Addr] |= 0x3F << 2
	}
}

// New returns a simulator in power-on state.
func New(opts ...Option) *Sim {
	s := &Sim{
		latency: DefaultLatency,
		mem:     map[uintptr]uint32{samd21.PM_APBCMASK.Addr: apbcmaskReset},
		stuck:   map[uintptr]uint32{},
		gclk:    map[uint32]uint32{},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Stick forces mask to read as set in r forever. Used to model a peripheral
// whose synchronisation never completes.
func (s *Sim) Stick(r samd21.Reg, mask uint32) {
	s.mu.Lock()
	s.stuck[r.Addr] |= mask
	s.mu.Unlock()
}

func (s *Sim) clockedSERCOM(n int) bool {
	return s.mem[samd21.PM_APBCMASK.Addr]&samd21.APBCMaskSERCOM(n) != 0
}

// Load implements samd21.Registers.
func (s *Sim) Load(r samd21.Reg) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.load(r)
	return (v | s.stuck[r.Addr]) & widthMask(r.Size)
}

func (s *Sim) load(r samd21.Reg) uint32 {
	if n, off, ok := samd21.SERCOMIndex(r.Addr); ok {
		if !s.clockedSERCOM(n) {
			s.faults = append(s.faults, Fault{SERCOM: n, Reg: r})
			return 0
		}
		return s.loadSERCOM(n, off, r)
	}
	switch r.Addr {
	case samd21.GCLK_STATUS.Addr:
		var v uint32
		if s.gclkBusy > 0 {
			v = samd21.GCLK_STATUS_SYNCBUSY
			s.gclkBusy--
		}
		return v
	case samd21.NVIC_ISER.Addr, samd21.NVIC_ICER.Addr:
		return s.nvicEn
	}
	return s.mem[r.Addr]
}

func (s *Sim) loadSERCOM(n int, off uintptr, r samd21.Reg) uint32 {
	st := &s.sercom[n]
	spi := samd21.SERCOMSPI(n)
	var v uint32
	switch off {
	case spi.SYNCBUSY.Addr - spi.CTRLA.Addr:
		if st.syncSWRST > 0 {
			v |= samd21.SERCOM_SPI_SYNCBUSY_SWRST
		}
		if st.syncENABLE > 0 {
			v |= samd21.SERCOM_SPI_SYNCBUSY_ENABLE
		}
		if st.syncCTRLB > 0 {
			v |= samd21.SERCOM_SPI_SYNCBUSY_CTRLB
		}
	case spi.INTENCLR.Addr - spi.CTRLA.Addr:
		v = s.mem[spi.INTENSET.Addr]
	default:
		v = s.mem[r.Addr]
	}
	s.tick(n)
	return v
}

// tick advances SERCOMn by one poll.
func (s *Sim) tick(n int) {
	st := &s.sercom[n]
	if st.syncENABLE > 0 {
		st.syncENABLE--
	}
	if st.syncCTRLB > 0 {
		st.syncCTRLB--
	}
	if st.syncSWRST > 0 {
		st.syncSWRST--
		if st.syncSWRST == 0 {
			s.finishReset(n)
		}
	}
}

func (s *Sim) finishReset(n int) {
	spi := samd21.SERCOMSPI(n)
	for _, r := range []samd21.Reg{spi.CTRLA, spi.CTRLB, spi.INTENSET, spi.INTFLAG, spi.STATUS, spi.DATA} {
		delete(s.mem, r.Addr)
	}
	st := &s.sercom[n]
	received := st.received
	*st = sercomState{received: received}
}

// Store implements samd21.Registers.
func (s *Sim) Store(r samd21.Reg, v uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v &= widthMask(r.Size)
	s.log = append(s.log, Write{Reg: r, Value: v})

	if n, _, ok := samd21.SERCOMIndex(r.Addr); ok {
		if !s.clockedSERCOM(n) {
			s.faults = append(s.faults, Fault{SERCOM: n, Reg: r, Store: true})
			return
		}
		s.storeSERCOM(n, r, v)
		return
	}
	switch r.Addr {
	case samd21.GCLK_CLKCTRL.Addr:
		s.gclk[v&samd21.GCLK_CLKCTRL_ID_Msk] = v
		s.mem[r.Addr] = v
		s.gclkBusy = s.latency
	case samd21.NVIC_ISER.Addr:
		s.nvicEn |= v
	case samd21.NVIC_ICER.Addr:
		s.nvicEn &^= v
	default:
		s.mem[r.Addr] = v
	}
}

func (s *Sim) storeSERCOM(n int, r samd21.Reg, v uint32) {
	st := &s.sercom[n]
	spi := samd21.SERCOMSPI(n)
	switch r.Addr {
	case spi.CTRLA.Addr:
		if st.resetting {
			return
		}
		old := s.mem[r.Addr]
		if v&samd21.SERCOM_SPI_CTRLA_SWRST != 0 {
			s.mem[r.Addr] = old | samd21.SERCOM_SPI_CTRLA_SWRST
			st.resetting = true
			st.syncSWRST = s.latency
			if s.latency == 0 {
				s.finishReset(n)
			}
			return
		}
		wasOn := old&samd21.SERCOM_SPI_CTRLA_ENABLE != 0
		if wasOn {
			// Only ENABLE is writable while enabled.
			v = old&^samd21.SERCOM_SPI_CTRLA_ENABLE | v&samd21.SERCOM_SPI_CTRLA_ENABLE
		}
		s.mem[r.Addr] = v
		isOn := v&samd21.SERCOM_SPI_CTRLA_ENABLE != 0
		if wasOn != isOn {
			st.syncENABLE = s.latency
		}
		if !wasOn && isOn {
			// Erratum: RXEN written while disabled does not survive enable.
			if b := s.mem[spi.CTRLB.Addr]; b&samd21.SERCOM_SPI_CTRLB_RXEN != 0 {
				s.mem[spi.CTRLB.Addr] = b &^ samd21.SERCOM_SPI_CTRLB_RXEN
				st.rxDropped = true
			}
		}
	case spi.CTRLB.Addr:
		if s.mem[spi.CTRLA.Addr]&samd21.SERCOM_SPI_CTRLA_ENABLE != 0 {
			old := s.mem[r.Addr]
			s.mem[r.Addr] = old&^samd21.SERCOM_SPI_CTRLB_RXEN | v&samd21.SERCOM_SPI_CTRLB_RXEN
			st.syncCTRLB = s.latency
			return
		}
		s.mem[r.Addr] = v
	case spi.INTENSET.Addr:
		s.mem[spi.INTENSET.Addr] |= v
	case spi.INTENCLR.Addr:
		s.mem[spi.INTENSET.Addr] &^= v
	case spi.INTFLAG.Addr:
		s.mem[r.Addr] &^= v
	case spi.DATA.Addr:
		st.txData = byte(v)
	default:
		s.mem[r.Addr] = v
	}
}

func widthMask(size uint8) uint32 {
	switch size {
	case 1:
		return 0xFF
	case 2:
		return 0xFFFF
	default:
		return 0xFFFF_FFFF
	}
}

// ---- inspection ----

// Peek returns the stored value of r without advancing time.
func (s *Sim) Peek(r samd21.Reg) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.Addr == samd21.NVIC_ISER.Addr {
		return s.nvicEn
	}
	return s.mem[r.Addr]
}

// Writes returns a copy of every store since construction or ResetLog.
func (s *Sim) Writes() []Write {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Write(nil), s.log...)
}

// ResetLog clears the write log.
func (s *Sim) ResetLog() {
	s.mu.Lock()
	s.log = nil
	s.mu.Unlock()
}

// Faults returns accesses made to SERCOMs with a gated bus clock.
func (s *Sim) Faults() []Fault {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Fault(nil), s.faults...)
}

// Pinmux reports whether a pin has peripheral multiplexing enabled and the
// function code selected for it.
func (s *Sim) Pinmux(group, pin int) (enabled bool, fn uint8) {
	s.mu.Lock()
	defer s.mu.Unlock()
	enabled = s.mem[samd21.PORT_PINCFG(group, pin).Addr]&samd21.PORT_PINCFG_PMUXEN != 0
	pm := s.mem[samd21.PORT_PMUX(group, pin/2).Addr]
	if pin%2 == 0 {
		fn = uint8(pm & samd21.PORT_PMUX_PMUXE_Msk)
	} else {
		fn = uint8(pm&samd21.PORT_PMUX_PMUXO_Msk) >> samd21.PORT_PMUX_PMUXO_Pos
	}
	return
}

// GenericClock reports the generator feeding channel id and whether the
// channel is enabled.
func (s *Sim) GenericClock(id uint32) (gen uint32, enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.gclk[id]
	if !ok {
		return 0, false
	}
	return (v >> samd21.GCLK_CLKCTRL_GEN_Pos) & 0xF, v&samd21.GCLK_CLKCTRL_CLKEN != 0
}

// IRQEnabled reports whether irq is enabled in the NVIC.
func (s *Sim) IRQEnabled(irq int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nvicEn&(1<<uint(irq)) != 0
}

// IRQPriority returns the implemented priority bits of irq.
func (s *Sim) IRQPriority(irq int) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.mem[samd21.NVIC_IPR(irq).Addr]
	return (v >> samd21.NVICPriorityShift(irq)) & (1<<samd21.NVICPrioBits - 1)
}

// Armed reports whether SERCOMn is an enabled SPI slave with its receiver
// running and all five interrupt sources enabled.
func (s *Sim) Armed(n int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.armed(n)
}

func (s *Sim) armed(n int) bool {
	const all = samd21.SERCOM_SPI_INT_SSL | samd21.SERCOM_SPI_INT_RXC |
		samd21.SERCOM_SPI_INT_TXC | samd21.SERCOM_SPI_INT_ERROR | samd21.SERCOM_SPI_INT_DRE
	if !s.clockedSERCOM(n) || s.sercom[n].resetting {
		return false
	}
	spi := samd21.SERCOMSPI(n)
	a := s.mem[spi.CTRLA.Addr]
	mode := (a & samd21.SERCOM_SPI_CTRLA_MODE_Msk) >> samd21.SERCOM_SPI_CTRLA_MODE_Pos
	return a&samd21.SERCOM_SPI_CTRLA_ENABLE != 0 &&
		mode == samd21.SERCOM_SPI_CTRLA_MODE_SPI_SLAVE &&
		s.mem[spi.CTRLB.Addr]&samd21.SERCOM_SPI_CTRLB_RXEN != 0 &&
		s.mem[spi.INTENSET.Addr]&all == all
}

// ReceiverDropped reports whether SERCOMn lost an RXEN that was written
// before the peripheral was enabled.
func (s *Sim) ReceiverDropped(n int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sercom[n].rxDropped
}

// Received returns the bytes SERCOMn latched from a Master.
func (s *Sim) Received(n int) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.sercom[n].received...)
}

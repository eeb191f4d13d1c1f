// Package sercomspi brings a SAM D21 SERCOM up as an SPI slave.
//
// Bring-up validates the instance and every pin before touching hardware,
// then routes the pins and walks the peripheral through disable, reset,
// clock, control, interrupt, enable and receiver-enable, waiting on the
// synchronisation flags in between. Data transfer and the interrupt handler
// belong to the caller.
package sercomspi

import (
	"sync"

	"sercomspi-go/drivers/samd21"
)

// sharedMu guards the read-modify-writes of registers shared by every
// instance: PM.APBCMASK, PORT, NVIC priorities, and GCLK, which has a single
// CLKCTRL register and a single SYNCBUSY flag for all channels.
var sharedMu sync.Mutex

// Device is one SERCOM instance driven as an SPI slave.
type Device struct {
	mu   sync.Mutex
	regs samd21.Registers
	n    Instance
	cfg  Config
	spi  samd21.SERCOM

	routed   [numRoles]MuxSetting
	hasRoute bool
}

// New validates the instance against cfg and returns an unconfigured device.
// No register is accessed.
func New(regs samd21.Registers, n Instance, cfg Config) (*Device, error) {
	if regs == nil {
		return nil, ErrInvalidConfig
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if n >= NumInstances || !cfg.Variant.HasInstance(n) {
		return nil, ErrUnsupportedInstance
	}
	return &Device{
		regs: regs,
		n:    n,
		cfg:  cfg,
		spi:  samd21.SERCOMSPI(int(n)),
	}, nil
}

// Initialize is New followed by Configure.
func Initialize(regs samd21.Registers, n Instance, p Pinout, cfg Config) (*Device, error) {
	d, err := New(regs, n, cfg)
	if err != nil {
		return nil, err
	}
	if err := d.Configure(p); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Device) Instance() Instance { return d.n }
func (d *Device) Config() Config     { return d.cfg }

// Pinout returns the pins routed by the last successful Configure.
func (d *Device) Pinout() (Pinout, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.hasRoute {
		return Pinout{NoPin, NoPin, NoPin, NoPin}, false
	}
	return Pinout{
		MOSI: d.routed[MOSI].Pin,
		SCK:  d.routed[SCK].Pin,
		SS:   d.routed[SS].Pin,
		MISO: d.routed[MISO].Pin,
	}, true
}

// Configure routes p and arms the SERCOM as an SPI slave. On a validation
// error nothing has been written. Running it again on an armed device
// performs the full sequence again and ends in the same state.
func (d *Device) Configure(p Pinout) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	mux, err := d.resolve(p)
	if err != nil {
		return err
	}

	sharedMu.Lock()
	d.regs.Store(samd21.PM_APBCMASK, d.regs.Load(samd21.PM_APBCMASK)|samd21.APBCMaskSERCOM(int(d.n)))
	if d.hasRoute {
		d.release(mux[MOSI].Pin, mux[SCK].Pin, mux[SS].Pin, mux[MISO].Pin)
	}
	for _, m := range mux {
		d.route(m)
	}
	sharedMu.Unlock()
	d.routed, d.hasRoute = mux, true

	// Control fields are only writable while disabled.
	d.regs.Store(d.spi.CTRLA, d.regs.Load(d.spi.CTRLA)&^samd21.SERCOM_SPI_CTRLA_ENABLE)
	if err := d.waitSync(samd21.SERCOM_SPI_SYNCBUSY_ENABLE, StepDisable); err != nil {
		return err
	}

	d.regs.Store(d.spi.CTRLA, samd21.SERCOM_SPI_CTRLA_SWRST)
	if err := d.poll(StepReset, func() bool {
		return d.regs.Load(d.spi.CTRLA)&samd21.SERCOM_SPI_CTRLA_SWRST != 0 ||
			d.regs.Load(d.spi.SYNCBUSY)&samd21.SERCOM_SPI_SYNCBUSY_SWRST != 0
	}); err != nil {
		return err
	}

	sharedMu.Lock()
	d.setPriority(d.cfg.IRQPriority)
	sharedMu.Unlock()
	d.regs.Store(samd21.NVIC_ISER, 1<<uint(d.n.IRQ()))

	if err := d.enableCoreClock(); err != nil {
		return err
	}

	d.regs.Store(d.spi.CTRLA, SlaveConfig.CTRLA())
	d.regs.Store(d.spi.CTRLB, SlaveConfig.CTRLB())
	d.regs.Store(d.spi.INTENSET, SlaveConfig.Interrupts)

	d.regs.Store(d.spi.CTRLA, d.regs.Load(d.spi.CTRLA)|samd21.SERCOM_SPI_CTRLA_ENABLE)
	if err := d.waitSync(samd21.SERCOM_SPI_SYNCBUSY_ENABLE, StepEnable); err != nil {
		return err
	}

	// RXEN written before ENABLE is lost; it must follow the enable sync.
	d.regs.Store(d.spi.CTRLB, d.regs.Load(d.spi.CTRLB)|samd21.SERCOM_SPI_CTRLB_RXEN)
	return d.waitSync(samd21.SERCOM_SPI_SYNCBUSY_CTRLB, StepReceiver)
}

// CheckPinout reports the error Configure would return for p before
// touching any register.
func (d *Device) CheckPinout(p Pinout) error {
	_, err := d.resolve(p)
	return err
}

func (d *Device) resolve(p Pinout) ([numRoles]MuxSetting, error) {
	mux, err := ResolvePinout(d.n, p)
	if err != nil {
		return mux, err
	}
	for _, m := range mux {
		if !d.cfg.Variant.HasPin(m.Pin) {
			return mux, &PinError{Instance: d.n, Role: m.Role, Pin: m.Pin, Absent: true}
		}
	}
	return mux, nil
}

// route enables the peripheral multiplexer on one pin and selects its
// function in the even or odd half of the shared PMUX register.
func (d *Device) route(m MuxSetting) {
	group, idx := int(m.Port), int(m.Index)
	cfg := samd21.PORT_PINCFG(group, idx)
	d.regs.Store(cfg, d.regs.Load(cfg)|samd21.PORT_PINCFG_PMUXEN)

	pmux := samd21.PORT_PMUX(group, int(m.Register))
	v := d.regs.Load(pmux)
	if m.Odd {
		v = v&^samd21.PORT_PMUX_PMUXO_Msk | uint32(m.Function)<<samd21.PORT_PMUX_PMUXO_Pos
	} else {
		v = v&^samd21.PORT_PMUX_PMUXE_Msk | uint32(m.Function)
	}
	d.regs.Store(pmux, v)
}

// release hands previously routed pins that are not in keep back to GPIO.
func (d *Device) release(keep ...Pin) {
outer:
	for _, old := range d.routed {
		for _, k := range keep {
			if k == old.Pin {
				continue outer
			}
		}
		cfg := samd21.PORT_PINCFG(int(old.Port), int(old.Index))
		d.regs.Store(cfg, d.regs.Load(cfg)&^samd21.PORT_PINCFG_PMUXEN)
	}
}

func (d *Device) setPriority(prio uint8) {
	irq := d.n.IRQ()
	ipr := samd21.NVIC_IPR(irq)
	shift := samd21.NVICPriorityShift(irq)
	v := d.regs.Load(ipr)
	v = v&^(uint32(MaxIRQPriority)<<shift) | uint32(prio&MaxIRQPriority)<<shift
	d.regs.Store(ipr, v)
}

func (d *Device) enableCoreClock() error {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	d.regs.Store(samd21.GCLK_CLKCTRL,
		(samd21.GCM_SERCOM0_CORE+uint32(d.n))&samd21.GCLK_CLKCTRL_ID_Msk|
			samd21.GCLK_GEN0<<samd21.GCLK_CLKCTRL_GEN_Pos|
			samd21.GCLK_CLKCTRL_CLKEN)
	return d.poll(StepClock, func() bool {
		return d.regs.Load(samd21.GCLK_STATUS)&samd21.GCLK_STATUS_SYNCBUSY != 0
	})
}

func (d *Device) waitSync(mask uint32, step Step) error {
	return d.poll(step, func() bool {
		return d.regs.Load(d.spi.SYNCBUSY)&mask != 0
	})
}

// poll spins while busy reports true, giving up after Config.SpinLimit
// polls when a limit is set.
func (d *Device) poll(step Step, busy func() bool) error {
	for n := 1; busy(); n++ {
		if d.cfg.SpinLimit > 0 && n >= d.cfg.SpinLimit {
			return &SyncError{Instance: d.n, Step: step}
		}
	}
	return nil
}

// Status is a register snapshot of the instance.
type Status struct {
	Instance   Instance
	BusClock   bool
	Enabled    bool
	Receiver   bool
	Mode       uint8
	Interrupts uint32 // INTENSET
	Flags      uint32 // INTFLAG
	SyncBusy   uint32
	IRQEnabled bool
	Armed      bool
}

// Status reads the instance registers. A SERCOM with its bus clock gated is
// reported as such without touching its registers.
func (d *Device) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status()
}

func (d *Device) status() Status {
	st := Status{Instance: d.n}
	st.IRQEnabled = d.regs.Load(samd21.NVIC_ISER)&(1<<uint(d.n.IRQ())) != 0
	st.BusClock = d.regs.Load(samd21.PM_APBCMASK)&samd21.APBCMaskSERCOM(int(d.n)) != 0
	if !st.BusClock {
		return st
	}
	a := d.regs.Load(d.spi.CTRLA)
	b := d.regs.Load(d.spi.CTRLB)
	st.Enabled = a&samd21.SERCOM_SPI_CTRLA_ENABLE != 0
	st.Mode = uint8((a & samd21.SERCOM_SPI_CTRLA_MODE_Msk) >> samd21.SERCOM_SPI_CTRLA_MODE_Pos)
	st.Receiver = b&samd21.SERCOM_SPI_CTRLB_RXEN != 0
	st.Interrupts = d.regs.Load(d.spi.INTENSET)
	st.Flags = d.regs.Load(d.spi.INTFLAG)
	st.SyncBusy = d.regs.Load(d.spi.SYNCBUSY)
	st.Armed = st.Enabled && st.Receiver &&
		st.Mode == samd21.SERCOM_SPI_CTRLA_MODE_SPI_SLAVE &&
		st.Interrupts&SlaveConfig.Interrupts == SlaveConfig.Interrupts
	return st
}

// Armed reports whether the instance is enabled in slave mode with its
// receiver and every slave interrupt source on.
func (d *Device) Armed() bool { return d.Status().Armed }

// Disable stops the peripheral, masks its interrupts and returns the routed
// pins to GPIO. The generic clock is left running.
func (d *Device) Disable() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var err error
	d.regs.Store(samd21.NVIC_ICER, 1<<uint(d.n.IRQ()))
	if d.regs.Load(samd21.PM_APBCMASK)&samd21.APBCMaskSERCOM(int(d.n)) != 0 {
		d.regs.Store(d.spi.INTENCLR, SlaveConfig.Interrupts)
		d.regs.Store(d.spi.CTRLA, d.regs.Load(d.spi.CTRLA)&^samd21.SERCOM_SPI_CTRLA_ENABLE)
		err = d.waitSync(samd21.SERCOM_SPI_SYNCBUSY_ENABLE, StepDisable)
	}
	// Pins go back to GPIO even if the enable flag did not settle.
	if d.hasRoute {
		sharedMu.Lock()
		d.release()
		sharedMu.Unlock()
		d.hasRoute = false
	}
	return err
}

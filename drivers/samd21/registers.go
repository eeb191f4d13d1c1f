// Package samd21 describes the slice of the SAM D21 memory map needed to bring
// up a SERCOM, and the register capability the drivers are written against.
//
// Addresses and bit positions follow the SAM D21 family datasheet
// (Atmel-42181). Only the registers touched by drivers in this module are
// listed.
package samd21

// Reg names one memory-mapped register. Size is the access width in bytes
// (1, 2 or 4); several SAM D21 registers must be accessed at their native
// width.
type Reg struct {
	Addr uintptr
	Size uint8
}

func reg8(a uintptr) Reg  { return Reg{Addr: a, Size: 1} }
func reg16(a uintptr) Reg { return Reg{Addr: a, Size: 2} }
func reg32(a uintptr) Reg { return Reg{Addr: a, Size: 4} }

// Registers is the hardware register capability. On the target it is backed
// by MMIO; on a host it is backed by a simulated register file.
//
// Implementations only move bits. Read-modify-write and busy-wait polling are
// done by callers.
type Registers interface {
	Load(r Reg) uint32
	Store(r Reg, v uint32)
}

// ---- Power manager ----

const pmBase uintptr = 0x4000_0400

// PM_APBCMASK gates the APB clock of the SERCOMs (among others).
var PM_APBCMASK = reg32(pmBase + 0x20)

// APBCMaskSERCOM returns the APBCMASK bit for SERCOMn.
func APBCMaskSERCOM(n int) uint32 { return 1 << (2 + uint(n)) }

// ---- Generic clock controller ----

const gclkBase uintptr = 0x4000_0C00

var (
	GCLK_STATUS  = reg8(gclkBase + 0x01)
	GCLK_CLKCTRL = reg16(gclkBase + 0x02)
)

const (
	GCLK_STATUS_SYNCBUSY = 1 << 7

	GCLK_CLKCTRL_ID_Msk  = 0x3F
	GCLK_CLKCTRL_GEN_Pos = 8
	GCLK_CLKCTRL_CLKEN   = 1 << 14

	GCLK_GEN0 = 0

	// GCM_SERCOM0_CORE is the generic clock channel of SERCOM0; SERCOMn uses
	// GCM_SERCOM0_CORE+n.
	GCM_SERCOM0_CORE = 0x14
)

// ---- PORT ----

const (
	portBase   uintptr = 0x4100_4400
	portStride uintptr = 0x80
)

// PORT_PMUX returns the multiplexer register n of a port group. Each PMUX
// register holds the function of two pins: 2n in PMUXE, 2n+1 in PMUXO.
func PORT_PMUX(group, n int) Reg {
	return reg8(portBase + uintptr(group)*portStride + 0x30 + uintptr(n))
}

// PORT_PINCFG returns the configuration register of one pin.
func PORT_PINCFG(group, pin int) Reg {
	return reg8(portBase + uintptr(group)*portStride + 0x40 + uintptr(pin))
}

const (
	PORT_PINCFG_PMUXEN = 1 << 0

	PORT_PMUX_PMUXE_Msk = 0x0F
	PORT_PMUX_PMUXO_Pos = 4
	PORT_PMUX_PMUXO_Msk = 0xF0
)

// ---- SERCOM (SPI view) ----

const (
	sercomBase   uintptr = 0x4200_0800
	sercomStride uintptr = 0x400

	// NumSERCOM is the largest SERCOM count of the family (SAMD21J).
	NumSERCOM = 6
)

// SERCOM is the SPI register block of one SERCOM instance.
type SERCOM struct {
	CTRLA    Reg
	CTRLB    Reg
	INTENCLR Reg
	INTENSET Reg
	INTFLAG  Reg
	STATUS   Reg
	SYNCBUSY Reg
	DATA     Reg
}

// SERCOMSPI returns the SPI register block of SERCOMn.
func SERCOMSPI(n int) SERCOM {
	b := sercomBase + uintptr(n)*sercomStride
	return SERCOM{
		CTRLA:    reg32(b + 0x00),
		CTRLB:    reg32(b + 0x04),
		INTENCLR: reg8(b + 0x14),
		INTENSET: reg8(b + 0x16),
		INTFLAG:  reg8(b + 0x18),
		STATUS:   reg16(b + 0x1A),
		SYNCBUSY: reg32(b + 0x1C),
		DATA:     reg32(b + 0x28),
	}
}

// SERCOMIndex maps an address inside a SERCOM block back to the instance and
// the register offset. ok is false for addresses outside every SERCOM.
func SERCOMIndex(addr uintptr) (n int, off uintptr, ok bool) {
	if addr < sercomBase || addr >= sercomBase+NumSERCOM*sercomStride {
		return 0, 0, false
	}
	d := addr - sercomBase
	return int(d / sercomStride), d % sercomStride, true
}

// CTRLA
const (
	SERCOM_SPI_CTRLA_SWRST    = 1 << 0
	SERCOM_SPI_CTRLA_ENABLE   = 1 << 1
	SERCOM_SPI_CTRLA_MODE_Pos = 2
	SERCOM_SPI_CTRLA_MODE_Msk = 0x7 << SERCOM_SPI_CTRLA_MODE_Pos
	SERCOM_SPI_CTRLA_RUNSTDBY = 1 << 7
	SERCOM_SPI_CTRLA_IBON     = 1 << 8
	SERCOM_SPI_CTRLA_DOPO_Pos = 16
	SERCOM_SPI_CTRLA_DOPO_Msk = 0x3 << SERCOM_SPI_CTRLA_DOPO_Pos
	SERCOM_SPI_CTRLA_DIPO_Pos = 20
	SERCOM_SPI_CTRLA_DIPO_Msk = 0x3 << SERCOM_SPI_CTRLA_DIPO_Pos
	SERCOM_SPI_CTRLA_FORM_Pos = 24
	SERCOM_SPI_CTRLA_FORM_Msk = 0xF << SERCOM_SPI_CTRLA_FORM_Pos
	SERCOM_SPI_CTRLA_CPHA     = 1 << 28
	SERCOM_SPI_CTRLA_CPOL     = 1 << 29
	SERCOM_SPI_CTRLA_DORD     = 1 << 30

	SERCOM_SPI_CTRLA_MODE_SPI_SLAVE  = 0x2
	SERCOM_SPI_CTRLA_MODE_SPI_MASTER = 0x3
)

// CTRLB
const (
	SERCOM_SPI_CTRLB_CHSIZE_Msk = 0x7
	SERCOM_SPI_CTRLB_PLOADEN    = 1 << 6
	SERCOM_SPI_CTRLB_SSDE       = 1 << 9
	SERCOM_SPI_CTRLB_MSSEN      = 1 << 13
	SERCOM_SPI_CTRLB_RXEN       = 1 << 17
)

// INTENSET / INTENCLR / INTFLAG
const (
	SERCOM_SPI_INT_DRE   = 1 << 0
	SERCOM_SPI_INT_TXC   = 1 << 1
	SERCOM_SPI_INT_RXC   = 1 << 2
	SERCOM_SPI_INT_SSL   = 1 << 3
	SERCOM_SPI_INT_ERROR = 1 << 7
)

// SYNCBUSY
const (
	SERCOM_SPI_SYNCBUSY_SWRST  = 1 << 0
	SERCOM_SPI_SYNCBUSY_ENABLE = 1 << 1
	SERCOM_SPI_SYNCBUSY_CTRLB  = 1 << 2
)

// ---- NVIC ----

const (
	nvicISER uintptr = 0xE000_E100
	nvicICER uintptr = 0xE000_E180
	nvicIPR  uintptr = 0xE000_E400

	// NVICPrioBits is the number of implemented priority bits on Cortex-M0+.
	NVICPrioBits = 2

	// IRQ_SERCOM0 is the interrupt number of SERCOM0; SERCOMn uses
	// IRQ_SERCOM0+n.
	IRQ_SERCOM0 = 9
)

var (
	NVIC_ISER = reg32(nvicISER)
	NVIC_ICER = reg32(nvicICER)
)

// NVIC_IPR returns the priority register holding irq. Cortex-M0+ only
// supports word access to the IPR registers.
func NVIC_IPR(irq int) Reg { return reg32(nvicIPR + uintptr(irq/4)*4) }

// NVICPriorityShift is the bit position of irq's priority inside NVIC_IPR.
func NVICPriorityShift(irq int) uint {
	return uint(irq%4)*8 + (8 - NVICPrioBits)
}

package sercomspi

import (
	"sercomspi-go/drivers/samd21"
	"sercomspi-go/x/mathx"
)

// DefaultIRQPriority is the NVIC priority given to the SERCOM line.
const DefaultIRQPriority = 2

// MaxIRQPriority is the lowest urgency the Cortex-M0+ can express.
const MaxIRQPriority = 1<<samd21.NVICPrioBits - 1

// Config tunes bring-up. The SPI register values themselves are fixed, see
// SlaveConfig.
type Config struct {
	// Variant restricts instances and pins to those bonded out on the part.
	Variant Variant
	// IRQPriority is written to the NVIC before the line is enabled.
	IRQPriority uint8
	// SpinLimit bounds every synchronisation poll. 0 waits forever.
	SpinLimit int
}

// DefaultConfig waits without bound, like the reference bring-up.
func DefaultConfig() Config {
	return Config{
		Variant:     VariantAny,
		IRQPriority: DefaultIRQPriority,
	}
}

// Validate checks fields independent of the instance and pins.
func (c Config) Validate() error {
	if c.Variant > SAMD21J {
		return ErrInvalidConfig
	}
	if !mathx.Between(c.IRQPriority, 0, MaxIRQPriority) {
		return ErrInvalidConfig
	}
	if c.SpinLimit < 0 {
		return ErrInvalidConfig
	}
	return nil
}

// PeripheralConfig is the SPI personality programmed into CTRLA/CTRLB.
type PeripheralConfig struct {
	LSBFirst   bool  // DORD
	CPOL       bool  // clock idles high
	CPHA       bool  // sample on trailing edge
	Form       uint8 // frame format, 0 = SPI frame
	DIPO       uint8 // data-in pad
	DOPO       uint8 // data-out pinout
	Mode       uint8 // 2 = slave
	IBON       bool  // buffer overflow reported immediately
	RunStandby bool

	SSDE   bool  // slave select low detect
	CHSIZE uint8 // 0 = 8-bit
	RXEN   bool

	Interrupts uint32 // INTENSET mask
}

// SlaveConfig is the only personality this driver programs: SPI mode 0,
// MSB first, 8-bit, MOSI on PAD0, SCK on PAD1, SS on PAD2, MISO on PAD3.
var SlaveConfig = PeripheralConfig{
	DIPO:       0,
	DOPO:       2,
	Mode:       samd21.SERCOM_SPI_CTRLA_MODE_SPI_SLAVE,
	IBON:       true,
	RunStandby: true,
	SSDE:       true,
	RXEN:       true,
	Interrupts: samd21.SERCOM_SPI_INT_SSL | samd21.SERCOM_SPI_INT_RXC |
		samd21.SERCOM_SPI_INT_TXC | samd21.SERCOM_SPI_INT_ERROR | samd21.SERCOM_SPI_INT_DRE,
}

// CTRLA encodes the configuration with ENABLE and SWRST clear.
func (p PeripheralConfig) CTRLA() uint32 {
	v := uint32(p.Mode)<<samd21.SERCOM_SPI_CTRLA_MODE_Pos&samd21.SERCOM_SPI_CTRLA_MODE_Msk |
		uint32(p.DOPO)<<samd21.SERCOM_SPI_CTRLA_DOPO_Pos&samd21.SERCOM_SPI_CTRLA_DOPO_Msk |
		uint32(p.DIPO)<<samd21.SERCOM_SPI_CTRLA_DIPO_Pos&samd21.SERCOM_SPI_CTRLA_DIPO_Msk |
		uint32(p.Form)<<samd21.SERCOM_SPI_CTRLA_FORM_Pos&samd21.SERCOM_SPI_CTRLA_FORM_Msk
	if p.LSBFirst {
		v |= samd21.SERCOM_SPI_CTRLA_DORD
	}
	if p.CPOL {
		v |= samd21.SERCOM_SPI_CTRLA_CPOL
	}
	if p.CPHA {
		v |= samd21.SERCOM_SPI_CTRLA_CPHA
	}
	if p.IBON {
		v |= samd21.SERCOM_SPI_CTRLA_IBON
	}
	if p.RunStandby {
		v |= samd21.SERCOM_SPI_CTRLA_RUNSTDBY
	}
	return v
}

// CTRLB encodes the configuration without RXEN. The receiver is enabled in a
// separate write once the peripheral is running.
func (p PeripheralConfig) CTRLB() uint32 {
	v := uint32(p.CHSIZE) & samd21.SERCOM_SPI_CTRLB_CHSIZE_Msk
	if p.SSDE {
		v |= samd21.SERCOM_SPI_CTRLB_SSDE
	}
	return v
}

// Step names a synchronisation wait of the bring-up sequence.
type Step string

const (
	StepDisable  Step = "disable"
	StepReset    Step = "reset"
	StepClock    Step = "clock"
	StepEnable   Step = "enable"
	StepReceiver Step = "receiver"
)

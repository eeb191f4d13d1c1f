package types

// Kind names a capability family under hal/capability/<kind>/<id>.
type Kind string

const KindSPISlave Kind = "spi_slave"

// SPISlaveParams configures a "sercom_spi_slave" HAL device. Pins are named
// like "PA08".
type SPISlaveParams struct {
	SERCOM      int    `json:"sercom"`
	Variant     string `json:"variant,omitempty"` // "samd21e" | "samd21g" | "samd21j"; empty = any
	MOSI        string `json:"mosi"`
	SCK         string `json:"sck"`
	SS          string `json:"ss"`
	MISO        string `json:"miso"`
	IRQPriority *uint8 `json:"irq_priority,omitempty"` // 0..3, default 2
	SpinLimit   int    `json:"spin_limit,omitempty"`   // 0 = wait forever
}

// SPIPinRoute is one routed pin as published in SPISlaveInfo.
type SPIPinRoute struct {
	Pin      string `json:"pin"`
	Function string `json:"function"` // "C" | "D"
	Pad      uint8  `json:"pad"`
}

// SPISlaveInfo is Info.Detail for a spi_slave capability.
type SPISlaveInfo struct {
	SERCOM      int         `json:"sercom"`
	Variant     string      `json:"variant"`
	IRQ         int         `json:"irq"`
	IRQPriority uint8       `json:"irq_priority"`
	MOSI        SPIPinRoute `json:"mosi"`
	SCK         SPIPinRoute `json:"sck"`
	SS          SPIPinRoute `json:"ss"`
	MISO        SPIPinRoute `json:"miso"`
}

// SPISlaveStatus is the reply to the "status" and "rearm" controls.
type SPISlaveStatus struct {
	Armed      bool   `json:"armed"`
	BusClock   bool   `json:"bus_clock"`
	Enabled    bool   `json:"enabled"`
	Receiver   bool   `json:"receiver"`
	IRQEnabled bool   `json:"irq_enabled"`
	Mode       uint8  `json:"mode"`
	Interrupts uint32 `json:"intenset"`
	Flags      uint32 `json:"intflag"`
	SyncBusy   uint32 `json:"syncbusy"`
}

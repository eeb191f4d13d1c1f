package config

// -----------------------------------------------------------------------------
// Embedded configuration
//
// Key: board ID (same value placed in ctx with WithDevice)
// Val: raw JSON bytes for that board
// -----------------------------------------------------------------------------

// Feather M0 (SAMD21G18A): SERCOM0 slave on PA08..PA11.
const cfgFeatherM0 = `{
  "hal": {
    "devices": [
      {
        "id": "spi_slave0",
        "type": "sercom_spi_slave",
        "params": {
          "sercom": 0,
          "variant": "samd21g",
          "mosi": "PA08",
          "sck": "PA09",
          "ss": "PA10",
          "miso": "PA11",
          "irq_priority": 2
        }
      }
    ]
  }
}`

var embeddedConfigs = map[string][]byte{
	"feather_m0": []byte(cfgFeatherM0),
}

package sercomspi

import "strings"

// Port is a PORT group.
type Port uint8

const (
	PortA Port = iota
	PortB
)

func (p Port) String() string {
	switch p {
	case PortA:
		return "A"
	case PortB:
		return "B"
	default:
		return "?"
	}
}

// Pin is a physical pin: port group in bit 5, index within the group in bits
// 0-4. It is wider than any candidate set, so every pin choice supplied by a
// caller is validated against the route table.
type Pin uint8

// NoPin is never a legal route.
const NoPin Pin = 0xFF

func MakePin(port Port, index uint8) Pin { return Pin(uint8(port)<<5 | index&0x1F) }

func (p Pin) Port() Port   { return Port(p >> 5 & 0x1) }
func (p Pin) Index() uint8 { return uint8(p) & 0x1F }
func (p Pin) Valid() bool  { return p < 64 }

func (p Pin) String() string {
	if !p.Valid() {
		return "NoPin"
	}
	i := p.Index()
	return "P" + p.Port().String() + string(rune('0'+i/10)) + string(rune('0'+i%10))
}

// ParsePin accepts names like "PA08", "pa8" or "PB31".
func ParsePin(s string) (Pin, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if len(s) < 3 || len(s) > 4 || s[0] != 'P' {
		return NoPin, false
	}
	var port Port
	switch s[1] {
	case 'A':
		port = PortA
	case 'B':
		port = PortB
	default:
		return NoPin, false
	}
	n := 0
	for _, c := range s[2:] {
		if c < '0' || c > '9' {
			return NoPin, false
		}
		n = n*10 + int(c-'0')
	}
	if n > 31 {
		return NoPin, false
	}
	return MakePin(port, uint8(n)), true
}

// Port A
const (
	PA00 Pin = iota
	PA01
	PA02
	PA03
	PA04
	PA05
	PA06
	PA07
	PA08
	PA09
	PA10
	PA11
	PA12
	PA13
	PA14
	PA15
	PA16
	PA17
	PA18
	PA19
	PA20
	PA21
	PA22
	PA23
	PA24
	PA25
	PA26
	PA27
	PA28
	PA29
	PA30
	PA31
)

// Port B
const (
	PB00 Pin = iota + 32
	PB01
	PB02
	PB03
	PB04
	PB05
	PB06
	PB07
	PB08
	PB09
	PB10
	PB11
	PB12
	PB13
	PB14
	PB15
	PB16
	PB17
	PB18
	PB19
	PB20
	PB21
	PB22
	PB23
	PB24
	PB25
	PB26
	PB27
	PB28
	PB29
	PB30
	PB31
)

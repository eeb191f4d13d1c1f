package sercomspi

import (
	"golang.org/x/exp/slices"

	"sercomspi-go/drivers/samd21"
)

// Instance selects SERCOM0..SERCOM5.
type Instance uint8

// NumInstances is the SERCOM count of the largest family member.
const NumInstances = samd21.NumSERCOM

func (n Instance) String() string {
	if n >= 10 {
		return "SERCOM?"
	}
	return "SERCOM" + string(rune('0'+n))
}

// IRQ is the NVIC line of the instance.
func (n Instance) IRQ() int { return samd21.IRQ_SERCOM0 + int(n) }

// Role is a logical SPI signal. The value is also the SERCOM pad the signal
// must arrive on for the fixed slave pad layout (DIPO=0, DOPO=2).
type Role uint8

const (
	MOSI Role = iota // PAD0, data in
	SCK              // PAD1
	SS               // PAD2
	MISO             // PAD3, data out
	numRoles
)

var roleNames = [numRoles]string{"MOSI", "SCK", "SS", "MISO"}

func (r Role) String() string {
	if r >= numRoles {
		return "Role?"
	}
	return roleNames[r]
}

// Roles lists every role in pad order.
func Roles() []Role { return []Role{MOSI, SCK, SS, MISO} }

// Function is a PORT peripheral function (PMUXE/PMUXO value).
type Function uint8

const (
	FunctionA Function = iota
	FunctionB
	FunctionC // SERCOM
	FunctionD // SERCOM-ALT
	FunctionE
	FunctionF
	FunctionG
	FunctionH
)

func (f Function) String() string {
	if f > FunctionH {
		return "?"
	}
	return string(rune('A' + f))
}

// MuxSetting is what must be written to the PORT to route one pin.
type MuxSetting struct {
	Pin      Pin
	Role     Role
	Port     Port
	Index    uint8 // pin index within the port group; selects PINCFG
	Register uint8 // PMUX register, Index/2
	Odd      bool  // PMUXO when set, PMUXE otherwise
	Function Function
	Pad      uint8
}

type candidate struct {
	pin Pin
	fn  Function
}

// routes[instance][role] lists every pin that can carry role for instance
// and the function code that connects it (SAM D21 datasheet, I/O
// multiplexing table).
var routes = [NumInstances][numRoles][]candidate{
	0: {
		MOSI: {{PA04, FunctionD}, {PA08, FunctionC}},
		SCK:  {{PA05, FunctionD}, {PA09, FunctionC}},
		SS:   {{PA06, FunctionD}, {PA10, FunctionC}},
		MISO: {{PA07, FunctionD}, {PA11, FunctionC}},
	},
	1: {
		MOSI: {{PA00, FunctionD}, {PA16, FunctionC}},
		SCK:  {{PA01, FunctionD}, {PA17, FunctionC}},
		SS:   {{PA18, FunctionC}, {PA30, FunctionD}},
		MISO: {{PA19, FunctionC}, {PA31, FunctionD}},
	},
	2: {
		MOSI: {{PA08, FunctionD}, {PA12, FunctionC}},
		SCK:  {{PA09, FunctionD}, {PA13, FunctionC}},
		SS:   {{PA10, FunctionD}, {PA14, FunctionC}},
		MISO: {{PA11, FunctionD}, {PA15, FunctionC}},
	},
	3: {
		MOSI: {{PA16, FunctionD}, {PA22, FunctionC}},
		SCK:  {{PA17, FunctionD}, {PA23, FunctionC}},
		SS:   {{PA18, FunctionD}, {PA20, FunctionD}, {PA24, FunctionC}},
		MISO: {{PA19, FunctionD}, {PA21, FunctionD}, {PA25, FunctionC}},
	},
	4: {
		MOSI: {{PA12, FunctionD}, {PB08, FunctionD}, {PB12, FunctionC}},
		SCK:  {{PA13, FunctionD}, {PB09, FunctionD}, {PB13, FunctionC}},
		SS:   {{PA14, FunctionD}, {PB10, FunctionD}, {PB14, FunctionC}},
		MISO: {{PA15, FunctionD}, {PB11, FunctionD}, {PB15, FunctionC}},
	},
	5: {
		MOSI: {{PB02, FunctionD}, {PB16, FunctionC}, {PB30, FunctionD}},
		SCK:  {{PB03, FunctionD}, {PB17, FunctionC}, {PB31, FunctionD}},
		SS:   {{PA20, FunctionC}, {PA24, FunctionD}, {PB00, FunctionD}, {PB22, FunctionD}},
		MISO: {{PA21, FunctionC}, {PA25, FunctionD}, {PB01, FunctionD}, {PB23, FunctionD}},
	},
}

// Resolve returns the multiplexer setting that routes pin to role on
// instance, or a *PinError when pin is not one of that role's candidates.
func Resolve(n Instance, role Role, pin Pin) (MuxSetting, error) {
	if n >= NumInstances {
		return MuxSetting{}, ErrUnsupportedInstance
	}
	if role >= numRoles {
		return MuxSetting{}, &PinError{Instance: n, Role: role, Pin: pin}
	}
	for _, c := range routes[n][role] {
		if c.pin == pin {
			return muxFor(role, c), nil
		}
	}
	return MuxSetting{}, &PinError{Instance: n, Role: role, Pin: pin}
}

func muxFor(role Role, c candidate) MuxSetting {
	idx := c.pin.Index()
	return MuxSetting{
		Pin:      c.pin,
		Role:     role,
		Port:     c.pin.Port(),
		Index:    idx,
		Register: idx / 2,
		Odd:      idx%2 == 1,
		Function: c.fn,
		Pad:      uint8(role),
	}
}

// Candidates returns the legal pins for role on instance in ascending order.
func Candidates(n Instance, role Role) []Pin {
	if n >= NumInstances || role >= numRoles {
		return nil
	}
	out := make([]Pin, 0, len(routes[n][role]))
	for _, c := range routes[n][role] {
		out = append(out, c.pin)
	}
	slices.Sort(out)
	return out
}

// Pinout is one pin choice per role.
type Pinout struct {
	MOSI Pin
	SCK  Pin
	SS   Pin
	MISO Pin
}

// Pin returns the pin chosen for role.
func (p Pinout) Pin(role Role) Pin {
	switch role {
	case MOSI:
		return p.MOSI
	case SCK:
		return p.SCK
	case SS:
		return p.SS
	case MISO:
		return p.MISO
	default:
		return NoPin
	}
}

// ResolvePinout resolves all four roles and rejects a pin used twice. The
// result is indexed by Role.
func ResolvePinout(n Instance, p Pinout) ([numRoles]MuxSetting, error) {
	var out [numRoles]MuxSetting
	for _, role := range Roles() {
		pin := p.Pin(role)
		for prev := MOSI; prev < role; prev++ {
			if p.Pin(prev) == pin {
				return out, &PinError{Instance: n, Role: role, Pin: pin, Collides: true, With: prev}
			}
		}
		m, err := Resolve(n, role, pin)
		if err != nil {
			return out, err
		}
		out[role] = m
	}
	return out, nil
}

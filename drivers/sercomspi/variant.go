package sercomspi

import "strings"

// Variant is a SAM D21 package size. The smaller packages bond out fewer
// SERCOMs and pins, so a route that is legal in the datasheet table may not
// exist on the part actually fitted.
type Variant uint8

const (
	// VariantAny applies no package restriction.
	VariantAny Variant = iota
	SAMD21E            // 32 pins
	SAMD21G            // 48 pins
	SAMD21J            // 64 pins
)

func (v Variant) String() string {
	switch v {
	case VariantAny:
		return "any"
	case SAMD21E:
		return "samd21e"
	case SAMD21G:
		return "samd21g"
	case SAMD21J:
		return "samd21j"
	default:
		return "unknown"
	}
}

// ParseVariant accepts "", "any", "samd21e", "e" and the like, case
// insensitive. Part numbers such as "SAMD21G18A" are matched by prefix.
func ParseVariant(s string) (Variant, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, "at")
	switch {
	case s == "" || s == "any":
		return VariantAny, true
	case s == "e" || strings.HasPrefix(s, "samd21e"):
		return SAMD21E, true
	case s == "g" || strings.HasPrefix(s, "samd21g"):
		return SAMD21G, true
	case s == "j" || strings.HasPrefix(s, "samd21j"):
		return SAMD21J, true
	}
	return VariantAny, false
}

// HasInstance reports whether SERCOMn exists on the variant.
func (v Variant) HasInstance(n Instance) bool {
	switch v {
	case SAMD21E:
		return n < 4
	case VariantAny, SAMD21G, SAMD21J:
		return n < NumInstances
	default:
		return false
	}
}

// HasPin reports whether p is bonded out on the variant.
func (v Variant) HasPin(p Pin) bool {
	if !p.Valid() {
		return false
	}
	switch v {
	case SAMD21E:
		if p.Port() != PortA {
			return false
		}
		switch p {
		case PA12, PA13, PA20, PA21:
			return false
		}
		return true
	case SAMD21G:
		if p.Port() == PortA {
			return true
		}
		switch p {
		case PB02, PB03, PB08, PB09, PB10, PB11, PB22, PB23:
			return true
		}
		return false
	case VariantAny, SAMD21J:
		return true
	default:
		return false
	}
}

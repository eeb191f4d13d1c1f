// Package conv formats integers into caller-supplied buffers without fmt or
// strconv, for MCU builds where both are costly.
package conv

const hexDigits = "0123456789ABCDEF"

// AppendHex32 appends v as eight zero-padded uppercase hex digits.
func AppendHex32(dst []byte, v uint32) []byte {
	for shift := 28; shift >= 0; shift -= 4 {
		dst = append(dst, hexDigits[v>>uint(shift)&0xF])
	}
	return dst
}

// AppendInt appends the base-10 form of n.
func AppendInt(dst []byte, n int64) []byte {
	u := uint64(n)
	if n < 0 {
		dst = append(dst, '-')
		u = -u
	}
	var tmp [20]byte
	i := len(tmp)
	for {
		i--
		tmp[i] = byte('0' + u%10)
		u /= 10
		if u == 0 {
			break
		}
	}
	return append(dst, tmp[i:]...)
}

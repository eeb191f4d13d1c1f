package conv

import (
	"math"
	"testing"
)

func TestAppendHex32(t *testing.T) {
	tests := map[uint32]string{0: "00000000", 0x8F: "0000008F", 0x00020188: "00020188", math.MaxUint32: "FFFFFFFF"}
	for v, want := range tests {
		if got := string(AppendHex32(nil, v)); got != want {
			t.Errorf("AppendHex32(%#x) = %q, want %q", v, got, want)
		}
	}
	if got := string(AppendHex32([]byte("0x"), 1)); got != "0x00000001" {
		t.Fatalf("prefix lost: %q", got)
	}
}

func TestAppendInt(t *testing.T) {
	tests := map[int64]string{0: "0", 9: "9", -42: "-42", 14: "14", math.MinInt64: "-9223372036854775808"}
	for n, want := range tests {
		if got := string(AppendInt(nil, n)); got != want {
			t.Errorf("AppendInt(%d) = %q, want %q", n, got, want)
		}
	}
}

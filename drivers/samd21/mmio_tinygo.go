//go:build tinygo && atsamd21

package samd21

import (
	"runtime/volatile"
	"unsafe"
)

// MMIO accesses the real register file.
type MMIO struct{}

func (MMIO) Load(r Reg) uint32 {
	switch r.Size {
	case 1:
		return uint32(volatile.LoadUint8((*uint8)(unsafe.Pointer(r.Addr))))
	case 2:
		return uint32(volatile.LoadUint16((*uint16)(unsafe.Pointer(r.Addr))))
	default:
		return volatile.LoadUint32((*uint32)(unsafe.Pointer(r.Addr)))
	}
}

func (MMIO) Store(r Reg, v uint32) {
	switch r.Size {
	case 1:
		volatile.StoreUint8((*uint8)(unsafe.Pointer(r.Addr)), uint8(v))
	case 2:
		volatile.StoreUint16((*uint16)(unsafe.Pointer(r.Addr)), uint16(v))
	default:
		volatile.StoreUint32((*uint32)(unsafe.Pointer(r.Addr)), v)
	}
}

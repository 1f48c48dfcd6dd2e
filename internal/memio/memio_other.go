//go:build !darwin

package memio

import "unsafe"

// Checked reports that accesses dereference the address with no validation.
func Checked() bool { return false }

// Peek copies size bytes out of the address range starting at addr.
func Peek(addr, size uint64) ([]byte, error) {
	out := make([]byte, size)
	copy(out, unsafe.Slice((*byte)(unsafe.Pointer(uintptr(addr))), size))
	return out, nil
}

// Poke copies data into the address range starting at addr.
func Poke(addr uint64, data []byte) error {
	copy(unsafe.Slice((*byte)(unsafe.Pointer(uintptr(addr))), len(data)), data)
	return nil
}

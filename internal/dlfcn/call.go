//go:build darwin || linux || freebsd

package dlfcn

import (
	"github.com/ebitengine/purego"

	"github.com/semiotic/agentium/internal/errx"
)

// Call invokes the function at addr with up to eleven machine-word arguments
// and returns the machine-word result. The arity dispatch is a fixed table;
// anything above eleven is rejected before the jump. A callee that traps
// takes the process down with it.
func Call(addr uint64, args []uint64) (uint64, error) {
	fn := uintptr(addr)
	a := make([]uintptr, len(args))
	for i, v := range args {
		a[i] = uintptr(v)
	}

	var r uintptr
	switch len(a) {
	case 0:
		r, _, _ = purego.SyscallN(fn)
	case 1:
		r, _, _ = purego.SyscallN(fn, a[0])
	case 2:
		r, _, _ = purego.SyscallN(fn, a[0], a[1])
	case 3:
		r, _, _ = purego.SyscallN(fn, a[0], a[1], a[2])
	case 4:
		r, _, _ = purego.SyscallN(fn, a[0], a[1], a[2], a[3])
	case 5:
		r, _, _ = purego.SyscallN(fn, a[0], a[1], a[2], a[3], a[4])
	case 6:
		r, _, _ = purego.SyscallN(fn, a[0], a[1], a[2], a[3], a[4], a[5])
	case 7:
		r, _, _ = purego.SyscallN(fn, a[0], a[1], a[2], a[3], a[4], a[5], a[6])
	case 8:
		r, _, _ = purego.SyscallN(fn, a[0], a[1], a[2], a[3], a[4], a[5], a[6], a[7])
	case 9:
		r, _, _ = purego.SyscallN(fn, a[0], a[1], a[2], a[3], a[4], a[5], a[6], a[7], a[8])
	case 10:
		r, _, _ = purego.SyscallN(fn, a[0], a[1], a[2], a[3], a[4], a[5], a[6], a[7], a[8], a[9])
	case 11:
		r, _, _ = purego.SyscallN(fn, a[0], a[1], a[2], a[3], a[4], a[5], a[6], a[7], a[8], a[9], a[10])
	default:
		return 0, errx.With(ErrTooManyArgs, ": %d", len(a))
	}
	return uint64(r), nil
}

//go:build darwin

package memio

import (
	"runtime"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"

	"github.com/semiotic/agentium/internal/errx"
)

var (
	machOnce  sync.Once
	machErr   error
	taskSelf  uintptr
	vmRead    uintptr
	vmWrite   uintptr
	vmDealloc uintptr
)

func machInit() {
	machOnce.Do(func() {
		lib, err := purego.Dlopen("/usr/lib/libSystem.B.dylib", purego.RTLD_GLOBAL|purego.RTLD_NOW)
		if err != nil {
			machErr = errx.Wrap(ErrMachInit, err)
			return
		}
		for _, s := range []struct {
			name string
			dst  *uintptr
		}{
			{"vm_read", &vmRead},
			{"vm_write", &vmWrite},
			{"vm_deallocate", &vmDealloc},
		} {
			addr, err := purego.Dlsym(lib, s.name)
			if err != nil {
				machErr = errx.Wrap(ErrMachInit, err)
				return
			}
			*s.dst = addr
		}
		fn, err := purego.Dlsym(lib, "mach_task_self")
		if err != nil {
			machErr = errx.Wrap(ErrMachInit, err)
			return
		}
		taskSelf, _, _ = purego.SyscallN(fn)
	})
}

// Checked reports that accesses are validated before any dereference.
func Checked() bool { return true }

// Peek reads size bytes starting at addr via vm_read on the task port and
// returns a copy taken from the kernel-provided buffer, so an unmapped range
// never gets touched directly.
func Peek(addr, size uint64) ([]byte, error) {
	machInit()
	if machErr != nil {
		return nil, machErr
	}

	var data uintptr
	var cnt uint32
	kr, _, _ := purego.SyscallN(vmRead, taskSelf, uintptr(addr), uintptr(size),
		uintptr(unsafe.Pointer(&data)), uintptr(unsafe.Pointer(&cnt)))
	runtime.KeepAlive(&data)
	runtime.KeepAlive(&cnt)
	if kr != 0 {
		return nil, errx.With(ErrUnreadable, ": 0x%x+%d kern_return %d", addr, size, kr)
	}

	out := make([]byte, cnt)
	copy(out, unsafe.Slice((*byte)(unsafe.Pointer(data)), cnt))
	purego.SyscallN(vmDealloc, taskSelf, data, uintptr(cnt))
	return out, nil
}

// Poke writes data to addr via vm_write on the task port.
func Poke(addr uint64, data []byte) error {
	machInit()
	if machErr != nil {
		return machErr
	}
	if len(data) == 0 {
		return nil
	}

	kr, _, _ := purego.SyscallN(vmWrite, taskSelf, uintptr(addr),
		uintptr(unsafe.Pointer(&data[0])), uintptr(len(data)))
	runtime.KeepAlive(data)
	if kr != 0 {
		return errx.With(ErrUnwritable, ": 0x%x+%d kern_return %d", addr, len(data), kr)
	}
	return nil
}

//go:build darwin || linux || freebsd

// Package dlfcn wraps the platform dynamic loader and provides the raw
// function-pointer call trampoline. Handles and addresses are opaque machine
// words owned by the caller; nothing here tracks them.
package dlfcn

import (
	"github.com/ebitengine/purego"

	"github.com/semiotic/agentium/internal/errx"
)

// Open loads a shared library. The mode is the platform's dlopen flags,
// passed through unchanged. A failed load returns handle 0.
func Open(filename string, mode int) (uintptr, error) {
	handle, err := purego.Dlopen(filename, mode)
	if err != nil {
		return 0, errx.Wrap(ErrDlopen, err)
	}
	return handle, nil
}

// Sym resolves a symbol in a previously opened library. A failed lookup
// returns address 0.
func Sym(handle uintptr, name string) (uintptr, error) {
	addr, err := purego.Dlsym(handle, name)
	if err != nil {
		return 0, errx.Wrap(ErrDlsym, err)
	}
	return addr, nil
}

// Close unloads a library handle and returns the loader's status: 0 on
// success, nonzero on failure.
func Close(handle uintptr) uint64 {
	if err := purego.Dlclose(handle); err != nil {
		return 1
	}
	return 0
}

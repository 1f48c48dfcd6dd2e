package memio

import "errors"

var (
	ErrMachInit   = errors.New("resolve mach vm routines")
	ErrUnreadable = errors.New("address range not readable")
	ErrUnwritable = errors.New("address range not writable")
)

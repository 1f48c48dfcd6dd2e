package dlfcn

import "errors"

var (
	ErrDlopen      = errors.New("dlopen")
	ErrDlsym       = errors.New("dlsym")
	ErrTooManyArgs = errors.New("call arity exceeds supported maximum")
)

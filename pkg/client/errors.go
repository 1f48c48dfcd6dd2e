package client

import "errors"

var (
	ErrDial            = errors.New("dial agent")
	ErrBanner          = errors.New("read banner")
	ErrEmptyArgv       = errors.New("exec requires at least argv[0]")
	ErrTooManyArgs     = errors.New("call arity above supported maximum")
	ErrSpawnFailed     = errors.New("agent failed to spawn child")
	ErrPeekDenied      = errors.New("peek rejected by agent")
	ErrPokeDenied      = errors.New("poke rejected by agent")
	ErrUnexpectedReply = errors.New("unexpected reply")
	ErrUnexpectedChunk = errors.New("unexpected exec chunk kind")
)

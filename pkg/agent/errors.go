package agent

import "errors"

// Listener errors
var (
	ErrListen = errors.New("listen")
	ErrAccept = errors.New("accept")
)

// Session-terminating protocol errors
var (
	ErrUnknownCommand  = errors.New("unknown command kind")
	ErrEmptyArgv       = errors.New("exec requires at least argv[0]")
	ErrTooManyCallArgs = errors.New("call arity above supported maximum")
)

// Spawn errors. A failed spawn is reported to the controller as the sentinel
// pid; a failed PTY relay setup after the pid was sent ends the session.
var (
	ErrSpawn = errors.New("spawn child")
)

package protocol

import "errors"

// Framing errors
var (
	ErrShortWrite = errors.New("short write")
	ErrRead       = errors.New("read")
	ErrPeerClosed = errors.New("peer closed connection")
)

// Protocol errors
var (
	ErrBadMagic       = errors.New("bad command magic")
	ErrStringTooLong  = errors.New("string exceeds fixed field")
	ErrStringNotFound = errors.New("unterminated string in fixed field")
)

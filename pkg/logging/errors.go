package logging

import "errors"

var (
	ErrBadSink     = errors.New("unrecognized log sink")
	ErrOpenLogFile = errors.New("open log file")
	ErrOpenSyslog  = errors.New("connect to syslog")
)

package audit

import "errors"

var (
	ErrPathRequired = errors.New("audit database path is required")
	ErrOpen         = errors.New("open audit database")
	ErrConfigure    = errors.New("configure audit database")
	ErrMigrate      = errors.New("migrate audit database")
	ErrRecord       = errors.New("record audit event")
	ErrEncodeDetail = errors.New("encode audit detail")
)

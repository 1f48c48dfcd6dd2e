package agent

import (
	"github.com/semiotic/agentium/internal/dlfcn"
	"github.com/semiotic/agentium/internal/errx"
	"github.com/semiotic/agentium/pkg/protocol"
)

// Loader handlers. A failed dlopen/dlsym travels back as 0 with no
// distinguishing reply; the controller owns every handle and address it
// receives.

func (sess *session) handleDlopen() error {
	filename, err := protocol.ReadStringField(sess.conn)
	if err != nil {
		return err
	}
	mode, err := protocol.ReadUint32(sess.conn)
	if err != nil {
		return err
	}

	handle, derr := dlfcn.Open(filename, int(mode))
	if derr != nil {
		sess.log.WithError(derr).WithField("filename", filename).Debug("dlopen failed")
	} else {
		sess.log.WithField("filename", filename).Debug("library loaded")
	}
	return protocol.WriteUint64(sess.conn, uint64(handle))
}

func (sess *session) handleDlclose() error {
	handle, err := protocol.ReadUint64(sess.conn)
	if err != nil {
		return err
	}
	return protocol.WriteUint64(sess.conn, dlfcn.Close(uintptr(handle)))
}

func (sess *session) handleDlsym() error {
	handle, err := protocol.ReadUint64(sess.conn)
	if err != nil {
		return err
	}
	name, err := protocol.ReadStringField(sess.conn)
	if err != nil {
		return err
	}

	addr, derr := dlfcn.Sym(uintptr(handle), name)
	if derr != nil {
		sess.log.WithError(derr).WithField("symbol", name).Debug("dlsym failed")
	}
	return protocol.WriteUint64(sess.conn, uint64(addr))
}

// handleCall invokes a raw function pointer with up to eleven machine-word
// arguments. An oversized arity is a protocol violation, rejected before any
// argument is consumed. A callee that traps kills the agent; accepted.
func (sess *session) handleCall() error {
	addr, err := protocol.ReadUint64(sess.conn)
	if err != nil {
		return err
	}
	argc, err := protocol.ReadUint64(sess.conn)
	if err != nil {
		return err
	}
	if argc > protocol.MaxCallArgs {
		return errx.With(ErrTooManyCallArgs, ": %d", argc)
	}

	args := make([]uint64, argc)
	for i := range args {
		if args[i], err = protocol.ReadUint64(sess.conn); err != nil {
			return err
		}
	}

	sess.log.WithField("addr", addr).WithField("argc", argc).Debug("calling function")
	ret, cerr := dlfcn.Call(addr, args)
	if cerr != nil {
		return cerr
	}
	return protocol.WriteUint64(sess.conn, ret)
}

func (sess *session) handleGetDummyBlock() error {
	return protocol.WriteUint64(sess.conn, dlfcn.DummyBlock())
}

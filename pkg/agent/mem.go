package agent

import (
	"github.com/semiotic/agentium/internal/memio"
	"github.com/semiotic/agentium/pkg/protocol"
)

// Memory handlers. On hosts with checked access (Mach task port) a bad range
// comes back as a REPLY_ERROR header and the session continues; elsewhere the
// address is dereferenced directly and a bad one kills the process.

func (sess *session) handlePeek() error {
	addr, err := protocol.ReadUint64(sess.conn)
	if err != nil {
		return err
	}
	size, err := protocol.ReadUint64(sess.conn)
	if err != nil {
		return err
	}

	data, merr := memio.Peek(addr, size)
	if merr != nil {
		sess.log.WithError(merr).WithField("addr", addr).Debug("peek rejected")
		return protocol.WriteHeader(sess.conn, protocol.ReplyError)
	}
	if err := protocol.WriteHeader(sess.conn, protocol.ReplyPeek); err != nil {
		return err
	}
	return protocol.SendAll(sess.conn, data)
}

func (sess *session) handlePoke() error {
	addr, err := protocol.ReadUint64(sess.conn)
	if err != nil {
		return err
	}
	size, err := protocol.ReadUint64(sess.conn)
	if err != nil {
		return err
	}
	data := make([]byte, size)
	if err := protocol.ReadFull(sess.conn, data); err != nil {
		return err
	}

	if merr := memio.Poke(addr, data); merr != nil {
		sess.log.WithError(merr).WithField("addr", addr).Debug("poke rejected")
		return protocol.WriteHeader(sess.conn, protocol.ReplyError)
	}
	return protocol.WriteHeader(sess.conn, protocol.ReplyPoke)
}

package agent

import (
	"errors"
	"net"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/semiotic/agentium/internal/audit"
	"github.com/semiotic/agentium/internal/errx"
	"github.com/semiotic/agentium/pkg/protocol"
)

// session is one connection's serial command stream. The worker goroutine
// owns conn exclusively until the loop ends.
type session struct {
	id    string
	conn  net.Conn
	log   *logrus.Entry
	audit *audit.Store
	seq   uint64
}

func (s *Server) serveConn(conn net.Conn) {
	sess := &session{
		id:    uuid.NewString(),
		conn:  conn,
		audit: s.cfg.Audit,
	}
	sess.log = s.cfg.Log.WithFields(logrus.Fields{
		"session": sess.id,
		"peer":    conn.RemoteAddr().String(),
	})

	sess.log.Info("session opened")
	if sess.audit != nil {
		if err := sess.audit.SessionOpened(sess.id, conn.RemoteAddr().String()); err != nil {
			sess.log.WithError(err).Warn("audit write failed")
		}
	}

	reason := sess.run(s.sysname)

	conn.Close()
	sess.log.WithField("reason", reason).Info("session closed")
	if sess.audit != nil {
		if err := sess.audit.SessionClosed(sess.id, reason); err != nil {
			sess.log.WithError(err).Warn("audit write failed")
		}
	}
}

// run sends the banner and serves commands until the peer detaches, asks to
// close, or breaks the protocol. It returns the close reason for the logs.
func (sess *session) run(sysname string) string {
	if err := protocol.WriteBanner(sess.conn, sysname); err != nil {
		return "banner write failed"
	}

	for {
		h, err := protocol.ReadHeader(sess.conn)
		if err != nil {
			if errors.Is(err, protocol.ErrPeerClosed) {
				return "peer disconnected"
			}
			sess.log.WithError(err).Warn("command header")
			return err.Error()
		}

		sess.record(h.Kind)

		done, err := sess.dispatch(h.Kind)
		if err != nil {
			sess.log.WithError(err).WithField("kind", h.Kind).Warn("handler failed")
			return err.Error()
		}
		if done {
			return "close command"
		}
		sess.seq++
	}
}

// dispatch routes one command. done is true for CLOSE; any error ends the
// session.
func (sess *session) dispatch(kind uint32) (done bool, err error) {
	switch kind {
	case protocol.CmdExec:
		return false, sess.handleExec()
	case protocol.CmdDlopen:
		return false, sess.handleDlopen()
	case protocol.CmdDlclose:
		return false, sess.handleDlclose()
	case protocol.CmdDlsym:
		return false, sess.handleDlsym()
	case protocol.CmdCall:
		return false, sess.handleCall()
	case protocol.CmdPeek:
		return false, sess.handlePeek()
	case protocol.CmdPoke:
		return false, sess.handlePoke()
	case protocol.CmdGetDummyBlock:
		return false, sess.handleGetDummyBlock()
	case protocol.CmdClose:
		return true, nil
	default:
		return false, errx.With(ErrUnknownCommand, ": %d", kind)
	}
}

// record writes the command to the audit trail, if one is configured. Exec
// writes its own richer record instead.
func (sess *session) record(kind uint32) {
	if sess.audit == nil || kind == protocol.CmdExec {
		return
	}
	if err := sess.audit.Command(sess.id, sess.seq, kind); err != nil {
		sess.log.WithError(err).Warn("audit write failed")
	}
}

package agent

import (
	"encoding/binary"
	"net"
	"os"
	"os/exec"
	"syscall"

	"github.com/creack/pty"
	"golang.org/x/sys/unix"

	"github.com/semiotic/agentium/internal/errx"
	"github.com/semiotic/agentium/pkg/protocol"
)

// pumpBufSize is the relay buffer between the socket and the PTY master.
const pumpBufSize = 64 * 1024

// execRequest is the decoded EXEC body.
type execRequest struct {
	background bool
	argv       [][]byte
	envp       [][]byte
}

func (sess *session) readExecRequest() (*execRequest, error) {
	var bg [1]byte
	if err := protocol.ReadFull(sess.conn, bg[:]); err != nil {
		return nil, err
	}

	argc, err := protocol.ReadUint32(sess.conn)
	if err != nil {
		return nil, err
	}
	if argc == 0 {
		return nil, ErrEmptyArgv
	}
	argv := make([][]byte, argc)
	for i := range argv {
		if argv[i], err = protocol.ReadLenPrefixed(sess.conn); err != nil {
			return nil, err
		}
	}

	envc, err := protocol.ReadUint32(sess.conn)
	if err != nil {
		return nil, err
	}
	envp := make([][]byte, envc)
	for i := range envp {
		if envp[i], err = protocol.ReadLenPrefixed(sess.conn); err != nil {
			return nil, err
		}
	}

	return &execRequest{background: bg[0] != 0, argv: argv, envp: envp}, nil
}

// handleExec spawns the requested child. A spawn failure sends the sentinel
// pid and leaves the session usable; a framing failure, an empty argv, or a
// failure to set up the PTY relay ends the session.
func (sess *session) handleExec() error {
	req, err := sess.readExecRequest()
	if err != nil {
		return err
	}

	argv := make([]string, len(req.argv))
	for i, a := range req.argv {
		argv[i] = string(a)
	}
	// envc == 0 inherits the agent's environment; otherwise the supplied
	// environment is used verbatim.
	var env []string
	if len(req.envp) > 0 {
		env = make([]string, len(req.envp))
		for i, e := range req.envp {
			env[i] = string(e)
		}
	}

	if req.background {
		return sess.execBackground(req, argv, env)
	}
	return sess.execForeground(req, argv, env)
}

func (sess *session) execBackground(req *execRequest, argv, env []string) error {
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Env = env
	// Stdin/Stdout/Stderr left nil: the runtime attaches the null device.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		sess.log.WithError(errx.Wrap(ErrSpawn, err)).Warn("background spawn failed")
		sentinel := protocol.SentinelPid
		sess.recordExec(req, int64(int32(sentinel)))
		return protocol.WriteUint32(sess.conn, protocol.SentinelPid)
	}
	pid := cmd.Process.Pid
	sess.log.WithField("pid", pid).Debug("background child started")
	sess.recordExec(req, int64(pid))

	// Detached reaper; no status goes back to the controller.
	go cmd.Wait()

	return protocol.WriteUint32(sess.conn, uint32(pid))
}

func (sess *session) execForeground(req *execRequest, argv, env []string) error {
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Env = env

	// pty.Start runs the child in a new session with the slave as its
	// stdin/stdout/stderr and hands back the master.
	ptmx, err := pty.Start(cmd)
	if err != nil {
		sess.log.WithError(errx.Wrap(ErrSpawn, err)).Warn("foreground spawn failed")
		sentinel := protocol.SentinelPid
		sess.recordExec(req, int64(int32(sentinel)))
		return protocol.WriteUint32(sess.conn, protocol.SentinelPid)
	}

	pid := cmd.Process.Pid
	sess.log.WithField("pid", pid).Debug("foreground child started")
	sess.recordExec(req, int64(pid))

	if err := protocol.WriteUint32(sess.conn, uint32(pid)); err != nil {
		ptmx.Close()
		cmd.Process.Kill()
		cmd.Wait()
		return err
	}

	pumpErr := sess.pump(ptmx)
	ptmx.Close()

	// Always reap; the raw wait status travels in the exit chunk.
	cmd.Wait()
	if pumpErr != nil {
		return pumpErr
	}

	var status uint32
	if ps := cmd.ProcessState; ps != nil {
		if ws, ok := ps.Sys().(syscall.WaitStatus); ok {
			status = uint32(ws)
		}
	}
	var payload [4]byte
	binary.LittleEndian.PutUint32(payload[:], status)
	return protocol.WriteChunk(sess.conn, protocol.ChunkExit, payload[:])
}

// pump relays bytes between the socket and the PTY master until either side
// closes. Master output travels framed as stdout chunks; socket input is
// written to the master verbatim, so the child sees raw keystrokes. stderr
// and stdout arrive merged, which is what a shared terminal gives you.
//
// The loop multiplexes with select over a duplicate of the socket fd so that
// nothing is left blocked in a read on the session socket when the child
// exits; the very next bytes the controller sends are the next command.
func (sess *session) pump(ptmx *os.File) error {
	tcp, ok := sess.conn.(*net.TCPConn)
	if !ok {
		return errx.With(ErrSpawn, ": connection does not expose a descriptor")
	}
	sock, err := tcp.File()
	if err != nil {
		return errx.Wrap(ErrSpawn, err)
	}
	defer sock.Close()

	sockFd := int(sock.Fd())
	ptyFd := int(ptmx.Fd())
	nfds := sockFd + 1
	if ptyFd >= sockFd {
		nfds = ptyFd + 1
	}

	buf := make([]byte, pumpBufSize)
	for {
		var rset unix.FdSet
		rset.Zero()
		rset.Set(sockFd)
		rset.Set(ptyFd)

		if _, err := unix.Select(nfds, &rset, nil, nil, nil); err != nil {
			if err == unix.EINTR {
				continue
			}
			return nil
		}

		if rset.IsSet(ptyFd) {
			n, err := unix.Read(ptyFd, buf)
			if n <= 0 || err != nil {
				// Child closed its terminal.
				return nil
			}
			if err := protocol.WriteChunk(sock, protocol.ChunkStdout, buf[:n]); err != nil {
				return nil
			}
		}

		if rset.IsSet(sockFd) {
			n, err := unix.Read(sockFd, buf)
			if n <= 0 || err != nil {
				// Controller detached.
				return nil
			}
			if err := writeAllFd(ptyFd, buf[:n]); err != nil {
				return nil
			}
		}
	}
}

func writeAllFd(fd int, buf []byte) error {
	for len(buf) > 0 {
		n, err := unix.Write(fd, buf)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return err
		}
		buf = buf[n:]
	}
	return nil
}

func (sess *session) recordExec(req *execRequest, pid int64) {
	if sess.audit == nil {
		return
	}
	if err := sess.audit.Exec(sess.id, sess.seq, req.background, req.argv, req.envp, pid); err != nil {
		sess.log.WithError(err).Warn("audit write failed")
	}
}

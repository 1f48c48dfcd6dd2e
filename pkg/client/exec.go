package client

import (
	"encoding/binary"
	"io"
	"sync/atomic"

	"github.com/semiotic/agentium/pkg/protocol"
)

// ExecResult reports a finished foreground exec.
type ExecResult struct {
	Pid uint32

	// WaitStatus is the raw 32-bit wait status from the agent host's
	// waitpid, carrying the encoded exit code or signal.
	WaitStatus uint32
}

// ExitCode extracts the exit code for a normally exited child.
func (r *ExecResult) ExitCode() int {
	return int((r.WaitStatus >> 8) & 0xff)
}

// Signaled reports whether the child was terminated by a signal.
func (r *ExecResult) Signaled() bool {
	return r.WaitStatus&0x7f != 0 && r.WaitStatus&0x7f != 0x7f
}

func (c *Client) writeExecRequest(background bool, argv, env []string) error {
	if len(argv) == 0 {
		return ErrEmptyArgv
	}
	if err := protocol.WriteHeader(c.conn, protocol.CmdExec); err != nil {
		return err
	}
	bg := [1]byte{0}
	if background {
		bg[0] = 1
	}
	if err := protocol.SendAll(c.conn, bg[:]); err != nil {
		return err
	}
	if err := protocol.WriteUint32(c.conn, uint32(len(argv))); err != nil {
		return err
	}
	for _, a := range argv {
		if err := protocol.WriteLenPrefixed(c.conn, []byte(a)); err != nil {
			return err
		}
	}
	if err := protocol.WriteUint32(c.conn, uint32(len(env))); err != nil {
		return err
	}
	for _, e := range env {
		if err := protocol.WriteLenPrefixed(c.conn, []byte(e)); err != nil {
			return err
		}
	}
	return nil
}

// ExecBackground spawns a detached child on the agent and returns its pid.
// An empty env inherits the agent's environment.
func (c *Client) ExecBackground(argv, env []string) (uint32, error) {
	if err := c.writeExecRequest(true, argv, env); err != nil {
		return 0, err
	}
	pid, err := protocol.ReadUint32(c.conn)
	if err != nil {
		return 0, err
	}
	if pid == protocol.SentinelPid {
		return 0, ErrSpawnFailed
	}
	return pid, nil
}

// Exec runs a foreground child on the agent's pseudoterminal, forwarding
// stdin to the child and child output to stdout until it exits. The child's
// stderr arrives merged into stdout; the PTY makes them indistinguishable.
//
// stdin may be nil. Bytes stdin produces after the child has already exited
// are dropped rather than written to the session.
func (c *Client) Exec(argv, env []string, stdin io.Reader, stdout io.Writer) (*ExecResult, error) {
	if err := c.writeExecRequest(false, argv, env); err != nil {
		return nil, err
	}

	pid, err := protocol.ReadUint32(c.conn)
	if err != nil {
		return nil, err
	}
	if pid == protocol.SentinelPid {
		return nil, ErrSpawnFailed
	}

	// done gates the stdin forwarder: once the exit chunk has been read,
	// stray stdin bytes must not leak into the next command's frame.
	var done atomic.Bool
	if stdin != nil {
		go func() {
			buf := make([]byte, 4096)
			for {
				n, rerr := stdin.Read(buf)
				if n > 0 {
					if done.Load() {
						return
					}
					if _, werr := c.conn.Write(buf[:n]); werr != nil {
						return
					}
				}
				if rerr != nil {
					return
				}
			}
		}()
	}

	for {
		kind, payload, err := protocol.ReadChunk(c.conn)
		if err != nil {
			done.Store(true)
			return nil, err
		}
		switch kind {
		case protocol.ChunkStdout:
			if stdout != nil && len(payload) > 0 {
				if _, err := stdout.Write(payload); err != nil {
					done.Store(true)
					return nil, err
				}
			}
		case protocol.ChunkExit:
			done.Store(true)
			res := &ExecResult{Pid: pid}
			if len(payload) >= 4 {
				res.WaitStatus = binary.LittleEndian.Uint32(payload)
			}
			return res, nil
		default:
			done.Store(true)
			return nil, ErrUnexpectedChunk
		}
	}
}

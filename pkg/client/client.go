// Package client drives one agent session from the controller side. A Client
// wraps a single TCP connection; commands are strictly serial, mirroring the
// agent's session loop.
package client

import (
	"net"

	"github.com/semiotic/agentium/internal/errx"
	"github.com/semiotic/agentium/pkg/protocol"
)

// Client is one connected session.
type Client struct {
	conn   net.Conn
	osName string
}

// Dial connects to an agent, consumes the banner, and returns the session.
func Dial(addr string) (*Client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, errx.Wrap(ErrDial, err)
	}
	osName, err := protocol.ReadBanner(conn)
	if err != nil {
		conn.Close()
		return nil, errx.Wrap(ErrBanner, err)
	}
	return &Client{conn: conn, osName: osName}, nil
}

// OSName reports the system name the agent sent in its banner.
func (c *Client) OSName() string {
	return c.osName
}

// Close asks the agent to end the session, then closes the socket.
func (c *Client) Close() error {
	err := protocol.WriteHeader(c.conn, protocol.CmdClose)
	if cerr := c.conn.Close(); err == nil {
		err = cerr
	}
	return err
}

// Dlopen loads a library in the agent process. A handle of 0 means the
// loader refused it; the protocol carries no further detail.
func (c *Client) Dlopen(filename string, mode uint32) (uint64, error) {
	if err := protocol.WriteHeader(c.conn, protocol.CmdDlopen); err != nil {
		return 0, err
	}
	if err := protocol.WriteStringField(c.conn, filename); err != nil {
		return 0, err
	}
	if err := protocol.WriteUint32(c.conn, mode); err != nil {
		return 0, err
	}
	return protocol.ReadUint64(c.conn)
}

// Dlclose unloads a handle and returns the loader's status word.
func (c *Client) Dlclose(handle uint64) (uint64, error) {
	if err := protocol.WriteHeader(c.conn, protocol.CmdDlclose); err != nil {
		return 0, err
	}
	if err := protocol.WriteUint64(c.conn, handle); err != nil {
		return 0, err
	}
	return protocol.ReadUint64(c.conn)
}

// Dlsym resolves a symbol; 0 means not found.
func (c *Client) Dlsym(handle uint64, name string) (uint64, error) {
	if err := protocol.WriteHeader(c.conn, protocol.CmdDlsym); err != nil {
		return 0, err
	}
	if err := protocol.WriteUint64(c.conn, handle); err != nil {
		return 0, err
	}
	if err := protocol.WriteStringField(c.conn, name); err != nil {
		return 0, err
	}
	return protocol.ReadUint64(c.conn)
}

// Call invokes a function pointer in the agent with up to eleven
// machine-word arguments and returns the machine-word result.
func (c *Client) Call(addr uint64, args ...uint64) (uint64, error) {
	if len(args) > protocol.MaxCallArgs {
		return 0, errx.With(ErrTooManyArgs, ": %d", len(args))
	}
	if err := protocol.WriteHeader(c.conn, protocol.CmdCall); err != nil {
		return 0, err
	}
	if err := protocol.WriteUint64(c.conn, addr); err != nil {
		return 0, err
	}
	if err := protocol.WriteUint64(c.conn, uint64(len(args))); err != nil {
		return 0, err
	}
	for _, a := range args {
		if err := protocol.WriteUint64(c.conn, a); err != nil {
			return 0, err
		}
	}
	return protocol.ReadUint64(c.conn)
}

// Peek reads size bytes of agent memory. ErrPeekDenied means the agent's
// checked variant rejected the range.
func (c *Client) Peek(addr, size uint64) ([]byte, error) {
	if err := protocol.WriteHeader(c.conn, protocol.CmdPeek); err != nil {
		return nil, err
	}
	if err := protocol.WriteUint64(c.conn, addr); err != nil {
		return nil, err
	}
	if err := protocol.WriteUint64(c.conn, size); err != nil {
		return nil, err
	}

	h, err := protocol.ReadHeader(c.conn)
	if err != nil {
		return nil, err
	}
	switch h.Kind {
	case protocol.ReplyPeek:
		data := make([]byte, size)
		if err := protocol.ReadFull(c.conn, data); err != nil {
			return nil, err
		}
		return data, nil
	case protocol.ReplyError:
		return nil, ErrPeekDenied
	default:
		return nil, errx.With(ErrUnexpectedReply, ": kind %d", h.Kind)
	}
}

// Poke writes data into agent memory at addr.
func (c *Client) Poke(addr uint64, data []byte) error {
	if err := protocol.WriteHeader(c.conn, protocol.CmdPoke); err != nil {
		return err
	}
	if err := protocol.WriteUint64(c.conn, addr); err != nil {
		return err
	}
	if err := protocol.WriteUint64(c.conn, uint64(len(data))); err != nil {
		return err
	}
	if err := protocol.SendAll(c.conn, data); err != nil {
		return err
	}

	h, err := protocol.ReadHeader(c.conn)
	if err != nil {
		return err
	}
	switch h.Kind {
	case protocol.ReplyPoke:
		return nil
	case protocol.ReplyError:
		return ErrPokeDenied
	default:
		return errx.With(ErrUnexpectedReply, ": kind %d", h.Kind)
	}
}

// DummyBlock fetches the agent's static block-object pointer, used to probe
// the host's block layout.
func (c *Client) DummyBlock() (uint64, error) {
	if err := protocol.WriteHeader(c.conn, protocol.CmdGetDummyBlock); err != nil {
		return 0, err
	}
	return protocol.ReadUint64(c.conn)
}

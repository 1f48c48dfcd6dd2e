// Package agent implements the remote in-process agent: a TCP server whose
// sessions execute a small binary command protocol for spawning children,
// loading libraries, calling raw function pointers, and touching process
// memory. Any controller that can connect is fully trusted; deployments put
// their own transport security in front.
package agent

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"sync"
	"syscall"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/semiotic/agentium/internal/audit"
	"github.com/semiotic/agentium/internal/errx"
)

// DefaultPort is the listening port when none is configured.
const DefaultPort = 5910

// Config carries the server's startup options.
type Config struct {
	// Port to listen on. 0 binds an ephemeral port (useful in tests); the
	// CLI default is DefaultPort.
	Port int

	// Log receives session lifecycle and handler events. Required.
	Log *logrus.Logger

	// Audit, when non-nil, records sessions and commands. Failures are
	// logged and otherwise ignored.
	Audit *audit.Store
}

// Server owns the listener and spawns one worker per accepted connection.
type Server struct {
	cfg      Config
	sysname  string
	listener net.Listener

	mu      sync.Mutex
	stopped bool
}

// New builds a Server. Call Listen then Serve.
func New(cfg Config) *Server {
	return &Server{cfg: cfg, sysname: osSysname()}
}

// Listen binds the dual-stack TCP listener. IPv4 peers arrive as v4-mapped
// addresses.
func (s *Server) Listen() error {
	lc := net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			var serr error
			err := c.Control(func(fd uintptr) {
				serr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
				if serr != nil {
					return
				}
				serr = unix.SetsockoptInt(int(fd), unix.IPPROTO_IPV6, unix.IPV6_V6ONLY, 0)
			})
			if err != nil {
				return err
			}
			return serr
		},
	}
	ln, err := lc.Listen(context.Background(), "tcp6", fmt.Sprintf("[::]:%d", s.cfg.Port))
	if err != nil {
		return errx.Wrap(ErrListen, err)
	}
	s.listener = ln
	s.cfg.Log.WithField("addr", ln.Addr().String()).Info("agent listening")
	return nil
}

// Addr returns the bound listener address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Serve accepts connections until Stop closes the listener. Each connection
// gets a dedicated worker goroutine that owns the socket for its lifetime.
func (s *Server) Serve() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.mu.Lock()
			stopped := s.stopped
			s.mu.Unlock()
			if stopped {
				return nil
			}
			s.cfg.Log.WithError(err).Warn("accept failed")
			continue
		}
		go s.serveConn(conn)
	}
}

// Stop closes the listener; in-flight sessions keep running.
func (s *Server) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	if s.listener != nil {
		s.listener.Close()
	}
}

// osSysname returns the uname sysname string sent in the banner.
func osSysname() string {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return "Unknown"
	}
	name := uts.Sysname[:]
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	return string(name)
}

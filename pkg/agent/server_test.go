package agent

import (
	"encoding/binary"
	"io"
	"net"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semiotic/agentium/internal/audit"
	"github.com/semiotic/agentium/pkg/client"
	"github.com/semiotic/agentium/pkg/protocol"
)

func startServer(t *testing.T, auditStore *audit.Store) *Server {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	srv := New(Config{Port: 0, Log: log, Audit: auditStore})
	require.NoError(t, srv.Listen())
	go srv.Serve()
	t.Cleanup(srv.Stop)
	return srv
}

// loopbackAddr rewrites the wildcard listen address into something dialable.
func loopbackAddr(srv *Server) string {
	port := srv.Addr().(*net.TCPAddr).Port
	return net.JoinHostPort("::1", strconv.Itoa(port))
}

func dialRaw(t *testing.T, srv *Server) net.Conn {
	t.Helper()
	conn, err := net.Dial("tcp", loopbackAddr(srv))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func dialClient(t *testing.T, srv *Server) *client.Client {
	t.Helper()
	c, err := client.Dial(loopbackAddr(srv))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestBannerConstancy(t *testing.T) {
	srv := startServer(t, nil)
	conn := dialRaw(t, srv)

	banner := make([]byte, 4+protocol.BannerNameLen)
	_, err := io.ReadFull(conn, banner)
	require.NoError(t, err)

	assert.Equal(t, protocol.ServerMagicVersion, binary.LittleEndian.Uint32(banner[:4]))

	name := banner[4:]
	sys := osSysname()
	assert.Equal(t, sys, string(name[:len(sys)]))
	for _, b := range name[len(sys):] {
		assert.Zero(t, b)
	}
}

func TestBadMagicClosesWithoutReply(t *testing.T) {
	srv := startServer(t, nil)
	conn := dialRaw(t, srv)

	_, err := io.ReadFull(conn, make([]byte, 4+protocol.BannerNameLen))
	require.NoError(t, err)

	// Header with magic 0, kind 0.
	_, err = conn.Write(make([]byte, protocol.HeaderLen))
	require.NoError(t, err)

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	n, err := conn.Read(make([]byte, 1))
	assert.Zero(t, n)
	assert.ErrorIs(t, err, io.EOF)
}

func TestUnknownCommandClosesSession(t *testing.T) {
	srv := startServer(t, nil)
	conn := dialRaw(t, srv)

	_, err := io.ReadFull(conn, make([]byte, 4+protocol.BannerNameLen))
	require.NoError(t, err)

	require.NoError(t, protocol.WriteHeader(conn, 0xDEAD))

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	n, err := conn.Read(make([]byte, 1))
	assert.Zero(t, n)
	assert.ErrorIs(t, err, io.EOF)
}

func TestCloseCleanliness(t *testing.T) {
	srv := startServer(t, nil)
	conn := dialRaw(t, srv)

	_, err := io.ReadFull(conn, make([]byte, 4+protocol.BannerNameLen))
	require.NoError(t, err)

	require.NoError(t, protocol.WriteHeader(conn, protocol.CmdClose))

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	n, err := conn.Read(make([]byte, 1))
	assert.Zero(t, n)
	assert.ErrorIs(t, err, io.EOF)
}

func TestDummyBlockNonzeroAndStable(t *testing.T) {
	srv := startServer(t, nil)
	c := dialClient(t, srv)

	a, err := c.DummyBlock()
	require.NoError(t, err)
	b, err := c.DummyBlock()
	require.NoError(t, err)

	assert.NotZero(t, a)
	assert.Equal(t, a, b)
}

func TestIsolationAcrossSessions(t *testing.T) {
	srv := startServer(t, nil)

	// Session A violates the protocol and dies.
	bad := dialRaw(t, srv)
	_, err := io.ReadFull(bad, make([]byte, 4+protocol.BannerNameLen))
	require.NoError(t, err)
	_, err = bad.Write(make([]byte, protocol.HeaderLen))
	require.NoError(t, err)

	// Session B is unaffected.
	good := dialClient(t, srv)
	ptr, err := good.DummyBlock()
	require.NoError(t, err)
	assert.NotZero(t, ptr)

	bad.SetReadDeadline(time.Now().Add(5 * time.Second))
	n, err := bad.Read(make([]byte, 1))
	assert.Zero(t, n)
	assert.ErrorIs(t, err, io.EOF)
}

func TestAuditTrailRecordsSession(t *testing.T) {
	store, err := audit.Open(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	defer store.Close()

	srv := startServer(t, store)

	c, err := client.Dial(loopbackAddr(srv))
	require.NoError(t, err)
	_, err = c.DummyBlock()
	require.NoError(t, err)
	require.NoError(t, c.Close())

	// The worker records the close asynchronously to this goroutine.
	require.Eventually(t, func() bool {
		rows, err := store.Sessions()
		return err == nil && len(rows) == 1 && rows[0].CloseReason == "close command"
	}, 5*time.Second, 20*time.Millisecond)
}

//go:build linux

package agent

import (
	"io"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semiotic/agentium/pkg/protocol"
)

const rtldNow = 2

func TestDlopenDlsymCallRoundTrip(t *testing.T) {
	srv := startServer(t, nil)
	c := dialClient(t, srv)

	handle, err := c.Dlopen("libc.so.6", rtldNow)
	require.NoError(t, err)
	if handle == 0 {
		t.Skip("libc.so.6 not loadable on this host")
	}

	addr, err := c.Dlsym(handle, "getpid")
	require.NoError(t, err)
	require.NotZero(t, addr)

	// The agent runs in this test process, so the call returns our pid.
	ret, err := c.Call(addr)
	require.NoError(t, err)
	assert.Equal(t, uint64(os.Getpid()), ret)

	status, err := c.Dlclose(handle)
	require.NoError(t, err)
	assert.Zero(t, status)
}

func TestDlopenUnresolvableReturnsZero(t *testing.T) {
	srv := startServer(t, nil)
	c := dialClient(t, srv)

	handle, err := c.Dlopen("libdoesnotexist.so.99", rtldNow)
	require.NoError(t, err)
	assert.Zero(t, handle)

	// Loader failure carries no error reply; the session just continues.
	ptr, err := c.DummyBlock()
	require.NoError(t, err)
	assert.NotZero(t, ptr)
}

func TestDlsymUnknownSymbolReturnsZero(t *testing.T) {
	srv := startServer(t, nil)
	c := dialClient(t, srv)

	handle, err := c.Dlopen("libc.so.6", rtldNow)
	require.NoError(t, err)
	if handle == 0 {
		t.Skip("libc.so.6 not loadable on this host")
	}
	defer c.Dlclose(handle)

	addr, err := c.Dlsym(handle, "no_such_symbol_in_libc")
	require.NoError(t, err)
	assert.Zero(t, addr)
}

func TestCallIdentitySingleArgument(t *testing.T) {
	// labs(x) == x for small non-negative x proves single-argument
	// marshalling end to end.
	srv := startServer(t, nil)
	c := dialClient(t, srv)

	handle, err := c.Dlopen("libc.so.6", rtldNow)
	require.NoError(t, err)
	if handle == 0 {
		t.Skip("libc.so.6 not loadable on this host")
	}
	defer c.Dlclose(handle)

	addr, err := c.Dlsym(handle, "labs")
	require.NoError(t, err)
	require.NotZero(t, addr)

	ret, err := c.Call(addr, 41)
	require.NoError(t, err)
	assert.Equal(t, uint64(41), ret)
}

func TestCallArityTwelveTerminatesSession(t *testing.T) {
	srv := startServer(t, nil)
	conn := dialRaw(t, srv)

	_, err := io.ReadFull(conn, make([]byte, 4+protocol.BannerNameLen))
	require.NoError(t, err)

	require.NoError(t, protocol.WriteHeader(conn, protocol.CmdCall))
	require.NoError(t, protocol.WriteUint64(conn, 0x1000))
	require.NoError(t, protocol.WriteUint64(conn, 12))

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	n, err := conn.Read(make([]byte, 1))
	assert.Zero(t, n)
	assert.ErrorIs(t, err, io.EOF)
}

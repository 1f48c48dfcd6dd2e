package agent

import (
	"bytes"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semiotic/agentium/pkg/client"
	"github.com/semiotic/agentium/pkg/protocol"
)

// syncBuffer lets the exec relay goroutine and the test share a buffer.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestExecForegroundEchoCommand(t *testing.T) {
	srv := startServer(t, nil)
	c := dialClient(t, srv)

	var out syncBuffer
	res, err := c.Exec([]string{"/bin/echo", "hi"}, nil, nil, &out)
	require.NoError(t, err)
	require.NotNil(t, res)

	// On a PTY the newline comes back as CRLF.
	assert.True(t, strings.HasPrefix(out.String(), "hi\r\n"), "got %q", out.String())
	assert.Zero(t, res.WaitStatus&0xff)
	assert.Zero(t, res.ExitCode())
	assert.NotEqual(t, protocol.SentinelPid, res.Pid)
}

func TestExecForegroundStdinRelay(t *testing.T) {
	srv := startServer(t, nil)
	c := dialClient(t, srv)

	// cat copies stdin to stdout; 0x04 is EOF at the terminal, which ends
	// it. The PTY echoes input, so the line appears in the output stream
	// regardless of cat's copy; both orderings keep the bytes intact.
	stdin := bytes.NewReader([]byte("roundtrip\n\x04"))

	var out syncBuffer
	res, err := c.Exec([]string{"/bin/cat"}, nil, stdin, &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "roundtrip")
	assert.Zero(t, res.ExitCode())
}

func TestExecForegroundExitStatus(t *testing.T) {
	srv := startServer(t, nil)
	c := dialClient(t, srv)

	res, err := c.Exec([]string{"/bin/sh", "-c", "exit 7"}, nil, nil, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, 7, res.ExitCode())
	assert.False(t, res.Signaled())
}

func TestExecForegroundSuppliedEnv(t *testing.T) {
	srv := startServer(t, nil)
	c := dialClient(t, srv)

	var out syncBuffer
	res, err := c.Exec(
		[]string{"/bin/sh", "-c", "echo $AGENT_MARKER"},
		[]string{"PATH=/usr/bin:/bin", "AGENT_MARKER=present"},
		nil, &out)
	require.NoError(t, err)
	assert.Zero(t, res.ExitCode())
	assert.Contains(t, out.String(), "present")
}

func TestExecBackground(t *testing.T) {
	srv := startServer(t, nil)
	c := dialClient(t, srv)

	pid, err := c.ExecBackground([]string{"/bin/true"}, nil)
	require.NoError(t, err)
	assert.NotZero(t, pid)

	// No chunks follow a background spawn; the session is immediately
	// usable for the next command.
	ptr, err := c.DummyBlock()
	require.NoError(t, err)
	assert.NotZero(t, ptr)
}

func TestExecSpawnFailureSentinel(t *testing.T) {
	srv := startServer(t, nil)
	c := dialClient(t, srv)

	_, err := c.Exec([]string{"/definitely/not/a/binary"}, nil, nil, io.Discard)
	assert.ErrorIs(t, err, client.ErrSpawnFailed)

	// Spawn failure is not session-fatal.
	ptr, err := c.DummyBlock()
	require.NoError(t, err)
	assert.NotZero(t, ptr)
}

func TestExecBackgroundSpawnFailureSentinel(t *testing.T) {
	srv := startServer(t, nil)
	c := dialClient(t, srv)

	_, err := c.ExecBackground([]string{"/definitely/not/a/binary"}, nil)
	assert.ErrorIs(t, err, client.ErrSpawnFailed)
}

func TestExecEmptyArgvTerminatesSession(t *testing.T) {
	srv := startServer(t, nil)
	conn := dialRaw(t, srv)

	_, err := io.ReadFull(conn, make([]byte, 4+protocol.BannerNameLen))
	require.NoError(t, err)

	require.NoError(t, protocol.WriteHeader(conn, protocol.CmdExec))
	// background=0, argc=0
	_, err = conn.Write([]byte{0, 0, 0, 0, 0})
	require.NoError(t, err)

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	n, err := conn.Read(make([]byte, 1))
	assert.Zero(t, n)
	assert.ErrorIs(t, err, io.EOF)
}

func TestConcurrentForegroundExecs(t *testing.T) {
	srv := startServer(t, nil)

	var wg sync.WaitGroup
	for _, marker := range []string{"alpha", "bravo", "charlie"} {
		wg.Add(1)
		go func(marker string) {
			defer wg.Done()
			c, err := client.Dial(loopbackAddr(srv))
			if !assert.NoError(t, err) {
				return
			}
			defer c.Close()

			var out syncBuffer
			res, err := c.Exec([]string{"/bin/echo", marker}, nil, nil, &out)
			if !assert.NoError(t, err) {
				return
			}
			assert.Zero(t, res.ExitCode())
			assert.Contains(t, out.String(), marker)
		}(marker)
	}
	wg.Wait()
}

package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSinks(t *testing.T) {
	cfg, err := ParseSinks([]string{"stdout", "syslog", "file:/tmp/agent.log"})
	require.NoError(t, err)
	assert.True(t, cfg.Stdout)
	assert.True(t, cfg.Syslog)
	assert.Equal(t, "/tmp/agent.log", cfg.File)
}

func TestParseSinksEmpty(t *testing.T) {
	cfg, err := ParseSinks(nil)
	require.NoError(t, err)
	assert.Equal(t, Config{}, cfg)
}

func TestParseSinksUnknown(t *testing.T) {
	_, err := ParseSinks([]string{"journald"})
	assert.ErrorIs(t, err, ErrBadSink)
}

func TestParseSinksFileWithoutPath(t *testing.T) {
	_, err := ParseSinks([]string{"file:"})
	assert.ErrorIs(t, err, ErrBadSink)
}

func TestNewFileSinkWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.log")

	log, teardown, err := New(Config{File: path})
	require.NoError(t, err)

	log.Info("listener up")
	teardown()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "listener up")
}

func TestNewNoSinksDiscards(t *testing.T) {
	log, teardown, err := New(Config{})
	require.NoError(t, err)
	defer teardown()

	// Must not panic or write anywhere.
	log.Warn("dropped")
}

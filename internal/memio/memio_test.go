package memio

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPokePeekRoundTrip(t *testing.T) {
	buf := make([]byte, 32)
	addr := uint64(uintptr(unsafe.Pointer(&buf[0])))

	want := []byte("agent was here")
	require.NoError(t, Poke(addr, want))

	got, err := Peek(addr, uint64(len(want)))
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, want, buf[:len(want)])
}

func TestPeekZeroLength(t *testing.T) {
	buf := []byte{1}
	addr := uint64(uintptr(unsafe.Pointer(&buf[0])))

	got, err := Peek(addr, 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestPokeEmptyIsNoop(t *testing.T) {
	buf := []byte{7}
	addr := uint64(uintptr(unsafe.Pointer(&buf[0])))
	require.NoError(t, Poke(addr, nil))
	assert.Equal(t, byte(7), buf[0])
}

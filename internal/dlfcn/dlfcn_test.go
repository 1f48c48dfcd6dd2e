//go:build linux

package dlfcn

import (
	"os"
	"testing"

	"github.com/ebitengine/purego"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openLibc(t *testing.T) uintptr {
	t.Helper()
	h, err := Open("libc.so.6", int(purego.RTLD_NOW|purego.RTLD_GLOBAL))
	if err != nil {
		t.Skipf("libc.so.6 not loadable on this host: %v", err)
	}
	require.NotZero(t, h)
	return h
}

func TestOpenSymCallRoundTrip(t *testing.T) {
	h := openLibc(t)

	addr, err := Sym(h, "getpid")
	require.NoError(t, err)
	require.NotZero(t, addr)

	ret, err := Call(uint64(addr), nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(os.Getpid()), ret)

	assert.Equal(t, uint64(0), Close(h))
}

func TestSymUnknownReturnsZero(t *testing.T) {
	h := openLibc(t)
	defer Close(h)

	addr, err := Sym(h, "definitely_not_a_symbol_here")
	assert.Error(t, err)
	assert.Zero(t, addr)
}

func TestCallIdentityArityOne(t *testing.T) {
	// labs returns its (first and only) argument for non-negative input;
	// enough to prove argument marshalling for arity 1.
	h := openLibc(t)
	defer Close(h)

	addr, err := Sym(h, "labs")
	require.NoError(t, err)

	ret, err := Call(uint64(addr), []uint64{42})
	require.NoError(t, err)
	assert.Equal(t, uint64(42), ret)
}

func TestCallRejectsArityTwelve(t *testing.T) {
	_, err := Call(1, make([]uint64, 12))
	assert.ErrorIs(t, err, ErrTooManyArgs)
}

func TestDummyBlockStable(t *testing.T) {
	a := DummyBlock()
	b := DummyBlock()
	assert.NotZero(t, a)
	assert.Equal(t, a, b)
}

package errx

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errSentinel = errors.New("open widget")

func TestWrapMatchesBoth(t *testing.T) {
	err := Wrap(errSentinel, io.ErrUnexpectedEOF)
	require.Error(t, err)
	assert.ErrorIs(t, err, errSentinel)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestWrapNilCause(t *testing.T) {
	assert.Equal(t, errSentinel, Wrap(errSentinel, nil))
}

func TestWith(t *testing.T) {
	err := With(errSentinel, ": port %d", 5910)
	assert.ErrorIs(t, err, errSentinel)
	assert.Equal(t, "open widget: port 5910", err.Error())
}

package mmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapAnon(t *testing.T) {
	m, err := MapAnon(4096)
	require.NoError(t, err)

	assert.Equal(t, 4096, m.Size())
	buf := m.Bytes()
	require.Len(t, buf, 4096)

	// Anonymous mappings are zero-filled and writable.
	for i, b := range buf {
		if b != 0 {
			t.Fatalf("byte %d not zero: %d", i, b)
		}
	}
	buf[0] = 0xAA
	buf[4095] = 0x55
	assert.Equal(t, byte(0xAA), m.Bytes()[0])
	assert.Equal(t, byte(0x55), m.Bytes()[4095])

	require.NoError(t, m.Advise(AccessRandom))

	require.NoError(t, m.Close())
	assert.Nil(t, m.Bytes())
	assert.ErrorIs(t, m.Advise(AccessWillNeed), ErrClosed)

	// Idempotent.
	require.NoError(t, m.Close())
}

func TestMapAnon_InvalidSize(t *testing.T) {
	_, err := MapAnon(0)
	assert.ErrorIs(t, err, ErrInvalidSize)

	_, err = MapAnon(-1)
	assert.ErrorIs(t, err, ErrInvalidSize)
}

func TestMapAnon_SmallSize(t *testing.T) {
	// Sizes below a page are still served; the slice is trimmed to the request.
	m, err := MapAnon(128)
	require.NoError(t, err)
	defer m.Close()

	assert.Len(t, m.Bytes(), 128)
	assert.Equal(t, 128, cap(m.Bytes()))
}

package memmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		addr uint32
		want Space
	}{
		{0x08000000, SpaceCode},
		{0x20000000, SpaceSRAM},
		{0x3FFFFFFF, SpaceSRAM},
		{0x40010800, SpacePeripheral},
		{0x60000000, SpaceExternalRAM},
		{0xA0000000, SpaceExternalDevice},
		{0xE000E010, SpacePPB},
		{0xFFFFFFFF, SpaceSystem},
	}

	for _, tt := range tests {
		t.Run(tt.want.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.addr))
		})
	}
}

func TestValidateHeap(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		assert.NoError(t, ValidateHeap(DefaultHeapStart, DefaultHeapSize))
	})

	t.Run("external ram", func(t *testing.T) {
		assert.NoError(t, ValidateHeap(ExternalRAMStart, 1<<20))
	})

	t.Run("zero size", func(t *testing.T) {
		assert.ErrorIs(t, ValidateHeap(SRAMStart, 0), ErrInvalidHeap)
	})

	t.Run("code space", func(t *testing.T) {
		assert.ErrorIs(t, ValidateHeap(0x08000000, 64), ErrInvalidHeap)
	})

	t.Run("spans into peripherals", func(t *testing.T) {
		assert.ErrorIs(t, ValidateHeap(SRAMEnd-16, 32), ErrInvalidHeap)
	})

	t.Run("wraps", func(t *testing.T) {
		assert.ErrorIs(t, ValidateHeap(0xFFFFFFF0, 32), ErrInvalidHeap)
	})

	t.Run("end beyond 32 bits", func(t *testing.T) {
		// Agrees with the arena: an end of 1<<32 is not addressable.
		assert.ErrorContains(t, ValidateHeap(0xFFFFFF00, 0x100), "32-bit address space")
	})

	t.Run("ends exactly at space boundary", func(t *testing.T) {
		assert.NoError(t, ValidateHeap(SRAMEnd-16, 16))
	})
}

func TestBitBand(t *testing.T) {
	assert.True(t, InBitBandRegion(0x20000400))
	assert.False(t, InBitBandRegion(0x20100000))
	assert.Equal(t, "external-ram", SpaceExternalRAM.String())
	assert.False(t, SpacePeripheral.Writable())
}

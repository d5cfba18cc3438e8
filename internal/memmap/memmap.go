// Package memmap describes the Cortex-M system address map.
//
// The heap arena is placed by address, so a configuration can be checked
// against the architectural map before any memory is reserved: a heap must
// live in SRAM or external RAM, never in code, peripheral, or system space.
package memmap

import (
	"errors"
	"fmt"
	"math"
)

// Architectural region boundaries (ARMv7-M).
const (
	CodeStart uint32 = 0x00000000
	CodeEnd   uint32 = 0x20000000

	SRAMStart uint32 = 0x20000000
	SRAMEnd   uint32 = 0x40000000

	SRAMBitBandRegionStart uint32 = 0x20000000
	SRAMBitBandRegionEnd   uint32 = 0x20100000
	SRAMBitBandAliasStart  uint32 = 0x22000000
	SRAMBitBandAliasEnd    uint32 = 0x24000000

	PeripheralStart uint32 = 0x40000000
	PeripheralEnd   uint32 = 0x60000000

	ExternalRAMStart uint32 = 0x60000000
	ExternalRAMEnd   uint32 = 0xA0000000

	ExternalDeviceStart uint32 = 0xA0000000
	ExternalDeviceEnd   uint32 = 0xE0000000

	PPBStart uint32 = 0xE0000000
	PPBEnd   uint32 = 0xE0100000

	SystemStart uint32 = 0xE0100000
)

// Defaults match a small STM32F1 part running the heap fixtures.
const (
	DefaultHeapStart uint32 = SRAMStart
	DefaultHeapSize  uint32 = 128
	// DefaultRAMEnd is the top of 20 KiB of on-chip SRAM, where the stack starts.
	DefaultRAMEnd uint32 = 0x20005000
)

// ErrInvalidHeap is returned when a heap placement is not usable.
var ErrInvalidHeap = errors.New("memmap: invalid heap placement")

// Space identifies an architectural region.
type Space uint8

const (
	SpaceCode Space = iota
	SpaceSRAM
	SpacePeripheral
	SpaceExternalRAM
	SpaceExternalDevice
	SpacePPB
	SpaceSystem
)

func (s Space) String() string {
	switch s {
	case SpaceCode:
		return "code"
	case SpaceSRAM:
		return "sram"
	case SpacePeripheral:
		return "peripheral"
	case SpaceExternalRAM:
		return "external-ram"
	case SpaceExternalDevice:
		return "external-device"
	case SpacePPB:
		return "ppb"
	case SpaceSystem:
		return "system"
	default:
		return fmt.Sprintf("space(%d)", uint8(s))
	}
}

// Writable reports whether ordinary data may be placed in the space.
func (s Space) Writable() bool {
	return s == SpaceSRAM || s == SpaceExternalRAM
}

// Classify returns the architectural space containing addr.
func Classify(addr uint32) Space {
	switch {
	case addr < CodeEnd:
		return SpaceCode
	case addr < SRAMEnd:
		return SpaceSRAM
	case addr < PeripheralEnd:
		return SpacePeripheral
	case addr < ExternalRAMEnd:
		return SpaceExternalRAM
	case addr < ExternalDeviceEnd:
		return SpaceExternalDevice
	case addr < PPBEnd:
		return SpacePPB
	default:
		return SpaceSystem
	}
}

// InBitBandRegion reports whether addr can be reached through the SRAM bit-band alias.
func InBitBandRegion(addr uint32) bool {
	return addr >= SRAMBitBandRegionStart && addr < SRAMBitBandRegionEnd
}

// ValidateHeap checks that [start, start+size) is non-empty, that its end
// address fits in 32 bits, and that it lies entirely within one writable space.
func ValidateHeap(start, size uint32) error {
	if size == 0 {
		return fmt.Errorf("%w: zero size", ErrInvalidHeap)
	}
	end := uint64(start) + uint64(size)
	if end > math.MaxUint32 {
		return fmt.Errorf("%w: [%#08x, +%d) ends beyond the 32-bit address space", ErrInvalidHeap, start, size)
	}

	first := Classify(start)
	last := Classify(uint32(end - 1))
	if !first.Writable() {
		return fmt.Errorf("%w: %#08x is in %s space", ErrInvalidHeap, start, first)
	}
	if first != last {
		return fmt.Errorf("%w: [%#08x, %#08x) spans %s and %s", ErrInvalidHeap, start, end, first, last)
	}
	return nil
}

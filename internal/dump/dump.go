package dump

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
)

const (
	magic      = "CMHD"
	version    = 1
	headerSize = 32
	// maxRaw bounds allocations when reading untrusted images.
	maxRaw = 1 << 30
)

var (
	// ErrBadMagic is returned when the input is not a heap image.
	ErrBadMagic = errors.New("dump: bad magic")
	// ErrChecksum is returned when the decoded bytes do not match the stored CRC.
	ErrChecksum = errors.New("dump: checksum mismatch")
	// ErrCorrupt is returned for inconsistent header fields.
	ErrCorrupt = errors.New("dump: corrupt image")
)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// Image is a captured heap.
type Image struct {
	Start  uint32
	End    uint32
	Cursor uint32
	// Data holds [Start, Cursor).
	Data []byte
}

func (img Image) validate() error {
	if img.Start > img.Cursor || img.Cursor > img.End {
		return fmt.Errorf("%w: cursor %#08x outside [%#08x, %#08x]", ErrCorrupt, img.Cursor, img.Start, img.End)
	}
	if uint64(len(img.Data)) != uint64(img.Cursor-img.Start) {
		return fmt.Errorf("%w: %d data bytes for %d used", ErrCorrupt, len(img.Data), img.Cursor-img.Start)
	}
	return nil
}

// Write encodes img to w using compression c and returns the bytes written.
func Write(w io.Writer, img Image, c Compression) (int64, error) {
	if err := img.validate(); err != nil {
		return 0, err
	}

	payload, used, err := compress(img.Data, c)
	if err != nil {
		return 0, err
	}

	var hdr [headerSize]byte
	copy(hdr[0:4], magic)
	binary.LittleEndian.PutUint16(hdr[4:], version)
	hdr[6] = byte(used)
	binary.LittleEndian.PutUint32(hdr[8:], img.Start)
	binary.LittleEndian.PutUint32(hdr[12:], img.End)
	binary.LittleEndian.PutUint32(hdr[16:], img.Cursor)
	binary.LittleEndian.PutUint32(hdr[20:], uint32(len(img.Data)))
	binary.LittleEndian.PutUint32(hdr[24:], crc32.Checksum(img.Data, castagnoli))
	binary.LittleEndian.PutUint32(hdr[28:], uint32(len(payload)))

	n, err := w.Write(hdr[:])
	if err != nil {
		return int64(n), err
	}
	m, err := w.Write(payload)
	return int64(n + m), err
}

// Read decodes an image from r and verifies its checksum.
func Read(r io.Reader) (Image, error) {
	var hdr [headerSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return Image{}, fmt.Errorf("dump: read header: %w", err)
	}
	if string(hdr[0:4]) != magic {
		return Image{}, ErrBadMagic
	}
	if v := binary.LittleEndian.Uint16(hdr[4:]); v != version {
		return Image{}, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, v)
	}

	c := Compression(hdr[6])
	img := Image{
		Start:  binary.LittleEndian.Uint32(hdr[8:]),
		End:    binary.LittleEndian.Uint32(hdr[12:]),
		Cursor: binary.LittleEndian.Uint32(hdr[16:]),
	}
	rawLen := binary.LittleEndian.Uint32(hdr[20:])
	sum := binary.LittleEndian.Uint32(hdr[24:])
	payloadLen := binary.LittleEndian.Uint32(hdr[28:])

	if rawLen > maxRaw || payloadLen > maxRaw {
		return Image{}, fmt.Errorf("%w: length exceeds %d bytes", ErrCorrupt, maxRaw)
	}

	payload := make([]byte, payloadLen)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Image{}, fmt.Errorf("dump: read payload: %w", err)
	}

	data, err := decompress(payload, c, rawLen)
	if err != nil {
		return Image{}, err
	}
	if crc32.Checksum(data, castagnoli) != sum {
		return Image{}, ErrChecksum
	}
	img.Data = data

	if err := img.validate(); err != nil {
		return Image{}, err
	}
	return img, nil
}

// Package dump reads and writes heap images.
//
// An image is the allocated part of a heap, [start, cursor), together with
// the region bounds, so a crashed or halted fixture can be inspected later.
//
// # Format
//
// All integers are little-endian.
//
//	offset  size  field
//	0       4     magic "CMHD"
//	4       2     version (1)
//	6       1     compression (0 none, 1 lz4, 2 zstd)
//	7       1     reserved
//	8       4     region start
//	12      4     region end
//	16      4     cursor
//	20      4     raw length (cursor - start)
//	24      4     CRC32-Castagnoli of the raw bytes
//	28      4     payload length
//	32      n     payload
//
// When compression does not shrink the payload by at least 10% the raw
// bytes are stored and the compression field is 0.
package dump

package dump

import (
	"fmt"
	"io"
	"strings"
)

const rowSize = 16

// Hexdump writes data as 16-byte rows labelled with target addresses starting at base.
//
//	20000000  00 00 00 00 01 00 00 00  02 00 00 00 00 00 00 00  |................|
func Hexdump(w io.Writer, base uint32, data []byte) error {
	var sb strings.Builder
	for off := 0; off < len(data); off += rowSize {
		row := data[off:min(off+rowSize, len(data))]

		sb.Reset()
		fmt.Fprintf(&sb, "%08x  ", base+uint32(off))
		for i := 0; i < rowSize; i++ {
			if i == rowSize/2 {
				sb.WriteByte(' ')
			}
			if i < len(row) {
				fmt.Fprintf(&sb, "%02x ", row[i])
			} else {
				sb.WriteString("   ")
			}
		}
		sb.WriteString(" |")
		for _, b := range row {
			if b >= 0x20 && b < 0x7f {
				sb.WriteByte(b)
			} else {
				sb.WriteByte('.')
			}
		}
		sb.WriteString("|\n")

		if _, err := io.WriteString(w, sb.String()); err != nil {
			return err
		}
	}
	return nil
}

package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

const defaultDumpWidth = 80

// dumpWidth returns the column count of w if it is a terminal.
func dumpWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return defaultDumpWidth
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width <= 0 {
		return defaultDumpWidth
	}
	return width
}

// bytesPerLine returns the widest power-of-two row, between 8 and 64 bytes,
// that fits in width columns. A row of n bytes takes 10 columns of offset,
// 3n of hex, a separator and n of ASCII.
func bytesPerLine(width int) int {
	n := 8
	for n < 64 && 10+4*(2*n)+3 <= width {
		n *= 2
	}
	return n
}

// hexdump writes data as offset, hex and ASCII columns. base is the
// offset of data[0].
func hexdump(w io.Writer, data []byte, base uint64, width int) {
	n := bytesPerLine(width)
	var line strings.Builder
	for off := 0; off < len(data); off += n {
		row := data[off:min(off+n, len(data))]

		line.Reset()
		fmt.Fprintf(&line, "%08x  ", base+uint64(off))
		for i := range n {
			if i < len(row) {
				fmt.Fprintf(&line, "%02x ", row[i])
			} else {
				line.WriteString("   ")
			}
		}
		line.WriteString(" |")
		for _, b := range row {
			if b < 0x20 || b > 0x7e {
				b = '.'
			}
			line.WriteByte(b)
		}
		line.WriteString("|\n")
		io.WriteString(w, line.String())
	}
}

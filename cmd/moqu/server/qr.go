package server

import (
	"strings"

	"github.com/juju/errors"
	"github.com/skip2/go-qrcode"
)

// renderQR draws QR code with half block characters, two modules rows per line.
// Dark modules are printed as blocks, so on dark terminal the code is inverted;
// phone scanners accept both.
func renderQR(content string) (string, error) {
	q, err := qrcode.New(content, qrcode.Medium)
	if err != nil {
		return "", errors.Annotate(err, "qrcode")
	}
	bitmap := q.Bitmap()
	var b strings.Builder
	for y := 0; y < len(bitmap); y += 2 {
		for x := range bitmap[y] {
			top := bitmap[y][x]
			bottom := y+1 < len(bitmap) && bitmap[y+1][x]
			switch {
			case top && bottom:
				b.WriteString("█")
			case top:
				b.WriteString("▀")
			case bottom:
				b.WriteString("▄")
			default:
				b.WriteByte(' ')
			}
		}
		b.WriteByte('\n')
	}
	return b.String(), nil
}

package escpos

import "unicode/utf8"

// MaxQRBytes bounds the data stored in the printer's QR symbol buffer.
const MaxQRBytes = 700

const (
	qrModuleSize = 6
	qrErrorLevel = 48 // '0', level L
)

// QRCode stores data in the symbol buffer (GS ( k, model 2) and prints it.
// Data longer than MaxQRBytes is cut at the last rune boundary that fits.
func QRCode(data string) []byte {
	data = truncateUTF8(data, MaxQRBytes)
	if data == "" {
		return nil
	}
	n := len(data) + 3

	out := make([]byte, 0, len(data)+40)
	out = append(out, gs, '(', 'k', 4, 0, '1', 'A', '2', 0)
	out = append(out, gs, '(', 'k', 3, 0, '1', 'C', qrModuleSize)
	out = append(out, gs, '(', 'k', 3, 0, '1', 'E', qrErrorLevel)
	out = append(out, gs, '(', 'k', byte(n&0xFF), byte(n>>8), '1', 'P', '0')
	out = append(out, data...)
	return append(out, gs, '(', 'k', 3, 0, '1', 'Q', '0')
}

func truncateUTF8(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	n := limit
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

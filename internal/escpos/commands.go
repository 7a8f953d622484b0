// Package escpos compiles receipts and device commands into the ESC/POS
// byte streams understood by common thermal receipt printers.
//
// Everything in this package is a pure function of its arguments: the same
// payload, profile and options always produce the same bytes.
package escpos

import "receipt-print-gateway/internal/model"

const (
	esc = 0x1B
	gs  = 0x1D
	lf  = 0x0A
)

// Alignment values for ESC a.
const (
	AlignLeft   = 0
	AlignCenter = 1
	AlignRight  = 2
)

// MaxFeedLines bounds ESC d.
const MaxFeedLines = 10

// Fixed cut sequences (GS V m).
var (
	CutPartialBytes = []byte{gs, 'V', 0x01}
	CutFullBytes    = []byte{gs, 'V', 0x00}
)

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Init is ESC @.
func Init() []byte {
	return []byte{esc, '@'}
}

// Align is ESC a n, n clamped to 0..2.
func Align(mode int) []byte {
	return []byte{esc, 'a', byte(clamp(mode, AlignLeft, AlignRight))}
}

// Bold is ESC E n.
func Bold(on bool) []byte {
	if on {
		return []byte{esc, 'E', 1}
	}
	return []byte{esc, 'E', 0}
}

// Feed is ESC d n, n clamped to 0..10.
func Feed(lines int) []byte {
	return []byte{esc, 'd', byte(clamp(lines, 0, MaxFeedLines))}
}

// Cut returns the full cut for "full" and the partial cut for anything else.
func Cut(mode string) []byte {
	if model.NormalizeCutMode(mode) == model.CutFull {
		return append([]byte(nil), CutFullBytes...)
	}
	return append([]byte(nil), CutPartialBytes...)
}

// DrawerKick is ESC p m t1 t2 with m clamped to 0..1 and t1, t2 to 0..255.
func DrawerKick(pulse model.KickPulse) []byte {
	return []byte{
		esc, 'p',
		byte(clamp(pulse.M, 0, 1)),
		byte(clamp(pulse.T1, 0, 255)),
		byte(clamp(pulse.T2, 0, 255)),
	}
}

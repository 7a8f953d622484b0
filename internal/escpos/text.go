package escpos

import (
	"bytes"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/unicode/norm"
)

// LineWidth is the number of characters on one printed line (font A, 80mm).
const LineWidth = 42

// CurrencyCode is appended to every monetary value.
const CurrencyCode = "EUR"

const (
	truncationMarker = '.'
	substitute       = '?'
	decimalSeparator = ","
	groupSeparator   = "\u00a0"
)

var codePage = charmap.CodePage850

// encodeText trims s and re-encodes it through code page 850. Runes the code
// page lacks fall back to their decomposed base letter, then to '?'. Control
// characters become spaces so a value can never break a line on its own.
func encodeText(s string) []byte {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	out := make([]byte, 0, len(s))
	for _, r := range s {
		out = append(out, encodeRune(r))
	}
	return out
}

func encodeRune(r rune) byte {
	if r < 0x20 || r == 0x7F {
		return ' '
	}
	if b, ok := codePage.EncodeRune(r); ok {
		return b
	}
	for _, base := range norm.NFD.String(string(r)) {
		if base != r {
			if b, ok := codePage.EncodeRune(base); ok && base >= 0x20 {
				return b
			}
		}
		break
	}
	return substitute
}

// fitWidth truncates b to width, replacing the last kept byte with the
// truncation marker when anything was cut.
func fitWidth(b []byte, width int) []byte {
	if width <= 0 {
		return nil
	}
	if len(b) <= width {
		return b
	}
	if width == 1 {
		return b[:1]
	}
	out := make([]byte, 0, width)
	out = append(out, b[:width-1]...)
	return append(out, truncationMarker)
}

// twoColumn places left flush-left and right flush-right on one line.
// When they do not fit, the label gives way first.
func twoColumn(left, right string) []byte {
	l := encodeText(left)
	r := encodeText(right)
	if len(r) == 0 {
		return fitWidth(l, LineWidth)
	}
	if len(l)+1+len(r) <= LineWidth {
		out := make([]byte, 0, LineWidth)
		out = append(out, l...)
		out = append(out, bytes.Repeat([]byte{' '}, LineWidth-len(l)-len(r))...)
		return append(out, r...)
	}

	keepLeft := LineWidth - len(r) - 1
	if keepLeft < 0 {
		keepLeft = 0
	}
	out := make([]byte, 0, LineWidth)
	out = append(out, fitWidth(l, keepLeft)...)
	out = append(out, ' ')
	return append(out, fitWidth(r, min(len(r), LineWidth-1))...)
}

func rule() []byte {
	return bytes.Repeat([]byte{'-'}, LineWidth)
}

// FormatMoney renders d with two decimals, pt-PT separators and the currency
// code: 1234.5 -> "1 234,50 EUR" (no-break space).
func FormatMoney(d decimal.Decimal) string {
	s := d.StringFixed(2)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	intPart, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteString(groupSeparator)
		}
		b.WriteRune(c)
	}
	b.WriteString(decimalSeparator)
	b.WriteString(frac)
	b.WriteString(" ")
	b.WriteString(CurrencyCode)
	return b.String()
}

// FormatQty renders whole quantities without decimals and everything else
// with at most three, trailing zeros removed.
func FormatQty(d decimal.Decimal) string {
	whole := d.Truncate(0)
	if d.Equal(whole) {
		return whole.String()
	}
	return d.Round(3).String()
}

package parse

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// Anything that cannot be part of a number: currency codes, symbols, letters.
	noiseRe = regexp.MustCompile(`[^\d.,\-]+`)
	signRe  = regexp.MustCompile(`^-?[\d.,]+$`)
)

// ParseAmount reads a monetary or quantity value the way point-of-sale
// clients tend to send it: "3.00", "3,00", "EUR 1 234,56", "1.234,56", "-0,5".
//
// When both separators are present the right-most one is the decimal mark.
// A single comma is a decimal mark (pt-PT); repeated commas or dots are
// group separators.
func ParseAmount(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero, fmt.Errorf("empty amount")
	}

	// Group separators may be plain or non-breaking spaces; drop them with the noise.
	s = noiseRe.ReplaceAllString(s, "")
	if !signRe.MatchString(s) {
		return decimal.Zero, fmt.Errorf("unable to parse amount: %q", raw)
	}

	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	commas := strings.Count(s, ",")
	dots := strings.Count(s, ".")
	switch {
	case commas > 0 && dots > 0:
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case commas == 1:
		s = strings.Replace(s, ",", ".", 1)
	case commas > 1:
		s = strings.ReplaceAll(s, ",", "")
	case dots > 1:
		s = strings.ReplaceAll(s, ".", "")
	}

	if strings.Count(s, ".") > 1 || s == "" || s == "." {
		return decimal.Zero, fmt.Errorf("unable to parse amount: %q", raw)
	}
	if neg {
		s = "-" + s
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("unable to parse amount %q: %w", raw, err)
	}
	return d, nil
}

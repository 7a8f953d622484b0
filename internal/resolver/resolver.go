// Package resolver picks the printer profile a request is meant for.
package resolver

import (
	"fmt"
	"strings"

	"receipt-print-gateway/config"
	"receipt-print-gateway/internal/model"
)

// Kind classifies a resolution failure.
type Kind int

const (
	NotFound Kind = iota + 1
	Disabled
	NoPrintersConfigured
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not_found"
	case Disabled:
		return "disabled"
	case NoPrintersConfigured:
		return "no_printers_configured"
	default:
		return "unknown"
	}
}

// Error is returned when no usable profile matches a request.
type Error struct {
	Kind      Kind
	PrinterID string
}

func (e *Error) Error() string {
	switch e.Kind {
	case NotFound:
		return fmt.Sprintf("Printer '%s' not found.", e.PrinterID)
	case Disabled:
		return fmt.Sprintf("Printer '%s' is disabled.", e.PrinterID)
	default:
		return "No enabled printer configured."
	}
}

// Resolve returns the profile for requestedID. A blank request falls back to
// the configured default, then to the first enabled profile. Ids compare
// case-insensitively.
func Resolve(cfg config.GatewayConfig, requestedID string) (model.PrinterProfile, error) {
	id := strings.TrimSpace(requestedID)
	if id == "" {
		id = strings.TrimSpace(cfg.DefaultPrinterID)
	}

	if id != "" {
		for _, p := range cfg.Printers {
			if !strings.EqualFold(strings.TrimSpace(p.ID), id) {
				continue
			}
			if !p.Enabled {
				return model.PrinterProfile{}, &Error{Kind: Disabled, PrinterID: p.ID}
			}
			return p, nil
		}
		return model.PrinterProfile{}, &Error{Kind: NotFound, PrinterID: id}
	}

	for _, p := range cfg.Printers {
		if p.Enabled {
			return p, nil
		}
	}
	return model.PrinterProfile{}, &Error{Kind: NoPrintersConfigured}
}

// Package transport delivers compiled byte streams to a printer.
package transport

import (
	"context"
	"fmt"
	"time"

	"receipt-print-gateway/internal/model"
)

// Timeout bounds applied to every send.
const (
	MinTimeout = 500 * time.Millisecond
	MaxTimeout = 15 * time.Second
)

// Transport sends one payload to one printer.
type Transport interface {
	Send(ctx context.Context, profile model.PrinterProfile, payload []byte, timeout time.Duration) error
}

// Error reports which step failed for which printer.
type Error struct {
	Op      string
	Printer string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Printer, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ClampTimeout limits d to MinTimeout..MaxTimeout.
func ClampTimeout(d time.Duration) time.Duration {
	if d < MinTimeout {
		return MinTimeout
	}
	if d > MaxTimeout {
		return MaxTimeout
	}
	return d
}

func printerLabel(p model.PrinterProfile) string {
	if p.Name != "" {
		return p.Name
	}
	return p.ID
}

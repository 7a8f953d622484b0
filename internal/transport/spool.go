package transport

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"receipt-print-gateway/internal/model"
	"receipt-print-gateway/internal/spooler"
)

// DocumentName is the job title shown in the print queue.
const DocumentName = "Print Gateway Job"

// Spool hands the payload to a local raw print queue.
type Spool struct {
	spooler spooler.Spooler
}

// NewSpool returns a transport writing through s.
func NewSpool(s spooler.Spooler) *Spool {
	return &Spool{spooler: s}
}

// Send opens the profile's queue and writes payload as one raw document
// within timeout. An empty payload sends nothing. ctx is only checked before
// the queue is opened; once started, the hand-off is bounded by timeout alone.
func (s *Spool) Send(ctx context.Context, profile model.PrinterProfile, payload []byte, timeout time.Duration) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	queue := strings.TrimSpace(profile.USB.PrinterName)
	label := printerLabel(profile)
	if queue == "" {
		return &Error{Op: "config", Printer: label,
			Err: fmt.Errorf("printer '%s' has no spooler printer name configured", label)}
	}
	if len(payload) == 0 {
		return nil
	}

	docCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ClampTimeout(timeout))
	defer cancel()

	h, err := s.spooler.Open(docCtx, queue)
	if err != nil {
		return &Error{Op: "open", Printer: label, Err: err}
	}
	defer func() {
		if cerr := h.Close(); cerr != nil && err == nil {
			err = &Error{Op: "close", Printer: label, Err: cerr}
		}
	}()

	if err := h.StartDoc(DocumentName, spooler.DataTypeRaw); err != nil {
		return &Error{Op: "start document", Printer: label, Err: err}
	}
	if err := h.StartPage(); err != nil {
		return &Error{Op: "start page", Printer: label, Err: err}
	}
	n, err := h.Write(payload)
	if err != nil {
		return &Error{Op: "write", Printer: label, Err: err}
	}
	if n != len(payload) {
		return &Error{Op: "write", Printer: label, Err: fmt.Errorf("%w: %d of %d bytes", io.ErrShortWrite, n, len(payload))}
	}
	if err := h.EndPage(); err != nil {
		return &Error{Op: "end page", Printer: label, Err: err}
	}
	if err := h.EndDoc(); err != nil {
		return &Error{Op: "end document", Printer: label, Err: err}
	}
	return nil
}

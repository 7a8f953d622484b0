package dispatch

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"receipt-print-gateway/internal/model"
	"receipt-print-gateway/internal/transport"
)

// Operation names what a job does to the printer.
type Operation int

const (
	OpReceipt Operation = iota
	OpDrawer
	OpCut
	OpTest
	OpRaw
)

func (o Operation) String() string {
	switch o {
	case OpReceipt:
		return "Receipt"
	case OpDrawer:
		return "Drawer"
	case OpCut:
		return "Cut"
	case OpTest:
		return "Test"
	case OpRaw:
		return "Raw"
	default:
		return "Unknown"
	}
}

// MaxRetryCount bounds Job.RetryCount.
const MaxRetryCount = 5

// Job is one payload bound for one printer.
type Job struct {
	ID         string
	Printer    model.PrinterProfile
	Payload    []byte
	RetryCount int
	Timeout    time.Duration
	Operation  Operation
}

// Result is what a job's caller receives.
type Result = model.JobResult

// NewJob returns a job with a fresh id and clamped retry and timeout values.
func NewJob(printer model.PrinterProfile, op Operation, payload []byte, retryCount int, timeout time.Duration) Job {
	return Job{
		ID:         NewJobID(),
		Printer:    printer,
		Payload:    payload,
		RetryCount: retryCount,
		Timeout:    timeout,
		Operation:  op,
	}.normalized()
}

// NewJobID returns 32 lower-case hex characters.
func NewJobID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func (j Job) normalized() Job {
	if j.ID == "" {
		j.ID = NewJobID()
	}
	j.RetryCount = max(0, min(j.RetryCount, MaxRetryCount))
	j.Timeout = transport.ClampTimeout(j.Timeout)
	return j
}

// attempts is the number of sends a job gets: one plus its retries.
func (j Job) attempts() int {
	return max(1, j.RetryCount+1)
}

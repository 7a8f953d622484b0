// Package spooler hands raw byte streams to a locally registered print queue.
package spooler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// DataTypeRaw marks a document the queue must pass through untouched.
const DataTypeRaw = "RAW"

// Spooler opens print queues by name.
type Spooler interface {
	Open(ctx context.Context, queue string) (Handle, error)
}

// Handle is one open queue. Calls follow the order
// StartDoc, StartPage, Write, EndPage, EndDoc, Close.
type Handle interface {
	StartDoc(name, dataType string) error
	StartPage() error
	Write(p []byte) (int, error)
	EndPage() error
	EndDoc() error
	Close() error
}

// Runner executes a command with stdin and returns its combined output.
type Runner func(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, error)

// ExecRunner runs the command with os/exec.
func ExecRunner(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	return cmd.CombinedOutput()
}

// CUPS submits documents with lp -o raw.
type CUPS struct {
	Command string
	Run     Runner
}

// NewCUPS returns a spooler using the lp binary on PATH.
func NewCUPS() *CUPS {
	return &CUPS{Command: "lp", Run: ExecRunner}
}

var (
	ErrNoDocument = errors.New("no document started")
	ErrClosed     = errors.New("handle closed")
)

// Open validates the queue name. The queue itself is contacted on EndDoc.
func (c *CUPS) Open(ctx context.Context, queue string) (Handle, error) {
	queue = strings.TrimSpace(queue)
	if queue == "" {
		return nil, errors.New("queue name is required")
	}
	return &cupsJob{ctx: ctx, cups: c, queue: queue}, nil
}

type cupsJob struct {
	ctx    context.Context
	cups   *CUPS
	queue  string
	title  string
	raw    bool
	inDoc  bool
	closed bool
	buf    bytes.Buffer
}

func (j *cupsJob) StartDoc(name, dataType string) error {
	if j.closed {
		return ErrClosed
	}
	j.title = name
	j.raw = strings.EqualFold(dataType, DataTypeRaw)
	j.inDoc = true
	j.buf.Reset()
	return nil
}

func (j *cupsJob) StartPage() error {
	if !j.inDoc {
		return ErrNoDocument
	}
	return nil
}

func (j *cupsJob) Write(p []byte) (int, error) {
	if !j.inDoc {
		return 0, ErrNoDocument
	}
	return j.buf.Write(p)
}

func (j *cupsJob) EndPage() error {
	if !j.inDoc {
		return ErrNoDocument
	}
	return nil
}

// EndDoc submits the buffered document.
func (j *cupsJob) EndDoc() error {
	if !j.inDoc {
		return ErrNoDocument
	}
	j.inDoc = false

	args := []string{"-d", j.queue}
	if j.title != "" {
		args = append(args, "-t", j.title)
	}
	if j.raw {
		args = append(args, "-o", "raw")
	}
	out, err := j.cups.Run(j.ctx, j.buf.Bytes(), j.cups.Command, args...)
	j.buf.Reset()
	if err != nil {
		if msg := strings.TrimSpace(string(out)); msg != "" {
			return fmt.Errorf("%s: %w: %s", j.cups.Command, err, msg)
		}
		return fmt.Errorf("%s: %w", j.cups.Command, err)
	}
	return nil
}

func (j *cupsJob) Close() error {
	j.closed = true
	j.inDoc = false
	j.buf.Reset()
	return nil
}

// Package dispatch runs print jobs through one queue per printer.
//
// Each printer id gets its own goroutine and buffered channel, created on the
// first job and kept until Close. Jobs for one printer run strictly in
// submission order; different printers never wait on each other.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"receipt-print-gateway/internal/diag"
	"receipt-print-gateway/internal/model"
	"receipt-print-gateway/internal/transport"
)

// Defaults for Options.
const (
	DefaultQueueCapacity = 256
	DefaultShutdownGrace = 2 * time.Second
)

// Fixed result messages.
const (
	SuccessMessage       = "Printed"
	InternalFaultMessage = "Unexpected queue failure."
)

var (
	ErrClosed          = errors.New("dispatcher is closed")
	ErrCanceled        = errors.New("print job canceled")
	ErrNoPrinterID     = errors.New("printer id is required")
	ErrShutdownTimeout = errors.New("print workers did not stop in time")
)

// Backoff returns the pause after a failed attempt (1-based).
type Backoff func(attempt int) time.Duration

// DefaultBackoff waits 180ms per attempt, capped at one second.
func DefaultBackoff(attempt int) time.Duration {
	return min(time.Second, time.Duration(attempt)*180*time.Millisecond)
}

// Options configures a Dispatcher. Network and USB are required.
type Options struct {
	Network       transport.Transport
	USB           transport.Transport
	Diagnostics   *diag.Diagnostics
	Logger        logrus.FieldLogger
	QueueCapacity int
	ShutdownGrace time.Duration
	Backoff       Backoff
	Now           func() time.Time
}

// Dispatcher owns the per-printer workers.
type Dispatcher struct {
	network  transport.Transport
	usb      transport.Transport
	diag     *diag.Diagnostics
	log      logrus.FieldLogger
	backoff  Backoff
	now      func() time.Time
	capacity int
	grace    time.Duration

	mu      sync.Mutex
	workers map[string]*worker
	hooks   []func(Result)
	closed  bool

	quit    chan struct{}
	stopCtx context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup
}

type worker struct {
	key   string
	queue chan *pending
}

// pending is a queued job plus the slot its result is delivered to.
type pending struct {
	job  Job
	ctx  context.Context
	done chan Result
}

// New returns a dispatcher with no workers yet.
func New(opts Options) *Dispatcher {
	if opts.Diagnostics == nil {
		opts.Diagnostics = diag.New(diag.DefaultErrorCapacity, opts.Now)
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.QueueCapacity <= 0 {
		opts.QueueCapacity = DefaultQueueCapacity
	}
	if opts.ShutdownGrace <= 0 {
		opts.ShutdownGrace = DefaultShutdownGrace
	}
	if opts.Backoff == nil {
		opts.Backoff = DefaultBackoff
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	stopCtx, stop := context.WithCancel(context.Background())
	return &Dispatcher{
		network:  opts.Network,
		usb:      opts.USB,
		diag:     opts.Diagnostics,
		log:      opts.Logger.WithField("module", "dispatch"),
		backoff:  opts.Backoff,
		now:      opts.Now,
		capacity: opts.QueueCapacity,
		grace:    opts.ShutdownGrace,
		workers:  make(map[string]*worker),
		quit:     make(chan struct{}),
		stopCtx:  stopCtx,
		stop:     stop,
	}
}

// Diagnostics returns the cache the dispatcher reports into.
func (d *Dispatcher) Diagnostics() *diag.Diagnostics {
	return d.diag
}

// OnResult registers fn to receive every recorded result. Hooks run on the
// printer's worker goroutine and must not block.
func (d *Dispatcher) OnResult(fn func(Result)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hooks = append(d.hooks, fn)
}

// Enqueue queues job on its printer and waits for the result. If ctx ends
// first the call returns ErrCanceled at once and the worker later skips the
// job without running it.
func (d *Dispatcher) Enqueue(ctx context.Context, job Job) (Result, error) {
	if strings.TrimSpace(job.Printer.ID) == "" {
		return Result{}, ErrNoPrinterID
	}
	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrCanceled, err)
	}
	job = job.normalized()

	w, err := d.workerFor(job.Printer.ID)
	if err != nil {
		return Result{}, err
	}

	p := &pending{job: job, ctx: ctx, done: make(chan Result, 1)}
	d.diag.Accepted(w.key)
	select {
	case w.queue <- p:
	case <-ctx.Done():
		d.diag.Finished(w.key)
		return Result{}, fmt.Errorf("%w: %w", ErrCanceled, ctx.Err())
	case <-d.quit:
		d.diag.Finished(w.key)
		return Result{}, ErrClosed
	}

	select {
	case r := <-p.done:
		return r, nil
	case <-ctx.Done():
		return Result{}, fmt.Errorf("%w: %w", ErrCanceled, ctx.Err())
	case <-d.quit:
		return Result{}, ErrClosed
	}
}

func (d *Dispatcher) workerFor(printerID string) (*worker, error) {
	key := strings.ToLower(strings.TrimSpace(printerID))

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, ErrClosed
	}
	if w, ok := d.workers[key]; ok {
		return w, nil
	}

	w := &worker{key: key, queue: make(chan *pending, d.capacity)}
	d.workers[key] = w
	d.diag.Track(key)
	d.wg.Add(1)
	go d.run(w)
	d.log.WithField("printer", key).Debug("print worker started")
	return w, nil
}

func (d *Dispatcher) run(w *worker) {
	defer d.wg.Done()
	for {
		select {
		case <-d.quit:
			d.drain(w)
			return
		case p := <-w.queue:
			d.process(w, p)
		}
	}
}

// drain discards jobs still queued at shutdown. Their callers have already
// returned ErrClosed.
func (d *Dispatcher) drain(w *worker) {
	for {
		select {
		case p := <-w.queue:
			d.diag.Finished(w.key)
			d.log.WithFields(logrus.Fields{
				"printer": p.job.Printer.ID,
				"job":     p.job.ID,
			}).Info("print job dropped at shutdown")
		default:
			return
		}
	}
}

func (d *Dispatcher) process(w *worker, p *pending) {
	defer d.diag.Finished(w.key)
	if d.stopCtx.Err() != nil {
		d.log.WithFields(logrus.Fields{
			"printer": p.job.Printer.ID,
			"job":     p.job.ID,
		}).Info("print job dropped at shutdown")
		return
	}

	ctx, cancel := context.WithCancel(p.ctx)
	stopWatch := context.AfterFunc(d.stopCtx, cancel)
	defer func() {
		stopWatch()
		cancel()
	}()

	res, canceled := d.safeExecute(ctx, p.job)
	if canceled {
		// The caller has already returned ErrCanceled or ErrClosed.
		d.log.WithFields(logrus.Fields{
			"printer":   p.job.Printer.ID,
			"job":       p.job.ID,
			"operation": p.job.Operation.String(),
			"attempts":  res.Attempts,
		}).Info("print job canceled")
		return
	}
	d.diag.Record(res)
	d.notify(res)
	p.done <- res
}

// safeExecute turns a panic anywhere in the job into a failure result.
func (d *Dispatcher) safeExecute(ctx context.Context, job Job) (res Result, canceled bool) {
	attempt := 1
	defer func() {
		if r := recover(); r != nil {
			d.log.WithFields(logrus.Fields{
				"printer": job.Printer.ID,
				"job":     job.ID,
				"attempt": attempt,
				"panic":   fmt.Sprint(r),
			}).Error("print worker recovered from panic")
			res = d.result(job, false, InternalFaultMessage, attempt)
			canceled = false
		}
	}()
	return d.execute(ctx, job, &attempt)
}

// execute runs the send loop, keeping *current at the attempt in progress.
func (d *Dispatcher) execute(ctx context.Context, job Job, current *int) (Result, bool) {
	attempts := job.attempts()
	tr := d.transportFor(job.Printer)
	logger := d.log.WithFields(logrus.Fields{
		"printer":   job.Printer.ID,
		"job":       job.ID,
		"operation": job.Operation.String(),
	})

	for attempt := 1; attempt <= attempts; attempt++ {
		*current = attempt
		if ctx.Err() != nil {
			return d.result(job, false, "Canceled", attempt-1), true
		}

		err := tr.Send(ctx, job.Printer, job.Payload, job.Timeout)
		if err == nil {
			return d.result(job, true, SuccessMessage, attempt), false
		}
		if ctx.Err() != nil {
			return d.result(job, false, "Canceled", attempt), true
		}

		logger.WithError(err).WithField("attempt", fmt.Sprintf("%d/%d", attempt, attempts)).Warn("print attempt failed")
		if attempt == attempts {
			return d.result(job, false, err.Error(), attempt), false
		}

		timer := time.NewTimer(d.backoff(attempt))
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return d.result(job, false, "Canceled", attempt), true
		}
	}
	return d.result(job, false, InternalFaultMessage, attempts), false
}

func (d *Dispatcher) transportFor(p model.PrinterProfile) transport.Transport {
	if p.NormalizedMode() == model.ModeNetwork {
		return d.network
	}
	return d.usb
}

func (d *Dispatcher) result(job Job, ok bool, message string, attempts int) Result {
	return Result{
		OK:          ok,
		Message:     message,
		PrinterID:   job.Printer.ID,
		JobID:       job.ID,
		Attempts:    attempts,
		Operation:   job.Operation.String(),
		CompletedAt: d.now(),
	}
}

func (d *Dispatcher) notify(r Result) {
	d.mu.Lock()
	hooks := append([]func(Result){}, d.hooks...)
	d.mu.Unlock()

	for _, fn := range hooks {
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					d.log.WithField("panic", fmt.Sprint(rec)).Error("result hook panicked")
				}
			}()
			fn(r)
		}()
	}
}

// Close stops accepting jobs, cancels running ones and waits for the workers
// to exit, at most until ctx ends or the shutdown grace period passes.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.quit)
	d.stop()
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(d.grace)
	defer timer.Stop()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrShutdownTimeout
	}
}

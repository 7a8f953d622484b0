// Package history persists job results to the store in the background.
package history

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"receipt-print-gateway/internal/model"
	"receipt-print-gateway/internal/store"
)

// Defaults for NewRecorder.
const (
	DefaultBuffer        = 256
	DefaultBatchSize     = 32
	DefaultFlushInterval = 2 * time.Second
)

// Recorder buffers results and writes them in batches.
type Recorder struct {
	store    store.Store
	log      logrus.FieldLogger
	results  chan model.JobResult
	batch    int
	interval time.Duration
}

// NewRecorder returns a recorder with a buffer of the given size.
func NewRecorder(s store.Store, buffer int, log logrus.FieldLogger) *Recorder {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Recorder{
		store:    s,
		log:      log.WithField("module", "history"),
		results:  make(chan model.JobResult, buffer),
		batch:    DefaultBatchSize,
		interval: DefaultFlushInterval,
	}
}

// Observe queues r for persistence. It never blocks the print path; when
// the buffer is full the result is dropped and logged.
func (r *Recorder) Observe(res model.JobResult) {
	select {
	case r.results <- res:
	default:
		r.log.WithFields(logrus.Fields{"printer": res.PrinterID, "job": res.JobID}).Warn("history buffer full, dropping result")
	}
}

// Run drains the buffer until ctx is done, then flushes what is left.
func (r *Recorder) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	pending := make([]model.JobRecord, 0, r.batch)
	for {
		select {
		case res := <-r.results:
			pending = append(pending, res.Record())
			if len(pending) >= r.batch {
				pending = r.flush(pending)
			}
		case <-ticker.C:
			pending = r.flush(pending)
		case <-ctx.Done():
			for {
				select {
				case res := <-r.results:
					pending = append(pending, res.Record())
				default:
					r.flush(pending)
					r.log.Info("history recorder stopped")
					return
				}
			}
		}
	}
}

func (r *Recorder) flush(pending []model.JobRecord) []model.JobRecord {
	if len(pending) == 0 {
		return pending
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.store.RecordJobs(ctx, pending); err != nil {
		r.log.WithError(err).WithField("count", len(pending)).Error("failed to record job history")
	}
	return pending[:0]
}

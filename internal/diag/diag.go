// Package diag keeps the live view of the print queues that /health reports:
// the latest result per printer, a bounded log of recent failures, queue
// depth and network reachability.
package diag

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"receipt-print-gateway/internal/model"
)

// DefaultErrorCapacity is the number of failure lines kept.
const DefaultErrorCapacity = 120

// MaxRecentErrors bounds a single RecentErrors read.
const MaxRecentErrors = 100

const stampLayout = "2006-01-02 15:04:05"

// Reachability is the last probe outcome for a network printer.
type Reachability struct {
	Reachable bool      `json:"reachable"`
	CheckedAt time.Time `json:"checkedAt"`
	Error     string    `json:"error,omitempty"`
}

// Diagnostics is safe for concurrent use. All state sits behind one mutex
// and no method calls out while holding it.
type Diagnostics struct {
	mu           sync.Mutex
	now          func() time.Time
	capacity     int
	latest       map[string]model.JobResult
	errors       []string
	depth        map[string]int
	reachability map[string]Reachability
}

// New returns an empty cache keeping up to capacity failure lines.
// now may be nil.
func New(capacity int, now func() time.Time) *Diagnostics {
	if capacity <= 0 {
		capacity = DefaultErrorCapacity
	}
	if now == nil {
		now = time.Now
	}
	return &Diagnostics{
		now:          now,
		capacity:     capacity,
		latest:       make(map[string]model.JobResult),
		errors:       make([]string, 0, capacity),
		depth:        make(map[string]int),
		reachability: make(map[string]Reachability),
	}
}

// Record stores r as the latest result for its printer and, for failures,
// appends "[yyyy-MM-dd HH:mm:ss] <printer>: <message>" to the error log.
func (d *Diagnostics) Record(r model.JobResult) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if r.PrinterID != "" {
		d.latest[r.PrinterID] = r
	}
	if r.OK {
		return
	}
	d.pushError(fmt.Sprintf("[%s] %s: %s", d.now().Format(stampLayout), r.PrinterID, r.Message))
}

func (d *Diagnostics) pushError(line string) {
	if len(d.errors) >= d.capacity {
		n := copy(d.errors, d.errors[len(d.errors)-d.capacity+1:])
		d.errors = d.errors[:n]
	}
	d.errors = append(d.errors, line)
}

// RecentErrors returns up to n of the newest failure lines, oldest first.
// n is clamped to 1..MaxRecentErrors.
func (d *Diagnostics) RecentErrors(n int) []string {
	n = max(1, min(n, MaxRecentErrors))

	d.mu.Lock()
	defer d.mu.Unlock()

	start := max(0, len(d.errors)-n)
	return append([]string{}, d.errors[start:]...)
}

// ErrorCount returns the number of failure lines currently held.
func (d *Diagnostics) ErrorCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.errors)
}

// LastResults returns a copy of the latest result per printer.
func (d *Diagnostics) LastResults() map[string]model.JobResult {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make(map[string]model.JobResult, len(d.latest))
	for k, v := range d.latest {
		out[k] = v
	}
	return out
}

// Accepted counts a job that entered a printer queue.
func (d *Diagnostics) Accepted(queue string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.depth[key(queue)]++
}

// Finished counts a job that left a printer queue. Depth never goes negative
// and an unknown queue is left untracked.
func (d *Diagnostics) Finished(queue string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	k := key(queue)
	if d.depth[k] > 0 {
		d.depth[k]--
	}
}

// Track makes a queue visible with depth zero.
func (d *Diagnostics) Track(queue string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	k := key(queue)
	if _, ok := d.depth[k]; !ok {
		d.depth[k] = 0
	}
}

// Pending returns a copy of the queue depths, keyed by lower-cased printer id.
func (d *Diagnostics) Pending() map[string]int {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make(map[string]int, len(d.depth))
	for k, v := range d.depth {
		out[k] = v
	}
	return out
}

// SetReachability records a probe outcome for printerID.
func (d *Diagnostics) SetReachability(printerID string, probeErr error) {
	r := Reachability{Reachable: probeErr == nil}
	if probeErr != nil {
		r.Error = probeErr.Error()
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	r.CheckedAt = d.now()
	d.reachability[printerID] = r
}

// ForgetReachability drops printers no longer probed.
func (d *Diagnostics) ForgetReachability(keep map[string]bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for id := range d.reachability {
		if !keep[id] {
			delete(d.reachability, id)
		}
	}
}

// Reachability returns a copy of the probe outcomes.
func (d *Diagnostics) Reachability() map[string]Reachability {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make(map[string]Reachability, len(d.reachability))
	for k, v := range d.reachability {
		out[k] = v
	}
	return out
}

func key(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

package diag

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"receipt-print-gateway/internal/model"
)

func fixedClock() time.Time {
	return time.Date(2026, 3, 4, 5, 6, 7, 0, time.Local)
}

func failure(printer string, i int) model.JobResult {
	return model.JobResult{OK: false, PrinterID: printer, JobID: fmt.Sprintf("job-%d", i), Message: fmt.Sprintf("boom %d", i)}
}

func TestRecord_FormatsErrorLine(t *testing.T) {
	d := New(0, fixedClock)

	d.Record(failure("front", 1))
	d.Record(model.JobResult{OK: true, PrinterID: "front", Message: "Printed"})

	assert.Equal(t, []string{"[2026-03-04 05:06:07] front: boom 1"}, d.RecentErrors(25))
	assert.True(t, d.LastResults()["front"].OK)
}

func TestRecord_ErrorLogBound(t *testing.T) {
	d := New(DefaultErrorCapacity, fixedClock)

	for i := 0; i < 130; i++ {
		printer := "a"
		if i%2 == 1 {
			printer = "b"
		}
		d.Record(failure(printer, i))
	}

	assert.Equal(t, 120, d.ErrorCount())
	recent := d.RecentErrors(MaxRecentErrors)
	require.Len(t, recent, 100)
	assert.Contains(t, recent[len(recent)-1], "boom 129")
	assert.Contains(t, recent[0], "boom 30")

	d2 := New(5, fixedClock)
	for i := 0; i < 8; i++ {
		d2.Record(failure("a", i))
	}
	lines := d2.RecentErrors(10)
	require.Len(t, lines, 5)
	assert.Contains(t, lines[0], "boom 3")
	assert.Contains(t, lines[4], "boom 7")
}

func TestRecentErrors_Clamps(t *testing.T) {
	d := New(0, fixedClock)
	d.Record(failure("a", 1))
	d.Record(failure("a", 2))

	assert.Len(t, d.RecentErrors(0), 1)
	assert.Contains(t, d.RecentErrors(-5)[0], "boom 2")
	assert.Len(t, d.RecentErrors(500), 2)
}

func TestDepth(t *testing.T) {
	d := New(0, nil)

	d.Track("Idle")
	d.Accepted("Front")
	d.Accepted("front")
	d.Finished("FRONT")
	d.Finished("bar")
	d.Finished("bar")

	// finishing on a queue that never accepted a job does not create it
	assert.Equal(t, map[string]int{"idle": 0, "front": 1}, d.Pending())
}

func TestReachability(t *testing.T) {
	d := New(0, fixedClock)

	d.SetReachability("kitchen", nil)
	d.SetReachability("bar", errors.New("connection refused"))

	got := d.Reachability()
	assert.True(t, got["kitchen"].Reachable)
	assert.Equal(t, fixedClock(), got["kitchen"].CheckedAt)
	assert.False(t, got["bar"].Reachable)
	assert.Equal(t, "connection refused", got["bar"].Error)

	d.ForgetReachability(map[string]bool{"kitchen": true})
	assert.NotContains(t, d.Reachability(), "bar")
}

func TestConcurrentUse(t *testing.T) {
	d := New(0, nil)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("p%d", i%3)
			d.Accepted(id)
			d.Record(failure(id, i))
			_ = d.RecentErrors(25)
			_ = d.Pending()
			d.Finished(id)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 20, d.ErrorCount())
	for _, depth := range d.Pending() {
		assert.Zero(t, depth)
	}
}

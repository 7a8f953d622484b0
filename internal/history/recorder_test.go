package history

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"receipt-print-gateway/internal/model"
	"receipt-print-gateway/internal/store"
)

func newStore(t *testing.T) store.Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&model.JobRecord{}))
	return store.NewGormStore(db)
}

func result(printer string, n int) model.JobResult {
	return model.JobResult{
		OK:          n%2 == 0,
		Message:     fmt.Sprintf("message %d", n),
		PrinterID:   printer,
		JobID:       fmt.Sprintf("job-%d", n),
		Attempts:    1,
		Operation:   "Receipt",
		CompletedAt: time.Date(2025, 3, 1, 12, 0, n, 0, time.UTC),
	}
}

func TestRecorder_FlushesOnShutdown(t *testing.T) {
	s := newStore(t)
	log, _ := test.NewNullLogger()
	r := NewRecorder(s, 16, log)
	r.interval = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	for i := 0; i < 5; i++ {
		r.Observe(result("bar", i))
	}
	go func() {
		r.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("recorder did not stop")
	}

	jobs, err := s.RecentJobs(context.Background(), "bar", 0)
	require.NoError(t, err)
	require.Len(t, jobs, 5)
	assert.Equal(t, "job-4", jobs[0].JobID)
}

func TestRecorder_FlushesFullBatch(t *testing.T) {
	s := newStore(t)
	log, _ := test.NewNullLogger()
	r := NewRecorder(s, 16, log)
	r.interval = time.Hour
	r.batch = 3

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	for i := 0; i < 3; i++ {
		r.Observe(result("kitchen", i))
	}

	assert.Eventually(t, func() bool {
		jobs, err := s.RecentJobs(context.Background(), "KITCHEN", 10)
		return err == nil && len(jobs) == 3
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRecorder_FlushesOnTick(t *testing.T) {
	s := newStore(t)
	log, _ := test.NewNullLogger()
	r := NewRecorder(s, 16, log)
	r.interval = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	r.Observe(result("bar", 1))

	assert.Eventually(t, func() bool {
		jobs, err := s.RecentJobs(context.Background(), "", 10)
		return err == nil && len(jobs) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRecorder_ObserveDropsWhenFull(t *testing.T) {
	s := newStore(t)
	log, hook := test.NewNullLogger()
	r := NewRecorder(s, 1, log)

	r.Observe(result("bar", 1))
	r.Observe(result("bar", 2))

	assert.Len(t, r.results, 1)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "history buffer full, dropping result", hook.LastEntry().Message)
}

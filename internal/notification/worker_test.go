package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/SherClockHolmes/webpush-go"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"receipt-print-gateway/internal/model"
	"receipt-print-gateway/internal/store"
)

// mockSender is a mock implementation of the NotificationSender interface.
type mockSender struct {
	SendFunc func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// Send calls the mock SendFunc.
func (m *mockSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return m.SendFunc(payload, sub, options)
}

// A helper function to create a mock database connection.
func newTestDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

func failed(printer string) model.JobResult {
	return model.JobResult{
		OK:        false,
		Message:   "connect Bar: connection refused",
		PrinterID: printer,
		JobID:     "0123456789abcdef0123456789abcdef",
		Attempts:  2,
		Operation: "Receipt",
	}
}

func subscriptionRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"endpoint", "p256dh", "auth", "printers", "created_at"}).
		AddRow("https://example.com/bar", "k1", "a1", "bar", time.Now()).
		AddRow("https://example.com/kitchen", "k2", "a2", "kitchen", time.Now())
}

func TestWorkerPool_Dispatch(t *testing.T) {
	db, _ := newTestDB(t)
	logger, _ := test.NewNullLogger()
	wp := NewWorkerPool(1, 1, store.NewGormStore(db), &webpush.Options{}, logger)

	wp.Dispatch(model.JobResult{OK: true, PrinterID: "bar"})
	wp.Dispatch(failed("bar"))
	wp.Dispatch(failed("kitchen")) // queue of one is full, dropped

	select {
	case job := <-wp.Jobs():
		assert.Equal(t, "bar", job.PrinterID)
	case <-time.After(1 * time.Second):
		t.Fatal("timed out waiting for job to be dispatched")
	}
	assert.Empty(t, wp.Jobs())
}

func TestWorkerPool_WorkerLogic(t *testing.T) {
	gormDB, mock := newTestDB(t)
	logger, _ := test.NewNullLogger()
	wp := NewWorkerPool(1, 4, store.NewGormStore(gormDB), &webpush.Options{}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wp.Start(ctx)

	t.Run("sends an alert to subscriptions watching the printer", func(t *testing.T) {
		var wg sync.WaitGroup
		wg.Add(1)

		wp.sender = &mockSender{
			SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
				defer wg.Done()
				assert.Equal(t, "https://example.com/bar", sub.Endpoint)

				var alert Alert
				assert.NoError(t, json.Unmarshal(payload, &alert))
				assert.Equal(t, "Printer bar failed", alert.Title)
				assert.Equal(t, "Receipt job failed after 2 attempt(s): connect Bar: connection refused", alert.Body)
				return &http.Response{
					StatusCode: http.StatusCreated,
					Body:       io.NopCloser(bytes.NewBufferString("")),
				}, nil
			},
		}

		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "push_subscriptions"`)).
			WillReturnRows(subscriptionRows())

		wp.Dispatch(failed("bar"))
		wg.Wait()
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("deletes expired subscription", func(t *testing.T) {
		wp.sender = &mockSender{
			SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
				return &http.Response{
					StatusCode: http.StatusGone,
					Body:       io.NopCloser(bytes.NewBufferString("")),
				}, nil
			},
		}

		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "push_subscriptions"`)).
			WillReturnRows(subscriptionRows())
		mock.ExpectBegin()
		mock.ExpectExec(`DELETE FROM "push_subscriptions" WHERE "push_subscriptions"."endpoint" = \$1`).
			WithArgs("https://example.com/kitchen").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		wp.Dispatch(failed("KITCHEN"))

		assert.Eventually(t, func() bool { return mock.ExpectationsWereMet() == nil }, time.Second, 10*time.Millisecond)
	})
}

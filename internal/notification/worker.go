package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/sirupsen/logrus"

	"receipt-print-gateway/internal/model"
	"receipt-print-gateway/internal/store"
)

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// Alert is the JSON body pushed to subscribers when a print job fails.
type Alert struct {
	Title     string `json:"title"`
	Body      string `json:"body"`
	PrinterID string `json:"printerId"`
	JobID     string `json:"jobId"`
	Operation string `json:"operation"`
}

// WorkerPool manages a pool of workers that push failure alerts.
type WorkerPool struct {
	size    int
	jobs    chan model.JobResult
	store   store.Store
	webpush *webpush.Options
	sender  NotificationSender
	log     logrus.FieldLogger
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size, queueSize int, s store.Store, webpushOptions *webpush.Options, log logrus.FieldLogger) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	if queueSize <= 0 {
		queueSize = size
	}
	return &WorkerPool{
		size:    size,
		jobs:    make(chan model.JobResult, queueSize),
		store:   s,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
		log:     log.WithField("module", "notification"),
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

// worker is the actual worker goroutine.
func (wp *WorkerPool) worker(ctx context.Context, id int) {
	wp.log.WithField("worker", id).Debug("alert worker started")
	for {
		select {
		case res := <-wp.jobs:
			wp.sendAlerts(ctx, res)
		case <-ctx.Done():
			wp.log.WithField("worker", id).Debug("alert worker shutting down")
			return
		}
	}
}

// Dispatch queues an alert for a failed result. Successful results are
// ignored. It never blocks: when the queue is full the alert is dropped.
func (wp *WorkerPool) Dispatch(res model.JobResult) {
	if res.OK {
		return
	}
	select {
	case wp.jobs <- res:
	default:
		wp.log.WithFields(logrus.Fields{"printer": res.PrinterID, "job": res.JobID}).Warn("alert queue full, dropping alert")
	}
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan model.JobResult {
	return wp.jobs
}

// sendAlerts fetches the subscriptions watching the printer and notifies each.
func (wp *WorkerPool) sendAlerts(ctx context.Context, res model.JobResult) {
	subscriptions, err := wp.store.SubscriptionsFor(ctx, res.PrinterID)
	if err != nil {
		wp.log.WithError(err).WithField("printer", res.PrinterID).Error("failed to fetch subscriptions")
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	payload, err := json.Marshal(Alert{
		Title:     fmt.Sprintf("Printer %s failed", res.PrinterID),
		Body:      fmt.Sprintf("%s job failed after %d attempt(s): %s", res.Operation, res.Attempts, res.Message),
		PrinterID: res.PrinterID,
		JobID:     res.JobID,
		Operation: res.Operation,
	})
	if err != nil {
		wp.log.WithError(err).Error("failed to encode alert")
		return
	}

	wp.log.WithFields(logrus.Fields{"printer": res.PrinterID, "count": len(subscriptions)}).Info("sending failure alerts")
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, payload)
	}
}

// sendNotification sends a single web push notification.
func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		wp.log.WithError(err).WithField("endpoint", sub.Endpoint).Warn("failed to send notification")
		return
	}
	defer resp.Body.Close()

	// Handle expired subscriptions
	if resp.StatusCode == http.StatusGone {
		wp.log.WithField("endpoint", sub.Endpoint).Info("subscription expired, deleting")
		if err := wp.store.DeleteSubscription(ctx, sub.Endpoint); err != nil {
			wp.log.WithError(err).WithField("endpoint", sub.Endpoint).Error("failed to delete expired subscription")
		}
	}
}

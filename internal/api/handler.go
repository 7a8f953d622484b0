// Package api exposes the gateway over HTTP.
package api

import (
	"context"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/sirupsen/logrus"

	"receipt-print-gateway/config"
	"receipt-print-gateway/internal/dispatch"
	"receipt-print-gateway/internal/events"
	"receipt-print-gateway/internal/model"
	"receipt-print-gateway/internal/store"
)

// App identifies the service in /health.
const (
	AppName    = "Print Gateway"
	AppVersion = "1.0.0"
)

// PrinterCatalog lists the print queues installed on this machine.
type PrinterCatalog interface {
	List(ctx context.Context) ([]model.InstalledPrinter, error)
}

// Dependencies are the collaborators a Handler needs. Store, Catalog,
// WebPush and Events may be nil; the routes that need them then report
// the feature as unavailable.
type Dependencies struct {
	Config     *config.Store
	Dispatcher *dispatch.Dispatcher
	Store      store.Store
	Catalog    PrinterCatalog
	WebPush    *webpush.Options
	Events     *events.Hub
	Logger     logrus.FieldLogger
	Listening  string
	Now        func() time.Time
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	config     *config.Store
	dispatcher *dispatch.Dispatcher
	store      store.Store
	catalog    PrinterCatalog
	webpush    *webpush.Options
	events     *events.Hub
	log        logrus.FieldLogger
	listening  string
	now        func() time.Time
}

// NewHandler creates a new API handler.
func NewHandler(deps Dependencies) *Handler {
	if deps.Logger == nil {
		deps.Logger = logrus.StandardLogger()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Handler{
		config:     deps.Config,
		dispatcher: deps.Dispatcher,
		store:      deps.Store,
		catalog:    deps.Catalog,
		webpush:    deps.WebPush,
		events:     deps.Events,
		log:        deps.Logger.WithField("module", "api"),
		listening:  deps.Listening,
		now:        deps.Now,
	}
}

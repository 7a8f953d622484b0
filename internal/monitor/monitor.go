// Package monitor periodically checks that network printers accept TCP
// connections and publishes the outcome through diagnostics.
package monitor

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"receipt-print-gateway/config"
	"receipt-print-gateway/internal/diag"
	"receipt-print-gateway/internal/model"
)

// Dialer opens a connection. net.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Service orchestrates the probe cycles.
type Service struct {
	cfg     config.MonitorConfig
	gateway *config.Store
	diag    *diag.Diagnostics
	dialer  Dialer
	log     logrus.FieldLogger
}

// NewService creates a monitor reading printers from the live configuration.
func NewService(cfg config.MonitorConfig, gateway *config.Store, d *diag.Diagnostics, log logrus.FieldLogger) *Service {
	return &Service{
		cfg:     cfg,
		gateway: gateway,
		diag:    d,
		dialer:  &net.Dialer{},
		log:     log.WithField("module", "monitor"),
	}
}

// Run probes immediately and then on every interval until ctx is done.
func (s *Service) Run(ctx context.Context) {
	if !s.cfg.Enabled {
		s.log.Info("Monitor is disabled. Not starting.")
		return
	}
	interval := s.cfg.Interval
	if interval <= 0 {
		interval = time.Duration(config.DefaultMonitorInterval) * time.Second
	}
	s.log.WithField("interval", interval).Info("Starting printer monitor...")

	s.ProbeOnce(ctx)

	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("Printer monitor shutting down.")
			return
		case <-timer.C:
			s.ProbeOnce(ctx)
			timer.Reset(interval)
		}
	}
}

// ProbeOnce dials every enabled network printer concurrently and records the
// outcome. Printers that are no longer probed are forgotten.
func (s *Service) ProbeOnce(ctx context.Context) {
	gw := s.gateway.Get()

	keep := make(map[string]bool)
	var wg sync.WaitGroup
	for _, p := range gw.Printers {
		if !p.Enabled || p.NormalizedMode() != model.ModeNetwork {
			continue
		}
		keep[p.ID] = true

		wg.Add(1)
		go func(p model.PrinterProfile) {
			defer wg.Done()
			err := s.probe(ctx, p)
			if err != nil {
				s.log.WithError(err).WithField("printer", p.ID).Debug("printer unreachable")
			}
			s.diag.SetReachability(p.ID, err)
		}(p)
	}
	wg.Wait()

	s.diag.ForgetReachability(keep)
}

func (s *Service) probe(ctx context.Context, p model.PrinterProfile) error {
	host := strings.TrimSpace(p.Network.IP)
	if host == "" {
		return fmt.Errorf("no network host configured")
	}

	timeout := time.Duration(s.cfg.DialTimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = time.Duration(config.DefaultMonitorDialMs) * time.Millisecond
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := s.dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(p.NetworkPort())))
	if err != nil {
		return err
	}
	return conn.Close()
}

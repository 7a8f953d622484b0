package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"receipt-print-gateway/config"
	"receipt-print-gateway/internal/api"
	"receipt-print-gateway/internal/diag"
	"receipt-print-gateway/internal/dispatch"
	"receipt-print-gateway/internal/events"
	"receipt-print-gateway/internal/history"
	"receipt-print-gateway/internal/model"
	"receipt-print-gateway/internal/monitor"
	"receipt-print-gateway/internal/mw"
	"receipt-print-gateway/internal/spooler"
	"receipt-print-gateway/internal/store"
	"receipt-print-gateway/internal/transport"
)

// fakePrinter accepts raw TCP print jobs and keeps what it received.
type fakePrinter struct {
	ln   net.Listener
	mu   sync.Mutex
	jobs [][]byte
}

func startFakePrinter(t *testing.T) *fakePrinter {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	p := &fakePrinter{ln: ln}
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(conn net.Conn) {
				defer conn.Close()
				data, _ := io.ReadAll(conn)
				if len(data) == 0 {
					return
				}
				p.mu.Lock()
				p.jobs = append(p.jobs, data)
				p.mu.Unlock()
			}(conn)
		}
	}()
	return p
}

func (p *fakePrinter) port() int {
	return p.ln.Addr().(*net.TCPAddr).Port
}

func (p *fakePrinter) received() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([][]byte(nil), p.jobs...)
}

// TestPrintLifecycle drives a receipt from the HTTP API to a TCP printer and
// checks that the result reaches diagnostics, the job history and the event
// stream.
func TestPrintLifecycle(t *testing.T) {
	// --- Test Setup ---
	testDB, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	sqlDB, _ := testDB.DB()
	sqlDB.SetMaxOpenConns(1)
	defer sqlDB.Close()
	require.NoError(t, testDB.AutoMigrate(&model.JobRecord{}, &model.PushSubscription{}))
	appStore := store.NewGormStore(testDB)

	printer := startFakePrinter(t)
	front := model.NewPrinterProfile("front", "Front Counter")
	front.Mode = model.ModeNetwork
	front.Network = model.NetworkSettings{IP: "127.0.0.1", Port: printer.port()}
	back := model.NewPrinterProfile("back", "Back Office")
	back.USB.PrinterName = "BackQueue"

	cfg := config.Default()
	cfg.Gateway.PairingToken = "pair-me"
	cfg.Gateway.Printers = []model.PrinterProfile{front, back}
	cfg.Gateway.DefaultPrinterID = "front"
	cfg.Gateway.RetryCount = 1
	cfgStore := config.NewStore(filepath.Join(t.TempDir(), "config.yaml"), cfg)

	log, _ := test.NewNullLogger()
	var spooled [][]byte
	var spoolMu sync.Mutex
	cups := &spooler.CUPS{Command: "lp", Run: func(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, error) {
		spoolMu.Lock()
		defer spoolMu.Unlock()
		assert.Equal(t, []string{"-d", "BackQueue", "-t", transport.DocumentName, "-o", "raw"}, args)
		spooled = append(spooled, append([]byte(nil), stdin...))
		return []byte("request id is BackQueue-1 (0 file(s))"), nil
	}}

	diagnostics := diag.New(0, nil)
	dispatcher := dispatch.New(dispatch.Options{
		Network:     transport.NewNetwork(),
		USB:         transport.NewSpool(cups),
		Diagnostics: diagnostics,
		Logger:      log,
	})
	defer dispatcher.Close(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	recorder := history.NewRecorder(appStore, 16, log)
	go recorder.Run(ctx)
	dispatcher.OnResult(recorder.Observe)

	hub := events.NewHub(nil, log)
	defer hub.Close()
	dispatcher.OnResult(hub.Publish)

	handler := api.NewHandler(api.Dependencies{
		Config:     cfgStore,
		Dispatcher: dispatcher,
		Store:      appStore,
		Events:     hub,
		Logger:     log,
	})
	server := httptest.NewServer(api.NewRouter(handler, api.RouterOptions{RateLimitPerSec: 100, RateLimitBurst: 100}))
	defer server.Close()

	call := func(method, path, body string, headers map[string]string) *http.Response {
		req, err := http.NewRequest(method, server.URL+path, strings.NewReader(body))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(mw.TokenHeader, "pair-me")
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		t.Cleanup(func() { resp.Body.Close() })
		return resp
	}

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/events?token=pair-me"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 5*time.Millisecond)

	// --- Step 1: receipt on the default network printer ---
	var jobID string
	t.Run("Receipt reaches the network printer", func(t *testing.T) {
		resp := call(http.MethodPost, "/print/receipt", `{"receipt":{"company_name":"Padaria Lusa","items":[{"name":"Pao","qty":3,"unit_price":"0,20","line_total":"0,60"}],"totals":{"total":"0,60"}},"openDrawer":false}`, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var out struct {
			OK        bool   `json:"ok"`
			PrinterID string `json:"printerId"`
			JobID     string `json:"jobId"`
			Attempts  int    `json:"attempts"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		assert.True(t, out.OK)
		assert.Equal(t, "front", out.PrinterID)
		assert.Equal(t, 1, out.Attempts)
		jobID = out.JobID

		require.Eventually(t, func() bool { return len(printer.received()) == 1 }, 2*time.Second, 10*time.Millisecond)
		data := printer.received()[0]
		assert.True(t, bytes.HasPrefix(data, []byte{0x1B, '@'}))
		assert.True(t, bytes.HasSuffix(data, []byte{0x1D, 'V', 0x01, 0x1B, 'd', 3}))
		assert.Contains(t, string(data), "Padaria Lusa")
		assert.NotContains(t, string(data), string([]byte{0x1B, 'p'}))
	})

	// --- Step 2: the event stream saw the result ---
	t.Run("Result is streamed", func(t *testing.T) {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var msg events.Message
		require.NoError(t, conn.ReadJSON(&msg))
		assert.Equal(t, jobID, msg.Result.JobID)
		assert.Equal(t, "Receipt", msg.Result.Operation)
	})

	// --- Step 3: cut on the spooled printer ---
	t.Run("Cut goes through the spooler", func(t *testing.T) {
		resp := call(http.MethodPost, "/print/cut", `{"mode":"full"}`, map[string]string{mw.PrinterHeader: "back"})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		spoolMu.Lock()
		defer spoolMu.Unlock()
		require.Len(t, spooled, 1)
		assert.Equal(t, []byte{0x1B, '@', 0x1D, 'V', 0x00}, spooled[0])
	})

	// --- Step 4: an unreachable printer fails after its retries ---
	t.Run("Unreachable printer fails with attempts", func(t *testing.T) {
		printer.ln.Close()
		resp := call(http.MethodPost, "/print/cashdrawer", "", nil)
		require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

		var out struct {
			OK        bool   `json:"ok"`
			Error     string `json:"error"`
			JobID     string `json:"jobId"`
			Operation string `json:"operation"`
			Attempts  int    `json:"attempts"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		assert.False(t, out.OK)
		assert.Contains(t, out.Error, "Front Counter")
		assert.NotEmpty(t, out.JobID)
		assert.Equal(t, "Drawer", out.Operation)
		assert.Equal(t, 2, out.Attempts)

		errs := diagnostics.RecentErrors(10)
		require.Len(t, errs, 1)
		assert.Contains(t, errs[0], "front: ")
		assert.Equal(t, 2, diagnostics.LastResults()["front"].Attempts)
	})

	// --- Step 5: history holds all three jobs ---
	t.Run("History records every job", func(t *testing.T) {
		cancel() // flush the recorder
		require.Eventually(t, func() bool {
			jobs, err := appStore.RecentJobs(context.Background(), "", 10)
			return err == nil && len(jobs) == 3
		}, 3*time.Second, 20*time.Millisecond)

		jobs, err := appStore.RecentJobs(context.Background(), "FRONT", 10)
		require.NoError(t, err)
		require.Len(t, jobs, 2)
		ops := []string{jobs[0].Operation, jobs[1].Operation}
		assert.ElementsMatch(t, []string{"Receipt", "Drawer"}, ops)
	})

	// --- Step 6: the monitor sees the printer is gone ---
	t.Run("Monitor reports reachability", func(t *testing.T) {
		svc := monitor.NewService(config.MonitorConfig{Enabled: true, DialTimeoutMs: 200}, cfgStore, diagnostics, log)
		svc.ProbeOnce(context.Background())

		reach := diagnostics.Reachability()
		require.Contains(t, reach, "front")
		assert.False(t, reach["front"].Reachable)
		assert.NotContains(t, reach, "back")
	})
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"receipt-print-gateway/config"
	"receipt-print-gateway/internal/api"
	"receipt-print-gateway/internal/catalog"
	"receipt-print-gateway/internal/db"
	"receipt-print-gateway/internal/diag"
	"receipt-print-gateway/internal/dispatch"
	"receipt-print-gateway/internal/escpos"
	"receipt-print-gateway/internal/events"
	"receipt-print-gateway/internal/history"
	"receipt-print-gateway/internal/monitor"
	"receipt-print-gateway/internal/mw"
	"receipt-print-gateway/internal/notification"
	"receipt-print-gateway/internal/resolver"
	"receipt-print-gateway/internal/spooler"
	"receipt-print-gateway/internal/store"
	"receipt-print-gateway/internal/transport"
)

const defaultConfigPath = "./config/config.yaml"

var configPath string

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "printgw: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "printgw",
		Short: "Local receipt print gateway",
		Long: `printgw accepts print requests from point-of-sale clients on the loopback interface,
compiles them to ESC/POS and delivers them to network or locally spooled receipt printers.`,
		SilenceUsage: true,
	}

	defaultPath := os.Getenv("PRINTGW_CONFIG")
	if defaultPath == "" {
		defaultPath = defaultConfigPath
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultPath, "Configuration file (env PRINTGW_CONFIG)")

	cmd.AddCommand(
		newServeCmd(),
		newPrintersCmd(),
		newTestPrintCmd(),
		newTokenCmd(),
	)
	return cmd
}

// loadConfig reads the configuration, creating it on first run, and builds
// the logger it describes.
func loadConfig() (*config.Config, *logrus.Logger, error) {
	cfg, err := config.LoadOrCreate(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration from %s: %w", configPath, err)
	}
	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func newDispatcher(cfg *config.Config, d *diag.Diagnostics, logger logrus.FieldLogger) *dispatch.Dispatcher {
	return dispatch.New(dispatch.Options{
		Network:       transport.NewNetwork(),
		USB:           transport.NewSpool(spooler.NewCUPS()),
		Diagnostics:   d,
		Logger:        logger,
		QueueCapacity: cfg.Dispatcher.QueueCapacity,
		ShutdownGrace: time.Duration(cfg.Dispatcher.ShutdownGraceMs) * time.Millisecond,
	})
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, logger)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, logger *logrus.Logger) error {
	logger.WithField("config", configPath).Info("configuration loaded")
	if host, _, err := net.SplitHostPort(cfg.Server.Addr); err == nil {
		if ip := net.ParseIP(host); ip == nil || !ip.IsLoopback() {
			logger.WithField("addr", cfg.Server.Addr).Warn("listening beyond loopback; non-local callers are still refused")
		}
	}
	if logger.IsLevelEnabled(logrus.DebugLevel) {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	cfgStore := config.NewStore(configPath, cfg)
	diagnostics := diag.New(diag.DefaultErrorCapacity, nil)
	for _, p := range cfg.Gateway.Printers {
		diagnostics.Track(p.ID)
	}
	dispatcher := newDispatcher(cfg, diagnostics, logger)

	// background services stop after the dispatcher so late results are kept
	bgCtx, cancelBg := context.WithCancel(context.Background())
	defer cancelBg()

	gormDB, err := db.Init(&cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	appStore := store.NewGormStore(gormDB)
	logger.Info("job history store initialized")

	recorder := history.NewRecorder(appStore, cfg.Database.HistoryBuffer, logger)
	recorderDone := make(chan struct{})
	go func() {
		recorder.Run(bgCtx)
		close(recorderDone)
	}()
	dispatcher.OnResult(recorder.Observe)

	var webpushOptions *webpush.Options
	if cfg.Push.Enabled() {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
		pool := notification.NewWorkerPool(cfg.WorkerPool.Size, cfg.WorkerPool.QueueSize, appStore, webpushOptions, logger)
		pool.Start(bgCtx)
		dispatcher.OnResult(pool.Dispatch)
	} else {
		logger.Warn("VAPID keys are not configured; failure alerts are disabled")
	}

	hub := events.NewHub(func(origin string) bool {
		return mw.OriginAllowed(cfgStore.Get().AllowedOrigins, origin)
	}, logger)
	dispatcher.OnResult(hub.Publish)

	monitorSvc := monitor.NewService(cfg.Monitor, cfgStore, diagnostics, logger)
	go monitorSvc.Run(bgCtx)

	handler := api.NewHandler(api.Dependencies{
		Config:     cfgStore,
		Dispatcher: dispatcher,
		Store:      appStore,
		Catalog:    catalog.New(),
		WebPush:    webpushOptions,
		Events:     hub,
		Logger:     logger,
		Listening:  cfg.Server.Addr,
	})
	router := api.NewRouter(handler, api.RouterOptions{
		RateLimitPerSec:  cfg.Server.RateLimitPerSec,
		RateLimitBurst:   cfg.Server.RateLimitBurst,
		PrintersCacheTTL: time.Duration(cfg.Server.PrintersCacheTTLSeconds) * time.Second,
	})
	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.WithField("addr", cfg.Server.Addr).Info("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received, stopping services...")
	case err := <-serveErr:
		if err != nil {
			cancelBg()
			return fmt.Errorf("HTTP server: %w", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	hub.Close()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("HTTP server shutdown")
	}
	if err := dispatcher.Close(shutdownCtx); err != nil {
		logger.WithError(err).Warn("print workers did not stop cleanly")
	}

	cancelBg()
	select {
	case <-recorderDone:
	case <-shutdownCtx.Done():
		logger.Warn("job history flush timed out")
	}

	logger.Info("server gracefully stopped")
	return nil
}

func newPrintersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "printers",
		Short: "List installed print queues and configured printers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			installed, err := catalog.New().List(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(cmd, map[string]any{
				"printers":         installed,
				"configured":       cfg.Gateway.Printers,
				"defaultPrinterId": cfg.Gateway.DefaultPrinterID,
			})
		},
	}
}

func newTestPrintCmd() *cobra.Command {
	var printerID string
	var title string
	cmd := &cobra.Command{
		Use:   "test-print",
		Short: "Print the test receipt on a configured printer",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			profile, err := resolver.Resolve(cfg.Gateway, printerID)
			if err != nil {
				return err
			}

			dispatcher := newDispatcher(cfg, nil, logger)
			defer dispatcher.Close(context.Background())

			job := dispatch.NewJob(profile, dispatch.OpTest,
				escpos.BuildTestPrint(profile, strings.TrimSpace(title), time.Now()),
				cfg.Gateway.RetryCount,
				time.Duration(cfg.Gateway.RequestTimeoutMs)*time.Millisecond)
			res, err := dispatcher.Enqueue(cmd.Context(), job)
			if err != nil {
				return err
			}
			if err := writeJSON(cmd, res); err != nil {
				return err
			}
			if !res.OK {
				return fmt.Errorf("test print on %s failed: %s", profile.ID, res.Message)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&printerID, "printer", "p", "", "Printer id (defaults to the configured default)")
	cmd.Flags().StringVarP(&title, "title", "t", escpos.DefaultTestTitle, "Title printed on the test receipt")
	return cmd
}

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage the pairing token",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "regenerate",
		Short: "Replace the pairing token and print the new one",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			token, err := config.NewStore(configPath, cfg).RegenerateToken()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	})
	return cmd
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	_ "printer-service/docs"
	"printer-service/internal/config"
	"printer-service/internal/discovery"
	"printer-service/internal/discovery/serial"
	"printer-service/internal/discovery/usb"
	"printer-service/internal/handler"
	"printer-service/internal/printer"
	"printer-service/internal/routes"
	"printer-service/internal/service"
	"printer-service/internal/utils"
)

// Application represents the main application
type Application struct {
	config *config.Config
	logger *zap.Logger
	server *http.Server

	scanners       *discovery.ScannerManager
	monitor        *discovery.Monitor
	eventHub       *handler.EventHub
	wsHandler      *handler.WebSocketHandler
	printerService *service.PrinterService

	// cancel stops the port monitor, event hub and WebSocket fan-out
	cancel context.CancelFunc
	done   chan struct{}
}

// @title Printer Service API
// @version 1.0.0
// @description Serial port discovery and Marlin printer control

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8085
// @BasePath /api/v1
func main() {
	app, err := NewApplication()
	if err != nil {
		fmt.Printf("Failed to initialize application: %v\n", err)
		os.Exit(1)
	}

	if err := app.Start(); err != nil {
		app.logger.Fatal("Failed to start application", zap.Error(err))
	}
}

// NewApplication creates a new application instance
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := utils.NewLogger(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	serviceLogger := utils.NewServiceLogger(logger, "printer-service")
	serviceLogger.LogServiceStart(cfg.App.Version, cfg)

	app := &Application{
		config: cfg,
		logger: logger,
		done:   make(chan struct{}),
	}

	app.initializeDiscovery()
	app.initializeServices()

	if err := app.initializeServer(); err != nil {
		return nil, fmt.Errorf("failed to initialize server: %w", err)
	}

	return app, nil
}

// initializeDiscovery registers the port scanners and builds the monitor
func (app *Application) initializeDiscovery() {
	app.scanners = discovery.NewScannerManager(app.logger)
	app.scanners.RegisterScanner(serial.NewScanner(app.logger, &serial.Config{
		Patterns:     app.config.Discovery.Patterns,
		ExcludeNames: app.config.Discovery.ExcludeNames,
	}))
	app.scanners.RegisterScanner(usb.NewScanner(app.logger))

	opts := printerOptions(&app.config.Printer)
	factory := func(path string) *printer.Connection {
		return printer.NewConnection(path, opts, app.logger)
	}

	app.monitor = discovery.NewMonitor(app.scanners, factory, discovery.MonitorConfig{
		ScanInterval:          app.config.Discovery.PortScanInterval,
		MaxConcurrentConnects: app.config.Discovery.MaxConcurrentConnects,
		AutoConnect:           app.config.Discovery.AutoConnect,
	}, app.logger)

	app.logger.Info("Port discovery initialized",
		zap.Strings("scanners", app.scanners.GetAvailableScanners()),
		zap.Duration("scan_interval", app.config.Discovery.PortScanInterval),
		zap.Bool("auto_connect", app.config.Discovery.AutoConnect),
	)
}

// printerOptions maps configuration onto connection options
func printerOptions(cfg *config.PrinterConfig) printer.Options {
	opts := printer.DefaultOptions()
	opts.ExtruderCount = cfg.ExtruderCount
	opts.RequiredOkCount = cfg.RequiredOkCount
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout
	opts.OkSilenceTimeout = cfg.OkSilenceTimeout
	opts.TelemetryInterval = cfg.TelemetryInterval
	opts.CandidateBitrates = cfg.CandidateBitrates
	opts.ProbeWindow = cfg.ProbeWindow
	opts.ProbeReadTimeout = cfg.ProbeReadTimeout
	opts.BootloaderWait = cfg.BootloaderWait
	opts.BootloaderProbe = cfg.BootloaderProbe
	opts.QueueCapacity = cfg.QueueCapacity
	opts.PreloadLines = cfg.PreloadLines
	opts.WriteRetryDelay = cfg.WriteRetryDelay
	opts.ErrorLogSize = cfg.ErrorLogSize
	if len(cfg.FatalErrors) > 0 {
		opts.FatalErrors = cfg.FatalErrors
	}
	return opts
}

// initializeServices creates service instances
func (app *Application) initializeServices() {
	app.eventHub = handler.NewEventHub(app.logger)
	app.monitor.AddListener(app.eventHub)

	app.printerService = service.NewPrinterService(app.monitor, app.logger)
	app.wsHandler = handler.NewWebSocketHandler(
		app.printerService,
		app.eventHub,
		app.config.Security.AllowedOrigins,
		app.logger,
	)

	app.logger.Info("Services initialized successfully")
}

// initializeServer sets up HTTP server and routes
func (app *Application) initializeServer() error {
	routerManager := routes.NewRouter(
		app.config,
		app.logger,
		app.monitor,
		app.printerService,
		app.wsHandler,
	)

	router := routerManager.SetupRouter()

	app.server = &http.Server{
		Addr:         app.config.GetServerAddr(),
		Handler:      router,
		ReadTimeout:  app.config.Server.ReadTimeout,
		WriteTimeout: app.config.Server.WriteTimeout,
		IdleTimeout:  app.config.Server.IdleTimeout,
	}

	if app.config.Server.TLS.Enabled {
		if app.config.Server.TLS.CertFile == "" || app.config.Server.TLS.KeyFile == "" {
			return errors.New("tls enabled without cert_file and key_file")
		}
	}

	app.logger.Info("HTTP server initialized",
		zap.String("address", app.config.GetServerAddr()),
		zap.Bool("tls_enabled", app.config.Server.TLS.Enabled),
	)

	return nil
}

// startBackgroundServices starts the event hub, WebSocket fan-out and port
// monitor under one context
func (app *Application) startBackgroundServices() {
	ctx, cancel := context.WithCancel(context.Background())
	app.cancel = cancel

	go app.eventHub.Run(ctx)
	go app.wsHandler.Run(ctx)
	go func() {
		defer close(app.done)
		app.monitor.Run(ctx)
	}()

	app.logger.Info("Background services started")
}

// waitForShutdown waits for shutdown signal and performs graceful shutdown
func (app *Application) waitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	app.logger.Info("Received shutdown signal", zap.String("signal", sig.String()))

	app.shutdown()
}

// shutdown performs graceful shutdown
func (app *Application) shutdown() {
	serviceLogger := utils.NewServiceLogger(app.logger, "printer-service")
	serviceLogger.LogServiceStop("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("HTTP server shutdown error", zap.Error(err))
	} else {
		app.logger.Info("HTTP server stopped")
	}

	// The monitor closes every printer connection on its way out
	if app.cancel != nil {
		app.cancel()
		select {
		case <-app.done:
			app.logger.Info("Printer connections closed")
		case <-ctx.Done():
			app.logger.Warn("Timed out closing printer connections")
		}
	}

	app.logger.Info("Application shutdown completed")

	if err := utils.CloseLogger(app.logger); err != nil {
		fmt.Printf("Logger close error: %v\n", err)
	}
}

// Start runs the HTTP server and background services until a shutdown signal
func (app *Application) Start() error {
	go func() {
		app.logger.Info("Starting HTTP server",
			zap.String("address", app.server.Addr),
		)

		var err error
		if app.config.Server.TLS.Enabled {
			err = app.server.ListenAndServeTLS(
				app.config.Server.TLS.CertFile,
				app.config.Server.TLS.KeyFile,
			)
		} else {
			err = app.server.ListenAndServe()
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.logger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	app.startBackgroundServices()
	app.waitForShutdown()

	return nil
}

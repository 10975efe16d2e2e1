package server

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"scriptrelay/pkg/config"
	"scriptrelay/pkg/logger"
)

// Main is the relay entry point
func Main() {
	addr := flag.String("addr", "", "Server address (overrides config)")
	configPath := flag.String("config", "", "Config file path (optional)")
	certFile := flag.String("cert", "", "TLS certificate file")
	keyFile := flag.String("key", "", "TLS key file")
	useTLS := flag.Bool("tls", false, "Enable TLS")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	logFormat := flag.String("log-format", "text", "Log format: text or json")
	flag.Parse()

	logger.Init(logger.LogLevel(*logLevel), *logFormat)
	log := logger.Get()

	log.InfoWith("relay starting", "version", "1.0.0")

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.ErrorWithErr("failed to load configuration", err)
		return
	}

	// Command-line flags win over file and environment
	if *addr != "" {
		cfg.Address = *addr
	}
	if *certFile != "" {
		cfg.TLS.CertFile = *certFile
	}
	if *keyFile != "" {
		cfg.TLS.KeyFile = *keyFile
	}
	if *useTLS {
		cfg.TLS.Enabled = true
	}
	cfg.Logging.Level = *logLevel
	cfg.Logging.Format = *logFormat

	log.InfoWith("configuration loaded",
		"address", cfg.Address,
		"tls", cfg.TLS.Enabled,
		"pingInterval", cfg.Heartbeat.PingInterval().String(),
		"pongTimeout", cfg.Heartbeat.PongTimeout().String())

	services, err := NewServices(cfg)
	if err != nil {
		log.ErrorWithErr("failed to initialize services", err)
		return
	}

	srv := NewServer(services)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)

	errorChan := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errorChan <- err
		}
	}()

	log.InfoWith("relay is running",
		"execute", "POST /execute with a script file path as the body",
		"status", "GET /status")

	select {
	case sig := <-sigChan:
		log.InfoWith("received signal", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.ErrorWithErr("error during shutdown", err)
		}
		log.InfoWith("relay stopped")

	case err := <-errorChan:
		log.ErrorWithErr("server encountered fatal error", err)
	}
}

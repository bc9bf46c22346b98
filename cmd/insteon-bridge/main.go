// Command insteon-bridge connects an Insteon PLM to an MQTT broker.
//
// The bridge drives the PLM over its serial port, keeps local copies of
// the modem and device all-link databases, and maps device state to
// MQTT topics:
//
//	insteon/<addr>/state       retained JSON state, published on change
//	insteon/<addr>/set         ON / OFF commands
//	insteon/<addr>/level/set   brightness 0-255 (dimmers)
//
// Usage:
//
//	insteon-bridge [flags]
//
// Flags:
//
//	-config string     Configuration file path (default "config.yaml")
//	-log-level string  Override the configured log level
//	-capture string    Override the CBOR protocol capture path
package main

import (
	"context"
	"flag"
	"fmt"
	stdlog "log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/insteon-mqtt/insteon-go/pkg/config"
	"github.com/insteon-mqtt/insteon-go/pkg/log"
)

var (
	configPath = flag.String("config", "config.yaml", "Configuration file path")
	logLevel   = flag.String("log-level", "", "Override the configured log level")
	capture    = flag.String("capture", "", "Override the CBOR protocol capture path")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		stdlog.Fatalf("Failed to load configuration: %v", err)
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if *capture != "" {
		cfg.Logging.Capture = *capture
	}

	logger, closeLogger, err := buildLogger(cfg.Logging)
	if err != nil {
		stdlog.Fatalf("Failed to set up logging: %v", err)
	}
	defer closeLogger()

	bridge, err := newBridge(cfg, logger)
	if err != nil {
		stdlog.Fatalf("Failed to build bridge: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stdlog.Printf("insteon-bridge starting: port %s broker %s",
		cfg.Insteon.Port, cfg.MQTT.Broker)

	if err := bridge.Run(ctx); err != nil && ctx.Err() == nil {
		stdlog.Fatalf("Bridge stopped: %v", err)
	}

	stdlog.Println("Shutting down...")
	bridge.Close()
}

// buildLogger assembles the console logger plus the optional CBOR
// capture file.
func buildLogger(cfg config.LoggingConfig) (log.Logger, func(), error) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return nil, nil, fmt.Errorf("unknown log level %q", cfg.Level)
	}

	console := log.NewSlogAdapter(slog.New(slog.NewTextHandler(os.Stderr,
		&slog.HandlerOptions{Level: level})))

	if cfg.Capture == "" {
		return console, func() {}, nil
	}

	file, err := log.NewFileLogger(cfg.Capture)
	if err != nil {
		return nil, nil, fmt.Errorf("open capture file: %w", err)
	}
	return log.NewMultiLogger(console, file), func() { file.Close() }, nil
}

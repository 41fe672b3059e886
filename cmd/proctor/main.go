// Proctor - online exam proctoring from a webcam and microphone.
// Fuses face, head pose, gaze, object and audio signals into debounced
// violation events and keeps an audit log of the session.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/teslashibe/go-proctor/internal/config"
	"github.com/teslashibe/go-proctor/internal/log"
	"github.com/teslashibe/go-proctor/pkg/app"
)

var version = "dev"

// shutdownTimeout bounds cleanup after the session ends
const shutdownTimeout = 10 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "Path to proctor.yaml (defaults only when empty)")
	duration := flag.Duration("duration", -1, "Session length, 0 = until stopped (overrides session.max_duration)")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn, error (overrides log.level)")
	mock := flag.Bool("mock", false, "Use a synthetic camera, perception and microphone")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("proctor", version)
		return 0
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Configuration error: %v\n", err)
		return 2
	}
	if *duration >= 0 {
		cfg.Session.MaxDuration = *duration
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}

	logger := log.Setup(log.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})

	a, err := app.New(cfg, app.Options{Mock: *mock, Version: version, Logger: logger})
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		return 2
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := a.Init(ctx); err != nil {
		logger.Error("initialization failed", "error", err)
		shutdown(a)
		return 1
	}

	if cfg.Dashboard.Enabled {
		fmt.Printf("🌐 Dashboard: http://localhost:%s\n", cfg.Dashboard.Port)
	}
	fmt.Println("🎥 Proctoring started (Ctrl+C to stop)")

	code := 0
	if err := a.Run(ctx); err != nil {
		logger.Error("session ended with errors", "error", err)
		code = 1
	}

	st := a.Session().Stats()
	fmt.Printf("\n📋 Session %s: %d frames, %d violation incidents, %d audio alerts\n",
		st.SessionID, st.Frames, st.TotalViolations, st.AudioAlerts)

	if err := shutdown(a); err != nil {
		logger.Warn("shutdown incomplete", "error", err)
	}
	return code
}

func shutdown(a *app.App) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return a.Shutdown(ctx)
}

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/FalconCode786/Minmeet/internal/audio"
	"github.com/FalconCode786/Minmeet/internal/config"
	"github.com/FalconCode786/Minmeet/internal/metrics"
	"github.com/FalconCode786/Minmeet/internal/minutes"
	"github.com/FalconCode786/Minmeet/internal/monitor"
	"github.com/FalconCode786/Minmeet/internal/session"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "minmeet"
	serviceVersion    = "1.0.0"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	title := flag.String("title", "Untitled Meeting", "Meeting title")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger based on configuration
	logger := initLogger(cfg.Logging)

	logger.Info("Client starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", *configPath),
	)

	// Log configuration summary
	logger.Info("Configuration loaded",
		slog.String("base_url", cfg.Service.BaseURL),
		slog.Int("sample_rate", cfg.Capture.SampleRate),
		slog.Int("channels", cfg.Capture.Channels),
		slog.Float64("segment_interval", cfg.Capture.SegmentInterval),
		slog.Int("flush_grace_ms", cfg.Capture.FlushGraceMs),
		slog.Float64("poll_interval", cfg.Sync.PollInterval),
		slog.String("log_level", cfg.Logging.Level),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Prometheus metrics
	appMetrics := metrics.NewMetrics()
	logger.Info("Prometheus metrics initialized")

	// Capture device; acquired lazily when the session starts
	source := audio.NewDeviceSource()

	// Create the session coordinator
	coordinator, err := session.New(cfg, source, logger, appMetrics)
	if err != nil {
		logger.Error("Failed to create session coordinator", slog.String("error", err.Error()))
		os.Exit(1)
	}

	coordinator.SetListeners(session.Listeners{
		OnEntry: func(e minutes.TranscriptEntry) {
			logger.Info("Transcript entry",
				slog.String("speaker", e.Speaker),
				slog.String("text", e.Text),
			)
		},
		OnSpeakers: func(n int) {
			logger.Info("Speaker count updated", slog.Int("total_speakers", n))
		},
		OnFinalize: func() {
			logger.Info("Meeting minutes finalized")
		},
	})

	// Initialize monitoring HTTP server (if enabled)
	var monitorServer *monitor.Server
	if cfg.Monitor.Enabled {
		monitorServer = monitor.NewServer(cfg.Monitor, logger, cfg, coordinator)
		logger.Info("Monitoring server initialized",
			slog.String("address", fmt.Sprintf("%s:%d", cfg.Monitor.Address, cfg.Monitor.Port)),
		)
	}

	// Start the meeting session
	if err := coordinator.Start(ctx, *title); err != nil {
		logger.Error("Failed to start meeting session", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if monitorServer != nil {
		if err := monitorServer.Start(); err != nil {
			logger.Error("Failed to start monitoring server", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Recording, press Ctrl+C to stop...",
		slog.String("title", *title),
	)

	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
	case <-ctx.Done():
		logger.Info("Context cancelled, shutting down")
	}

	logger.Info("Stopping meeting session...")

	// Stop the session: capture stops first, the final chunk uploads, then
	// the meeting is finalized on the service.
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()

	if err := coordinator.Stop(stopCtx); err != nil {
		logger.Error("Error stopping meeting session", slog.String("error", err.Error()))
	}

	// Stop monitoring server last so stats stay visible through shutdown
	if monitorServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := monitorServer.Stop(shutdownCtx); err != nil {
			logger.Error("Error stopping monitoring server", slog.String("error", err.Error()))
		}
	}

	// Final statistics
	stats := coordinator.GetStats()
	logger.Info("Final session statistics",
		slog.Uint64("chunks_emitted", stats.Pipeline.ChunksEmitted),
		slog.Uint64("uploads_total", stats.Upload.TotalUploads),
		slog.Uint64("uploads_failed", stats.Upload.FailedUploads),
		slog.Uint64("push_updates", stats.Sync.PushUpdates),
		slog.Uint64("poll_updates", stats.Sync.PollUpdates),
		slog.Int("transcript_entries", stats.Reconciler.EntryCount),
	)

	logger.Info("Client stopped")
}

// initLogger creates and configures the structured logger based on configuration
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	// Parse log level
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
		level = slog.LevelInfo // default fallback
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug, // Add source info for debug level
	}

	// Determine output destination
	var output *os.File
	switch cfg.Output {
	case "stderr":
		output = os.Stderr
	case "stdout", "":
		output = os.Stdout
	default:
		// Assume it's a file path
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stdout\n", cfg.Output, err)
			output = os.Stdout
		} else {
			output = file
		}
	}

	// Create handler based on format
	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	case "text", "":
		handler = slog.NewTextHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}

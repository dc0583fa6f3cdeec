package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/FalconCode786/Minmeet/internal/config"
	"github.com/FalconCode786/Minmeet/internal/session"
)

// Server exposes local HTTP endpoints for observing a running session
type Server struct {
	server      *http.Server
	logger      *slog.Logger
	config      *config.Config
	coordinator *session.Coordinator

	startTime time.Time
}

// NewServer creates the monitoring HTTP server
func NewServer(cfg config.MonitorConfig, logger *slog.Logger,
	appConfig *config.Config, coordinator *session.Coordinator) *Server {

	s := &Server{
		logger:      logger,
		config:      appConfig,
		coordinator: coordinator,
		startTime:   time.Now(),
	}

	mux := http.NewServeMux()
	s.setupRoutes(mux)

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Address, cfg.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupRoutes configures HTTP routes
func (s *Server) setupRoutes(mux *http.ServeMux) {
	// Health check endpoint
	mux.HandleFunc("/health", s.handleHealth)

	// Statistics endpoint
	mux.HandleFunc("/stats", s.handleStats)

	// Configuration endpoint
	mux.HandleFunc("/config", s.handleConfig)

	// Reconciled transcript snapshot
	mux.HandleFunc("/minutes", s.handleMinutes)

	// Prometheus metrics endpoint
	mux.Handle("/metrics", promhttp.Handler())

	// Root endpoint with API documentation
	mux.HandleFunc("/", s.handleRoot)
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("Starting monitoring HTTP server",
		slog.String("address", s.server.Addr),
	)

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Monitoring server error", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping monitoring HTTP server...")

	return s.server.Shutdown(ctx)
}

// handleHealth implements the /health endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	uptime := time.Since(s.startTime)
	stats := s.coordinator.GetStats()
	syncState := stats.SyncState

	sessionStatus := "idle"
	if stats.Session != nil {
		sessionStatus = stats.Session.Status.String()
	}

	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    uptime.String(),
		"service": map[string]interface{}{
			"name":    "minmeet",
			"version": "1.0.0",
		},
		"components": map[string]interface{}{
			"session": map[string]interface{}{
				"status": sessionStatus,
			},
			"capture": map[string]interface{}{
				"state":            stats.Pipeline.State,
				"chunks_emitted":   stats.Pipeline.ChunksEmitted,
				"samples_captured": stats.Pipeline.SamplesCaptured,
			},
			"upload": map[string]interface{}{
				"total_uploads": stats.Upload.TotalUploads,
				"success_rate":  stats.Upload.SuccessRate,
			},
			"sync": map[string]interface{}{
				"mode":    string(syncState.Mode),
				"healthy": syncState.Healthy,
			},
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(health)
}

// handleStats implements the /stats endpoint
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	stats := map[string]interface{}{
		"uptime":     time.Since(s.startTime).String(),
		"timestamp":  time.Now().UTC(),
		"components": s.coordinator.GetStats(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}

// handleConfig implements the /config endpoint
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sanitizedConfig := map[string]interface{}{
		"capture": map[string]interface{}{
			"sample_rate":      s.config.Capture.SampleRate,
			"channels":         s.config.Capture.Channels,
			"segment_interval": s.config.Capture.SegmentInterval,
			"flush_grace_ms":   s.config.Capture.FlushGraceMs,
			"codec_preference": s.config.Capture.CodecPreference,
			"visualizer_rate":  s.config.Capture.VisualizerRate,
		},
		"service": map[string]interface{}{
			"base_url":               s.config.Service.BaseURL,
			"timeout":                s.config.Service.Timeout,
			"max_concurrent_uploads": s.config.Service.MaxConcurrentUploads,
		},
		"sync": map[string]interface{}{
			"poll_interval": s.config.Sync.PollInterval,
		},
		"logging": map[string]interface{}{
			"level":  s.config.Logging.Level,
			"format": s.config.Logging.Format,
			"output": s.config.Logging.Output,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sanitizedConfig)
}

// handleMinutes implements the /minutes endpoint
func (s *Server) handleMinutes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snapshot := s.coordinator.Snapshot()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(snapshot)
}

// handleRoot implements the / endpoint with API documentation
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	apiDoc := map[string]interface{}{
		"service": "Minmeet Meeting Capture Client",
		"version": "1.0.0",
		"endpoints": map[string]interface{}{
			"GET /":        "API documentation",
			"GET /health":  "Client health check",
			"GET /stats":   "Component statistics",
			"GET /config":  "Client configuration",
			"GET /minutes": "Reconciled transcript snapshot",
			"GET /metrics": "Prometheus metrics",
		},
		"timestamp": time.Now().UTC(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(apiDoc)
}

package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/FalconCode786/Minmeet/internal/audio"
	"github.com/FalconCode786/Minmeet/internal/config"
	"github.com/FalconCode786/Minmeet/internal/metrics"
	"github.com/FalconCode786/Minmeet/internal/minutes"
	"github.com/FalconCode786/Minmeet/internal/realtime"
	"github.com/FalconCode786/Minmeet/internal/upload"
)

// Status represents the meeting session lifecycle. Transitions only move
// forward; Completed is terminal.
type Status int

const (
	StatusActive Status = iota
	StatusStopping
	StatusCompleted
)

// String returns a human-readable status name
func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusStopping:
		return "stopping"
	case StatusCompleted:
		return "completed"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Session holds the identity and lifecycle of one meeting
type Session struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	StartTime time.Time `json:"start_time"`
	Status    Status    `json:"status"`
}

// Listeners receives presentation-layer notifications. Nil callbacks are
// skipped.
type Listeners struct {
	OnEntry      func(minutes.TranscriptEntry)
	OnQAPairs    func([]minutes.QAPair)
	OnSpeakers   func(int)
	OnVisualizer func(audio.VisualizerSample)
	OnFinalize   func()
}

// Stats aggregates component statistics for monitoring
type Stats struct {
	Session    *Session            `json:"session,omitempty"`
	Pipeline   audio.PipelineStats `json:"pipeline"`
	Upload     upload.ClientStats  `json:"upload"`
	Sync       realtime.Stats      `json:"sync"`
	SyncState  realtime.State      `json:"sync_state"`
	Reconciler minutes.Stats       `json:"reconciler"`
}

// Coordinator owns the active session and all components serving it
type Coordinator struct {
	cfg       *config.Config
	logger    *slog.Logger
	metrics   *metrics.Metrics
	listeners Listeners

	uploader   *upload.Client
	pipeline   *audio.Pipeline
	syncClient *realtime.Client
	reconciler *minutes.Reconciler

	sess             *Session
	uploadWG         sync.WaitGroup
	fallbackRecorded bool

	mu sync.Mutex
}

// New creates a coordinator. The source is injected so tests can substitute
// a fake capture device; m may be nil to disable metrics.
func New(cfg *config.Config, source audio.Source, logger *slog.Logger, m *metrics.Metrics) (*Coordinator, error) {
	uploader, err := upload.NewClient(upload.Config{
		BaseURL:       cfg.Service.BaseURL,
		Timeout:       cfg.Service.GetTimeoutDuration(),
		MaxConcurrent: cfg.Service.MaxConcurrentUploads,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create upload client: %w", err)
	}

	syncClient, err := realtime.NewClient(realtime.Config{
		BaseURL:      cfg.Service.BaseURL,
		PollInterval: cfg.Sync.GetPollInterval(),
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create sync client: %w", err)
	}

	pipeline := audio.NewPipeline(audio.PipelineConfig{
		SegmentInterval: cfg.Capture.GetSegmentInterval(),
		FlushGrace:      cfg.Capture.GetFlushGrace(),
		VisualizerRate:  cfg.Capture.VisualizerRate,
		CodecPreference: cfg.Capture.CodecPreference,
	}, source, logger)

	return &Coordinator{
		cfg:        cfg,
		logger:     logger,
		metrics:    m,
		uploader:   uploader,
		pipeline:   pipeline,
		syncClient: syncClient,
	}, nil
}

// SetListeners registers presentation-layer callbacks. Must be called
// before Start.
func (c *Coordinator) SetListeners(l Listeners) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = l
}

// Start begins a meeting session: registers it with the service, starts
// capture, and connects the sync client. A *audio.DeviceError aborts the
// start sequence and is recoverable by retrying.
func (c *Coordinator) Start(ctx context.Context, title string) error {
	c.mu.Lock()
	if c.sess != nil {
		c.mu.Unlock()
		return fmt.Errorf("session already started")
	}
	c.mu.Unlock()

	result, err := c.uploader.StartMeeting(ctx, title)
	if err != nil {
		return fmt.Errorf("failed to start meeting: %w", err)
	}

	constraints := audio.Constraints{
		SampleRate:       c.cfg.Capture.SampleRate,
		Channels:         c.cfg.Capture.Channels,
		EchoCancellation: c.cfg.Capture.EchoCancellation,
		NoiseSuppression: c.cfg.Capture.NoiseSuppression,
	}

	if err := c.pipeline.Initialize(constraints); err != nil {
		return err
	}

	sess := &Session{
		ID:        result.MeetingID,
		Title:     title,
		StartTime: time.Now(),
		Status:    StatusActive,
	}

	c.mu.Lock()
	c.sess = sess
	c.reconciler = minutes.NewReconciler(c.logger, minutes.Listener{
		OnEntry:    c.handleEntry,
		OnQAPairs:  c.handleQAPairs,
		OnSpeakers: c.listeners.OnSpeakers,
		OnFinalize: c.handleFinalize,
	})
	c.mu.Unlock()

	if err := c.pipeline.Start(c.handleChunk, c.listeners.OnVisualizer); err != nil {
		c.abortStart()
		return err
	}

	if err := c.syncClient.Start(sess.ID, c.handleUpdate); err != nil {
		c.abortStart()
		return fmt.Errorf("failed to start sync client: %w", err)
	}

	if c.metrics != nil {
		c.metrics.RecordSessionStarted()
	}

	c.logger.Info("Meeting session started",
		slog.String("meeting_id", sess.ID),
		slog.String("title", sess.Title),
	)

	return nil
}

// abortStart unwinds a partially started session so Start can be retried.
// The pipeline releases its source on Stop and accepts a fresh Initialize.
func (c *Coordinator) abortStart() {
	// Clear the session first so any final chunk cut during teardown is
	// dropped instead of uploaded for an abandoned meeting.
	c.mu.Lock()
	c.sess = nil
	c.reconciler = nil
	c.mu.Unlock()

	c.pipeline.Stop()
}

// handleChunk ships one segment to the service. Transmission failure is
// logged and the chunk is permanently lost; there is no retry. Uploads are
// not cancelled by session stop, so they run on their own context.
func (c *Coordinator) handleChunk(chunk audio.Chunk) {
	c.mu.Lock()
	sess := c.sess
	c.mu.Unlock()

	if sess == nil {
		return
	}

	if c.metrics != nil {
		c.metrics.RecordChunk(chunk.Duration().Seconds(), len(chunk.Data), chunk.IsFinal)
	}

	c.uploadWG.Add(1)
	go func() {
		defer c.uploadWG.Done()

		startTime := time.Now()
		err := c.uploader.UploadChunk(context.Background(), sess.ID, chunk)

		if c.metrics != nil {
			c.metrics.RecordUpload(time.Since(startTime).Seconds(), err != nil)
		}

		if err != nil {
			c.logger.Warn("Chunk upload failed, chunk lost",
				slog.String("meeting_id", sess.ID),
				slog.String("chunk_id", chunk.ID),
				slog.Int("seq", chunk.Seq),
				slog.Bool("is_final", chunk.IsFinal),
				slog.String("error", err.Error()),
			)
		}
	}()
}

// handleUpdate forwards one update payload into the reconciler
func (c *Coordinator) handleUpdate(u *minutes.Update) {
	c.mu.Lock()
	reconciler := c.reconciler
	c.mu.Unlock()

	if reconciler == nil {
		return
	}

	if c.metrics != nil {
		mode := c.syncClient.State().Mode
		c.metrics.RecordSyncUpdate(string(mode))

		if mode == realtime.ModePoll {
			c.mu.Lock()
			first := !c.fallbackRecorded
			c.fallbackRecorded = true
			c.mu.Unlock()

			if first {
				c.metrics.RecordSyncFallback()
			}
		}
	}

	before := reconciler.GetStats().DuplicatesDropped
	reconciler.Apply(u)

	if c.metrics != nil {
		if dropped := reconciler.GetStats().DuplicatesDropped - before; dropped > 0 {
			c.metrics.DuplicateEntries.Add(float64(dropped))
		}
	}
}

func (c *Coordinator) handleEntry(e minutes.TranscriptEntry) {
	if c.metrics != nil {
		c.metrics.RecordEntry()
	}

	if c.listeners.OnEntry != nil {
		c.listeners.OnEntry(e)
	}
}

func (c *Coordinator) handleQAPairs(pairs []minutes.QAPair) {
	if c.metrics != nil {
		c.metrics.RecordQAReplacement()
	}

	if c.listeners.OnQAPairs != nil {
		c.listeners.OnQAPairs(pairs)
	}
}

// handleFinalize fires once per session, regardless of how many completed
// signals arrive.
func (c *Coordinator) handleFinalize() {
	c.mu.Lock()
	sess := c.sess
	var duration time.Duration
	if sess != nil {
		sess.Status = StatusCompleted
		duration = time.Since(sess.StartTime)
	}
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.RecordFinalize()
		c.metrics.RecordSessionCompleted(duration.Seconds())
	}

	if c.listeners.OnFinalize != nil {
		c.listeners.OnFinalize()
	}
}

// Stop ends the session: stops capture (emitting the final chunk), waits
// for in-flight uploads, and finalizes the meeting on the service. A
// finalize failure is returned with the session left in Stopping so the
// caller can retry. Stopping an already completed session is a no-op.
func (c *Coordinator) Stop(ctx context.Context) error {
	c.mu.Lock()
	sess := c.sess
	if sess == nil {
		c.mu.Unlock()
		return nil
	}

	if sess.Status == StatusCompleted {
		c.mu.Unlock()
		return nil
	}

	firstStop := sess.Status == StatusActive
	sess.Status = StatusStopping
	c.mu.Unlock()

	if firstStop {
		if err := c.pipeline.Stop(); err != nil {
			c.logger.Warn("Capture teardown reported an error",
				slog.String("meeting_id", sess.ID),
				slog.String("error", err.Error()),
			)
		}

		// The final chunk upload is in flight like any other; give it the
		// chance to land before the finalize request.
		c.uploadWG.Wait()
	}

	if _, err := c.uploader.StopMeeting(ctx, sess.ID); err != nil {
		return fmt.Errorf("failed to finalize meeting: %w", err)
	}

	// The service acknowledged completion; route it through the reconciler
	// so the finalize notification still fires exactly once even when the
	// stream delivered its own completed status.
	c.mu.Lock()
	reconciler := c.reconciler
	c.mu.Unlock()

	if reconciler != nil {
		reconciler.Apply(&minutes.Update{Status: minutes.StatusCompleted})
	}

	c.syncClient.Stop()

	c.mu.Lock()
	sess.Status = StatusCompleted
	c.mu.Unlock()

	c.logger.Info("Meeting session stopped",
		slog.String("meeting_id", sess.ID),
		slog.Duration("duration", time.Since(sess.StartTime)),
	)

	return nil
}

// Session returns a snapshot of the active session, or nil
func (c *Coordinator) Session() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sess == nil {
		return nil
	}

	snapshot := *c.sess
	return &snapshot
}

// Snapshot returns a copy of the reconciled meeting state
func (c *Coordinator) Snapshot() minutes.Snapshot {
	c.mu.Lock()
	reconciler := c.reconciler
	c.mu.Unlock()

	if reconciler == nil {
		return minutes.Snapshot{}
	}

	return reconciler.Snapshot()
}

// GetStats aggregates statistics from every component
func (c *Coordinator) GetStats() Stats {
	c.mu.Lock()
	sess := c.sess
	reconciler := c.reconciler
	c.mu.Unlock()

	stats := Stats{
		Pipeline:  c.pipeline.GetStats(),
		Upload:    c.uploader.GetStats(),
		Sync:      c.syncClient.GetStats(),
		SyncState: c.syncClient.State(),
	}

	if sess != nil {
		snapshot := *sess
		stats.Session = &snapshot
	}

	if reconciler != nil {
		stats.Reconciler = reconciler.GetStats()
	}

	return stats
}

package audio

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// pipelineState represents the lifecycle of the capture pipeline
type pipelineState int

const (
	stateIdle pipelineState = iota
	stateInitialized
	stateRecording
	stateStopping
	stateStopped
)

// Chunk represents a bounded unit of encoded audio ready for upload
type Chunk struct {
	ID      string    `json:"chunk_id"`
	Seq     int       `json:"seq"`
	Data    []byte    `json:"-"`
	Codec   string    `json:"codec"`
	Start   time.Time `json:"start_time"`
	End     time.Time `json:"end_time"`
	IsFinal bool      `json:"is_final"`
}

// Duration returns the capture time covered by the chunk
func (c Chunk) Duration() time.Duration {
	return c.End.Sub(c.Start)
}

// ChunkHandler receives finished segments as they are cut
type ChunkHandler func(Chunk)

// VisualizerHandler receives frequency samples at the visualizer rate
type VisualizerHandler func(VisualizerSample)

// PipelineConfig contains capture pipeline parameters
type PipelineConfig struct {
	SegmentInterval time.Duration
	FlushGrace      time.Duration
	VisualizerRate  int
	CodecPreference []string
}

// PipelineStats represents pipeline statistics
type PipelineStats struct {
	State           string        `json:"state"`
	ChunksEmitted   uint64        `json:"chunks_emitted"`
	SamplesCaptured uint64        `json:"samples_captured"`
	TotalDuration   time.Duration `json:"total_duration"`
	Codec           string        `json:"codec"`
}

// Pipeline owns the audio source, the encoder, the segmentation timer, and
// the visualizer feed for the lifetime of a recording.
type Pipeline struct {
	config PipelineConfig
	logger *slog.Logger
	source Source

	encoder     Encoder
	sampleRate  int
	constraints Constraints

	state    pipelineState
	pending  []int16
	ring     *analysisRing
	segStart time.Time
	seq      int

	onChunk ChunkHandler
	onViz   VisualizerHandler

	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Statistics
	chunksEmitted   uint64
	samplesCaptured uint64
	totalDuration   time.Duration

	mu sync.Mutex
}

// NewPipeline creates a capture pipeline over the given source
func NewPipeline(config PipelineConfig, source Source, logger *slog.Logger) *Pipeline {
	if config.SegmentInterval <= 0 {
		config.SegmentInterval = 5 * time.Second
	}

	if config.FlushGrace <= 0 {
		config.FlushGrace = 100 * time.Millisecond
	}

	if config.VisualizerRate <= 0 {
		config.VisualizerRate = 30
	}

	return &Pipeline{
		config: config,
		logger: logger,
		source: source,
		ring:   newAnalysisRing(),
	}
}

// Initialize acquires the audio source under the given constraints and
// selects an encoder from the configured codec preference list. Failures
// surface as *DeviceError and abort the start sequence; retrying after the
// user grants access is safe. A stopped pipeline may be initialized again.
func (p *Pipeline) Initialize(c Constraints) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != stateIdle && p.state != stateStopped {
		return fmt.Errorf("pipeline already initialized")
	}

	if err := p.source.Open(c); err != nil {
		return &DeviceError{Op: "acquire", Err: err}
	}

	p.encoder = SelectEncoder(p.config.CodecPreference)
	if p.encoder == nil {
		p.source.Close()
		return &DeviceError{Op: "encoder", Err: fmt.Errorf("no compatible encoder for %v", p.config.CodecPreference)}
	}

	p.sampleRate = c.SampleRate
	p.constraints = c
	p.pending = nil
	p.seq = 0
	p.state = stateInitialized

	p.logger.Info("Capture pipeline initialized",
		slog.Int("sample_rate", c.SampleRate),
		slog.Int("channels", c.Channels),
		slog.Bool("echo_cancellation", c.EchoCancellation),
		slog.Bool("noise_suppression", c.NoiseSuppression),
		slog.String("codec", p.encoder.Codec()),
	)

	return nil
}

// Start begins continuous capture. The segmentation timer cuts a non-final
// chunk every SegmentInterval; the visualizer timer samples frequency data
// at VisualizerRate. Both run until Stop.
func (p *Pipeline) Start(onChunk ChunkHandler, onViz VisualizerHandler) error {
	p.mu.Lock()

	if p.state != stateInitialized {
		p.mu.Unlock()
		return fmt.Errorf("pipeline not initialized")
	}

	p.onChunk = onChunk
	p.onViz = onViz
	p.segStart = time.Now()
	p.state = stateRecording

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.mu.Unlock()

	if err := p.source.Start(p.ingest); err != nil {
		p.mu.Lock()
		p.state = stateInitialized
		p.cancel = nil
		p.mu.Unlock()
		cancel()
		return &DeviceError{Op: "start", Err: err}
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.segmentLoop(ctx)
	}()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.visualizerLoop(ctx)
	}()

	p.logger.Info("Capture started",
		slog.Duration("segment_interval", p.config.SegmentInterval),
		slog.Duration("flush_grace", p.config.FlushGrace),
		slog.Int("visualizer_rate", p.config.VisualizerRate),
	)

	return nil
}

// ingest receives frames from the source's capture thread. Frames are still
// accepted while stopping so the final flush grace window catches late
// deliveries.
func (p *Pipeline) ingest(samples []int16) {
	p.mu.Lock()
	if p.state == stateRecording || p.state == stateStopping {
		p.pending = append(p.pending, samples...)
		p.samplesCaptured += uint64(len(samples))
	}
	p.mu.Unlock()

	p.ring.write(samples)
}

// segmentLoop cuts a segment on every tick until cancelled
func (p *Pipeline) segmentLoop(ctx context.Context) {
	ticker := time.NewTicker(p.config.SegmentInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.cutSegment(ctx, false)
		}
	}
}

// visualizerLoop forwards frequency samples at the configured rate
func (p *Pipeline) visualizerLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Second / time.Duration(p.config.VisualizerRate))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if p.onViz != nil {
				p.onViz(p.ring.sample(p.sampleRate))
			}
		}
	}
}

// cutSegment flushes the source, waits out the grace delay, and emits the
// accumulated samples as one chunk. The grace delay exists because buffer
// delivery is asynchronous relative to the flush request; draining
// immediately risks losing frames delivered moments later. Empty drains are
// dropped silently.
func (p *Pipeline) cutSegment(ctx context.Context, final bool) {
	p.source.Flush()

	if final {
		// Stop is draining; the grace delay is still honored so frames in
		// flight from the final flush are not lost.
		time.Sleep(p.config.FlushGrace)
	} else {
		select {
		case <-time.After(p.config.FlushGrace):
		case <-ctx.Done():
			return
		}
	}

	now := time.Now()

	p.mu.Lock()
	samples := p.pending
	p.pending = nil
	start := p.segStart
	p.segStart = now
	seq := p.seq
	encoder := p.encoder
	sampleRate := p.sampleRate
	p.mu.Unlock()

	if len(samples) == 0 {
		return
	}

	data, err := encoder.Encode(samples, sampleRate)
	if err != nil {
		p.logger.Error("Segment encoding failed, segment dropped",
			slog.Int("seq", seq),
			slog.Int("samples", len(samples)),
			slog.String("error", err.Error()),
		)
		return
	}

	chunk := Chunk{
		ID:      uuid.NewString(),
		Seq:     seq,
		Data:    data,
		Codec:   encoder.Codec(),
		Start:   start,
		End:     now,
		IsFinal: final,
	}

	p.mu.Lock()
	p.seq++
	p.chunksEmitted++
	p.totalDuration += chunk.Duration()
	onChunk := p.onChunk
	p.mu.Unlock()

	p.logger.Debug("Segment cut",
		slog.String("chunk_id", chunk.ID),
		slog.Int("seq", chunk.Seq),
		slog.Int("bytes", len(chunk.Data)),
		slog.Float64("duration", chunk.Duration().Seconds()),
		slog.Bool("is_final", chunk.IsFinal),
	)

	if onChunk != nil {
		onChunk(chunk)
	}
}

// Stop cancels both timers, performs the final flush, emits at most one
// final chunk, and releases the source and encoder. Release happens on every
// exit path, even when the final flush fails. Calling Stop again is a safe
// no-op.
func (p *Pipeline) Stop() error {
	p.mu.Lock()

	switch p.state {
	case stateStopped, stateStopping, stateIdle:
		p.mu.Unlock()
		return nil
	case stateInitialized:
		p.state = stateStopped
		p.mu.Unlock()
		return p.source.Close()
	}

	// Move out of recording before releasing the lock so a concurrent Stop
	// sees the transition and returns instead of racing the teardown.
	p.state = stateStopping
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()

	cancel()
	p.wg.Wait()

	// Resources are released no matter how the final drain goes.
	defer func() {
		p.source.Close()

		p.mu.Lock()
		p.encoder = nil
		p.mu.Unlock()
	}()

	p.cutSegment(context.Background(), true)

	p.mu.Lock()
	p.state = stateStopped
	stats := PipelineStats{
		ChunksEmitted:   p.chunksEmitted,
		SamplesCaptured: p.samplesCaptured,
		TotalDuration:   p.totalDuration,
	}
	p.mu.Unlock()

	p.logger.Info("Capture stopped",
		slog.Uint64("chunks_emitted", stats.ChunksEmitted),
		slog.Uint64("samples_captured", stats.SamplesCaptured),
		slog.Float64("total_duration", stats.TotalDuration.Seconds()),
	)

	return nil
}

// GetStats returns current pipeline statistics
func (p *Pipeline) GetStats() PipelineStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	stateStr := "idle"
	switch p.state {
	case stateInitialized:
		stateStr = "initialized"
	case stateRecording:
		stateStr = "recording"
	case stateStopping:
		stateStr = "stopping"
	case stateStopped:
		stateStr = "stopped"
	}

	codec := ""
	if p.encoder != nil {
		codec = p.encoder.Codec()
	}

	return PipelineStats{
		State:           stateStr,
		ChunksEmitted:   p.chunksEmitted,
		SamplesCaptured: p.samplesCaptured,
		TotalDuration:   p.totalDuration,
		Codec:           codec,
	}
}

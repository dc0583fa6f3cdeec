package audio

import (
	"math"
	"sync"
	"time"
)

// analysisWindow is the number of recent samples the visualizer inspects.
const analysisWindow = 1024

// defaultBins is the number of frequency bins in a visualizer sample.
const defaultBins = 32

// VisualizerSample carries frequency-domain bins and their mean amplitude.
// The feed is purely informational and carries no correctness obligation.
type VisualizerSample struct {
	Bins      []float64 `json:"bins"`
	Mean      float64   `json:"mean"`
	Timestamp time.Time `json:"timestamp"`
}

// analysisRing holds the most recent capture samples for frequency analysis.
// The capture callback writes, the visualizer ticker only reads a copy.
type analysisRing struct {
	buf []int16
	pos int

	mu sync.Mutex
}

func newAnalysisRing() *analysisRing {
	return &analysisRing{
		buf: make([]int16, analysisWindow),
	}
}

// write appends samples, overwriting the oldest
func (r *analysisRing) write(samples []int16) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range samples {
		r.buf[r.pos] = s
		r.pos = (r.pos + 1) % len(r.buf)
	}
}

// window returns the buffered samples in arrival order
func (r *analysisRing) window() []int16 {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]int16, len(r.buf))
	n := copy(out, r.buf[r.pos:])
	copy(out[n:], r.buf[:r.pos])
	return out
}

// sample computes frequency-domain bins over the current window using the
// Goertzel algorithm, plus the mean normalized amplitude of the window.
func (r *analysisRing) sample(sampleRate int) VisualizerSample {
	window := r.window()

	bins := make([]float64, defaultBins)
	nyquist := float64(sampleRate) / 2

	var meanAbs float64
	for _, s := range window {
		meanAbs += math.Abs(float64(s))
	}
	meanAbs /= float64(len(window)) * 32768

	for k := 0; k < defaultBins; k++ {
		freq := nyquist * float64(k+1) / float64(defaultBins+1)
		bins[k] = goertzel(window, freq, sampleRate) / float64(len(window))
	}

	return VisualizerSample{
		Bins:      bins,
		Mean:      meanAbs,
		Timestamp: time.Now(),
	}
}

// goertzel returns the magnitude of the given frequency component
func goertzel(samples []int16, freq float64, sampleRate int) float64 {
	omega := 2 * math.Pi * freq / float64(sampleRate)
	coeff := 2 * math.Cos(omega)

	var s0, s1, s2 float64
	for _, sample := range samples {
		s0 = float64(sample)/32768 + coeff*s1 - s2
		s2 = s1
		s1 = s0
	}

	power := s1*s1 + s2*s2 - coeff*s1*s2
	if power < 0 {
		power = 0
	}

	return math.Sqrt(power)
}

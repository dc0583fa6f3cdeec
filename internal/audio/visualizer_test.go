package audio

import (
	"math"
	"testing"
)

func TestAnalysisRingWindow(t *testing.T) {
	ring := newAnalysisRing()

	// Overfill the ring so it wraps
	samples := make([]int16, analysisWindow+100)
	for i := range samples {
		samples[i] = int16(i)
	}
	ring.write(samples)

	window := ring.window()
	if len(window) != analysisWindow {
		t.Fatalf("Expected window of %d samples, got %d", analysisWindow, len(window))
	}

	// The window holds the most recent samples in arrival order
	for i, s := range window {
		want := int16(i + 100)
		if s != want {
			t.Fatalf("Sample %d: expected %d, got %d", i, want, s)
		}
	}
}

func TestVisualizerSampleSilence(t *testing.T) {
	ring := newAnalysisRing()

	sample := ring.sample(16000)
	if len(sample.Bins) != defaultBins {
		t.Fatalf("Expected %d bins, got %d", defaultBins, len(sample.Bins))
	}

	if sample.Mean != 0 {
		t.Errorf("Expected zero mean amplitude for silence, got %f", sample.Mean)
	}
	for i, bin := range sample.Bins {
		if bin != 0 {
			t.Errorf("Bin %d: expected zero magnitude for silence, got %f", i, bin)
		}
	}
}

func TestVisualizerSampleDetectsTone(t *testing.T) {
	ring := newAnalysisRing()
	sampleRate := 16000

	// A pure tone at the center frequency of one bin should dominate
	nyquist := float64(sampleRate) / 2
	targetBin := 3
	freq := nyquist * float64(targetBin+1) / float64(defaultBins+1)

	tone := make([]int16, analysisWindow)
	for i := range tone {
		ts := float64(i) / float64(sampleRate)
		tone[i] = int16(16000 * math.Sin(2*math.Pi*freq*ts))
	}
	ring.write(tone)

	sample := ring.sample(sampleRate)

	if sample.Mean <= 0 {
		t.Error("Expected positive mean amplitude for a tone")
	}

	maxBin := 0
	for i, bin := range sample.Bins {
		if bin > sample.Bins[maxBin] {
			maxBin = i
		}
	}

	if maxBin != targetBin {
		t.Errorf("Expected bin %d to dominate, got bin %d", targetBin, maxBin)
	}
}

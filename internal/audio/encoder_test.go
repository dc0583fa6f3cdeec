package audio

import (
	"encoding/binary"
	"testing"
)

func TestSelectEncoder(t *testing.T) {
	tests := []struct {
		name       string
		preference []string
		wantCodec  string
	}{
		{
			name:       "first preference wins",
			preference: []string{"wav", "pcm"},
			wantCodec:  CodecWAV,
		},
		{
			name:       "pcm preferred",
			preference: []string{"pcm", "wav"},
			wantCodec:  CodecPCM,
		},
		{
			name:       "unknown codecs skipped",
			preference: []string{"opus", "webm", "wav"},
			wantCodec:  CodecWAV,
		},
		{
			name:       "nothing supported falls back to pcm",
			preference: []string{"opus", "webm"},
			wantCodec:  CodecPCM,
		},
		{
			name:       "empty preference falls back to pcm",
			preference: nil,
			wantCodec:  CodecPCM,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc := SelectEncoder(tt.preference)
			if enc == nil {
				t.Fatal("SelectEncoder returned nil")
			}
			if enc.Codec() != tt.wantCodec {
				t.Errorf("Expected codec %s, got %s", tt.wantCodec, enc.Codec())
			}
		})
	}
}

func TestPCMEncoder(t *testing.T) {
	enc := SelectEncoder([]string{"pcm"})

	samples := []int16{0, 1, -1, 32767, -32768}
	data, err := enc.Encode(samples, 16000)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	if len(data) != len(samples)*2 {
		t.Fatalf("Expected %d bytes, got %d", len(samples)*2, len(data))
	}

	for i, want := range samples {
		got := int16(binary.LittleEndian.Uint16(data[i*2:]))
		if got != want {
			t.Errorf("Sample %d: expected %d, got %d", i, want, got)
		}
	}
}

func TestPCMEncoderEmpty(t *testing.T) {
	enc := SelectEncoder([]string{"pcm"})

	if _, err := enc.Encode(nil, 16000); err == nil {
		t.Error("Expected error for empty samples")
	}

	if _, err := enc.Encode([]int16{1, 2}, 0); err == nil {
		t.Error("Expected error for zero sample rate")
	}
}

func TestWAVEncoderRoundTrip(t *testing.T) {
	enc := SelectEncoder([]string{"wav"})

	samples := []int16{10, 20, 30, 40}
	data, err := enc.Encode(samples, 16000)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	decoded, rate, err := DecodeWAV(data)
	if err != nil {
		t.Fatalf("DecodeWAV failed: %v", err)
	}

	if rate != 16000 {
		t.Errorf("Expected sample rate 16000, got %d", rate)
	}

	if len(decoded) != len(samples) {
		t.Errorf("Expected %d samples, got %d", len(samples), len(decoded))
	}
}

func TestSupportedCodecs(t *testing.T) {
	codecs := SupportedCodecs()
	if len(codecs) != 2 {
		t.Fatalf("Expected 2 supported codecs, got %d", len(codecs))
	}
}

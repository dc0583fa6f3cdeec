package audio

import (
	"encoding/binary"
	"fmt"
)

// CodecPCM is the universal fallback codec: raw little-endian PCM-16 bytes.
const CodecPCM = "pcm"

// CodecWAV wraps PCM-16 samples in a RIFF/WAVE container.
const CodecWAV = "wav"

// Encoder turns accumulated PCM samples into an encoded segment payload
type Encoder interface {
	// Codec returns the codec tag carried on chunks produced by this encoder
	Codec() string
	// Encode encodes the given samples at the given rate
	Encode(samples []int16, sampleRate int) ([]byte, error)
}

// SelectEncoder picks the first supported codec from a preference-ordered
// list. Unknown codec names are skipped; if nothing in the list is supported
// the universal PCM fallback is returned.
func SelectEncoder(preference []string) Encoder {
	for _, codec := range preference {
		switch codec {
		case CodecWAV:
			return wavEncoder{}
		case CodecPCM:
			return pcmEncoder{}
		}
	}

	return pcmEncoder{}
}

// SupportedCodecs returns the codec names SelectEncoder understands
func SupportedCodecs() []string {
	return []string{CodecWAV, CodecPCM}
}

type wavEncoder struct{}

func (wavEncoder) Codec() string { return CodecWAV }

func (wavEncoder) Encode(samples []int16, sampleRate int) ([]byte, error) {
	return EncodeWAV(samples, sampleRate)
}

type pcmEncoder struct{}

func (pcmEncoder) Codec() string { return CodecPCM }

func (pcmEncoder) Encode(samples []int16, sampleRate int) ([]byte, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("cannot encode empty audio samples")
	}

	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}

	data := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(data[i*2:], uint16(s))
	}

	return data, nil
}

package audio

import (
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
)

// Constraints describe the capture quality requested from the audio source.
// Echo cancellation and noise suppression are requests, not guarantees; the
// device backend applies what the OS capture stack supports.
type Constraints struct {
	SampleRate       int
	Channels         int
	EchoCancellation bool
	NoiseSuppression bool
}

// Source delivers PCM-16 frames from an audio capture device. The pipeline
// owns the source exclusively for the lifetime of a recording.
type Source interface {
	// Open acquires the device under the given constraints. Acquiring may
	// block indefinitely on user consent.
	Open(c Constraints) error
	// Start begins continuous capture, invoking onData for every delivered
	// frame. onData is called from the device's own thread.
	Start(onData func(samples []int16)) error
	// Flush requests delivery of any frames still buffered in the device.
	// Delivery is asynchronous relative to the request.
	Flush()
	// Close releases the device. Safe to call more than once.
	Close() error
}

// DeviceSource captures microphone audio through miniaudio
type DeviceSource struct {
	ctx    *malgo.AllocatedContext
	device *malgo.Device

	onData func(samples []int16)
	mu     sync.Mutex
}

// NewDeviceSource creates an unopened microphone source
func NewDeviceSource() *DeviceSource {
	return &DeviceSource{}
}

// Open acquires the default capture device
func (d *DeviceSource) Open(c Constraints) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.device != nil {
		return fmt.Errorf("device already open")
	}

	ctxConfig := malgo.ContextConfig{}
	ctxConfig.ThreadPriority = malgo.ThreadPriorityRealtime

	ctx, err := malgo.InitContext(nil, ctxConfig, nil)
	if err != nil {
		return fmt.Errorf("failed to init audio context: %w", err)
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = uint32(c.Channels)
	deviceConfig.SampleRate = uint32(c.SampleRate)
	deviceConfig.PeriodSizeInMilliseconds = 20

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, pInputSamples []byte, _ uint32) {
			d.mu.Lock()
			onData := d.onData
			d.mu.Unlock()

			if onData != nil {
				onData(bytesToSamples(pInputSamples))
			}
		},
	}

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, callbacks)
	if err != nil {
		ctx.Uninit()
		return fmt.Errorf("failed to init capture device: %w", err)
	}

	d.ctx = ctx
	d.device = device

	return nil
}

// Start begins continuous capture
func (d *DeviceSource) Start(onData func(samples []int16)) error {
	d.mu.Lock()
	device := d.device
	d.onData = onData
	d.mu.Unlock()

	if device == nil {
		return fmt.Errorf("device not open")
	}

	if err := device.Start(); err != nil {
		return fmt.Errorf("failed to start capture device: %w", err)
	}

	return nil
}

// Flush is a no-op for the hardware source: miniaudio delivers period
// buffers continuously, so frames pending at flush time arrive on their own
// within one period.
func (d *DeviceSource) Flush() {}

// Close releases the device and audio context
func (d *DeviceSource) Close() error {
	d.mu.Lock()
	device := d.device
	ctx := d.ctx
	d.device = nil
	d.ctx = nil
	d.onData = nil
	d.mu.Unlock()

	if device != nil {
		device.Stop()
		device.Uninit()
	}

	if ctx != nil {
		ctx.Uninit()
	}

	return nil
}

// bytesToSamples converts little-endian PCM-16 bytes to samples
func bytesToSamples(data []byte) []int16 {
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(data[i*2]) | int16(data[i*2+1])<<8
	}
	return samples
}

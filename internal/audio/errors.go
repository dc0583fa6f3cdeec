package audio

import "fmt"

// DeviceError reports a failure to acquire or configure the capture device,
// including permission denials and missing encoder support. It aborts the
// start sequence and is recoverable by retrying once access is granted.
type DeviceError struct {
	Op  string
	Err error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("audio device %s: %v", e.Op, e.Err)
}

func (e *DeviceError) Unwrap() error {
	return e.Err
}

// Package device provides line-oriented connections to rig instruments.
package device

import (
	"errors"
	"time"
)

// Common errors
var (
	// ErrDeviceIO wraps failures to open, write to, or read from a device.
	ErrDeviceIO = errors.New("device i/o")

	ErrTimeout = errors.New("device: read timed out")
	ErrClosed  = errors.New("device: port closed")
	ErrNotOpen = errors.New("device: port not open")
)

// A Port is a line-oriented connection to an instrument.
//
// ReadLine returns the next line with surrounding whitespace removed. It
// returns ErrTimeout if no complete line arrives in time. Open and Write
// failures wrap ErrDeviceIO.
type Port interface {
	Open() error
	Write(p []byte) (int, error)
	ReadLine(timeout time.Duration) (string, error)
	Close() error
}

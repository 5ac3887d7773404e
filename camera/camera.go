// Package camera wraps a thermal camera behind a small driver interface
// and converts its raw frames to temperatures.
package camera

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"
)

// DefaultAcquireTimeout bounds a single frame grab.
const DefaultAcquireTimeout = time.Second

var (
	// ErrHardwareUnavailable is returned when no camera or more than one
	// camera is connected.
	ErrHardwareUnavailable = errors.New("camera: hardware unavailable")

	// ErrIncomplete is returned by a Device for a partially received frame.
	ErrIncomplete = errors.New("camera: incomplete frame")

	ErrInvalidValue = errors.New("camera: invalid value")
	ErrClosed       = errors.New("camera: closed")
)

// A RawFrame holds sensor counts in tenths of a kelvin, row-major.
type RawFrame struct {
	Width, Height int
	Data          []uint16
}

// Device is one camera as reported by a System.
type Device interface {
	Init() error
	Cleanup() error
	Acquire(timeout time.Duration) (RawFrame, error)
	AutoFocus() error
	SetEmissivity(e float64) error
	SetDistance(d float64) error
}

// System enumerates connected cameras.
type System interface {
	Cameras() ([]Device, error)
	Release() error
}

// Camera is an initialized Device that remembers its last good frame.
type Camera struct {
	sys System
	dev Device

	mx     sync.Mutex
	last   *Frame
	closed bool
}

// Open initializes the only camera of sys. It fails with
// ErrHardwareUnavailable unless exactly one camera is connected.
func Open(sys System) (*Camera, error) {
	cams, err := sys.Cameras()
	if err != nil {
		sys.Release()
		return nil, fmt.Errorf("%w: enumerate: %w", ErrHardwareUnavailable, err)
	}
	if len(cams) != 1 {
		sys.Release()
		return nil, fmt.Errorf("%w: found %d cameras", ErrHardwareUnavailable, len(cams))
	}
	err = cams[0].Init()
	if err != nil {
		sys.Release()
		return nil, fmt.Errorf("%w: init: %w", ErrHardwareUnavailable, err)
	}

	return &Camera{sys: sys, dev: cams[0]}, nil
}

// CaptureFrame grabs the next frame. An incomplete frame yields the last
// good frame instead.
func (c *Camera) CaptureFrame() (*Frame, error) {
	c.mx.Lock()
	defer c.mx.Unlock()
	if c.closed {
		return nil, ErrClosed
	}

	raw, err := c.dev.Acquire(DefaultAcquireTimeout)
	if errors.Is(err, ErrIncomplete) && c.last != nil {
		return c.last, nil
	}
	if err != nil {
		return nil, err
	}
	f, err := FromRaw(raw)
	if err != nil {
		return nil, err
	}
	c.last = f
	return f, nil
}

func (c *Camera) AutoFocus() error {
	c.mx.Lock()
	defer c.mx.Unlock()
	if c.closed {
		return ErrClosed
	}
	return c.dev.AutoFocus()
}

// SetEmissivity expects a value between 0 and 1.
func (c *Camera) SetEmissivity(e float64) error {
	if math.IsNaN(e) || e < 0 || e > 1 {
		return fmt.Errorf("%w: emissivity %v not in [0,1]", ErrInvalidValue, e)
	}
	c.mx.Lock()
	defer c.mx.Unlock()
	if c.closed {
		return ErrClosed
	}
	return c.dev.SetEmissivity(e)
}

// SetDistance sets the object distance.
func (c *Camera) SetDistance(d float64) error {
	if math.IsNaN(d) || math.IsInf(d, 0) || d < 0 {
		return fmt.Errorf("%w: distance %v", ErrInvalidValue, d)
	}
	c.mx.Lock()
	defer c.mx.Unlock()
	if c.closed {
		return ErrClosed
	}
	return c.dev.SetDistance(d)
}

// Cleanup stops acquisition and releases the system. It is safe to call
// more than once.
func (c *Camera) Cleanup() error {
	c.mx.Lock()
	defer c.mx.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	err := c.dev.Cleanup()
	if relErr := c.sys.Release(); err == nil {
		err = relErr
	}
	return err
}

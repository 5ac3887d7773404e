package device

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// Opener returns a fresh connection to a device.
type Opener func() (io.ReadWriteCloser, error)

// Conn is a Port over any byte stream.
type Conn struct {
	name string
	open Opener

	mx  sync.Mutex
	wMx sync.Mutex
	rw  io.ReadWriteCloser
	lr  *lineReader
}

var _ Port = &Conn{}

// NewConn creates a Conn. The name is only used in error messages.
func NewConn(name string, open Opener) *Conn {
	return &Conn{name: name, open: open}
}

// Name returns the device name.
func (c *Conn) Name() string { return c.name }

// Open connects to the device. Opening an open Conn is a no-op.
func (c *Conn) Open() error {
	c.mx.Lock()
	defer c.mx.Unlock()
	if c.rw != nil {
		return nil
	}

	rw, err := c.open()
	if err != nil {
		return fmt.Errorf("%w: open %s: %w", ErrDeviceIO, c.name, err)
	}
	c.rw = rw
	c.lr = newLineReader(rw)
	return nil
}

func (c *Conn) conn() (io.ReadWriteCloser, *lineReader) {
	c.mx.Lock()
	defer c.mx.Unlock()
	return c.rw, c.lr
}

// Write sends p to the device in full.
func (c *Conn) Write(p []byte) (int, error) {
	rw, _ := c.conn()
	if rw == nil {
		return 0, ErrNotOpen
	}

	c.wMx.Lock()
	n, err := rw.Write(p)
	c.wMx.Unlock()
	if err != nil {
		return n, fmt.Errorf("%w: write %s: %w", ErrDeviceIO, c.name, err)
	}
	return n, nil
}

// ReadLine waits up to timeout for the next line from the device.
func (c *Conn) ReadLine(timeout time.Duration) (string, error) {
	_, lr := c.conn()
	if lr == nil {
		return "", ErrNotOpen
	}
	return lr.readLine(timeout)
}

// Close disconnects from the device. Pending reads return ErrClosed,
// later ones ErrNotOpen until the Conn is opened again.
func (c *Conn) Close() error {
	c.mx.Lock()
	defer c.mx.Unlock()
	if c.rw == nil {
		return nil
	}

	c.lr.close()
	err := c.rw.Close()
	c.rw = nil
	c.lr = nil
	if err != nil {
		return fmt.Errorf("%w: close %s: %w", ErrDeviceIO, c.name, err)
	}
	return nil
}

// Package devicetest provides an in-memory device.Port for tests.
package devicetest

import (
	"sync"
	"time"

	"github.com/mastercactapus/wellrig/device"
)

// Fake is a scriptable device.Port.
type Fake struct {
	// OnWrite, if set, is called for every successful write. Replies
	// pushed from it are delivered like device output.
	OnWrite func(f *Fake, p []byte)

	mx       sync.Mutex
	open     bool
	opens    int
	writes   []string
	openErr  error
	openGate chan struct{}
	writeErr error
	closeCh  chan struct{}
	lines    chan string
}

var _ device.Port = &Fake{}

// New returns a closed Fake.
func New() *Fake {
	return &Fake{lines: make(chan string, 1024)}
}

// FailOpen makes the next Open calls return err.
func (f *Fake) FailOpen(err error) {
	f.mx.Lock()
	f.openErr = err
	f.mx.Unlock()
}

// HoldOpen makes Open calls block until release is called.
func (f *Fake) HoldOpen() (release func()) {
	gate := make(chan struct{})
	f.mx.Lock()
	f.openGate = gate
	f.mx.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

// FailWrite makes Write calls return err.
func (f *Fake) FailWrite(err error) {
	f.mx.Lock()
	f.writeErr = err
	f.mx.Unlock()
}

// Push queues lines to be returned by ReadLine.
func (f *Fake) Push(lines ...string) {
	for _, l := range lines {
		f.lines <- l
	}
}

// Writes returns everything written so far, one entry per Write call.
func (f *Fake) Writes() []string {
	f.mx.Lock()
	defer f.mx.Unlock()
	return append([]string(nil), f.writes...)
}

// IsOpen reports whether the port is open.
func (f *Fake) IsOpen() bool {
	f.mx.Lock()
	defer f.mx.Unlock()
	return f.open
}

// Opens returns how many times the port was opened.
func (f *Fake) Opens() int {
	f.mx.Lock()
	defer f.mx.Unlock()
	return f.opens
}

func (f *Fake) Open() error {
	f.mx.Lock()
	gate := f.openGate
	f.mx.Unlock()
	if gate != nil {
		<-gate
	}

	f.mx.Lock()
	defer f.mx.Unlock()
	if f.openErr != nil {
		return f.openErr
	}
	if !f.open {
		f.open = true
		f.opens++
		f.closeCh = make(chan struct{})
	}
	return nil
}

func (f *Fake) Write(p []byte) (int, error) {
	f.mx.Lock()
	if !f.open {
		f.mx.Unlock()
		return 0, device.ErrNotOpen
	}
	if f.writeErr != nil {
		err := f.writeErr
		f.mx.Unlock()
		return 0, err
	}
	f.writes = append(f.writes, string(p))
	onWrite := f.OnWrite
	f.mx.Unlock()

	if onWrite != nil {
		onWrite(f, p)
	}
	return len(p), nil
}

func (f *Fake) ReadLine(timeout time.Duration) (string, error) {
	f.mx.Lock()
	if !f.open {
		f.mx.Unlock()
		return "", device.ErrNotOpen
	}
	closeCh := f.closeCh
	f.mx.Unlock()

	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case l := <-f.lines:
		return l, nil
	case <-closeCh:
		return "", device.ErrClosed
	case <-t.C:
		return "", device.ErrTimeout
	}
}

func (f *Fake) Close() error {
	f.mx.Lock()
	defer f.mx.Unlock()
	if f.open {
		f.open = false
		close(f.closeCh)
	}
	return nil
}

package spjs

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/mastercactapus/wellrig/device"
)

// Port is a device.Port for a serial port attached to an SPJS server.
type Port struct {
	sp   *SPJS
	name string
	baud int

	mx      sync.Mutex
	frames  chan string
	pending []string
	partial string
	closeCh chan struct{}
}

var _ device.Port = &Port{}

func NewPort(sp *SPJS, name string, baud int) *Port {
	if baud == 0 {
		baud = 9600
	}
	return &Port{sp: sp, name: name, baud: baud}
}

func (p *Port) Open() error {
	p.mx.Lock()
	defer p.mx.Unlock()
	if p.frames != nil {
		return nil
	}

	err := p.sp.WriteString("open " + p.name + " " + strconv.Itoa(p.baud))
	if err != nil {
		return fmt.Errorf("%w: open %s: %w", device.ErrDeviceIO, p.name, err)
	}
	p.frames = p.sp.subscribe(p.name)
	p.pending = nil
	p.partial = ""
	p.closeCh = make(chan struct{})
	return nil
}

func (p *Port) Write(b []byte) (int, error) {
	p.mx.Lock()
	open := p.frames != nil
	p.mx.Unlock()
	if !open {
		return 0, device.ErrNotOpen
	}

	err := p.sp.WriteString("send " + p.name + " " + string(b))
	if err != nil {
		return 0, fmt.Errorf("%w: write %s: %w", device.ErrDeviceIO, p.name, err)
	}
	return len(b), nil
}

func (p *Port) ReadLine(timeout time.Duration) (string, error) {
	t := time.NewTimer(timeout)
	defer t.Stop()

	for {
		p.mx.Lock()
		if p.frames == nil {
			p.mx.Unlock()
			return "", device.ErrNotOpen
		}
		if len(p.pending) > 0 {
			line := p.pending[0]
			p.pending = p.pending[1:]
			p.mx.Unlock()
			return line, nil
		}
		frames, closeCh := p.frames, p.closeCh
		p.mx.Unlock()

		select {
		case data := <-frames:
			p.mx.Lock()
			var lines []string
			lines, p.partial = splitLines(p.partial, data)
			p.pending = append(p.pending, lines...)
			p.mx.Unlock()
		case <-closeCh:
			return "", device.ErrClosed
		case <-t.C:
			return "", device.ErrTimeout
		}
	}
}

func (p *Port) Close() error {
	p.mx.Lock()
	defer p.mx.Unlock()
	if p.frames == nil {
		return nil
	}

	p.sp.unsubscribe(p.name)
	close(p.closeCh)
	p.frames = nil
	err := p.sp.WriteString("close " + p.name)
	if err != nil {
		return fmt.Errorf("%w: close %s: %w", device.ErrDeviceIO, p.name, err)
	}
	return nil
}

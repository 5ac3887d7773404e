package camera

import (
	"errors"
	"sync"
	"time"
)

// SimSystem is a System backed by simulated cameras.
type SimSystem struct {
	Devices []*SimDevice

	mx       sync.Mutex
	released bool
}

// NewSimSystem returns a system with one simulated camera.
func NewSimSystem(width, height int) *SimSystem {
	return &SimSystem{Devices: []*SimDevice{NewSimDevice(width, height)}}
}

func (s *SimSystem) Cameras() ([]Device, error) {
	res := make([]Device, len(s.Devices))
	for i, d := range s.Devices {
		res[i] = d
	}
	return res, nil
}

func (s *SimSystem) Release() error {
	s.mx.Lock()
	s.released = true
	s.mx.Unlock()
	return nil
}

func (s *SimSystem) Released() bool {
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.released
}

// SimDevice renders frames from a temperature function.
type SimDevice struct {
	Width, Height int

	mx         sync.Mutex
	temp       func(x, y int, n int) float64
	incomplete bool
	inited     bool
	frames     int
	emissivity float64
	distance   float64
	focused    int
}

var errNotInit = errors.New("camera: simulated device not initialized")

// NewSimDevice renders a warm plate of 24 wells on a 20 °C background.
func NewSimDevice(width, height int) *SimDevice {
	return &SimDevice{Width: width, Height: height, emissivity: 0.95, temp: defaultScene(width, height)}
}

func defaultScene(w, h int) func(x, y, n int) float64 {
	cols, rows := 6, 4
	r := float64(min(w/cols, h/rows)) / 3
	return func(x, y, n int) float64 {
		cx := (float64(x) + 0.5) / float64(w) * float64(cols)
		cy := (float64(y) + 0.5) / float64(h) * float64(rows)
		dx := (cx - float64(int(cx)) - 0.5) * float64(w) / float64(cols)
		dy := (cy - float64(int(cy)) - 0.5) * float64(h) / float64(rows)
		if dx*dx+dy*dy < r*r {
			return 30 + float64((int(cx)+int(cy)*cols+n)%10)
		}
		return 20
	}
}

// SetScene replaces the temperature function. n is the frame number.
func (d *SimDevice) SetScene(temp func(x, y, n int) float64) {
	d.mx.Lock()
	d.temp = temp
	d.mx.Unlock()
}

// SetIncomplete makes following acquisitions fail with ErrIncomplete.
func (d *SimDevice) SetIncomplete(v bool) {
	d.mx.Lock()
	d.incomplete = v
	d.mx.Unlock()
}

func (d *SimDevice) Init() error {
	d.mx.Lock()
	d.inited = true
	d.mx.Unlock()
	return nil
}

func (d *SimDevice) Cleanup() error {
	d.mx.Lock()
	d.inited = false
	d.mx.Unlock()
	return nil
}

func (d *SimDevice) Acquire(time.Duration) (RawFrame, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	if !d.inited {
		return RawFrame{}, errNotInit
	}
	if d.incomplete {
		return RawFrame{}, ErrIncomplete
	}
	raw := RawFrame{Width: d.Width, Height: d.Height, Data: make([]uint16, d.Width*d.Height)}
	for y := 0; y < d.Height; y++ {
		for x := 0; x < d.Width; x++ {
			raw.Data[y*d.Width+x] = Raw(d.temp(x, y, d.frames))
		}
	}
	d.frames++
	return raw, nil
}

func (d *SimDevice) AutoFocus() error {
	d.mx.Lock()
	d.focused++
	d.mx.Unlock()
	return nil
}

func (d *SimDevice) SetEmissivity(e float64) error {
	d.mx.Lock()
	d.emissivity = e
	d.mx.Unlock()
	return nil
}

func (d *SimDevice) SetDistance(v float64) error {
	d.mx.Lock()
	d.distance = v
	d.mx.Unlock()
	return nil
}

// Settings returns the emissivity, distance and auto focus count.
func (d *SimDevice) Settings() (emissivity, distance float64, focused int) {
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.emissivity, d.distance, d.focused
}

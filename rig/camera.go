package rig

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/mastercactapus/wellrig/camera"
)

// frameHub fans new frames out to subscribers, dropping frames for slow
// readers.
type frameHub struct {
	mx     sync.Mutex
	latest *camera.Frame
	subs   map[chan *camera.Frame]struct{}
}

func (h *frameHub) publish(f *camera.Frame) {
	h.mx.Lock()
	defer h.mx.Unlock()
	h.latest = f
	if f == nil {
		return
	}
	for ch := range h.subs {
		select {
		case ch <- f:
		default:
		}
	}
}

func (h *frameHub) last() *camera.Frame {
	h.mx.Lock()
	defer h.mx.Unlock()
	return h.latest
}

// Subscribe returns a channel of new frames and a function to cancel the
// subscription.
func (c *Controller) Subscribe() (<-chan *camera.Frame, func()) {
	ch := make(chan *camera.Frame, 1)
	c.frames.mx.Lock()
	c.frames.subs[ch] = struct{}{}
	c.frames.mx.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.frames.mx.Lock()
			delete(c.frames.subs, ch)
			c.frames.mx.Unlock()
		})
	}
}

// StartCamera opens the camera and starts continuous acquisition.
func (c *Controller) StartCamera() error {
	c.camMx.Lock()
	defer c.camMx.Unlock()
	if c.cam != nil {
		return nil
	}
	if c.opts.Camera == nil {
		return fmt.Errorf("%w: no camera driver", camera.ErrHardwareUnavailable)
	}

	cam, err := camera.Open(c.opts.Camera)
	if err != nil {
		return err
	}
	if c.opts.Emissivity > 0 {
		if err := cam.SetEmissivity(c.opts.Emissivity); err != nil {
			c.log.Warn("set emissivity", "error", err)
		}
	}
	if c.opts.Distance > 0 {
		if err := cam.SetDistance(c.opts.Distance); err != nil {
			c.log.Warn("set distance", "error", err)
		}
	}

	c.cam = cam
	c.frameLoop = startWorker(func(ctx context.Context) error {
		return c.acquire(ctx, cam)
	})
	c.log.Info("camera started")
	return nil
}

func (c *Controller) acquire(ctx context.Context, cam *camera.Camera) error {
	t := time.NewTicker(c.opts.FrameInterval)
	defer t.Stop()
	for {
		f, err := cam.CaptureFrame()
		if err != nil {
			c.log.Warn("capture frame", "error", err)
		} else {
			c.frames.publish(f)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
	}
}

// StopCamera stops acquisition and any running capture, then releases
// the camera.
func (c *Controller) StopCamera() error {
	c.StopCapture()

	c.camMx.Lock()
	defer c.camMx.Unlock()
	if c.cam == nil {
		return nil
	}
	c.frameLoop.stop()
	c.frameLoop = nil
	err := c.cam.Cleanup()
	c.cam = nil
	c.frames.publish(nil)
	c.log.Info("camera stopped")
	return err
}

func (c *Controller) withCamera(fn func(cam *camera.Camera) error) error {
	c.camMx.Lock()
	defer c.camMx.Unlock()
	if c.cam == nil {
		return fmt.Errorf("%w: camera not started", ErrNotReady)
	}
	return fn(c.cam)
}

func (c *Controller) Focus() error {
	return c.withCamera(func(cam *camera.Camera) error { return cam.AutoFocus() })
}

func (c *Controller) SetEmissivity(e float64) error {
	return c.withCamera(func(cam *camera.Camera) error { return cam.SetEmissivity(e) })
}

func (c *Controller) SetDistance(d float64) error {
	return c.withCamera(func(cam *camera.Camera) error { return cam.SetDistance(d) })
}

// Frame returns the latest frame.
func (c *Controller) Frame() (*camera.Frame, error) {
	f := c.frames.last()
	if f == nil {
		return nil, fmt.Errorf("%w: no frame", ErrNotReady)
	}
	return f, nil
}

// SaveImage writes the latest frame as <data dir>/<name>.png and returns
// the file path.
func (c *Controller) SaveImage(name string) (string, error) {
	f, err := c.Frame()
	if err != nil {
		return "", err
	}
	path, err := c.dataPath(name, ".png")
	if err != nil {
		return "", err
	}
	out, err := os.Create(path)
	if err != nil {
		return "", err
	}
	err = camera.EncodePNG(out, f)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", fmt.Errorf("save image: %w", err)
	}
	c.log.Info("saved image", "path", path)
	return path, nil
}

// ProbeResult describes a probed pixel.
type ProbeResult struct {
	X, Y        int
	Temperature float64

	// Well is the label of the nearest well, empty without a grid.
	Well    string
	OnPlate bool
}

// Probe returns the temperature at (x, y) of the latest frame.
func (c *Controller) Probe(x, y int) (ProbeResult, error) {
	f, err := c.Frame()
	if err != nil {
		return ProbeResult{}, err
	}
	if !f.In(x, y) {
		return ProbeResult{}, fmt.Errorf("%w: (%d,%d) outside %dx%d frame", ErrInvalidArgument, x, y, f.Width, f.Height)
	}
	res := ProbeResult{X: x, Y: y, Temperature: f.At(x, y)}
	res.Well, res.OnPlate = c.geo.locate(float64(x), float64(y))
	return res, nil
}

// Package rig composes the camera, the dosing and degas instruments and
// the plate geometry into the operations offered to the control surface.
package rig

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/mastercactapus/wellrig/camera"
	"github.com/mastercactapus/wellrig/degas"
	"github.com/mastercactapus/wellrig/device"
	"github.com/mastercactapus/wellrig/dosing"
	"github.com/mastercactapus/wellrig/telemetry"
)

// Common errors
var (
	// ErrNotReady is returned when an operation needs a camera, frame,
	// grid or mask that does not exist yet.
	ErrNotReady = errors.New("rig: not ready")

	// ErrBusy is returned when starting a worker that is already running.
	ErrBusy = errors.New("rig: already running")

	ErrInvalidArgument = errors.New("rig: invalid argument")
)

// DosingOptions configures the dosing actuator.
type DosingOptions struct {
	PulseCommand  string
	ActiveStatus  string
	ReadTimeout   time.Duration
	Session       dosing.SessionConfig
	DefaultCycles int

	// RawLog is the raw pressure log file name, relative to the data dir.
	RawLog string
}

// DegasOptions configures the degas sequence.
type DegasOptions struct {
	Steps      []degas.Step
	Slice      time.Duration
	AckTimeout time.Duration
}

type Options struct {
	// Camera is nil when no camera driver is available.
	Camera camera.System

	DosingPort device.Port
	DegasPort  device.Port

	Sink    telemetry.Sink
	Logger  *slog.Logger
	DataDir string

	FrameInterval time.Duration
	Emissivity    float64
	Distance      float64

	// RowInterval is the capture row cadence.
	RowInterval time.Duration

	WellsX, WellsY int

	Dosing DosingOptions
	Degas  DegasOptions

	// Now defaults to time.Now.
	Now func() time.Time
}

// Controller owns every instrument and the plate geometry. All methods
// are safe for concurrent use.
type Controller struct {
	opts Options
	log  *slog.Logger
	sink telemetry.Sink

	geo geometry

	camMx     sync.Mutex
	cam       *camera.Camera
	frameLoop *worker
	frames    frameHub

	wmx      sync.Mutex
	sampler  *worker
	rawLog   *os.File
	actuator *dosing.Actuator
	doser    *worker
	session  *dosing.Session
	degasser *worker
	sequence *degas.Sequence
	stage    *degas.Stage
	capture  *worker
	capName  string
}

func New(opts Options) *Controller {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Sink == nil {
		opts.Sink = telemetry.Discard
	}
	if opts.DataDir == "" {
		opts.DataDir = "."
	}
	if opts.FrameInterval <= 0 {
		opts.FrameInterval = 100 * time.Millisecond
	}
	if opts.RowInterval <= 0 {
		opts.RowInterval = time.Second
	}
	if opts.WellsX == 0 {
		opts.WellsX = 12
	}
	if opts.WellsY == 0 {
		opts.WellsY = 8
	}
	if opts.Dosing.DefaultCycles <= 0 {
		opts.Dosing.DefaultCycles = dosing.DefaultCycles
	}
	if opts.Dosing.RawLog == "" {
		opts.Dosing.RawLog = "pressure.log"
	}
	if len(opts.Degas.Steps) == 0 {
		opts.Degas.Steps = degas.DefaultSteps()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	c := &Controller{
		opts: opts,
		log:  opts.Logger.With("component", "rig"),
		sink: opts.Sink,
	}
	c.geo.wellsX, c.geo.wellsY = opts.WellsX, opts.WellsY
	c.frames.subs = make(map[chan *camera.Frame]struct{})
	if opts.DosingPort != nil {
		c.actuator = dosing.NewActuator(opts.DosingPort, opts.Dosing.PulseCommand, opts.Dosing.ActiveStatus)
	}
	if opts.DegasPort != nil {
		c.stage = degas.NewStage(opts.DegasPort, opts.Degas.AckTimeout, opts.Logger)
	}
	return c
}

// DataDir returns the directory images and logs are written to.
func (c *Controller) DataDir() string { return c.opts.DataDir }

// dataPath resolves a bare file name inside the data directory.
func (c *Controller) dataPath(name, ext string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", errors.Join(ErrInvalidArgument, errors.New("bad file name "+name))
	}
	if ext != "" && !strings.HasSuffix(name, ext) {
		name += ext
	}
	err := os.MkdirAll(c.opts.DataDir, 0755)
	if err != nil {
		return "", err
	}
	return filepath.Join(c.opts.DataDir, name), nil
}

// A worker is a background goroutine with a stop signal and a join.
type worker struct {
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

func startWorker(fn func(ctx context.Context) error) *worker {
	ctx, cancel := context.WithCancel(context.Background())
	w := &worker{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(w.done)
		w.err = fn(ctx)
	}()
	return w
}

// stop signals the worker and waits for its current iteration to finish.
func (w *worker) stop() error {
	if w == nil {
		return nil
	}
	w.cancel()
	<-w.done
	return w.err
}

func (w *worker) running() bool {
	if w == nil {
		return false
	}
	select {
	case <-w.done:
		return false
	default:
		return true
	}
}

// Status reports which instruments are running.
type Status struct {
	Camera   bool
	Sampling bool

	// Capture is the capture file name while a capture runs.
	Capture string
}

func (c *Controller) Status() Status {
	c.camMx.Lock()
	st := Status{Camera: c.cam != nil}
	c.camMx.Unlock()

	st.Sampling = c.Sampling()
	st.Capture, _ = c.Capturing()
	return st
}

// Close stops every worker, turns the heater off if degas was running,
// closes the ports and releases the camera.
func (c *Controller) Close() error {
	var errs []error
	c.StopCapture()
	if err := c.StopDose(); err != nil {
		errs = append(errs, err)
	}
	if err := c.StopSampling(); err != nil {
		errs = append(errs, err)
	}

	c.wmx.Lock()
	if c.sequence != nil {
		c.sequence.Cancel()
	}
	degasser := c.degasser
	c.wmx.Unlock()
	if err := degasser.stop(); err != nil {
		errs = append(errs, err)
	}

	if err := c.StopCamera(); err != nil {
		errs = append(errs, err)
	}
	if c.opts.DosingPort != nil {
		if err := c.opts.DosingPort.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if c.opts.DegasPort != nil {
		if err := c.opts.DegasPort.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

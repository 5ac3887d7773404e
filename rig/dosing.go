package rig

import (
	"context"
	"fmt"
	"os"

	"github.com/mastercactapus/wellrig/dosing"
)

func (c *Controller) dosingReady() error {
	if c.actuator == nil {
		return fmt.Errorf("%w: no dosing port configured", ErrNotReady)
	}
	return nil
}

// StartSampling opens the dosing port and starts reading its pressure
// feedback. Raw readings are appended to the raw log in the data dir.
func (c *Controller) StartSampling() error {
	if err := c.dosingReady(); err != nil {
		return err
	}
	path, err := c.dataPath(c.opts.Dosing.RawLog, "")
	if err != nil {
		return err
	}
	// opened outside wmx; opening an open port is a no-op
	err = c.opts.DosingPort.Open()
	if err != nil {
		return err
	}

	c.wmx.Lock()
	defer c.wmx.Unlock()
	if c.sampler.running() {
		return ErrBusy
	}
	raw, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		if !c.doser.running() {
			c.opts.DosingPort.Close()
		}
		return fmt.Errorf("open raw log: %w", err)
	}

	s := dosing.NewSampler(c.actuator, raw, c.sink, dosing.SamplerConfig{
		ReadTimeout: c.opts.Dosing.ReadTimeout,
		Now:         c.opts.Now,
	}, c.opts.Logger)
	c.rawLog = raw
	c.sampler = startWorker(func(ctx context.Context) error {
		err := s.Run(ctx)
		if err != nil {
			c.log.Error("sampling", "error", err)
		}
		return err
	})
	c.log.Info("sampling started", "log", path)
	return nil
}

// StopSampling stops the sampler, waiting for its current read. The port
// is closed unless a dosing session still uses it.
func (c *Controller) StopSampling() error {
	c.wmx.Lock()
	defer c.wmx.Unlock()
	if c.sampler == nil {
		return nil
	}
	c.sampler.stop()
	c.sampler = nil

	err := c.rawLog.Close()
	c.rawLog = nil
	c.actuator.Reset()
	if !c.doser.running() {
		if cerr := c.opts.DosingPort.Close(); err == nil {
			err = cerr
		}
	}
	c.log.Info("sampling stopped")
	return err
}

// Sampling reports whether the sampler is running.
func (c *Controller) Sampling() bool {
	c.wmx.Lock()
	defer c.wmx.Unlock()
	return c.sampler.running()
}

// Dose starts a dosing session of cycles pulses; cycles < 1 uses the
// configured default.
func (c *Controller) Dose(cycles int) error {
	if err := c.dosingReady(); err != nil {
		return err
	}
	if cycles < 1 {
		cycles = c.opts.Dosing.DefaultCycles
	}

	err := c.opts.DosingPort.Open()
	if err != nil {
		return err
	}

	c.wmx.Lock()
	defer c.wmx.Unlock()
	if c.doser.running() {
		return ErrBusy
	}
	s, err := dosing.NewSession(c.actuator, cycles, c.opts.Dosing.Session, c.sink, c.opts.Logger)
	if err != nil {
		return err
	}
	c.session = s
	c.doser = startWorker(s.Run)
	return nil
}

// StopDose stops the dosing session within one poll interval and waits
// for it.
func (c *Controller) StopDose() error {
	c.wmx.Lock()
	defer c.wmx.Unlock()
	if c.doser == nil {
		return nil
	}
	err := c.doser.stop()
	c.doser = nil
	if !c.sampler.running() {
		c.opts.DosingPort.Close()
	}
	return err
}

// DoseStatus describes the current or last dosing session.
type DoseStatus struct {
	State  string
	Cycle  int
	Target int

	// Pressure is the last reported pressure, if any.
	Pressure *float64
	Active   bool
}

func (c *Controller) DoseStatus() DoseStatus {
	c.wmx.Lock()
	s := c.session
	c.wmx.Unlock()

	st := DoseStatus{State: dosing.StateIdle.String()}
	if s != nil {
		st.State = s.State().String()
		st.Cycle = s.Cycle()
		st.Target = s.Target()
	}
	if c.actuator != nil {
		if fb, ok := c.actuator.Last(); ok {
			p := fb.Pressure
			st.Pressure = &p
			st.Active = c.actuator.Active()
		}
	}
	return st
}

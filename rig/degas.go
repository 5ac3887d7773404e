package rig

import (
	"context"
	"fmt"
	"time"

	"github.com/mastercactapus/wellrig/degas"
)

// Degas opens the temperature controller and starts the degas sequence.
func (c *Controller) Degas() error {
	if c.stage == nil {
		return fmt.Errorf("%w: no degas port configured", ErrNotReady)
	}

	seq, err := degas.NewSequence(c.stage, c.opts.Degas.Steps, c.opts.Degas.Slice, c.sink, c.opts.Logger)
	if err != nil {
		return err
	}
	port := c.opts.DegasPort
	err = port.Open()
	if err != nil {
		return err
	}

	c.wmx.Lock()
	defer c.wmx.Unlock()
	if c.degasser.running() {
		return ErrBusy
	}

	c.sequence = seq
	c.degasser = startWorker(func(ctx context.Context) error {
		defer port.Close()
		res, err := seq.Run(ctx)
		if err != nil {
			return err
		}
		c.log.Info("degas finished", "outcome", res.Outcome.String(), "elapsed", res.Elapsed)
		return nil
	})
	return nil
}

// CancelDegas asks the running sequence to stop. The heater is turned off
// at the next wait slice; it does not wait for that.
func (c *Controller) CancelDegas() {
	c.wmx.Lock()
	defer c.wmx.Unlock()
	if c.sequence != nil {
		c.sequence.Cancel()
	}
}

// DegasStatus describes the current or last degas sequence.
type DegasStatus struct {
	Stage   string
	Started time.Time
	Elapsed time.Duration
	Outcome string
	Running bool
}

func (c *Controller) DegasStatus() DegasStatus {
	c.wmx.Lock()
	seq := c.sequence
	running := c.degasser.running()
	c.wmx.Unlock()

	if seq == nil {
		return DegasStatus{Stage: degas.PhaseIdle.String(), Outcome: degas.OutcomeNone.String()}
	}
	st := seq.Status()
	res := DegasStatus{
		Stage:   st.Phase.String(),
		Started: st.Started,
		Elapsed: st.Elapsed,
		Outcome: degas.OutcomeNone.String(),
		Running: running,
	}
	if st.Result != nil {
		res.Outcome = st.Result.Outcome.String()
	}
	return res
}

// DegasTemperature queries the controller while a sequence runs.
func (c *Controller) DegasTemperature() (string, error) {
	c.wmx.Lock()
	running := c.degasser.running()
	c.wmx.Unlock()
	if !running {
		return "", fmt.Errorf("%w: degas not running", ErrNotReady)
	}
	return c.stage.Temperature()
}

package dosing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/mastercactapus/wellrig/telemetry"
)

// Defaults for session timing.
const (
	DefaultPollInterval = 5 * time.Second
	DefaultWarmUp       = 10 * time.Second
	DefaultFallback     = 300 * time.Second
	DefaultCycles       = 7
)

// ErrInvalidTarget is returned for a cycle target below one.
var ErrInvalidTarget = errors.New("dosing: target cycles must be at least 1")

type State int32

const (
	StateIdle State = iota
	StateRunning
	StateCompleted
	StateStopped
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// SessionConfig holds the session timing.
type SessionConfig struct {
	// PollInterval is the time between status checks and the granularity
	// of stop requests.
	PollInterval time.Duration

	// WarmUp is the wait after the first pulse.
	WarmUp time.Duration

	// Fallback is how long the actuator may report inactive before the
	// next pulse is sent anyway.
	Fallback time.Duration
}

func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		PollInterval: DefaultPollInterval,
		WarmUp:       DefaultWarmUp,
		Fallback:     DefaultFallback,
	}
}

// A Session runs a bounded number of dosing cycles.
type Session struct {
	act    *Actuator
	target int
	cfg    SessionConfig
	sink   telemetry.Sink
	log    *slog.Logger

	cycle atomic.Int32
	state atomic.Int32
}

func NewSession(act *Actuator, target int, cfg SessionConfig, sink telemetry.Sink, logger *slog.Logger) (*Session, error) {
	if target < 1 {
		return nil, ErrInvalidTarget
	}
	def := DefaultSessionConfig()
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.WarmUp < 0 {
		cfg.WarmUp = 0
	}
	if cfg.Fallback <= 0 {
		cfg.Fallback = def.Fallback
	}
	if sink == nil {
		sink = telemetry.Discard
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		act:    act,
		target: target,
		cfg:    cfg,
		sink:   sink,
		log:    logger.With("component", "dosing", "target", target),
	}, nil
}

func (s *Session) Target() int  { return s.target }
func (s *Session) Cycle() int   { return int(s.cycle.Load()) }
func (s *Session) State() State { return State(s.state.Load()) }

func (s *Session) setState(st State) {
	s.state.Store(int32(st))
	s.sink.Event(telemetry.Event{
		Kind:   telemetry.EventDoseState,
		Time:   time.Now(),
		Fields: map[string]interface{}{"state": st.String(), "cycle": s.Cycle(), "target": s.target},
	})
}

func (s *Session) pulse() error {
	err := s.act.Pulse()
	if err != nil {
		return fmt.Errorf("dose pulse: %w", err)
	}
	c := int(s.cycle.Add(1))
	s.log.Info("dose pulse", "cycle", c)
	s.sink.Event(telemetry.Event{
		Kind:   telemetry.EventDoseCycle,
		Time:   time.Now(),
		Fields: map[string]interface{}{"cycle": c, "target": s.target},
	})
	return nil
}

// sleep returns false if ctx was done first.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// Run blocks until the target is reached, ctx is done or a pulse fails.
// Cancelling ctx stops the session; that is not an error.
func (s *Session) Run(ctx context.Context) error {
	if !s.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return errors.New("dosing: session already started")
	}
	s.setState(StateRunning)

	fail := func(err error) error {
		s.log.Error("dosing failed", "error", err)
		s.setState(StateFailed)
		return err
	}

	if err := s.pulse(); err != nil {
		return fail(err)
	}
	if !sleep(ctx, s.cfg.WarmUp) {
		s.setState(StateStopped)
		return nil
	}

	var inactive time.Duration
	for {
		if !s.act.Active() {
			if inactive >= s.cfg.Fallback {
				if err := s.pulse(); err != nil {
					return fail(err)
				}
				inactive = 0
			} else {
				inactive += s.cfg.PollInterval
			}
		}

		if s.Cycle() >= s.target {
			s.log.Info("dosing complete")
			s.setState(StateCompleted)
			return nil
		}

		if !sleep(ctx, s.cfg.PollInterval) {
			s.log.Info("dosing stopped", "cycle", s.Cycle())
			s.setState(StateStopped)
			return nil
		}
	}
}

package degas

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mastercactapus/wellrig/telemetry"
)

// DefaultSlice is the default wait granularity.
const DefaultSlice = 5 * time.Second

type Phase int32

const (
	PhaseIdle Phase = iota
	PhaseHeating
	PhaseRampDown
	PhaseRampUp
	PhaseComplete
	PhaseCancelled
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseHeating:
		return "heating"
	case PhaseRampDown:
		return "ramp_down"
	case PhaseRampUp:
		return "ramp_up"
	case PhaseComplete:
		return "complete"
	case PhaseCancelled:
		return "cancelled"
	}
	return fmt.Sprintf("Phase(%d)", int32(p))
}

// A Step holds the stage at SetPoint °C for Hold.
type Step struct {
	Phase    Phase
	SetPoint float64
	Hold     time.Duration
}

// DefaultSteps is the standard heat, cool, recover sequence.
func DefaultSteps() []Step {
	return []Step{
		{Phase: PhaseHeating, SetPoint: 80, Hold: 8 * time.Hour},
		{Phase: PhaseRampDown, SetPoint: -10, Hold: 30 * time.Minute},
		{Phase: PhaseRampUp, SetPoint: 20, Hold: 30 * time.Minute},
	}
}

type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomeCompleted
	OutcomeCancelled
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeCancelled:
		return "cancelled"
	case OutcomeFailed:
		return "failed"
	}
	return "none"
}

// Result summarizes a finished run.
type Result struct {
	Outcome Outcome
	Elapsed time.Duration

	// Phase is the last step entered before the run ended.
	Phase Phase
}

// Status is a snapshot of a sequence.
type Status struct {
	Phase   Phase
	Started time.Time
	Elapsed time.Duration
	Result  *Result
}

var (
	ErrNoSteps = errors.New("degas: no steps")
	ErrStarted = errors.New("degas: sequence already started")
)

// Sequence runs the steps once.
type Sequence struct {
	stage *Stage
	steps []Step
	slice time.Duration
	sink  telemetry.Sink
	log   *slog.Logger

	phase     atomic.Int32
	started   atomic.Bool
	cancelled atomic.Bool
	cancelCh  chan struct{}
	once      sync.Once

	mx      sync.Mutex
	startAt time.Time
	result  *Result
}

func NewSequence(stage *Stage, steps []Step, slice time.Duration, sink telemetry.Sink, logger *slog.Logger) (*Sequence, error) {
	if len(steps) == 0 {
		return nil, ErrNoSteps
	}
	for _, st := range steps {
		if st.Hold < 0 {
			return nil, fmt.Errorf("degas: negative hold for %s", st.Phase)
		}
	}
	if slice <= 0 {
		slice = DefaultSlice
	}
	if sink == nil {
		sink = telemetry.Discard
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sequence{
		stage:    stage,
		steps:    append([]Step(nil), steps...),
		slice:    slice,
		sink:     sink,
		log:      logger.With("component", "degas"),
		cancelCh: make(chan struct{}),
	}, nil
}

// Cancel asks a running sequence to stop. It takes effect at the next
// wait slice.
func (s *Sequence) Cancel() {
	s.once.Do(func() {
		s.cancelled.Store(true)
		close(s.cancelCh)
	})
}

func (s *Sequence) Phase() Phase { return Phase(s.phase.Load()) }

func (s *Sequence) Status() Status {
	s.mx.Lock()
	defer s.mx.Unlock()
	st := Status{Phase: s.Phase(), Started: s.startAt}
	if s.result != nil {
		r := *s.result
		st.Result = &r
		st.Elapsed = r.Elapsed
	} else if !s.startAt.IsZero() {
		st.Elapsed = time.Since(s.startAt)
	}
	return st
}

func (s *Sequence) setPhase(p Phase) {
	s.phase.Store(int32(p))
	s.log.Info("degas stage", "stage", p.String())
	s.sink.Event(telemetry.Event{
		Kind:   telemetry.EventDegasStage,
		Time:   time.Now(),
		Fields: map[string]interface{}{"stage": p.String()},
	})
}

// wait sleeps for d in slices and returns false on cancellation.
func (s *Sequence) wait(ctx context.Context, d time.Duration) bool {
	for d > 0 {
		if s.cancelled.Load() || ctx.Err() != nil {
			return false
		}
		n := min(d, s.slice)
		t := time.NewTimer(n)
		select {
		case <-t.C:
		case <-s.cancelCh:
			t.Stop()
			return false
		case <-ctx.Done():
			t.Stop()
			return false
		}
		d -= n
	}
	return !s.cancelled.Load() && ctx.Err() == nil
}

func (s *Sequence) finish(start time.Time, o Outcome, p Phase) Result {
	r := Result{Outcome: o, Elapsed: time.Since(start), Phase: p}
	s.mx.Lock()
	s.result = &r
	s.mx.Unlock()
	return r
}

// Run drives the stage through every step. The heater is turned off at
// the end, on cancellation (Cancel or ctx) and on failure. Cancellation
// is reported through Result with a nil error.
func (s *Sequence) Run(ctx context.Context) (Result, error) {
	if !s.started.CompareAndSwap(false, true) {
		return Result{}, ErrStarted
	}
	start := time.Now()
	s.mx.Lock()
	s.startAt = start
	s.mx.Unlock()

	fail := func(err error) (Result, error) {
		if offErr := s.stage.Off(); offErr != nil {
			s.log.Error("heater off", "error", offErr)
		}
		s.log.Error("degas failed", "error", err)
		return s.finish(start, OutcomeFailed, s.Phase()), err
	}

	for i, st := range s.steps {
		if err := s.stage.SetPoint(st.SetPoint); err != nil {
			return fail(fmt.Errorf("set point %s: %w", st.Phase, err))
		}
		if i == 0 {
			if err := s.stage.On(); err != nil {
				return fail(fmt.Errorf("heater on: %w", err))
			}
		}
		s.setPhase(st.Phase)

		if !s.wait(ctx, st.Hold) {
			reached := s.Phase()
			if err := s.stage.Off(); err != nil {
				s.log.Error("heater off", "error", err)
			}
			s.setPhase(PhaseCancelled)
			s.log.Info("degas cancelled", "stage", reached.String())
			return s.finish(start, OutcomeCancelled, reached), nil
		}
	}

	if err := s.stage.Off(); err != nil {
		return fail(fmt.Errorf("heater off: %w", err))
	}
	s.setPhase(PhaseComplete)
	r := s.finish(start, OutcomeCompleted, PhaseComplete)
	s.log.Info("degas complete", "elapsed", r.Elapsed)
	return r, nil
}

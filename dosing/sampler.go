package dosing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/mastercactapus/wellrig/device"
	"github.com/mastercactapus/wellrig/telemetry"
)

// RawTimeLayout is the timestamp format of raw log records.
const RawTimeLayout = "2006-01-02 15:04:05.000000"

// SamplerConfig configures a Sampler.
type SamplerConfig struct {
	ReadTimeout time.Duration
	Window      time.Duration

	// Now defaults to time.Now.
	Now func() time.Time
}

// Sampler reads actuator feedback until stopped. Every valid reading is
// appended to the raw log; one-second means go to the sink.
type Sampler struct {
	act  *Actuator
	raw  io.Writer
	sink telemetry.Sink
	log  *slog.Logger
	cfg  SamplerConfig

	smooth Smoother
}

func NewSampler(act *Actuator, raw io.Writer, sink telemetry.Sink, cfg SamplerConfig, logger *slog.Logger) *Sampler {
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = device.DefaultReadTimeout
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if raw == nil {
		raw = io.Discard
	}
	if sink == nil {
		sink = telemetry.Discard
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sampler{
		act:    act,
		raw:    raw,
		sink:   sink,
		cfg:    cfg,
		log:    logger.With("component", "sampler"),
		smooth: Smoother{Window: cfg.Window},
	}
}

// Run returns nil once ctx is done, or an error if the port was closed
// underneath it. A stop takes effect within one read timeout.
func (s *Sampler) Run(ctx context.Context) error {
	port := s.act.Port()
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		line, err := port.ReadLine(s.cfg.ReadTimeout)
		switch {
		case err == nil:
		case errors.Is(err, device.ErrTimeout):
			continue
		case errors.Is(err, device.ErrClosed), errors.Is(err, device.ErrNotOpen):
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("sampler: %w", err)
		default:
			s.log.Warn("read", "error", err)
			continue
		}

		s.handle(line)
	}
}

func (s *Sampler) handle(line string) {
	now := s.cfg.Now()
	fb, err := ParseFeedback(line)
	if err != nil {
		s.log.Debug("partial message", "line", line, "error", err)
		s.sink.Event(telemetry.Event{Kind: telemetry.EventParseError, Time: now})
		return
	}
	s.act.Observe(fb)

	_, err = io.WriteString(s.raw, now.Format(RawTimeLayout)+", "+strconv.FormatFloat(fb.Pressure, 'f', -1, 64)+"\n")
	if err != nil {
		s.log.Warn("write raw log", "error", err)
	}

	if mean, ok := s.smooth.Add(now, fb.Pressure); ok {
		s.sink.Sample(telemetry.Sample{Series: telemetry.SeriesPressure, Time: now, Value: mean})
	}
}

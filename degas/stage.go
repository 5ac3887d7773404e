// Package degas drives the temperature-controlled degassing stage through
// its setpoint sequence.
package degas

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/mastercactapus/wellrig/device"
)

// DefaultAckTimeout bounds the wait for a command acknowledgement.
const DefaultAckTimeout = 500 * time.Millisecond

// Stage is the serial temperature controller. Commands are serialized so
// each acknowledgement is read by the command that caused it.
type Stage struct {
	mx         sync.Mutex
	port       device.Port
	ackTimeout time.Duration
	log        *slog.Logger
}

func NewStage(port device.Port, ackTimeout time.Duration, logger *slog.Logger) *Stage {
	if ackTimeout <= 0 {
		ackTimeout = DefaultAckTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Stage{port: port, ackTimeout: ackTimeout, log: logger.With("component", "stage")}
}

func (s *Stage) Port() device.Port { return s.port }

// FormatSetPoint encodes c in hundredths of a degree, zero padded to
// five characters.
func FormatSetPoint(c float64) string {
	return fmt.Sprintf("%05d", int(math.Round(c*100)))
}

// command writes cmd and reads back one acknowledgement line. A missing
// acknowledgement is logged, not returned.
func (s *Stage) command(cmd string) (string, error) {
	s.mx.Lock()
	defer s.mx.Unlock()
	_, err := s.port.Write([]byte(cmd))
	if err != nil {
		return "", err
	}
	ack, err := s.port.ReadLine(s.ackTimeout)
	if err != nil {
		s.log.Warn("no acknowledgement", "command", cmd[:len(cmd)-1], "error", err)
		return "", nil
	}
	s.log.Debug("ack", "command", cmd[:len(cmd)-1], "reply", ack)
	return ack, nil
}

// On starts the heater.
func (s *Stage) On() error {
	_, err := s.command("GO\r")
	return err
}

// Off stops the heater.
func (s *Stage) Off() error {
	_, err := s.command("ST\r")
	return err
}

// SetPoint sets the target temperature in °C.
func (s *Stage) SetPoint(c float64) error {
	if math.IsNaN(c) || math.IsInf(c, 0) {
		return errors.New("degas: invalid setpoint")
	}
	_, err := s.command("S  " + FormatSetPoint(c) + "\r")
	return err
}

// Temperature returns the controller's reply to a temperature query.
func (s *Stage) Temperature() (string, error) {
	return s.command("I\r")
}

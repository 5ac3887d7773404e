// Package dosing drives the gas-dosing actuator: it samples the
// actuator's pressure feedback and runs bounded dosing sessions.
package dosing

import (
	"errors"
	"strconv"
	"strings"
	"sync"

	"github.com/mastercactapus/wellrig/device"
)

// Defaults for the actuator firmware.
const (
	DefaultPulseCommand = "1"
	DefaultActiveStatus = "1"
)

// ErrParse is returned for malformed feedback lines.
var ErrParse = errors.New("dosing: malformed feedback")

// Feedback is one "pressure,status" report from the actuator.
type Feedback struct {
	Pressure float64
	Status   string
}

// ParseFeedback parses a "pressure,status" line.
func ParseFeedback(line string) (fb Feedback, err error) {
	parts := strings.Split(strings.TrimSpace(line), ",")
	if len(parts) < 2 {
		return fb, errors.Join(ErrParse, errors.New("missing status: "+line))
	}
	fb.Pressure, err = strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return fb, errors.Join(ErrParse, err)
	}
	fb.Status = strings.TrimSpace(parts[1])
	return fb, nil
}

// Actuator sends dose pulses and remembers the last reported feedback.
type Actuator struct {
	port   device.Port
	pulse  []byte
	active string

	mx   sync.RWMutex
	last Feedback
	seen bool
}

// NewActuator uses the default pulse command and active status when
// either is empty.
func NewActuator(port device.Port, pulseCommand, activeStatus string) *Actuator {
	if pulseCommand == "" {
		pulseCommand = DefaultPulseCommand
	}
	if activeStatus == "" {
		activeStatus = DefaultActiveStatus
	}
	return &Actuator{port: port, pulse: []byte(pulseCommand), active: activeStatus}
}

func (a *Actuator) Port() device.Port { return a.port }

// Pulse triggers one dose.
func (a *Actuator) Pulse() error {
	_, err := a.port.Write(a.pulse)
	return err
}

// Observe records fb as the latest feedback.
func (a *Actuator) Observe(fb Feedback) {
	a.mx.Lock()
	a.last = fb
	a.seen = true
	a.mx.Unlock()
}

// Reset forgets the last feedback, so Active reports false until the
// next reading arrives.
func (a *Actuator) Reset() {
	a.mx.Lock()
	a.last = Feedback{}
	a.seen = false
	a.mx.Unlock()
}

// Last returns the latest feedback and whether any was received.
func (a *Actuator) Last() (Feedback, bool) {
	a.mx.RLock()
	defer a.mx.RUnlock()
	return a.last, a.seen
}

// Active reports whether the actuator last said it was dosing.
func (a *Actuator) Active() bool {
	fb, ok := a.Last()
	return ok && fb.Status == a.active
}

package dosing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mastercactapus/wellrig/device/devicetest"
	"github.com/mastercactapus/wellrig/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig() SessionConfig {
	return SessionConfig{
		PollInterval: 2 * time.Millisecond,
		WarmUp:       2 * time.Millisecond,
		Fallback:     6 * time.Millisecond,
	}
}

func newTestActuator(t *testing.T) (*Actuator, *devicetest.Fake) {
	port := devicetest.New()
	require.NoError(t, port.Open())
	return NewActuator(port, "", ""), port
}

func TestSession_FallbackReachesTarget(t *testing.T) {
	act, port := newTestActuator(t)
	var rec telemetry.Recorder
	s, err := NewSession(act, 3, fastConfig(), &rec, nil)
	require.NoError(t, err)
	assert.Equal(t, StateIdle, s.State())

	err = s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StateCompleted, s.State())
	assert.Equal(t, 3, s.Cycle())
	assert.Equal(t, []string{"1", "1", "1"}, port.Writes())
	assert.Len(t, rec.Events(telemetry.EventDoseCycle), 3)

	assert.Error(t, s.Run(context.Background()), "sessions are single use")
}

func TestSession_ActiveStatusHoldsCycle(t *testing.T) {
	act, port := newTestActuator(t)
	act.Observe(Feedback{Status: "1"})
	s, err := NewSession(act, 2, fastConfig(), nil, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.NoError(t, s.Run(ctx))

	assert.Equal(t, StateStopped, s.State())
	assert.Equal(t, 1, s.Cycle())
	assert.Len(t, port.Writes(), 1)
}

func TestSession_StopWithinPollInterval(t *testing.T) {
	act, _ := newTestActuator(t)
	poll := 50 * time.Millisecond
	s, err := NewSession(act, 5, SessionConfig{PollInterval: poll, Fallback: time.Hour}, nil, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	assert.Eventually(t, func() bool { return s.Cycle() == 1 }, time.Second, time.Millisecond)
	start := time.Now()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
		assert.LessOrEqual(t, time.Since(start), poll)
	case <-time.After(time.Second):
		t.Fatal("session did not stop")
	}
	assert.Equal(t, StateStopped, s.State())
	assert.Equal(t, 1, s.Cycle())
}

func TestSession_StopDuringWarmUp(t *testing.T) {
	act, _ := newTestActuator(t)
	s, err := NewSession(act, 2, SessionConfig{PollInterval: time.Millisecond, WarmUp: time.Hour}, nil, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	require.NoError(t, s.Run(ctx))
	assert.Equal(t, StateStopped, s.State())
	assert.Equal(t, 1, s.Cycle())
}

func TestSession_PulseError(t *testing.T) {
	act, port := newTestActuator(t)
	writeErr := errors.New("unplugged")
	port.FailWrite(writeErr)

	s, err := NewSession(act, 2, fastConfig(), nil, nil)
	require.NoError(t, err)
	err = s.Run(context.Background())
	assert.ErrorIs(t, err, writeErr)
	assert.Equal(t, StateFailed, s.State())
	assert.Equal(t, 0, s.Cycle())
}

func TestNewSession_InvalidTarget(t *testing.T) {
	act, _ := newTestActuator(t)
	_, err := NewSession(act, 0, fastConfig(), nil, nil)
	assert.Equal(t, ErrInvalidTarget, err)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "completed", StateCompleted.String())
	assert.Equal(t, "State(9)", State(9).String())
}

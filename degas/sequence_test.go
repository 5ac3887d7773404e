package degas

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mastercactapus/wellrig/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func shortSteps(first time.Duration) []Step {
	return []Step{
		{Phase: PhaseHeating, SetPoint: 80, Hold: first},
		{Phase: PhaseRampDown, SetPoint: -10, Hold: 2 * time.Millisecond},
		{Phase: PhaseRampUp, SetPoint: 20, Hold: 2 * time.Millisecond},
	}
}

func TestSequence_Complete(t *testing.T) {
	port := ackingPort(t)
	var rec telemetry.Recorder
	seq, err := NewSequence(NewStage(port, 10*time.Millisecond, nil), shortSteps(2*time.Millisecond), time.Millisecond, &rec, nil)
	require.NoError(t, err)

	res, err := seq.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, res.Outcome)
	assert.Equal(t, PhaseComplete, res.Phase)
	assert.GreaterOrEqual(t, res.Elapsed, 6*time.Millisecond)
	assert.Equal(t, PhaseComplete, seq.Phase())

	assert.Equal(t, []string{"S  08000\r", "GO\r", "S  -1000\r", "S  02000\r", "ST\r"}, port.Writes())

	var stages []string
	for _, e := range rec.Events(telemetry.EventDegasStage) {
		stages = append(stages, e.Fields["stage"].(string))
	}
	assert.Equal(t, []string{"heating", "ramp_down", "ramp_up", "complete"}, stages)

	st := seq.Status()
	require.NotNil(t, st.Result)
	assert.Equal(t, OutcomeCompleted, st.Result.Outcome)

	_, err = seq.Run(context.Background())
	assert.Equal(t, ErrStarted, err)
}

func TestSequence_CancelFirstStage(t *testing.T) {
	port := ackingPort(t)
	seq, err := NewSequence(NewStage(port, 10*time.Millisecond, nil), shortSteps(time.Hour), 5*time.Millisecond, nil, nil)
	require.NoError(t, err)

	type ret struct {
		res Result
		err error
	}
	done := make(chan ret, 1)
	go func() {
		res, err := seq.Run(context.Background())
		done <- ret{res, err}
	}()

	assert.Eventually(t, func() bool { return seq.Phase() == PhaseHeating }, time.Second, time.Millisecond)
	seq.Cancel()
	seq.Cancel()

	var r ret
	select {
	case r = <-done:
	case <-time.After(time.Second):
		t.Fatal("sequence did not stop")
	}
	require.NoError(t, r.err)
	assert.Equal(t, OutcomeCancelled, r.res.Outcome)
	assert.Equal(t, PhaseHeating, r.res.Phase)
	assert.Equal(t, PhaseCancelled, seq.Phase())

	writes := port.Writes()
	assert.Equal(t, "ST\r", writes[len(writes)-1])
	assert.NotContains(t, writes, "S  -1000\r")
}

func TestSequence_ContextCancel(t *testing.T) {
	port := ackingPort(t)
	seq, err := NewSequence(NewStage(port, 10*time.Millisecond, nil), shortSteps(time.Hour), time.Hour, nil, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	res, err := seq.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCancelled, res.Outcome)
	assert.Contains(t, port.Writes(), "ST\r")
}

func TestSequence_WriteFailure(t *testing.T) {
	port := ackingPort(t)
	boom := errors.New("boom")
	port.FailWrite(boom)

	seq, err := NewSequence(NewStage(port, time.Millisecond, nil), shortSteps(time.Millisecond), time.Millisecond, nil, nil)
	require.NoError(t, err)
	res, err := seq.Run(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, OutcomeFailed, res.Outcome)
}

func TestNewSequence(t *testing.T) {
	_, err := NewSequence(nil, nil, 0, nil, nil)
	assert.Equal(t, ErrNoSteps, err)

	_, err = NewSequence(nil, []Step{{Hold: -time.Second}}, 0, nil, nil)
	assert.Error(t, err)

	steps := DefaultSteps()
	assert.Equal(t, 8*time.Hour, steps[0].Hold)
	assert.Equal(t, -10.0, steps[1].SetPoint)
	assert.Equal(t, PhaseRampUp, steps[2].Phase)
}

package dosing

import (
	"testing"
	"time"

	"github.com/mastercactapus/wellrig/device/devicetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFeedback(t *testing.T) {
	fb, err := ParseFeedback("101.25,1\r")
	require.NoError(t, err)
	assert.Equal(t, Feedback{Pressure: 101.25, Status: "1"}, fb)

	fb, err = ParseFeedback(" -3, 0 ")
	require.NoError(t, err)
	assert.Equal(t, Feedback{Pressure: -3, Status: "0"}, fb)

	for _, line := range []string{"", "12.5", "abc,1", ",1"} {
		_, err = ParseFeedback(line)
		assert.ErrorIs(t, err, ErrParse, line)
	}
}

func TestActuator(t *testing.T) {
	port := devicetest.New()
	require.NoError(t, port.Open())
	a := NewActuator(port, "", "")

	assert.False(t, a.Active())
	_, ok := a.Last()
	assert.False(t, ok)

	a.Observe(Feedback{Pressure: 2, Status: "1"})
	assert.True(t, a.Active())
	a.Observe(Feedback{Pressure: 2, Status: "0"})
	assert.False(t, a.Active())

	require.NoError(t, a.Pulse())
	assert.Equal(t, []string{"1"}, port.Writes())

	a.Observe(Feedback{Pressure: 3, Status: "1"})
	a.Reset()
	assert.False(t, a.Active())
	_, ok = a.Last()
	assert.False(t, ok)
}

func TestSmoother(t *testing.T) {
	t0 := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s := Smoother{Window: time.Second}

	_, ok := s.Add(t0, 1)
	assert.False(t, ok)
	_, ok = s.Add(t0.Add(500*time.Millisecond), 2)
	assert.False(t, ok)
	mean, ok := s.Add(t0.Add(time.Second), 6)
	assert.True(t, ok)
	assert.Equal(t, 3.0, mean)

	_, ok = s.Add(t0.Add(1500*time.Millisecond), 10)
	assert.False(t, ok)
	mean, ok = s.Add(t0.Add(2500*time.Millisecond), 20)
	assert.True(t, ok)
	assert.Equal(t, 15.0, mean)
}

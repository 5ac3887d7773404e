package camera

import (
	"bytes"
	"errors"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_Count(t *testing.T) {
	for _, n := range []int{0, 2} {
		sys := &SimSystem{}
		for i := 0; i < n; i++ {
			sys.Devices = append(sys.Devices, NewSimDevice(4, 3))
		}
		_, err := Open(sys)
		assert.ErrorIs(t, err, ErrHardwareUnavailable, "%d cameras", n)
		assert.True(t, sys.Released())
	}
}

func TestCamera(t *testing.T) {
	sys := NewSimSystem(4, 3)
	dev := sys.Devices[0]
	dev.SetScene(func(x, y, n int) float64 { return float64(10*y + x + n) })

	c, err := Open(sys)
	require.NoError(t, err)

	f, err := c.CaptureFrame()
	require.NoError(t, err)
	assert.Equal(t, 4, f.Width)
	assert.Equal(t, 3, f.Height)
	assert.InDelta(t, 21.0, f.At(1, 2), 0.051)

	dev.SetIncomplete(true)
	f2, err := c.CaptureFrame()
	require.NoError(t, err)
	assert.Same(t, f, f2, "incomplete frames keep the previous frame")

	require.NoError(t, c.AutoFocus())
	require.NoError(t, c.SetEmissivity(0.8))
	require.NoError(t, c.SetDistance(1.5))
	assert.ErrorIs(t, c.SetEmissivity(1.2), ErrInvalidValue)
	assert.ErrorIs(t, c.SetDistance(-1), ErrInvalidValue)
	e, d, focused := dev.Settings()
	assert.Equal(t, 0.8, e)
	assert.Equal(t, 1.5, d)
	assert.Equal(t, 1, focused)

	require.NoError(t, c.Cleanup())
	require.NoError(t, c.Cleanup())
	assert.True(t, sys.Released())
	_, err = c.CaptureFrame()
	assert.Equal(t, ErrClosed, err)
}

func TestCamera_IncompleteFirstFrame(t *testing.T) {
	sys := NewSimSystem(2, 2)
	sys.Devices[0].SetIncomplete(true)
	c, err := Open(sys)
	require.NoError(t, err)
	_, err = c.CaptureFrame()
	assert.True(t, errors.Is(err, ErrIncomplete))
}

func TestCelsius(t *testing.T) {
	assert.InDelta(t, 0.0, Celsius(2732), 0.051)
	assert.InDelta(t, 26.85, Celsius(3000), 1e-9)
	assert.Equal(t, uint16(3000), Raw(26.85))
	assert.Equal(t, uint16(0), Raw(-300))
}

func TestFrame(t *testing.T) {
	_, err := FromRaw(RawFrame{Width: 2, Height: 2, Data: []uint16{1, 2, 3}})
	assert.Error(t, err)

	f, err := FromRaw(RawFrame{Width: 2, Height: 1, Data: []uint16{2732, 3000}})
	require.NoError(t, err)
	lo, hi := f.Range()
	assert.InDelta(t, 0.05, lo, 1e-9)
	assert.InDelta(t, 26.85, hi, 1e-9)
	assert.True(t, f.In(1, 0))
	assert.False(t, f.In(0, 1))
	assert.Panics(t, func() { f.At(2, 0) })
}

func TestColorize(t *testing.T) {
	assert.Equal(t, plasmaStops[0], Plasma(0))
	assert.Equal(t, plasmaStops[len(plasmaStops)-1], Plasma(255))

	assert.Equal(t, uint8(0), Normalize(5, 5, 5))
	assert.Equal(t, uint8(128), Normalize(5, 0, 10))
	assert.Equal(t, uint8(255), Normalize(11, 0, 10))

	f := &Frame{Width: 2, Height: 1, Data: []float64{10, 30}}
	img := Colorize(f)
	assert.Equal(t, plasmaStops[0], img.RGBAAt(0, 0))
	assert.Equal(t, plasmaStops[len(plasmaStops)-1], img.RGBAAt(1, 0))

	var buf bytes.Buffer
	require.NoError(t, EncodePNG(&buf, f))
	decoded, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, 2, decoded.Bounds().Dx())
}

package camera

import (
	"fmt"
	"math"
)

// Celsius converts a raw count (tenths of a kelvin) to °C.
func Celsius(raw uint16) float64 {
	return float64(raw)*0.1 - 273.15
}

// Raw converts c to the nearest raw count.
func Raw(c float64) uint16 {
	v := math.Round((c + 273.15) * 10)
	if v < 0 {
		return 0
	}
	if v > math.MaxUint16 {
		return math.MaxUint16
	}
	return uint16(v)
}

// A Frame is a temperature image in °C, row-major.
type Frame struct {
	Width, Height int
	Data          []float64
}

func FromRaw(raw RawFrame) (*Frame, error) {
	if raw.Width <= 0 || raw.Height <= 0 || len(raw.Data) != raw.Width*raw.Height {
		return nil, fmt.Errorf("camera: bad frame %dx%d with %d values", raw.Width, raw.Height, len(raw.Data))
	}
	f := &Frame{Width: raw.Width, Height: raw.Height, Data: make([]float64, len(raw.Data))}
	for i, v := range raw.Data {
		f.Data[i] = Celsius(v)
	}
	return f, nil
}

// In reports whether (x, y) is inside the frame.
func (f *Frame) In(x, y int) bool {
	return x >= 0 && y >= 0 && x < f.Width && y < f.Height
}

// At returns the temperature of pixel (x, y). It panics outside the frame.
func (f *Frame) At(x, y int) float64 {
	if !f.In(x, y) {
		panic(fmt.Sprintf("camera: pixel (%d,%d) outside %dx%d frame", x, y, f.Width, f.Height))
	}
	return f.Data[y*f.Width+x]
}

// Range returns the lowest and highest temperature.
func (f *Frame) Range() (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range f.Data {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}

package camera

import (
	"image"
	"image/color"
	"image/png"
	"io"
)

// plasma stops, evenly spaced from 0 to 1.
var plasmaStops = [...]color.RGBA{
	{0x0d, 0x08, 0x87, 0xff},
	{0x41, 0x04, 0x9d, 0xff},
	{0x6a, 0x00, 0xa8, 0xff},
	{0x8f, 0x0d, 0xa4, 0xff},
	{0xb1, 0x2a, 0x90, 0xff},
	{0xcc, 0x47, 0x78, 0xff},
	{0xe1, 0x64, 0x62, 0xff},
	{0xf2, 0x84, 0x4b, 0xff},
	{0xfc, 0xa6, 0x36, 0xff},
	{0xfc, 0xce, 0x25, 0xff},
	{0xf0, 0xf9, 0x21, 0xff},
}

var plasma = buildLUT()

func buildLUT() (lut [256]color.RGBA) {
	segs := len(plasmaStops) - 1
	for i := range lut {
		pos := float64(i) / 255 * float64(segs)
		n := int(pos)
		if n >= segs {
			lut[i] = plasmaStops[segs]
			continue
		}
		t := pos - float64(n)
		a, b := plasmaStops[n], plasmaStops[n+1]
		mix := func(x, y uint8) uint8 { return uint8(float64(x) + (float64(y)-float64(x))*t + 0.5) }
		lut[i] = color.RGBA{mix(a.R, b.R), mix(a.G, b.G), mix(a.B, b.B), 0xff}
	}
	return lut
}

// Plasma returns the color for level 0..255.
func Plasma(level uint8) color.RGBA { return plasma[level] }

// Normalize scales v from [lo,hi] to 0..255. A flat frame maps to 0.
func Normalize(v, lo, hi float64) uint8 {
	if hi <= lo {
		return 0
	}
	n := (v - lo) / (hi - lo) * 255
	switch {
	case n <= 0:
		return 0
	case n >= 255:
		return 255
	}
	return uint8(n + 0.5)
}

// Colorize maps the frame to plasma colors after min-max normalization.
func Colorize(f *Frame) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	lo, hi := f.Range()
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			img.SetRGBA(x, y, plasma[Normalize(f.Data[y*f.Width+x], lo, hi)])
		}
	}
	return img
}

// EncodePNG writes the colorized frame as a PNG.
func EncodePNG(w io.Writer, f *Frame) error {
	return png.Encode(w, Colorize(f))
}

package plate

import (
	"fmt"
	"image"
	"math"

	"github.com/mastercactapus/wellrig/coord"
)

// Mask holds, for every well in column-by-column order, the pixels whose
// distance to the well center is strictly less than the mask radius.
type Mask [][]image.Point

// BuildMask computes the pixel mask of every well for a width x height
// image. This is slow for large frames and should not run per frame.
func BuildMask(g *Grid, radius float64, width, height int) (Mask, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: image size %dx%d", ErrInvalidGeometry, width, height)
	}
	if radius < 0 || math.IsNaN(radius) || math.IsInf(radius, 0) {
		return nil, fmt.Errorf("%w: radius %v", ErrInvalidGeometry, radius)
	}
	rSq := radius * radius

	m := make(Mask, 0, g.Len())
	g.Each(func(_, _ int, c coord.Point) {
		// only pixels inside the circle's bounding box can match
		x0 := clamp(int(math.Floor(c.X-radius)), 0, width)
		x1 := clamp(int(math.Ceil(c.X+radius))+1, 0, width)
		y0 := clamp(int(math.Floor(c.Y-radius)), 0, height)
		y1 := clamp(int(math.Ceil(c.Y+radius))+1, 0, height)

		var well []image.Point
		for x := x0; x < x1; x++ {
			for y := y0; y < y1; y++ {
				if c.DistanceSq(float64(x), float64(y)) < rSq {
					well = append(well, image.Point{X: x, Y: y})
				}
			}
		}
		m = append(m, well)
	})

	return m, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Pixels returns the total number of masked pixels.
func (m Mask) Pixels() int {
	var n int
	for _, w := range m {
		n += len(w)
	}
	return n
}

// Mean averages value over the pixels of every well. Wells without pixels
// yield NaN.
func (m Mask) Mean(value func(x, y int) float64) []float64 {
	res := make([]float64, len(m))
	for i, well := range m {
		if len(well) == 0 {
			res[i] = math.NaN()
			continue
		}
		var sum float64
		for _, p := range well {
			sum += value(p.X, p.Y)
		}
		res[i] = sum / float64(len(well))
	}
	return res
}

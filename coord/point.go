package coord

import (
	"math"
)

// Point is a position in image pixel coordinates.
type Point struct{ X, Y float64 }

func (p Point) Mul(val float64) Point {
	p.X *= val
	p.Y *= val
	return p
}

func (p Point) Div(val float64) Point {
	p.X /= val
	p.Y /= val
	return p
}

// Add will add the target values to p.
func (p Point) Add(target Point) Point {
	p.X += target.X
	p.Y += target.Y
	return p
}

// Sub will subtract the target values from p.
func (p Point) Sub(target Point) Point {
	p.X -= target.X
	p.Y -= target.Y
	return p
}

// Len returns the length of p as a vector.
func (p Point) Len() float64 {
	return math.Hypot(p.X, p.Y)
}

// Unit returns the unit vector of p and its length.
//
// A zero-length vector returns ok=false.
func (p Point) Unit() (u Point, length float64, ok bool) {
	length = p.Len()
	if length == 0 || math.IsNaN(length) || math.IsInf(length, 0) {
		return Point{}, 0, false
	}
	return p.Div(length), length, true
}

// Sum returns X+Y.
func (p Point) Sum() float64 { return p.X + p.Y }

// Manhattan returns the L1 distance from p to (x,y).
func (p Point) Manhattan(x, y float64) float64 {
	return math.Abs(p.X-x) + math.Abs(p.Y-y)
}

// DistanceSq returns the squared distance from p to (x,y).
func (p Point) DistanceSq(x, y float64) float64 {
	dx, dy := x-p.X, y-p.Y
	return dx*dx + dy*dy
}

package coord

import "math"

const (
	// Epsilon is the max error when checking containment.
	Epsilon   = 0.001
	epsilonSq = Epsilon * Epsilon
)

type Triangle struct{ A, B, C Point }

// ContainsXY returns true if the triangle has the point x,y,
// including points within Epsilon of an edge.
func (t Triangle) ContainsXY(x, y float64) bool {
	p := Point{X: x, Y: y}
	if x < math.Min(t.A.X, math.Min(t.B.X, t.C.X))-Epsilon ||
		x > math.Max(t.A.X, math.Max(t.B.X, t.C.X))+Epsilon ||
		y < math.Min(t.A.Y, math.Min(t.B.Y, t.C.Y))-Epsilon ||
		y > math.Max(t.A.Y, math.Max(t.B.Y, t.C.Y))+Epsilon {
		return false
	}

	s1, s2, s3 := cross(t.A, t.B, p), cross(t.B, t.C, p), cross(t.C, t.A, p)
	if (s1 >= 0 && s2 >= 0 && s3 >= 0) || (s1 <= 0 && s2 <= 0 && s3 <= 0) {
		return true
	}

	// near an edge, within rounding of a neighboring triangle
	return segmentDistSq(t.A, t.B, p) <= epsilonSq ||
		segmentDistSq(t.B, t.C, p) <= epsilonSq ||
		segmentDistSq(t.C, t.A, p) <= epsilonSq
}

// cross is the z component of (b-a) x (p-a).
func cross(a, b, p Point) float64 {
	ab, ap := b.Sub(a), p.Sub(a)
	return ab.X*ap.Y - ab.Y*ap.X
}

// segmentDistSq returns the squared distance from p to segment ab.
func segmentDistSq(a, b, p Point) float64 {
	ab, ap := b.Sub(a), p.Sub(a)
	l := ab.X*ab.X + ab.Y*ab.Y
	if l == 0 {
		return a.DistanceSq(p.X, p.Y)
	}
	u := math.Max(0, math.Min(1, (ap.X*ab.X+ap.Y*ab.Y)/l))
	return a.Add(ab.Mul(u)).DistanceSq(p.X, p.Y)
}

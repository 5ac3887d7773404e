package plate

import (
	"github.com/mastercactapus/wellrig/coord"
)

// Corners are the four classified corners of a plate.
type Corners struct {
	TopLeft, TopRight, BottomLeft, BottomRight coord.Point
}

// Points returns the corners in TL, TR, BL, BR order.
func (c Corners) Points() [4]coord.Point {
	return [4]coord.Point{c.TopLeft, c.TopRight, c.BottomLeft, c.BottomRight}
}

// ClassifyCorners labels four points using the x+y sum heuristic.
//
// Ties are broken by input order: the first minimum-sum point is the
// top-left and the first maximum-sum point is the bottom-right. If the two
// remaining points share an x value the later one is the top-right.
func ClassifyCorners(pts [4]coord.Point) Corners {
	minIdx, maxIdx := 0, 0
	for i, p := range pts {
		if p.Sum() < pts[minIdx].Sum() {
			minIdx = i
		}
		if p.Sum() > pts[maxIdx].Sum() {
			maxIdx = i
		}
	}
	if maxIdx == minIdx {
		// every sum is equal; the labels are meaningless but must be distinct
		maxIdx = (minIdx + 1) % len(pts)
	}

	rest := make([]coord.Point, 0, 2)
	for i, p := range pts {
		if i == minIdx || i == maxIdx {
			continue
		}
		rest = append(rest, p)
	}

	c := Corners{
		TopLeft:     pts[minIdx],
		BottomRight: pts[maxIdx],
	}
	if rest[0].X > rest[1].X {
		c.TopRight, c.BottomLeft = rest[0], rest[1]
	} else {
		c.TopRight, c.BottomLeft = rest[1], rest[0]
	}

	return c
}

// CornerSet collects corner clicks. It never holds more than four points:
// a fifth click replaces the existing corner closest to it.
type CornerSet struct {
	points []coord.Point
}

// Add records a click. When four corners already exist, the one with the
// smallest Manhattan distance to p (first in insertion order on ties) is
// evicted and returned with ok=true.
func (s *CornerSet) Add(p coord.Point) (evicted coord.Point, ok bool) {
	if len(s.points) < 4 {
		s.points = append(s.points, p)
		return coord.Point{}, false
	}

	swap := 0
	minDist := s.points[0].Manhattan(p.X, p.Y)
	for i, c := range s.points[1:] {
		d := c.Manhattan(p.X, p.Y)
		if d < minDist {
			minDist = d
			swap = i + 1
		}
	}
	evicted = s.points[swap]
	s.points = append(s.points[:swap], s.points[swap+1:]...)
	s.points = append(s.points, p)

	return evicted, true
}

// Len returns the number of corners held.
func (s *CornerSet) Len() int { return len(s.points) }

// Points returns a copy of the corners in insertion order.
func (s *CornerSet) Points() []coord.Point {
	res := make([]coord.Point, len(s.points))
	copy(res, s.points)
	return res
}

// Classified returns the labelled corners once four have been collected.
func (s *CornerSet) Classified() (Corners, bool) {
	if len(s.points) != 4 {
		return Corners{}, false
	}
	return ClassifyCorners([4]coord.Point(s.points)), true
}

// Reset removes all corners.
func (s *CornerSet) Reset() { s.points = nil }

package plate

import (
	"fmt"
	"math"

	"github.com/fogleman/delaunay"
	"github.com/mastercactapus/wellrig/coord"
)

// Outline is the triangulated area covered by the plate corners.
type Outline struct {
	minX, minY, maxX, maxY float64
	triangles              []coord.Triangle
}

// NewOutline triangulates the plate corners. The outline covers their
// convex hull.
func NewOutline(c Corners) (*Outline, error) {
	points := c.Points()
	points2d := make([]delaunay.Point, len(points))

	o := &Outline{
		minX: points[0].X,
		minY: points[0].Y,
		maxX: points[0].X,
		maxY: points[0].Y,
	}
	for i, p := range points {
		o.minX = math.Min(o.minX, p.X)
		o.minY = math.Min(o.minY, p.Y)
		o.maxX = math.Max(o.maxX, p.X)
		o.maxY = math.Max(o.maxY, p.Y)

		points2d[i] = delaunay.Point{X: p.X, Y: p.Y}
	}
	o.minX -= coord.Epsilon
	o.minY -= coord.Epsilon
	o.maxX += coord.Epsilon
	o.maxY += coord.Epsilon

	tri, err := delaunay.Triangulate(points2d)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidGeometry, err)
	}

	o.triangles = make([]coord.Triangle, 0, len(tri.Triangles)/3)
	toPoint := func(idx int) coord.Point {
		p := tri.Points[idx]
		return coord.Point{X: p.X, Y: p.Y}
	}
	for i := 0; i+2 < len(tri.Triangles); i += 3 {
		o.triangles = append(o.triangles, coord.Triangle{
			A: toPoint(tri.Triangles[i]),
			B: toPoint(tri.Triangles[i+1]),
			C: toPoint(tri.Triangles[i+2]),
		})
	}
	if len(o.triangles) == 0 {
		return nil, fmt.Errorf("%w: corners do not enclose an area", ErrInvalidGeometry)
	}

	return o, nil
}

// Contains reports whether x,y lies on the plate.
func (o *Outline) Contains(x, y float64) bool {
	if x < o.minX || o.maxX < x || y < o.minY || o.maxY < y {
		return false
	}
	for _, t := range o.triangles {
		if t.ContainsXY(x, y) {
			return true
		}
	}
	return false
}

package plate

import (
	"errors"
	"fmt"
	"math"

	"github.com/mastercactapus/wellrig/coord"
)

// ErrInvalidGeometry is returned when corners or well counts cannot
// produce a grid.
var ErrInvalidGeometry = errors.New("invalid geometry")

// Grid holds the center point of every well, indexed [column][row].
type Grid struct {
	centers [][]coord.Point
}

// BuildGrid interpolates the well centers between the four corners.
//
// The top edge (TL->TR), bottom edge (BL->BR) and left edge (TL->BL) are
// split into countX-1, countX-1 and countY-1 steps. Row j moves j steps down
// the left edge, and column i moves i steps along a blend of the top and
// bottom edge directions weighted by how far down the plate row j is, so a
// skewed plate still yields evenly spaced wells.
func BuildGrid(c Corners, countX, countY int) (*Grid, error) {
	if countX < 2 || countY < 2 {
		return nil, fmt.Errorf("%w: well count %dx%d, need at least 2x2", ErrInvalidGeometry, countX, countY)
	}
	for _, p := range c.Points() {
		if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) {
			return nil, fmt.Errorf("%w: non-finite corner %v", ErrInvalidGeometry, p)
		}
	}

	bottomDir, bottomLen, ok := c.BottomRight.Sub(c.BottomLeft).Unit()
	if !ok {
		return nil, fmt.Errorf("%w: zero-length bottom edge", ErrInvalidGeometry)
	}
	topDir, topLen, ok := c.TopRight.Sub(c.TopLeft).Unit()
	if !ok {
		return nil, fmt.Errorf("%w: zero-length top edge", ErrInvalidGeometry)
	}
	leftDir, leftLen, ok := c.BottomLeft.Sub(c.TopLeft).Unit()
	if !ok {
		return nil, fmt.Errorf("%w: zero-length left edge", ErrInvalidGeometry)
	}

	bottomStep := bottomDir.Mul(bottomLen / float64(countX-1))
	topStep := topDir.Mul(topLen / float64(countX-1))
	leftStep := leftDir.Mul(leftLen / float64(countY-1))

	g := &Grid{centers: make([][]coord.Point, countX)}
	for i := range g.centers {
		col := make([]coord.Point, countY)
		for j := range col {
			w := float64(j) / float64(countY-1)
			col[j] = c.TopLeft.
				Add(leftStep.Mul(float64(j))).
				Add(bottomStep.Mul(float64(i) * w)).
				Add(topStep.Mul(float64(i) * (1 - w)))
		}
		g.centers[i] = col
	}

	return g, nil
}

// Dims returns the column and row counts.
func (g *Grid) Dims() (cols, rows int) {
	if len(g.centers) == 0 {
		return 0, 0
	}
	return len(g.centers), len(g.centers[0])
}

// Len returns the number of wells.
func (g *Grid) Len() int {
	cols, rows := g.Dims()
	return cols * rows
}

// At returns the center of the well at col,row.
func (g *Grid) At(col, row int) coord.Point { return g.centers[col][row] }

// Set moves the center of the well at col,row.
func (g *Grid) Set(col, row int, p coord.Point) { g.centers[col][row] = p }

// Each calls fn for every well, column by column.
func (g *Grid) Each(fn func(col, row int, p coord.Point)) {
	for i, col := range g.centers {
		for j, p := range col {
			fn(i, j, p)
		}
	}
}

// Points returns every center, column by column.
func (g *Grid) Points() []coord.Point {
	res := make([]coord.Point, 0, g.Len())
	g.Each(func(_, _ int, p coord.Point) { res = append(res, p) })
	return res
}

// Nearest returns the well closest to x,y by Manhattan distance. On ties the
// first well in column-by-column order wins.
func (g *Grid) Nearest(x, y float64) (col, row int) {
	minDist := math.Inf(1)
	g.Each(func(i, j int, p coord.Point) {
		d := p.Manhattan(x, y)
		if d < minDist {
			minDist = d
			col, row = i, j
		}
	})
	return col, row
}

// Clone returns a deep copy of g.
func (g *Grid) Clone() *Grid {
	c := &Grid{centers: make([][]coord.Point, len(g.centers))}
	for i, col := range g.centers {
		c.centers[i] = append([]coord.Point(nil), col...)
	}
	return c
}

// Labels returns the well labels, column by column.
func (g *Grid) Labels() []string {
	res := make([]string, 0, g.Len())
	g.Each(func(i, j int, _ coord.Point) { res = append(res, Label(i, j)) })
	return res
}

// Label names a well by its 1-based column number and row letter,
// e.g. col=0,row=0 is "1A" and col=11,row=7 is "12H".
func Label(col, row int) string {
	return fmt.Sprintf("%d%s", col+1, RowLetter(row))
}

// RowLetter returns the letters for a 0-based row: A..Z, then AA, AB, ...
func RowLetter(row int) string {
	var b []byte
	for n := row + 1; n > 0; n = (n - 1) / 26 {
		b = append([]byte{byte('A' + (n-1)%26)}, b...)
	}
	return string(b)
}

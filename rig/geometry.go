package rig

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/mastercactapus/wellrig/coord"
	"github.com/mastercactapus/wellrig/plate"
)

// Well count limits per axis.
const (
	MinWells = 2
	MaxWells = 26
)

// geometry is the shared plate state. Any change to the grid bumps gen
// and drops the mask.
type geometry struct {
	mx      sync.Mutex
	corners plate.CornerSet
	wellsX  int
	wellsY  int
	grid    *plate.Grid
	outline *plate.Outline
	gen     int

	mask       plate.Mask
	maskRadius float64
	maskW      int
	maskH      int
	maskLabels []string
}

// rebuild re-derives the grid from four corners. Must hold mx.
func (g *geometry) rebuild() error {
	g.gen++
	g.grid, g.outline = nil, nil
	g.mask, g.maskLabels = nil, nil

	c, ok := g.corners.Classified()
	if !ok {
		return nil
	}
	grid, err := plate.BuildGrid(c, g.wellsX, g.wellsY)
	if err != nil {
		return err
	}
	g.grid = grid
	g.outline, err = plate.NewOutline(c)
	if err != nil {
		// a degenerate outline only disables the on-plate test
		g.outline = nil
	}
	return nil
}

func (g *geometry) locate(x, y float64) (well string, onPlate bool) {
	g.mx.Lock()
	defer g.mx.Unlock()
	if g.grid == nil {
		return "", false
	}
	col, row := g.grid.Nearest(x, y)
	return plate.Label(col, row), g.outline != nil && g.outline.Contains(x, y)
}

// Well is one grid point.
type Well struct {
	Label string
	Col   int
	Row   int
	X, Y  float64
}

// Geometry is a snapshot of the plate state.
type Geometry struct {
	Corners    []coord.Point
	Classified *plate.Corners
	WellsX     int
	WellsY     int
	Wells      []Well
	MaskRadius float64
	MaskPixels int
}

func (c *Controller) Geometry() Geometry {
	g := &c.geo
	g.mx.Lock()
	defer g.mx.Unlock()
	return g.snapshot()
}

func (g *geometry) snapshot() Geometry {
	res := Geometry{
		Corners: g.corners.Points(),
		WellsX:  g.wellsX,
		WellsY:  g.wellsY,
	}
	if cls, ok := g.corners.Classified(); ok {
		res.Classified = &cls
	}
	if g.grid != nil {
		g.grid.Each(func(col, row int, p coord.Point) {
			res.Wells = append(res.Wells, Well{Label: plate.Label(col, row), Col: col, Row: row, X: p.X, Y: p.Y})
		})
	}
	if g.mask != nil {
		res.MaskRadius = g.maskRadius
		res.MaskPixels = g.mask.Pixels()
	}
	return res
}

// EditCorner records a corner click. The fourth corner, and every click
// after it, re-derives the grid.
func (c *Controller) EditCorner(x, y float64) (Geometry, error) {
	g := &c.geo
	g.mx.Lock()
	defer g.mx.Unlock()

	evicted, ok := g.corners.Add(coord.Point{X: x, Y: y})
	if ok {
		c.log.Debug("corner replaced", "x", evicted.X, "y", evicted.Y)
	}
	err := g.rebuild()
	if err != nil {
		return g.snapshot(), err
	}
	return g.snapshot(), nil
}

// ResetCorners clears the corners, grid and mask.
func (c *Controller) ResetCorners() {
	g := &c.geo
	g.mx.Lock()
	defer g.mx.Unlock()
	g.corners.Reset()
	g.rebuild()
}

// EditWell moves the well nearest to (x, y) onto (x, y).
func (c *Controller) EditWell(x, y float64) (Well, error) {
	g := &c.geo
	g.mx.Lock()
	defer g.mx.Unlock()
	if g.grid == nil {
		return Well{}, fmt.Errorf("%w: no grid", ErrNotReady)
	}
	col, row := g.grid.Nearest(x, y)
	g.grid.Set(col, row, coord.Point{X: x, Y: y})
	g.gen++
	g.mask, g.maskLabels = nil, nil
	return Well{Label: plate.Label(col, row), Col: col, Row: row, X: x, Y: y}, nil
}

// SetWellCount changes the well counts; nil leaves an axis unchanged. The
// grid and mask are dropped and the grid re-derived if four corners exist.
func (c *Controller) SetWellCount(x, y *int) (Geometry, error) {
	check := func(v *int) error {
		if v != nil && (*v < MinWells || *v > MaxWells) {
			return fmt.Errorf("%w: well count %d not in [%d,%d]", ErrInvalidArgument, *v, MinWells, MaxWells)
		}
		return nil
	}
	if err := errors.Join(check(x), check(y)); err != nil {
		return c.Geometry(), err
	}

	g := &c.geo
	g.mx.Lock()
	defer g.mx.Unlock()
	if x != nil {
		g.wellsX = *x
	}
	if y != nil {
		g.wellsY = *y
	}
	err := g.rebuild()
	return g.snapshot(), err
}

// BuildMask computes the per-well pixel mask for radius over the latest
// frame size. It can take a while for large frames.
func (c *Controller) BuildMask(radius float64) (int, error) {
	f, err := c.Frame()
	if err != nil {
		return 0, err
	}

	g := &c.geo
	g.mx.Lock()
	if g.grid == nil {
		g.mx.Unlock()
		return 0, fmt.Errorf("%w: no grid", ErrNotReady)
	}
	grid := g.grid.Clone()
	gen := g.gen
	g.mx.Unlock()

	mask, err := plate.BuildMask(grid, radius, f.Width, f.Height)
	if err != nil {
		return 0, err
	}

	g.mx.Lock()
	defer g.mx.Unlock()
	if g.gen != gen {
		return 0, fmt.Errorf("%w: grid changed while building mask", ErrNotReady)
	}
	g.mask = mask
	g.maskRadius = radius
	g.maskW, g.maskH = f.Width, f.Height
	g.maskLabels = grid.Labels()
	c.log.Info("mask built", "radius", radius, "wells", len(mask), "pixels", mask.Pixels())
	return mask.Pixels(), nil
}

// currentMask returns the mask with its labels and frame size.
func (c *Controller) currentMask() (plate.Mask, []string, image.Point, error) {
	g := &c.geo
	g.mx.Lock()
	defer g.mx.Unlock()
	if g.mask == nil {
		return nil, nil, image.Point{}, fmt.Errorf("%w: no mask", ErrNotReady)
	}
	return g.mask, g.maskLabels, image.Pt(g.maskW, g.maskH), nil
}

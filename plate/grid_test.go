package plate

import (
	"errors"
	"testing"

	"github.com/mastercactapus/wellrig/coord"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildGrid_Rectangle(t *testing.T) {
	c := ClassifyCorners([4]coord.Point{{X: 0, Y: 0}, {X: 100, Y: 0}, {X: 0, Y: 80}, {X: 100, Y: 80}})

	g, err := BuildGrid(c, 3, 2)
	require.NoError(t, err)

	cols, rows := g.Dims()
	assert.Equal(t, 3, cols)
	assert.Equal(t, 2, rows)

	want := [][]coord.Point{
		{{X: 0, Y: 0}, {X: 0, Y: 80}},
		{{X: 50, Y: 0}, {X: 50, Y: 80}},
		{{X: 100, Y: 0}, {X: 100, Y: 80}},
	}
	for i := range want {
		for j := range want[i] {
			p := g.At(i, j)
			assert.InDelta(t, want[i][j].X, p.X, 1e-9, "col %d row %d", i, j)
			assert.InDelta(t, want[i][j].Y, p.Y, 1e-9, "col %d row %d", i, j)
		}
	}
}

func TestBuildGrid_Skewed(t *testing.T) {
	quads := [][4]coord.Point{
		{{X: 20, Y: 18}, {X: 118, Y: 12}, {X: 12, Y: 90}, {X: 112, Y: 95}},
		{{X: 52, Y: 40}, {X: 590, Y: 70}, {X: 30, Y: 420}, {X: 610, Y: 440}},
		{{X: 100, Y: 100}, {X: 500, Y: 120}, {X: 90, Y: 380}, {X: 520, Y: 370}},
	}

	for _, q := range quads {
		c := ClassifyCorners(q)
		g, err := BuildGrid(c, 12, 8)
		require.NoError(t, err)
		assert.Equal(t, 96, g.Len())

		// corner-most wells sit on the corners
		assertNear(t, c.TopLeft, g.At(0, 0))
		assertNear(t, c.TopRight, g.At(11, 0))
		assertNear(t, c.BottomLeft, g.At(0, 7))
		assertNear(t, c.BottomRight, g.At(11, 7))

		o, err := NewOutline(c)
		require.NoError(t, err)
		for _, p := range g.Points() {
			assert.True(t, o.Contains(p.X, p.Y), "%v outside %v", p, c)
		}
	}
}

func TestBuildGrid_EvenSpacingAlongRows(t *testing.T) {
	c := ClassifyCorners([4]coord.Point{{X: 20, Y: 18}, {X: 118, Y: 12}, {X: 12, Y: 90}, {X: 112, Y: 95}})
	g, err := BuildGrid(c, 5, 4)
	require.NoError(t, err)

	for row := 0; row < 4; row++ {
		first := g.At(1, row).Sub(g.At(0, row))
		for col := 2; col < 5; col++ {
			step := g.At(col, row).Sub(g.At(col-1, row))
			assertNear(t, first, step)
		}
	}
}

func TestBuildGrid_Invalid(t *testing.T) {
	c := ClassifyCorners([4]coord.Point{{X: 0, Y: 0}, {X: 100, Y: 0}, {X: 0, Y: 80}, {X: 100, Y: 80}})

	_, err := BuildGrid(c, 1, 8)
	assert.True(t, errors.Is(err, ErrInvalidGeometry))
	_, err = BuildGrid(c, 12, 1)
	assert.True(t, errors.Is(err, ErrInvalidGeometry))
	_, err = BuildGrid(c, 0, 0)
	assert.True(t, errors.Is(err, ErrInvalidGeometry))

	// zero-length top edge
	_, err = BuildGrid(Corners{
		TopLeft:     coord.Point{X: 10, Y: 10},
		TopRight:    coord.Point{X: 10, Y: 10},
		BottomLeft:  coord.Point{X: 0, Y: 80},
		BottomRight: coord.Point{X: 100, Y: 80},
	}, 3, 3)
	assert.True(t, errors.Is(err, ErrInvalidGeometry))

	// all four corners in one place
	p := coord.Point{X: 5, Y: 5}
	_, err = BuildGrid(Corners{TopLeft: p, TopRight: p, BottomLeft: p, BottomRight: p}, 3, 3)
	assert.True(t, errors.Is(err, ErrInvalidGeometry))
}

func TestGrid_Nearest(t *testing.T) {
	c := ClassifyCorners([4]coord.Point{{X: 0, Y: 0}, {X: 100, Y: 0}, {X: 0, Y: 80}, {X: 100, Y: 80}})
	g, err := BuildGrid(c, 3, 2)
	require.NoError(t, err)

	col, row := g.Nearest(48, 70)
	assert.Equal(t, 1, col)
	assert.Equal(t, 1, row)

	col, row = g.Nearest(101, -3)
	assert.Equal(t, 2, col)
	assert.Equal(t, 0, row)

	// (25,0) is equidistant from (0,0) and (50,0): first seen wins
	col, row = g.Nearest(25, 0)
	assert.Equal(t, 0, col)
	assert.Equal(t, 0, row)

	// (0,40) is equidistant from (0,0) and (0,80)
	col, row = g.Nearest(0, 40)
	assert.Equal(t, 0, col)
	assert.Equal(t, 0, row)
}

func TestGrid_SetAndClone(t *testing.T) {
	c := ClassifyCorners([4]coord.Point{{X: 0, Y: 0}, {X: 100, Y: 0}, {X: 0, Y: 80}, {X: 100, Y: 80}})
	g, err := BuildGrid(c, 3, 2)
	require.NoError(t, err)

	cp := g.Clone()
	g.Set(1, 1, coord.Point{X: 52, Y: 77})
	assert.Equal(t, coord.Point{X: 52, Y: 77}, g.At(1, 1))
	assert.NotEqual(t, g.At(1, 1), cp.At(1, 1))
}

func TestLabels(t *testing.T) {
	c := ClassifyCorners([4]coord.Point{{X: 0, Y: 0}, {X: 100, Y: 0}, {X: 0, Y: 80}, {X: 100, Y: 80}})
	g, err := BuildGrid(c, 3, 2)
	require.NoError(t, err)

	assert.Equal(t, []string{"1A", "1B", "2A", "2B", "3A", "3B"}, g.Labels())
	assert.Equal(t, "12H", Label(11, 7))
	assert.Equal(t, "Z", RowLetter(25))
	assert.Equal(t, "AA", RowLetter(26))
}

func assertNear(t *testing.T, want, got coord.Point) {
	t.Helper()
	assert.InDelta(t, want.X, got.X, 1e-6)
	assert.InDelta(t, want.Y, got.Y, 1e-6)
}

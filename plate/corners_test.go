package plate

import (
	"testing"

	"github.com/mastercactapus/wellrig/coord"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyCorners(t *testing.T) {
	c := ClassifyCorners([4]coord.Point{
		{X: 100, Y: 80},
		{X: 0, Y: 80},
		{X: 100, Y: 0},
		{X: 0, Y: 0},
	})
	assert.Equal(t, Corners{
		TopLeft:     coord.Point{X: 0, Y: 0},
		TopRight:    coord.Point{X: 100, Y: 0},
		BottomLeft:  coord.Point{X: 0, Y: 80},
		BottomRight: coord.Point{X: 100, Y: 80},
	}, c)

	// slightly rotated plate
	c = ClassifyCorners([4]coord.Point{
		{X: 112, Y: 95},
		{X: 20, Y: 18},
		{X: 12, Y: 90},
		{X: 118, Y: 12},
	})
	assert.Equal(t, coord.Point{X: 20, Y: 18}, c.TopLeft)
	assert.Equal(t, coord.Point{X: 118, Y: 12}, c.TopRight)
	assert.Equal(t, coord.Point{X: 12, Y: 90}, c.BottomLeft)
	assert.Equal(t, coord.Point{X: 112, Y: 95}, c.BottomRight)
}

func TestClassifyCorners_Idempotent(t *testing.T) {
	inputs := [][4]coord.Point{
		{{X: 100, Y: 80}, {X: 0, Y: 80}, {X: 100, Y: 0}, {X: 0, Y: 0}},
		{{X: 112, Y: 95}, {X: 20, Y: 18}, {X: 12, Y: 90}, {X: 118, Y: 12}},
		{{X: 300, Y: 410}, {X: 620, Y: 30}, {X: 40, Y: 60}, {X: 590, Y: 440}},
	}
	for _, in := range inputs {
		first := ClassifyCorners(in)
		assert.Equal(t, first, ClassifyCorners(first.Points()))

		// and independent of input order
		rev := [4]coord.Point{in[3], in[2], in[1], in[0]}
		assert.Equal(t, first, ClassifyCorners(rev))
	}
}

func TestClassifyCorners_Degenerate(t *testing.T) {
	// all sums equal: labels must still be four distinct inputs
	in := [4]coord.Point{{X: 0, Y: 10}, {X: 10, Y: 0}, {X: 5, Y: 5}, {X: 2, Y: 8}}
	c := ClassifyCorners(in)
	seen := map[coord.Point]bool{}
	for _, p := range c.Points() {
		seen[p] = true
	}
	assert.Len(t, seen, 4)
}

func TestCornerSet_Eviction(t *testing.T) {
	var s CornerSet
	for _, p := range []coord.Point{{X: 0, Y: 0}, {X: 100, Y: 0}, {X: 0, Y: 80}, {X: 100, Y: 80}} {
		_, ok := s.Add(p)
		assert.False(t, ok)
	}
	require.Equal(t, 4, s.Len())

	evicted, ok := s.Add(coord.Point{X: 95, Y: 3})
	assert.True(t, ok)
	assert.Equal(t, coord.Point{X: 100, Y: 0}, evicted)
	assert.Equal(t, 4, s.Len())
	assert.Equal(t, []coord.Point{{X: 0, Y: 0}, {X: 0, Y: 80}, {X: 100, Y: 80}, {X: 95, Y: 3}}, s.Points())

	c, ok := s.Classified()
	require.True(t, ok)
	assert.Equal(t, coord.Point{X: 95, Y: 3}, c.TopRight)
}

func TestCornerSet_EvictionTie(t *testing.T) {
	var s CornerSet
	for _, p := range []coord.Point{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 0, Y: 10}, {X: 10, Y: 10}} {
		s.Add(p)
	}

	// equidistant from (0,0) and (10,0): the first one goes
	evicted, ok := s.Add(coord.Point{X: 5, Y: 0})
	assert.True(t, ok)
	assert.Equal(t, coord.Point{X: 0, Y: 0}, evicted)
	assert.Equal(t, 4, s.Len())
}

func TestCornerSet_Incomplete(t *testing.T) {
	var s CornerSet
	s.Add(coord.Point{X: 1, Y: 1})
	_, ok := s.Classified()
	assert.False(t, ok)

	s.Reset()
	assert.Equal(t, 0, s.Len())
}

package coord

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPoint_Add(t *testing.T) {
	a := Point{X: 1, Y: 2}
	b := Point{X: 4, Y: 5}

	assert.Equal(t, Point{X: 5, Y: 7}, a.Add(b))
	assert.Equal(t, Point{X: -3, Y: -3}, a.Sub(b))
}

func TestPoint_Distance(t *testing.T) {
	p := Point{X: 1, Y: 2}
	assert.Equal(t, 18.0, p.DistanceSq(4, 5))
	assert.Equal(t, 6.0, p.Manhattan(4, 5))
	assert.Equal(t, 6.0, p.Manhattan(-2, -1))
}

func TestPoint_Unit(t *testing.T) {
	u, l, ok := Point{X: 3, Y: 4}.Unit()
	assert.True(t, ok)
	assert.Equal(t, 5.0, l)
	assert.InDelta(t, 0.6, u.X, 1e-9)
	assert.InDelta(t, 0.8, u.Y, 1e-9)

	_, _, ok = Point{}.Unit()
	assert.False(t, ok)
}

package coord

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTriangle_ContainsXY(t *testing.T) {
	tri := Triangle{
		A: Point{0, 0},
		B: Point{10, 0},
		C: Point{5, 5},
	}

	assert.True(t, tri.ContainsXY(5, 1))
	assert.True(t, tri.ContainsXY(0, 0))
	assert.True(t, tri.ContainsXY(5, 0))
	assert.True(t, tri.ContainsXY(5, 5+Epsilon/2))
	assert.False(t, tri.ContainsXY(5, 6))
	assert.False(t, tri.ContainsXY(-1, 0))

	// winding order does not matter
	rev := Triangle{A: tri.C, B: tri.B, C: tri.A}
	assert.True(t, rev.ContainsXY(5, 1))
	assert.False(t, rev.ContainsXY(5, 6))
}

func TestTriangle_ContainsXY_Degenerate(t *testing.T) {
	tri := Triangle{A: Point{0, 0}, B: Point{0, 0}, C: Point{10, 0}}
	assert.True(t, tri.ContainsXY(5, 0))
	assert.True(t, tri.ContainsXY(5, Epsilon/2))
	assert.False(t, tri.ContainsXY(5, 1))
}

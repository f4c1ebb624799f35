package annotations

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v float64) *float64 { return &v }

func positioned(x1, y1, x2, y2 float64) Note {
	return Note{ID: "n1", Page: 2, X1: ptr(x1), Y1: ptr(y1), X2: ptr(x2), Y2: ptr(y2)}
}

func coords(t *testing.T, n Note) (float64, float64, float64, float64) {
	t.Helper()
	require.True(t, n.Positioned())
	return *n.X1, *n.Y1, *n.X2, *n.Y2
}

func TestRotateQuarterTurn(t *testing.T) {
	n := positioned(0.1, 0.2, 0.4, 0.3)
	n.Rotate(1)
	x1, y1, x2, y2 := coords(t, n)
	assert.InDelta(t, 1-0.3, x1, 1e-9)
	assert.InDelta(t, 1-0.2, x2, 1e-9)
	assert.InDelta(t, 0.1, y1, 1e-9)
	assert.InDelta(t, 0.4, y2, 1e-9)
}

func TestRotateHalfTurn(t *testing.T) {
	n := positioned(0.1, 0.2, 0.4, 0.3)
	n.Rotate(2)
	x1, y1, x2, y2 := coords(t, n)
	assert.InDelta(t, 1-0.4, x1, 1e-9)
	assert.InDelta(t, 1-0.1, x2, 1e-9)
	assert.InDelta(t, 1-0.3, y1, 1e-9)
	assert.InDelta(t, 1-0.2, y2, 1e-9)
}

func TestFullTurnComposition(t *testing.T) {
	// Four quarter turns must return the rectangle to its start, and
	// two quarter turns must equal one half turn.
	orig := positioned(0.12, 0.25, 0.47, 0.33)

	spun := orig
	for i := 0; i < 4; i++ {
		spun.Rotate(1)
	}
	// Each turn reflects coordinates off 1.0, so the round trip picks
	// up float error and exact comparison is off the table.
	assert.Equal(t, orig.Page, spun.Page)
	x1, y1, x2, y2 := coords(t, spun)
	assert.InDelta(t, 0.12, x1, 1e-9)
	assert.InDelta(t, 0.25, y1, 1e-9)
	assert.InDelta(t, 0.47, x2, 1e-9)
	assert.InDelta(t, 0.33, y2, 1e-9)

	twice := orig
	twice.Rotate(1)
	twice.Rotate(1)
	half := orig
	half.Rotate(2)
	x1a, y1a, x2a, y2a := coords(t, twice)
	x1b, y1b, x2b, y2b := coords(t, half)
	assert.InDelta(t, x1b, x1a, 1e-9)
	assert.InDelta(t, y1b, y1a, 1e-9)
	assert.InDelta(t, x2b, x2a, 1e-9)
	assert.InDelta(t, y2b, y2a, 1e-9)
}

func TestRotateNegativeAndIdentity(t *testing.T) {
	orig := positioned(0.1, 0.2, 0.4, 0.3)

	ccw := orig
	ccw.Rotate(-1)
	three := orig
	three.Rotate(3)
	assert.Equal(t, three, ccw)

	id := orig
	id.Rotate(0)
	assert.Equal(t, orig, id)
	id.Rotate(4)
	assert.Equal(t, orig, id)
}

func TestRotatePageLevelNoteIsNoOp(t *testing.T) {
	n := Note{ID: "n2", Page: 3}
	n.Rotate(1)
	assert.False(t, n.Positioned())
	assert.Equal(t, 3, n.Page)
}

func TestCloneIsIndependent(t *testing.T) {
	n := positioned(0.1, 0.2, 0.4, 0.3)
	c := n.Clone()
	assert.Empty(t, c.ID)
	assert.Equal(t, n.Page, c.Page)
	require.True(t, c.Positioned())

	*c.X1 = 0.9
	assert.InDelta(t, 0.1, *n.X1, 1e-9)

	page := Note{ID: "n3", Page: 5}
	pc := page.Clone()
	assert.False(t, pc.Positioned())
}

func TestDetach(t *testing.T) {
	n := positioned(0.1, 0.2, 0.4, 0.3)
	n.Detach()
	assert.Equal(t, 0, n.Page)
	assert.False(t, n.Positioned())
}

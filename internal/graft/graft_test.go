package graft

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openvault/docpipeline/internal/ocr"
)

func newMeasurer(t *testing.T) *Measurer {
	t.Helper()
	m, err := NewMeasurer()
	require.NoError(t, err)
	return m
}

func TestFitPointSizeScalesWithTargetWidth(t *testing.T) {
	m := newMeasurer(t)

	narrow := m.FitPointSize("hello", 20)
	wide := m.FitPointSize("hello", 200)
	assert.Greater(t, wide, narrow)

	// Doubling the target roughly doubles the size; flooring can lose
	// at most a point.
	double := m.FitPointSize("hello", 40)
	assert.InDelta(t, 2*narrow, double, 2)
}

func TestFitPointSizeFallsBackToMinimum(t *testing.T) {
	m := newMeasurer(t)
	assert.Equal(t, minPointSize, m.FitPointSize("wide word", 0.01))
	assert.Equal(t, minPointSize, m.FitPointSize("", 50))
}

func TestStampsPositionAndVisibility(t *testing.T) {
	m := newMeasurer(t)
	words := []ocr.Word{
		{Text: "Deed", X1: 0.1, Y1: 0.05, X2: 0.3, Y2: 0.08},
		{Text: "  ", X1: 0.5, Y1: 0.5, X2: 0.6, Y2: 0.52},
	}
	stamps := Stamps(m, words, 612, 792)
	require.Len(t, stamps, 1, "whitespace words are dropped")

	s := stamps[0]
	assert.Equal(t, "Deed", s.Text)
	assert.True(t, s.Invisible)
	assert.InDelta(t, 0.1*612, s.X, 0.001)
	// Anchored at the bottom edge of the word box, flipped to PDF
	// bottom-left coordinates.
	assert.InDelta(t, (1-0.08)*792, s.Y, 0.001)
	assert.Positive(t, s.Points)
}

func TestStampsEmptyPage(t *testing.T) {
	m := newMeasurer(t)
	assert.Empty(t, Stamps(m, nil, 612, 792))
}

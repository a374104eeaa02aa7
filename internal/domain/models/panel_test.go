package models

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(d int) time.Time { return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC) }

func TestPanelHasTracksColumns(t *testing.T) {
	p, err := NewPanel([]time.Time{day(2), day(3)}, []string{"7203.T", "^N225", "7203.T"})
	require.NoError(t, err)
	assert.Equal(t, []string{"7203.T", "^N225"}, p.Columns)
	assert.True(t, p.Has("^N225"))
	assert.False(t, p.Has("^VIX"))

	p.Drop("^N225")
	assert.False(t, p.Has("^N225"))
	assert.Equal(t, []string{"7203.T"}, p.Columns)

	var nilPanel *Panel
	assert.False(t, nilPanel.Has("7203.T"))
}

func TestNewPanelRejectsUnsortedDates(t *testing.T) {
	_, err := NewPanel([]time.Time{day(3), day(2)}, []string{"a"})
	assert.True(t, errors.Is(err, ErrUnsortedIndex))
}

func TestPanelCoverageAndIndex(t *testing.T) {
	p, err := NewPanel([]time.Time{day(2), day(3), day(4), day(5)}, []string{"a"})
	require.NoError(t, err)
	require.NoError(t, p.Set("a", []float64{1, math.NaN(), 3, 4}))
	assert.Equal(t, 0.75, p.Coverage("a"))
	assert.Zero(t, p.Coverage("missing"))
	assert.Equal(t, 2, p.IndexOf(day(4)))
	assert.Equal(t, -1, p.IndexOf(day(9)))
}

package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelForBalance(t *testing.T) {
	tests := []struct {
		name    string
		balance float64
		want    int
	}{
		{"exactly at level 2 floor", 26, 2},
		{"just below level 2 floor", 25.99, 1},
		{"below the whole ladder", 5, 1},
		{"zero balance", 0, 1},
		{"mid ladder", 300, 11},
		{"top of ladder", 1_000_000, 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lvl := LevelForBalance(tt.balance)
			require.NotNil(t, lvl)
			assert.Equal(t, tt.want, lvl.Level)
		})
	}
}

func TestLevelForBalanceNonFinite(t *testing.T) {
	assert.Nil(t, LevelForBalance(math.NaN()))
	assert.Nil(t, LevelForBalance(math.Inf(1)))
	assert.Nil(t, LevelForBalance(math.Inf(-1)))
}

func TestLadderIsContiguous(t *testing.T) {
	require.Len(t, Levels, 30)
	for i := 1; i < len(Levels); i++ {
		assert.Equal(t, i+1, Levels[i].Level)
		assert.Greater(t, Levels[i].Balance, Levels[i-1].Balance,
			"ladder floors must be strictly ascending")
		assert.InDelta(t, Levels[i-1].Ending, Levels[i].Balance, 1e-9,
			"each rung should start where the previous one ends")
	}
}

func TestNormalizePct(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want float64
	}{
		{"human percent", 2, 0.02},
		{"already fractional", 0.02, 0.02},
		{"one is a fraction", 1, 1},
		{"fifty percent", 50, 0.5},
		{"zero", 0, 0},
		{"negative", -3, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, NormalizePct(tt.in), 1e-12)
		})
	}

	assert.Zero(t, NormalizePct(math.NaN()))
	assert.Zero(t, NormalizePct(math.Inf(1)))
}

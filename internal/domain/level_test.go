package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevel(t *testing.T) {
	assert.Equal(t, 1, Level(0))
	assert.Equal(t, 1, Level(499))
	assert.Equal(t, 2, Level(500))
	assert.Equal(t, 2, Level(999))
	assert.Equal(t, 3, Level(1000))
	assert.Equal(t, 1, Level(-50))
}

func TestXPToNextLevel(t *testing.T) {
	lp := XPToNextLevel(0)
	assert.Equal(t, int64(0), lp.Current)
	assert.Equal(t, int64(XPPerLevel), lp.Needed)

	lp = XPToNextLevel(620)
	assert.Equal(t, int64(120), lp.Current)
	assert.Equal(t, int64(XPPerLevel), lp.Needed)
}

func TestStreakBonus(t *testing.T) {
	assert.Equal(t, 0, StreakBonus(0))
	assert.Equal(t, 0, StreakBonus(-3))
	assert.Equal(t, 10, StreakBonus(1))
	assert.Equal(t, 50, StreakBonus(5))
	assert.Equal(t, 100, StreakBonus(10))
	// Capped past ten days
	assert.Equal(t, 100, StreakBonus(30))
}

func TestMaskedName(t *testing.T) {
	assert.Equal(t, "learner-7ed99bd0", MaskedName("7ed99bd0-87b2-4dbb-a97b-596c3f29c49b"))
	assert.Equal(t, "learner-abc", MaskedName("abc"))
}

func TestProgressHasWatched(t *testing.T) {
	p := Progress{Watched: []string{"a", "b"}}
	assert.True(t, p.HasWatched("a"))
	assert.False(t, p.HasWatched("c"))
	assert.False(t, Progress{}.HasWatched("a"))
}

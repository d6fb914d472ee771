package domain

// XPPerLevel is the cumulative XP span of a single level.
const XPPerLevel = 500

// Level maps cumulative XP to a level number, starting at level 1.
func Level(xp int64) int {
	if xp < 0 {
		xp = 0
	}
	return int(xp/XPPerLevel) + 1
}

// LevelProgress describes position within the current level
type LevelProgress struct {
	Current int64 `json:"current"`
	Needed  int64 `json:"needed"`
}

// XPToNextLevel returns XP accumulated within the current level and the level span.
func XPToNextLevel(xp int64) LevelProgress {
	if xp < 0 {
		xp = 0
	}
	return LevelProgress{
		Current: xp - int64(Level(xp)-1)*XPPerLevel,
		Needed:  XPPerLevel,
	}
}

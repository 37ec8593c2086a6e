package progress

// Per-level XP cost curve.
const (
	baseCost    = 100
	costPerStep = 40
	maxCost     = 1400
)

// Level describes where a total XP amount lands on the level curve.
type Level struct {
	Level  int `json:"level"`
	XPInto int `json:"xpInto"` // XP accumulated inside the current level
	XPNeed int `json:"xpNeed"` // cost of the current level
}

// Cost returns the XP needed to advance from level to level+1.
//
// The cost widens by costPerStep per level and is capped at maxCost:
//
//	level 1 costs 100, level 2 costs 140, … level 33 and above cost 1400.
func Cost(level int) int {
	level = max(level, 1)
	return min(baseCost+costPerStep*(level-1), maxCost)
}

// FromTotalXP converts an accumulated XP total into a level triple.
//
// Starting at level 1, the current level's cost is subtracted from the
// remaining total for as long as it fits. Whatever is left over is the
// progress into the level reached. Higher totals never produce a lower
// level.
func FromTotalXP(total int) Level {
	level := 1
	remaining := max(total, 0)
	for remaining >= Cost(level) {
		remaining -= Cost(level)
		level++
	}
	return Level{
		Level:  level,
		XPInto: remaining,
		XPNeed: Cost(level),
	}
}

// Pct returns progress within the current level, 0.0–1.0.
func (l Level) Pct() float64 {
	if l.XPNeed <= 0 {
		return 0
	}
	return min(max(float64(l.XPInto)/float64(l.XPNeed), 0), 1)
}

// TotalForLevel returns the cumulative XP at which level is first reached.
func TotalForLevel(level int) int {
	total := 0
	for l := 1; l < level; l++ {
		total += Cost(l)
	}
	return total
}

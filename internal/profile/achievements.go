package profile

import (
	"maps"
	"time"
)

// Tier represents a rung on a badge's tier ladder. Single-shot badges
// carry a tier for display only.
type Tier string

const (
	TierNone    Tier = ""
	TierBronze  Tier = "bronze"
	TierSilver  Tier = "silver"
	TierGold    Tier = "gold"
	TierDiamond Tier = "diamond"
)

// Rank orders tiers: bronze < silver < gold < diamond. An absent or
// unknown tier ranks 0.
func (t Tier) Rank() int {
	switch t {
	case TierBronze:
		return 1
	case TierSilver:
		return 2
	case TierGold:
		return 3
	case TierDiamond:
		return 4
	default:
		return 0
	}
}

// Unlock records when a badge was unlocked and, for tiered badges, the
// highest tier reached so far.
type Unlock struct {
	At   time.Time `json:"at"`
	Tier Tier      `json:"tier,omitempty"`
}

// AchievementState holds badge unlock records and progress counters.
// Records are never removed and tiers never lowered; counters only move
// in the direction their rule defines.
type AchievementState struct {
	Unlocked map[string]Unlock `json:"unlocked"`
	Counters map[string]int    `json:"counters"`
}

// Init lazily creates the maps.
func (s *AchievementState) Init() {
	if s.Unlocked == nil {
		s.Unlocked = make(map[string]Unlock)
	}
	if s.Counters == nil {
		s.Counters = make(map[string]int)
	}
}

// Clone returns a deep copy with both maps duplicated. The copy's maps are
// always non-nil.
func (s AchievementState) Clone() AchievementState {
	cp := AchievementState{
		Unlocked: make(map[string]Unlock, len(s.Unlocked)),
		Counters: make(map[string]int, len(s.Counters)),
	}
	maps.Copy(cp.Unlocked, s.Unlocked)
	maps.Copy(cp.Counters, s.Counters)
	return cp
}

// IsUnlocked reports whether badge id has any unlock record.
func (s AchievementState) IsUnlocked(id string) bool {
	_, ok := s.Unlocked[id]
	return ok
}

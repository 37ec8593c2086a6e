package achievement

import (
	"github.com/mathquest/backend/internal/event"
	"github.com/mathquest/backend/internal/profile"
)

// Counter keys.
const (
	CounterLifetimeCorrect   = "lifetime_correct"
	CounterVeryFastCorrect   = "very_fast_correct"
	CounterFastCorrect       = "fast_correct"
	CounterBestStreak        = "best_streak"
	CounterSessionsCompleted = "sessions_completed"
	CounterPerfectSessions   = "perfect_sessions"

	// Resynced from profile sets on every evaluation.
	CounterSkinsOwned     = "skins_owned"
	CounterBiomesUnlocked = "biomes_unlocked"
	CounterSkillsMastered = "skills_mastered"
)

// Latency thresholds for the speed counters.
const (
	veryFastMs = 1500
	fastMs     = 3000
)

var knownCounters = map[string]bool{
	CounterLifetimeCorrect:   true,
	CounterVeryFastCorrect:   true,
	CounterFastCorrect:       true,
	CounterBestStreak:        true,
	CounterSessionsCompleted: true,
	CounterPerfectSessions:   true,
	CounterSkinsOwned:        true,
	CounterBiomesUnlocked:    true,
	CounterSkillsMastered:    true,
}

// updateCounters applies ev to counters and resyncs the profile-derived
// counters. Sums only grow, and running maxima never drop below a value
// already seen.
func updateCounters(counters map[string]int, p *profile.Profile, ev event.Event) {
	switch e := ev.(type) {
	case event.Answer:
		if e.Correct {
			counters[CounterLifetimeCorrect]++
			if e.LatencyMs < veryFastMs {
				counters[CounterVeryFastCorrect]++
			}
			if e.LatencyMs < fastMs {
				counters[CounterFastCorrect]++
			}
		}
		counters[CounterBestStreak] = max(counters[CounterBestStreak], e.Streak)
	case event.SessionEnd:
		counters[CounterSessionsCompleted]++
		if e.Attempts > 0 && e.Correct == e.Attempts {
			counters[CounterPerfectSessions]++
		}
		counters[CounterBestStreak] = max(counters[CounterBestStreak], e.BestStreak)
	case event.Mastery, event.Purchase, event.BiomeUnlock:
		// Only the resync below applies.
	}

	counters[CounterSkinsOwned] = len(p.OwnedSkins)
	counters[CounterBiomesUnlocked] = len(p.UnlockedBiomes)
	counters[CounterSkillsMastered] = len(p.Mastered)
}

package achievement

import (
	"time"

	"github.com/mathquest/backend/internal/event"
	"github.com/mathquest/backend/internal/profile"
)

// Category groups related badges in the UI.
type Category string

const (
	CategoryPractice    Category = "Practice"
	CategorySpeed       Category = "Speed"
	CategoryStreaks     Category = "Streaks"
	CategoryMastery     Category = "Mastery"
	CategoryExploration Category = "Exploration"
	CategoryCollection  Category = "Collection"
)

// Context is everything a single-shot predicate may look at. Profile
// reflects the mastery and world updates already applied for Event;
// Counters are the counters after this evaluation's update step.
type Context struct {
	Profile  *profile.Profile
	Event    event.Event
	Now      time.Time
	Counters map[string]int
}

// Rule is either Single or Tiered.
type Rule interface {
	rule()
}

// Single unlocks once, the first time Predicate holds.
type Single struct {
	Predicate func(Context) bool
	Tier      profile.Tier // display only
	Reward    int
}

// Step is one rung of a tier ladder.
type Step struct {
	Tier   profile.Tier
	Goal   int
	Reward int
}

// Tiered unlocks each rung of Ladder as Counter reaches its goal.
type Tiered struct {
	Counter string
	Ladder  []Step
}

func (Single) rule() {}
func (Tiered) rule() {}

// Badge is a catalogue entry. Badges are static content and never persisted.
type Badge struct {
	ID          string
	Name        string
	Description string
	Category    Category
	Rule        Rule
}

// ladder builds the common four-rung ladder.
func ladder(goals, rewards [4]int) []Step {
	tiers := [4]profile.Tier{profile.TierBronze, profile.TierSilver, profile.TierGold, profile.TierDiamond}
	steps := make([]Step, 4)
	for i := range steps {
		steps[i] = Step{Tier: tiers[i], Goal: goals[i], Reward: rewards[i]}
	}
	return steps
}

func answer(c Context) (event.Answer, bool) {
	a, ok := c.Event.(event.Answer)
	return a, ok
}

// DefaultCatalogue returns the built-in badge set.
func DefaultCatalogue() []Badge {
	return []Badge{

		// ── Practice ───────────────────────────────────────────────────────

		{
			ID: "first_steps", Name: "First Steps",
			Description: "Answer your first question correctly",
			Category:    CategoryPractice,
			Rule: Single{Tier: profile.TierBronze, Reward: 10, Predicate: func(c Context) bool {
				a, ok := answer(c)
				return ok && a.Correct
			}},
		},
		{
			ID: "sharp_mind", Name: "Sharp Mind",
			Description: "Answer questions correctly over your lifetime",
			Category:    CategoryPractice,
			Rule:        Tiered{Counter: CounterLifetimeCorrect, Ladder: ladder([4]int{50, 250, 1000, 5000}, [4]int{10, 25, 75, 200})},
		},
		{
			ID: "dedicated", Name: "Dedicated",
			Description: "Finish practice sessions",
			Category:    CategoryPractice,
			Rule:        Tiered{Counter: CounterSessionsCompleted, Ladder: ladder([4]int{5, 25, 100, 365}, [4]int{10, 30, 80, 200})},
		},
		{
			ID: "marathon", Name: "Marathon",
			Description: "Answer 50 questions in a single session",
			Category:    CategoryPractice,
			Rule: Single{Tier: profile.TierSilver, Reward: 30, Predicate: func(c Context) bool {
				s, ok := c.Event.(event.SessionEnd)
				return ok && s.Attempts >= 50
			}},
		},
		{
			ID: "perfect_session", Name: "Perfect Session",
			Description: "Finish a session of at least 10 questions without a mistake",
			Category:    CategoryPractice,
			Rule: Single{Tier: profile.TierGold, Reward: 50, Predicate: func(c Context) bool {
				s, ok := c.Event.(event.SessionEnd)
				return ok && s.Attempts >= 10 && s.Correct == s.Attempts
			}},
		},
		{
			ID: "flawless", Name: "Flawless",
			Description: "Finish sessions without a single mistake",
			Category:    CategoryPractice,
			Rule:        Tiered{Counter: CounterPerfectSessions, Ladder: ladder([4]int{3, 10, 30, 100}, [4]int{15, 40, 100, 250})},
		},

		// ── Speed ──────────────────────────────────────────────────────────

		{
			ID: "lightning", Name: "Lightning",
			Description: "Answer correctly in under one second",
			Category:    CategorySpeed,
			Rule: Single{Tier: profile.TierSilver, Reward: 25, Predicate: func(c Context) bool {
				a, ok := answer(c)
				return ok && a.Correct && a.LatencyMs < 1000
			}},
		},
		{
			ID: "quick_thinker", Name: "Quick Thinker",
			Description: "Answer correctly in under three seconds",
			Category:    CategorySpeed,
			Rule:        Tiered{Counter: CounterFastCorrect, Ladder: ladder([4]int{25, 150, 600, 2500}, [4]int{10, 30, 80, 200})},
		},
		{
			ID: "speed_demon", Name: "Speed Demon",
			Description: "Answer correctly in under one and a half seconds",
			Category:    CategorySpeed,
			Rule:        Tiered{Counter: CounterVeryFastCorrect, Ladder: ladder([4]int{10, 75, 300, 1200}, [4]int{15, 40, 100, 250})},
		},

		// ── Streaks ────────────────────────────────────────────────────────

		{
			ID: "unstoppable", Name: "Unstoppable",
			Description: "Reach a long streak of correct answers",
			Category:    CategoryStreaks,
			Rule:        Tiered{Counter: CounterBestStreak, Ladder: ladder([4]int{5, 10, 25, 50}, [4]int{10, 25, 60, 150})},
		},

		// ── Mastery ────────────────────────────────────────────────────────

		{
			ID: "first_mastery", Name: "Skill Unlocked",
			Description: "Master your first skill",
			Category:    CategoryMastery,
			Rule: Single{Tier: profile.TierSilver, Reward: 40, Predicate: func(c Context) bool {
				m, ok := c.Event.(event.Mastery)
				return ok && c.Profile.IsMastered(m.Skill)
			}},
		},
		{
			ID: "scholar", Name: "Scholar",
			Description: "Master skills",
			Category:    CategoryMastery,
			Rule:        Tiered{Counter: CounterSkillsMastered, Ladder: ladder([4]int{1, 3, 5, 8}, [4]int{20, 50, 100, 250})},
		},

		// ── Exploration ────────────────────────────────────────────────────

		{
			ID: "new_horizons", Name: "New Horizons",
			Description: "Unlock a new biome",
			Category:    CategoryExploration,
			Rule: Single{Tier: profile.TierBronze, Reward: 15, Predicate: func(c Context) bool {
				// The first unlocked biome is the starter one.
				b, ok := c.Event.(event.BiomeUnlock)
				return ok && c.Profile.HasBiome(b.Biome) && c.Profile.UnlockedBiomes[0] != b.Biome
			}},
		},
		{
			ID: "explorer", Name: "Explorer",
			Description: "Unlock biomes",
			Category:    CategoryExploration,
			Rule:        Tiered{Counter: CounterBiomesUnlocked, Ladder: ladder([4]int{2, 4, 6, 9}, [4]int{15, 40, 80, 200})},
		},

		// ── Collection ─────────────────────────────────────────────────────

		{
			ID: "first_purchase", Name: "Window Shopper",
			Description: "Buy your first item",
			Category:    CategoryCollection,
			Rule: Single{Tier: profile.TierBronze, Reward: 10, Predicate: func(c Context) bool {
				_, ok := c.Event.(event.Purchase)
				return ok
			}},
		},
		{
			ID: "trendsetter", Name: "Trendsetter",
			Description: "Buy an item from the featured biome while the shop spotlights it",
			Category:    CategoryCollection,
			Rule: Single{Tier: profile.TierSilver, Reward: 20, Predicate: func(c Context) bool {
				p, ok := c.Event.(event.Purchase)
				return ok && p.Biome != "" &&
					c.Profile.ShopBiasActive(c.Now) && p.Biome == c.Profile.ShopBiasBiome
			}},
		},
		{
			ID: "legendary_find", Name: "Legendary Find",
			Description: "Buy a legendary item",
			Category:    CategoryCollection,
			Rule: Single{Tier: profile.TierGold, Reward: 75, Predicate: func(c Context) bool {
				p, ok := c.Event.(event.Purchase)
				return ok && p.Tier == event.ItemLegendary
			}},
		},
		{
			ID: "collector", Name: "Collector",
			Description: "Own skins",
			Category:    CategoryCollection,
			Rule:        Tiered{Counter: CounterSkinsOwned, Ladder: ladder([4]int{3, 10, 25, 50}, [4]int{15, 40, 100, 250})},
		},
	}
}

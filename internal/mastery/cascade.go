package mastery

import (
	"time"

	"github.com/mathquest/backend/internal/profile"
)

// Bonuses granted the first time a skill is mastered.
const (
	MasteryXPBonus       = 200
	MasteryCurrencyBonus = 50
)

// Result is the outcome of recording one answer against a skill.
type Result struct {
	Skill string
	Stat  profile.SkillStat
	// NewlyMastered is true only on the first not-mastered to mastered
	// transition for Skill.
	NewlyMastered bool
	XPBonus       int
	CurrencyBonus int
	// World is the world whose primary skill is Skill, if any.
	World *World
}

// Check computes the effect of one answer on p without modifying it.
func (r *Registry) Check(p *profile.Profile, skill string, correct bool, latencyMs float64) Result {
	var prev profile.SkillStat
	if st := p.Stat(skill); st != nil {
		prev = *st
	}
	res := Result{
		Skill: skill,
		Stat:  RecordAttempt(prev, correct, latencyMs),
	}
	if w, ok := r.WorldForSkill(skill); ok {
		res.World = &w
	}
	if !p.IsMastered(skill) && MeetsGate(&res.Stat, r.GateFor(skill)) {
		res.NewlyMastered = true
		res.XPBonus = MasteryXPBonus
		res.CurrencyBonus = MasteryCurrencyBonus
	}
	return res
}

// Apply writes res into p: the updated stat always, and on first mastery
// the mastered flag plus the XP and currency bonuses. It returns the number
// of levels gained. Applying a result for an already-mastered skill never
// grants the bonuses again.
func (res Result) Apply(p *profile.Profile) int {
	st := res.Stat.Clone()
	if p.Skills == nil {
		p.Skills = make(map[string]*profile.SkillStat)
	}
	p.Skills[res.Skill] = &st
	if !res.NewlyMastered || !p.MarkMastered(res.Skill) {
		return 0
	}
	p.Currency += res.CurrencyBonus
	return p.ApplyXP(float64(res.XPBonus))
}

// CheckAndApply records one answer on p and applies any first-time
// mastery. Re-evaluating an already-mastered skill only updates its stat.
func (r *Registry) CheckAndApply(p *profile.Profile, skill string, correct bool, latencyMs float64) Result {
	res := r.Check(p, skill, correct, latencyMs)
	res.Apply(p)
	return res
}

// IsWorldMastered reports whether the primary skill of w passes its gate.
func IsWorldMastered(p *profile.Profile, w World) bool {
	return MeetsGate(p.Stat(w.Skill), w.Gate)
}

// NextUnmastered returns the first world, in curriculum order, whose
// primary skill does not yet satisfy its gate.
func (r *Registry) NextUnmastered(p *profile.Profile) (World, bool) {
	for _, w := range r.worlds {
		if !IsWorldMastered(p, w) {
			return w, true
		}
	}
	return World{}, false
}

// WorldReward describes what ApplyWorldReward changed.
type WorldReward struct {
	WorldID       string    `json:"worldId"`
	Biome         string    `json:"biome"`
	BiomeUnlocked bool      `json:"biomeUnlocked"` // false if it was already unlocked
	BiasUntil     time.Time `json:"biasUntil"`
}

// ApplyWorldReward unlocks the world's reward biome and opens or extends
// the shop bias window toward it. The window end never moves earlier; the
// biased biome always becomes the most recently mastered world's. It
// reports false for an unknown world.
func (r *Registry) ApplyWorldReward(p *profile.Profile, worldID string, now time.Time) (WorldReward, bool) {
	w, ok := r.World(worldID)
	if !ok {
		return WorldReward{}, false
	}
	unlocked := p.UnlockBiome(w.Reward.Biome)

	until := now.Add(time.Duration(w.Reward.BiasDays) * 24 * time.Hour)
	if until.After(p.ShopBiasUntil) {
		p.ShopBiasUntil = until
	}
	p.ShopBiasBiome = w.Reward.Biome

	return WorldReward{
		WorldID:       w.ID,
		Biome:         w.Reward.Biome,
		BiomeUnlocked: unlocked,
		BiasUntil:     p.ShopBiasUntil,
	}, true
}

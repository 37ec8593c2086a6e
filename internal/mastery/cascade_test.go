package mastery

import (
	"testing"
	"time"

	"github.com/mathquest/backend/internal/profile"
)

func newProfile() *profile.Profile {
	return profile.New("p1", "grassland", time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC))
}

// answerN records n answers for skill at a steady latency.
func answerN(r *Registry, p *profile.Profile, skill string, n int, correct bool, latencyMs float64) []Result {
	out := make([]Result, 0, n)
	for range n {
		out = append(out, r.CheckAndApply(p, skill, correct, latencyMs))
	}
	return out
}

func countMastered(results []Result) int {
	n := 0
	for _, r := range results {
		if r.NewlyMastered {
			n++
		}
	}
	return n
}

func TestCheckAndApply_MasteryOnThreshold(t *testing.T) {
	r := MustRegistry(DefaultWorlds())
	p := newProfile()

	results := answerN(r, p, "add_within_10", GateEarly.MinAttempts-1, true, 2000)
	if countMastered(results) != 0 || p.IsMastered("add_within_10") {
		t.Fatal("mastered before reaching the attempt threshold")
	}

	res := r.CheckAndApply(p, "add_within_10", true, 2000)
	if !res.NewlyMastered {
		t.Fatal("expected mastery on the 20th correct answer")
	}
	if res.World == nil || res.World.ID != "w1" {
		t.Errorf("result world = %+v, want w1", res.World)
	}
	if !p.IsMastered("add_within_10") {
		t.Error("skill not marked mastered")
	}
	if p.TotalXP != MasteryXPBonus || p.Currency != MasteryCurrencyBonus {
		t.Errorf("xp/currency = %d/%d, want %d/%d", p.TotalXP, p.Currency, MasteryXPBonus, MasteryCurrencyBonus)
	}
}

func TestCheckAndApply_Idempotent(t *testing.T) {
	r := MustRegistry(DefaultWorlds())
	p := newProfile()

	results := answerN(r, p, "add_within_10", 40, true, 2000)
	if got := countMastered(results); got != 1 {
		t.Fatalf("mastery granted %d times, want exactly once", got)
	}
	if p.Currency != MasteryCurrencyBonus {
		t.Errorf("Currency = %d, want a single bonus of %d", p.Currency, MasteryCurrencyBonus)
	}
	if p.TotalXP != MasteryXPBonus {
		t.Errorf("TotalXP = %d, want a single bonus of %d", p.TotalXP, MasteryXPBonus)
	}
	if len(p.Mastered) != 1 {
		t.Errorf("Mastered = %v", p.Mastered)
	}
	if got := p.Stat("add_within_10").Attempts; got != 40 {
		t.Errorf("Attempts = %d, want 40; stats keep updating after mastery", got)
	}
}

func TestResultApply_Twice(t *testing.T) {
	r := MustRegistry(DefaultWorlds())
	p := newProfile()
	answerN(r, p, "add_within_10", GateEarly.MinAttempts-1, true, 2000)

	res := r.Check(p, "add_within_10", true, 2000)
	if !res.NewlyMastered {
		t.Fatal("expected mastery")
	}
	res.Apply(p)
	res.Apply(p)
	if p.Currency != MasteryCurrencyBonus {
		t.Errorf("Currency = %d after applying the same result twice", p.Currency)
	}
}

func TestCheck_DoesNotMutate(t *testing.T) {
	r := MustRegistry(DefaultWorlds())
	p := newProfile()
	r.CheckAndApply(p, "add_within_10", true, 1000)

	before := p.Clone()
	r.Check(p, "add_within_10", false, 9000)
	if p.Stat("add_within_10").Attempts != before.Stat("add_within_10").Attempts {
		t.Error("Check modified the profile")
	}
}

func TestCheckAndApply_SlowAnswersBlockMastery(t *testing.T) {
	r := MustRegistry(DefaultWorlds())
	p := newProfile()

	results := answerN(r, p, "add_within_10", 30, true, 7000)
	if countMastered(results) != 0 {
		t.Error("mastered despite average above the latency ceiling")
	}
}

func TestCheckAndApply_UnclaimedSkillUsesEarlyGate(t *testing.T) {
	r := MustRegistry(DefaultWorlds())
	p := newProfile()

	results := answerN(r, p, "bonus_round", GateEarly.MinAttempts, true, 1000)
	if countMastered(results) != 1 {
		t.Fatal("unclaimed skill should master under the early gate")
	}
	if results[len(results)-1].World != nil {
		t.Error("unclaimed skill should report no world")
	}
}

func TestNextUnmastered(t *testing.T) {
	r := MustRegistry(DefaultWorlds())
	p := newProfile()

	w, ok := r.NextUnmastered(p)
	if !ok || w.ID != "w1" {
		t.Fatalf("NextUnmastered on new profile = %+v, %v; want w1", w, ok)
	}

	answerN(r, p, "add_within_10", 20, true, 1500)
	w, _ = r.NextUnmastered(p)
	if w.ID != "w2" {
		t.Errorf("NextUnmastered = %s, want w2", w.ID)
	}

	// Mastering a later world out of order does not skip the chain.
	answerN(r, p, "add_within_20", 20, true, 1500)
	w, _ = r.NextUnmastered(p)
	if w.ID != "w2" {
		t.Errorf("NextUnmastered = %s, want w2", w.ID)
	}
}

func TestNextUnmastered_AllDone(t *testing.T) {
	worlds := []World{{ID: "only", Position: 1, Skill: "s", Gate: Gate{MinAttempts: 1, MinAccuracy: 1, MaxAvgMs: 5000}, Reward: Reward{Biome: "b"}}}
	r := MustRegistry(worlds)
	p := newProfile()
	r.CheckAndApply(p, "s", true, 1000)

	if w, ok := r.NextUnmastered(p); ok {
		t.Errorf("NextUnmastered = %+v, want none", w)
	}
}

func TestApplyWorldReward(t *testing.T) {
	r := MustRegistry(DefaultWorlds())
	p := newProfile()
	now := time.Date(2026, 5, 2, 8, 0, 0, 0, time.UTC)

	rw, ok := r.ApplyWorldReward(p, "w1", now)
	if !ok {
		t.Fatal("ApplyWorldReward(w1) not applied")
	}
	if !rw.BiomeUnlocked || !p.HasBiome("meadow") {
		t.Error("meadow not unlocked")
	}
	wantUntil := now.Add(3 * 24 * time.Hour)
	if !p.ShopBiasUntil.Equal(wantUntil) || p.ShopBiasBiome != "meadow" {
		t.Errorf("bias = %v/%q, want %v/meadow", p.ShopBiasUntil, p.ShopBiasBiome, wantUntil)
	}

	// Second application does not duplicate the biome.
	rw, _ = r.ApplyWorldReward(p, "w1", now)
	if rw.BiomeUnlocked {
		t.Error("biome reported unlocked twice")
	}
	n := 0
	for _, b := range p.UnlockedBiomes {
		if b == "meadow" {
			n++
		}
	}
	if n != 1 {
		t.Errorf("meadow appears %d times", n)
	}
}

func TestApplyWorldReward_UnknownWorld(t *testing.T) {
	r := MustRegistry(DefaultWorlds())
	p := newProfile()
	before := len(p.UnlockedBiomes)
	if _, ok := r.ApplyWorldReward(p, "w99", time.Now()); ok {
		t.Error("unknown world should not apply")
	}
	if len(p.UnlockedBiomes) != before || p.ShopBiasBiome != "" {
		t.Error("unknown world modified the profile")
	}
}

func TestApplyWorldReward_BiasOnlyExtends(t *testing.T) {
	worlds := []World{
		{ID: "long", Position: 1, Skill: "s1", Gate: GateEarly, Reward: Reward{Biome: "b1", BiasDays: 7}},
		{ID: "short", Position: 2, Skill: "s2", Gate: GateEarly, Reward: Reward{Biome: "b2", BiasDays: 2}},
		{ID: "later", Position: 3, Skill: "s3", Gate: GateEarly, Reward: Reward{Biome: "b3", BiasDays: 7}},
	}
	r := MustRegistry(worlds)
	p := newProfile()
	t0 := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	r.ApplyWorldReward(p, "long", t0)
	firstUntil := p.ShopBiasUntil

	// A shorter window opened a day later must not shorten the bias.
	r.ApplyWorldReward(p, "short", t0.Add(24*time.Hour))
	if !p.ShopBiasUntil.Equal(firstUntil) {
		t.Errorf("bias shortened from %v to %v", firstUntil, p.ShopBiasUntil)
	}
	if p.ShopBiasBiome != "b2" {
		t.Errorf("biased biome = %q, want most recent world's b2", p.ShopBiasBiome)
	}

	// A window ending later extends it.
	r.ApplyWorldReward(p, "later", t0.Add(3*24*time.Hour))
	if want := t0.Add(10 * 24 * time.Hour); !p.ShopBiasUntil.Equal(want) {
		t.Errorf("bias until = %v, want %v", p.ShopBiasUntil, want)
	}
}

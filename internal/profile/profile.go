package profile

import (
	"math"
	"slices"
	"time"

	"github.com/mathquest/backend/internal/progress"
)

// profileVersion is bumped when the schema changes. Load can use it to
// apply migrations in the future.
const profileVersion = 1

// Profile is the persistent aggregate for a single player. Everything the
// mastery and achievement engines know about a player lives here.
type Profile struct {
	Version int    `json:"version"`
	ID      string `json:"id"`

	TotalXP  int `json:"totalXp"`
	Level    int `json:"level"` // cached; always progress.FromTotalXP(TotalXP).Level
	Currency int `json:"currency"`

	// Append-only sets. Insertion order is preserved so collaborators can
	// ask for the most recent entry.
	Mastered       []string `json:"mastered"`
	UnlockedBiomes []string `json:"unlockedBiomes"`
	OwnedSkins     []string `json:"ownedSkins"`

	Skills map[string]*SkillStat `json:"skills"`

	// Shop bias window. ShopBiasUntil only ever moves later.
	ShopBiasUntil time.Time `json:"shopBiasUntil,omitzero"`
	ShopBiasBiome string    `json:"shopBiasBiome,omitempty"`

	Achievements AchievementState `json:"achievements"`

	CreatedAt   time.Time `json:"createdAt"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// SkillStat is the running performance record for one skill.
type SkillStat struct {
	Attempts     int     `json:"attempts"`
	Correct      int     `json:"correct"`
	LatencySumMs float64 `json:"latencySumMs"`
	// Recent holds the most recent raw latencies, oldest first. It is
	// persisted so smoothing continues across save/load.
	Recent        []float64 `json:"recent"`
	SmoothedAvgMs float64   `json:"smoothedAvgMs"`
}

// Accuracy returns Correct/Attempts, or 0 when there are no attempts.
func (s *SkillStat) Accuracy() float64 {
	if s == nil || s.Attempts == 0 {
		return 0
	}
	return float64(s.Correct) / float64(s.Attempts)
}

// Clone returns a deep copy of the stat.
func (s SkillStat) Clone() SkillStat {
	s.Recent = slices.Clone(s.Recent)
	return s
}

// New returns an empty profile with initialized maps, the starter biome
// unlocked, and the current schema version.
func New(id, starterBiome string, now time.Time) *Profile {
	p := &Profile{
		Version:   profileVersion,
		ID:        id,
		Level:     1,
		CreatedAt: now.UTC(),
	}
	p.initMaps()
	if starterBiome != "" {
		p.UnlockedBiomes = append(p.UnlockedBiomes, starterBiome)
	}
	return p
}

// IsMastered reports whether skill has been marked mastered.
func (p *Profile) IsMastered(skill string) bool {
	return slices.Contains(p.Mastered, skill)
}

// MarkMastered appends skill to the mastered set. It reports false when
// the skill was already mastered.
func (p *Profile) MarkMastered(skill string) bool {
	if p.IsMastered(skill) {
		return false
	}
	p.Mastered = append(p.Mastered, skill)
	return true
}

// HasBiome reports whether biome is unlocked.
func (p *Profile) HasBiome(biome string) bool {
	return slices.Contains(p.UnlockedBiomes, biome)
}

// UnlockBiome appends biome to the unlocked set. It reports false when the
// biome was already unlocked.
func (p *Profile) UnlockBiome(biome string) bool {
	if p.HasBiome(biome) {
		return false
	}
	p.UnlockedBiomes = append(p.UnlockedBiomes, biome)
	return true
}

// AddSkin records ownership of a skin. Duplicates are ignored.
func (p *Profile) AddSkin(skin string) bool {
	if slices.Contains(p.OwnedSkins, skin) {
		return false
	}
	p.OwnedSkins = append(p.OwnedSkins, skin)
	return true
}

// ApplyXP rounds amount to the nearest integer, adds it to TotalXP and
// recomputes the cached level. It returns the number of levels gained.
// Negative amounts are not supported.
func (p *Profile) ApplyXP(amount float64) int {
	before := p.Level
	p.TotalXP += int(math.Round(amount))
	p.Level = progress.FromTotalXP(p.TotalXP).Level
	return max(p.Level-before, 0)
}

// Progress returns the display triple for the current XP total.
func (p *Profile) Progress() progress.Level {
	return progress.FromTotalXP(p.TotalXP)
}

// ShopBiasActive reports whether the shop bias window is open at now.
func (p *Profile) ShopBiasActive(now time.Time) bool {
	return p.ShopBiasBiome != "" && now.Before(p.ShopBiasUntil)
}

// Stat returns the stat for skill, or nil if the skill was never attempted.
func (p *Profile) Stat(skill string) *SkillStat {
	return p.Skills[skill]
}

// initMaps ensures all map fields are non-nil after deserialization.
func (p *Profile) initMaps() {
	if p.Skills == nil {
		p.Skills = make(map[string]*SkillStat)
	}
	p.Achievements.Init()
	if p.Level < 1 {
		p.Level = progress.FromTotalXP(p.TotalXP).Level
	}
}

// Clone returns a deep copy of the profile with all maps and slices duplicated.
func (p *Profile) Clone() *Profile {
	cp := *p
	cp.Mastered = slices.Clone(p.Mastered)
	cp.UnlockedBiomes = slices.Clone(p.UnlockedBiomes)
	cp.OwnedSkins = slices.Clone(p.OwnedSkins)
	cp.Skills = make(map[string]*SkillStat, len(p.Skills))
	for k, v := range p.Skills {
		if v == nil {
			continue
		}
		st := v.Clone()
		cp.Skills[k] = &st
	}
	cp.Achievements = p.Achievements.Clone()
	return &cp
}

package mastery

import (
	"errors"
	"fmt"
	"slices"
)

// ErrDuplicateSkill is returned when two worlds claim the same primary skill.
var ErrDuplicateSkill = errors.New("skill claimed by more than one world")

// ErrDuplicateWorld is returned when two worlds share an ID or position.
var ErrDuplicateWorld = errors.New("duplicate world")

// ErrInvalidWorld is returned for a world definition missing required fields.
var ErrInvalidWorld = errors.New("invalid world")

// ErrInvalidGate is returned for a gate whose thresholds cannot be satisfied
// meaningfully.
var ErrInvalidGate = errors.New("invalid gate")

// Reward is granted the first time a world's primary skill is mastered.
type Reward struct {
	Biome    string `json:"biome" yaml:"biome"`
	BiasDays int    `json:"biasDays" yaml:"bias_days"`
}

// World is one stage of the linear curriculum.
type World struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Position int    `json:"position"`
	Skill    string `json:"skill"`
	Gate     Gate   `json:"gate"`
	Reward   Reward `json:"reward"`
}

// Registry is the validated, ordered world list. It is read-only after
// construction and safe for concurrent use.
type Registry struct {
	worlds  []World
	bySkill map[string]int // skill -> index into worlds
	byID    map[string]int
	byBiome map[string]int
}

// NewRegistry validates worlds and returns them as a registry ordered by
// Position. Content mistakes, such as two worlds claiming one skill, are
// reported here rather than at evaluation time.
func NewRegistry(worlds []World) (*Registry, error) {
	sorted := slices.Clone(worlds)
	slices.SortStableFunc(sorted, func(a, b World) int { return a.Position - b.Position })

	r := &Registry{
		worlds:  sorted,
		bySkill: make(map[string]int, len(sorted)),
		byID:    make(map[string]int, len(sorted)),
		byBiome: make(map[string]int, len(sorted)),
	}
	for i, w := range sorted {
		if w.ID == "" || w.Skill == "" || w.Reward.Biome == "" {
			return nil, fmt.Errorf("%w: position %d needs id, skill and reward biome", ErrInvalidWorld, w.Position)
		}
		if w.Reward.BiasDays < 0 {
			return nil, fmt.Errorf("%w: %s has negative bias days", ErrInvalidWorld, w.ID)
		}
		if err := w.Gate.validate(); err != nil {
			return nil, fmt.Errorf("world %s: %w", w.ID, err)
		}
		if _, dup := r.byID[w.ID]; dup {
			return nil, fmt.Errorf("%w: id %s", ErrDuplicateWorld, w.ID)
		}
		if i > 0 && sorted[i-1].Position == w.Position {
			return nil, fmt.Errorf("%w: %s and %s share position %d", ErrDuplicateWorld, sorted[i-1].ID, w.ID, w.Position)
		}
		if other, dup := r.bySkill[w.Skill]; dup {
			return nil, fmt.Errorf("%w: %s claimed by %s and %s", ErrDuplicateSkill, w.Skill, sorted[other].ID, w.ID)
		}
		if other, dup := r.byBiome[w.Reward.Biome]; dup {
			return nil, fmt.Errorf("%w: biome %s rewarded by %s and %s", ErrDuplicateWorld, w.Reward.Biome, sorted[other].ID, w.ID)
		}
		r.byID[w.ID] = i
		r.bySkill[w.Skill] = i
		r.byBiome[w.Reward.Biome] = i
	}
	return r, nil
}

// MustRegistry is NewRegistry for built-in content; it panics on error.
func MustRegistry(worlds []World) *Registry {
	r, err := NewRegistry(worlds)
	if err != nil {
		panic(err)
	}
	return r
}

// Worlds returns a copy of the ordered world list.
func (r *Registry) Worlds() []World {
	return slices.Clone(r.worlds)
}

// World looks up a world by ID.
func (r *Registry) World(id string) (World, bool) {
	i, ok := r.byID[id]
	if !ok {
		return World{}, false
	}
	return r.worlds[i], true
}

// WorldForSkill returns the world whose primary skill is skill.
func (r *Registry) WorldForSkill(skill string) (World, bool) {
	i, ok := r.bySkill[skill]
	if !ok {
		return World{}, false
	}
	return r.worlds[i], true
}

// WorldForBiome returns the world whose reward is biome.
func (r *Registry) WorldForBiome(biome string) (World, bool) {
	i, ok := r.byBiome[biome]
	if !ok {
		return World{}, false
	}
	return r.worlds[i], true
}

// GateFor returns the gate of the world that claims skill, or the loosest
// predefined gate when no world does.
func (r *Registry) GateFor(skill string) Gate {
	if w, ok := r.WorldForSkill(skill); ok {
		return w.Gate
	}
	return GateEarly
}

// DefaultWorlds is the built-in curriculum used when no content file is
// configured.
func DefaultWorlds() []World {
	return []World{
		{ID: "w1", Name: "Counting Meadow", Position: 1, Skill: "add_within_10", Gate: GateEarly, Reward: Reward{Biome: "meadow", BiasDays: 3}},
		{ID: "w2", Name: "Take-Away Beach", Position: 2, Skill: "sub_within_10", Gate: GateEarly, Reward: Reward{Biome: "beach", BiasDays: 3}},
		{ID: "w3", Name: "Number Forest", Position: 3, Skill: "add_within_20", Gate: GateEarly, Reward: Reward{Biome: "forest", BiasDays: 3}},
		{ID: "w4", Name: "Dune Desert", Position: 4, Skill: "sub_within_20", Gate: GateMid, Reward: Reward{Biome: "desert", BiasDays: 4}},
		{ID: "w5", Name: "Times Tundra", Position: 5, Skill: "mul_2_5_10", Gate: GateMid, Reward: Reward{Biome: "tundra", BiasDays: 4}},
		{ID: "w6", Name: "Volcano Tables", Position: 6, Skill: "mul_all", Gate: GateMid, Reward: Reward{Biome: "volcano", BiasDays: 5}},
		{ID: "w7", Name: "Sharing Reef", Position: 7, Skill: "div_all", Gate: GateLate, Reward: Reward{Biome: "reef", BiasDays: 5}},
		{ID: "w8", Name: "Sky Summit", Position: 8, Skill: "mixed_ops", Gate: GateLate, Reward: Reward{Biome: "sky", BiasDays: 7}},
	}
}

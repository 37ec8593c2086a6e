package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mathquest/backend/internal/mastery"
)

// worldFile is the on-disk shape of a world list:
//
//	worlds:
//	  - id: w1
//	    name: Counting Meadow
//	    position: 1
//	    skill: add_within_10
//	    band: early
//	    reward: {biome: meadow, bias_days: 3}
//
// A world may set gate instead of band to use custom thresholds.
type worldFile struct {
	Worlds []worldEntry `yaml:"worlds"`
}

type worldEntry struct {
	ID       string         `yaml:"id"`
	Name     string         `yaml:"name"`
	Position int            `yaml:"position"`
	Skill    string         `yaml:"skill"`
	Band     mastery.Band   `yaml:"band"`
	Gate     *mastery.Gate  `yaml:"gate"`
	Reward   mastery.Reward `yaml:"reward"`
}

// LoadWorlds reads a world list and validates it into a registry.
func LoadWorlds(path string) (*mastery.Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseWorlds(data)
}

// ParseWorlds decodes and validates a YAML world list.
func ParseWorlds(data []byte) (*mastery.Registry, error) {
	var f worldFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing worlds: %w", err)
	}
	if len(f.Worlds) == 0 {
		return nil, fmt.Errorf("%w: no worlds defined", mastery.ErrInvalidWorld)
	}

	worlds := make([]mastery.World, 0, len(f.Worlds))
	for _, e := range f.Worlds {
		gate, err := e.gate()
		if err != nil {
			return nil, fmt.Errorf("world %q: %w", e.ID, err)
		}
		worlds = append(worlds, mastery.World{
			ID:       e.ID,
			Name:     e.Name,
			Position: e.Position,
			Skill:    e.Skill,
			Gate:     gate,
			Reward:   e.Reward,
		})
	}
	return mastery.NewRegistry(worlds)
}

func (e worldEntry) gate() (mastery.Gate, error) {
	switch {
	case e.Gate != nil && e.Band != "":
		return mastery.Gate{}, fmt.Errorf("%w: set band or gate, not both", mastery.ErrInvalidGate)
	case e.Gate != nil:
		return *e.Gate, nil
	case e.Band == "":
		return mastery.GateEarly, nil
	default:
		return mastery.GateForBand(e.Band)
	}
}

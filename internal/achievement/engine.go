// Package achievement evaluates gameplay events against a static badge
// catalogue. Badges are either single-shot or tiered; tiered badges climb
// bronze, silver, gold and diamond as a named counter grows.
package achievement

import (
	"errors"
	"fmt"
	"time"

	"github.com/mathquest/backend/internal/event"
	"github.com/mathquest/backend/internal/profile"
)

var (
	// ErrInvalidBadge is returned by NewEngine for a malformed badge.
	ErrInvalidBadge = errors.New("invalid badge")
	// ErrDuplicateBadge is returned by NewEngine when two badges share an ID.
	ErrDuplicateBadge = errors.New("duplicate badge")
)

// Award is one badge or tier unlocked by an evaluation.
type Award struct {
	ID     string       `json:"id"`
	Name   string       `json:"name"`
	Tier   profile.Tier `json:"tier,omitempty"`
	Reward int          `json:"reward"`
}

// Result is the outcome of Evaluate. State is a fresh copy; the profile
// passed to Evaluate is untouched until Apply.
type Result struct {
	Unlocked []Award
	State    profile.AchievementState
}

// Reward is the total currency across all awards.
func (r Result) Reward() int {
	total := 0
	for _, a := range r.Unlocked {
		total += a.Reward
	}
	return total
}

// Apply stores the new achievement state on p and credits the rewards.
// Each Result must be applied at most once.
func (r Result) Apply(p *profile.Profile) int {
	p.Achievements = r.State
	total := r.Reward()
	p.Currency += total
	return total
}

// Engine evaluates events against a validated catalogue.
type Engine struct {
	badges []Badge
	byID   map[string]int
}

// NewEngine validates badges and returns an engine over them. Badge order
// is preserved in evaluation results.
func NewEngine(badges []Badge) (*Engine, error) {
	e := &Engine{
		badges: make([]Badge, len(badges)),
		byID:   make(map[string]int, len(badges)),
	}
	copy(e.badges, badges)

	for i, b := range e.badges {
		if b.ID == "" {
			return nil, fmt.Errorf("%w: badge %d has no id", ErrInvalidBadge, i)
		}
		if _, dup := e.byID[b.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateBadge, b.ID)
		}
		if err := validateRule(b.Rule); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidBadge, b.ID, err)
		}
		e.byID[b.ID] = i
	}
	return e, nil
}

// MustEngine is NewEngine for built-in catalogues; it panics on error.
func MustEngine(badges []Badge) *Engine {
	e, err := NewEngine(badges)
	if err != nil {
		panic(err)
	}
	return e
}

func validateRule(r Rule) error {
	switch rule := r.(type) {
	case Single:
		if rule.Predicate == nil {
			return errors.New("single-shot badge needs a predicate")
		}
		if rule.Reward < 0 {
			return errors.New("negative reward")
		}
	case Tiered:
		if !knownCounters[rule.Counter] {
			return fmt.Errorf("unknown counter %q", rule.Counter)
		}
		if len(rule.Ladder) == 0 {
			return errors.New("empty ladder")
		}
		prev := Step{}
		for i, s := range rule.Ladder {
			if s.Tier.Rank() == 0 {
				return fmt.Errorf("step %d: unknown tier %q", i, s.Tier)
			}
			if s.Goal <= 0 || s.Reward < 0 {
				return fmt.Errorf("step %d: goal must be positive and reward non-negative", i)
			}
			if i > 0 && (s.Tier.Rank() <= prev.Tier.Rank() || s.Goal <= prev.Goal) {
				return fmt.Errorf("step %d: tiers and goals must strictly increase", i)
			}
			prev = s
		}
	case nil:
		return errors.New("missing rule")
	default:
		return fmt.Errorf("unsupported rule %T", r)
	}
	return nil
}

// Badges returns the catalogue in evaluation order.
func (e *Engine) Badges() []Badge {
	out := make([]Badge, len(e.badges))
	copy(out, e.badges)
	return out
}

// Badge looks up a badge by ID.
func (e *Engine) Badge(id string) (Badge, bool) {
	i, ok := e.byID[id]
	if !ok {
		return Badge{}, false
	}
	return e.badges[i], true
}

// Evaluate updates counters for ev and returns every badge or tier that
// becomes newly unlocked. Single-shot badges are reported before tiered
// ones. p must already reflect any mastery or world changes caused by ev.
func (e *Engine) Evaluate(p *profile.Profile, ev event.Event, now time.Time) Result {
	state := p.Achievements.Clone()
	updateCounters(state.Counters, p, ev)

	ctx := Context{Profile: p, Event: ev, Now: now, Counters: state.Counters}
	var unlocked []Award

	for _, b := range e.badges {
		rule, ok := b.Rule.(Single)
		if !ok || state.IsUnlocked(b.ID) {
			continue
		}
		if !rule.Predicate(ctx) {
			continue
		}
		state.Unlocked[b.ID] = profile.Unlock{At: now, Tier: rule.Tier}
		unlocked = append(unlocked, Award{ID: b.ID, Name: b.Name, Tier: rule.Tier, Reward: rule.Reward})
	}

	for _, b := range e.badges {
		rule, ok := b.Rule.(Tiered)
		if !ok {
			continue
		}
		step, reached := highestStep(rule.Ladder, state.Counters[rule.Counter])
		if !reached {
			continue
		}
		prev, had := state.Unlocked[b.ID]
		if had && step.Tier.Rank() <= prev.Tier.Rank() {
			continue
		}
		// Only the highest newly reached tier is recorded and rewarded.
		state.Unlocked[b.ID] = profile.Unlock{At: now, Tier: step.Tier}
		unlocked = append(unlocked, Award{ID: b.ID, Name: b.Name, Tier: step.Tier, Reward: step.Reward})
	}

	return Result{Unlocked: unlocked, State: state}
}

// highestStep returns the highest rung whose goal value has reached.
func highestStep(ladder []Step, value int) (Step, bool) {
	var best Step
	found := false
	for _, s := range ladder {
		if value >= s.Goal && (!found || s.Tier.Rank() > best.Tier.Rank()) {
			best, found = s, true
		}
	}
	return best, found
}

// nextStep returns the lowest rung ranked above current.
func nextStep(ladder []Step, current profile.Tier) (Step, bool) {
	for _, s := range ladder {
		if s.Tier.Rank() > current.Rank() {
			return s, true
		}
	}
	return Step{}, false
}

// BadgeProgress is a read model of one badge for a player.
type BadgeProgress struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Category    Category     `json:"category"`
	Tiered      bool         `json:"tiered"`
	Unlocked    bool         `json:"unlocked"`
	Tier        profile.Tier `json:"tier,omitempty"`
	UnlockedAt  *time.Time   `json:"unlockedAt,omitempty"`
	Current     int          `json:"current,omitempty"`
	NextTier    profile.Tier `json:"nextTier,omitempty"`
	NextGoal    int          `json:"nextGoal,omitempty"`
}

// Progress reports every badge in catalogue order with the player's
// standing. It does not modify p.
func (e *Engine) Progress(p *profile.Profile) []BadgeProgress {
	out := make([]BadgeProgress, 0, len(e.badges))
	for _, b := range e.badges {
		bp := BadgeProgress{
			ID:          b.ID,
			Name:        b.Name,
			Description: b.Description,
			Category:    b.Category,
		}
		if u, ok := p.Achievements.Unlocked[b.ID]; ok {
			at := u.At
			bp.Unlocked = true
			bp.Tier = u.Tier
			bp.UnlockedAt = &at
		}
		if rule, ok := b.Rule.(Tiered); ok {
			bp.Tiered = true
			bp.Current = p.Achievements.Counters[rule.Counter]
			if next, ok := nextStep(rule.Ladder, bp.Tier); ok {
				bp.NextTier = next.Tier
				bp.NextGoal = next.Goal
			}
		}
		out = append(out, bp)
	}
	return out
}

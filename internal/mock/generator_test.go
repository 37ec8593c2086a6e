package mock

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/mathquest/backend/internal/achievement"
	"github.com/mathquest/backend/internal/event"
	"github.com/mathquest/backend/internal/mastery"
	"github.com/mathquest/backend/internal/profile"
	"github.com/mathquest/backend/internal/tracker"
)

// fakeSubmitter records events and reports a mastery after masterAfter
// answers for the same skill.
type fakeSubmitter struct {
	mu          sync.Mutex
	created     int
	events      []event.Event
	perSkill    map[string]int
	masterAfter int
}

func newFakeSubmitter(masterAfter int) *fakeSubmitter {
	return &fakeSubmitter{perSkill: make(map[string]int), masterAfter: masterAfter}
}

func (f *fakeSubmitter) Create() (*profile.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created++
	return profile.New("player-"+string(rune('a'+f.created)), "grassland", time.Now()), nil
}

func (f *fakeSubmitter) Submit(_ context.Context, playerID string, ev event.Event) (tracker.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)

	out := tracker.Outcome{PlayerID: playerID, Event: ev.Type()}
	if a, ok := ev.(event.Answer); ok {
		f.perSkill[a.Skill]++
		if f.masterAfter > 0 && f.perSkill[a.Skill] == f.masterAfter {
			out.Mastered = &tracker.Mastered{Skill: a.Skill}
		}
	}
	return out, nil
}

func (f *fakeSubmitter) count(typ event.Type) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, ev := range f.events {
		if ev.Type() == typ {
			n++
		}
	}
	return n
}

func TestGenerator_StartCreatesPlayers(t *testing.T) {
	sub := newFakeSubmitter(0)
	gen := NewGenerator(sub, []string{"add_within_10"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := gen.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if sub.created != len(gen.players) {
		t.Errorf("created %d players, want %d", sub.created, len(gen.players))
	}
	for _, mp := range gen.players {
		if mp.id == "" {
			t.Errorf("player %s has no id", mp.name)
		}
	}
}

func TestGenerator_StartWithoutSkills(t *testing.T) {
	gen := NewGenerator(newFakeSubmitter(0), nil)
	if err := gen.Start(context.Background()); err == nil {
		t.Fatal("expected error with no skills")
	}
}

func TestGenerator_SubmitsOnTick(t *testing.T) {
	sub := newFakeSubmitter(0)
	gen := NewGenerator(sub, []string{"add_within_10"})
	gen.tick = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := gen.Start(ctx); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if sub.count(event.TypeAnswer) >= len(gen.players) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("no answers submitted after ticking; got %d", sub.count(event.TypeAnswer))
}

func TestGenerator_SessionEnd(t *testing.T) {
	sub := newFakeSubmitter(0)
	gen := NewGenerator(sub, []string{"add_within_10"})
	gen.rng = rand.New(rand.NewSource(1))
	mp := &mockPlayer{id: "p", name: "p", pattern: "steady", sessionLen: 5}

	for tick := 1; tick <= 5; tick++ {
		if err := gen.step(context.Background(), mp, tick); err != nil {
			t.Fatal(err)
		}
	}

	if got := sub.count(event.TypeSessionEnd); got != 1 {
		t.Fatalf("session ends = %d, want 1", got)
	}
	end := sub.events[len(sub.events)-1].(event.SessionEnd)
	if end.Attempts != 5 || end.Correct > end.Attempts || end.BestStreak > end.Correct {
		t.Errorf("session end = %+v", end)
	}
	if mp.attempts != 0 || mp.streak != 0 {
		t.Errorf("session counters not reset: %+v", mp)
	}
}

func TestGenerator_AdvancesSkillOnMastery(t *testing.T) {
	sub := newFakeSubmitter(3)
	gen := NewGenerator(sub, []string{"add_within_10", "sub_within_10"})
	gen.rng = rand.New(rand.NewSource(1))
	mp := &mockPlayer{id: "p", name: "p", pattern: "speedy", sessionLen: 100}

	for tick := 1; tick <= 6; tick++ {
		if err := gen.step(context.Background(), mp, tick); err != nil {
			t.Fatal(err)
		}
	}

	if !mp.done {
		t.Errorf("player should be done after mastering every skill; skillIdx = %d", mp.skillIdx)
	}
	if got := sub.count(event.TypeSessionEnd); got != 1 {
		t.Errorf("session ends = %d, want one when the curriculum is finished", got)
	}

	before := len(sub.events)
	gen.step(context.Background(), mp, 7)
	if len(sub.events) != before {
		t.Error("finished player kept answering")
	}
}

func TestAnswer_Patterns(t *testing.T) {
	gen := NewGenerator(newFakeSubmitter(0), []string{"add_within_10"})
	gen.rng = rand.New(rand.NewSource(7))

	tests := []struct {
		pattern      string
		tick         int
		minMs, maxMs float64
	}{
		{"steady", 3, 1700, 3300},
		{"speedy", 3, 700, 1500},
		{"struggling", 3, 4500, 9500},
		{"streaky", 3, 1500, 2100},
		{"streaky", 20, 3500, 6500},
		{"methodical", 0, 3700, 4300},
	}
	for _, tt := range tests {
		mp := &mockPlayer{pattern: tt.pattern}
		for range 50 {
			a := gen.answer(mp, tt.tick)
			if a.LatencyMs < tt.minMs || a.LatencyMs > tt.maxMs {
				t.Errorf("%s tick %d: latency %v outside [%v, %v]", tt.pattern, tt.tick, a.LatencyMs, tt.minMs, tt.maxMs)
				break
			}
			if a.Skill != "add_within_10" {
				t.Errorf("skill = %q", a.Skill)
			}
			if a.Correct != (a.Streak > 0) {
				t.Errorf("%s: correct=%v with streak %d", tt.pattern, a.Correct, a.Streak)
			}
		}
	}
}

func TestGenerator_MastersAgainstTracker(t *testing.T) {
	tr, err := tracker.New(
		profile.NewStore(t.TempDir()),
		mastery.MustRegistry(mastery.DefaultWorlds()),
		achievement.MustEngine(achievement.DefaultCatalogue()),
		tracker.Options{StarterBiome: "grassland"},
	)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		tr.Run(ctx)
		close(done)
	}()
	defer func() {
		cancel()
		<-done
	}()

	gen := NewGenerator(tr, []string{"add_within_10", "sub_within_10"})
	gen.rng = rand.New(rand.NewSource(42))
	p, err := tr.Create()
	if err != nil {
		t.Fatal(err)
	}
	mp := &mockPlayer{id: p.ID, name: "sofia", pattern: "speedy", sessionLen: 25}

	for tick := 1; tick <= 500 && mp.skillIdx == 0; tick++ {
		if err := gen.step(ctx, mp, tick); err != nil {
			t.Fatalf("step %d: %v", tick, err)
		}
	}

	got, err := tr.Profile(p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.IsMastered("add_within_10") {
		t.Fatalf("add_within_10 not mastered; stat = %+v", got.Skills["add_within_10"])
	}
	if !got.HasBiome("meadow") {
		t.Error("mastering w1 should unlock meadow")
	}
	if mp.skillIdx != 1 {
		t.Errorf("skillIdx = %d, want 1", mp.skillIdx)
	}
}

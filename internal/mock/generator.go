package mock

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"math/rand"
	"time"

	"github.com/mathquest/backend/internal/event"
	"github.com/mathquest/backend/internal/profile"
	"github.com/mathquest/backend/internal/tracker"
)

// Submitter is the slice of the tracker the generator drives.
type Submitter interface {
	Create() (*profile.Profile, error)
	Submit(ctx context.Context, playerID string, ev event.Event) (tracker.Outcome, error)
}

type mockPlayer struct {
	id       string
	name     string
	pattern  string
	skillIdx int
	done     bool

	// Current session.
	attempts   int
	correct    int
	streak     int
	bestStreak int
	fast       int
	veryFast   int
	sessionLen int
}

const (
	defaultTick = 500 * time.Millisecond
	fastMs      = 3000
	veryFastMs  = 1500
)

// Generator plays a handful of simulated children through the curriculum
// so the server has live traffic without a game client.
type Generator struct {
	sub     Submitter
	skills  []string
	players []*mockPlayer
	tick    time.Duration
	rng     *rand.Rand
}

// NewGenerator creates a generator that practises skills in order.
func NewGenerator(sub Submitter, skills []string) *Generator {
	return &Generator{
		sub:    sub,
		skills: skills,
		tick:   defaultTick,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Start creates the simulated players and begins answering in the
// background until ctx is cancelled.
func (g *Generator) Start(ctx context.Context) error {
	if len(g.skills) == 0 {
		return errors.New("mock: no skills to practise")
	}

	g.players = []*mockPlayer{
		{name: "steady-sam", pattern: "steady", sessionLen: 20},
		{name: "speedy-sofia", pattern: "speedy", sessionLen: 25},
		{name: "struggling-theo", pattern: "struggling", sessionLen: 15},
		{name: "streaky-mia", pattern: "streaky", sessionLen: 30},
		{name: "methodical-noah", pattern: "methodical", sessionLen: 20},
	}
	for _, mp := range g.players {
		p, err := g.sub.Create()
		if err != nil {
			return fmt.Errorf("creating mock player %s: %w", mp.name, err)
		}
		mp.id = p.ID
		log.Printf("Mock player %s is %s", mp.name, mp.id)
	}

	go g.run(ctx)
	return nil
}

func (g *Generator) run(ctx context.Context) {
	ticker := time.NewTicker(g.tick)
	defer ticker.Stop()

	tick := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tick++
			for _, mp := range g.players {
				if err := g.step(ctx, mp, tick); err != nil {
					if ctx.Err() != nil || errors.Is(err, tracker.ErrStopped) {
						return
					}
					log.Printf("mock player %s: %v", mp.name, err)
				}
			}
		}
	}
}

// step answers one question for mp and closes the session when it is long
// enough.
func (g *Generator) step(ctx context.Context, mp *mockPlayer, tick int) error {
	if mp.done {
		return nil
	}

	ans := g.answer(mp, tick)
	out, err := g.sub.Submit(ctx, mp.id, ans)
	if err != nil {
		return err
	}
	mp.record(ans)

	if out.Mastered != nil {
		log.Printf("Mock player %s mastered %s", mp.name, out.Mastered.Skill)
		mp.skillIdx++
		if mp.skillIdx >= len(g.skills) {
			mp.done = true
		}
	}

	if mp.attempts >= mp.sessionLen || mp.done {
		return g.endSession(ctx, mp)
	}
	return nil
}

func (g *Generator) endSession(ctx context.Context, mp *mockPlayer) error {
	ev := event.SessionEnd{
		Correct:       mp.correct,
		Attempts:      mp.attempts,
		BestStreak:    mp.bestStreak,
		FastCount:     mp.fast,
		VeryFastCount: mp.veryFast,
	}
	mp.resetSession()
	if _, err := g.sub.Submit(ctx, mp.id, ev); err != nil {
		return fmt.Errorf("ending session: %w", err)
	}
	return nil
}

// answer draws the next answer for mp's pattern.
func (g *Generator) answer(mp *mockPlayer, tick int) event.Answer {
	var accuracy, latency, jitter float64
	switch mp.pattern {
	case "speedy":
		accuracy, latency, jitter = 0.97, 1100, 400
	case "struggling":
		accuracy, latency, jitter = 0.72, 7000, 2500
	case "streaky":
		// Alternating hot and cold spells of 15 ticks.
		if (tick/15)%2 == 0 {
			accuracy, latency, jitter = 1.0, 1800, 300
		} else {
			accuracy, latency, jitter = 0.6, 5000, 1500
		}
	case "methodical":
		accuracy, jitter = 0.95, 300
		latency = 4000 + 1500*math.Sin(float64(tick)/10.0)
	default:
		accuracy, latency, jitter = 0.93, 2500, 800
	}

	correct := g.rng.Float64() < accuracy
	ms := max(latency+(g.rng.Float64()*2-1)*jitter, 300)
	streak := 0
	if correct {
		streak = mp.streak + 1
	}

	return event.Answer{
		Skill:     g.skills[mp.skillIdx],
		Correct:   correct,
		LatencyMs: math.Round(ms),
		Streak:    streak,
	}
}

func (mp *mockPlayer) record(a event.Answer) {
	mp.attempts++
	mp.streak = a.Streak
	mp.bestStreak = max(mp.bestStreak, mp.streak)
	if !a.Correct {
		return
	}
	mp.correct++
	if a.LatencyMs < veryFastMs {
		mp.veryFast++
	}
	if a.LatencyMs < fastMs {
		mp.fast++
	}
}

func (mp *mockPlayer) resetSession() {
	mp.attempts, mp.correct = 0, 0
	mp.streak, mp.bestStreak = 0, 0
	mp.fast, mp.veryFast = 0, 0
}

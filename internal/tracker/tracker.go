// Package tracker serialises gameplay events per player and runs them
// through the mastery and achievement engines. It owns the in-memory
// profile cache and decides when profiles are written back to disk.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"

	"github.com/mathquest/backend/internal/achievement"
	"github.com/mathquest/backend/internal/event"
	"github.com/mathquest/backend/internal/mastery"
	"github.com/mathquest/backend/internal/profile"
	"github.com/mathquest/backend/internal/progress"
)

const (
	defaultSaveInterval = 30 * time.Second
	defaultIdleTTL      = 30 * time.Minute
	queueSize           = 256
)

// ErrStopped is returned by Submit once Run has returned.
var ErrStopped = errors.New("tracker stopped")

// Options tune persistence. Zero values select the defaults.
type Options struct {
	SaveInterval time.Duration
	// IdleTTL is how long an untouched profile stays cached. It must be
	// longer than SaveInterval so that nothing dirty ever expires.
	IdleTTL      time.Duration
	StarterBiome string
	Now          func() time.Time
}

// Mastered describes a first-time skill mastery.
type Mastered struct {
	Skill         string `json:"skill"`
	WorldID       string `json:"worldId,omitempty"`
	XPBonus       int    `json:"xpBonus"`
	CurrencyBonus int    `json:"currencyBonus"`
}

// Outcome is everything that changed for a player as a result of one event.
type Outcome struct {
	PlayerID    string               `json:"playerId"`
	Event       event.Type           `json:"event"`
	Stat        *profile.SkillStat   `json:"stat,omitempty"`
	Mastered    *Mastered            `json:"mastered,omitempty"`
	WorldReward *mastery.WorldReward `json:"worldReward,omitempty"`
	Unlocked    []achievement.Award  `json:"unlocked,omitempty"`

	// CurrencyGranted sums the mastery bonus and every badge reward.
	CurrencyGranted int            `json:"currencyGranted"`
	LevelsGained    int            `json:"levelsGained"`
	Level           progress.Level `json:"level"`
	Currency        int            `json:"currency"`
}

// OutcomeCallback is invoked after every processed event that changed
// something worth announcing. It is called outside the tracker lock.
type OutcomeCallback func(Outcome)

type entry struct {
	profile *profile.Profile
	dirty   bool
}

type submission struct {
	playerID string
	ev       event.Event
	reply    chan reply
}

type reply struct {
	outcome Outcome
	err     error
}

// Tracker processes events for many players. All mutation happens on the
// goroutine running Run, so events for a player apply in submission order.
type Tracker struct {
	store        *profile.Store
	worlds       *mastery.Registry
	badges       *achievement.Engine
	starterBiome string
	saveInterval time.Duration
	now          func() time.Time

	submissions chan submission
	done        chan struct{}

	mu            sync.Mutex
	cache         *ttlcache.Cache[string, *entry]
	stopEvictions func()
	// unsaved holds entries whose last save failed. They are served from
	// here if the cache lets them expire, until a save succeeds.
	unsaved       map[string]*entry

	onOutcome OutcomeCallback
}

// New creates a Tracker. The caller must run Run in a goroutine.
func New(store *profile.Store, worlds *mastery.Registry, badges *achievement.Engine, opts Options) (*Tracker, error) {
	if opts.SaveInterval <= 0 {
		opts.SaveInterval = defaultSaveInterval
	}
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = defaultIdleTTL
	}
	if opts.IdleTTL <= opts.SaveInterval {
		return nil, fmt.Errorf("idle ttl %s must exceed save interval %s", opts.IdleTTL, opts.SaveInterval)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	t := &Tracker{
		store:        store,
		worlds:       worlds,
		badges:       badges,
		starterBiome: opts.StarterBiome,
		saveInterval: opts.SaveInterval,
		now:          opts.Now,
		submissions:  make(chan submission, queueSize),
		done:         make(chan struct{}),
		unsaved:      make(map[string]*entry),
		cache: ttlcache.New[string, *entry](
			ttlcache.WithTTL[string, *entry](opts.IdleTTL),
		),
	}
	t.stopEvictions = t.cache.OnEviction(t.evicted)
	return t, nil
}

// OnOutcome registers a callback for processed events. Must be called
// before Run.
func (t *Tracker) OnOutcome(cb OutcomeCallback) {
	t.onOutcome = cb
}

// Run processes submissions and periodically saves dirty profiles. It
// blocks until ctx is cancelled, then saves everything still dirty.
func (t *Tracker) Run(ctx context.Context) {
	ticker := time.NewTicker(t.saveInterval)
	defer ticker.Stop()
	defer close(t.done)

	for {
		select {
		case <-ctx.Done():
			t.drain()
			t.saveDirty()
			t.stopEvictions()
			return
		case sub := <-t.submissions:
			out, err := t.process(sub.playerID, sub.ev)
			sub.reply <- reply{outcome: out, err: err}
		case <-ticker.C:
			t.saveDirty()
			t.mu.Lock()
			t.cache.DeleteExpired()
			t.mu.Unlock()
		}
	}
}

// drain answers submissions that were queued before shutdown.
func (t *Tracker) drain() {
	for {
		select {
		case sub := <-t.submissions:
			out, err := t.process(sub.playerID, sub.ev)
			sub.reply <- reply{outcome: out, err: err}
		default:
			return
		}
	}
}

// Submit queues ev for playerID and waits for it to be processed.
func (t *Tracker) Submit(ctx context.Context, playerID string, ev event.Event) (Outcome, error) {
	if !profile.ValidID(playerID) {
		return Outcome{}, fmt.Errorf("%w: %q", profile.ErrInvalidID, playerID)
	}
	sub := submission{playerID: playerID, ev: ev, reply: make(chan reply, 1)}

	select {
	case t.submissions <- sub:
	case <-t.done:
		return Outcome{}, ErrStopped
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}

	select {
	case r := <-sub.reply:
		return r.outcome, r.err
	case <-t.done:
		// Run may have answered just before exiting.
		select {
		case r := <-sub.reply:
			return r.outcome, r.err
		default:
			return Outcome{}, ErrStopped
		}
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

// Create makes a new player with a random ID and saves it immediately.
func (t *Tracker) Create() (*profile.Profile, error) {
	id := uuid.NewString()
	p := profile.New(id, t.starterBiome, t.now())
	if err := t.store.Save(p.Clone()); err != nil {
		return nil, fmt.Errorf("saving new profile: %w", err)
	}

	t.mu.Lock()
	t.cache.Set(id, &entry{profile: p}, ttlcache.DefaultTTL)
	t.mu.Unlock()
	return p.Clone(), nil
}

// Profile returns a copy of the player's current profile.
func (t *Tracker) Profile(playerID string) (*profile.Profile, error) {
	if !profile.ValidID(playerID) {
		return nil, fmt.Errorf("%w: %q", profile.ErrInvalidID, playerID)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	e, err := t.load(playerID)
	if err != nil {
		return nil, err
	}
	return e.profile.Clone(), nil
}

// Worlds returns the world registry the tracker evaluates against.
func (t *Tracker) Worlds() *mastery.Registry {
	return t.worlds
}

// Badges returns the achievement engine the tracker evaluates against.
func (t *Tracker) Badges() *achievement.Engine {
	return t.badges
}

// load returns the cached entry for id, reading it from disk on a miss.
// Caller must hold t.mu.
func (t *Tracker) load(id string) (*entry, error) {
	if item := t.cache.Get(id); item != nil {
		return item.Value(), nil
	}
	if e, ok := t.unsaved[id]; ok {
		t.cache.Set(id, e, ttlcache.DefaultTTL)
		return e, nil
	}
	p, err := t.store.Load(id)
	if err != nil {
		return nil, err
	}
	e := &entry{profile: p}
	t.cache.Set(id, e, ttlcache.DefaultTTL)
	return e, nil
}

// process applies ev to the player's profile: skill statistics, mastery,
// world rewards, then achievements for the event and for any mastery or
// biome unlock it caused.
func (t *Tracker) process(playerID string, ev event.Event) (Outcome, error) {
	now := t.now()
	ev = event.Stamp(ev, now)

	t.mu.Lock()
	e, err := t.load(playerID)
	if err != nil {
		t.mu.Unlock()
		return Outcome{}, err
	}
	p := e.profile
	levelBefore := p.Level
	currencyBefore := p.Currency

	out := Outcome{PlayerID: playerID, Event: ev.Type()}
	observed := []event.Event{ev}

	switch ev := ev.(type) {
	case event.Answer:
		res := t.worlds.CheckAndApply(p, ev.Skill, ev.Correct, ev.LatencyMs)
		stat := res.Stat.Clone()
		out.Stat = &stat
		if res.NewlyMastered {
			m := &Mastered{Skill: res.Skill, XPBonus: res.XPBonus, CurrencyBonus: res.CurrencyBonus}
			if res.World != nil {
				m.WorldID = res.World.ID
			}
			out.Mastered = m
			observed = append(observed, event.Mastery{Skill: res.Skill, WorldID: m.WorldID, At: now})

			if m.WorldID != "" {
				if rw, ok := t.worlds.ApplyWorldReward(p, m.WorldID, now); ok {
					out.WorldReward = &rw
					if rw.BiomeUnlocked {
						observed = append(observed, event.BiomeUnlock{Biome: rw.Biome, At: now})
					}
				}
			}
		}
	case event.Purchase:
		if ev.Kind == event.KindSkin {
			p.AddSkin(ev.ItemID)
		}
	case event.Mastery:
		if !p.IsMastered(ev.Skill) {
			t.mu.Unlock()
			return Outcome{}, fmt.Errorf("%w: skill %q is not mastered", event.ErrInvalidEvent, ev.Skill)
		}
	case event.BiomeUnlock:
		if !t.earned(p, ev.Biome) {
			t.mu.Unlock()
			return Outcome{}, fmt.Errorf("%w: biome %q has not been earned", event.ErrInvalidEvent, ev.Biome)
		}
		if !p.UnlockBiome(ev.Biome) {
			observed = nil
		}
	}

	for _, o := range observed {
		res := t.badges.Evaluate(p, o, now)
		res.Apply(p)
		out.Unlocked = append(out.Unlocked, res.Unlocked...)
	}

	out.CurrencyGranted = p.Currency - currencyBefore
	out.LevelsGained = max(p.Level-levelBefore, 0)
	out.Level = p.Progress()
	out.Currency = p.Currency
	e.dirty = true
	t.mu.Unlock()

	if t.onOutcome != nil && out.notable() {
		t.onOutcome(out)
	}
	return out, nil
}

// earned reports whether p is entitled to biome: the starter biome, or the
// reward of a world whose skill p has mastered.
func (t *Tracker) earned(p *profile.Profile, biome string) bool {
	if biome == t.starterBiome {
		return true
	}
	w, ok := t.worlds.WorldForBiome(biome)
	return ok && p.IsMastered(w.Skill)
}

func (o Outcome) notable() bool {
	return o.Mastered != nil || o.WorldReward != nil || len(o.Unlocked) > 0 || o.LevelsGained > 0
}

type pendingSave struct {
	e *entry
	p *profile.Profile
}

// saveDirty writes every dirty profile to disk, including ones whose
// earlier save failed.
func (t *Tracker) saveDirty() {
	t.mu.Lock()
	var pending []pendingSave
	t.cache.Range(func(item *ttlcache.Item[string, *entry]) bool {
		if e := item.Value(); e.dirty {
			pending = append(pending, pendingSave{e: e, p: e.profile.Clone()})
			e.dirty = false
		}
		return true
	})
	for _, e := range t.unsaved {
		if e.dirty {
			pending = append(pending, pendingSave{e: e, p: e.profile.Clone()})
			e.dirty = false
		}
	}
	t.mu.Unlock()

	for _, ps := range pending {
		err := t.store.Save(ps.p)
		if err != nil {
			log.Printf("Failed to save profile %s: %v", ps.p.ID, err)
		}
		t.saved(ps.p.ID, ps.e, err)
	}
}

// saved records the result of writing e. A failed entry is kept dirty and
// remembered even if the cache drops it.
func (t *Tracker) saved(id string, e *entry, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err != nil {
		e.dirty = true
		t.unsaved[id] = e
		t.cache.Touch(id)
		return
	}
	if !e.dirty && t.unsaved[id] == e {
		delete(t.unsaved, id)
	}
}

// evicted runs on its own goroutine after an entry leaves the cache.
func (t *Tracker) evicted(_ context.Context, reason ttlcache.EvictionReason, item *ttlcache.Item[string, *entry]) {
	t.mu.Lock()
	e := item.Value()
	if !e.dirty {
		t.mu.Unlock()
		return
	}
	p := e.profile.Clone()
	e.dirty = false
	t.mu.Unlock()

	log.Printf("Profile %s evicted while dirty (reason %d), saving", item.Key(), reason)
	err := t.store.Save(p)
	if err != nil {
		log.Printf("Failed to save evicted profile %s: %v", item.Key(), err)
	}
	t.saved(item.Key(), e, err)
}

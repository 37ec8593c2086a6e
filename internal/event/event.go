package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Type names an event kind on the wire.
type Type string

const (
	TypeAnswer      Type = "answer"
	TypeSessionEnd  Type = "session_end"
	TypeMastery     Type = "mastery"
	TypePurchase    Type = "purchase"
	TypeBiomeUnlock Type = "biome_unlock"
)

// ErrUnknownEvent is returned when decoding an envelope with an
// unrecognised type.
var ErrUnknownEvent = errors.New("unknown event type")

// ErrInvalidEvent is returned when a decoded event is missing required data.
var ErrInvalidEvent = errors.New("invalid event")

// Event is the closed set of gameplay events the engine reacts to. Only
// the types in this package implement it.
type Event interface {
	Type() Type
	Time() time.Time
	sealed()
}

// Answer is emitted once per answered question.
type Answer struct {
	Skill     string    `json:"skill"`
	Correct   bool      `json:"correct"`
	LatencyMs float64   `json:"latencyMs"`
	Streak    int       `json:"streak"` // current correct-answer streak, including this answer
	At        time.Time `json:"at"`
}

// SessionEnd summarises a finished practice session.
type SessionEnd struct {
	Correct       int       `json:"correct"`
	Attempts      int       `json:"attempts"`
	BestStreak    int       `json:"bestStreak"`
	FastCount     int       `json:"fastCount"`
	VeryFastCount int       `json:"veryFastCount"`
	At            time.Time `json:"at"`
}

// Mastery is emitted when a skill is mastered for the first time.
type Mastery struct {
	Skill   string    `json:"skill"`
	WorldID string    `json:"worldId,omitempty"`
	At      time.Time `json:"at"`
}

// ItemKind classifies shop items.
type ItemKind string

const (
	KindSkin    ItemKind = "skin"
	KindDecor   ItemKind = "decor"
	KindPowerUp ItemKind = "powerup"
)

// ItemTier is a shop item's rarity.
type ItemTier string

const (
	ItemCommon    ItemTier = "common"
	ItemRare      ItemTier = "rare"
	ItemEpic      ItemTier = "epic"
	ItemLegendary ItemTier = "legendary"
)

// Purchase is emitted after a shop purchase has been paid for.
type Purchase struct {
	ItemID string    `json:"itemId"`
	Kind   ItemKind  `json:"kind"`
	Tier   ItemTier  `json:"tier"`
	Biome  string    `json:"biome,omitempty"` // biome the item belongs to, if any
	At     time.Time `json:"at"`
}

// BiomeUnlock is emitted when a biome becomes available.
type BiomeUnlock struct {
	Biome string    `json:"biome"`
	At    time.Time `json:"at"`
}

func (Answer) Type() Type      { return TypeAnswer }
func (SessionEnd) Type() Type  { return TypeSessionEnd }
func (Mastery) Type() Type     { return TypeMastery }
func (Purchase) Type() Type    { return TypePurchase }
func (BiomeUnlock) Type() Type { return TypeBiomeUnlock }

func (e Answer) Time() time.Time      { return e.At }
func (e SessionEnd) Time() time.Time  { return e.At }
func (e Mastery) Time() time.Time     { return e.At }
func (e Purchase) Time() time.Time    { return e.At }
func (e BiomeUnlock) Time() time.Time { return e.At }

func (Answer) sealed()      {}
func (SessionEnd) sealed()  {}
func (Mastery) sealed()     {}
func (Purchase) sealed()    {}
func (BiomeUnlock) sealed() {}

// Envelope is the wire form of an event.
type Envelope struct {
	Type    Type            `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Encode wraps ev in an envelope and marshals it.
func Encode(ev Event) ([]byte, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("marshaling %s payload: %w", ev.Type(), err)
	}
	return json.Marshal(Envelope{Type: ev.Type(), Payload: payload})
}

// Decode parses an envelope into its concrete event. A zero At is left
// for the caller to stamp.
func Decode(data []byte) (Event, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("parsing event envelope: %w", err)
	}
	if len(env.Payload) == 0 {
		env.Payload = json.RawMessage("{}")
	}

	var ev Event
	switch env.Type {
	case TypeAnswer:
		var a Answer
		if err := json.Unmarshal(env.Payload, &a); err != nil {
			return nil, fmt.Errorf("parsing %s payload: %w", env.Type, err)
		}
		if a.Skill == "" || a.LatencyMs < 0 {
			return nil, fmt.Errorf("%w: answer needs a skill and non-negative latency", ErrInvalidEvent)
		}
		ev = a
	case TypeSessionEnd:
		var s SessionEnd
		if err := json.Unmarshal(env.Payload, &s); err != nil {
			return nil, fmt.Errorf("parsing %s payload: %w", env.Type, err)
		}
		if s.Correct > s.Attempts || s.Correct < 0 {
			return nil, fmt.Errorf("%w: session correct %d exceeds attempts %d", ErrInvalidEvent, s.Correct, s.Attempts)
		}
		ev = s
	case TypeMastery:
		var m Mastery
		if err := json.Unmarshal(env.Payload, &m); err != nil {
			return nil, fmt.Errorf("parsing %s payload: %w", env.Type, err)
		}
		ev = m
	case TypePurchase:
		var p Purchase
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, fmt.Errorf("parsing %s payload: %w", env.Type, err)
		}
		if p.ItemID == "" {
			return nil, fmt.Errorf("%w: purchase needs an item id", ErrInvalidEvent)
		}
		ev = p
	case TypeBiomeUnlock:
		var b BiomeUnlock
		if err := json.Unmarshal(env.Payload, &b); err != nil {
			return nil, fmt.Errorf("parsing %s payload: %w", env.Type, err)
		}
		if b.Biome == "" {
			return nil, fmt.Errorf("%w: biome unlock needs a biome", ErrInvalidEvent)
		}
		ev = b
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Type)
	}
	return ev, nil
}

// Stamp returns ev with a zero timestamp replaced by now.
func Stamp(ev Event, now time.Time) Event {
	if !ev.Time().IsZero() {
		return ev
	}
	switch e := ev.(type) {
	case Answer:
		e.At = now
		return e
	case SessionEnd:
		e.At = now
		return e
	case Mastery:
		e.At = now
		return e
	case Purchase:
		e.At = now
		return e
	case BiomeUnlock:
		e.At = now
		return e
	}
	return ev
}

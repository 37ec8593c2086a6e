package ws

import (
	"time"

	"github.com/mathquest/backend/internal/achievement"
	"github.com/mathquest/backend/internal/profile"
	"github.com/mathquest/backend/internal/tracker"
)

type MessageType string

const (
	MsgHello               MessageType = "hello"
	MsgAchievementUnlocked MessageType = "achievement_unlocked"
	MsgSkillMastered       MessageType = "skill_mastered"
	MsgWorldUnlocked       MessageType = "world_unlocked"
	MsgLevelUp             MessageType = "level_up"
)

type WSMessage struct {
	Type    MessageType `json:"type"`
	Payload any         `json:"payload"`
}

type HelloPayload struct {
	PlayerID string `json:"playerId,omitempty"`
	Clients  int    `json:"clients"`
}

type AchievementUnlockedPayload struct {
	PlayerID    string       `json:"playerId"`
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Tier        profile.Tier `json:"tier,omitempty"`
	Reward      int          `json:"reward"`
}

type SkillMasteredPayload struct {
	PlayerID      string `json:"playerId"`
	Skill         string `json:"skill"`
	WorldID       string `json:"worldId,omitempty"`
	XPBonus       int    `json:"xpBonus"`
	CurrencyBonus int    `json:"currencyBonus"`
}

type WorldUnlockedPayload struct {
	PlayerID      string    `json:"playerId"`
	WorldID       string    `json:"worldId"`
	Biome         string    `json:"biome"`
	BiomeUnlocked bool      `json:"biomeUnlocked"`
	BiasUntil     time.Time `json:"biasUntil"`
}

type LevelUpPayload struct {
	PlayerID     string `json:"playerId"`
	Level        int    `json:"level"`
	LevelsGained int    `json:"levelsGained"`
}

// outcomeMessages turns one processed event into notifications, in the
// order a client should show them. badges may be nil.
func outcomeMessages(out tracker.Outcome, badges *achievement.Engine) []WSMessage {
	var msgs []WSMessage
	if m := out.Mastered; m != nil {
		msgs = append(msgs, WSMessage{Type: MsgSkillMastered, Payload: SkillMasteredPayload{
			PlayerID:      out.PlayerID,
			Skill:         m.Skill,
			WorldID:       m.WorldID,
			XPBonus:       m.XPBonus,
			CurrencyBonus: m.CurrencyBonus,
		}})
	}
	if rw := out.WorldReward; rw != nil {
		msgs = append(msgs, WSMessage{Type: MsgWorldUnlocked, Payload: WorldUnlockedPayload{
			PlayerID:      out.PlayerID,
			WorldID:       rw.WorldID,
			Biome:         rw.Biome,
			BiomeUnlocked: rw.BiomeUnlocked,
			BiasUntil:     rw.BiasUntil,
		}})
	}
	for _, a := range out.Unlocked {
		p := AchievementUnlockedPayload{
			PlayerID: out.PlayerID,
			ID:       a.ID,
			Name:     a.Name,
			Tier:     a.Tier,
			Reward:   a.Reward,
		}
		if badges != nil {
			if b, ok := badges.Badge(a.ID); ok {
				p.Description = b.Description
			}
		}
		msgs = append(msgs, WSMessage{Type: MsgAchievementUnlocked, Payload: p})
	}
	if out.LevelsGained > 0 {
		msgs = append(msgs, WSMessage{Type: MsgLevelUp, Payload: LevelUpPayload{
			PlayerID:     out.PlayerID,
			Level:        out.Level.Level,
			LevelsGained: out.LevelsGained,
		}})
	}
	return msgs
}

package gameserver

import (
	"time"

	"github.com/bitcory/knight/internal/game/battle"
	"github.com/bitcory/knight/internal/game/economy"
	"github.com/bitcory/knight/internal/game/enhance"
	"github.com/bitcory/knight/internal/game/feed"
	"github.com/bitcory/knight/internal/game/ranking"
	"github.com/bitcory/knight/internal/game/tier"
	"github.com/bitcory/knight/internal/game/weapon"
	"github.com/bitcory/knight/internal/storage/postgres"
)

// WeaponView is the client-facing weapon card.
type WeaponView struct {
	ID               string         `json:"id"`
	Type             weapon.Type    `json:"type"`
	Name             string         `json:"name"`
	Description      string         `json:"description"`
	Level            int            `json:"level"`
	BaseDamage       int            `json:"baseDamage"`
	TotalEnhanceCost int64          `json:"totalEnhanceCost"`
	Element          weapon.Element `json:"element,omitempty"`
	ElementLevel     int            `json:"elementLevel,omitempty"`
	AttackPower      int            `json:"attackPower"`
	Grade            weapon.Grade   `json:"grade"`
	NextCost         int64          `json:"nextCost,omitempty"`
}

func newWeaponView(w weapon.Weapon) WeaponView {
	v := WeaponView{
		ID:               w.ID,
		Type:             w.Type,
		Name:             w.Name,
		Description:      w.Description,
		Level:            w.Level,
		BaseDamage:       w.BaseDamage,
		TotalEnhanceCost: w.TotalEnhanceCost,
		Element:          w.Element,
		ElementLevel:     w.ElementLevel,
		AttackPower:      weapon.AttackPower(w),
		Grade:            weapon.GradeOf(w.Level),
	}
	if w.Level < weapon.MaxLevel {
		v.NextCost = tier.Weapon(w.Level).Cost
	}
	return v
}

// PlayerView is the client-facing player state.
type PlayerView struct {
	AccountID      int64      `json:"accountId"`
	Username       string     `json:"username"`
	Role           string     `json:"role"`
	Gold           int64      `json:"gold"`
	Scrolls        int        `json:"scrolls"`
	Wins           int        `json:"wins"`
	Losses         int        `json:"losses"`
	NextAttendance time.Time  `json:"nextAttendance,omitzero"`
	BattlesLeft    int        `json:"battlesLeft"`
	Weapon         WeaponView `json:"weapon"`
}

// RegisterRequest creates an account.
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginRequest opens a session.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginReply carries the session token every later call presents.
type LoginReply struct {
	Token  string     `json:"token"`
	Player PlayerView `json:"player"`
}

// Empty is the request or reply of calls without fields.
type Empty struct{}

// EnhanceRequest attempts a weapon enhancement.
type EnhanceRequest struct {
	RequestID string `json:"requestId"`
	UseScroll bool   `json:"useScroll"`
}

// EnhanceElementRequest attempts an element enhancement.
type EnhanceElementRequest struct {
	RequestID string `json:"requestId"`
}

// EnhanceReply reports one enhancement attempt.
type EnhanceReply struct {
	Result        enhance.Result `json:"result"`
	PrevLevel     int            `json:"prevLevel"`
	NewLevel      int            `json:"newLevel"`
	Cost          int64          `json:"cost"`
	Refund        int64          `json:"refund,omitempty"`
	Blessed       bool           `json:"blessed,omitempty"`
	ScrollUsed    bool           `json:"scrollUsed,omitempty"`
	BoostConsumed bool           `json:"boostConsumed,omitempty"`
	SuccessChance float64        `json:"successChance"`
	DestroyChance float64        `json:"destroyChance"`
	Quote         string         `json:"quote"`
	Player        PlayerView     `json:"player"`
}

// BattleRequest starts a battle. An empty Opponent picks one at random.
type BattleRequest struct {
	RequestID string `json:"requestId"`
	Opponent  string `json:"opponent,omitempty"`
}

// BattleReply reports one battle.
type BattleReply struct {
	Opponent           string      `json:"opponent"`
	OpponentLevel      int         `json:"opponentLevel"`
	Win                bool        `json:"win"`
	Reward             int64       `json:"reward"`
	BaseReward         int64       `json:"baseReward"`
	UnderdogMultiplier float64     `json:"underdogMultiplier"`
	Odds               battle.Odds `json:"odds"`
	Spirit             bool        `json:"spirit,omitempty"`
	Loot               int64       `json:"loot,omitempty"`
	LootTransferred    bool        `json:"lootTransferred,omitempty"`
	Log                string      `json:"log"`
	BattlesLeft        int         `json:"battlesLeft"`
	Player             PlayerView  `json:"player"`
}

// BuyScrollsRequest buys Count scrolls.
type BuyScrollsRequest struct {
	RequestID string `json:"requestId"`
	Count     int    `json:"count"`
}

// AssignElementRequest sets the weapon's element.
type AssignElementRequest struct {
	RequestID string `json:"requestId"`
	Element   string `json:"element"`
}

// ResetWeaponRequest replaces the weapon with a fresh one of Type.
type ResetWeaponRequest struct {
	RequestID string `json:"requestId"`
	Type      string `json:"type"`
}

// ClaimAttendanceRequest claims the periodic attendance reward.
type ClaimAttendanceRequest struct {
	RequestID string `json:"requestId"`
}

// ChatRequest is one line typed into the global chat. Command lines are
// dispatched to the matching action.
type ChatRequest struct {
	RequestID string `json:"requestId"`
	Text      string `json:"text"`
}

// ChatReply reports what a chat line did. Exactly one of the pointers is set.
type ChatReply struct {
	Message *feed.Message `json:"message,omitempty"`
	Enhance *EnhanceReply `json:"enhance,omitempty"`
	Battle  *BattleReply  `json:"battle,omitempty"`
	Player  *PlayerView   `json:"player,omitempty"`
}

// WhisperRequest sends a private line.
type WhisperRequest struct {
	To   string `json:"to"`
	Text string `json:"text"`
}

// FeedReply is a page of feed messages, oldest first.
type FeedReply struct {
	Messages []feed.Message `json:"messages"`
}

// LeaderboardRequest asks for the top Limit players; 0 means all.
type LeaderboardRequest struct {
	Limit int `json:"limit"`
}

// LeaderboardReply is the sorted leaderboard.
type LeaderboardReply struct {
	Entries []ranking.Entry `json:"entries"`
}

// OddsRequest previews the enhancement odds at Level.
type OddsRequest struct {
	Level     int  `json:"level"`
	UseScroll bool `json:"useScroll"`
	TopWinner bool `json:"topWinner"`
}

// OddsReply is the odds table row for one level under the given modifiers.
type OddsReply struct {
	Level          int     `json:"level"`
	Cost           int64   `json:"cost"`
	SuccessChance  float64 `json:"successChance"`
	MaintainChance float64 `json:"maintainChance"`
	DestroyChance  float64 `json:"destroyChance"`
}

// GiftGoldRequest credits gold to a player.
type GiftGoldRequest struct {
	Username string `json:"username"`
	Amount   int64  `json:"amount"`
}

// ArmBoostRequest arms the one-shot 90% enhancement boost for a player.
type ArmBoostRequest struct {
	Username string `json:"username"`
}

// PurgeFeedRequest removes feed messages older than OlderThanDays. Zero
// removes everything.
type PurgeFeedRequest struct {
	OlderThanDays int `json:"olderThanDays"`
}

// PurgeInactiveRequest removes non-admin accounts idle for Days.
type PurgeInactiveRequest struct {
	Days int `json:"days"`
}

// CountReply reports how many rows an admin operation touched.
type CountReply struct {
	Count int64    `json:"count"`
	Names []string `json:"names,omitempty"`
}

func newPlayerView(p postgres.Player, battlesLeft int) PlayerView {
	return PlayerView{
		AccountID:      p.AccountID,
		Username:       p.Username,
		Role:           p.Role,
		Gold:           p.Stats.Gold,
		Scrolls:        p.Stats.Scrolls,
		Wins:           p.Stats.Wins,
		Losses:         p.Stats.Losses,
		NextAttendance: economy.NextAttendance(p.Stats),
		BattlesLeft:    battlesLeft,
		Weapon:         newWeaponView(p.Weapon),
	}
}

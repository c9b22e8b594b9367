package handlers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/bitcory/knight/internal/frontend/telnet"
	"github.com/bitcory/knight/internal/game/battle"
	"github.com/bitcory/knight/internal/game/enhance"
	"github.com/bitcory/knight/internal/game/feed"
	"github.com/bitcory/knight/internal/gameserver"
)

var at = time.Date(2026, 3, 1, 21, 5, 0, 0, time.UTC)

func plain(s string) string { return telnet.StripANSI(s) }

func TestRenderMessage(t *testing.T) {
	tests := []struct {
		name string
		msg  feed.Message
		want string
	}{
		{
			name: "enhancement with quote",
			msg: feed.NewMessage(1, "knight", "knight enhanced [+7] Rusty Sword!",
				feed.EnhancementEvent{Result: string(enhance.Success), Quote: "Shine!"}, at),
			want: "21:05 knight enhanced [+7] Rusty Sword!\r\n      \"Shine!\"",
		},
		{
			name: "battle with log",
			msg:  feed.NewMessage(1, "knight", "knight defeated bob", feed.BattleEvent{Win: true, Log: "A clean cut."}, at),
			want: "21:05 knight defeated bob\r\n      A clean cut.",
		},
		{
			name: "showoff",
			msg:  feed.NewMessage(1, "knight", "", feed.ShowoffEvent{WeaponLevel: 15, WeaponName: "Mythic Axe", AttackPower: 300}, at),
			want: "21:05 knight shows off [+15] Mythic Axe (ATK 300)",
		},
		{
			name: "system",
			msg:  feed.NewMessage(0, "system", "bob joined the realm.", feed.SystemEvent{}, at),
			want: "21:05 * bob joined the realm.",
		},
		{
			name: "chat",
			msg:  feed.NewMessage(2, "bob", "gg", feed.ChatEvent{}, at),
			want: "21:05 bob: gg",
		},
		{
			name: "whisper received",
			msg:  feed.NewWhisper(2, "bob", "knight", "psst", at),
			want: "21:05 bob whispers: psst",
		},
		{
			name: "whisper sent",
			msg:  feed.NewWhisper(1, "knight", "bob", "hey", at),
			want: "21:05 You whisper to bob: hey",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, plain(RenderMessage(tt.msg, "knight")))
		})
	}
}

func TestRenderEnhance_Destroy(t *testing.T) {
	out := plain(RenderEnhance(gameserver.EnhanceReply{
		Result: enhance.Destroy, PrevLevel: 12, Cost: 100000, Refund: 20000,
		Player: gameserver.PlayerView{Weapon: gameserver.WeaponView{Name: "Rusty Sword"}},
	}))
	assert.Contains(t, out, "DESTROYED at +12  cost 100000, refund 20000")
	assert.Contains(t, out, "[+0] Rusty Sword")
}

func TestRenderBattle_SpiritLoot(t *testing.T) {
	r := gameserver.BattleReply{
		Opponent: "bob", OpponentLevel: 9, Win: true, Reward: 4200, UnderdogMultiplier: 1.5,
		Odds: battle.Odds{WinChance: 0.25}, Spirit: true, Loot: 800, BattlesLeft: 17,
	}
	out := plain(RenderBattle(r))
	assert.Contains(t, out, "VICTORY over bob (+9)  +4200 gold (underdog x1.5)  win chance 25%")
	assert.Contains(t, out, "You could have looted 800 gold.")
	assert.Contains(t, out, "Battles left today: 17")

	r.LootTransferred = true
	assert.Contains(t, plain(RenderBattle(r)), "You looted 800 gold.")
}

func TestRenderLeaderboard_Empty(t *testing.T) {
	assert.Equal(t, "No knights yet.\r\n", plain(RenderLeaderboard(nil)))
}

package feed_test

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/bitcory/knight/internal/game/feed"
	"github.com/bitcory/knight/internal/game/weapon"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func chat(i int) feed.Message {
	return feed.NewMessage(int64(i), fmt.Sprintf("p%d", i), "hello", feed.ChatEvent{}, epoch.Add(time.Duration(i)*time.Minute))
}

func TestParseCommand(t *testing.T) {
	cases := []struct {
		in   string
		want feed.Command
	}{
		{"/enhance", feed.Command{Kind: feed.CommandEnhance}},
		{"/강화", feed.Command{Kind: feed.CommandEnhance}},
		{"/ENHANCE", feed.Command{Kind: feed.CommandEnhance}},
		{"/battle", feed.Command{Kind: feed.CommandBattle}},
		{"/전투", feed.Command{Kind: feed.CommandBattle}},
		{"/scroll", feed.Command{Kind: feed.CommandScroll}},
		{"/주문서", feed.Command{Kind: feed.CommandScroll}},
		{"/showoff", feed.Command{Kind: feed.CommandShowoff}},
		{"/w anna see you at +10", feed.Command{Kind: feed.CommandWhisper, Target: "anna", Body: "see you at +10"}},
		{"/귓 bora 안녕", feed.Command{Kind: feed.CommandWhisper, Target: "bora", Body: "안녕"}},
		{"/w anna", feed.Command{Kind: feed.CommandChat, Body: "/w anna"}},
		{"/dance", feed.Command{Kind: feed.CommandChat, Body: "/dance"}},
		{"/enhance twice", feed.Command{Kind: feed.CommandChat, Body: "/enhance twice"}},
		{"  good luck  ", feed.Command{Kind: feed.CommandChat, Body: "good luck"}},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, feed.ParseCommand(tc.in))
		})
	}
}

func TestMessage_WhisperVisibility(t *testing.T) {
	w := feed.NewWhisper(1, "anna", "bora", "psst", epoch)
	assert.Equal(t, feed.KindWhisper, w.Kind)
	assert.True(t, w.VisibleTo("anna"))
	assert.True(t, w.VisibleTo("bora"))
	assert.False(t, w.VisibleTo("cho"))
	assert.False(t, w.VisibleTo(""))

	assert.True(t, chat(1).VisibleTo(""))
}

func TestPayloadRoundTrip(t *testing.T) {
	events := []feed.Event{
		feed.EnhancementEvent{Result: "success", PrevLevel: 4, NewLevel: 7, Blessed: true, WeaponName: "Rusty Sword", WeaponType: weapon.Sword, GoldChange: -12000},
		feed.BattleEvent{OpponentName: "bora", Win: true, Spirit: true, Loot: 500, GoldChange: 660},
		feed.ShowoffEvent{WeaponLevel: 12, WeaponName: "Dawnbreaker", Element: weapon.Light, ElementLevel: 3, AttackPower: 257, Grade: weapon.GradeOf(12)},
		feed.ChatEvent{},
		feed.SystemEvent{},
		feed.WhisperEvent{},
	}
	for _, ev := range events {
		raw, err := feed.EncodePayload(ev)
		require.NoError(t, err)
		got, err := feed.DecodePayload(ev.Kind(), raw)
		require.NoError(t, err)
		assert.Equal(t, ev, got)
	}

	_, err := feed.DecodePayload("dance", []byte("{}"))
	assert.Error(t, err)
}

func TestMessage_JSONKeepsTypedEvent(t *testing.T) {
	ev := feed.BattleEvent{OpponentName: "bora", Win: true, Loot: 500, GoldChange: 660, WeaponLevel: 9, OpponentLvl: 11}
	want := feed.NewMessage(3, "minsu", feed.BattleBody("minsu", ev), ev, epoch)
	raw, err := json.Marshal(want)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"type":"battle"`)

	var got feed.Message
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, ev, got.Event)
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.Body, got.Body)
	assert.True(t, want.CreatedAt.Equal(got.CreatedAt))

	assert.Error(t, json.Unmarshal([]byte(`{"type":"dance"}`), &got))
}

func TestRender(t *testing.T) {
	ev := feed.EnhancementEvent{Result: "success", PrevLevel: 3, NewLevel: 4, WeaponName: "Rusty Sword"}
	assert.Equal(t, "anna enhanced Rusty Sword +3 -> +4", feed.EnhancementBody("anna", ev))

	ev.Result, ev.Element, ev.WeaponElem = "destroy", true, weapon.Fire
	assert.Equal(t, "anna destroyed the fire affinity of Rusty Sword at +3", feed.EnhancementBody("anna", ev))

	assert.Contains(t, feed.BattleBody("anna", feed.BattleEvent{OpponentName: "bora", Spirit: true, Win: true, Loot: 77}), "looting 77 gold")
	assert.Equal(t, "anna lost to bora", feed.BattleBody("anna", feed.BattleEvent{OpponentName: "bora"}))
	assert.Contains(t, feed.ShowoffBody(feed.ShowoffEvent{WeaponLevel: 20, WeaponName: "X", AttackPower: 999, Grade: weapon.GradeOf(20)}), "Attack power: 999")
}

func TestHub_BacklogIsBounded(t *testing.T) {
	h := feed.NewHub(feed.DefaultBacklog)
	for i := range 60 {
		h.Publish(chat(i))
	}
	backlog := h.Recent("")
	require.Len(t, backlog, feed.DefaultBacklog)
	assert.Equal(t, int64(10), backlog[0].AccountID)
	assert.Equal(t, int64(59), backlog[len(backlog)-1].AccountID)
}

func TestHub_WhisperDelivery(t *testing.T) {
	h := feed.NewHub(10)
	anna, bora, cho := make(chan feed.Message, 4), make(chan feed.Message, 4), make(chan feed.Message, 4)
	h.Subscribe("anna", anna)
	h.Subscribe("bora", bora)
	h.Subscribe("cho", cho)

	h.Publish(feed.NewWhisper(1, "anna", "bora", "psst", epoch))
	h.Publish(chat(2))

	assert.Len(t, anna, 2)
	assert.Len(t, bora, 2)
	assert.Len(t, cho, 1)
	assert.Len(t, h.Subscribe("cho", cho), 1, "backlog hides whispers from third parties")
}

func TestHub_SlowSubscriberDoesNotBlock(t *testing.T) {
	h := feed.NewHub(10)
	full := make(chan feed.Message)
	h.Subscribe("anna", full)

	done := make(chan struct{})
	go func() {
		h.Publish(chat(1))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}

	h.Unsubscribe(full)
	assert.Zero(t, h.Subscribers())
}

func TestHub_PurgeBefore(t *testing.T) {
	h := feed.NewHub(10)
	h.Hydrate([]feed.Message{chat(0), chat(1), chat(2), chat(3)})

	assert.Equal(t, 2, h.PurgeBefore(epoch.Add(2*time.Minute)))
	assert.Len(t, h.Recent(""), 2)
	assert.Equal(t, 2, h.PurgeBefore(time.Time{}))
	assert.Empty(t, h.Recent(""))
}

func TestProperty_HubNeverExceedsLimit(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		limit := rapid.IntRange(1, 20).Draw(rt, "limit")
		n := rapid.IntRange(0, 60).Draw(rt, "n")
		h := feed.NewHub(limit)
		for i := range n {
			h.Publish(chat(i))
		}
		if got := len(h.Recent("")); got != min(n, limit) {
			rt.Fatalf("backlog %d, want %d", got, min(n, limit))
		}
	})
}

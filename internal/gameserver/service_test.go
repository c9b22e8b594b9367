package gameserver

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/bitcory/knight/internal/config"
	"github.com/bitcory/knight/internal/flavor"
	"github.com/bitcory/knight/internal/game/battle"
	"github.com/bitcory/knight/internal/game/dice"
	"github.com/bitcory/knight/internal/game/economy"
	"github.com/bitcory/knight/internal/game/enhance"
	"github.com/bitcory/knight/internal/game/feed"
	"github.com/bitcory/knight/internal/game/session"
	"github.com/bitcory/knight/internal/game/weapon"
	"github.com/bitcory/knight/internal/quota"
	"github.com/bitcory/knight/internal/storage/postgres"
)

type harness struct {
	svc   *Service
	store *memStore
	feeds *memFeed
	hub   *feed.Hub
	quota *quota.MemoryCounter
}

func newHarness(t *testing.T, loot string, limit int, rolls ...float64) *harness {
	t.Helper()
	if len(rolls) == 0 {
		rolls = []float64{0.5}
	}
	logger := zaptest.NewLogger(t)
	store := newMemStore()
	feeds := &memFeed{}
	hub := feed.NewHub(50)
	counter := quota.NewMemoryCounter(limit, quota.Clock{Loc: time.UTC})
	svc := NewService(store, store, feeds, hub, session.NewManager(8), counter,
		enhance.NewResolver(flavor.Canned{}, logger),
		battle.NewResolver(flavor.Canned{}, logger),
		dice.NewSequenceSource(rolls...),
		config.EconomyConfig{DailyBattleLimit: limit, LootPolicy: loot},
		config.GameServerConfig{FeedBacklog: 50},
		logger,
	)
	return &harness{svc: svc, store: store, feeds: feeds, hub: hub, quota: counter}
}

func (h *harness) join(t *testing.T, name string) *session.Session {
	t.Helper()
	ctx := context.Background()
	_, err := h.svc.Register(ctx, RegisterRequest{Username: name, Password: "hunter22"})
	require.NoError(t, err)
	_, sess, err := h.svc.Login(ctx, LoginRequest{Username: name, Password: "hunter22"})
	require.NoError(t, err)
	return sess
}

func (h *harness) admin(t *testing.T, name string) *session.Session {
	t.Helper()
	h.join(t, name)
	h.store.promote(name)
	_, sess, err := h.svc.Login(context.Background(), LoginRequest{Username: name, Password: "hunter22"})
	require.NoError(t, err)
	require.True(t, sess.IsAdmin())
	return sess
}

func (h *harness) player(t *testing.T, sess *session.Session) postgres.Player {
	t.Helper()
	p, err := h.store.Get(context.Background(), sess.AccountID)
	require.NoError(t, err)
	return p
}

func TestRegisterAndLogin(t *testing.T) {
	h := newHarness(t, config.LootInformational, 20)
	ctx := context.Background()

	pv, err := h.svc.Register(ctx, RegisterRequest{Username: "minsu", Password: "hunter22"})
	require.NoError(t, err)
	assert.Equal(t, economy.StarterGold, pv.Gold)
	assert.Equal(t, economy.StarterScrolls, pv.Scrolls)
	assert.Equal(t, 20, pv.BattlesLeft)
	assert.Equal(t, 0, pv.Weapon.Level)
	assert.Equal(t, []feed.Kind{feed.KindSystem}, h.feeds.kinds())

	_, err = h.svc.Register(ctx, RegisterRequest{Username: "minsu", Password: "hunter22"})
	assert.ErrorIs(t, err, postgres.ErrAccountExists)

	reply, sess, err := h.svc.Login(ctx, LoginRequest{Username: "minsu", Password: "hunter22"})
	require.NoError(t, err)
	assert.Equal(t, sess.Token, reply.Token)
	assert.Equal(t, "minsu", reply.Player.Username)

	got, err := h.svc.Authorize(reply.Token)
	require.NoError(t, err)
	assert.Equal(t, sess.AccountID, got.AccountID)

	require.NoError(t, h.svc.Logout(ctx, sess))
	_, err = h.svc.Authorize(reply.Token)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestRegisterRejectsBadInput(t *testing.T) {
	h := newHarness(t, config.LootInformational, 20)
	ctx := context.Background()
	for _, name := range []string{"", "two words", "/enhance", strings.Repeat("가", 33)} {
		_, err := h.svc.Register(ctx, RegisterRequest{Username: name, Password: "hunter22"})
		assert.ErrorIs(t, err, ErrInvalidUsername, "username %q", name)
	}
	_, err := h.svc.Register(ctx, RegisterRequest{Username: "minsu", Password: "12345"})
	assert.ErrorIs(t, err, ErrInvalidPassword)
}

func TestLoginFailuresLookAlike(t *testing.T) {
	h := newHarness(t, config.LootInformational, 20)
	h.join(t, "minsu")
	ctx := context.Background()

	_, _, err := h.svc.Login(ctx, LoginRequest{Username: "minsu", Password: "wrong-password"})
	assert.ErrorIs(t, err, postgres.ErrInvalidCredentials)
	_, _, err = h.svc.Login(ctx, LoginRequest{Username: "ghost", Password: "hunter22"})
	assert.ErrorIs(t, err, postgres.ErrInvalidCredentials)
}

func TestEnhanceSuccessIsPersistedAndAnnounced(t *testing.T) {
	// No blessing, then a roll inside the success band.
	h := newHarness(t, config.LootInformational, 20, 0.5, 0.0)
	sess := h.join(t, "minsu")

	reply, err := h.svc.Enhance(context.Background(), sess, EnhanceRequest{RequestID: "r1"})
	require.NoError(t, err)
	assert.Equal(t, enhance.Success, reply.Result)
	assert.Equal(t, 1, reply.NewLevel)
	assert.Equal(t, int64(100), reply.Cost)
	assert.Equal(t, economy.StarterGold-100, reply.Player.Gold)

	p := h.player(t, sess)
	assert.Equal(t, 1, p.Weapon.Level)
	assert.Equal(t, "Enhanced Rusty Sword", p.Weapon.Name)
	assert.Equal(t, int64(100), p.Weapon.TotalEnhanceCost)

	recent := h.hub.Recent("")
	require.NotEmpty(t, recent)
	last := recent[len(recent)-1]
	assert.Equal(t, feed.KindEnhancement, last.Kind)
	ev, ok := last.Event.(feed.EnhancementEvent)
	require.True(t, ok)
	assert.Equal(t, "Enhanced Rusty Sword", ev.WeaponName)
	assert.Equal(t, int64(-100), ev.GoldChange)
}

func TestEnhanceReplaysDuplicateRequest(t *testing.T) {
	h := newHarness(t, config.LootInformational, 20, 0.5, 0.0)
	sess := h.join(t, "minsu")
	ctx := context.Background()

	first, err := h.svc.Enhance(ctx, sess, EnhanceRequest{RequestID: "same"})
	require.NoError(t, err)
	second, err := h.svc.Enhance(ctx, sess, EnhanceRequest{RequestID: "same"})
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, h.player(t, sess).Weapon.Level)
	assert.Equal(t, economy.StarterGold-100, h.player(t, sess).Stats.Gold)
}

func TestEnhanceIsSerializedPerAccount(t *testing.T) {
	// Every attempt lands in the maintain band at level 0.
	h := newHarness(t, config.LootInformational, 20, 0.5, 0.99)
	sess := h.join(t, "minsu")

	const attempts = 10
	var wg sync.WaitGroup
	for i := range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.svc.Enhance(context.Background(), sess, EnhanceRequest{RequestID: fmt.Sprintf("r%d", i)})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	p := h.player(t, sess)
	assert.Equal(t, economy.StarterGold-attempts*100, p.Stats.Gold)
	assert.Equal(t, 0, p.Weapon.Level)
	assert.Equal(t, int64(attempts*100), p.Weapon.TotalEnhanceCost)
}

func TestEnhanceInsufficientGoldChangesNothing(t *testing.T) {
	h := newHarness(t, config.LootInformational, 20)
	sess := h.join(t, "minsu")
	p := h.player(t, sess)
	p.Stats.Gold = 10
	h.store.setPlayer(p)

	_, err := h.svc.Enhance(context.Background(), sess, EnhanceRequest{RequestID: "r1"})
	assert.ErrorIs(t, err, economy.ErrInsufficientGold)
	assert.Equal(t, p.Stats, h.player(t, sess).Stats)
	assert.Equal(t, []feed.Kind{feed.KindSystem}, h.feeds.kinds())
}

func TestArmedBoostIsConsumedOnce(t *testing.T) {
	h := newHarness(t, config.LootInformational, 20, 0.5, 0.0)
	admin := h.admin(t, "gm")
	sess := h.join(t, "minsu")
	ctx := context.Background()

	require.NoError(t, h.svc.ArmBoost(ctx, admin, ArmBoostRequest{Username: "minsu"}))
	reply, err := h.svc.Enhance(ctx, sess, EnhanceRequest{RequestID: "r1"})
	require.NoError(t, err)
	assert.True(t, reply.BoostConsumed)
	assert.InDelta(t, enhance.BoostSuccessChance, reply.SuccessChance, 1e-9)

	reply, err = h.svc.Enhance(ctx, sess, EnhanceRequest{RequestID: "r2"})
	require.NoError(t, err)
	assert.False(t, reply.BoostConsumed)

	assert.ErrorIs(t, h.svc.ArmBoost(ctx, sess, ArmBoostRequest{Username: "minsu"}), ErrPermissionDenied)
	assert.ErrorIs(t, h.svc.ArmBoost(ctx, admin, ArmBoostRequest{Username: "ghost"}), postgres.ErrAccountNotFound)
}

// rearmingFlavor arms the boost again while an attempt is being narrated.
type rearmingFlavor struct {
	flavor.Canned
	arm func()
}

func (g rearmingFlavor) Flavor(ctx context.Context, w weapon.Weapon, success bool, newLevel int) (flavor.Text, error) {
	g.arm()
	return g.Canned.Flavor(ctx, w, success, newLevel)
}

func TestBoostArmedDuringAttemptIsKept(t *testing.T) {
	h := newHarness(t, config.LootInformational, 20, 0.5, 0.0)
	sess := h.join(t, "minsu")
	ctx := context.Background()
	h.svc.sessions.ArmBoost(sess.AccountID)
	h.svc.enhancer = enhance.NewResolver(rearmingFlavor{arm: func() {
		h.svc.sessions.ArmBoost(sess.AccountID)
	}}, zaptest.NewLogger(t))

	reply, err := h.svc.Enhance(ctx, sess, EnhanceRequest{RequestID: "r1"})
	require.NoError(t, err)
	assert.True(t, reply.BoostConsumed)
	assert.True(t, h.svc.sessions.BoostArmed(sess.AccountID), "the second arm is still pending")
}

func TestEnhanceElementNeedsAnElement(t *testing.T) {
	h := newHarness(t, config.LootInformational, 20, 0.0)
	sess := h.join(t, "minsu")
	ctx := context.Background()

	_, err := h.svc.EnhanceElement(ctx, sess, EnhanceElementRequest{RequestID: "e0"})
	assert.ErrorIs(t, err, economy.ErrNoElementAssigned)

	_, err = h.svc.AssignElement(ctx, sess, AssignElementRequest{RequestID: "a1", Element: "fire"})
	require.NoError(t, err)
	reply, err := h.svc.EnhanceElement(ctx, sess, EnhanceElementRequest{RequestID: "e1"})
	require.NoError(t, err)
	assert.Equal(t, enhance.Success, reply.Result)
	assert.Equal(t, 1, h.player(t, sess).Weapon.ElementLevel)
	assert.Contains(t, reply.Quote, "fire")
}

func TestShopOperations(t *testing.T) {
	h := newHarness(t, config.LootInformational, 20)
	sess := h.join(t, "minsu")
	ctx := context.Background()

	pv, err := h.svc.BuyScrolls(ctx, sess, BuyScrollsRequest{RequestID: "s1", Count: 2})
	require.NoError(t, err)
	assert.Equal(t, economy.StarterScrolls+2, pv.Scrolls)
	assert.Equal(t, economy.StarterGold-2*economy.ScrollPrice, pv.Gold)

	_, err = h.svc.BuyScrolls(ctx, sess, BuyScrollsRequest{RequestID: "s2", Count: 0})
	assert.ErrorIs(t, err, economy.ErrInvalidAmount)

	_, err = h.svc.AssignElement(ctx, sess, AssignElementRequest{RequestID: "a1", Element: "plasma"})
	assert.ErrorIs(t, err, economy.ErrInvalidElement)

	pv, err = h.svc.AssignElement(ctx, sess, AssignElementRequest{RequestID: "a2", Element: "water"})
	require.NoError(t, err)
	assert.Equal(t, weapon.Water, pv.Weapon.Element)

	_, err = h.svc.ResetWeapon(ctx, sess, ResetWeaponRequest{RequestID: "w1", Type: "bow"})
	assert.ErrorIs(t, err, economy.ErrInvalidWeaponType)
	pv, err = h.svc.ResetWeapon(ctx, sess, ResetWeaponRequest{RequestID: "w2", Type: "axe"})
	require.NoError(t, err)
	assert.Equal(t, weapon.Axe, pv.Weapon.Type)
	assert.Equal(t, weapon.None, pv.Weapon.Element)

	gold := pv.Gold
	pv, err = h.svc.ClaimAttendance(ctx, sess, ClaimAttendanceRequest{RequestID: "c1"})
	require.NoError(t, err)
	assert.Equal(t, gold+economy.AttendanceReward, pv.Gold)
	assert.False(t, pv.NextAttendance.IsZero())
	_, err = h.svc.ClaimAttendance(ctx, sess, ClaimAttendanceRequest{RequestID: "c2"})
	assert.ErrorIs(t, err, economy.ErrAttendanceNotReady)
}

func TestBattleWinTakesQuota(t *testing.T) {
	h := newHarness(t, config.LootInformational, 2, 0.0)
	me := h.join(t, "minsu")
	h.join(t, "bora")
	ctx := context.Background()

	reply, err := h.svc.Battle(ctx, me, BattleRequest{RequestID: "b1", Opponent: "bora"})
	require.NoError(t, err)
	assert.True(t, reply.Win)
	assert.Equal(t, battle.RewardBase(0), reply.Reward)
	assert.Equal(t, 1, reply.BattlesLeft)
	assert.Equal(t, economy.StarterGold+reply.Reward, reply.Player.Gold)
	assert.Equal(t, 1, h.player(t, me).Stats.Wins)

	replayed, err := h.svc.Battle(ctx, me, BattleRequest{RequestID: "b1", Opponent: "bora"})
	require.NoError(t, err)
	assert.Equal(t, reply, replayed)

	_, err = h.svc.Battle(ctx, me, BattleRequest{RequestID: "b2", Opponent: "bora"})
	require.NoError(t, err)
	_, err = h.svc.Battle(ctx, me, BattleRequest{RequestID: "b3", Opponent: "bora"})
	assert.ErrorIs(t, err, economy.ErrDailyQuotaExceeded)
	assert.Equal(t, 2, h.player(t, me).Stats.Wins)
}

func TestBattleOpponentMustExist(t *testing.T) {
	h := newHarness(t, config.LootInformational, 20)
	me := h.join(t, "minsu")
	ctx := context.Background()

	_, err := h.svc.Battle(ctx, me, BattleRequest{RequestID: "b1"})
	assert.ErrorIs(t, err, economy.ErrOpponentNotFound)
	_, err = h.svc.Battle(ctx, me, BattleRequest{RequestID: "b2", Opponent: "minsu"})
	assert.ErrorIs(t, err, economy.ErrOpponentNotFound)
	_, err = h.svc.Battle(ctx, me, BattleRequest{RequestID: "b3", Opponent: "ghost"})
	assert.ErrorIs(t, err, economy.ErrOpponentNotFound)
	assert.Equal(t, 20, h.svc.battlesLeft(ctx, me.AccountID))
}

// spiritSetup gives the victim a +4 weapon so the attacker is eligible for
// the comeback, then scripts a lost normal roll and a hit spirit roll.
func spiritSetup(t *testing.T, loot string) (*harness, *session.Session, *session.Session) {
	t.Helper()
	h := newHarness(t, loot, 20, 0.99, 0.0)
	me := h.join(t, "minsu")
	victim := h.join(t, "bora")
	p := h.player(t, victim)
	p.Weapon.Level = 4
	p.Stats.Gold = 1000
	h.store.setPlayer(p)
	return h, me, victim
}

func TestBattleSpiritLootInformational(t *testing.T) {
	h, me, victim := spiritSetup(t, config.LootInformational)

	reply, err := h.svc.Battle(context.Background(), me, BattleRequest{RequestID: "b1", Opponent: "bora"})
	require.NoError(t, err)
	assert.True(t, reply.Win)
	assert.True(t, reply.Spirit)
	assert.Equal(t, int64(500), reply.Loot)
	assert.False(t, reply.LootTransferred)
	assert.Equal(t, battle.RewardBase(4)+500, reply.Reward)
	assert.Equal(t, int64(1000), h.player(t, victim).Stats.Gold)
}

func TestBattleSpiritLootTransfer(t *testing.T) {
	h, me, victim := spiritSetup(t, config.LootTransfer)

	reply, err := h.svc.Battle(context.Background(), me, BattleRequest{RequestID: "b1", Opponent: "bora"})
	require.NoError(t, err)
	assert.True(t, reply.LootTransferred)
	assert.Equal(t, int64(500), h.player(t, victim).Stats.Gold)
	assert.Equal(t, economy.StarterGold+battle.RewardBase(4)+500, h.player(t, me).Stats.Gold)
	assert.Equal(t, 0, h.player(t, victim).Stats.Losses)
}

func TestBattleSpiritLootRecomputedOnStaleBalance(t *testing.T) {
	h, me, victim := spiritSetup(t, config.LootTransfer)
	calls := 0
	h.store.beforeLoot = func(v *postgres.Player) {
		calls++
		if calls == 1 {
			v.Stats.Gold = 2000
		}
	}

	reply, err := h.svc.Battle(context.Background(), me, BattleRequest{RequestID: "b1", Opponent: "bora"})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, int64(1000), reply.Loot)
	assert.True(t, reply.LootTransferred)
	assert.Equal(t, int64(1000), h.player(t, victim).Stats.Gold)
	assert.Equal(t, economy.StarterGold+battle.RewardBase(4)+1000, h.player(t, me).Stats.Gold)
}

func TestBattleRefundsQuotaWhenLootNeverSettles(t *testing.T) {
	h, me, _ := spiritSetup(t, config.LootTransfer)
	h.store.beforeLoot = func(v *postgres.Player) { v.Stats.Gold += 10 }

	_, err := h.svc.Battle(context.Background(), me, BattleRequest{RequestID: "b1", Opponent: "bora"})
	assert.ErrorIs(t, err, postgres.ErrStaleSnapshot)
	assert.Equal(t, 20, h.svc.battlesLeft(context.Background(), me.AccountID))
	assert.Equal(t, economy.StarterGold, h.player(t, me).Stats.Gold)
}

func TestChatDispatch(t *testing.T) {
	h := newHarness(t, config.LootInformational, 20, 0.5, 0.0)
	sess := h.join(t, "minsu")
	ctx := context.Background()

	reply, err := h.svc.Chat(ctx, sess, ChatRequest{RequestID: "c1", Text: "  hello realm  "})
	require.NoError(t, err)
	require.NotNil(t, reply.Message)
	assert.Equal(t, "hello realm", reply.Message.Body)
	assert.Equal(t, feed.KindChat, reply.Message.Kind)

	reply, err = h.svc.Chat(ctx, sess, ChatRequest{RequestID: "c2", Text: "/enhance"})
	require.NoError(t, err)
	require.NotNil(t, reply.Enhance)
	assert.Equal(t, 1, reply.Enhance.NewLevel)

	before := h.player(t, sess)
	for _, text := range []string{"/scroll", "/주문서"} {
		reply, err = h.svc.Chat(ctx, sess, ChatRequest{RequestID: "buy" + text, Text: text})
		require.NoError(t, err)
		require.NotNil(t, reply.Player, text)
		assert.Nil(t, reply.Enhance, "%s buys instead of enhancing", text)
	}
	after := h.player(t, sess)
	assert.Equal(t, before.Stats.Scrolls+2, after.Stats.Scrolls)
	assert.Equal(t, before.Stats.Gold-2*economy.ScrollPrice, after.Stats.Gold)
	assert.Equal(t, before.Weapon, after.Weapon)

	reply, err = h.svc.Chat(ctx, sess, ChatRequest{RequestID: "c3", Text: "/showoff"})
	require.NoError(t, err)
	require.NotNil(t, reply.Message)
	assert.Equal(t, feed.KindShowoff, reply.Message.Kind)

	_, err = h.svc.Chat(ctx, sess, ChatRequest{RequestID: "c4", Text: "   "})
	assert.ErrorIs(t, err, ErrEmptyMessage)
	_, err = h.svc.Chat(ctx, sess, ChatRequest{RequestID: "c5", Text: strings.Repeat("a", MaxMessageLength+1)})
	assert.ErrorIs(t, err, ErrMessageTooLong)
}

func TestWhisperVisibility(t *testing.T) {
	h := newHarness(t, config.LootInformational, 20)
	minsu := h.join(t, "minsu")
	bora := h.join(t, "bora")
	jiho := h.join(t, "jiho")
	ctx := context.Background()

	_, err := h.svc.Whisper(ctx, minsu, WhisperRequest{To: "ghost", Text: "hi"})
	assert.ErrorIs(t, err, ErrRecipientNotFound)
	_, err = h.svc.Whisper(ctx, minsu, WhisperRequest{To: "minsu", Text: "hi"})
	assert.ErrorIs(t, err, ErrRecipientNotFound)

	m, err := h.svc.Whisper(ctx, minsu, WhisperRequest{To: "bora", Text: "meet at the forge"})
	require.NoError(t, err)

	has := func(msgs []feed.Message) bool {
		for _, x := range msgs {
			if x.ID == m.ID {
				return true
			}
		}
		return false
	}
	assert.True(t, has(h.svc.Feed(ctx, minsu).Messages))
	assert.True(t, has(h.svc.Feed(ctx, bora).Messages))
	assert.False(t, has(h.svc.Feed(ctx, jiho).Messages))
	assert.False(t, has(h.svc.PublicFeed().Messages))
}

func TestSubscribeSendsBacklogThenLive(t *testing.T) {
	h := newHarness(t, config.LootInformational, 20)
	sess := h.join(t, "minsu")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan feed.Message, 8)
	done := make(chan error, 1)
	go func() {
		done <- h.svc.Subscribe(ctx, sess, func(m feed.Message) error {
			got <- m
			return nil
		})
	}()

	first := <-got
	assert.Equal(t, feed.KindSystem, first.Kind)

	require.Eventually(t, func() bool { return h.hub.Subscribers() == 1 }, time.Second, 5*time.Millisecond)
	_, err := h.svc.Chat(context.Background(), sess, ChatRequest{RequestID: "c1", Text: "live"})
	require.NoError(t, err)
	select {
	case m := <-got:
		assert.Equal(t, "live", m.Body)
	case <-time.After(time.Second):
		t.Fatal("live message not delivered")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("subscription did not end")
	}
	assert.Equal(t, 0, h.hub.Subscribers())
}

func TestHydrateLoadsStoredBacklog(t *testing.T) {
	h := newHarness(t, config.LootInformational, 20)
	now := time.Now()
	for i := range 3 {
		require.NoError(t, h.feeds.Append(context.Background(),
			feed.NewMessage(0, "system", fmt.Sprintf("notice %d", i), feed.SystemEvent{}, now)))
	}
	require.NoError(t, h.svc.Hydrate(context.Background()))
	assert.Len(t, h.hub.Recent(""), 3)
}

func TestAdminOperations(t *testing.T) {
	h := newHarness(t, config.LootInformational, 20, 0.0)
	admin := h.admin(t, "gm")
	minsu := h.join(t, "minsu")
	h.join(t, "bora")
	ctx := context.Background()

	_, err := h.svc.GiftGold(ctx, minsu, GiftGoldRequest{Username: "bora", Amount: 10})
	assert.ErrorIs(t, err, ErrPermissionDenied)
	_, err = h.svc.GiftGold(ctx, admin, GiftGoldRequest{Username: "bora", Amount: 0})
	assert.ErrorIs(t, err, economy.ErrInvalidAmount)
	pv, err := h.svc.GiftGold(ctx, admin, GiftGoldRequest{Username: "bora", Amount: 1234})
	require.NoError(t, err)
	assert.Equal(t, economy.StarterGold+1234, pv.Gold)

	_, err = h.svc.Battle(ctx, minsu, BattleRequest{RequestID: "b1", Opponent: "bora"})
	require.NoError(t, err)
	reply, err := h.svc.ResetAll(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, int64(2), reply.Count)
	assert.Equal(t, 0, h.player(t, minsu).Stats.Wins)
	assert.Equal(t, 20, h.svc.battlesLeft(ctx, minsu.AccountID))

	purged, err := h.svc.PurgeFeed(ctx, admin, PurgeFeedRequest{})
	require.NoError(t, err)
	assert.Positive(t, purged.Count)
	assert.Empty(t, h.hub.Recent(""))
	_, err = h.svc.PurgeFeed(ctx, admin, PurgeFeedRequest{OlderThanDays: -1})
	assert.ErrorIs(t, err, economy.ErrInvalidAmount)

	_, err = h.svc.PurgeInactiveAccounts(ctx, admin, PurgeInactiveRequest{Days: 0})
	assert.ErrorIs(t, err, economy.ErrInvalidAmount)
	h.svc.now = func() time.Time { return time.Now().Add(48 * time.Hour) }
	gone, err := h.svc.PurgeInactiveAccounts(ctx, admin, PurgeInactiveRequest{Days: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"bora", "minsu"}, gone.Names)
	_, err = h.svc.Authorize(minsu.Token)
	assert.ErrorIs(t, err, ErrUnauthenticated, "purged accounts lose their session")
	_, err = h.store.Get(ctx, admin.AccountID)
	assert.NoError(t, err, "admins are never purged")
}

func TestRolloverQuotaPrunesPreviousDays(t *testing.T) {
	h := newHarness(t, config.LootInformational, 20)
	ctx := context.Background()
	yesterday := time.Now().Add(-24 * time.Hour)
	_, err := h.quota.Take(ctx, 7, yesterday)
	require.NoError(t, err)

	require.NoError(t, h.svc.RolloverQuota(ctx, time.Now()))
	assert.Equal(t, 0, h.quota.Prune(time.Now()))
}

func TestLeaderboardAndOdds(t *testing.T) {
	h := newHarness(t, config.LootInformational, 20, 0.0)
	me := h.join(t, "minsu")
	h.join(t, "bora")
	h.join(t, "jiho")
	ctx := context.Background()
	_, err := h.svc.Battle(ctx, me, BattleRequest{RequestID: "b1", Opponent: "bora"})
	require.NoError(t, err)

	board, err := h.svc.Leaderboard(ctx, LeaderboardRequest{Limit: 2})
	require.NoError(t, err)
	require.Len(t, board.Entries, 2)
	assert.Equal(t, "minsu", board.Entries[0].Name)

	o, err := Odds(OddsRequest{Level: 0})
	require.NoError(t, err)
	assert.InDelta(t, 0.95, o.SuccessChance, 1e-9)
	assert.InDelta(t, 0.05, o.MaintainChance, 1e-9)
	assert.InDelta(t, 0, o.DestroyChance, 1e-9)

	o, err = Odds(OddsRequest{Level: 10, UseScroll: true})
	require.NoError(t, err)
	assert.InDelta(t, 0.70, o.SuccessChance, 1e-9)
	assert.InDelta(t, 0.30, o.MaintainChance, 1e-9)
	assert.InDelta(t, 0, o.DestroyChance, 1e-9)

	_, err = Odds(OddsRequest{Level: weapon.MaxLevel})
	assert.ErrorIs(t, err, economy.ErrInvalidAmount)

	table := OddsTable()
	require.Len(t, table, weapon.MaxLevel)
	for _, row := range table {
		assert.InDelta(t, 1, row.SuccessChance+row.MaintainChance+row.DestroyChance, 1e-9, "level %d", row.Level)
	}
}

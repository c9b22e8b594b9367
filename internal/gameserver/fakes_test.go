package gameserver

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/bitcory/knight/internal/game/feed"
	"github.com/bitcory/knight/internal/storage/postgres"
)

// memStore implements Accounts and Players over maps.
type memStore struct {
	mu        sync.Mutex
	nextID    int64
	passwords map[string]string
	accounts  map[int64]postgres.Account
	players   map[int64]postgres.Player

	// beforeLoot runs inside SaveWithLoot before the balance check.
	beforeLoot func(victim *postgres.Player)
}

func newMemStore() *memStore {
	return &memStore{
		passwords: make(map[string]string),
		accounts:  make(map[int64]postgres.Account),
		players:   make(map[int64]postgres.Player),
	}
}

func (m *memStore) Register(_ context.Context, username, password string, starter postgres.Player) (postgres.Account, postgres.Player, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.passwords[username]; ok {
		return postgres.Account{}, postgres.Player{}, postgres.ErrAccountExists
	}
	m.nextID++
	acct := postgres.Account{ID: m.nextID, Username: username, Role: postgres.RolePlayer, CreatedAt: time.Now()}
	m.passwords[username] = password
	m.accounts[acct.ID] = acct
	starter.AccountID, starter.Username, starter.Role = acct.ID, username, acct.Role
	m.players[acct.ID] = starter
	return acct, starter, nil
}

func (m *memStore) Authenticate(_ context.Context, username, password string) (postgres.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pw, ok := m.passwords[username]
	if !ok {
		return postgres.Account{}, postgres.ErrAccountNotFound
	}
	if pw != password {
		return postgres.Account{}, postgres.ErrInvalidCredentials
	}
	for id, a := range m.accounts {
		if a.Username == username {
			a.LastLoginAt = time.Now()
			m.accounts[id] = a
			return a, nil
		}
	}
	return postgres.Account{}, postgres.ErrAccountNotFound
}

func (m *memStore) DeleteInactive(_ context.Context, cutoff time.Time) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var names []string
	for id, a := range m.accounts {
		if a.Role != postgres.RoleAdmin && a.LastLoginAt.Before(cutoff) {
			names = append(names, a.Username)
			delete(m.accounts, id)
			delete(m.players, id)
			delete(m.passwords, a.Username)
		}
	}
	slices.Sort(names)
	return names, nil
}

func (m *memStore) promote(username string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, a := range m.accounts {
		if a.Username == username {
			a.Role = postgres.RoleAdmin
			m.accounts[id] = a
			p := m.players[id]
			p.Role = postgres.RoleAdmin
			m.players[id] = p
		}
	}
}

func (m *memStore) Get(_ context.Context, accountID int64) (postgres.Player, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.players[accountID]
	if !ok {
		return postgres.Player{}, postgres.ErrPlayerNotFound
	}
	return p, nil
}

func (m *memStore) GetByUsername(_ context.Context, username string) (postgres.Player, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.players {
		if p.Username == username {
			return p, nil
		}
	}
	return postgres.Player{}, postgres.ErrPlayerNotFound
}

func (m *memStore) ListAll(context.Context) ([]postgres.Player, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]postgres.Player, 0, len(m.players))
	for _, p := range m.players {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b postgres.Player) int { return cmp.Compare(a.AccountID, b.AccountID) })
	return out, nil
}

func (m *memStore) Save(_ context.Context, p postgres.Player) (postgres.Player, error) {
	if err := p.Validate(); err != nil {
		return postgres.Player{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.players[p.AccountID]; !ok {
		return postgres.Player{}, postgres.ErrPlayerNotFound
	}
	p.UpdatedAt = time.Now()
	m.players[p.AccountID] = p
	return p, nil
}

func (m *memStore) SaveWithLoot(_ context.Context, attacker postgres.Player, victimID, expectedGold, loot int64) (postgres.Player, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	victim, ok := m.players[victimID]
	if !ok {
		return postgres.Player{}, postgres.ErrPlayerNotFound
	}
	if m.beforeLoot != nil {
		m.beforeLoot(&victim)
		m.players[victimID] = victim
	}
	if victim.Stats.Gold != expectedGold {
		return postgres.Player{}, postgres.ErrStaleSnapshot
	}
	victim.Stats.Gold -= loot
	m.players[victimID] = victim
	m.players[attacker.AccountID] = attacker
	return attacker, nil
}

func (m *memStore) ResetAll(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, p := range m.players {
		if p.Role == postgres.RoleAdmin {
			continue
		}
		fresh := postgres.NewStarterPlayer()
		fresh.AccountID, fresh.Username, fresh.Role = p.AccountID, p.Username, p.Role
		m.players[id] = fresh
		n++
	}
	return n, nil
}

func (m *memStore) setPlayer(p postgres.Player) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.players[p.AccountID] = p
}

// memFeed implements FeedStore.
type memFeed struct {
	mu   sync.Mutex
	msgs []feed.Message
}

func (f *memFeed) Append(_ context.Context, m feed.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, m)
	return nil
}

func (f *memFeed) Recent(_ context.Context, limit int) ([]feed.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	start := max(0, len(f.msgs)-limit)
	return slices.Clone(f.msgs[start:]), nil
}

func (f *memFeed) PurgeBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	before := len(f.msgs)
	if cutoff.IsZero() {
		f.msgs = nil
		return int64(before), nil
	}
	f.msgs = slices.DeleteFunc(f.msgs, func(m feed.Message) bool { return m.CreatedAt.Before(cutoff) })
	return int64(before - len(f.msgs)), nil
}

func (f *memFeed) kinds() []feed.Kind {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]feed.Kind, len(f.msgs))
	for i, m := range f.msgs {
		out[i] = m.Kind
	}
	return out
}

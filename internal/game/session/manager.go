// Package session tracks logged-in players, serializes each account's
// actions and remembers recent request IDs so retries are not applied twice.
package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultDedupeWindow is how many recent request IDs are remembered per account.
const DefaultDedupeWindow = 32

// Session is one logged-in player.
type Session struct {
	Token      string
	AccountID  int64
	Username   string
	Role       string
	LoggedInAt time.Time
}

// IsAdmin reports whether the session carries the admin role.
func (s *Session) IsAdmin() bool {
	return s.Role == "admin"
}

// accountState is the per-account bookkeeping that outlives a single session.
type accountState struct {
	action     sync.Mutex
	boostArmed bool
	boostGen   uint64
	replies    map[string]any
	order      []string
}

// Manager tracks sessions by token and account.
// All methods are safe for concurrent use.
type Manager struct {
	mu       sync.Mutex
	byToken  map[string]*Session
	byAcct   map[int64]*Session
	accounts map[int64]*accountState
	window   int
	now      func() time.Time
}

// NewManager creates an empty session Manager remembering window request IDs
// per account.
//
// Postcondition: window <= 0 selects DefaultDedupeWindow.
func NewManager(window int) *Manager {
	if window <= 0 {
		window = DefaultDedupeWindow
	}
	return &Manager{
		byToken:  make(map[string]*Session),
		byAcct:   make(map[int64]*Session),
		accounts: make(map[int64]*accountState),
		window:   window,
		now:      time.Now,
	}
}

// Open starts a session for the account. An existing session for the same
// account is replaced and its token stops working.
//
// Precondition: accountID > 0; username must be non-empty.
// Postcondition: Returns a session with a fresh token.
func (m *Manager) Open(accountID int64, username, role string) (*Session, error) {
	if accountID <= 0 || username == "" {
		return nil, fmt.Errorf("invalid session for account %d %q", accountID, username)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if old, ok := m.byAcct[accountID]; ok {
		delete(m.byToken, old.Token)
	}
	sess := &Session{
		Token:      uuid.NewString(),
		AccountID:  accountID,
		Username:   username,
		Role:       role,
		LoggedInAt: m.now(),
	}
	m.byToken[sess.Token] = sess
	m.byAcct[accountID] = sess
	return sess, nil
}

// Get returns the session for token.
func (m *Manager) Get(token string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.byToken[token]
	return sess, ok
}

// ByAccount returns the live session of accountID.
func (m *Manager) ByAccount(accountID int64) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.byAcct[accountID]
	return sess, ok
}

// Close ends the session for token.
//
// Postcondition: Returns an error if token is unknown.
func (m *Manager) Close(token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.byToken[token]
	if !ok {
		return fmt.Errorf("session %q not found", token)
	}
	delete(m.byToken, token)
	if cur, ok := m.byAcct[sess.AccountID]; ok && cur == sess {
		delete(m.byAcct, sess.AccountID)
	}
	return nil
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byToken)
}

func (m *Manager) state(accountID int64) *accountState {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.accounts[accountID]
	if !ok {
		st = &accountState{replies: make(map[string]any)}
		m.accounts[accountID] = st
	}
	return st
}

// Lock serializes actions for accountID and returns the unlock function.
// Resolutions for one account never interleave.
func (m *Manager) Lock(accountID int64) (unlock func()) {
	st := m.state(accountID)
	st.action.Lock()
	return st.action.Unlock
}

// ArmBoost arms the one-shot debug boost for accountID. Every arm starts a
// new generation.
func (m *Manager) ArmBoost(accountID int64) {
	st := m.state(accountID)
	m.mu.Lock()
	defer m.mu.Unlock()
	st.boostArmed = true
	st.boostGen++
}

// BoostArmed reports whether the debug boost is armed for accountID.
func (m *Manager) BoostArmed(accountID int64) bool {
	armed, _ := m.Boost(accountID)
	return armed
}

// Boost reports whether the debug boost is armed and the generation of the
// arm, to be passed to DisarmBoost once an attempt consumed it.
func (m *Manager) Boost(accountID int64) (armed bool, gen uint64) {
	st := m.state(accountID)
	m.mu.Lock()
	defer m.mu.Unlock()
	return st.boostArmed, st.boostGen
}

// DisarmBoost clears the debug boost armed at generation gen.
//
// Postcondition: Returns false and leaves the boost armed if it was re-armed
// after gen was read.
func (m *Manager) DisarmBoost(accountID int64, gen uint64) bool {
	st := m.state(accountID)
	m.mu.Lock()
	defer m.mu.Unlock()
	if st.boostGen != gen {
		return false
	}
	st.boostArmed = false
	return true
}

// Reply returns the remembered reply for requestID. An empty requestID is
// never remembered.
//
// Precondition: The caller holds Lock(accountID).
func (m *Manager) Reply(accountID int64, requestID string) (any, bool) {
	if requestID == "" {
		return nil, false
	}
	st := m.state(accountID)
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := st.replies[requestID]
	return r, ok
}

// Remember stores reply under requestID, evicting the oldest entry once the
// window is full.
//
// Precondition: The caller holds Lock(accountID).
func (m *Manager) Remember(accountID int64, requestID string, reply any) {
	if requestID == "" {
		return
	}
	st := m.state(accountID)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := st.replies[requestID]; !ok {
		st.order = append(st.order, requestID)
	}
	st.replies[requestID] = reply
	for len(st.order) > m.window {
		delete(st.replies, st.order[0])
		st.order = st.order[1:]
	}
}

// AccountOf returns the account id of username's live session.
func (m *Manager) AccountOf(username string) (int64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, sess := range m.byAcct {
		if sess.Username == username {
			return id, true
		}
	}
	return 0, false
}

// Forget closes the account's session and clears its boost and remembered
// replies, used when an account is deleted. It waits for an action in
// progress; the account keeps its lock so later actions stay serialized.
//
// Precondition: The caller does not hold Lock(accountID).
func (m *Manager) Forget(accountID int64) {
	st := m.state(accountID)
	st.action.Lock()
	defer st.action.Unlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if sess, ok := m.byAcct[accountID]; ok {
		delete(m.byToken, sess.Token)
		delete(m.byAcct, accountID)
	}
	st.boostArmed = false
	clear(st.replies)
	st.order = nil
}

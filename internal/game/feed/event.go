// Package feed is the global activity feed: typed events, whispers, chat
// commands and a fan-out hub that keeps the most recent messages.
package feed

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bitcory/knight/internal/game/weapon"
)

// Kind tags a feed message.
type Kind string

const (
	KindEnhancement Kind = "enhancement"
	KindBattle      Kind = "battle"
	KindShowoff     Kind = "showoff"
	KindChat        Kind = "chat"
	KindSystem      Kind = "system"
	KindWhisper     Kind = "whisper"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindEnhancement, KindBattle, KindShowoff, KindChat, KindSystem, KindWhisper:
		return true
	}
	return false
}

// Event is the kind-specific payload of a message.
type Event interface {
	Kind() Kind
}

// EnhancementEvent announces a weapon or element enhancement.
type EnhancementEvent struct {
	Result       string         `json:"result"`
	Element      bool           `json:"element,omitempty"`
	PrevLevel    int            `json:"prevLevel"`
	NewLevel     int            `json:"newLevel"`
	WeaponName   string         `json:"weaponName"`
	WeaponType   weapon.Type    `json:"weaponType"`
	WeaponElem   weapon.Element `json:"weaponElement,omitempty"`
	Blessed      bool           `json:"blessed,omitempty"`
	GoldChange   int64          `json:"goldChange"`
	Quote        string         `json:"quote,omitempty"`
	Description  string         `json:"description,omitempty"`
	ElementLevel int            `json:"elementLevel,omitempty"`
}

func (EnhancementEvent) Kind() Kind { return KindEnhancement }

// BattleEvent announces a battle result.
type BattleEvent struct {
	OpponentName string `json:"opponentName"`
	Win          bool   `json:"win"`
	GoldChange   int64  `json:"goldChange"`
	Spirit       bool   `json:"spirit,omitempty"`
	Loot         int64  `json:"loot,omitempty"`
	WeaponLevel  int    `json:"weaponLevel"`
	OpponentLvl  int    `json:"opponentLevel"`
	Log          string `json:"log,omitempty"`
}

func (BattleEvent) Kind() Kind { return KindBattle }

// ShowoffEvent shows a weapon to everyone.
type ShowoffEvent struct {
	WeaponLevel  int            `json:"weaponLevel"`
	WeaponName   string         `json:"weaponName"`
	WeaponType   weapon.Type    `json:"weaponType"`
	Description  string         `json:"weaponDescription"`
	Element      weapon.Element `json:"weaponElement,omitempty"`
	ElementLevel int            `json:"weaponElementLevel,omitempty"`
	AttackPower  int            `json:"attackPower"`
	Grade        weapon.Grade   `json:"grade"`
}

func (ShowoffEvent) Kind() Kind { return KindShowoff }

// ChatEvent is a plain chat line.
type ChatEvent struct{}

func (ChatEvent) Kind() Kind { return KindChat }

// SystemEvent is an operator or server notice.
type SystemEvent struct{}

func (SystemEvent) Kind() Kind { return KindSystem }

// WhisperEvent is a private line between two players.
type WhisperEvent struct{}

func (WhisperEvent) Kind() Kind { return KindWhisper }

// Message is one feed entry.
//
// Invariant: Event.Kind() == Kind. WhisperTo is set iff Kind == KindWhisper.
type Message struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"type"`
	AccountID int64     `json:"accountId"`
	Sender    string    `json:"sender"`
	WhisperTo string    `json:"whisperTo,omitempty"`
	Body      string    `json:"content"`
	Event     Event     `json:"metadata,omitempty"`
	CreatedAt time.Time `json:"timestamp"`
}

// NewMessage builds a message for ev with a fresh ID.
func NewMessage(accountID int64, sender, body string, ev Event, now time.Time) Message {
	return Message{
		ID:        uuid.NewString(),
		Kind:      ev.Kind(),
		AccountID: accountID,
		Sender:    sender,
		Body:      body,
		Event:     ev,
		CreatedAt: now,
	}
}

// NewWhisper builds a whisper from sender to recipient.
func NewWhisper(accountID int64, sender, recipient, body string, now time.Time) Message {
	m := NewMessage(accountID, sender, body, WhisperEvent{}, now)
	m.WhisperTo = recipient
	return m
}

// VisibleTo reports whether viewer may see m. Whispers are visible only to
// their sender and recipient; everything else is public.
func (m Message) VisibleTo(viewer string) bool {
	if m.Kind != KindWhisper {
		return true
	}
	return viewer != "" && (viewer == m.Sender || viewer == m.WhisperTo)
}

// EncodePayload serializes m.Event for storage.
func EncodePayload(ev Event) ([]byte, error) {
	if ev == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(ev)
}

// DecodePayload rebuilds the typed event for kind from its stored payload.
func DecodePayload(kind Kind, payload []byte) (Event, error) {
	var ev Event
	switch kind {
	case KindEnhancement:
		var e EnhancementEvent
		if err := unmarshalPayload(payload, &e); err != nil {
			return nil, err
		}
		ev = e
	case KindBattle:
		var e BattleEvent
		if err := unmarshalPayload(payload, &e); err != nil {
			return nil, err
		}
		ev = e
	case KindShowoff:
		var e ShowoffEvent
		if err := unmarshalPayload(payload, &e); err != nil {
			return nil, err
		}
		ev = e
	case KindChat:
		ev = ChatEvent{}
	case KindSystem:
		ev = SystemEvent{}
	case KindWhisper:
		ev = WhisperEvent{}
	default:
		return nil, fmt.Errorf("unknown feed kind %q", kind)
	}
	return ev, nil
}

func unmarshalPayload(payload []byte, v any) error {
	if len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("decoding feed payload: %w", err)
	}
	return nil
}

// UnmarshalJSON restores the typed Event from the "metadata" object using
// the message kind.
func (m *Message) UnmarshalJSON(data []byte) error {
	type plain Message
	var wire struct {
		plain
		Event json.RawMessage `json:"metadata,omitempty"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	ev, err := DecodePayload(wire.Kind, wire.Event)
	if err != nil {
		return err
	}
	*m = Message(wire.plain)
	m.Event = ev
	return nil
}

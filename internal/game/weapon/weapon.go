// Package weapon defines the weapon value type carried by every player and
// the fixed per-type attributes the resolvers depend on.
package weapon

import (
	"fmt"
	"math"

	"github.com/google/uuid"
)

// MaxLevel is the highest enhancement level a weapon can reach.
const MaxLevel = 20

// MaxElementLevel is the highest elemental enhancement level.
const MaxElementLevel = 10

// Type is a weapon family. It is fixed at creation and only changed by an
// explicit reset.
type Type string

const (
	Sword  Type = "sword"
	Axe    Type = "axe"
	Hammer Type = "hammer"
	Spear  Type = "spear"
)

// Types lists every weapon family in display order.
var Types = []Type{Sword, Axe, Hammer, Spear}

// Valid reports whether t is a recognised weapon family.
func (t Type) Valid() bool {
	switch t {
	case Sword, Axe, Hammer, Spear:
		return true
	}
	return false
}

// BaseDamage returns the creation-time damage for the family.
//
// Postcondition: Hammer=15, Axe=12, every other family 10.
func (t Type) BaseDamage() int {
	switch t {
	case Hammer:
		return 15
	case Axe:
		return 12
	default:
		return 10
	}
}

// BaseName returns the name a fresh or rebuilt weapon of this family carries.
func (t Type) BaseName() string {
	switch t {
	case Axe:
		return "Dull Axe"
	case Hammer:
		return "Cracked Hammer"
	case Spear:
		return "Bent Spear"
	default:
		return "Rusty Sword"
	}
}

// ParseType converts a wire string into a Type.
//
// Postcondition: Returns a valid Type or a non-nil error.
func ParseType(s string) (Type, error) {
	t := Type(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown weapon type %q", s)
	}
	return t, nil
}

// Element is an optional elemental affinity. None is equivalent to absent.
type Element string

const (
	None  Element = ""
	Fire  Element = "fire"
	Water Element = "water"
	Light Element = "light"
	Dark  Element = "dark"
	Curse Element = "curse"
)

// Elements lists every assignable element (None excluded).
var Elements = []Element{Fire, Water, Light, Dark, Curse}

// Valid reports whether e is None or a recognised element.
func (e Element) Valid() bool {
	switch e {
	case None, Fire, Water, Light, Dark, Curse:
		return true
	}
	return false
}

// ParseElement converts a wire string into an Element. "none" and "" map to None.
func ParseElement(s string) (Element, error) {
	if s == "none" {
		return None, nil
	}
	e := Element(s)
	if !e.Valid() {
		return None, fmt.Errorf("unknown element %q", s)
	}
	return e, nil
}

const (
	starterDescription = "A worn blade handed to every new recruit."
	rebuiltDescription = "A new weapon hammered together from the wreckage of a destroyed one."
	resetDescription   = "A freshly forged weapon, still smelling of the furnace."
)

// Weapon is one weapon instance.
//
// Invariant: 0 <= Level <= MaxLevel; 0 <= ElementLevel <= MaxElementLevel.
// Invariant: ID changes whenever the instance is destroyed or replaced.
type Weapon struct {
	ID               string
	Type             Type
	Name             string
	Description      string
	Level            int
	BaseDamage       int
	TotalEnhanceCost int64
	Element          Element
	ElementLevel     int
}

// New builds a level-0 weapon of family t with a fresh ID.
//
// Precondition: t must be valid.
// Postcondition: Level, TotalEnhanceCost and ElementLevel are 0; Element is None.
func New(t Type, description string) Weapon {
	return Weapon{
		ID:          uuid.NewString(),
		Type:        t,
		Name:        t.BaseName(),
		Description: description,
		BaseDamage:  t.BaseDamage(),
	}
}

// NewStarter returns the level-0 sword every account starts with.
func NewStarter() Weapon {
	return New(Sword, starterDescription)
}

// Rebuilt returns the replacement for a destroyed weapon: same family,
// everything else reset.
func (w Weapon) Rebuilt() Weapon {
	return New(w.Type, rebuiltDescription)
}

// Reset replaces the weapon with a fresh level-0 weapon of family t.
//
// Precondition: t must be valid.
func Reset(t Type) Weapon {
	return New(t, resetDescription)
}

// HasElement reports whether an element is assigned.
func (w Weapon) HasElement() bool {
	return w.Element != None
}

// DisplayName renders the level-prefixed name shown in feeds, e.g. "[+7] Rusty Sword".
func (w Weapon) DisplayName() string {
	return fmt.Sprintf("[+%d] %s", w.Level, w.Name)
}

// AttackPower is the show-off attack figure: base + L*10 + floor(L^1.8).
//
// Postcondition: strictly increasing in Level for a fixed BaseDamage.
func AttackPower(w Weapon) int {
	l := float64(w.Level)
	return w.BaseDamage + w.Level*10 + int(math.Floor(math.Pow(l, 1.8)))
}

// Grade is the visual rarity band of a level.
type Grade string

const (
	GradeCommon    Grade = "common"
	GradeRare      Grade = "rare"
	GradeEpic      Grade = "epic"
	GradeLegendary Grade = "legendary"
	GradeMythic    Grade = "mythic"
)

// GradeOf returns the rarity band for level.
//
// Postcondition: <5 common, <10 rare, <15 epic, <20 legendary, otherwise mythic.
func GradeOf(level int) Grade {
	switch {
	case level >= 20:
		return GradeMythic
	case level >= 15:
		return GradeLegendary
	case level >= 10:
		return GradeEpic
	case level >= 5:
		return GradeRare
	default:
		return GradeCommon
	}
}

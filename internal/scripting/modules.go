package scripting

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/bitcory/knight/internal/game/weapon"
)

// RegisterModules registers the knight.* helper table into L.
//
//	knight.MAX_LEVEL, knight.MAX_ELEMENT_LEVEL
//	knight.grade(level)               -> "common" | "rare" | "epic" | "legendary" | "mythic"
//	knight.base_name(type)            -> base weapon name for a family
//
// Precondition: L must be from NewSandboxedState.
// Postcondition: knight global is defined in L.
func RegisterModules(L *lua.LState) {
	mod := L.NewTable()
	L.SetField(mod, "MAX_LEVEL", lua.LNumber(weapon.MaxLevel))
	L.SetField(mod, "MAX_ELEMENT_LEVEL", lua.LNumber(weapon.MaxElementLevel))
	L.SetField(mod, "grade", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LString(weapon.GradeOf(L.CheckInt(1))))
		return 1
	}))
	L.SetField(mod, "base_name", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LString(weapon.Type(L.CheckString(1)).BaseName()))
		return 1
	}))
	L.SetGlobal("knight", mod)
}

package flavor

import (
	"context"
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"github.com/bitcory/knight/internal/game/weapon"
	"github.com/bitcory/knight/internal/scripting"
)

// Lua hook names looked up by ScriptGenerator.
const (
	FlavorHook    = "enhance_flavor"
	BattleLogHook = "battle_log"
)

// ScriptGenerator narrates through operator-supplied Lua hooks:
//
//	function enhance_flavor(type, name, level, new_level, success)
//	  return { quote = "...", weapon_name = "...", description = "..." }
//	end
//	function battle_log(name, level, opponent, opponent_level, won) return "..." end
type ScriptGenerator struct {
	scripts *scripting.Manager
}

// NewScriptGenerator wraps a loaded scripting.Manager.
//
// Precondition: scripts must be non-nil.
func NewScriptGenerator(scripts *scripting.Manager) *ScriptGenerator {
	return &ScriptGenerator{scripts: scripts}
}

// Flavor implements Generator.
func (g *ScriptGenerator) Flavor(ctx context.Context, w weapon.Weapon, success bool, newLevel int) (Text, error) {
	ret, err := g.scripts.Call(ctx, FlavorHook,
		lua.LString(w.Type), lua.LString(w.Name),
		lua.LNumber(w.Level), lua.LNumber(newLevel), lua.LBool(success),
	)
	if err != nil {
		return Text{}, err
	}
	tbl, ok := ret.(*lua.LTable)
	if !ok {
		return Text{}, fmt.Errorf("flavor: %s returned %s, want table", FlavorHook, ret.Type())
	}
	t := Text{
		Quote:       lua.LVAsString(tbl.RawGetString("quote")),
		WeaponName:  lua.LVAsString(tbl.RawGetString("weapon_name")),
		Description: lua.LVAsString(tbl.RawGetString("description")),
	}
	if !success {
		t.WeaponName, t.Description = w.Name, w.Description
	}
	return t, nil
}

// BattleLog implements Generator.
func (g *ScriptGenerator) BattleLog(ctx context.Context, w weapon.Weapon, opp Opponent, won bool) (string, error) {
	ret, err := g.scripts.Call(ctx, BattleLogHook,
		lua.LString(w.Name), lua.LNumber(w.Level),
		lua.LString(opp.Name), lua.LNumber(opp.Weapon.Level), lua.LBool(won),
	)
	if err != nil {
		return "", err
	}
	if ret.Type() != lua.LTString {
		return "", fmt.Errorf("flavor: %s returned %s, want string", BattleLogHook, ret.Type())
	}
	return lua.LVAsString(ret), nil
}

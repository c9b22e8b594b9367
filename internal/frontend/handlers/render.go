package handlers

import (
	"fmt"
	"strings"

	"github.com/bitcory/knight/internal/frontend/telnet"
	"github.com/bitcory/knight/internal/game/enhance"
	"github.com/bitcory/knight/internal/game/feed"
	"github.com/bitcory/knight/internal/game/ranking"
	"github.com/bitcory/knight/internal/game/weapon"
	"github.com/bitcory/knight/internal/gameserver"
)

var gradeColors = map[weapon.Grade]string{
	weapon.GradeCommon:    telnet.White,
	weapon.GradeRare:      telnet.Cyan,
	weapon.GradeEpic:      telnet.BrightMagenta,
	weapon.GradeLegendary: telnet.BrightYellow,
	weapon.GradeMythic:    telnet.Bold + telnet.BrightRed,
}

// weaponLabel renders "[+7] Name" in the grade color.
func weaponLabel(level int, name string) string {
	color, ok := gradeColors[weapon.GradeOf(level)]
	if !ok {
		color = telnet.White
	}
	return telnet.Colorf(color, "[+%d] %s", level, name)
}

// RenderMessage formats one feed message. self marks whispers addressed to
// the viewer.
func RenderMessage(m feed.Message, self string) string {
	stamp := telnet.Colorize(telnet.Dim, m.CreatedAt.Format("15:04"))
	switch ev := m.Event.(type) {
	case feed.EnhancementEvent:
		color := telnet.Yellow
		switch enhance.Result(ev.Result) {
		case enhance.Success:
			color = telnet.BrightGreen
		case enhance.Destroy:
			color = telnet.BrightRed
		}
		line := fmt.Sprintf("%s %s", stamp, telnet.Colorize(color, m.Body))
		if ev.Quote != "" {
			line += "\r\n      " + telnet.Colorf(telnet.Dim, "\"%s\"", ev.Quote)
		}
		return line
	case feed.BattleEvent:
		color := telnet.Red
		if ev.Win {
			color = telnet.Green
		}
		line := fmt.Sprintf("%s %s", stamp, telnet.Colorize(color, m.Body))
		if ev.Log != "" {
			line += "\r\n      " + telnet.Colorize(telnet.Dim, ev.Log)
		}
		return line
	case feed.ShowoffEvent:
		return fmt.Sprintf("%s %s shows off %s (ATK %d)",
			stamp, telnet.Colorize(telnet.Bold, m.Sender), weaponLabel(ev.WeaponLevel, ev.WeaponName), ev.AttackPower)
	case feed.WhisperEvent:
		if m.WhisperTo == self {
			return fmt.Sprintf("%s %s", stamp, telnet.Colorf(telnet.Magenta, "%s whispers: %s", m.Sender, m.Body))
		}
		return fmt.Sprintf("%s %s", stamp, telnet.Colorf(telnet.Magenta, "You whisper to %s: %s", m.WhisperTo, m.Body))
	case feed.SystemEvent:
		return fmt.Sprintf("%s %s", stamp, telnet.Colorize(telnet.BrightYellow, "* "+m.Body))
	}
	return fmt.Sprintf("%s %s: %s", stamp, telnet.Colorize(telnet.BrightWhite, m.Sender), m.Body)
}

// RenderPlayer formats the caller's state card.
func RenderPlayer(p gameserver.PlayerView) string {
	var b strings.Builder
	w := p.Weapon
	fmt.Fprintf(&b, "%s\r\n", weaponLabel(w.Level, w.Name))
	if w.Description != "" {
		fmt.Fprintf(&b, "  %s\r\n", telnet.Colorize(telnet.Dim, w.Description))
	}
	fmt.Fprintf(&b, "  ATK %d  grade %s", w.AttackPower, w.Grade)
	if w.Element != weapon.None {
		fmt.Fprintf(&b, "  element %s +%d", w.Element, w.ElementLevel)
	}
	b.WriteString("\r\n")
	fmt.Fprintf(&b, "  Gold %s  Scrolls %d  W/L %d/%d  Battles left %d\r\n",
		telnet.Colorf(telnet.BrightYellow, "%d", p.Gold), p.Scrolls, p.Wins, p.Losses, p.BattlesLeft)
	if w.NextCost > 0 {
		fmt.Fprintf(&b, "  Next enhancement costs %d gold\r\n", w.NextCost)
	}
	return b.String()
}

// RenderEnhance formats the caller's own enhancement result.
func RenderEnhance(r gameserver.EnhanceReply) string {
	var head string
	switch r.Result {
	case enhance.Success:
		head = telnet.Colorf(telnet.BrightGreen, "SUCCESS +%d → +%d", r.PrevLevel, r.NewLevel)
		if r.Blessed {
			head += telnet.Colorize(telnet.BrightYellow, " (blessed!)")
		}
	case enhance.Maintain:
		head = telnet.Colorf(telnet.Yellow, "MAINTAINED at +%d", r.NewLevel)
	case enhance.Destroy:
		head = telnet.Colorf(telnet.BrightRed, "DESTROYED at +%d", r.PrevLevel)
	default:
		head = string(r.Result)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s  cost %d", head, r.Cost)
	if r.Refund > 0 {
		fmt.Fprintf(&b, ", refund %d", r.Refund)
	}
	if r.ScrollUsed {
		b.WriteString(", scroll used")
	}
	b.WriteString("\r\n")
	if r.Quote != "" {
		fmt.Fprintf(&b, "  %s\r\n", telnet.Colorf(telnet.Dim, "\"%s\"", r.Quote))
	}
	b.WriteString(RenderPlayer(r.Player))
	return b.String()
}

// RenderBattle formats the caller's own battle result.
func RenderBattle(r gameserver.BattleReply) string {
	var b strings.Builder
	if r.Win {
		fmt.Fprintf(&b, "%s  +%d gold", telnet.Colorf(telnet.BrightGreen, "VICTORY over %s (+%d)", r.Opponent, r.OpponentLevel), r.Reward)
		if r.UnderdogMultiplier > 1 {
			fmt.Fprintf(&b, " (underdog x%.1f)", r.UnderdogMultiplier)
		}
	} else {
		fmt.Fprintf(&b, "%s", telnet.Colorf(telnet.Red, "DEFEAT by %s (+%d)", r.Opponent, r.OpponentLevel))
	}
	fmt.Fprintf(&b, "  win chance %.0f%%\r\n", r.Odds.WinChance*100)
	if r.Spirit {
		fmt.Fprintf(&b, "  %s", telnet.Colorize(telnet.BrightMagenta, "Indomitable spirit!"))
		if r.Loot > 0 {
			verb := "could have looted"
			if r.LootTransferred {
				verb = "looted"
			}
			fmt.Fprintf(&b, " You %s %d gold.", verb, r.Loot)
		}
		b.WriteString("\r\n")
	}
	if r.Log != "" {
		fmt.Fprintf(&b, "  %s\r\n", telnet.Colorize(telnet.Dim, r.Log))
	}
	fmt.Fprintf(&b, "  Battles left today: %d\r\n", r.BattlesLeft)
	return b.String()
}

// RenderOdds formats one row of the odds table.
func RenderOdds(o gameserver.OddsReply) string {
	return fmt.Sprintf("+%d → +%d  cost %d  success %s  maintain %.1f%%  destroy %s\r\n",
		o.Level, o.Level+1, o.Cost,
		telnet.Colorf(telnet.Green, "%.1f%%", o.SuccessChance*100),
		o.MaintainChance*100,
		telnet.Colorf(telnet.Red, "%.1f%%", o.DestroyChance*100),
	)
}

// RenderLeaderboard formats ranked entries, best first.
func RenderLeaderboard(entries []ranking.Entry) string {
	if len(entries) == 0 {
		return telnet.Colorize(telnet.Dim, "No knights yet.") + "\r\n"
	}
	var b strings.Builder
	b.WriteString(telnet.Colorize(telnet.BrightWhite, "Leaderboard") + "\r\n")
	for i, e := range entries {
		name := e.Name
		if pad := 16 - telnet.Width(name); pad > 0 {
			name += strings.Repeat(" ", pad)
		}
		fmt.Fprintf(&b, "%3d. %s %4dW %4dL  %5.1f%%  %s\r\n",
			i+1, name, e.Wins, e.Losses, e.WinRate()*100, weaponLabel(e.Level, e.WeaponName))
	}
	return b.String()
}

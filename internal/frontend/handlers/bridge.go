package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bitcory/knight/internal/frontend/telnet"
	"github.com/bitcory/knight/internal/game/feed"
	"github.com/bitcory/knight/internal/gameserver"
)

// terminal commands handled by the bridge itself. Every other line,
// including the feed commands, goes to the game as chat.
const (
	cmdQuit    = "/quit"
	cmdHelp    = "/help"
	cmdMe      = "/me"
	cmdTop     = "/top"
	cmdOdds    = "/odds"
	cmdBuy     = "/buy"
	cmdElement = "/element"
	cmdElemUp  = "/elemup"
	cmdReset   = "/reset"
	cmdAttend  = "/attend"
	cmdProtect = "/protect"
)

func prompt(name string) string {
	return telnet.Colorf(telnet.BrightCyan, "[%s]> ", name)
}

// bridge runs an authenticated session: the feed is streamed to the terminal
// while input lines are sent to the game.
//
// Postcondition: Returns nil on /quit; the session is logged out on every
// return path.
func (h *AuthHandler) bridge(ctx context.Context, conn *telnet.Conn, game Game, name string) error {
	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer func() {
		lctx, lcancel := h.callCtx(context.WithoutCancel(ctx))
		defer lcancel()
		if err := game.Logout(lctx); err != nil {
			h.logger.Debug("logging out", zap.String("username", name), zap.Error(err))
		}
	}()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		err := game.Subscribe(streamCtx, func(m feed.Message) error {
			if err := conn.WriteLine("\r" + RenderMessage(m, name)); err != nil {
				return err
			}
			return conn.WritePrompt(prompt(name))
		})
		if err != nil && streamCtx.Err() == nil {
			h.logger.Debug("feed stream ended", zap.String("username", name), zap.Error(err))
			_ = conn.WriteLine(telnet.Colorize(telnet.Yellow, "Live feed disconnected; commands still work."))
		}
	}()

	err := h.commandLoop(streamCtx, conn, game, name)
	cancel()
	wg.Wait()
	return err
}

func (h *AuthHandler) commandLoop(ctx context.Context, conn *telnet.Conn, game Game, name string) error {
	if err := conn.WritePrompt(prompt(name)); err != nil {
		return fmt.Errorf("writing prompt: %w", err)
	}
	for {
		if ctx.Err() != nil {
			_ = conn.WriteLine(telnet.Colorize(telnet.Yellow, "Server shutting down. Goodbye!"))
			return ctx.Err()
		}
		line, err := conn.ReadLine()
		if err != nil {
			return fmt.Errorf("reading input: %w", err)
		}
		line = strings.TrimSpace(line)
		if line == "" {
			_ = conn.WritePrompt(prompt(name))
			continue
		}

		out, quit, err := h.dispatch(ctx, game, line)
		switch {
		case err != nil:
			h.logUnexpected("game call failed", err)
			_ = conn.WriteLine(telnet.Colorize(telnet.Red, errorText(err)))
		case out != "":
			_ = conn.Write([]byte(out))
		}
		if quit {
			_ = conn.WriteLine(telnet.Colorize(telnet.Cyan, "You sheathe your blade. Goodbye."))
			return nil
		}
		_ = conn.WritePrompt(prompt(name))
	}
}

// dispatch runs one input line and returns the text to show.
func (h *AuthHandler) dispatch(ctx context.Context, game Game, line string) (out string, quit bool, err error) {
	fields := strings.Fields(line)
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	cctx, cancel := h.callCtx(ctx)
	defer cancel()

	switch cmd {
	case cmdQuit:
		return "", true, nil
	case cmdHelp:
		return gameHelp, false, nil
	case cmdMe:
		p, err := game.State(cctx)
		return RenderPlayer(p), false, err
	case cmdTop:
		limit := 10
		if len(args) > 0 {
			if limit, err = strconv.Atoi(args[0]); err != nil {
				return usage("/top [count]")
			}
		}
		lb, err := game.Leaderboard(cctx, limit)
		return RenderLeaderboard(lb.Entries), false, err
	case cmdOdds:
		if len(args) == 0 {
			p, err := game.State(cctx)
			if err != nil {
				return "", false, err
			}
			args = []string{strconv.Itoa(p.Weapon.Level)}
		}
		level, err := strconv.Atoi(args[0])
		if err != nil {
			return usage("/odds [level] [scroll]")
		}
		useScroll := len(args) > 1 && strings.EqualFold(args[1], "scroll")
		o, err := game.Odds(cctx, gameserver.OddsRequest{Level: level, UseScroll: useScroll})
		return RenderOdds(o), false, err
	case cmdBuy:
		if len(args) != 1 {
			return usage("/buy <count>")
		}
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return usage("/buy <count>")
		}
		p, err := game.BuyScrolls(cctx, n)
		return notice(fmt.Sprintf("Scrolls: %d, gold: %d", p.Scrolls, p.Gold)), false, err
	case cmdElement:
		if len(args) != 1 {
			return usage("/element <fire|water|light|dark|curse>")
		}
		p, err := game.AssignElement(cctx, strings.ToLower(args[0]))
		return notice(fmt.Sprintf("%s now carries %s.", p.Weapon.Name, p.Weapon.Element)), false, err
	case cmdProtect:
		r, err := game.Enhance(cctx, gameserver.EnhanceRequest{RequestID: uuid.NewString(), UseScroll: true})
		return RenderEnhance(r), false, err
	case cmdElemUp:
		r, err := game.EnhanceElement(cctx, gameserver.EnhanceElementRequest{RequestID: uuid.NewString()})
		return RenderEnhance(r), false, err
	case cmdReset:
		if len(args) != 1 {
			return usage("/reset <sword|axe|hammer|spear>")
		}
		p, err := game.ResetWeapon(cctx, strings.ToLower(args[0]))
		return notice(fmt.Sprintf("You take up a fresh %s.", p.Weapon.Name)), false, err
	case cmdAttend:
		p, err := game.ClaimAttendance(cctx)
		return notice(fmt.Sprintf("Attendance claimed. Gold: %d", p.Gold)), false, err
	}

	reply, err := game.Chat(cctx, gameserver.ChatRequest{RequestID: uuid.NewString(), Text: line})
	if err != nil {
		return "", false, err
	}
	switch {
	case reply.Enhance != nil:
		return RenderEnhance(*reply.Enhance), false, nil
	case reply.Battle != nil:
		return RenderBattle(*reply.Battle), false, nil
	case reply.Player != nil:
		return notice(fmt.Sprintf("Scroll bought. Scrolls: %d, gold: %d", reply.Player.Scrolls, reply.Player.Gold)), false, nil
	}
	// Chat, whisper and showoff lines come back through the feed.
	return "", false, nil
}

func usage(text string) (string, bool, error) {
	return telnet.Colorize(telnet.Red, "Usage: "+text) + "\r\n", false, nil
}

func notice(text string) string {
	return telnet.Colorize(telnet.BrightGreen, text) + "\r\n"
}

const gameHelp = telnet.BrightWhite + "Feed commands:" + telnet.Reset + "\r\n" +
	telnet.Green + "  /enhance  /강화      " + telnet.Reset + " attempt a weapon enhancement\r\n" +
	telnet.Green + "  /scroll   /주문서    " + telnet.Reset + " buy one scroll\r\n" +
	telnet.Green + "  /battle   /전투      " + telnet.Reset + " fight a random rival\r\n" +
	telnet.Green + "  /showoff  /자랑      " + telnet.Reset + " show your weapon to everyone\r\n" +
	telnet.Green + "  /w <name> <text>    " + telnet.Reset + " whisper\r\n" +
	telnet.BrightWhite + "Terminal commands:" + telnet.Reset + "\r\n" +
	telnet.Green + "  /me                 " + telnet.Reset + " your gold, scrolls and weapon\r\n" +
	telnet.Green + "  /top [count]        " + telnet.Reset + " leaderboard\r\n" +
	telnet.Green + "  /odds [level] [scroll]" + telnet.Reset + " enhancement odds\r\n" +
	telnet.Green + "  /buy <count>        " + telnet.Reset + " buy scrolls\r\n" +
	telnet.Green + "  /protect            " + telnet.Reset + " enhance using a scroll\r\n" +
	telnet.Green + "  /element <name>     " + telnet.Reset + " assign an element\r\n" +
	telnet.Green + "  /elemup             " + telnet.Reset + " enhance the element\r\n" +
	telnet.Green + "  /reset <type>       " + telnet.Reset + " start over with a new weapon\r\n" +
	telnet.Green + "  /attend             " + telnet.Reset + " claim the attendance reward\r\n" +
	telnet.Green + "  /quit               " + telnet.Reset + " disconnect\r\n" +
	"Anything else is said in the global chat.\r\n"

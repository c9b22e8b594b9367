package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/bitcory/knight/internal/frontend/telnet"
)

const welcomeBanner = "\r\n" + telnet.Bold + telnet.BrightYellow +
	"  ⚔  KNIGHT  ⚔" + telnet.Reset + "\r\n" +
	telnet.Dim + "  Enhance your blade. Challenge your rivals." + telnet.Reset + "\r\n\r\n" +
	"  Type " + telnet.Green + "login <username>" + telnet.Reset + " to connect.\r\n" +
	"  Type " + telnet.Green + "register <username>" + telnet.Reset + " to create an account.\r\n" +
	"  Type " + telnet.Green + "quit" + telnet.Reset + " to disconnect.\r\n\r\n"

// AuthHandler implements telnet.SessionHandler. It runs the login loop and
// hands authenticated sessions to the chat bridge.
type AuthHandler struct {
	newGame GameFactory
	logger  *zap.Logger
	timeout time.Duration
}

// NewAuthHandler creates an AuthHandler. callTimeout bounds every unary call
// to the game server; zero leaves calls unbounded.
//
// Precondition: newGame and logger must be non-nil.
func NewAuthHandler(newGame GameFactory, logger *zap.Logger, callTimeout time.Duration) *AuthHandler {
	return &AuthHandler{newGame: newGame, logger: logger, timeout: callTimeout}
}

func (h *AuthHandler) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if h.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, h.timeout)
}

// HandleSession shows the banner and processes login commands until the
// player logs in or quits.
//
// Postcondition: Returns nil on a clean quit.
func (h *AuthHandler) HandleSession(ctx context.Context, conn *telnet.Conn) error {
	start := time.Now()
	addr := conn.RemoteAddr().String()
	game := h.newGame()

	if err := conn.Write([]byte(welcomeBanner)); err != nil {
		return fmt.Errorf("sending welcome: %w", err)
	}

	for {
		if ctx.Err() != nil {
			_ = conn.WriteLine(telnet.Colorize(telnet.Yellow, "Server shutting down. Goodbye!"))
			return ctx.Err()
		}
		if err := conn.WritePrompt(telnet.Colorize(telnet.BrightWhite, "> ")); err != nil {
			return fmt.Errorf("writing prompt: %w", err)
		}
		line, err := conn.ReadLine()
		if err != nil {
			return fmt.Errorf("reading input: %w", err)
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		switch cmd, args := strings.ToLower(fields[0]), fields[1:]; cmd {
		case "quit", "exit":
			_ = conn.WriteLine(telnet.Colorize(telnet.Cyan, "Goodbye!"))
			h.logger.Info("client quit", zap.String("remote_addr", addr), zap.Duration("session_duration", time.Since(start)))
			return nil
		case "register":
			if err := h.register(ctx, conn, game, args); err != nil {
				return err
			}
		case "login":
			name, ok, err := h.login(ctx, conn, game, args)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			h.logger.Info("player logged in", zap.String("remote_addr", addr), zap.String("username", name))
			return h.bridge(ctx, conn, game, name)
		case "help":
			_ = conn.Write([]byte(loginHelp))
		default:
			_ = conn.WriteLine(telnet.Colorf(telnet.Red, "Unknown command: %s. Type 'help' for available commands.", cmd))
		}
	}
}

const loginHelp = telnet.BrightWhite + "Available commands:" + telnet.Reset + "\r\n" +
	telnet.Green + "  login <username>   " + telnet.Reset + " log in; the password is asked for\r\n" +
	telnet.Green + "  register <username>" + telnet.Reset + " create an account\r\n" +
	telnet.Green + "  help               " + telnet.Reset + " show this help\r\n" +
	telnet.Green + "  quit               " + telnet.Reset + " disconnect\r\n"

// credentials takes the username from args and reads the password with echo
// suppressed. A second argument is accepted as the password for scripted clients.
func credentials(conn *telnet.Conn, args []string, usage string) (user, password string, ok bool, err error) {
	if len(args) == 0 || len(args) > 2 {
		return "", "", false, conn.WriteLine(telnet.Colorize(telnet.Red, usage))
	}
	if len(args) == 2 {
		return args[0], args[1], true, nil
	}
	if err := conn.WritePrompt("Password: "); err != nil {
		return "", "", false, err
	}
	password, err = conn.ReadPassword()
	if err != nil {
		return "", "", false, fmt.Errorf("reading password: %w", err)
	}
	return args[0], password, true, nil
}

func (h *AuthHandler) register(ctx context.Context, conn *telnet.Conn, game Game, args []string) error {
	user, password, ok, err := credentials(conn, args, "Usage: register <username>")
	if !ok || err != nil {
		return err
	}
	cctx, cancel := h.callCtx(ctx)
	defer cancel()
	p, err := game.Register(cctx, user, password)
	if err != nil {
		h.logUnexpected("registration error", err)
		return conn.WriteLine(telnet.Colorize(telnet.Red, errorText(err)))
	}
	return conn.WriteLine(telnet.Colorf(telnet.BrightGreen,
		"Account created: %s with %d gold and a %s. You may now 'login'.",
		p.Username, p.Gold, p.Weapon.Name,
	))
}

func (h *AuthHandler) login(ctx context.Context, conn *telnet.Conn, game Game, args []string) (string, bool, error) {
	user, password, ok, err := credentials(conn, args, "Usage: login <username>")
	if !ok || err != nil {
		return "", false, err
	}
	cctx, cancel := h.callCtx(ctx)
	defer cancel()
	reply, err := game.Login(cctx, user, password)
	if err != nil {
		h.logUnexpected("authentication error", err)
		return "", false, conn.WriteLine(telnet.Colorize(telnet.Red, errorText(err)))
	}
	_ = conn.WriteLine(telnet.Colorf(telnet.BrightGreen, "Welcome back, %s!", reply.Player.Username))
	_ = conn.Write([]byte(RenderPlayer(reply.Player)))
	return reply.Player.Username, true, nil
}

// logUnexpected logs failures that are not the player's fault.
func (h *AuthHandler) logUnexpected(msg string, err error) {
	switch status.Code(err) {
	case codes.Internal, codes.Unavailable, codes.Unknown, codes.DeadlineExceeded:
		h.logger.Error(msg, zap.Error(err))
	}
}

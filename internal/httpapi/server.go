// Package httpapi serves the read-only HTTP API: health, leaderboard, odds
// and the public feed.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"
	"unicode"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"

	"github.com/bitcory/knight/internal/config"
	"github.com/bitcory/knight/internal/gameserver"
)

// Backend is the part of the game service the HTTP API reads from.
type Backend interface {
	Leaderboard(ctx context.Context, req gameserver.LeaderboardRequest) (gameserver.LeaderboardReply, error)
	PublicFeed() gameserver.FeedReply
}

// Pinger reports whether a dependency is reachable.
type Pinger func(ctx context.Context) error

// Server wraps a fiber app for the lifecycle.
type Server struct {
	app     *fiber.App
	addr    string
	timeout time.Duration
	logger  *zap.Logger
}

// New builds the HTTP API.
//
// Precondition: backend and logger must be non-nil; ping may be nil.
func New(cfg config.HTTPConfig, backend Backend, ping Pinger, logger *zap.Logger) *Server {
	app := fiber.New(fiber.Config{
		AppName:               "knight",
		ReadTimeout:           cfg.ReadTimeout,
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler(logger),
	})
	app.Use(recover.New())
	origins := cfg.AllowOrigins
	if origins == "" {
		origins = "*"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowMethods: "GET,HEAD,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, X-Session-Token",
		MaxAge:       86400,
	}))

	h := &handlers{backend: backend, ping: ping}
	app.Get("/healthz", h.health)
	api := app.Group("/api")
	api.Get("/leaderboard", h.leaderboard)
	api.Get("/odds", h.oddsTable)
	api.Get("/odds/:level", h.odds)
	api.Get("/feed", h.feed)

	return &Server{app: app, addr: cfg.Addr(), timeout: cfg.ReadTimeout, logger: logger}
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App { return s.app }

// Start listens until Stop is called.
func (s *Server) Start() error {
	s.logger.Info("http api listening", zap.String("addr", s.addr))
	if err := s.app.Listen(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop shuts the server down, waiting up to the read timeout for requests
// in flight.
func (s *Server) Stop() {
	timeout := s.timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if err := s.app.ShutdownWithTimeout(timeout); err != nil {
		s.logger.Warn("http api shutdown", zap.Error(err))
	}
}

// Status maps a game error onto an HTTP status code.
func Status(err error) int {
	switch gameserver.Code(err) {
	case codes.OK:
		return fiber.StatusOK
	case codes.InvalidArgument:
		return fiber.StatusBadRequest
	case codes.NotFound:
		return fiber.StatusNotFound
	case codes.AlreadyExists, codes.Aborted:
		return fiber.StatusConflict
	case codes.FailedPrecondition:
		return fiber.StatusUnprocessableEntity
	case codes.ResourceExhausted:
		return fiber.StatusTooManyRequests
	case codes.Unauthenticated:
		return fiber.StatusUnauthorized
	case codes.PermissionDenied:
		return fiber.StatusForbidden
	case codes.DeadlineExceeded:
		return fiber.StatusGatewayTimeout
	case codes.Canceled:
		return 499
	default:
		return fiber.StatusInternalServerError
	}
}

func errorHandler(logger *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
		}
		code := Status(err)
		msg := err.Error()
		if code == fiber.StatusInternalServerError {
			logger.Error("http request failed", zap.String("path", c.Path()), zap.Error(err))
			msg = "internal error"
		}
		return c.Status(code).JSON(fiber.Map{"error": msg, "code": codeName(gameserver.Code(err))})
	}
}

// codeName renders a code as snake case, e.g. "failed_precondition".
func codeName(c codes.Code) string {
	var b strings.Builder
	for i, r := range c.String() {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}

package httpapi

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/bitcory/knight/internal/gameserver"
)

const pingTimeout = 2 * time.Second

type handlers struct {
	backend Backend
	ping    Pinger
}

func (h *handlers) health(c *fiber.Ctx) error {
	if h.ping != nil {
		ctx, cancel := context.WithTimeout(c.UserContext(), pingTimeout)
		defer cancel()
		if err := h.ping(ctx); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable"})
		}
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

func (h *handlers) leaderboard(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 0)
	if limit < 0 {
		return fiber.NewError(fiber.StatusBadRequest, "limit must not be negative")
	}
	reply, err := h.backend.Leaderboard(c.UserContext(), gameserver.LeaderboardRequest{Limit: limit})
	if err != nil {
		return err
	}
	return c.JSON(reply)
}

func (h *handlers) oddsTable(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"levels": gameserver.OddsTable()})
}

func (h *handlers) odds(c *fiber.Ctx) error {
	level, err := c.ParamsInt("level")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "level must be an integer")
	}
	reply, err := gameserver.Odds(gameserver.OddsRequest{
		Level:     level,
		UseScroll: c.QueryBool("scroll"),
		TopWinner: c.QueryBool("top"),
	})
	if err != nil {
		return err
	}
	return c.JSON(reply)
}

func (h *handlers) feed(c *fiber.Ctx) error {
	return c.JSON(h.backend.PublicFeed())
}

package handler

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/lfgarc/giftcode-redeemer/internal/model"
	"github.com/lfgarc/giftcode-redeemer/internal/repository"
)

// HistoryListerInterface defines the history read access the viewer endpoint needs.
type HistoryListerInterface interface {
	List(ctx context.Context, filter repository.HistoryFilter) ([]model.HistoryEntry, error)
}

// HistoryHandler handles HTTP requests for the attempt history viewer.
type HistoryHandler struct {
	history HistoryListerInterface
}

// NewHistoryHandler creates a new HistoryHandler over the given history store.
func NewHistoryHandler(history HistoryListerInterface) *HistoryHandler {
	return &HistoryHandler{history: history}
}

// List handles GET /api/history with optional player_id, code and day
// (YYYY-MM-DD, UTC) query filters.
func (h *HistoryHandler) List(c *fiber.Ctx) error {
	filter := repository.HistoryFilter{
		PlayerID: c.Query("player_id"),
		Code:     c.Query("code"),
		Day:      c.Query("day"),
		Limit:    c.QueryInt("limit", 500),
	}

	entries, err := h.history.List(c.Context(), filter)
	if err != nil {
		log.Error().Err(err).
			Str("request_id", c.GetRespHeader("X-Request-ID")).
			Str("player_id", filter.PlayerID).
			Str("code", filter.Code).
			Str("day", filter.Day).
			Msg("failed to list history")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}
	return c.Status(fiber.StatusOK).JSON(entries)
}

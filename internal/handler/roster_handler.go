package handler

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/lfgarc/giftcode-redeemer/internal/model"
	"github.com/lfgarc/giftcode-redeemer/internal/service"
)

// RosterServiceInterface defines the roster management operations exposed over HTTP.
type RosterServiceInterface interface {
	ListPlayers(ctx context.Context) ([]model.Player, error)
	AddPlayer(ctx context.Context, req *model.AddPlayerRequest) (*model.Player, error)
	RemovePlayer(ctx context.Context, id string) error
	ListCodes(ctx context.Context) ([]model.Code, error)
	AddCode(ctx context.Context, req *model.AddCodeRequest) (*model.Code, error)
	UpdateCode(ctx context.Context, code string, req *model.UpdateCodeRequest) error
	RemoveCode(ctx context.Context, code string) error
}

// RosterHandler handles HTTP requests for the player and code roster.
type RosterHandler struct {
	service   RosterServiceInterface
	validator *validator.Validate
}

// NewRosterHandler creates a new RosterHandler with the given service and validator.
func NewRosterHandler(svc RosterServiceInterface, v *validator.Validate) *RosterHandler {
	return &RosterHandler{service: svc, validator: v}
}

// ListPlayers handles GET /api/players.
func (h *RosterHandler) ListPlayers(c *fiber.Ctx) error {
	players, err := h.service.ListPlayers(c.Context())
	if err != nil {
		log.Error().Err(err).
			Str("request_id", c.GetRespHeader("X-Request-ID")).
			Msg("failed to list players")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}
	return c.Status(fiber.StatusOK).JSON(players)
}

// AddPlayer handles POST /api/players.
func (h *RosterHandler) AddPlayer(c *fiber.Ctx) error {
	var req model.AddPlayerRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if err := h.validator.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request: " + err.Error()})
	}

	player, err := h.service.AddPlayer(c.Context(), &req)
	if err != nil {
		if errors.Is(err, service.ErrPlayerExists) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": service.ErrPlayerExists.Error()})
		}
		log.Error().Err(err).
			Str("request_id", c.GetRespHeader("X-Request-ID")).
			Str("player_id", req.ID).
			Msg("failed to add player")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}
	return c.Status(fiber.StatusCreated).JSON(player)
}

// RemovePlayer handles DELETE /api/players/:id.
func (h *RosterHandler) RemovePlayer(c *fiber.Ctx) error {
	if err := h.service.RemovePlayer(c.Context(), c.Params("id")); err != nil {
		if errors.Is(err, service.ErrPlayerNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": service.ErrPlayerNotFound.Error()})
		}
		log.Error().Err(err).
			Str("request_id", c.GetRespHeader("X-Request-ID")).
			Str("player_id", c.Params("id")).
			Msg("failed to remove player")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ListCodes handles GET /api/codes.
func (h *RosterHandler) ListCodes(c *fiber.Ctx) error {
	codes, err := h.service.ListCodes(c.Context())
	if err != nil {
		log.Error().Err(err).
			Str("request_id", c.GetRespHeader("X-Request-ID")).
			Msg("failed to list codes")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}
	return c.Status(fiber.StatusOK).JSON(codes)
}

// AddCode handles POST /api/codes.
func (h *RosterHandler) AddCode(c *fiber.Ctx) error {
	var req model.AddCodeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if err := h.validator.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request: " + err.Error()})
	}

	code, err := h.service.AddCode(c.Context(), &req)
	if err != nil {
		if errors.Is(err, service.ErrCodeExists) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": service.ErrCodeExists.Error()})
		}
		log.Error().Err(err).
			Str("request_id", c.GetRespHeader("X-Request-ID")).
			Str("code", req.Code).
			Msg("failed to add code")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}
	return c.Status(fiber.StatusCreated).JSON(code)
}

// UpdateCode handles PATCH /api/codes/:code.
func (h *RosterHandler) UpdateCode(c *fiber.Ctx) error {
	var req model.UpdateCodeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if err := h.validator.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request: " + err.Error()})
	}

	if err := h.service.UpdateCode(c.Context(), c.Params("code"), &req); err != nil {
		if errors.Is(err, service.ErrCodeNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": service.ErrCodeNotFound.Error()})
		}
		if errors.Is(err, service.ErrInvalidRequest) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": service.ErrInvalidRequest.Error()})
		}
		log.Error().Err(err).
			Str("request_id", c.GetRespHeader("X-Request-ID")).
			Str("code", c.Params("code")).
			Msg("failed to update code")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// RemoveCode handles DELETE /api/codes/:code.
func (h *RosterHandler) RemoveCode(c *fiber.Ctx) error {
	if err := h.service.RemoveCode(c.Context(), c.Params("code")); err != nil {
		if errors.Is(err, service.ErrCodeNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": service.ErrCodeNotFound.Error()})
		}
		log.Error().Err(err).
			Str("request_id", c.GetRespHeader("X-Request-ID")).
			Str("code", c.Params("code")).
			Msg("failed to remove code")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}
	return c.SendStatus(fiber.StatusNoContent)
}

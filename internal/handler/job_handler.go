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

// JobServiceInterface defines the job orchestration operations exposed over HTTP.
type JobServiceInterface interface {
	CreateJob(ctx context.Context, onlyCode, onlyPlayer string) (*model.Job, error)
	StartJob(ctx context.Context, id string) error
	GetJob(ctx context.Context, id string) (*model.Job, error)
	ListJobs(ctx context.Context, limit int) ([]model.Job, error)
	Cancel(ctx context.Context, id string) ([]string, error)
}

// JobHandler handles HTTP requests for redemption jobs.
type JobHandler struct {
	service   JobServiceInterface
	validator *validator.Validate
}

// NewJobHandler creates a new JobHandler with the given service and validator.
func NewJobHandler(svc JobServiceInterface, v *validator.Validate) *JobHandler {
	return &JobHandler{service: svc, validator: v}
}

// CreateJob handles POST /api/jobs. It sizes and records the job without
// starting execution; the response carries total_tasks so the caller can
// inspect the work set first.
func (h *JobHandler) CreateJob(c *fiber.Ctx) error {
	var req model.CreateJobRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}
	}
	if err := h.validator.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request: " + err.Error()})
	}

	job, err := h.service.CreateJob(c.Context(), req.OnlyCode, req.OnlyPlayer)
	if err != nil {
		if errors.Is(err, service.ErrJobActive) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": service.ErrJobActive.Error()})
		}
		if errors.Is(err, service.ErrPlayerNotFound) || errors.Is(err, service.ErrCodeNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
		}
		log.Error().Err(err).
			Str("request_id", c.GetRespHeader("X-Request-ID")).
			Str("only_code", req.OnlyCode).
			Str("only_player", req.OnlyPlayer).
			Msg("failed to create job")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}

	log.Info().
		Str("request_id", c.GetRespHeader("X-Request-ID")).
		Str("job_id", job.ID).
		Int("total_tasks", job.TotalTasks).
		Msg("job created")

	return c.Status(fiber.StatusCreated).JSON(model.CreateJobResponse{
		JobID:      job.ID,
		TotalTasks: job.TotalTasks,
	})
}

// StartJob handles POST /api/jobs/:id/start. Execution happens in the
// background; poll GET /api/jobs/:id for progress.
func (h *JobHandler) StartJob(c *fiber.Ctx) error {
	id := c.Params("id")

	if err := h.service.StartJob(c.Context(), id); err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": service.ErrJobNotFound.Error()})
		}
		if errors.Is(err, service.ErrJobFinished) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": service.ErrJobFinished.Error()})
		}
		if errors.Is(err, service.ErrJobActive) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": service.ErrJobActive.Error()})
		}
		log.Error().Err(err).
			Str("request_id", c.GetRespHeader("X-Request-ID")).
			Str("job_id", id).
			Msg("failed to start job")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}

	log.Info().
		Str("request_id", c.GetRespHeader("X-Request-ID")).
		Str("job_id", id).
		Msg("job started")

	return c.SendStatus(fiber.StatusAccepted)
}

// GetJob handles GET /api/jobs/:id, the polling endpoint.
func (h *JobHandler) GetJob(c *fiber.Ctx) error {
	job, err := h.service.GetJob(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": service.ErrJobNotFound.Error()})
		}
		log.Error().Err(err).
			Str("request_id", c.GetRespHeader("X-Request-ID")).
			Str("job_id", c.Params("id")).
			Msg("failed to get job")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}
	return c.Status(fiber.StatusOK).JSON(job)
}

// ListJobs handles GET /api/jobs.
func (h *JobHandler) ListJobs(c *fiber.Ctx) error {
	jobs, err := h.service.ListJobs(c.Context(), c.QueryInt("limit", 50))
	if err != nil {
		log.Error().Err(err).
			Str("request_id", c.GetRespHeader("X-Request-ID")).
			Msg("failed to list jobs")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}
	return c.Status(fiber.StatusOK).JSON(jobs)
}

// CancelJobs handles POST /api/jobs/cancel. Without a job_id every active
// job is cancelled.
func (h *JobHandler) CancelJobs(c *fiber.Ctx) error {
	var req model.CancelJobsRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}
	}
	if err := h.validator.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request: " + err.Error()})
	}

	cancelled, err := h.service.Cancel(c.Context(), req.JobID)
	if err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": service.ErrJobNotFound.Error()})
		}
		if errors.Is(err, service.ErrJobFinished) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": service.ErrJobFinished.Error()})
		}
		log.Error().Err(err).
			Str("request_id", c.GetRespHeader("X-Request-ID")).
			Str("job_id", req.JobID).
			Msg("failed to cancel jobs")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}

	log.Info().
		Str("request_id", c.GetRespHeader("X-Request-ID")).
		Strs("cancelled", cancelled).
		Msg("jobs cancelled")

	return c.Status(fiber.StatusOK).JSON(model.CancelJobsResponse{Cancelled: cancelled})
}

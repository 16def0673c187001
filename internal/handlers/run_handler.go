package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/kippnorcal/zoom/internal/connector"
	"github.com/kippnorcal/zoom/internal/dto"
	"github.com/kippnorcal/zoom/internal/middleware"
	"github.com/kippnorcal/zoom/internal/models"
	"github.com/kippnorcal/zoom/internal/syncerr"
)

// RunReader reads recorded runs.
type RunReader interface {
	Run(ctx context.Context, id string) (*models.SyncRun, error)
	Runs(ctx context.Context, limit int) ([]models.SyncRun, error)
}

// RunStarter starts a run in the background.
type RunStarter interface {
	Start(ctx context.Context, trigger string) (*models.SyncRun, error)
}

type RunHandler struct {
	runs    RunReader
	starter RunStarter
	// Runs started over HTTP outlive the request.
	baseCtx context.Context
}

func NewRunHandler(baseCtx context.Context, runs RunReader, starter RunStarter) *RunHandler {
	return &RunHandler{runs: runs, starter: starter, baseCtx: baseCtx}
}

func (h *RunHandler) List(c *fiber.Ctx) error {
	runs, err := h.runs.Runs(c.UserContext(), c.QueryInt("limit", 20))
	if err != nil {
		slog.Error("failed to list runs", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Failed to list runs",
		})
	}

	out := make([]dto.RunResponse, 0, len(runs))
	for i := range runs {
		out = append(out, toRunResponse(&runs[i]))
	}
	return c.JSON(dto.RunListResponse{Runs: out, Count: len(out)})
}

func (h *RunHandler) Get(c *fiber.Ctx) error {
	run, err := h.runs.Run(c.UserContext(), c.Params("id"))
	if err != nil {
		if syncerr.IsNotFound(err) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
				Error: true, Message: "Run not found",
			})
		}
		slog.Error("failed to get run", "id", c.Params("id"), "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Failed to get run",
		})
	}
	return c.JSON(toRunResponse(run))
}

func (h *RunHandler) Trigger(c *fiber.Ctx) error {
	run, err := h.starter.Start(h.baseCtx, "manual")
	if err != nil {
		if errors.Is(err, connector.ErrRunning) {
			return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{
				Error: true, Message: err.Error(),
			})
		}
		slog.Error("failed to start run", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Failed to start run",
		})
	}
	slog.Info("manual run requested", "run_id", run.ID, "operator", middleware.Operator(c))
	return c.Status(fiber.StatusAccepted).JSON(toRunResponse(run))
}

func toRunResponse(run *models.SyncRun) dto.RunResponse {
	resp := dto.RunResponse{
		ID:         run.ID,
		Status:     run.Status,
		Trigger:    run.Trigger,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
		Error:      run.Error,
	}
	if len(run.Stats) > 0 {
		resp.Stats = json.RawMessage(run.Stats)
	}
	return resp
}

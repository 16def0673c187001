package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/kippnorcal/zoom/internal/database"
	"github.com/kippnorcal/zoom/internal/dto"
)

// RunState reports what the connector is doing.
type RunState interface {
	Running() bool
}

type HealthHandler struct {
	db       *gorm.DB
	state    RunState
	entities []string
}

func NewHealthHandler(db *gorm.DB, state RunState, entities []string) *HealthHandler {
	return &HealthHandler{db: db, state: state, entities: entities}
}

func (h *HealthHandler) Check(c *fiber.Ctx) error {
	status := "ok"
	dbStatus := "ok"
	if err := database.Ping(h.db); err != nil {
		status = "degraded"
		dbStatus = "unhealthy: " + err.Error()
	}

	code := fiber.StatusOK
	if status != "ok" {
		code = fiber.StatusServiceUnavailable
	}
	return c.Status(code).JSON(dto.HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		DB:        dbStatus,
		Running:   h.state.Running(),
		Entities:  h.entities,
	})
}

package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/helpdesk-service/internal/config"
)

// HealthHandler reports service liveness and dependency readiness.
type HealthHandler struct {
	cfg   config.AppConfig
	pool  *pgxpool.Pool
	redis *redis.Client
}

// NewHealthHandler constructs the handler.
func NewHealthHandler(cfg config.AppConfig, pool *pgxpool.Pool, redisClient *redis.Client) *HealthHandler {
	return &HealthHandler{cfg: cfg, pool: pool, redis: redisClient}
}

// Live handles GET /healthz.
func (h *HealthHandler) Live(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"service": h.cfg.Name,
		"version": h.cfg.Version,
	})
}

// Ready handles GET /readyz.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	checks := fiber.Map{}
	healthy := true

	if err := h.pool.Ping(c.UserContext()); err != nil {
		checks["postgres"] = err.Error()
		healthy = false
	} else {
		checks["postgres"] = "ok"
	}
	if err := h.redis.Ping(c.UserContext()).Err(); err != nil {
		checks["redis"] = err.Error()
		healthy = false
	} else {
		checks["redis"] = "ok"
	}

	status := fiber.StatusOK
	if !healthy {
		status = fiber.StatusServiceUnavailable
	}
	return c.Status(status).JSON(fiber.Map{"checks": checks})
}

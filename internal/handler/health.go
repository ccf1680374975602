package handler

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

// HealthHandler reports liveness plus the state of the two hard
// dependencies. MySQL holds the reservations of record and Redis holds the
// inventory locks; either one down means the service cannot take new
// reservations, so the probe goes 503 and the load balancer drains us.
type HealthHandler struct {
	DB  *sql.DB
	RDB *redis.Client
}

func NewHealthHandler(db *sql.DB, rdb *redis.Client) *HealthHandler {
	return &HealthHandler{DB: db, RDB: rdb}
}

// Check handles GET /healthz.
func (h *HealthHandler) Check(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := echo.Map{"mysql": "ok", "redis": "ok"}
	if h.DB != nil {
		if err := h.DB.PingContext(ctx); err != nil {
			checks["mysql"] = "down"
			status = http.StatusServiceUnavailable
		}
	}
	if h.RDB != nil {
		if err := h.RDB.Ping(ctx).Err(); err != nil {
			checks["redis"] = "down"
			status = http.StatusServiceUnavailable
		}
	}
	return c.JSON(status, echo.Map{"status": http.StatusText(status), "checks": checks})
}

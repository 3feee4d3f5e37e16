package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

// PoolStats represents database connection pool statistics.
type PoolStats struct {
	TotalConns      int32  `json:"total_conns"`
	IdleConns       int32  `json:"idle_conns"`
	AcquiredConns   int32  `json:"acquired_conns"`
	MaxConns        int32  `json:"max_conns"`
	AcquireCount    int64  `json:"acquire_count"`
	AcquireDuration string `json:"acquire_duration"`
}

// GetPoolStats returns connection pool statistics.
func GetPoolStats(pool *pgxpool.Pool) *PoolStats {
	stat := pool.Stat()
	return &PoolStats{
		TotalConns:      stat.TotalConns(),
		IdleConns:       stat.IdleConns(),
		AcquiredConns:   stat.AcquiredConns(),
		MaxConns:        stat.MaxConns(),
		AcquireCount:    stat.AcquireCount(),
		AcquireDuration: stat.AcquireDuration().String(),
	}
}

// Pinger is anything whose liveness can be probed.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// Check is one named dependency in the health report. A failing optional
// check degrades the service; a failing required check makes it unhealthy.
type Check struct {
	Name     string
	Pinger   Pinger
	Required bool
}

type componentHealth struct {
	Status string     `json:"status"`
	Error  string     `json:"error,omitempty"`
	Pool   *PoolStats `json:"pool,omitempty"`
}

// HealthHandler pings every check with a 5s budget and reports the result.
// It answers 503 only when a required check fails.
func HealthHandler(checks ...Check) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		status := "healthy"
		code := http.StatusOK
		components := make(map[string]componentHealth, len(checks))
		for _, chk := range checks {
			h := componentHealth{Status: "up"}
			if pool, ok := chk.Pinger.(*pgxpool.Pool); ok {
				h.Pool = GetPoolStats(pool)
			}
			if err := chk.Pinger.Ping(ctx); err != nil {
				h.Status = "down"
				h.Error = err.Error()
				if chk.Required {
					status = "unhealthy"
					code = http.StatusServiceUnavailable
				} else if status == "healthy" {
					status = "degraded"
				}
			}
			components[chk.Name] = h
		}

		return c.JSON(code, map[string]interface{}{
			"status":     status,
			"components": components,
		})
	}
}

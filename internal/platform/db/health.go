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

// Check probes one storage backend. Stats, when set, is included in the
// response body.
type Check struct {
	Backend string
	Ping    func(ctx context.Context) error
	Stats   func() interface{}
}

// PoolCheck builds a Check for a Postgres pool.
func PoolCheck(pool *pgxpool.Pool) Check {
	return Check{
		Backend: "postgres",
		Ping:    pool.Ping,
		Stats:   func() interface{} { return GetPoolStats(pool) },
	}
}

// HealthHandler pings the storage backend and answers 503 when it is
// unreachable. A Check without Ping (the file backend) is always healthy.
func HealthHandler(check Check) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		body := map[string]interface{}{
			"status":  "healthy",
			"backend": check.Backend,
		}
		if check.Stats != nil {
			body["pool"] = check.Stats()
		}

		if check.Ping != nil {
			if err := check.Ping(ctx); err != nil {
				body["status"] = "unhealthy"
				body["error"] = err.Error()
				return c.JSON(http.StatusServiceUnavailable, body)
			}
		}
		return c.JSON(http.StatusOK, body)
	}
}

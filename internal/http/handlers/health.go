package handlers

import (
	"context"
	"log/slog"
	"time"

	"github.com/valyala/fasthttp"
	"gorm.io/gorm"

	"callstats/internal/config"
	dbpkg "callstats/internal/db"
)

const dbProbeTimeout = 5 * time.Second

// Health reports service and database liveness for the load balancer.
func Health(db *gorm.DB, cfg *config.Config, rec CallRecorder, logger *slog.Logger) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		dbStatus := "healthy"
		if err := ping(ctx, db); err != nil {
			logger.Error("database health check failed", "err", err)
			dbStatus = "unhealthy"
		}

		record(rec, ctx, "/health")

		code := fasthttp.StatusOK
		if dbStatus != "healthy" {
			code = fasthttp.StatusServiceUnavailable
		}
		jsonResponse(ctx, code, map[string]any{
			"status":      "healthy",
			"timestamp":   timestamp(),
			"environment": cfg.Environment,
			"version":     cfg.Version,
			"database":    dbStatus,
			"service":     "backend-api",
		})
	}
}

// TestDB runs a server-side probe query and reports connection details.
func TestDB(db *gorm.DB, cfg *config.Config, rec CallRecorder, logger *slog.Logger) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		probeCtx, cancel := context.WithTimeout(ctx, dbProbeTimeout)
		defer cancel()

		info, err := dbpkg.ProbeServer(probeCtx, db)
		if err != nil {
			logger.Error("database test failed", "err", err)
			jsonResponse(ctx, fasthttp.StatusServiceUnavailable, map[string]any{
				"database_status": "error",
				"error":           err.Error(),
			})
			return
		}

		record(rec, ctx, "/api/test-db")

		jsonResponse(ctx, fasthttp.StatusOK, map[string]any{
			"database_status":    "connected",
			"current_time":       info.CurrentTime.String(),
			"postgresql_version": info.PgVersion,
			"connection_info": map[string]any{
				"host":     cfg.DatabaseHost,
				"database": cfg.DatabaseName,
				"port":     cfg.DatabasePort,
			},
		})
	}
}

func ping(ctx *fasthttp.RequestCtx, db *gorm.DB) error {
	if db == nil {
		return gorm.ErrInvalidDB
	}
	pingCtx, cancel := context.WithTimeout(ctx, dbProbeTimeout)
	defer cancel()
	return dbpkg.Ping(pingCtx, db)
}

package handlers

import (
	"log/slog"

	"github.com/valyala/fasthttp"
	"gorm.io/gorm"

	dbpkg "callstats/internal/db"
)

// Stats reports user and API-call statistics. Call counts and uptime never
// fail the request; only the user count can.
func Stats(db *gorm.DB, rec CallRecorder, stats CallStats, logger *slog.Logger) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		users, err := dbpkg.CountUsers(ctx, db)
		if err != nil {
			logger.Error("error in get_stats", "err", err)
			errResponse(ctx, fasthttp.StatusInternalServerError, err.Error())
			return
		}

		body := map[string]any{
			"total_users":     users,
			"total_api_calls": stats.TotalCalls(ctx),
			"health_checks":   stats.CountForEndpoint(ctx, "/health"),
			"data_requests":   stats.CountForEndpoint(ctx, "/api/data"),
			"uptime":          stats.Uptime(ctx),
			"timestamp":       timestamp(),
		}

		record(rec, ctx, "/api/stats")

		jsonResponse(ctx, fasthttp.StatusOK, body)
	}
}

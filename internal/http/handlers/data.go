package handlers

import (
	"os"

	"github.com/valyala/fasthttp"

	"callstats/internal/config"
)

// Data returns the sample payload used by the frontend's connectivity panel.
func Data(cfg *config.Config, rec CallRecorder, stats CallStats) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		record(rec, ctx, "/api/data")

		jsonResponse(ctx, fasthttp.StatusOK, map[string]any{
			"message":        "API is working perfectly!",
			"environment":    cfg.Environment,
			"timestamp":      timestamp(),
			"total_requests": stats.TotalCalls(ctx),
			"server_info": map[string]any{
				"host":   envOr("HOSTNAME", "unknown"),
				"region": envOr("AWS_REGION", "us-east-1"),
				"az":     envOr("AWS_AZ", "unknown"),
			},
		})
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

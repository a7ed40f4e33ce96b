package middleware

import (
	"log/slog"
	"time"

	"github.com/valyala/fasthttp"
)

// RequestLogger logs method, path, status, duration and client address.
func RequestLogger(logger *slog.Logger) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			start := time.Now()
			next(ctx)
			logger.Info("request",
				"method", string(ctx.Method()),
				"path", string(ctx.Path()),
				"status", ctx.Response.StatusCode(),
				"duration", time.Since(start),
				"ip", ctx.RemoteIP().String(),
			)
		}
	}
}

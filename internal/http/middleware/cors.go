package middleware

import (
	"github.com/valyala/fasthttp"

	"callstats/internal/config"
)

// CORS sets cross-origin headers for origins listed in ALLOWED_ORIGINS and
// answers preflight requests directly.
func CORS(cfg *config.Config) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			origin := string(ctx.Request.Header.Peek("Origin"))
			if origin != "" && cfg.OriginAllowed(origin) {
				h := &ctx.Response.Header
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
				h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

				if ctx.IsOptions() && len(ctx.Request.Header.Peek("Access-Control-Request-Method")) > 0 {
					ctx.SetStatusCode(fasthttp.StatusNoContent)
					return
				}
			}
			next(ctx)
		}
	}
}

package handlers

import (
	"context"
	"encoding/json"

	"github.com/valyala/fasthttp"
)

// CallRecorder records one telemetry event per handled request. It never fails.
type CallRecorder interface {
	Record(ctx context.Context, endpoint, method, userAgent, sourceAddress string)
}

// CallStats exposes the aggregate views derived from the call log.
type CallStats interface {
	TotalCalls(ctx context.Context) int64
	CountForEndpoint(ctx context.Context, endpoint string) int64
	Uptime(ctx context.Context) string
}

// record logs the current request against the logical endpoint path.
func record(rec CallRecorder, ctx *fasthttp.RequestCtx, endpoint string) {
	if rec == nil {
		return
	}
	// Detached from the request so server shutdown does not cancel an
	// in-flight append; the recorder's own timeout still bounds it.
	rec.Record(context.WithoutCancel(ctx), endpoint, string(ctx.Method()), string(ctx.UserAgent()), ctx.RemoteIP().String())
}

func jsonResponse(ctx *fasthttp.RequestCtx, code int, data map[string]any) {
	body, err := json.Marshal(data)
	if err != nil {
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		ctx.SetBodyString(`{"error":"failed to encode response"}`)
		return
	}
	ctx.SetStatusCode(code)
	ctx.SetContentType("application/json")
	ctx.SetBody(body)
}

func errResponse(ctx *fasthttp.RequestCtx, code int, msg string) {
	jsonResponse(ctx, code, map[string]any{"error": msg})
}

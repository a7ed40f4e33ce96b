package handlers

import (
	"fmt"
	"log/slog"

	"github.com/fasthttp/router"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/valyala/fasthttp"
	"gorm.io/gorm"

	"callstats/internal/config"
)

// Deps are the collaborators the API routes need.
type Deps struct {
	DB       *gorm.DB
	Config   *config.Config
	Recorder CallRecorder
	Stats    CallStats
	Gatherer prometheus.Gatherer
	Logger   *slog.Logger
}

// NewRouter registers every API route plus the JSON 404/405/500 handlers.
func NewRouter(d Deps) *router.Router {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	gatherer := d.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r := router.New()

	r.GET("/health", Health(d.DB, d.Config, d.Recorder, logger))
	r.GET("/api/data", Data(d.Config, d.Recorder, d.Stats))
	r.GET("/api/users", ListUsers(d.DB, d.Recorder, logger))
	r.POST("/api/users", CreateUser(d.DB, d.Recorder, logger))
	r.GET("/api/stats", Stats(d.DB, d.Recorder, d.Stats, logger))
	r.GET("/api/test-db", TestDB(d.DB, d.Config, d.Recorder, logger))
	r.GET("/metrics", Metrics(gatherer))

	r.NotFound = func(ctx *fasthttp.RequestCtx) {
		jsonResponse(ctx, fasthttp.StatusNotFound, map[string]any{
			"error":     "Endpoint not found",
			"status":    fasthttp.StatusNotFound,
			"timestamp": timestamp(),
		})
	}
	r.MethodNotAllowed = func(ctx *fasthttp.RequestCtx) {
		jsonResponse(ctx, fasthttp.StatusMethodNotAllowed, map[string]any{
			"error":     "Method not allowed",
			"status":    fasthttp.StatusMethodNotAllowed,
			"timestamp": timestamp(),
		})
	}
	r.PanicHandler = func(ctx *fasthttp.RequestCtx, p any) {
		logger.Error("internal server error", "panic", fmt.Sprint(p), "path", string(ctx.Path()))
		jsonResponse(ctx, fasthttp.StatusInternalServerError, map[string]any{
			"error":     "Internal server error",
			"status":    fasthttp.StatusInternalServerError,
			"timestamp": timestamp(),
		})
	}

	return r
}

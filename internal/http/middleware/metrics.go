package middleware

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/valyala/fasthttp"
)

// RequestMetrics counts served requests and observes their latency. Routes
// are labelled by path only for known endpoints to keep cardinality bounded.
func RequestMetrics(reg prometheus.Registerer, knownPaths ...string) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	requestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "callstats",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests served.",
		},
		[]string{"path", "method", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "callstats",
			Name:      "http_request_duration_seconds",
			Help:      "Histogram of HTTP request durations in seconds.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"path", "method"},
	)
	reg.MustRegister(requestsTotal, requestDuration)

	known := make(map[string]bool, len(knownPaths))
	for _, p := range knownPaths {
		known[p] = true
	}

	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			start := time.Now()
			next(ctx)

			path := string(ctx.Path())
			if !known[path] {
				path = "other"
			}
			method := string(ctx.Method())
			requestsTotal.WithLabelValues(path, method, strconv.Itoa(ctx.Response.StatusCode())).Inc()
			requestDuration.WithLabelValues(path, method).Observe(time.Since(start).Seconds())
		}
	}
}

// Chain applies middlewares so the first one listed is outermost.
func Chain(h fasthttp.RequestHandler, mws ...func(fasthttp.RequestHandler) fasthttp.RequestHandler) fasthttp.RequestHandler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

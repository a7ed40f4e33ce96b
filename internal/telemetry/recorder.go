package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

const defaultTimeout = 2 * time.Second

// Recorder appends one CallEvent per recorded request. Record never returns
// an error and never panics: a failed append is logged, counted and lost.
type Recorder struct {
	store   EventStore
	logger  *slog.Logger
	metrics *Metrics
	timeout time.Duration
	now     func() time.Time
	newID   func() string
}

// NewRecorder returns a Recorder over store. logger and metrics may be nil.
// A non-positive timeout falls back to two seconds.
func NewRecorder(store EventStore, logger *slog.Logger, metrics *Metrics, timeout time.Duration) *Recorder {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger != nil {
		logger = logger.With("component", "call_recorder")
	}
	return &Recorder{
		store:   store,
		logger:  logger,
		metrics: metrics,
		timeout: timeout,
		now:     time.Now,
		newID:   func() string { return uuid.NewString() },
	}
}

// Record appends an event for endpoint and method. userAgent and
// sourceAddress are optional; empty strings are stored as absent.
//
// The append runs on its own store handle, bounded by the recorder timeout,
// so it can neither abort nor outlive the caller's work by more than that.
func (r *Recorder) Record(ctx context.Context, endpoint, method, userAgent, sourceAddress string) {
	if r == nil || r.store == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	defer func() {
		if p := recover(); p != nil {
			r.drop("panic", endpoint, method, fmt.Errorf("%w: panic: %v", ErrQueryFailure, p))
		}
	}()

	// Stored verbatim: endpoint matching is exact, so no normalisation here.
	if strings.TrimSpace(endpoint) == "" || strings.TrimSpace(method) == "" {
		r.drop("invalid", endpoint, method, fmt.Errorf("%w: endpoint and method are required", ErrQueryFailure))
		return
	}

	event := &CallEvent{
		ID:            r.newID(),
		Endpoint:      endpoint,
		Method:        method,
		Timestamp:     r.now().UTC(),
		UserAgent:     optional(userAgent),
		SourceAddress: optional(sourceAddress),
	}

	appendCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	if err := r.store.Append(appendCtx, event); err != nil {
		r.drop(kindLabel(err), endpoint, method, err)
		return
	}
	r.metrics.incRecorded()
}

func (r *Recorder) drop(reason, endpoint, method string, err error) {
	r.metrics.incDropped(reason)
	if r.logger != nil {
		r.logger.Error("error logging API call", "endpoint", endpoint, "method", method, "reason", reason, "err", err)
	}
}

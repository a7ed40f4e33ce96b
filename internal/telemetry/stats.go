package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// UnknownUptime is reported when the log is empty or unreadable.
const UnknownUptime = "Unknown"

// Stats derives aggregate views from the event log. Nothing is cached: each
// query is one bounded store round trip against the current log.
type Stats struct {
	store   EventStore
	logger  *slog.Logger
	metrics *Metrics
	timeout time.Duration
	now     func() time.Time
}

// NewStats returns a Stats over store. logger and metrics may be nil.
func NewStats(store EventStore, logger *slog.Logger, metrics *Metrics, timeout time.Duration) *Stats {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger != nil {
		logger = logger.With("component", "stats_aggregator")
	}
	return &Stats{
		store:   store,
		logger:  logger,
		metrics: metrics,
		timeout: timeout,
		now:     time.Now,
	}
}

// TotalCalls returns the number of recorded events, or 0 on failure.
func (s *Stats) TotalCalls(ctx context.Context) int64 {
	n, err := s.count(ctx, CountFilter{})
	if err != nil {
		s.fail("total_calls", err)
		return 0
	}
	return n
}

// CountForEndpoint returns the number of events whose endpoint equals
// endpoint exactly, or 0 on failure. No path normalisation is applied, so
// "/api/data" and "/api/data/" are distinct.
func (s *Stats) CountForEndpoint(ctx context.Context, endpoint string) int64 {
	n, err := s.count(ctx, ForEndpoint(endpoint))
	if err != nil {
		s.fail("count_for_endpoint", err)
		return 0
	}
	return n
}

// Uptime approximates service uptime as the time since the oldest recorded
// event, formatted "<H>h <M>m". It returns UnknownUptime when the log is
// empty or the query fails.
func (s *Stats) Uptime(ctx context.Context) string {
	first, err := s.earliest(ctx)
	if err != nil {
		s.fail("uptime", err)
		return UnknownUptime
	}
	if first == nil {
		return UnknownUptime
	}
	return FormatUptime(s.now().Sub(first.Timestamp))
}

// FormatUptime renders d as whole hours and remaining whole minutes.
// Negative durations (clock skew) render as "0h 0m".
func FormatUptime(d time.Duration) string {
	secs := int64(d / time.Second)
	if secs < 0 {
		secs = 0
	}
	return fmt.Sprintf("%dh %dm", secs/3600, (secs%3600)/60)
}

func (s *Stats) count(ctx context.Context, f CountFilter) (n int64, err error) {
	if s == nil || s.store == nil {
		return 0, fmt.Errorf("%w: no event store", ErrStoreUnavailable)
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()
	defer recoverInto(&err)
	return s.store.Count(ctx, f)
}

func (s *Stats) earliest(ctx context.Context) (ev *CallEvent, err error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("%w: no event store", ErrStoreUnavailable)
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()
	defer recoverInto(&err)
	return s.store.Earliest(ctx)
}

func (s *Stats) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *Stats) fail(query string, err error) {
	if s == nil {
		return
	}
	s.metrics.incQueryFailure(query, kindLabel(err))
	if s.logger != nil {
		s.logger.Warn("stats query failed", "query", query, "err", err)
	}
}

func recoverInto(err *error) {
	if p := recover(); p != nil {
		*err = fmt.Errorf("%w: panic: %v", ErrQueryFailure, p)
	}
}

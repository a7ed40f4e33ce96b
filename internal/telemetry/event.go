// Package telemetry records one CallEvent per inbound API request and derives
// call counts and an uptime estimate from that log. Both sides fail open:
// store errors are logged and counted, never returned to request handlers.
package telemetry

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrStoreUnavailable marks connectivity failures: timeouts, cancelled
	// contexts, closed or broken connections.
	ErrStoreUnavailable = errors.New("event store unavailable")
	// ErrQueryFailure marks every other store failure (bad query, constraint
	// violation, unexpected result shape).
	ErrQueryFailure = errors.New("event store query failed")
)

// CallEvent is one durable record of a single inbound request.
type CallEvent struct {
	ID        string
	Endpoint  string
	Method    string
	Timestamp time.Time

	// Optional; nil when the request carried no value.
	UserAgent     *string
	SourceAddress *string
}

// CountFilter restricts Count. A nil Endpoint counts every event; otherwise
// only events whose endpoint equals it exactly (case-sensitive) are counted.
type CountFilter struct {
	Endpoint *string
}

// ForEndpoint returns a filter matching exactly endpoint.
func ForEndpoint(endpoint string) CountFilter {
	return CountFilter{Endpoint: &endpoint}
}

// EventStore is the durable append/count/earliest capability the recorder
// and aggregator consume. Implementations must be safe for concurrent use.
type EventStore interface {
	Append(ctx context.Context, event *CallEvent) error
	Count(ctx context.Context, filter CountFilter) (int64, error)
	// Earliest returns the event with the minimum timestamp, or nil when the
	// store is empty.
	Earliest(ctx context.Context) (*CallEvent, error)
}

// Kind reports which error kind err belongs to: ErrStoreUnavailable,
// ErrQueryFailure, or nil when err is nil. Unclassified errors count as
// query failures.
func Kind(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrStoreUnavailable):
		return ErrStoreUnavailable
	default:
		return ErrQueryFailure
	}
}

func kindLabel(err error) string {
	if Kind(err) == ErrStoreUnavailable {
		return "unavailable"
	}
	return "query"
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

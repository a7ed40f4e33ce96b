package telemetry

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// memStore is an in-memory EventStore with switchable failures.
type memStore struct {
	mu     sync.Mutex
	events []CallEvent

	appendErr   error
	countErr    error
	earliestErr error
	panicOn     string
}

func (m *memStore) Append(ctx context.Context, ev *CallEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.panicOn == "append" {
		panic("append exploded")
	}
	if m.appendErr != nil {
		return m.appendErr
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	m.events = append(m.events, *ev)
	return nil
}

func (m *memStore) Count(_ context.Context, f CountFilter) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.panicOn == "count" {
		panic("count exploded")
	}
	if m.countErr != nil {
		return 0, m.countErr
	}
	var n int64
	for _, ev := range m.events {
		if f.Endpoint == nil || ev.Endpoint == *f.Endpoint {
			n++
		}
	}
	return n, nil
}

func (m *memStore) Earliest(context.Context) (*CallEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.earliestErr != nil {
		return nil, m.earliestErr
	}
	var first *CallEvent
	for i := range m.events {
		if first == nil || m.events[i].Timestamp.Before(first.Timestamp) {
			ev := m.events[i]
			first = &ev
		}
	}
	return first, nil
}

func (m *memStore) snapshot() []CallEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]CallEvent(nil), m.events...)
}

var errConnRefused = fmt.Errorf("%w: dial tcp: connection refused", ErrStoreUnavailable)

var errBadQuery = errors.New("syntax error at or near \"FORM\"")

package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"callstats/internal/telemetry"
)

// CallStore is the gorm-backed telemetry.EventStore over the api_calls table.
type CallStore struct {
	db *gorm.DB
}

var _ telemetry.EventStore = (*CallStore)(nil)

// NewCallStore returns a CallStore using its own session of db, so appends
// never join a transaction the caller may have open on the same handle.
func NewCallStore(db *gorm.DB) *CallStore {
	return &CallStore{db: db.Session(&gorm.Session{NewDB: true})}
}

func (s *CallStore) Append(ctx context.Context, ev *telemetry.CallEvent) error {
	if ev == nil {
		return fmt.Errorf("append call event: %w: nil event", telemetry.ErrQueryFailure)
	}
	row := APICall{
		ID:        ev.ID,
		Endpoint:  ev.Endpoint,
		Method:    ev.Method,
		Timestamp: ev.Timestamp.UTC(),
		UserAgent: ev.UserAgent,
		IPAddress: ev.SourceAddress,
	}
	if row.ID == "" {
		row.ID = uuid.NewString()
		ev.ID = row.ID
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return storeError("append call event", err)
	}
	return nil
}

func (s *CallStore) Count(ctx context.Context, f telemetry.CountFilter) (int64, error) {
	q := s.db.WithContext(ctx).Model(&APICall{})
	if f.Endpoint != nil {
		q = q.Where("endpoint = ?", *f.Endpoint)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return 0, storeError("count call events", err)
	}
	return n, nil
}

func (s *CallStore) Earliest(ctx context.Context) (*telemetry.CallEvent, error) {
	// Find into a slice so an empty table is not reported as ErrRecordNotFound.
	var rows []APICall
	err := s.db.WithContext(ctx).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "timestamp"}}).
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return nil, storeError("earliest call event", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0].event(), nil
}

// Recent returns up to limit events, newest first.
func (s *CallStore) Recent(ctx context.Context, limit int) ([]telemetry.CallEvent, error) {
	if limit <= 0 {
		limit = 10
	}
	var rows []APICall
	err := s.db.WithContext(ctx).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "timestamp"}, Desc: true}).
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, storeError("recent call events", err)
	}
	out := make([]telemetry.CallEvent, 0, len(rows))
	for i := range rows {
		out = append(out, *rows[i].event())
	}
	return out, nil
}

func (r *APICall) event() *telemetry.CallEvent {
	return &telemetry.CallEvent{
		ID:            r.ID,
		Endpoint:      r.Endpoint,
		Method:        r.Method,
		Timestamp:     r.Timestamp,
		UserAgent:     r.UserAgent,
		SourceAddress: r.IPAddress,
	}
}

// storeError wraps err with the telemetry error kind it belongs to.
func storeError(op string, err error) error {
	if unavailable(err) {
		return fmt.Errorf("%s: %w: %w", op, telemetry.ErrStoreUnavailable, err)
	}
	return fmt.Errorf("%s: %w: %w", op, telemetry.ErrQueryFailure, err)
}

func unavailable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	// database/sql reports a closed pool with an unexported error value.
	return strings.Contains(err.Error(), "sql: database is closed")
}

// Package sqlite provides a SQLite-backed event store.
//
// SQLite serializes writers, so the expected-version check inside the append
// transaction plus the (aggregate_id, seq) primary key is enough to defend
// the gapless sequence invariant against any interleaving.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/cebartling/otherworlds-rpg/internal/engine/event"
	"github.com/cebartling/otherworlds-rpg/internal/engine/store"
	"github.com/cebartling/otherworlds-rpg/internal/engine/store/sqlite/migrations"
	"github.com/cebartling/otherworlds-rpg/internal/platform/storage/sqlitemigrate"
	"github.com/cebartling/otherworlds-rpg/internal/platform/telemetry"
)

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

// fromMillis reverses toMillis for persisted millisecond timestamps.
func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Store provides a SQLite-backed event store.
type Store struct {
	sqlDB *sql.DB
}

var _ store.EventStore = (*Store)(nil)

// Open opens (creating if needed) a SQLite event journal at the given path
// and applies pending migrations.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// modernc sqlite is a single-writer engine; one connection avoids
	// SQLITE_BUSY churn between concurrent appends.
	sqlDB.SetMaxOpenConns(1)

	if err := sqlitemigrate.Apply(context.Background(), sqlDB, migrations.FS, "."); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// LoadEvents returns all events for the aggregate in ascending sequence order.
func (s *Store) LoadEvents(ctx context.Context, aggregateID string) ([]event.Event, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "sqlite.LoadEvents",
		trace.WithAttributes(attribute.String("aggregate.id", aggregateID)))
	defer span.End()

	if err := ctx.Err(); err != nil {
		return nil, store.Infra("load events", err)
	}
	if s == nil || s.sqlDB == nil {
		return nil, store.Infra("load events", errors.New("storage is not configured"))
	}
	if aggregateID == "" {
		return nil, store.Infra("load events", errors.New("aggregate id is required"))
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT aggregate_id, seq, event_id, event_type, payload_version, payload_json,
		        correlation_id, causation_id, occurred_at
		 FROM events WHERE aggregate_id = ? ORDER BY seq ASC`, aggregateID)
	if err != nil {
		return nil, store.Infra("query events", err)
	}
	defer rows.Close()

	var events []event.Event
	for rows.Next() {
		evt, err := scanEvent(rows)
		if err != nil {
			return nil, store.Infra("scan event", err)
		}
		events = append(events, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Infra("iterate events", err)
	}
	span.SetAttributes(attribute.Int("event.count", len(events)))
	return events, nil
}

// AppendEvents atomically appends the batch under the expected-version
// precondition. Sequence numbers expectedVersion+1.. are assigned inside the
// transaction; on a lost race nothing is persisted and a *ConflictError
// carries the version actually found.
func (s *Store) AppendEvents(ctx context.Context, aggregateID string, expectedVersion uint64, events []event.Event) (uint64, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "sqlite.AppendEvents",
		trace.WithAttributes(
			attribute.String("aggregate.id", aggregateID),
			attribute.Int64("expected.version", int64(expectedVersion)),
			attribute.Int("event.count", len(events)),
		))
	defer span.End()

	if err := ctx.Err(); err != nil {
		return 0, store.Infra("append events", err)
	}
	if s == nil || s.sqlDB == nil {
		return 0, store.Infra("append events", errors.New("storage is not configured"))
	}
	if aggregateID == "" {
		return 0, store.Infra("append events", errors.New("aggregate id is required"))
	}
	if len(events) == 0 {
		return 0, store.ErrEmptyBatch
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return 0, store.Infra("begin tx", err)
	}
	defer tx.Rollback()

	actual, err := currentVersionTx(ctx, tx, aggregateID)
	if err != nil {
		return 0, err
	}
	if actual != expectedVersion {
		return 0, &store.ConflictError{AggregateID: aggregateID, Expected: expectedVersion, Actual: actual}
	}

	for i, evt := range events {
		seq := expectedVersion + uint64(i) + 1
		_, err := tx.ExecContext(ctx,
			`INSERT INTO events (aggregate_id, seq, event_id, event_type, payload_version,
			                     payload_json, correlation_id, causation_id, occurred_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			aggregateID, int64(seq), evt.EventID, string(evt.Type), evt.PayloadVersion,
			evt.PayloadJSON, evt.CorrelationID, evt.CausationID, toMillis(evt.OccurredAt),
		)
		if err != nil {
			if isConstraintError(err) {
				// A concurrent writer slipped in between our version read
				// and the insert. The constraint failure aborts only the
				// statement, not the transaction, and the pool has a single
				// connection, so the re-query must run through the tx.
				current, versionErr := currentVersionTx(ctx, tx, aggregateID)
				if versionErr == nil && current != expectedVersion {
					return 0, &store.ConflictError{AggregateID: aggregateID, Expected: expectedVersion, Actual: current}
				}
			}
			return 0, store.Infra(fmt.Sprintf("insert event %d", i), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, store.Infra("commit", err)
	}

	return expectedVersion + uint64(len(events)), nil
}

// ListEvents returns up to limit events with sequence numbers greater than
// afterSeq, in ascending order.
func (s *Store) ListEvents(ctx context.Context, aggregateID string, afterSeq uint64, limit int) ([]event.Event, error) {
	if s == nil || s.sqlDB == nil {
		return nil, store.Infra("list events", errors.New("storage is not configured"))
	}
	if aggregateID == "" {
		return nil, store.Infra("list events", errors.New("aggregate id is required"))
	}
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT aggregate_id, seq, event_id, event_type, payload_version, payload_json,
		        correlation_id, causation_id, occurred_at
		 FROM events WHERE aggregate_id = ? AND seq > ? ORDER BY seq ASC LIMIT ?`,
		aggregateID, int64(afterSeq), limit)
	if err != nil {
		return nil, store.Infra("list events", err)
	}
	defer rows.Close()

	var events []event.Event
	for rows.Next() {
		evt, err := scanEvent(rows)
		if err != nil {
			return nil, store.Infra("scan event", err)
		}
		events = append(events, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Infra("iterate events", err)
	}
	return events, nil
}

// CurrentVersion returns the aggregate's highest persisted sequence number,
// zero when the aggregate has never been written.
func (s *Store) CurrentVersion(ctx context.Context, aggregateID string) (uint64, error) {
	if s == nil || s.sqlDB == nil {
		return 0, store.Infra("current version", errors.New("storage is not configured"))
	}
	return s.currentVersion(ctx, aggregateID)
}

// AggregateIDs returns every aggregate id with at least one event, sorted.
func (s *Store) AggregateIDs(ctx context.Context) ([]string, error) {
	if s == nil || s.sqlDB == nil {
		return nil, store.Infra("list aggregates", errors.New("storage is not configured"))
	}

	rows, err := s.sqlDB.QueryContext(ctx, "SELECT DISTINCT aggregate_id FROM events ORDER BY aggregate_id")
	if err != nil {
		return nil, store.Infra("list aggregates", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, store.Infra("scan aggregate id", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Infra("iterate aggregate ids", err)
	}
	return ids, nil
}

func (s *Store) currentVersion(ctx context.Context, aggregateID string) (uint64, error) {
	var max sql.NullInt64
	err := s.sqlDB.QueryRowContext(ctx,
		"SELECT MAX(seq) FROM events WHERE aggregate_id = ?", aggregateID).Scan(&max)
	if err != nil {
		return 0, store.Infra("query current version", err)
	}
	if !max.Valid {
		return 0, nil
	}
	return uint64(max.Int64), nil
}

func currentVersionTx(ctx context.Context, tx *sql.Tx, aggregateID string) (uint64, error) {
	var max sql.NullInt64
	err := tx.QueryRowContext(ctx,
		"SELECT MAX(seq) FROM events WHERE aggregate_id = ?", aggregateID).Scan(&max)
	if err != nil {
		return 0, store.Infra("query current version", err)
	}
	if !max.Valid {
		return 0, nil
	}
	return uint64(max.Int64), nil
}

func scanEvent(rows *sql.Rows) (event.Event, error) {
	var (
		evt        event.Event
		seq        int64
		typ        string
		occurredAt int64
	)
	if err := rows.Scan(
		&evt.AggregateID,
		&seq,
		&evt.EventID,
		&typ,
		&evt.PayloadVersion,
		&evt.PayloadJSON,
		&evt.CorrelationID,
		&evt.CausationID,
		&occurredAt,
	); err != nil {
		return event.Event{}, err
	}
	evt.Seq = uint64(seq)
	evt.Type = event.Type(typ)
	evt.OccurredAt = fromMillis(occurredAt)
	return evt, nil
}

func isConstraintError(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code()
	return code == sqlite3.SQLITE_CONSTRAINT ||
		code == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
		code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}

// Package postgres implements the event store contract backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/cebartling/otherworlds-rpg/internal/engine/event"
	"github.com/cebartling/otherworlds-rpg/internal/engine/store"
	"github.com/cebartling/otherworlds-rpg/internal/platform/telemetry"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// uniqueViolation is the PostgreSQL error code for a unique constraint hit.
const uniqueViolation = "23505"

// Store implements the event store contract backed by a PostgreSQL database.
type Store struct {
	db *sql.DB
}

var _ store.EventStore = (*Store)(nil)

// New opens a connection to the PostgreSQL database at the given URL,
// configures the connection pool, and runs any pending migrations.
func New(databaseURL string) (*Store, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// NewWithDB wraps an already-open database handle without running
// migrations. The caller owns the handle's lifecycle.
func NewWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := migratepg.WithInstance(db, &migratepg.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// LoadEvents returns all events for the aggregate in ascending sequence order.
func (s *Store) LoadEvents(ctx context.Context, aggregateID string) ([]event.Event, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "postgres.LoadEvents",
		trace.WithAttributes(attribute.String("aggregate.id", aggregateID)))
	defer span.End()

	if aggregateID == "" {
		return nil, store.Infra("load events", errors.New("aggregate id is required"))
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT aggregate_id, seq, event_id, event_type, payload_version, payload_json,
		        correlation_id, causation_id, occurred_at
		 FROM events WHERE aggregate_id = $1 ORDER BY seq ASC`, aggregateID)
	if err != nil {
		return nil, store.Infra("query events", err)
	}
	defer rows.Close()

	var events []event.Event
	for rows.Next() {
		var (
			evt        event.Event
			seq        int64
			typ        string
			occurredAt time.Time
		)
		if err := rows.Scan(
			&evt.AggregateID, &seq, &evt.EventID, &typ, &evt.PayloadVersion,
			&evt.PayloadJSON, &evt.CorrelationID, &evt.CausationID, &occurredAt,
		); err != nil {
			return nil, store.Infra("scan event", err)
		}
		evt.Seq = uint64(seq)
		evt.Type = event.Type(typ)
		evt.OccurredAt = occurredAt.UTC()
		events = append(events, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Infra("iterate events", err)
	}
	span.SetAttributes(attribute.Int("event.count", len(events)))
	return events, nil
}

// AppendEvents atomically appends the batch under the expected-version
// precondition, assigning sequence numbers expectedVersion+1.. inside the
// transaction. A lost race surfaces as *ConflictError with the version
// actually found, whether caught by the proactive check or the unique
// constraint on (aggregate_id, seq).
func (s *Store) AppendEvents(ctx context.Context, aggregateID string, expectedVersion uint64, events []event.Event) (uint64, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "postgres.AppendEvents",
		trace.WithAttributes(
			attribute.String("aggregate.id", aggregateID),
			attribute.Int64("expected.version", int64(expectedVersion)),
			attribute.Int("event.count", len(events)),
		))
	defer span.End()

	if aggregateID == "" {
		return 0, store.Infra("append events", errors.New("aggregate id is required"))
	}
	if len(events) == 0 {
		return 0, store.ErrEmptyBatch
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, store.Infra("begin tx", err)
	}
	defer tx.Rollback()

	var max sql.NullInt64
	err = tx.QueryRowContext(ctx,
		"SELECT MAX(seq) FROM events WHERE aggregate_id = $1", aggregateID).Scan(&max)
	if err != nil {
		return 0, store.Infra("query current version", err)
	}
	actual := uint64(0)
	if max.Valid {
		actual = uint64(max.Int64)
	}
	if actual != expectedVersion {
		return 0, &store.ConflictError{AggregateID: aggregateID, Expected: expectedVersion, Actual: actual}
	}

	for i, evt := range events {
		seq := expectedVersion + uint64(i) + 1
		_, err := tx.ExecContext(ctx,
			`INSERT INTO events (aggregate_id, seq, event_id, event_type, payload_version,
			                     payload_json, correlation_id, causation_id, occurred_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			aggregateID, int64(seq), evt.EventID, string(evt.Type), evt.PayloadVersion,
			evt.PayloadJSON, evt.CorrelationID, evt.CausationID, evt.OccurredAt.UTC(),
		)
		if err != nil {
			if isUniqueViolation(err) {
				// Re-query from the pool, not the aborted transaction, so
				// the conflict carries the version actually stored.
				current, versionErr := s.currentVersion(ctx, aggregateID)
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

func (s *Store) currentVersion(ctx context.Context, aggregateID string) (uint64, error) {
	var max sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		"SELECT MAX(seq) FROM events WHERE aggregate_id = $1", aggregateID).Scan(&max)
	if err != nil {
		return 0, store.Infra("query current version", err)
	}
	if !max.Valid {
		return 0, nil
	}
	return uint64(max.Int64), nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return string(pqErr.Code) == uniqueViolation
}

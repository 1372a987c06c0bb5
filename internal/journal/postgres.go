package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
)

const schema = `
CREATE TABLE IF NOT EXISTS facility_submissions (
	id                  UUID PRIMARY KEY,
	request_id          TEXT NOT NULL DEFAULT '',
	facility_identifier TEXT NOT NULL,
	operation           TEXT NOT NULL,
	state               TEXT NOT NULL,
	created             JSONB NOT NULL,
	failures            JSONB NOT NULL,
	recorded_at         TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS facility_submissions_facility_idx
	ON facility_submissions (facility_identifier, recorded_at);
`

// Postgres is a Journal stored in PostgreSQL.
type Postgres struct {
	db *sql.DB
}

// OpenPostgres connects to dsn and makes sure the journal table exists.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open journal db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping journal db: %w", err)
	}

	p := NewPostgres(db)
	if err := p.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return p, nil
}

// NewPostgres wraps an open database handle.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Migrate creates the journal table if needed.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate journal: %w", err)
	}
	return nil
}

// Close closes the database handle.
func (p *Postgres) Close() error {
	return p.db.Close()
}

func (p *Postgres) Record(ctx context.Context, e Entry) error {
	e = Stamp(e, time.Now())

	created, err := json.Marshal(nonNil(e.Created))
	if err != nil {
		return fmt.Errorf("encode created: %w", err)
	}
	failures, err := json.Marshal(nonNil(e.Failures))
	if err != nil {
		return fmt.Errorf("encode failures: %w", err)
	}

	query := `
		INSERT INTO facility_submissions (
			id, request_id, facility_identifier, operation, state,
			created, failures, recorded_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = p.db.ExecContext(ctx, query,
		e.ID,
		e.RequestID,
		e.FacilityIdentifier,
		e.Operation,
		e.State,
		created,
		failures,
		e.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record submission: %w", err)
	}
	return nil
}

func (p *Postgres) List(ctx context.Context, facilityID string) ([]Entry, error) {
	query := `
		SELECT id, request_id, facility_identifier, operation, state,
		       created, failures, recorded_at
		FROM facility_submissions
		WHERE facility_identifier = $1
		ORDER BY recorded_at
	`
	rows, err := p.db.QueryContext(ctx, query, facilityID)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	defer rows.Close()

	out := []Entry{}
	for rows.Next() {
		var (
			e                 Entry
			created, failures []byte
		)
		if err := rows.Scan(
			&e.ID,
			&e.RequestID,
			&e.FacilityIdentifier,
			&e.Operation,
			&e.State,
			&created,
			&failures,
			&e.RecordedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan submission: %w", err)
		}
		if err := json.Unmarshal(created, &e.Created); err != nil {
			return nil, fmt.Errorf("decode created: %w", err)
		}
		if err := json.Unmarshal(failures, &e.Failures); err != nil {
			return nil, fmt.Errorf("decode failures: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate submissions: %w", err)
	}
	return out, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

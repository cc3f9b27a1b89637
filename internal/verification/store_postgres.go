package verification

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alumnet/alumnet/internal/db"
)

var _ Store = (*PostgresStore)(nil)

const recordColumns = `alumni_id, alumni_name, alumni_email, status, requested_at, decided_at, decided_by`

// PostgresStore persists records in the alumni_verifications table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a store backed by pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Submit upserts in one statement; the conflict branch only fires while the
// stored row is still PENDING, so a terminal row yields no result.
func (s *PostgresStore) Submit(ctx context.Context, rec Record) (Record, error) {
	row := s.pool.QueryRow(ctx, `
INSERT INTO alumni_verifications (alumni_id, alumni_name, alumni_email, status, requested_at, decided_by)
VALUES ($1, $2, $3, $4, $5, '')
ON CONFLICT (alumni_id) DO UPDATE
SET alumni_name = EXCLUDED.alumni_name, alumni_email = EXCLUDED.alumni_email
WHERE alumni_verifications.status = 'PENDING'
RETURNING `+recordColumns,
		rec.AlumniID, rec.Name, rec.Email, string(rec.Status), db.Timestamptz(rec.RequestedAt))
	saved, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrInvalidTransition
		}
		return Record{}, db.Wrap("upsert verification", err)
	}
	return saved, nil
}

func (s *PostgresStore) Get(ctx context.Context, alumniID string) (Record, error) {
	rec, err := scanRecord(s.pool.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM alumni_verifications WHERE alumni_id = $1`, alumniID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrRequestNotFound
		}
		return Record{}, db.Wrap("get verification", err)
	}
	return rec, nil
}

// Decide locks the row, re-checks PENDING and writes the decision in one transaction.
func (s *PostgresStore) Decide(ctx context.Context, alumniID string, d Decision) (Record, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Record{}, fmt.Errorf("begin verification decide tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	locked, err := scanRecord(tx.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM alumni_verifications WHERE alumni_id = $1 FOR UPDATE`, alumniID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrRequestNotFound
		}
		return Record{}, db.Wrap("lock verification", err)
	}
	if locked.Status != StatusPending {
		return Record{}, ErrDuplicateDecision
	}

	updated, err := scanRecord(tx.QueryRow(ctx, `
UPDATE alumni_verifications
SET status = $2, decided_at = $3, decided_by = $4
WHERE alumni_id = $1
RETURNING `+recordColumns,
		alumniID, string(d.Status), db.Timestamptz(d.DecidedAt), d.DecidedBy))
	if err != nil {
		return Record{}, db.Wrap("update verification", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return Record{}, fmt.Errorf("commit verification decide tx: %w", err)
	}
	return updated, nil
}

func (s *PostgresStore) ListPending(ctx context.Context) ([]Record, error) {
	rows, err := s.pool.Query(ctx, `
SELECT `+recordColumns+` FROM alumni_verifications
WHERE status = 'PENDING'
ORDER BY requested_at, alumni_id`)
	if err != nil {
		return nil, db.Wrap("list pending verifications", err)
	}
	defer rows.Close()
	out := make([]Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, db.Wrap("scan verification", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanRecord(row pgx.Row) (Record, error) {
	var (
		rec         Record
		status      string
		requestedAt pgtype.Timestamptz
		decidedAt   pgtype.Timestamptz
	)
	if err := row.Scan(&rec.AlumniID, &rec.Name, &rec.Email, &status, &requestedAt, &decidedAt, &rec.DecidedBy); err != nil {
		return Record{}, err
	}
	rec.Status = Status(status)
	rec.RequestedAt = db.TimeFromPg(requestedAt)
	rec.DecidedAt = db.TimeFromPg(decidedAt)
	return rec, nil
}

package mentorship

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alumnet/alumnet/internal/db"
)

var _ Store = (*PostgresStore)(nil)

const requestColumns = `id::text, student_id, alumni_id, message, status, created_at, responded_at, response_message`

// PostgresStore persists requests in the mentorship_requests table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a store backed by pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Create(ctx context.Context, req Request) (Request, error) {
	row := s.pool.QueryRow(ctx, `
INSERT INTO mentorship_requests (id, student_id, alumni_id, message, status, created_at, response_message)
VALUES ($1, $2, $3, $4, $5, $6, '')
RETURNING `+requestColumns,
		req.ID, req.StudentID, req.AlumniID, req.Message, string(req.Status), db.Timestamptz(req.CreatedAt))
	created, err := scanRequest(row)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Request{}, ErrPendingRequestExists
		}
		return Request{}, db.Wrap("insert mentorship request", err)
	}
	return created, nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (Request, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Request{}, ErrRequestNotFound
	}
	row := s.pool.QueryRow(ctx, `SELECT `+requestColumns+` FROM mentorship_requests WHERE id = $1`, id)
	req, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Request{}, ErrRequestNotFound
		}
		return Request{}, db.Wrap("get mentorship request", err)
	}
	return req, nil
}

// Decide locks the row, re-checks PENDING and writes the decision in one transaction.
func (s *PostgresStore) Decide(ctx context.Context, id string, d Decision) (Request, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Request{}, ErrRequestNotFound
	}
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Request{}, fmt.Errorf("begin mentorship decide tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	locked, err := scanRequest(tx.QueryRow(ctx,
		`SELECT `+requestColumns+` FROM mentorship_requests WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Request{}, ErrRequestNotFound
		}
		return Request{}, db.Wrap("lock mentorship request", err)
	}
	if locked.Status != StatusPending {
		return Request{}, ErrDuplicateDecision
	}

	updated, err := scanRequest(tx.QueryRow(ctx, `
UPDATE mentorship_requests
SET status = $2, responded_at = $3, response_message = $4
WHERE id = $1
RETURNING `+requestColumns,
		id, string(d.Status), db.Timestamptz(d.RespondedAt), d.ResponseMessage))
	if err != nil {
		return Request{}, db.Wrap("update mentorship request", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return Request{}, fmt.Errorf("commit mentorship decide tx: %w", err)
	}
	return updated, nil
}

func (s *PostgresStore) ListByAlumni(ctx context.Context, alumniID string, status Status) ([]Request, error) {
	rows, err := s.pool.Query(ctx, `
SELECT `+requestColumns+` FROM mentorship_requests
WHERE alumni_id = $1 AND ($2::text = '' OR status = $2)
ORDER BY created_at DESC, id`, alumniID, string(status))
	if err != nil {
		return nil, db.Wrap("list mentorship requests by alumni", err)
	}
	return collectRequests(rows)
}

func (s *PostgresStore) ListByStudent(ctx context.Context, studentID string) ([]Request, error) {
	rows, err := s.pool.Query(ctx, `
SELECT `+requestColumns+` FROM mentorship_requests
WHERE student_id = $1
ORDER BY created_at DESC, id`, studentID)
	if err != nil {
		return nil, db.Wrap("list mentorship requests by student", err)
	}
	return collectRequests(rows)
}

func collectRequests(rows pgx.Rows) ([]Request, error) {
	defer rows.Close()
	out := make([]Request, 0)
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, db.Wrap("scan mentorship request", err)
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

func scanRequest(row pgx.Row) (Request, error) {
	var (
		req         Request
		status      string
		createdAt   pgtype.Timestamptz
		respondedAt pgtype.Timestamptz
	)
	if err := row.Scan(&req.ID, &req.StudentID, &req.AlumniID, &req.Message, &status,
		&createdAt, &respondedAt, &req.ResponseMessage); err != nil {
		return Request{}, err
	}
	req.Status = Status(status)
	req.CreatedAt = db.TimeFromPg(createdAt)
	req.RespondedAt = db.TimeFromPg(respondedAt)
	return req, nil
}

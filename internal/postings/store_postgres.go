package postings

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alumnet/alumnet/internal/db"
)

var _ Store = (*PostgresStore)(nil)

const postingColumns = `id::text, kind, title, organization, location, starts_at, created_by, created_at`

// PostgresStore persists postings in the postings table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Insert(ctx context.Context, p Posting) (Posting, error) {
	row := s.pool.QueryRow(ctx, `
INSERT INTO postings (id, kind, title, organization, location, starts_at, created_by, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING `+postingColumns,
		p.ID, string(p.Kind), p.Title, p.Organization, p.Location,
		db.Timestamptz(p.StartsAt), p.CreatedBy, db.Timestamptz(p.CreatedAt))
	saved, err := scanPosting(row)
	if err != nil {
		return Posting{}, db.Wrap("insert posting", err)
	}
	return saved, nil
}

func (s *PostgresStore) List(ctx context.Context, kind Kind, limit int) ([]Posting, error) {
	rows, err := s.pool.Query(ctx, `
SELECT `+postingColumns+` FROM postings
WHERE ($1::text = '' OR kind = $1)
ORDER BY created_at DESC
LIMIT $2`, string(kind), limit)
	if err != nil {
		return nil, db.Wrap("list postings", err)
	}
	defer rows.Close()
	out := make([]Posting, 0)
	for rows.Next() {
		p, err := scanPosting(rows)
		if err != nil {
			return nil, db.Wrap("scan posting", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPosting(row pgx.Row) (Posting, error) {
	var (
		p         Posting
		kind      string
		startsAt  pgtype.Timestamptz
		createdAt pgtype.Timestamptz
	)
	if err := row.Scan(&p.ID, &kind, &p.Title, &p.Organization, &p.Location, &startsAt, &p.CreatedBy, &createdAt); err != nil {
		return Posting{}, err
	}
	p.Kind = Kind(kind)
	p.StartsAt = db.TimeFromPg(startsAt)
	p.CreatedAt = db.TimeFromPg(createdAt)
	return p, nil
}

package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sawpanic/cryptorun/internal/domain"
	"github.com/sawpanic/cryptorun/internal/persistence"
)

// assetRepo, quoteRepo and sectionRepo are the three small lookup tables
// the schema hangs everything else off of. EnsureExists is a single
// INSERT ... ON CONFLICT rather than a SELECT-then-INSERT round trip:
// asset and quote do nothing on conflict, section overwrites its settings.
type assetRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

func NewAssetRepo(db *sqlx.DB, timeout time.Duration) persistence.AssetRepo {
	return &assetRepo{db: db, timeout: timeout}
}

func (r *assetRepo) EnsureExists(ctx context.Context, name string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	_, err := r.db.ExecContext(ctx, `INSERT INTO asset (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`, name)
	if err != nil {
		return fmt.Errorf("ensure asset %s: %w", name, err)
	}
	return nil
}

func (r *assetRepo) List(ctx context.Context) ([]domain.Asset, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	var out []domain.Asset
	if err := r.db.SelectContext(ctx, &out, `SELECT name FROM asset ORDER BY name`); err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	return out, nil
}

type quoteRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

func NewQuoteRepo(db *sqlx.DB, timeout time.Duration) persistence.QuoteRepo {
	return &quoteRepo{db: db, timeout: timeout}
}

func (r *quoteRepo) EnsureExists(ctx context.Context, name string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	_, err := r.db.ExecContext(ctx, `INSERT INTO quote (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`, name)
	if err != nil {
		return fmt.Errorf("ensure quote %s: %w", name, err)
	}
	return nil
}

func (r *quoteRepo) List(ctx context.Context) ([]domain.Quote, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	var out []domain.Quote
	if err := r.db.SelectContext(ctx, &out, `SELECT name FROM quote ORDER BY name`); err != nil {
		return nil, fmt.Errorf("list quotes: %w", err)
	}
	return out, nil
}

type sectionRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

func NewSectionRepo(db *sqlx.DB, timeout time.Duration) persistence.SectionRepo {
	return &sectionRepo{db: db, timeout: timeout}
}

func (r *sectionRepo) EnsureExists(ctx context.Context, name string, settings []byte) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO section (name, settings) VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET settings = EXCLUDED.settings`, name, settings)
	if err != nil {
		return fmt.Errorf("ensure section %s: %w", name, err)
	}
	return nil
}

func (r *sectionRepo) Get(ctx context.Context, name string) (*domain.Section, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	var s domain.Section
	err := r.db.QueryRowxContext(ctx, `SELECT name, settings FROM section WHERE name = $1`, name).Scan(&s.Name, &s.Settings)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get section %s: %w", name, err)
	}
	return &s, nil
}

func (r *sectionRepo) List(ctx context.Context) ([]domain.Section, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	rows, err := r.db.QueryxContext(ctx, `SELECT name, settings FROM section ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}
	defer rows.Close()

	var out []domain.Section
	for rows.Next() {
		var s domain.Section
		if err := rows.Scan(&s.Name, &s.Settings); err != nil {
			return nil, fmt.Errorf("scan section: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// isUniqueViolation reports whether err is a Postgres unique-constraint
// error (code 23505), the one conflict every bulk insert in this package
// needs to tolerate rather than fail on.
func isUniqueViolation(err error) bool {
	pqErr, ok := err.(*pq.Error)
	return ok && pqErr.Code == "23505"
}

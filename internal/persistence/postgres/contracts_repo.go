package postgres

import (
	"database/sql"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/sawpanic/cryptorun/internal/domain"
	"github.com/sawpanic/cryptorun/internal/persistence"
)

// contractRepo owns the contract table: discovery upsert, deprecation on
// delisting, and the synced flag that marks a contract's backfill as
// having reached the venue's earliest record.
type contractRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

func NewContractRepo(db *sqlx.DB, timeout time.Duration) persistence.ContractRepo {
	return &contractRepo{db: db, timeout: timeout}
}

// UpsertMany registers newly-discovered contracts and, on existing ones,
// refreshes funding_interval and resets deprecated to false, never
// touching synced.
func (r *contractRepo) UpsertMany(ctx context.Context, infos []domain.ContractInfo) error {
	if len(infos) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("upsert contracts: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO contract (id, asset_name, quote_name, section_name, funding_interval, deprecated, synced)
		VALUES ($1, $2, $3, $4, $5, false, false)
		ON CONFLICT (asset_name, quote_name, section_name) DO UPDATE SET
			funding_interval = EXCLUDED.funding_interval,
			deprecated = false`)
	if err != nil {
		return fmt.Errorf("upsert contracts: prepare: %w", err)
	}
	defer stmt.Close()

	for _, info := range infos {
		if _, err := stmt.ExecContext(ctx, uuid.New(), info.AssetName, info.QuoteName, info.SectionName, info.FundingInterval); err != nil {
			return fmt.Errorf("upsert contract %s/%s/%s: %w", info.SectionName, info.AssetName, info.QuoteName, err)
		}
	}
	return tx.Commit()
}

// MarkDeprecated flips deprecated=true for every contract of a section
// whose (asset, quote) pair is absent from the venue's latest listing.
func (r *contractRepo) MarkDeprecated(ctx context.Context, sectionName string, liveAssetQuote map[[2]string]bool) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.db.QueryxContext(ctx, `SELECT id, asset_name, quote_name FROM contract WHERE section_name = $1 AND NOT deprecated`, sectionName)
	if err != nil {
		return fmt.Errorf("mark deprecated: list: %w", err)
	}
	var stale []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		var asset, quote string
		if err := rows.Scan(&id, &asset, &quote); err != nil {
			rows.Close()
			return fmt.Errorf("mark deprecated: scan: %w", err)
		}
		if !liveAssetQuote[[2]string{asset, quote}] {
			stale = append(stale, id)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("mark deprecated: iterate: %w", err)
	}

	for _, id := range stale {
		if _, err := r.db.ExecContext(ctx, `UPDATE contract SET deprecated = true WHERE id = $1`, id); err != nil {
			return fmt.Errorf("mark deprecated %s: %w", id, err)
		}
	}
	return nil
}

func (r *contractRepo) MarkSynced(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	_, err := r.db.ExecContext(ctx, `UPDATE contract SET synced = true WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark synced %s: %w", id, err)
	}
	return nil
}

func (r *contractRepo) GetBySection(ctx context.Context, sectionName string) ([]domain.Contract, error) {
	return r.query(ctx, `SELECT id, asset_name, section_name, quote_name, funding_interval, deprecated, synced FROM contract WHERE section_name = $1`, sectionName)
}

func (r *contractRepo) GetActiveBySection(ctx context.Context, sectionName string) ([]domain.Contract, error) {
	return r.query(ctx, `SELECT id, asset_name, section_name, quote_name, funding_interval, deprecated, synced FROM contract WHERE section_name = $1 AND NOT deprecated`, sectionName)
}

func (r *contractRepo) query(ctx context.Context, query string, args ...interface{}) ([]domain.Contract, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query contracts: %w", err)
	}
	defer rows.Close()

	var out []domain.Contract
	for rows.Next() {
		var c domain.Contract
		if err := rows.Scan(&c.ID, &c.AssetName, &c.SectionName, &c.QuoteName, &c.FundingInterval, &c.Deprecated, &c.Synced); err != nil {
			return nil, fmt.Errorf("scan contract: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *contractRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Contract, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var c domain.Contract
	err := r.db.QueryRowxContext(ctx, `
		SELECT id, asset_name, section_name, quote_name, funding_interval, deprecated, synced
		FROM contract WHERE id = $1`, id).
		Scan(&c.ID, &c.AssetName, &c.SectionName, &c.QuoteName, &c.FundingInterval, &c.Deprecated, &c.Synced)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get contract %s: %w", id, err)
	}
	return &c, nil
}

package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/sawpanic/cryptorun/internal/domain"
	"github.com/sawpanic/cryptorun/internal/persistence"
)

// bulkInsertChunk is the row count bulk_insert_ignore commits per
// statement; large backfills (FETCH_STEP up to 8000 hours for Aster) are
// chunked so a single INSERT never carries an unbounded parameter list.
const bulkInsertChunk = 1000

type fundingRecordRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

func NewFundingRecordRepo(db *sqlx.DB, timeout time.Duration) persistence.FundingRecordRepo {
	return &fundingRecordRepo{db: db, timeout: timeout}
}

func (r *fundingRecordRepo) BulkInsertIgnore(ctx context.Context, points []domain.FundingPoint) error {
	return bulkInsertIgnore(ctx, r.db, r.timeout, "funding_rate_record", points)
}

func (r *fundingRecordRepo) GetOldestForContract(ctx context.Context, contractID uuid.UUID) (*time.Time, error) {
	return queryBoundary(ctx, r.db, r.timeout, "funding_rate_record", contractID, "MIN")
}

func (r *fundingRecordRepo) GetNewestForContract(ctx context.Context, contractID uuid.UUID) (*time.Time, error) {
	return queryBoundary(ctx, r.db, r.timeout, "funding_rate_record", contractID, "MAX")
}

func (r *fundingRecordRepo) ListRange(ctx context.Context, contractID uuid.UUID, tr persistence.TimeRange) ([]domain.FundingPoint, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.db.QueryxContext(ctx, `
		SELECT contract_id, ts, funding_rate FROM funding_rate_record
		WHERE contract_id = $1 AND ts >= $2 AND ts <= $3
		ORDER BY ts`, contractID, tr.From, tr.To)
	if err != nil {
		return nil, fmt.Errorf("list funding range: %w", err)
	}
	defer rows.Close()
	return scanFundingPoints(rows)
}

type liveFundingRecordRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

func NewLiveFundingRecordRepo(db *sqlx.DB, timeout time.Duration) persistence.LiveFundingRecordRepo {
	return &liveFundingRecordRepo{db: db, timeout: timeout}
}

func (r *liveFundingRecordRepo) BulkInsertIgnore(ctx context.Context, points []domain.FundingPoint) error {
	return bulkInsertIgnore(ctx, r.db, r.timeout, "unsettled_funding_rate_record", points)
}

func (r *liveFundingRecordRepo) GetLatestForContract(ctx context.Context, contractID uuid.UUID) (*domain.FundingPoint, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var p domain.FundingPoint
	err := r.db.QueryRowxContext(ctx, `
		SELECT contract_id, ts, funding_rate FROM unsettled_funding_rate_record
		WHERE contract_id = $1 ORDER BY ts DESC LIMIT 1`, contractID).
		Scan(&p.ContractID, &p.Timestamp, &p.FundingRate)
	if err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, nil
		}
		return nil, fmt.Errorf("get latest live funding: %w", err)
	}
	return &p, nil
}

// bulkInsertIgnore is shared by both hypertables: chunked prepared-statement
// inserts inside one transaction per chunk, tolerating the unique-violation
// a re-run over an overlapping window produces.
func bulkInsertIgnore(ctx context.Context, db *sqlx.DB, timeout time.Duration, table string, points []domain.FundingPoint) error {
	if len(points) == 0 {
		return nil
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (contract_id, ts, funding_rate)
		VALUES ($1, $2, $3)
		ON CONFLICT (contract_id, ts) DO NOTHING`, table)

	for start := 0; start < len(points); start += bulkInsertChunk {
		end := start + bulkInsertChunk
		if end > len(points) {
			end = len(points)
		}
		chunk := points[start:end]

		if err := func() error {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			tx, err := db.BeginTxx(ctx, nil)
			if err != nil {
				return fmt.Errorf("bulk insert %s: begin: %w", table, err)
			}
			defer tx.Rollback()

			stmt, err := tx.PrepareContext(ctx, query)
			if err != nil {
				return fmt.Errorf("bulk insert %s: prepare: %w", table, err)
			}
			defer stmt.Close()

			for _, p := range chunk {
				if _, err := stmt.ExecContext(ctx, p.ContractID, p.Timestamp, p.FundingRate); err != nil && !isUniqueViolation(err) {
					return fmt.Errorf("bulk insert %s: %w", table, err)
				}
			}
			return tx.Commit()
		}(); err != nil {
			return err
		}
	}
	return nil
}

func queryBoundary(ctx context.Context, db *sqlx.DB, timeout time.Duration, table string, contractID uuid.UUID, agg string) (*time.Time, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	query := fmt.Sprintf(`SELECT %s(ts) FROM %s WHERE contract_id = $1`, agg, table)
	var ts *time.Time
	if err := db.QueryRowxContext(ctx, query, contractID).Scan(&ts); err != nil {
		return nil, fmt.Errorf("%s boundary on %s: %w", agg, table, err)
	}
	return ts, nil
}

func scanFundingPoints(rows *sqlx.Rows) ([]domain.FundingPoint, error) {
	var out []domain.FundingPoint
	for rows.Next() {
		var p domain.FundingPoint
		if err := rows.Scan(&p.ContractID, &p.Timestamp, &p.FundingRate); err != nil {
			return nil, fmt.Errorf("scan funding point: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Package persistence defines the funding tracker's storage contracts:
// repositories for each relational table plus a unit of work that owns
// the connection pool and hands out those repositories.
package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/sawpanic/cryptorun/internal/domain"
)

// TimeRange represents an inclusive time window for range queries.
type TimeRange struct {
	From time.Time
	To   time.Time
}

// AssetRepo persists the distinct underlying assets (BTC, ETH, ...).
type AssetRepo interface {
	// EnsureExists inserts the asset if absent; idempotent.
	EnsureExists(ctx context.Context, name string) error
	List(ctx context.Context) ([]domain.Asset, error)
}

// QuoteRepo persists the distinct quote currencies (USDT, USD, ...).
type QuoteRepo interface {
	EnsureExists(ctx context.Context, name string) error
	List(ctx context.Context) ([]domain.Quote, error)
}

// SectionRepo persists one row per exchange ("section" in the schema),
// carrying venue-specific settings as a JSON blob.
type SectionRepo interface {
	EnsureExists(ctx context.Context, name string, settings []byte) error
	Get(ctx context.Context, name string) (*domain.Section, error)
	List(ctx context.Context) ([]domain.Section, error)
}

// ContractRepo persists perpetual contracts and their sync bookkeeping.
type ContractRepo interface {
	// UpsertMany inserts new contracts and updates funding_interval/
	// deprecated on existing ones, keyed by (asset, quote, section).
	// ON CONFLICT DO UPDATE, never touching synced.
	UpsertMany(ctx context.Context, infos []domain.ContractInfo) error

	// MarkDeprecated flips deprecated=true for contracts of a section
	// absent from the venue's latest GetContracts response.
	MarkDeprecated(ctx context.Context, sectionName string, liveAssetQuote map[[2]string]bool) error

	// MarkSynced flips synced=true once backfill for a contract reaches
	// the venue's earliest available record.
	MarkSynced(ctx context.Context, id uuid.UUID) error

	GetBySection(ctx context.Context, sectionName string) ([]domain.Contract, error)
	GetActiveBySection(ctx context.Context, sectionName string) ([]domain.Contract, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Contract, error)
}

// FundingRecordRepo persists settled funding_rate_record rows (the
// hypertable).
type FundingRecordRepo interface {
	// BulkInsertIgnore inserts points in chunks, ignoring rows that
	// already exist for (contract_id, ts).
	BulkInsertIgnore(ctx context.Context, points []domain.FundingPoint) error

	GetOldestForContract(ctx context.Context, contractID uuid.UUID) (*time.Time, error)
	GetNewestForContract(ctx context.Context, contractID uuid.UUID) (*time.Time, error)
	ListRange(ctx context.Context, contractID uuid.UUID, tr TimeRange) ([]domain.FundingPoint, error)
}

// LiveFundingRecordRepo persists unsettled_funding_rate_record rows (the
// per-minute live sample hypertable).
type LiveFundingRecordRepo interface {
	BulkInsertIgnore(ctx context.Context, points []domain.FundingPoint) error
	GetLatestForContract(ctx context.Context, contractID uuid.UUID) (*domain.FundingPoint, error)
}

// Repository aggregates every table-level repository behind a single
// handle, mirroring how callers receive it from the unit of work.
type Repository struct {
	Assets       AssetRepo
	Quotes       QuoteRepo
	Sections     SectionRepo
	Contracts    ContractRepo
	Funding      FundingRecordRepo
	LiveFunding  LiveFundingRecordRepo
}

// UnitOfWork owns the connection pool and hands out the aggregate
// Repository. Per spec.md's design note, no coordinator holds a single
// SQL transaction open across an upstream HTTP call: each repository
// method commits its own short transaction, and UnitOfWork's job is pool
// lifecycle, not cross-call atomicity. Close does not observe ctx, so a
// cancelled parent context can't abort an in-flight pool drain.
type UnitOfWork interface {
	Repository() *Repository
	Health() RepositoryHealth
	Close(ctx context.Context) error
}

// HealthCheck reports current repository health.
type HealthCheck struct {
	Healthy        bool
	Errors         []string
	ConnectionPool map[string]int
	LastCheck      time.Time
	ResponseTimeMS int64
}

// RepositoryHealth provides health monitoring for the persistence layer.
type RepositoryHealth interface {
	Health(ctx context.Context) HealthCheck
	Ping(ctx context.Context) error
	Stats(ctx context.Context) map[string]interface{}
}

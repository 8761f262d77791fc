package postgres

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sawpanic/cryptorun/internal/persistence"
)

const repoTimeout = 10 * time.Second

// unitOfWork wires the pool into every table repository once at startup.
// It is not a SQL transaction wrapper: per spec.md's design note, no
// coordinator call spans a transaction across an upstream HTTP request,
// so each repository method below already commits its own short-lived
// transaction where one is needed.
type unitOfWork struct {
	db   *sqlx.DB
	repo *persistence.Repository
}

func NewUnitOfWork(db *sqlx.DB) persistence.UnitOfWork {
	return &unitOfWork{
		db: db,
		repo: &persistence.Repository{
			Assets:      NewAssetRepo(db, repoTimeout),
			Quotes:      NewQuoteRepo(db, repoTimeout),
			Sections:    NewSectionRepo(db, repoTimeout),
			Contracts:   NewContractRepo(db, repoTimeout),
			Funding:     NewFundingRecordRepo(db, repoTimeout),
			LiveFunding: NewLiveFundingRecordRepo(db, repoTimeout),
		},
	}
}

func (u *unitOfWork) Repository() *persistence.Repository { return u.repo }

func (u *unitOfWork) Health() persistence.RepositoryHealth { return &dbHealth{db: u.db} }

func (u *unitOfWork) Close(ctx context.Context) error {
	return u.db.Close()
}

type dbHealth struct {
	db *sqlx.DB
}

func (h *dbHealth) Health(ctx context.Context) persistence.HealthCheck {
	start := time.Now()
	check := persistence.HealthCheck{LastCheck: start}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := h.db.PingContext(pingCtx); err != nil {
		check.Healthy = false
		check.Errors = append(check.Errors, err.Error())
	} else {
		check.Healthy = true
	}

	stats := h.db.Stats()
	check.ConnectionPool = map[string]int{
		"open":    stats.OpenConnections,
		"in_use":  stats.InUse,
		"idle":    stats.Idle,
		"waiting": int(stats.WaitCount),
	}
	check.ResponseTimeMS = time.Since(start).Milliseconds()
	return check
}

func (h *dbHealth) Ping(ctx context.Context) error {
	return h.db.PingContext(ctx)
}

func (h *dbHealth) Stats(ctx context.Context) map[string]interface{} {
	stats := h.db.Stats()
	return map[string]interface{}{
		"open_connections": stats.OpenConnections,
		"in_use":           stats.InUse,
		"idle":             stats.Idle,
		"wait_count":       stats.WaitCount,
		"wait_duration_ms": stats.WaitDuration.Milliseconds(),
	}
}

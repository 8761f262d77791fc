// Package mvrefresher implements C7: a debounced trigger for
// REFRESH MATERIALIZED VIEW CONCURRENTLY contract_enriched. Contract
// registration signals a pending refresh; a background check loop
// coalesces bursts of signals into a single refresh after the debounce
// window has passed quietly.
package mvrefresher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
)

const defaultDebounce = 10 * time.Second

// Refresher tracks whether a refresh is owed and debounces repeated
// signal_contracts_changed calls from register_contracts running across
// many sections in short succession.
type Refresher struct {
	db       *sqlx.DB
	debounce time.Duration

	mu            sync.Mutex
	pending       bool
	lastSignal    time.Time
	lastSection   string
}

func New(db *sqlx.DB) *Refresher {
	return &Refresher{db: db, debounce: defaultDebounce}
}

// SignalContractsChanged marks a refresh as owed. Safe to call from many
// concurrent register_contracts invocations.
func (r *Refresher) SignalContractsChanged(section string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = true
	r.lastSignal = time.Now()
	r.lastSection = section
}

// CheckAndRefreshIfNeeded runs the materialized view refresh if a signal
// landed at least `debounce` ago and hasn't been serviced yet. Intended
// to be called on a short fixed tick (spec.md's per-second C7 trigger).
// A failed refresh logs and leaves pending set so the next tick retries.
func (r *Refresher) CheckAndRefreshIfNeeded(ctx context.Context) error {
	r.mu.Lock()
	due := r.pending && time.Since(r.lastSignal) >= r.debounce
	section := r.lastSection
	r.mu.Unlock()

	if !due {
		return nil
	}

	if err := r.refresh(ctx); err != nil {
		log.Error().Err(err).Str("trigger_section", section).Msg("materialized view refresh failed, will retry")
		return err
	}

	r.mu.Lock()
	r.pending = false
	r.mu.Unlock()
	return nil
}

func (r *Refresher) refresh(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `REFRESH MATERIALIZED VIEW CONCURRENTLY contract_enriched`)
	if err != nil {
		return fmt.Errorf("refresh contract_enriched: %w", err)
	}
	return nil
}

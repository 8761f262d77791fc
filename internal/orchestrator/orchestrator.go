// Package orchestrator implements C5: one Orchestrator per exchange,
// driving register_contracts followed by per-contract sync/update under a
// bounded concurrency semaphore, and a separate live-sampling path.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/cryptorun/internal/coordinator"
	"github.com/sawpanic/cryptorun/internal/domain"
	"github.com/sawpanic/cryptorun/internal/exchange"
	"github.com/sawpanic/cryptorun/internal/mvrefresher"
	"github.com/sawpanic/cryptorun/internal/persistence"
)

const (
	defaultConcurrency = 10
	syncTimeout        = 10 * time.Minute
	updateTimeout      = 1 * time.Minute
)

// Orchestrator drives one exchange's register/sync/update and live
// sampling cycles.
type Orchestrator struct {
	Exchange    exchange.Exchange
	Repo        *persistence.Repository
	Refresher   *mvrefresher.Refresher
	Concurrency int
	// Settings is the section.settings JSON blob applied on every
	// register_contracts call; nil is fine (EnsureExists treats it as
	// "no settings").
	Settings []byte
}

func New(ex exchange.Exchange, repo *persistence.Repository, refresher *mvrefresher.Refresher) *Orchestrator {
	return &Orchestrator{Exchange: ex, Repo: repo, Refresher: refresher, Concurrency: defaultConcurrency}
}

// Update runs register_contracts, then sync/update for every contract of
// the section under a bounded semaphore. Every per-contract failure
// (including timeout) is logged and does not abort the rest of the
// section.
func (o *Orchestrator) Update(ctx context.Context) error {
	start := time.Now()

	if err := coordinator.RegisterContracts(ctx, o.Exchange, o.Repo, o.Refresher, o.Settings); err != nil {
		log.Error().Err(err).Str("section", o.Exchange.ID()).Msg("register_contracts failed, continuing with stored registry")
	}

	contracts, err := o.Repo.Contracts.GetBySection(ctx, o.Exchange.ID())
	if err != nil {
		return fmt.Errorf("orchestrator update %s: list contracts: %w", o.Exchange.ID(), err)
	}

	concurrency := o.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	sem := make(chan struct{}, concurrency)

	var (
		contractsWithNewPoints int
		totalPoints            int
	)
	resultCh := make(chan int, len(contracts))

	for _, c := range contracts {
		c := c
		sem <- struct{}{}
		go func() {
			defer func() { <-sem }()
			resultCh <- o.processContract(ctx, c)
		}()
	}
	for range contracts {
		n := <-resultCh
		if n > 0 {
			contractsWithNewPoints++
			totalPoints += n
		}
	}

	log.Info().
		Str("section", o.Exchange.ID()).
		Int("contracts", len(contracts)).
		Int("contracts_with_new_points", contractsWithNewPoints).
		Int("total_points", totalPoints).
		Dur("duration", time.Since(start)).
		Msg("orchestrator update complete")
	return nil
}

func (o *Orchestrator) processContract(ctx context.Context, c domain.Contract) int {
	timeout := updateTimeout
	if !c.Synced {
		timeout = syncTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var (
		n   int
		err error
	)
	if !c.Synced {
		n, err = coordinator.SyncContract(callCtx, o.Exchange, c, o.Repo)
	} else {
		n, err = coordinator.UpdateContract(callCtx, o.Exchange, c, o.Repo)
	}

	if err != nil {
		if callCtx.Err() != nil {
			log.Warn().Str("section", o.Exchange.ID()).Str("contract", c.AssetName).Msg("contract processing timed out, continuing")
		} else {
			log.Error().Err(err).Str("section", o.Exchange.ID()).Str("contract", c.AssetName).Msg("contract processing failed, continuing")
		}
		return 0
	}
	return n
}

// UpdateLive invokes collect_live once; failures are logged, not
// propagated, so a live-sampling error never takes down the scheduler
// tick that invoked it.
func (o *Orchestrator) UpdateLive(ctx context.Context) {
	if _, err := coordinator.CollectLive(ctx, o.Exchange, o.Exchange.ID(), o.Repo); err != nil {
		log.Error().Err(err).Str("section", o.Exchange.ID()).Msg("collect_live failed")
	}
}

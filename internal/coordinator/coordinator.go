// Package coordinator implements C4: the per-contract and per-section
// workflows that sit between an exchange adapter and the persistence
// layer. No function here holds a database transaction open across an
// upstream HTTP call — each DB touch is its own short round trip.
package coordinator

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/cryptorun/internal/domain"
	"github.com/sawpanic/cryptorun/internal/exchange"
	"github.com/sawpanic/cryptorun/internal/mvrefresher"
	"github.com/sawpanic/cryptorun/internal/persistence"
)

// RegisterContracts fetches the venue's current contract list and
// reconciles it against the stored registry: upserts the section,
// insert-ignores any new assets/quotes, deprecates contracts absent from
// the fresh list, and upserts the rest. An empty adapter response is
// treated as a transient upstream outage, not an empty venue, and leaves
// DB state untouched.
func RegisterContracts(ctx context.Context, ex exchange.Exchange, repo *persistence.Repository, refresher *mvrefresher.Refresher, settings []byte) error {
	infos, err := ex.GetContracts(ctx)
	if err != nil {
		return fmt.Errorf("register contracts %s: %w", ex.ID(), err)
	}
	if len(infos) == 0 {
		log.Warn().Str("section", ex.ID()).Msg("register_contracts: empty contract list, skipping to protect registry")
		return nil
	}

	if err := repo.Sections.EnsureExists(ctx, ex.ID(), settings); err != nil {
		return err
	}

	live := make(map[[2]string]bool, len(infos))
	for _, info := range infos {
		if err := repo.Assets.EnsureExists(ctx, info.AssetName); err != nil {
			return err
		}
		if err := repo.Quotes.EnsureExists(ctx, info.QuoteName); err != nil {
			return err
		}
		live[[2]string{info.AssetName, info.QuoteName}] = true
	}

	if err := repo.Contracts.MarkDeprecated(ctx, ex.ID(), live); err != nil {
		return err
	}
	if err := repo.Contracts.UpsertMany(ctx, infos); err != nil {
		return err
	}

	if refresher != nil {
		refresher.SignalContractsChanged(ex.ID())
	}
	return nil
}

// SyncContract backfills a contract's full settled history, one
// FetchStep window at a time, walking backward from the oldest stored
// point until the adapter returns nothing older. Each loop iteration is its
// own pair of short transactions (read oldest, then insert); the HTTP
// call in between holds no transaction.
func SyncContract(ctx context.Context, ex exchange.Exchange, c domain.Contract, repo *persistence.Repository) (int, error) {
	total := 0
	for {
		oldest, err := repo.Funding.GetOldestForContract(ctx, c.ID)
		if err != nil {
			return total, err
		}

		var before *time.Time
		if oldest != nil {
			shifted := oldest.Add(-time.Second)
			before = &shifted
		}

		points, err := ex.FetchHistoryBefore(ctx, c, before)
		if err != nil {
			return total, err
		}
		if len(points) == 0 {
			if err := repo.Contracts.MarkSynced(ctx, c.ID); err != nil {
				return total, err
			}
			return total, nil
		}

		if err := repo.Funding.BulkInsertIgnore(ctx, points); err != nil {
			return total, err
		}
		total += len(points)
	}
}

// UpdateContract performs one forward fetch if the contract's funding
// interval has elapsed since the newest stored point, otherwise skips.
func UpdateContract(ctx context.Context, ex exchange.Exchange, c domain.Contract, repo *persistence.Repository) (int, error) {
	newest, err := repo.Funding.GetNewestForContract(ctx, c.ID)
	if err != nil {
		return 0, err
	}
	if newest == nil {
		// Never synced a single point yet; let sync_contract handle it.
		return 0, nil
	}

	interval := time.Duration(c.FundingInterval) * time.Hour
	if time.Since(*newest) < interval {
		return 0, nil
	}

	points, err := ex.FetchHistoryAfter(ctx, c, newest.Add(time.Second))
	if err != nil {
		return 0, err
	}
	if len(points) == 0 {
		return 0, nil
	}
	if err := repo.Funding.BulkInsertIgnore(ctx, points); err != nil {
		return 0, err
	}
	return len(points), nil
}

// CollectLive samples the currently-accruing rate for every active
// contract in a section and insert-ignores the result. A venue that
// returns nothing for a given tick is logged, not treated as an error.
func CollectLive(ctx context.Context, ex exchange.Exchange, sectionName string, repo *persistence.Repository) (int, error) {
	contracts, err := repo.Contracts.GetActiveBySection(ctx, sectionName)
	if err != nil {
		return 0, err
	}
	if len(contracts) == 0 {
		return 0, nil
	}

	live, err := ex.FetchLive(ctx, contracts)
	if err != nil {
		return 0, err
	}
	if len(live) == 0 {
		log.Info().Str("section", sectionName).Msg("collect_live: no live rates returned this tick")
		return 0, nil
	}

	points := make([]domain.FundingPoint, 0, len(live))
	for _, p := range live {
		points = append(points, p)
	}
	if err := repo.LiveFunding.BulkInsertIgnore(ctx, points); err != nil {
		return 0, err
	}
	return len(points), nil
}

package exchange

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/cryptorun/internal/domain"
)

// liveFanoutLimit bounds per-contract live-rate probes to 10 concurrent
// calls, matching spec.md §4.2's fallback fetch_live path.
const liveFanoutLimit = 10

// fetchLiveParallel is the shared fallback used by venues with no
// all-markets live endpoint (OKX, Backpack, Paradex, KuCoin, Lighter): one call per
// contract, bounded concurrency, per-contract errors dropped rather than
// failing the whole batch.
func fetchLiveParallel(ctx context.Context, contracts []domain.Contract, fetchOne func(ctx context.Context, c domain.Contract) (domain.FundingPoint, error)) map[uuid.UUID]domain.FundingPoint {
	sem := make(chan struct{}, liveFanoutLimit)

	var mu sync.Mutex
	out := make(map[uuid.UUID]domain.FundingPoint, len(contracts))

	var wg sync.WaitGroup
	for _, c := range contracts {
		c := c
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			point, err := fetchOne(ctx, c)
			if err != nil {
				log.Warn().Str("contract", c.ID.String()).Err(err).Msg("live fanout: per-contract fetch failed, dropping")
				return
			}
			mu.Lock()
			out[c.ID] = point
			mu.Unlock()
		}()
	}
	wg.Wait()
	return out
}

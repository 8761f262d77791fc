// Package exchange is the funding tracker's C2: one adapter per venue,
// behind a single uniform interface. The source design went through several
// refactors (see original notes); this package ports the latest one, which
// never holds a DB transaction across an upstream call and builds
// fetch_history_before/after on top of a private fetch-window primitive via
// composition rather than inheritance.
package exchange

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/sawpanic/cryptorun/internal/domain"
)

// Exchange is the uniform per-venue capability set. A "sealed" adapter set
// lives in this package; Registry below is the only place new venues are
// wired in.
type Exchange interface {
	// ID is the venue identifier used as Section.Name, e.g. "hyperliquid".
	ID() string

	// FetchStep is the maximum number of hours of history a single
	// upstream call may cover.
	FetchStep() int

	// FormatSymbol derives the venue-native symbol for a contract.
	FormatSymbol(c domain.Contract) string

	// GetContracts returns one record per active perpetual listing.
	GetContracts(ctx context.Context) ([]domain.ContractInfo, error)

	// FetchHistoryBefore returns at most one FetchStep's worth of settled
	// points strictly older than before (nil means "from the most recent
	// settlement backward").
	FetchHistoryBefore(ctx context.Context, c domain.Contract, before *time.Time) ([]domain.FundingPoint, error)

	// FetchHistoryAfter returns at most one FetchStep's worth of settled
	// points strictly newer than after.
	FetchHistoryAfter(ctx context.Context, c domain.Contract, after time.Time) ([]domain.FundingPoint, error)

	// FetchLive returns the currently-accruing rate for each contract that
	// the venue reports one for. Contracts absent from the result are
	// silently skipped by the caller, not treated as an error.
	FetchLive(ctx context.Context, contracts []domain.Contract) (map[uuid.UUID]domain.FundingPoint, error)
}

// windowFetcher is the private "_fetch_history" analog: fetch every settled
// point in [startMS, endMS), venue pagination already exhausted.
type windowFetcher func(ctx context.Context, c domain.Contract, startMS, endMS int64) ([]domain.FundingPoint, error)

// historyByWindow is embedded by adapters whose venue supports plain
// time-windowed pagination. It supplies default FetchHistoryBefore/After
// implementations that translate a cutoff into a [start,end] window and
// delegate to Fetch. Backpack and Paradex, whose pagination is not
// time-based, do not embed this and implement both methods directly;
// Pacifica embeds it and runs its cursor pagination inside each window.
type historyByWindow struct {
	stepHours int
	fetch     windowFetcher
}

func newHistoryByWindow(stepHours int, fetch windowFetcher) historyByWindow {
	return historyByWindow{stepHours: stepHours, fetch: fetch}
}

func (h historyByWindow) FetchHistoryBefore(ctx context.Context, c domain.Contract, before *time.Time) ([]domain.FundingPoint, error) {
	endMS := time.Now().UTC().UnixMilli()
	if before != nil {
		endMS = before.UnixMilli()
	}
	startMS := endMS - int64(h.stepHours)*int64(time.Hour/time.Millisecond)
	return h.fetch(ctx, c, startMS, endMS)
}

func (h historyByWindow) FetchHistoryAfter(ctx context.Context, c domain.Contract, after time.Time) ([]domain.FundingPoint, error) {
	startMS := after.UnixMilli()
	endMS := startMS + int64(h.stepHours)*int64(time.Hour/time.Millisecond)
	now := time.Now().UTC().UnixMilli()
	if endMS > now {
		endMS = now
	}
	return h.fetch(ctx, c, startMS, endMS)
}

// Registered exchange identifiers, per spec.md §6.
const (
	IDAster          = "aster"
	IDBackpack       = "backpack"
	IDBinanceUSDM    = "binance_usd-m"
	IDBinanceCOINM   = "binance_coin-m"
	IDBybit          = "bybit"
	IDDerive         = "derive"
	IDDydx           = "dydx"
	IDExtended       = "extended"
	IDHyperliquid    = "hyperliquid"
	IDHyperliquidXYZ = "hyperliquid-xyz"
	IDKucoin         = "kucoin"
	IDLighter        = "lighter"
	IDOkx            = "okx"
	IDPacifica       = "pacifica"
	IDParadex        = "paradex"
)

// AllIDs is the sorted registry the instance sharder (C8) and scheduler
// (C6) iterate over.
var AllIDs = []string{
	IDAster, IDBackpack, IDBinanceUSDM, IDBinanceCOINM, IDBybit, IDDerive,
	IDDydx, IDExtended, IDHyperliquid, IDHyperliquidXYZ, IDKucoin, IDLighter,
	IDOkx, IDPacifica, IDParadex,
}

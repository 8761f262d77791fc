package exchange

import (
	"fmt"

	"github.com/sawpanic/cryptorun/internal/cache"
)

// NewRegistry builds every adapter named in AllIDs, keyed by ID(). Paradex
// is the only adapter with an external dependency (its bucket cache), so
// it's the only constructor the registry needs handed in rather than
// calling directly.
func NewRegistry(paradexCache *cache.ParadexCache) map[string]Exchange {
	return map[string]Exchange{
		IDAster:          NewAster(),
		IDBackpack:       NewBackpack(),
		IDBinanceUSDM:    NewBinanceUSDM(),
		IDBinanceCOINM:   NewBinanceCOINM(),
		IDBybit:          NewBybit(),
		IDDerive:         NewDerive(),
		IDDydx:           NewDydx(),
		IDExtended:       NewExtended(),
		IDHyperliquid:    NewHyperliquid(),
		IDHyperliquidXYZ: NewHyperliquidXYZ(),
		IDKucoin:         NewKuCoin(),
		IDLighter:        NewLighter(),
		IDOkx:            NewOKX(),
		IDPacifica:       NewPacifica(),
		IDParadex:        NewParadex(paradexCache),
	}
}

// Lookup returns the adapter for a registered venue ID, or an error if the
// ID isn't one of the sealed set.
func Lookup(registry map[string]Exchange, id string) (Exchange, error) {
	ex, ok := registry[id]
	if !ok {
		return nil, fmt.Errorf("exchange: unknown venue %q", id)
	}
	return ex, nil
}

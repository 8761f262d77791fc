package exchange

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/sawpanic/cryptorun/internal/domain"
	"github.com/sawpanic/cryptorun/internal/httpfetch"
)

// hyperliquidXYZRemap is the bidirectional commodity-ticker remap the xyz
// variant applies: HyperLiquid's synthetic-commodity perps use metal names
// instead of element symbols.
var hyperliquidXYZRemap = map[string]string{
	"XAU": "GOLD",
	"XAG": "SILVER",
	"XPT": "PLATINUM",
	"XCU": "COPPER",
	"XAL": "ALUMINIUM",
}

var hyperliquidXYZRemapInverse = invertMap(hyperliquidXYZRemap)

func invertMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[v] = k
	}
	return out
}

// HyperliquidXYZ reuses Hyperliquid's wire format entirely; the differences
// are the "xyz" dex selector sent with each request and the venue-native
// symbol, which gets commodity-remapped and prefixed with "xyz:".
type HyperliquidXYZ struct {
	inner *Hyperliquid
	http  *httpfetch.Client
}

func NewHyperliquidXYZ() *HyperliquidXYZ {
	return &HyperliquidXYZ{inner: newHyperliquid(IDHyperliquidXYZ, hyperliquidBaseURL, "xyz"), http: httpfetch.New(IDHyperliquidXYZ)}
}

func (h *HyperliquidXYZ) ID() string     { return IDHyperliquidXYZ }
func (h *HyperliquidXYZ) FetchStep() int { return 498 }

func (h *HyperliquidXYZ) FormatSymbol(c domain.Contract) string {
	asset := c.AssetName
	if remapped, ok := hyperliquidXYZRemap[asset]; ok {
		asset = remapped
	}
	return "xyz:" + asset
}

// assetFromSymbol reverses FormatSymbol for contracts discovered upstream.
func (h *HyperliquidXYZ) assetFromSymbol(symbol string) string {
	asset := trimXYZPrefix(symbol)
	if original, ok := hyperliquidXYZRemapInverse[asset]; ok {
		return original
	}
	return asset
}

func trimXYZPrefix(symbol string) string {
	const prefix = "xyz:"
	if len(symbol) > len(prefix) && symbol[:len(prefix)] == prefix {
		return symbol[len(prefix):]
	}
	return symbol
}

func (h *HyperliquidXYZ) GetContracts(ctx context.Context) ([]domain.ContractInfo, error) {
	infos, err := h.inner.GetContracts(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.ContractInfo, 0, len(infos))
	for _, info := range infos {
		info.SectionName = IDHyperliquidXYZ
		if original, ok := hyperliquidXYZRemapInverse[info.AssetName]; ok {
			info.AssetName = original
		}
		out = append(out, info)
	}
	return out, nil
}

func (h *HyperliquidXYZ) FetchHistoryBefore(ctx context.Context, c domain.Contract, before *time.Time) ([]domain.FundingPoint, error) {
	return h.inner.FetchHistoryBefore(ctx, remapForInner(c, h), before)
}

func (h *HyperliquidXYZ) FetchHistoryAfter(ctx context.Context, c domain.Contract, after time.Time) ([]domain.FundingPoint, error) {
	return h.inner.FetchHistoryAfter(ctx, remapForInner(c, h), after)
}

func (h *HyperliquidXYZ) FetchLive(ctx context.Context, contracts []domain.Contract) (map[uuid.UUID]domain.FundingPoint, error) {
	remapped := make([]domain.Contract, len(contracts))
	for i, c := range contracts {
		remapped[i] = remapForInner(c, h)
	}
	return h.inner.FetchLive(ctx, remapped)
}

// remapForInner swaps AssetName to the commodity ticker Hyperliquid's own
// FormatSymbol expects, so the inner adapter's bare-asset formatting lines
// up with FormatSymbol above (minus the "xyz:" prefix, which the inner
// adapter never sees or needs).
func remapForInner(c domain.Contract, h *HyperliquidXYZ) domain.Contract {
	if remapped, ok := hyperliquidXYZRemap[c.AssetName]; ok {
		c.AssetName = remapped
	}
	return c
}

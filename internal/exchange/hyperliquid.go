package exchange

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sawpanic/cryptorun/internal/domain"
	"github.com/sawpanic/cryptorun/internal/httpfetch"
)

const hyperliquidBaseURL = "https://api.hyperliquid.xyz/info"

// Hyperliquid is the reference adapter: symbols are the bare asset name, a
// single "meta" call lists every perpetual, and history/live both come from
// one all-markets endpoint. dex selects a builder-deployed sub-dex (e.g.
// "xyz" for stocks/metals/forex); empty selects the main perp dex.
type Hyperliquid struct {
	historyByWindow
	http    *httpfetch.Client
	baseURL string
	dex     string
}

func NewHyperliquid() *Hyperliquid {
	return newHyperliquid(IDHyperliquid, hyperliquidBaseURL, "")
}

func newHyperliquid(id, baseURL, dex string) *Hyperliquid {
	h := &Hyperliquid{http: httpfetch.New(id), baseURL: baseURL, dex: dex}
	h.historyByWindow = newHistoryByWindow(498, h.fetchWindow)
	return h
}

// withDex copies a request body and adds the "dex" selector when this
// adapter targets a sub-dex. The main dex omits the field entirely.
func (h *Hyperliquid) withDex(body map[string]any) map[string]any {
	if h.dex == "" {
		return body
	}
	out := make(map[string]any, len(body)+1)
	for k, v := range body {
		out[k] = v
	}
	out["dex"] = h.dex
	return out
}

func (h *Hyperliquid) ID() string        { return IDHyperliquid }
func (h *Hyperliquid) FetchStep() int    { return 498 }
func (h *Hyperliquid) FormatSymbol(c domain.Contract) string { return c.AssetName }

func (h *Hyperliquid) GetContracts(ctx context.Context) ([]domain.ContractInfo, error) {
	resp, err := h.http.Post(ctx, h.baseURL, h.withDex(map[string]any{"type": "metaAndAssetCtxs"}), nil, 0)
	if err != nil {
		return nil, fmt.Errorf("hyperliquid meta: %w", err)
	}
	rows, ok := resp.([]any)
	if !ok || len(rows) == 0 {
		return nil, nil
	}
	meta, _ := rows[0].(map[string]any)
	universe, _ := meta["universe"].([]any)

	var out []domain.ContractInfo
	for _, u := range universe {
		entry, _ := u.(map[string]any)
		if entry == nil {
			continue
		}
		if b, ok := entry["isDelisted"].(bool); ok && b {
			continue
		}
		name, _ := entry["name"].(string)
		if name == "" {
			continue
		}
		out = append(out, domain.ContractInfo{
			AssetName:       name,
			QuoteName:       "USD",
			SectionName:     IDHyperliquid,
			FundingInterval: 1,
		})
	}
	return out, nil
}

func (h *Hyperliquid) fetchWindow(ctx context.Context, c domain.Contract, startMS, endMS int64) ([]domain.FundingPoint, error) {
	body := h.withDex(map[string]any{
		"type":      "fundingHistory",
		"coin":      h.FormatSymbol(c),
		"startTime": startMS,
		"endTime":   endMS,
	})
	resp, err := h.http.Post(ctx, h.baseURL, body, nil, 0)
	if err != nil {
		return nil, fmt.Errorf("hyperliquid fundingHistory: %w", err)
	}
	rows, _ := resp.([]any)
	points := make([]domain.FundingPoint, 0, len(rows))
	for _, r := range rows {
		entry, _ := r.(map[string]any)
		if entry == nil {
			continue
		}
		tsMS, _ := entry["time"].(float64)
		rate, _ := asFloat(entry["fundingRate"])
		points = append(points, domain.FundingPoint{
			ContractID:  c.ID,
			Timestamp:   time.UnixMilli(int64(tsMS)).UTC(),
			FundingRate: rate,
		})
	}
	return points, nil
}

func (h *Hyperliquid) FetchLive(ctx context.Context, contracts []domain.Contract) (map[uuid.UUID]domain.FundingPoint, error) {
	resp, err := h.http.Post(ctx, h.baseURL, h.withDex(map[string]any{"type": "metaAndAssetCtxs"}), nil, 0)
	if err != nil {
		return nil, fmt.Errorf("hyperliquid live: %w", err)
	}
	rows, ok := resp.([]any)
	if !ok || len(rows) < 2 {
		return nil, nil
	}
	meta, _ := rows[0].(map[string]any)
	universe, _ := meta["universe"].([]any)
	ctxs, _ := rows[1].([]any)

	bySymbol := make(map[string]float64, len(ctxs))
	for i, u := range universe {
		entry, _ := u.(map[string]any)
		if entry == nil || i >= len(ctxs) {
			continue
		}
		name, _ := entry["name"].(string)
		ctxEntry, _ := ctxs[i].(map[string]any)
		if ctxEntry == nil {
			continue
		}
		rate, _ := asFloat(ctxEntry["funding"])
		bySymbol[name] = rate
	}

	now := time.Now().UTC()
	out := make(map[uuid.UUID]domain.FundingPoint)
	for _, c := range contracts {
		rate, ok := bySymbol[h.FormatSymbol(c)]
		if !ok {
			continue
		}
		out[c.ID] = domain.FundingPoint{ContractID: c.ID, Timestamp: now, FundingRate: rate}
	}
	return out, nil
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		var f float64
		_, err := fmt.Sscanf(n, "%g", &f)
		return f, err == nil
	default:
		return 0, false
	}
}

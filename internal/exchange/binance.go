package exchange

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/sawpanic/cryptorun/internal/domain"
	"github.com/sawpanic/cryptorun/internal/httpfetch"
)

// binanceAdapter is the shared implementation behind both Binance USDⓈ-M
// and Binance COIN-M: both expose exchangeInfo/fundingInfo/fundingRate/
// premiumIndex endpoints with the same shapes, differing only in base URL
// and contract symbol quote convention.
type binanceAdapter struct {
	historyByWindow
	id         string
	baseURL    string
	pathPrefix string // "fapi" for USDⓈ-M, "dapi" for COIN-M
	stepHours  int
	http       *httpfetch.Client
	symbolFn   func(c domain.Contract) string
	// hasFundingInfo gates the secondary fundingInfo lookup: only the
	// USDⓈ-M venue exposes it, COIN-M funding intervals are always 8h.
	hasFundingInfo bool
}

func newBinanceAdapter(id, baseURL, pathPrefix string, stepHours int, hasFundingInfo bool, symbolFn func(domain.Contract) string) *binanceAdapter {
	b := &binanceAdapter{
		id:             id,
		baseURL:        baseURL,
		pathPrefix:     pathPrefix,
		stepHours:      stepHours,
		http:           httpfetch.New(id),
		symbolFn:       symbolFn,
		hasFundingInfo: hasFundingInfo,
	}
	b.historyByWindow = newHistoryByWindow(stepHours, b.fetchWindow)
	return b
}

func (b *binanceAdapter) ID() string        { return b.id }
func (b *binanceAdapter) FetchStep() int    { return b.stepHours }
func (b *binanceAdapter) FormatSymbol(c domain.Contract) string { return b.symbolFn(c) }

func (b *binanceAdapter) GetContracts(ctx context.Context) ([]domain.ContractInfo, error) {
	info, err := b.http.Get(ctx, b.baseURL+"/"+b.pathPrefix+"/v1/exchangeInfo", nil, nil, 0)
	if err != nil {
		return nil, fmt.Errorf("%s exchangeInfo: %w", b.id, err)
	}
	root, _ := info.(map[string]any)
	symbols, _ := root["symbols"].([]any)

	var intervals map[string]int
	if b.hasFundingInfo {
		intervals, err = b.fundingIntervals(ctx)
		if err != nil {
			return nil, err
		}
	}

	var out []domain.ContractInfo
	for _, s := range symbols {
		entry, _ := s.(map[string]any)
		if entry == nil {
			continue
		}
		contractType, _ := entry["contractType"].(string)
		if contractType != "PERPETUAL" {
			continue
		}
		status, _ := entry["status"].(string)
		if status != "TRADING" {
			continue
		}
		symbol, _ := entry["symbol"].(string)
		baseAsset, _ := entry["baseAsset"].(string)
		quoteAsset, _ := entry["quoteAsset"].(string)
		if baseAsset == "" || quoteAsset == "" {
			continue
		}
		interval, ok := intervals[symbol]
		if !ok {
			interval = 8
		}
		out = append(out, domain.ContractInfo{
			AssetName:       baseAsset,
			QuoteName:       quoteAsset,
			SectionName:     b.id,
			FundingInterval: interval,
		})
	}
	return out, nil
}

// fundingIntervals reads the secondary fundingInfo endpoint; venues omit an
// entry when the symbol uses the 8h default.
func (b *binanceAdapter) fundingIntervals(ctx context.Context) (map[string]int, error) {
	resp, err := b.http.Get(ctx, b.baseURL+"/"+b.pathPrefix+"/v1/fundingInfo", nil, nil, 0)
	if err != nil {
		return nil, fmt.Errorf("%s fundingInfo: %w", b.id, err)
	}
	rows, _ := resp.([]any)
	out := make(map[string]int, len(rows))
	for _, r := range rows {
		entry, _ := r.(map[string]any)
		if entry == nil {
			continue
		}
		symbol, _ := entry["symbol"].(string)
		hours, _ := asFloat(entry["fundingIntervalHours"])
		if symbol != "" && hours > 0 {
			out[symbol] = int(hours)
		}
	}
	return out, nil
}

func (b *binanceAdapter) fetchWindow(ctx context.Context, c domain.Contract, startMS, endMS int64) ([]domain.FundingPoint, error) {
	q := url.Values{}
	q.Set("symbol", b.symbolFn(c))
	q.Set("startTime", strconv.FormatInt(startMS, 10))
	q.Set("endTime", strconv.FormatInt(endMS, 10))
	q.Set("limit", "1000")

	resp, err := b.http.Get(ctx, b.baseURL+"/"+b.pathPrefix+"/v1/fundingRate", q, nil, 0)
	if err != nil {
		return nil, fmt.Errorf("%s fundingRate: %w", b.id, err)
	}
	rows, _ := resp.([]any)
	points := make([]domain.FundingPoint, 0, len(rows))
	for _, r := range rows {
		entry, _ := r.(map[string]any)
		if entry == nil {
			continue
		}
		tsMS, _ := asFloat(entry["fundingTime"])
		rate, _ := asFloat(entry["fundingRate"])
		points = append(points, domain.FundingPoint{
			ContractID:  c.ID,
			Timestamp:   time.UnixMilli(int64(tsMS)).UTC(),
			FundingRate: rate,
		})
	}
	return points, nil
}

func (b *binanceAdapter) FetchLive(ctx context.Context, contracts []domain.Contract) (map[uuid.UUID]domain.FundingPoint, error) {
	resp, err := b.http.Get(ctx, b.baseURL+"/"+b.pathPrefix+"/v1/premiumIndex", nil, nil, 0)
	if err != nil {
		return nil, fmt.Errorf("%s premiumIndex: %w", b.id, err)
	}
	rows, _ := resp.([]any)
	bySymbol := make(map[string]domain.FundingPoint, len(rows))
	for _, r := range rows {
		entry, _ := r.(map[string]any)
		if entry == nil {
			continue
		}
		symbol, _ := entry["symbol"].(string)
		rate, _ := asFloat(entry["lastFundingRate"])
		tsMS, _ := asFloat(entry["time"])
		bySymbol[symbol] = domain.FundingPoint{Timestamp: time.UnixMilli(int64(tsMS)).UTC(), FundingRate: rate}
	}

	out := make(map[uuid.UUID]domain.FundingPoint)
	for _, c := range contracts {
		point, ok := bySymbol[b.symbolFn(c)]
		if !ok {
			continue
		}
		point.ContractID = c.ID
		out[c.ID] = point
	}
	return out, nil
}

// BinanceUSDM is the USDⓈ-margined perpetual venue: symbols are plain
// asset+quote concatenation (BTCUSDT).
type BinanceUSDM struct{ *binanceAdapter }

func NewBinanceUSDM() *BinanceUSDM {
	return &BinanceUSDM{newBinanceAdapter(IDBinanceUSDM, "https://fapi.binance.com", "fapi", 1000, true, func(c domain.Contract) string {
		return c.AssetName + c.QuoteName
	})}
}

// BinanceCOINM is the COIN-margined perpetual venue: symbols carry a
// _PERP suffix (BTCUSD_PERP). COIN-M has no fundingInfo endpoint; every
// contract funds every 8h.
type BinanceCOINM struct{ *binanceAdapter }

func NewBinanceCOINM() *BinanceCOINM {
	return &BinanceCOINM{newBinanceAdapter(IDBinanceCOINM, "https://dapi.binance.com", "dapi", 8000, false, func(c domain.Contract) string {
		return c.AssetName + c.QuoteName + "_PERP"
	})}
}

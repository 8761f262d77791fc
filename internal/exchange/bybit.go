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

const bybitBaseURL = "https://api.bybit.com"

// Bybit cursor-paginates both contract discovery and history, and picks its
// symbol suffix from the quote currency rather than concatenating it.
type Bybit struct {
	historyByWindow
	http    *httpfetch.Client
	baseURL string
}

func NewBybit() *Bybit {
	b := &Bybit{http: httpfetch.New(IDBybit), baseURL: bybitBaseURL}
	b.historyByWindow = newHistoryByWindow(198, b.fetchWindow)
	return b
}

func (b *Bybit) ID() string     { return IDBybit }
func (b *Bybit) FetchStep() int { return 198 }

func (b *Bybit) FormatSymbol(c domain.Contract) string {
	suffix := "USDT"
	if c.QuoteName == "USDC" {
		suffix = "PERP"
	}
	return c.AssetName + suffix
}

func (b *Bybit) GetContracts(ctx context.Context) ([]domain.ContractInfo, error) {
	var out []domain.ContractInfo
	cursor := ""
	for {
		q := url.Values{}
		q.Set("category", "linear")
		q.Set("limit", "1000")
		if cursor != "" {
			q.Set("cursor", cursor)
		}
		resp, err := b.http.Get(ctx, b.baseURL+"/v5/market/instruments-info", q, nil, 0)
		if err != nil {
			return nil, fmt.Errorf("bybit instruments-info: %w", err)
		}
		root, _ := resp.(map[string]any)
		result, _ := root["result"].(map[string]any)
		list, _ := result["list"].([]any)

		for _, item := range list {
			entry, _ := item.(map[string]any)
			if entry == nil {
				continue
			}
			status, _ := entry["status"].(string)
			if status != "Trading" {
				continue
			}
			contractType, _ := entry["contractType"].(string)
			if contractType != "LinearPerpetual" && contractType != "InversePerpetual" {
				continue
			}
			baseCoin, _ := entry["baseCoin"].(string)
			quoteCoin, _ := entry["quoteCoin"].(string)
			fundingCfg, _ := entry["fundingInterval"].(float64)
			intervalHours := 8
			if fundingCfg > 0 {
				intervalHours = int(fundingCfg) / 60
			}
			out = append(out, domain.ContractInfo{
				AssetName:       baseCoin,
				QuoteName:       quoteCoin,
				SectionName:     IDBybit,
				FundingInterval: intervalHours,
			})
		}

		nextCursor, _ := result["nextPageCursor"].(string)
		if nextCursor == "" {
			break
		}
		cursor = nextCursor
	}
	return out, nil
}

func (b *Bybit) fetchWindow(ctx context.Context, c domain.Contract, startMS, endMS int64) ([]domain.FundingPoint, error) {
	q := url.Values{}
	q.Set("category", "linear")
	q.Set("symbol", b.FormatSymbol(c))
	q.Set("startTime", strconv.FormatInt(startMS, 10))
	q.Set("endTime", strconv.FormatInt(endMS, 10))
	q.Set("limit", "200")

	var points []domain.FundingPoint
	cursor := ""
	for {
		if cursor != "" {
			q.Set("cursor", cursor)
		}
		resp, err := b.http.Get(ctx, b.baseURL+"/v5/market/funding/history", q, nil, 0)
		if err != nil {
			return nil, fmt.Errorf("bybit funding/history: %w", err)
		}
		root, _ := resp.(map[string]any)
		result, _ := root["result"].(map[string]any)
		list, _ := result["list"].([]any)

		for _, item := range list {
			entry, _ := item.(map[string]any)
			if entry == nil {
				continue
			}
			tsStr, _ := entry["fundingRateTimestamp"].(string)
			tsMS, _ := strconv.ParseInt(tsStr, 10, 64)
			rateStr, _ := entry["fundingRate"].(string)
			rate, _ := strconv.ParseFloat(rateStr, 64)
			points = append(points, domain.FundingPoint{
				ContractID:  c.ID,
				Timestamp:   time.UnixMilli(tsMS).UTC(),
				FundingRate: rate,
			})
		}

		nextCursor, _ := result["nextPageCursor"].(string)
		if nextCursor == "" {
			break
		}
		cursor = nextCursor
	}
	return points, nil
}

func (b *Bybit) FetchLive(ctx context.Context, contracts []domain.Contract) (map[uuid.UUID]domain.FundingPoint, error) {
	resp, err := b.http.Get(ctx, b.baseURL+"/v5/market/tickers", url.Values{"category": {"linear"}}, nil, 0)
	if err != nil {
		return nil, fmt.Errorf("bybit tickers: %w", err)
	}
	root, _ := resp.(map[string]any)
	result, _ := root["result"].(map[string]any)
	list, _ := result["list"].([]any)

	bySymbol := make(map[string]float64, len(list))
	for _, item := range list {
		entry, _ := item.(map[string]any)
		if entry == nil {
			continue
		}
		symbol, _ := entry["symbol"].(string)
		rateStr, _ := entry["fundingRate"].(string)
		rate, _ := strconv.ParseFloat(rateStr, 64)
		bySymbol[symbol] = rate
	}

	now := time.Now().UTC()
	out := make(map[uuid.UUID]domain.FundingPoint)
	for _, c := range contracts {
		rate, ok := bySymbol[b.FormatSymbol(c)]
		if !ok {
			continue
		}
		out[c.ID] = domain.FundingPoint{ContractID: c.ID, Timestamp: now, FundingRate: rate}
	}
	return out, nil
}
